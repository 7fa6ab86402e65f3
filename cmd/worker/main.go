package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/stratagraph/strata/internal/queue"
	"github.com/stratagraph/strata/internal/util"
	"github.com/stratagraph/strata/pkg/extract"
	"github.com/stratagraph/strata/pkg/extract/ollama"
	"github.com/stratagraph/strata/pkg/extract/openai"
	"github.com/stratagraph/strata/pkg/graph"
	"github.com/stratagraph/strata/pkg/logger"
	"github.com/stratagraph/strata/pkg/logger/console"
	"github.com/stratagraph/strata/pkg/store"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Generator backend
	adapter := util.GetEnv("AI_ADAPTER")
	var gen extract.Generator

	switch adapter {
	case "ollama":
		client, err := ollama.NewOllamaGenerator(ollama.NewOllamaGeneratorParams{
			Model:                 util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			BaseURL:               util.GetEnv("AI_CHAT_URL"),
			ApiKey:                util.GetEnv("AI_CHAT_KEY"),
			MaxConcurrentRequests: int64(util.GetEnvInt("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama generator", "err", err)
		}
		gen = client
	default:
		gen = openai.NewOpenAIGenerator(openai.NewOpenAIGeneratorParams{
			Model:   util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			BaseURL: util.GetEnv("AI_CHAT_URL"),
			APIKey:  util.GetEnv("AI_CHAT_KEY"),
		})
	}

	extractor := extract.NewGraphExtractor(extract.NewGraphExtractorParams{
		Generator:         gen,
		ExtractionModel:   util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
		DirectiveModel:    util.GetEnv("AI_CHAT_DIRECTIVE_MODEL"),
		Thinking:          util.GetEnv("AI_THINKING"),
		RequestsPerSecond: util.GetEnvFloat("AI_RATE_LIMIT", 0),
	})

	builder, err := graph.NewBuilder(graph.NewBuilderParams{
		Extractor:        extractor,
		TokenEncoder:     util.GetEnvString("TOKEN_ENCODER", ""),
		ParallelRequests: util.GetEnvInt("AI_PARALLEL_REQ", 0),
		MaxRetries:       util.GetEnvInt("AI_MAX_RETRIES", 0),
	})
	if err != nil {
		logger.Fatal("Could not create graph builder", "err", err)
	}

	// Project snapshot store
	st, err := store.New(util.GetEnvString("PROJECTS_ROOT", "./projects"))
	if err != nil {
		logger.Fatal("Could not open project store", "err", err)
	}

	if defaultProject := util.GetEnv("DEFAULT_PROJECT"); defaultProject != "" {
		if err := st.SwitchActive(ctx, defaultProject); err != nil {
			logger.Warn("Could not activate default project", "project_id", defaultProject, "err", err)
		}
	}

	// Init rabbitmq
	conn, err := queue.Init()
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	queues := []string{queue.QueueBuild, queue.QueueSwitch, queue.QueueStatus}
	if err := queue.SetupQueues(ch, queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	logger.Info("Listening for messages")

	// Create a single consumer channel with prefetch=1
	// This ensures only ONE message is delivered at a time across all queues
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	workQueues := []string{queue.QueueBuild, queue.QueueSwitch}
	for _, queueName := range workQueues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.QueueBuild:
					processingErr = queue.ProcessBuildMessage(ctx, builder, st, ch, string(qm.msg.Body))
				case queue.QueueSwitch:
					processingErr = queue.ProcessSwitchMessage(ctx, st, ch, string(qm.msg.Body))
				}

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					handleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					err = qm.msg.Ack(false)
					if err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				metrics := gen.GetMetrics()
				aiDuration := time.Duration(metrics.DurationMs) * time.Millisecond
				aiHours := int(aiDuration.Hours())
				aiMinutes := int(aiDuration.Minutes()) % 60
				aiSeconds := int(aiDuration.Seconds()) % 60
				logger.Info(
					"AI Metrics",
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration", fmt.Sprintf("%02d:%02d:%02d", aiHours, aiMinutes, aiSeconds),
				)

				processingDuration := time.Since(startTime)
				hours := int(processingDuration.Hours())
				minutes := int(processingDuration.Minutes()) % 60
				seconds := int(processingDuration.Seconds()) % 60
				logger.Info(
					"Processing time",
					"duration", fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds),
				)
				logger.Info("Waiting for next message")
				gen.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, queueName string) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	// If message has been retried 10 times, send to dead-letter
	if retries >= 10 {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp.Publishing{
				ContentType: "text/plain",
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retries"] = retries + 1

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp.Publishing{
			ContentType: "text/plain",
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
