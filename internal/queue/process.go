package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rabbitmq/amqp091-go"

	"github.com/stratagraph/strata/internal/util"
	"github.com/stratagraph/strata/pkg/graph"
	"github.com/stratagraph/strata/pkg/logger"
	"github.com/stratagraph/strata/pkg/store"
)

// ProcessBuildMessage handles one build job: resolve the document, run the
// build pipeline, install the snapshot, and publish the outcome on the
// status queue. The returned error drives the caller's retry handling.
func ProcessBuildMessage(
	ctx context.Context,
	builder *graph.Builder,
	st *store.Store,
	ch *amqp091.Channel,
	msg string,
) (err error) {
	data := new(BuildJobMsg)
	if err = json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}
	if data.ProjectID == "" {
		return errors.New("build job is missing a project id")
	}
	if data.Text == "" && data.Path == "" {
		return fmt.Errorf("build job for project %q carries neither text nor path", data.ProjectID)
	}

	jobID := ensureJobID(data.JobID)
	var report *graph.Report
	defer func() {
		status := BuildStatusMsg{
			JobID:     jobID,
			ProjectID: data.ProjectID,
			Operation: OperationBuild,
			Status:    StatusCompleted,
			Report:    report,
		}
		if err != nil {
			status.Status = StatusFailed
			status.Error = err.Error()
			status.Report = nil
		}
		if pubErr := publishStatus(ch, status); pubErr != nil {
			logger.Warn("[Queue] Failed to publish build status", "project_id", data.ProjectID, "job_id", jobID, "err", pubErr)
		}
	}()

	text := data.Text
	if text == "" {
		text, err = readDocumentFile(data.Path)
		if err != nil {
			return fmt.Errorf("failed to read document for project %q: %w", data.ProjectID, err)
		}
	} else {
		text = util.SanitizeDocumentText(text)
	}

	logger.Info("[Queue] Starting graph build", "project_id", data.ProjectID, "job_id", jobID, "chars", len(text))

	g, buildReport, buildErr := builder.Build(ctx, graph.Document{Text: text, Digest: data.Digest})
	if buildErr != nil {
		return buildErr
	}
	report = buildReport

	if err = st.Install(ctx, data.ProjectID, g); err != nil {
		return fmt.Errorf("failed to install graph for project %q: %w", data.ProjectID, err)
	}

	logger.Info("[Queue] Graph build finished", "project_id", data.ProjectID, "job_id", jobID, "nodes", report.Nodes, "edges", report.Edges, "duration_ms", report.DurationMs)
	return nil
}

// ProcessSwitchMessage handles one switch job: persist the active graph,
// load the requested project, and publish the outcome.
func ProcessSwitchMessage(
	ctx context.Context,
	st *store.Store,
	ch *amqp091.Channel,
	msg string,
) (err error) {
	data := new(SwitchJobMsg)
	if err = json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}
	if data.ProjectID == "" {
		return errors.New("switch job is missing a project id")
	}

	jobID := ensureJobID(data.JobID)
	defer func() {
		status := BuildStatusMsg{
			JobID:     jobID,
			ProjectID: data.ProjectID,
			Operation: OperationSwitch,
			Status:    StatusCompleted,
		}
		if err != nil {
			status.Status = StatusFailed
			status.Error = err.Error()
		}
		if pubErr := publishStatus(ch, status); pubErr != nil {
			logger.Warn("[Queue] Failed to publish switch status", "project_id", data.ProjectID, "job_id", jobID, "err", pubErr)
		}
	}()

	logger.Info("[Queue] Switching active project", "project_id", data.ProjectID, "job_id", jobID)

	if err = st.SwitchActive(ctx, data.ProjectID); err != nil {
		return err
	}

	logger.Info("[Queue] Active project switched", "project_id", data.ProjectID, "job_id", jobID)
	return nil
}

// readDocumentFile loads a document from disk, coercing broken encodings
// instead of rejecting the file.
func readDocumentFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	text := util.SanitizeDocumentText(string(raw))
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("document %q is empty after sanitizing", path)
	}

	return text, nil
}
