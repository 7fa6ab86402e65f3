package queue

import (
	"encoding/json"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rabbitmq/amqp091-go"

	"github.com/stratagraph/strata/pkg/graph"
)

// BuildJobMsg asks the worker to build a project graph from a document.
// Text carries the document inline; Path points at a file on a volume the
// worker can read. Text wins when both are set. Digest optionally carries a
// pre-written summary used for the backbone pass.
type BuildJobMsg struct {
	JobID     string `json:"job_id,omitempty"`
	ProjectID string `json:"project_id"`
	Text      string `json:"text,omitempty"`
	Path      string `json:"path,omitempty"`
	Digest    string `json:"digest,omitempty"`
}

// SwitchJobMsg asks the worker to make another project's graph the active
// one, persisting the current graph first.
type SwitchJobMsg struct {
	JobID     string `json:"job_id,omitempty"`
	ProjectID string `json:"project_id"`
}

const (
	OperationBuild  = "build"
	OperationSwitch = "switch"

	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// BuildStatusMsg reports a job outcome on the status queue. Report is set
// for completed builds only.
type BuildStatusMsg struct {
	JobID     string        `json:"job_id,omitempty"`
	ProjectID string        `json:"project_id"`
	Operation string        `json:"operation"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Report    *graph.Report `json:"report,omitempty"`
}

func publishStatus(ch *amqp091.Channel, status BuildStatusMsg) error {
	msgBytes, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return PublishFIFO(ch, QueueStatus, msgBytes)
}

// ensureJobID keeps a producer-assigned id and otherwise generates one so
// status messages stay correlatable.
func ensureJobID(id string) string {
	if id != "" {
		return id
	}
	generated, err := gonanoid.New()
	if err != nil {
		return ""
	}
	return generated
}
