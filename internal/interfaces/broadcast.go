package interfaces

import (
	"context"
	"time"

	"github.com/voluma/forge/internal/models"
)

// ProgressEvent is the payload published for live subscribers after a durable
// job write. It is keyed by job id so late subscribers can read the last
// snapshot.
type ProgressEvent struct {
	JobID     string           `json:"job_id"`
	Stage     string           `json:"stage"`
	Progress  int              `json:"progress"`
	Status    models.JobStatus `json:"status"`
	Message   string           `json:"message,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// ProgressBroadcaster fans progress events out to live subscribers. Publish
// is best-effort: an unavailable medium degrades the system to "state is
// durably stored but no live push" and must never fail the ingest path.
// Callers log and swallow the returned error.
type ProgressBroadcaster interface {
	Publish(ctx context.Context, event *ProgressEvent) error
	Close() error
}
