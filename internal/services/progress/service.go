// -----------------------------------------------------------------------
// Progress Ingestor - advances a job from out-of-band worker reports
// -----------------------------------------------------------------------

package progress

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/voluma/forge/internal/interfaces"
	"github.com/voluma/forge/internal/models"
	"github.com/voluma/forge/internal/stages"
)

// ErrMissingJobID is returned for a malformed report without a job id.
// Never retried internally; the handler maps it to a 400.
var ErrMissingJobID = errors.New("missing job id")

const broadcastTimeout = 5 * time.Second

// Service ingests progress webhooks: translate the stage, write the job
// store, then broadcast. The store write is the durable fact; everything
// after it is best-effort.
type Service struct {
	jobs        interfaces.JobStorage
	translator  *stages.Translator
	broadcaster interfaces.ProgressBroadcaster
	events      interfaces.EventService
	logger      arbor.ILogger
}

// NewService creates a progress ingestion service.
func NewService(jobs interfaces.JobStorage, translator *stages.Translator, broadcaster interfaces.ProgressBroadcaster, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		jobs:        jobs,
		translator:  translator,
		broadcaster: broadcaster,
		events:      events,
		logger:      logger,
	}
}

// Ingest applies one progress report. Deliveries are at-least-once and
// unordered: the write is last-write-wins, repeated identical reports are
// effect-wise no-ops, and a report arriving after the job went terminal is
// dropped rather than resurrecting the job into PROCESSING.
func (s *Service) Ingest(ctx context.Context, report *models.ProgressReport) (*models.ProgressAck, error) {
	if report.ProductionID == "" {
		return nil, ErrMissingJobID
	}

	clamped := models.ClampProgress(report.Progress)
	canonicalStage, derivedStatus := s.translator.Translate(report.Stage)
	now := time.Now()

	update := &models.JobUpdate{
		Status:           models.StatusPtr(derivedStatus),
		Stage:            models.StringPtr(canonicalStage),
		Progress:         models.IntPtr(clamped),
		Message:          models.StringPtr(report.Message),
		LastHeartbeat:    models.TimePtr(now),
		StartedAtIfUnset: models.TimePtr(now),
	}
	if derivedStatus == models.JobStatusFailed {
		errMsg := report.Message
		if errMsg == "" {
			errMsg = "Processing failed"
		}
		update.Error = models.StringPtr(errMsg)
	}
	if canonicalStage == stages.StageCompleted {
		update.CompletedAt = models.TimePtr(now)
	}

	job, applied, err := s.jobs.UpdateJobIfNotTerminal(ctx, report.ProductionID, update)
	if err != nil {
		if err == interfaces.ErrJobNotFound {
			s.logger.Warn().Str("job_id", report.ProductionID).Msg("Progress report for unknown job, ignoring")
		}
		return nil, err
	}

	if !applied {
		s.logger.Debug().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Str("stage", canonicalStage).
			Msg("Dropping progress report for terminal job")
		return &models.ProgressAck{
			JobID:    job.ID,
			Stage:    canonicalStage,
			Progress: clamped,
			Status:   job.Status,
		}, nil
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("stage", canonicalStage).
		Int("progress", clamped).
		Msg("Progress ingested")

	// Fire-and-forget: the store write already succeeded, so a broadcast
	// failure must never fail the webhook response.
	go s.broadcast(&interfaces.ProgressEvent{
		JobID:     job.ID,
		Stage:     canonicalStage,
		Progress:  clamped,
		Status:    derivedStatus,
		Message:   report.Message,
		Timestamp: now,
	})

	return &models.ProgressAck{
		JobID:    job.ID,
		Stage:    canonicalStage,
		Progress: clamped,
		Status:   derivedStatus,
	}, nil
}

func (s *Service) broadcast(event *interfaces.ProgressEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()

	if err := s.broadcaster.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("Progress broadcast failed, state remains durably stored")
	}

	if s.events != nil {
		eventType := interfaces.EventJobProgress
		switch event.Status {
		case models.JobStatusCompleted:
			eventType = interfaces.EventJobCompleted
		case models.JobStatusFailed:
			eventType = interfaces.EventJobFailed
		}
		if err := s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: event}); err != nil {
			s.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("Event bus publish failed")
		}
	}
}
