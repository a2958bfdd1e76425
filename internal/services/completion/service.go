// -----------------------------------------------------------------------
// Completion Resolver - finalizes a job and propagates outputs
// -----------------------------------------------------------------------

package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/voluma/forge/internal/interfaces"
	"github.com/voluma/forge/internal/models"
	"github.com/voluma/forge/internal/stages"
)

// ErrNoOutput is the error message recorded when a worker reports success
// without delivering a usable artifact.
const ErrNoOutput = "Processing completed but no output was generated"

const broadcastTimeout = 5 * time.Second

// Service resolves the terminal outcome of a processing job. It is the sole
// authority for the two true terminal outcomes and supersedes the derived
// status of the progress path.
type Service struct {
	jobs        interfaces.JobStorage
	experiences interfaces.ExperienceStorage
	broadcaster interfaces.ProgressBroadcaster
	events      interfaces.EventService
	logger      arbor.ILogger
}

// NewService creates a completion resolution service.
func NewService(jobs interfaces.JobStorage, experiences interfaces.ExperienceStorage, broadcaster interfaces.ProgressBroadcaster, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		jobs:        jobs,
		experiences: experiences,
		broadcaster: broadcaster,
		events:      events,
		logger:      logger,
	}
}

// Resolve finalizes a job from a completion report. A report is a success
// only when the worker claims success AND delivered a primary output URL;
// every other combination is a failure - this protects against a worker
// reporting success without a usable artifact.
//
// On success the job store write happens before the experience publish. The
// two are not atomic: a crash in between leaves a completed job whose
// experience is not yet published, which redelivery recovers. The reverse - a
// published experience pointing at an unfinished job - can never happen.
func (s *Service) Resolve(ctx context.Context, report *models.CompletionReport) (*models.ProcessingJob, error) {
	if report.ProductionID == "" {
		return nil, interfaces.ErrJobNotFound
	}

	job, err := s.jobs.GetJob(ctx, report.ProductionID)
	if err != nil {
		return nil, err
	}

	if report.Success && report.HasPrimaryOutput() {
		return s.resolveSuccess(ctx, job, report)
	}
	return s.resolveFailure(ctx, job, report)
}

func (s *Service) resolveSuccess(ctx context.Context, job *models.ProcessingJob, report *models.CompletionReport) (*models.ProcessingJob, error) {
	now := time.Now()

	var processingTime *int
	if job.StartedAt != nil {
		seconds := int(now.Sub(*job.StartedAt).Seconds())
		processingTime = &seconds
	} else {
		// Job went terminal without an observed start. Anomalous but not
		// fatal; processingTime stays null.
		s.logger.Warn().Str("job_id", job.ID).Msg("Completing job with no recorded start time")
	}

	update := &models.JobUpdate{
		Status:         models.StatusPtr(models.JobStatusCompleted),
		ClearStage:     true,
		Progress:       models.IntPtr(100),
		CompletedAt:    models.TimePtr(now),
		PlyURL:         models.StringPtr(report.Outputs.PlyURL),
		MetadataURL:    models.StringPtr(report.Outputs.MetadataURL),
		ThumbnailURL:   models.StringPtr(report.Outputs.ThumbnailURL),
		PreviewURL:     models.StringPtr(report.Outputs.PreviewURL),
		ProcessingTime: processingTime,
	}

	updated, err := s.jobs.UpdateJob(ctx, job.ID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to record completion: %w", err)
	}

	experienceID := report.ExperienceID
	if experienceID == "" {
		experienceID = job.ExperienceID
	}
	if experienceID != "" {
		// Surfaced as a 500 so the worker's redelivery retries the publish;
		// the job write above is idempotent under re-resolution.
		if _, err := s.experiences.PublishExperience(ctx, experienceID, report.Outputs); err != nil {
			return nil, fmt.Errorf("job completed but experience publish failed: %w", err)
		}
	} else {
		s.logger.Warn().Str("job_id", job.ID).Msg("Completed job has no owning experience to publish")
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("experience_id", experienceID).
		Str("ply_url", report.Outputs.PlyURL).
		Msg("Job completed")

	go s.broadcast(interfaces.EventJobCompleted, &interfaces.ProgressEvent{
		JobID:     updated.ID,
		Stage:     stages.StageCompleted,
		Progress:  100,
		Status:    models.JobStatusCompleted,
		Timestamp: now,
	})

	return updated, nil
}

func (s *Service) resolveFailure(ctx context.Context, job *models.ProcessingJob, report *models.CompletionReport) (*models.ProcessingJob, error) {
	now := time.Now()

	errMsg := report.Error
	if errMsg == "" {
		if report.Success {
			errMsg = ErrNoOutput
		} else {
			errMsg = "Processing failed"
		}
	}

	update := &models.JobUpdate{
		Status:          models.StatusPtr(models.JobStatusFailed),
		Error:           models.StringPtr(errMsg),
		CompletedAt:     models.TimePtr(now),
		RetryCountDelta: 1,
	}

	updated, err := s.jobs.UpdateJob(ctx, job.ID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to record failure: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("error", errMsg).
		Int("retry_count", updated.RetryCount).
		Msg("Job failed")

	go s.broadcast(interfaces.EventJobFailed, &interfaces.ProgressEvent{
		JobID:     updated.ID,
		Stage:     stages.StageFailed,
		Progress:  updated.Progress,
		Status:    models.JobStatusFailed,
		Message:   errMsg,
		Timestamp: now,
	})

	return updated, nil
}

func (s *Service) broadcast(eventType interfaces.EventType, event *interfaces.ProgressEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()

	if err := s.broadcaster.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("Completion broadcast failed")
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: event}); err != nil {
			s.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("Event bus publish failed")
		}
	}
}
