package badger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/voluma/forge/internal/interfaces"
	"github.com/voluma/forge/internal/models"
)

// JobStorage implements the JobStorage interface for Badger.
//
// Badger has no field-level update primitive, so partial updates are
// read-modify-write. The mutex serializes writers so two concurrent webhook
// deliveries merging disjoint fields cannot clobber each other; reads go
// straight to the store.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.ProcessingJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) UpdateJob(ctx context.Context, jobID string, update *models.JobUpdate) (*models.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyUpdate(jobID, update)
}

func (s *JobStorage) UpdateJobIfNotTerminal(ctx context.Context, jobID string, update *models.JobUpdate) (*models.ProcessingJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.ProcessingJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, false, interfaces.ErrJobNotFound
		}
		return nil, false, fmt.Errorf("failed to get job: %w", err)
	}

	if job.IsTerminal() {
		return &job, false, nil
	}

	update.Apply(&job)
	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return nil, false, fmt.Errorf("failed to update job: %w", err)
	}
	return &job, true, nil
}

func (s *JobStorage) FindJobsByStatusIn(ctx context.Context, statuses []models.JobStatus) ([]*models.ProcessingJob, error) {
	in := make([]interface{}, len(statuses))
	for i, status := range statuses {
		in[i] = status
	}

	var jobs []models.ProcessingJob
	query := badgerhold.Where("Status").In(in...).SortBy("QueuedAt").Reverse()
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to find jobs by status: %w", err)
	}

	result := make([]*models.ProcessingJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) BulkUpdateJobs(ctx context.Context, jobIDs []string, update *models.JobUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, jobID := range jobIDs {
		if _, err := s.applyUpdate(jobID, update); err != nil {
			if err == interfaces.ErrJobNotFound {
				s.logger.Warn().Str("job_id", jobID).Msg("Skipping unknown job in bulk update")
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

// applyUpdate performs the read-modify-write merge. Caller holds the mutex.
func (s *JobStorage) applyUpdate(jobID string, update *models.JobUpdate) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	update.Apply(&job)
	if err := s.db.Store().Upsert(job.ID, &job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	return &job, nil
}
