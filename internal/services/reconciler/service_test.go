package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voluma/forge/internal/common"
	"github.com/voluma/forge/internal/interfaces"
	"github.com/voluma/forge/internal/models"
)

type mockJobStorage struct {
	mu   sync.Mutex
	jobs map[string]*models.ProcessingJob
}

func newMockJobStorage(seed ...*models.ProcessingJob) *mockJobStorage {
	m := &mockJobStorage{jobs: make(map[string]*models.ProcessingJob)}
	for _, job := range seed {
		copied := *job
		m.jobs[job.ID] = &copied
	}
	return m
}

func (m *mockJobStorage) GetJob(ctx context.Context, jobID string) (*models.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, interfaces.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *mockJobStorage) UpdateJob(ctx context.Context, jobID string, update *models.JobUpdate) (*models.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, interfaces.ErrJobNotFound
	}
	update.Apply(job)
	copied := *job
	return &copied, nil
}

func (m *mockJobStorage) UpdateJobIfNotTerminal(ctx context.Context, jobID string, update *models.JobUpdate) (*models.ProcessingJob, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, false, interfaces.ErrJobNotFound
	}
	if job.IsTerminal() {
		copied := *job
		return &copied, false, nil
	}
	update.Apply(job)
	copied := *job
	return &copied, true, nil
}

func (m *mockJobStorage) FindJobsByStatusIn(ctx context.Context, statuses []models.JobStatus) ([]*models.ProcessingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ProcessingJob
	for _, job := range m.jobs {
		for _, s := range statuses {
			if job.Status == s {
				copied := *job
				out = append(out, &copied)
				break
			}
		}
	}
	return out, nil
}

func (m *mockJobStorage) BulkUpdateJobs(ctx context.Context, jobIDs []string, update *models.JobUpdate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, id := range jobIDs {
		if job, ok := m.jobs[id]; ok {
			update.Apply(job)
			count++
		}
	}
	return count, nil
}

func (m *mockJobStorage) SaveJob(ctx context.Context, job *models.ProcessingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func seedJobs() []*models.ProcessingJob {
	started := time.Now().Add(-time.Hour)
	return []*models.ProcessingJob{
		{ID: "queued-1", Status: models.JobStatusQueued, QueuedAt: started},
		{ID: "processing-1", Status: models.JobStatusProcessing, Stage: models.StringPtr("training"), Progress: 60, StartedAt: &started},
		{ID: "completed-1", Status: models.JobStatusCompleted, Progress: 100},
		{ID: "failed-1", Status: models.JobStatusFailed, Error: "boom"},
	}
}

func TestList_OnlyNonTerminal(t *testing.T) {
	store := newMockJobStorage(seedJobs()...)
	svc := NewService(store, common.GetLogger())

	stuck, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stuck, 2)

	ids := map[string]bool{}
	for _, job := range stuck {
		ids[job.ID] = true
	}
	assert.True(t, ids["queued-1"])
	assert.True(t, ids["processing-1"])
}

func TestSweep_CancelsNonTerminalJobs(t *testing.T) {
	store := newMockJobStorage(seedJobs()...)
	svc := NewService(store, common.GetLogger())

	result, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.CancelledCount)
	assert.Len(t, result.CancelledJobs, 2)

	for _, cancelled := range result.CancelledJobs {
		job, err := store.GetJob(context.Background(), cancelled.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCancelled, job.Status)
		assert.Nil(t, job.Stage)
		assert.Equal(t, CancelledMessage, job.Error)
		require.NotNil(t, job.CompletedAt)
	}

	// Terminal jobs are untouched.
	done, _ := store.GetJob(context.Background(), "completed-1")
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	failed, _ := store.GetJob(context.Background(), "failed-1")
	assert.Equal(t, "boom", failed.Error)
}

func TestSweep_EmptyStore(t *testing.T) {
	svc := NewService(newMockJobStorage(), common.GetLogger())

	result, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.CancelledCount)
	assert.Empty(t, result.CancelledJobs)
}

func TestSweep_SecondSweepIsNoOp(t *testing.T) {
	store := newMockJobStorage(seedJobs()...)
	svc := NewService(store, common.GetLogger())

	_, err := svc.Sweep(context.Background())
	require.NoError(t, err)

	result, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.CancelledCount)
}
