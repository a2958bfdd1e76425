package reconciler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/voluma/forge/internal/common"
	"github.com/voluma/forge/internal/models"
)

// Monitor periodically reports jobs whose heartbeat has gone stale. It only
// observes - force-cancelling stays a manual admin action - but gives
// operators the staleness signal lastHeartbeat exists for.
type Monitor struct {
	service    *Service
	cron       *cron.Cron
	staleAfter time.Duration
	logger     arbor.ILogger
}

// NewMonitor builds a monitor from config. Returns nil when disabled.
func NewMonitor(cfg *common.MonitorConfig, service *Service, logger arbor.ILogger) (*Monitor, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	staleAfter, err := time.ParseDuration(cfg.StaleAfter)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		service:    service,
		cron:       cron.New(),
		staleAfter: staleAfter,
		logger:     logger,
	}

	if _, err := m.cron.AddFunc(cfg.Schedule, m.check); err != nil {
		return nil, err
	}

	return m, nil
}

// Start begins the scheduled checks.
func (m *Monitor) Start() {
	m.cron.Start()
	m.logger.Info().Dur("stale_after", m.staleAfter).Msg("Stale-job monitor started")
}

// Stop halts the schedule and waits for a running check to finish.
func (m *Monitor) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// StaleJobs returns non-terminal jobs whose last heartbeat (or queue time,
// when no heartbeat was ever received) is older than the threshold.
func (m *Monitor) StaleJobs(ctx context.Context) ([]*models.ProcessingJob, error) {
	jobs, err := m.service.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-m.staleAfter)
	var stale []*models.ProcessingJob
	for _, job := range jobs {
		last := job.QueuedAt
		if job.LastHeartbeat != nil {
			last = *job.LastHeartbeat
		}
		if last.Before(cutoff) {
			stale = append(stale, job)
		}
	}
	return stale, nil
}

func (m *Monitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stale, err := m.StaleJobs(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Stale-job check failed")
		return
	}

	for _, job := range stale {
		m.logger.Warn().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Str("stage", job.StageName()).
			Msg("Job heartbeat is stale, consider the admin sweep")
	}
}
