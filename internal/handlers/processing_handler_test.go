package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voluma/forge/internal/common"
	"github.com/voluma/forge/internal/interfaces"
	"github.com/voluma/forge/internal/models"
	"github.com/voluma/forge/internal/services/broadcast"
	"github.com/voluma/forge/internal/services/completion"
	"github.com/voluma/forge/internal/services/progress"
	"github.com/voluma/forge/internal/stages"
	badgerstore "github.com/voluma/forge/internal/storage/badger"
)

// testEnv wires the webhook handlers over a real Badger store in a temp dir.
type testEnv struct {
	handler     *ProcessingHandler
	jobs        interfaces.JobStorage
	experiences interfaces.ExperienceStorage
}

func newTestEnv(t *testing.T, webhookSecret string) *testEnv {
	t.Helper()
	logger := common.GetLogger()

	db, err := badgerstore.NewBadgerDB(logger, &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "forge-test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	jobs := badgerstore.NewJobStorage(db, logger)
	experiences := badgerstore.NewExperienceStorage(db, logger)
	broadcaster := broadcast.NewNoopBroadcaster()
	translator := stages.NewTranslator(nil)

	progressService := progress.NewService(jobs, translator, broadcaster, nil, logger)
	completionService := completion.NewService(jobs, experiences, broadcaster, nil, logger)

	return &testEnv{
		handler:     NewProcessingHandler(progressService, completionService, &common.WebhookConfig{Secret: webhookSecret}, logger),
		jobs:        jobs,
		experiences: experiences,
	}
}

func (e *testEnv) seedJob(t *testing.T, id string) {
	t.Helper()
	started := time.Now().Add(-time.Minute)
	job := models.NewProcessingJob(id, "exp-"+id)
	job.Status = models.JobStatusProcessing
	job.StartedAt = &started
	require.NoError(t, e.jobs.SaveJob(context.Background(), job))
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestProgressHandler_OK(t *testing.T) {
	env := newTestEnv(t, "")
	env.seedJob(t, "J1")

	rec := postJSON(t, env.handler.ProgressHandler, "/api/processing/progress", models.ProgressReport{
		ProductionID: "J1",
		Stage:        "colmap_matching",
		Progress:     150,
		Message:      "Matching features",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var ack models.ProgressAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "colmap", ack.Stage)
	assert.Equal(t, 100, ack.Progress)
	assert.Equal(t, models.JobStatusProcessing, ack.Status)
}

func TestProgressHandler_MissingJobID(t *testing.T) {
	env := newTestEnv(t, "")

	rec := postJSON(t, env.handler.ProgressHandler, "/api/processing/progress", models.ProgressReport{
		Stage:    "training",
		Progress: 50,
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgressHandler_UnknownJob(t *testing.T) {
	env := newTestEnv(t, "")

	rec := postJSON(t, env.handler.ProgressHandler, "/api/processing/progress", models.ProgressReport{
		ProductionID: "no-such-job",
		Stage:        "training",
		Progress:     50,
	}, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressHandler_InvalidBody(t *testing.T) {
	env := newTestEnv(t, "")

	req := httptest.NewRequest("POST", "/api/processing/progress", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	env.handler.ProgressHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgressHandler_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, "")

	req := httptest.NewRequest("GET", "/api/processing/progress", nil)
	rec := httptest.NewRecorder()
	env.handler.ProgressHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProgressHandler_SecretRequired(t *testing.T) {
	env := newTestEnv(t, "hunter2")
	env.seedJob(t, "J1")

	report := models.ProgressReport{ProductionID: "J1", Stage: "training", Progress: 50}

	rec := postJSON(t, env.handler.ProgressHandler, "/api/processing/progress", report, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, env.handler.ProgressHandler, "/api/processing/progress", report,
		map[string]string{"X-Webhook-Secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, env.handler.ProgressHandler, "/api/processing/progress", report,
		map[string]string{"X-Webhook-Secret": "hunter2"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallbackHandler_Success(t *testing.T) {
	env := newTestEnv(t, "")
	env.seedJob(t, "J1")

	rec := postJSON(t, env.handler.CallbackHandler, "/api/processing/callback", models.CompletionReport{
		ProductionID: "J1",
		ExperienceID: "exp-J1",
		Success:      true,
		Outputs: &models.CompletionOutputs{
			PlyURL: "https://cdn.voluma.io/exp-J1/model.ply",
		},
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	job, err := env.jobs.GetJob(context.Background(), "J1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)

	exp, err := env.experiences.GetExperience(context.Background(), "exp-J1")
	require.NoError(t, err)
	assert.Equal(t, models.ExperienceStatusPublished, exp.Status)
}

func TestCallbackHandler_SuccessWithoutOutput(t *testing.T) {
	env := newTestEnv(t, "")
	env.seedJob(t, "J1")

	rec := postJSON(t, env.handler.CallbackHandler, "/api/processing/callback", models.CompletionReport{
		ProductionID: "J1",
		Success:      true,
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	job, err := env.jobs.GetJob(context.Background(), "J1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, completion.ErrNoOutput, job.Error)
	assert.Equal(t, 1, job.RetryCount)
}

func TestCallbackHandler_UnknownJob(t *testing.T) {
	env := newTestEnv(t, "")

	rec := postJSON(t, env.handler.CallbackHandler, "/api/processing/callback", models.CompletionReport{
		ProductionID: "no-such-job",
		Success:      false,
		Error:        "boom",
	}, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressAfterCallback_IsDropped(t *testing.T) {
	env := newTestEnv(t, "")
	env.seedJob(t, "J1")

	rec := postJSON(t, env.handler.CallbackHandler, "/api/processing/callback", models.CompletionReport{
		ProductionID: "J1",
		Success:      true,
		Outputs:      &models.CompletionOutputs{PlyURL: "https://cdn.voluma.io/exp-J1/model.ply"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// A stale in-flight progress report lands after completion.
	rec = postJSON(t, env.handler.ProgressHandler, "/api/processing/progress", models.ProgressReport{
		ProductionID: "J1",
		Stage:        "uploading",
		Progress:     95,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	job, err := env.jobs.GetJob(context.Background(), "J1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
}
