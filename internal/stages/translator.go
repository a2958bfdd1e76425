// -----------------------------------------------------------------------
// Stage Translator - external worker stage names to canonical vocabulary
// -----------------------------------------------------------------------

package stages

import (
	"strings"

	"github.com/voluma/forge/internal/models"
)

// Canonical stage vocabulary. The worker fleet reports free-form stage names;
// everything it sends is folded onto these for display stability.
const (
	StageDownloading     = "downloading"
	StageFrameExtraction = "frame_extraction"
	StageColmap          = "colmap"
	StageReconstruction  = "reconstruction"
	StageTraining        = "training"
	StageUploading       = "uploading"
	StageCompleted       = "completed"
	StageFailed          = "failed"
)

// defaultMapping folds the Modal worker's stage identifiers onto the
// canonical vocabulary. The table is data, not code: operators extend it via
// the [stages] config section without a redeploy.
var defaultMapping = map[string]string{
	"downloading":      StageDownloading,
	"frame_extraction": StageFrameExtraction,
	"colmap_features":  StageColmap,
	"colmap_matching":  StageColmap,
	"colmap_mapper":    StageReconstruction,
	"reconstruction":   StageReconstruction,
	"training":         StageTraining,
	"training_4d":      StageTraining,
	"exporting":        StageUploading,
	"uploading":        StageUploading,
	"complete":         StageCompleted,
	"completed":        StageCompleted,
	"error":            StageFailed,
	"failed":           StageFailed,
}

// Translator maps external stage identifiers onto the canonical vocabulary
// and derives the job status from the stage.
type Translator struct {
	mapping map[string]string
}

// NewTranslator builds a translator from the default table merged with the
// given overrides. Overrides win on conflict.
func NewTranslator(overrides map[string]string) *Translator {
	mapping := make(map[string]string, len(defaultMapping)+len(overrides))
	for k, v := range defaultMapping {
		mapping[k] = v
	}
	for k, v := range overrides {
		mapping[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Translator{mapping: mapping}
}

// Translate resolves an external stage name to its canonical stage and the
// status it implies. Unrecognized names pass through unchanged - telemetry
// availability beats strict validation here.
func (t *Translator) Translate(externalStage string) (string, models.JobStatus) {
	if canonical, ok := t.mapping[strings.ToLower(strings.TrimSpace(externalStage))]; ok {
		return canonical, DeriveStatus(canonical)
	}
	return externalStage, DeriveStatus(externalStage)
}

// DeriveStatus is the sole status authority on the progress-ingestion path.
// The completion resolver supersedes it for the two true terminal outcomes.
func DeriveStatus(canonicalStage string) models.JobStatus {
	switch canonicalStage {
	case StageFailed:
		return models.JobStatusFailed
	case StageCompleted:
		return models.JobStatusCompleted
	default:
		return models.JobStatusProcessing
	}
}
