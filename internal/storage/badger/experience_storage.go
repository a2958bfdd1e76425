package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/voluma/forge/internal/interfaces"
	"github.com/voluma/forge/internal/models"
)

// ExperienceStorage implements the ExperienceStorage interface for Badger
type ExperienceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewExperienceStorage creates a new ExperienceStorage instance
func NewExperienceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ExperienceStorage {
	return &ExperienceStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ExperienceStorage) GetExperience(ctx context.Context, experienceID string) (*models.Experience, error) {
	var exp models.Experience
	if err := s.db.Store().Get(experienceID, &exp); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrExperienceNotFound
		}
		return nil, fmt.Errorf("failed to get experience: %w", err)
	}
	return &exp, nil
}

func (s *ExperienceStorage) SaveExperience(ctx context.Context, exp *models.Experience) error {
	if exp.ID == "" {
		return fmt.Errorf("experience ID is required")
	}
	exp.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(exp.ID, exp); err != nil {
		return fmt.Errorf("failed to save experience: %w", err)
	}
	return nil
}

func (s *ExperienceStorage) PublishExperience(ctx context.Context, experienceID string, outputs *models.CompletionOutputs) (*models.Experience, error) {
	var exp models.Experience
	err := s.db.Store().Get(experienceID, &exp)
	if err == badgerhold.ErrNotFound {
		// The enqueue path owns record creation, but delivered outputs must
		// not be dropped when the record is missing.
		s.logger.Warn().Str("experience_id", experienceID).Msg("Publishing outputs to missing experience record, creating it")
		exp = models.Experience{
			ID:        experienceID,
			CreatedAt: time.Now(),
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get experience: %w", err)
	}

	exp.PlyURL = outputs.PlyURL
	exp.MetadataURL = outputs.MetadataURL
	exp.ThumbnailURL = outputs.ThumbnailURL
	exp.PreviewURL = outputs.PreviewURL
	exp.Status = models.ExperienceStatusPublished
	exp.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(exp.ID, &exp); err != nil {
		return nil, fmt.Errorf("failed to publish experience: %w", err)
	}
	return &exp, nil
}
