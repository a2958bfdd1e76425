package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/voluma/forge/internal/common"
	"github.com/voluma/forge/internal/interfaces"
	"github.com/voluma/forge/internal/storage/badger"
)

// Manager bundles the Badger-backed storage implementations.
type Manager struct {
	db          *badger.BadgerDB
	jobs        interfaces.JobStorage
	experiences interfaces.ExperienceStorage
}

// NewManager opens the database and wires the storage implementations.
func NewManager(cfg *common.StorageConfig, logger arbor.ILogger) (interfaces.StorageManager, error) {
	db, err := badger.NewBadgerDB(logger, &cfg.Badger)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:          db,
		jobs:        badger.NewJobStorage(db, logger),
		experiences: badger.NewExperienceStorage(db, logger),
	}, nil
}

func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.jobs
}

func (m *Manager) ExperienceStorage() interfaces.ExperienceStorage {
	return m.experiences
}

func (m *Manager) Close() error {
	return m.db.Close()
}
