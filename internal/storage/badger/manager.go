package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nichefinder/internal/common"
	"github.com/ternarybob/nichefinder/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db          *BadgerDB
	job         interfaces.JobStorage
	combination interfaces.CombinationStorage
	url         interfaces.URLStorage
	niche       interfaces.NicheStorage
	logger      arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:          db,
		job:         NewJobStorage(db, logger),
		combination: NewCombinationStorage(db, logger),
		url:         NewURLStorage(db, logger),
		niche:       NewNicheStorage(db, logger),
		logger:      logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// CombinationStorage returns the Combination storage interface
func (m *Manager) CombinationStorage() interfaces.CombinationStorage {
	return m.combination
}

// URLStorage returns the URL storage interface
func (m *Manager) URLStorage() interfaces.URLStorage {
	return m.url
}

// NicheStorage returns the Niche storage interface
func (m *Manager) NicheStorage() interfaces.NicheStorage {
	return m.niche
}

// Close closes the underlying database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
