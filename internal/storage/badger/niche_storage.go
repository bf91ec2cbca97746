package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nichefinder/internal/interfaces"
	"github.com/ternarybob/nichefinder/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// NicheStorage implements the NicheStorage interface for Badger
type NicheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewNicheStorage creates a new NicheStorage instance
func NewNicheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.NicheStorage {
	return &NicheStorage{
		db:     db,
		logger: logger,
	}
}

func (s *NicheStorage) SaveNiche(ctx context.Context, niche *models.Niche) error {
	if niche.ID == "" {
		return fmt.Errorf("niche ID is required")
	}
	if err := s.db.Store().Upsert(niche.ID, niche); err != nil {
		return fmt.Errorf("failed to save niche: %w", err)
	}
	return nil
}

func (s *NicheStorage) UpdateNiche(ctx context.Context, niche *models.Niche) error {
	return s.SaveNiche(ctx, niche)
}

func (s *NicheStorage) ListNiches(ctx context.Context, jobID string) ([]*models.Niche, error) {
	var niches []models.Niche
	if err := s.db.Store().Find(&niches, badgerhold.Where("JobID").Eq(jobID).Index("JobID")); err != nil {
		return nil, fmt.Errorf("failed to list niches: %w", err)
	}

	sort.Slice(niches, func(i, j int) bool { return niches[i].CreatedAt.Before(niches[j].CreatedAt) })

	result := make([]*models.Niche, len(niches))
	for i := range niches {
		result[i] = &niches[i]
	}
	return result, nil
}

func (s *NicheStorage) ListFinalNiches(ctx context.Context, jobID string) ([]*models.Niche, error) {
	all, err := s.ListNiches(ctx, jobID)
	if err != nil {
		return nil, err
	}

	final := make([]*models.Niche, 0, len(all))
	for _, n := range all {
		if n.Final() {
			final = append(final, n)
		}
	}

	// Highest score first for the report.
	sort.SliceStable(final, func(i, j int) bool { return final[i].Score > final[j].Score })
	return final, nil
}

func (s *NicheStorage) CountNiches(ctx context.Context, jobID string) (int, error) {
	count, err := s.db.Store().Count(&models.Niche{}, badgerhold.Where("JobID").Eq(jobID).Index("JobID"))
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
