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

// CombinationStorage implements the CombinationStorage interface for Badger
type CombinationStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCombinationStorage creates a new CombinationStorage instance
func NewCombinationStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CombinationStorage {
	return &CombinationStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CombinationStorage) SaveCombinations(ctx context.Context, combos []*models.Combination) error {
	for _, combo := range combos {
		if combo.ID == "" {
			combo.ID = models.CombinationID(combo.JobID, combo.Index)
		}
		if err := s.db.Store().Upsert(combo.ID, combo); err != nil {
			return fmt.Errorf("failed to save combination %s: %w", combo.ID, err)
		}
	}
	return nil
}

func (s *CombinationStorage) UpdateCombination(ctx context.Context, combo *models.Combination) error {
	if combo.ID == "" {
		return fmt.Errorf("combination ID is required")
	}
	if err := s.db.Store().Upsert(combo.ID, combo); err != nil {
		return fmt.Errorf("failed to update combination: %w", err)
	}
	return nil
}

func (s *CombinationStorage) GetCombination(ctx context.Context, jobID string, index int) (*models.Combination, error) {
	var combo models.Combination
	if err := s.db.Store().Get(models.CombinationID(jobID, index), &combo); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("combination not found: %s[%d]", jobID, index)
		}
		return nil, fmt.Errorf("failed to get combination: %w", err)
	}
	return &combo, nil
}

func (s *CombinationStorage) ListCombinations(ctx context.Context, jobID string) ([]*models.Combination, error) {
	var combos []models.Combination
	if err := s.db.Store().Find(&combos, badgerhold.Where("JobID").Eq(jobID).Index("JobID")); err != nil {
		return nil, fmt.Errorf("failed to list combinations: %w", err)
	}

	sort.Slice(combos, func(i, j int) bool { return combos[i].Index < combos[j].Index })

	result := make([]*models.Combination, len(combos))
	for i := range combos {
		result[i] = &combos[i]
	}
	return result, nil
}

func (s *CombinationStorage) ResetErrored(ctx context.Context, jobID string) (int, error) {
	combos, err := s.ListCombinations(ctx, jobID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, combo := range combos {
		if combo.Status != models.CombinationStatusError {
			continue
		}
		combo.Status = models.CombinationStatusPending
		combo.Error = ""
		if err := s.UpdateCombination(ctx, combo); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
