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

// URLStorage implements the URLStorage interface for Badger. The record
// key is jobID|url, so dedup across queries within a job falls out of the
// insert-if-absent check.
type URLStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewURLStorage creates a new URLStorage instance
func NewURLStorage(db *BadgerDB, logger arbor.ILogger) interfaces.URLStorage {
	return &URLStorage{
		db:     db,
		logger: logger,
	}
}

func (s *URLStorage) InsertURL(ctx context.Context, rec *models.URLRecord) (bool, error) {
	if rec.JobID == "" || rec.URL == "" {
		return false, fmt.Errorf("job ID and URL are required")
	}
	rec.ID = models.URLRecordID(rec.JobID, rec.URL)

	var existing models.URLRecord
	err := s.db.Store().Get(rec.ID, &existing)
	if err == nil {
		return false, nil // Already discovered by an earlier query
	}
	if err != badgerhold.ErrNotFound {
		return false, fmt.Errorf("failed to check url record: %w", err)
	}

	if err := s.db.Store().Insert(rec.ID, rec); err != nil {
		return false, fmt.Errorf("failed to insert url record: %w", err)
	}
	return true, nil
}

func (s *URLStorage) UpdateURL(ctx context.Context, rec *models.URLRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("url record ID is required")
	}
	if err := s.db.Store().Upsert(rec.ID, rec); err != nil {
		return fmt.Errorf("failed to update url record: %w", err)
	}
	return nil
}

func (s *URLStorage) ListPending(ctx context.Context, jobID string, limit int) ([]*models.URLRecord, error) {
	recs, err := s.findByJob(jobID, models.URLStatusPending)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *URLStorage) ListByStatus(ctx context.Context, jobID string, status models.URLStatus) ([]*models.URLRecord, error) {
	return s.findByJob(jobID, status)
}

func (s *URLStorage) CountURLs(ctx context.Context, jobID string) (models.URLCounts, error) {
	var all []models.URLRecord
	if err := s.db.Store().Find(&all, badgerhold.Where("JobID").Eq(jobID).Index("JobID")); err != nil {
		return models.URLCounts{}, fmt.Errorf("failed to count url records: %w", err)
	}

	var counts models.URLCounts
	for _, rec := range all {
		switch rec.Status {
		case models.URLStatusPending:
			counts.Pending++
		case models.URLStatusScraped:
			counts.Scraped++
		case models.URLStatusFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

func (s *URLStorage) ResetFailed(ctx context.Context, jobID string) (int, error) {
	failed, err := s.findByJob(jobID, models.URLStatusFailed)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, rec := range failed {
		rec.Status = models.URLStatusPending
		rec.Error = ""
		if err := s.UpdateURL(ctx, rec); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *URLStorage) findByJob(jobID string, status models.URLStatus) ([]*models.URLRecord, error) {
	var recs []models.URLRecord
	query := badgerhold.Where("JobID").Eq(jobID).Index("JobID").And("Status").Eq(status)
	if err := s.db.Store().Find(&recs, query); err != nil {
		return nil, fmt.Errorf("failed to find url records: %w", err)
	}

	// Oldest first so batch claims drain the queue in discovery order.
	sort.Slice(recs, func(i, j int) bool { return recs[i].DiscoveredAt.Before(recs[j].DiscoveredAt) })

	result := make([]*models.URLRecord, len(recs))
	for i := range recs {
		result[i] = &recs[i]
	}
	return result, nil
}
