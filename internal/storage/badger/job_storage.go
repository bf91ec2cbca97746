package badger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nichefinder/internal/interfaces"
	"github.com/ternarybob/nichefinder/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements the JobStorage interface for Badger.
//
// Badger has no row-level locking, so read-modify-write cycles on a job
// record are serialized through a per-job mutex. Poll ticks may be retried
// by the client after a network blip; without this lock two overlapping
// ticks could both read the same counter value and one increment would be
// lost.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// jobLock returns the mutex guarding one job's record.
func (s *JobStorage) jobLock(jobID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[jobID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[jobID] = lock
	}
	return lock
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s", jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil {
		if opts.Status != "" {
			query = query.And("Status").Eq(opts.Status)
		}
		if opts.ProjectID != "" {
			query = query.And("ProjectID").Eq(opts.ProjectID)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	query = query.SortBy("CreatedAt").Reverse()

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	count, err := s.db.Store().Count(&models.Job{}, badgerhold.Where("Status").Eq(status))
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *JobStorage) Mutate(ctx context.Context, jobID string, fn func(*models.Job) error) (*models.Job, error) {
	lock := s.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := fn(job); err != nil {
		return nil, err
	}
	if err := s.SaveJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobStorage) GetJobsByStatuses(ctx context.Context, statuses ...models.JobStatus) ([]*models.Job, error) {
	in := make([]interface{}, len(statuses))
	for i, st := range statuses {
		in[i] = st
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("Status").In(in...)); err != nil {
		return nil, fmt.Errorf("failed to get jobs by status: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}
