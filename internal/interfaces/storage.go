package interfaces

import (
	"context"

	"github.com/ternarybob/nichefinder/internal/models"
)

// JobListOptions filters and paginates job listings.
type JobListOptions struct {
	Status    models.JobStatus
	ProjectID string
	Limit     int
	Offset    int
}

// JobStorage persists pipeline runs. Mutate serializes read-modify-write
// cycles per job so overlapping poll ticks cannot lose counter updates.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)
	CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error)
	// Mutate loads the job, applies fn under a per-job lock, and saves the
	// result. fn returning an error aborts the save.
	Mutate(ctx context.Context, jobID string, fn func(*models.Job) error) (*models.Job, error)
	// GetJobsByStatuses returns jobs in any of the given statuses, used by
	// resume-on-restart and the stale-job sweep.
	GetJobsByStatuses(ctx context.Context, statuses ...models.JobStatus) ([]*models.Job, error)
}

// CombinationStorage persists per-combination SERP progress. Combination
// records are the authoritative resume position for the SERP phase.
type CombinationStorage interface {
	SaveCombinations(ctx context.Context, combos []*models.Combination) error
	UpdateCombination(ctx context.Context, combo *models.Combination) error
	GetCombination(ctx context.Context, jobID string, index int) (*models.Combination, error)
	// ListCombinations returns a job's combinations ordered by index.
	ListCombinations(ctx context.Context, jobID string) ([]*models.Combination, error)
	// ResetErrored returns errored combinations to pending and reports how
	// many were reset.
	ResetErrored(ctx context.Context, jobID string) (int, error)
}

// URLStorage persists discovered URLs and their scrape state.
type URLStorage interface {
	// InsertURL stores a newly discovered URL. Returns false without error
	// when the URL is already known for the job (dedup across queries).
	InsertURL(ctx context.Context, rec *models.URLRecord) (bool, error)
	UpdateURL(ctx context.Context, rec *models.URLRecord) error
	// ListPending returns up to limit pending records for the job, oldest
	// first. Records already scraped or failed are never returned, which
	// is what makes redundant batch invocations safe.
	ListPending(ctx context.Context, jobID string, limit int) ([]*models.URLRecord, error)
	ListByStatus(ctx context.Context, jobID string, status models.URLStatus) ([]*models.URLRecord, error)
	CountURLs(ctx context.Context, jobID string) (models.URLCounts, error)
	// ResetFailed returns failed records to pending and reports how many
	// were reset. Does not touch scraped records.
	ResetFailed(ctx context.Context, jobID string) (int, error)
}

// NicheStorage persists extracted items and their analysis markers.
type NicheStorage interface {
	SaveNiche(ctx context.Context, niche *models.Niche) error
	UpdateNiche(ctx context.Context, niche *models.Niche) error
	ListNiches(ctx context.Context, jobID string) ([]*models.Niche, error)
	// ListFinalNiches returns the reportable set: not filtered, not merged.
	ListFinalNiches(ctx context.Context, jobID string) ([]*models.Niche, error)
	CountNiches(ctx context.Context, jobID string) (int, error)
}

// StorageManager provides access to all storage interfaces and owns the
// underlying database connection.
type StorageManager interface {
	JobStorage() JobStorage
	CombinationStorage() CombinationStorage
	URLStorage() URLStorage
	NicheStorage() NicheStorage
	Close() error
}
