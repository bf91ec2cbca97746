package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nichefinder/internal/interfaces"
	"github.com/ternarybob/nichefinder/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func openTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Options = options.Options.WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestURLInsertDedup(t *testing.T) {
	db := openTestDB(t)
	storage := NewURLStorage(db, arbor.NewLogger())
	ctx := context.Background()

	rec := &models.URLRecord{
		JobID:        "job-1",
		URL:          "https://example.com/thread",
		Status:       models.URLStatusPending,
		DiscoveredAt: time.Now(),
	}
	inserted, err := storage.InsertURL(ctx, rec)
	if err != nil {
		t.Fatalf("InsertURL failed: %v", err)
	}
	if !inserted {
		t.Error("first insert should report inserted=true")
	}

	// Same URL discovered by a later query
	dup := &models.URLRecord{
		JobID:        "job-1",
		URL:          "https://example.com/thread",
		Status:       models.URLStatusPending,
		DiscoveredAt: time.Now(),
	}
	inserted, err = storage.InsertURL(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate InsertURL failed: %v", err)
	}
	if inserted {
		t.Error("duplicate insert should report inserted=false")
	}

	// Same URL under a different job is a distinct record
	other := &models.URLRecord{
		JobID:        "job-2",
		URL:          "https://example.com/thread",
		Status:       models.URLStatusPending,
		DiscoveredAt: time.Now(),
	}
	inserted, err = storage.InsertURL(ctx, other)
	if err != nil {
		t.Fatalf("cross-job InsertURL failed: %v", err)
	}
	if !inserted {
		t.Error("same URL in another job should insert")
	}

	counts, err := storage.CountURLs(ctx, "job-1")
	if err != nil {
		t.Fatalf("CountURLs failed: %v", err)
	}
	if counts.Total() != 1 {
		t.Errorf("job-1 total = %d, want 1", counts.Total())
	}
}

func TestURLListPendingOldestFirst(t *testing.T) {
	db := openTestDB(t)
	storage := NewURLStorage(db, arbor.NewLogger())
	ctx := context.Background()

	base := time.Now()
	urls := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	// Insert newest first to prove ordering comes from DiscoveredAt
	for i := len(urls) - 1; i >= 0; i-- {
		rec := &models.URLRecord{
			JobID:        "job-1",
			URL:          urls[i],
			Status:       models.URLStatusPending,
			DiscoveredAt: base.Add(time.Duration(i) * time.Second),
		}
		if _, err := storage.InsertURL(ctx, rec); err != nil {
			t.Fatalf("InsertURL failed: %v", err)
		}
	}

	pending, err := storage.ListPending(ctx, "job-1", 2)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("ListPending returned %d records, want 2", len(pending))
	}
	if pending[0].URL != urls[0] || pending[1].URL != urls[1] {
		t.Errorf("ListPending order = [%s, %s], want oldest first", pending[0].URL, pending[1].URL)
	}
}

func TestURLResetFailed(t *testing.T) {
	db := openTestDB(t)
	storage := NewURLStorage(db, arbor.NewLogger())
	ctx := context.Background()

	seed := func(url string, status models.URLStatus) *models.URLRecord {
		rec := &models.URLRecord{
			JobID:        "job-1",
			URL:          url,
			Status:       models.URLStatusPending,
			DiscoveredAt: time.Now(),
		}
		if _, err := storage.InsertURL(ctx, rec); err != nil {
			t.Fatalf("InsertURL failed: %v", err)
		}
		if status != models.URLStatusPending {
			rec.Status = status
			if status == models.URLStatusFailed {
				rec.Error = "connection refused"
			}
			if err := storage.UpdateURL(ctx, rec); err != nil {
				t.Fatalf("UpdateURL failed: %v", err)
			}
		}
		return rec
	}

	seed("https://example.com/ok", models.URLStatusScraped)
	seed("https://example.com/bad1", models.URLStatusFailed)
	seed("https://example.com/bad2", models.URLStatusFailed)

	reset, err := storage.ResetFailed(ctx, "job-1")
	if err != nil {
		t.Fatalf("ResetFailed failed: %v", err)
	}
	if reset != 2 {
		t.Errorf("ResetFailed = %d, want 2", reset)
	}

	counts, err := storage.CountURLs(ctx, "job-1")
	if err != nil {
		t.Fatalf("CountURLs failed: %v", err)
	}
	if counts.Pending != 2 || counts.Scraped != 1 || counts.Failed != 0 {
		t.Errorf("counts after reset = %+v, want 2 pending / 1 scraped / 0 failed", counts)
	}

	pending, err := storage.ListPending(ctx, "job-1", 0)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	for _, rec := range pending {
		if rec.Error != "" {
			t.Errorf("reset record %s kept error %q", rec.URL, rec.Error)
		}
	}
}

func TestCombinationOrderingAndReset(t *testing.T) {
	db := openTestDB(t)
	storage := NewCombinationStorage(db, arbor.NewLogger())
	ctx := context.Background()

	combos := []*models.Combination{
		{JobID: "job-1", Index: 2, LifeContext: "c", ProductWord: "w", Status: models.CombinationStatusError, Error: "search backend unavailable"},
		{JobID: "job-1", Index: 0, LifeContext: "a", ProductWord: "w", Status: models.CombinationStatusCompleted},
		{JobID: "job-1", Index: 1, LifeContext: "b", ProductWord: "w", Status: models.CombinationStatusError, Error: "search backend unavailable"},
	}
	if err := storage.SaveCombinations(ctx, combos); err != nil {
		t.Fatalf("SaveCombinations failed: %v", err)
	}

	listed, err := storage.ListCombinations(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListCombinations failed: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("ListCombinations returned %d, want 3", len(listed))
	}
	for i, combo := range listed {
		if combo.Index != i {
			t.Errorf("listed[%d].Index = %d, want %d", i, combo.Index, i)
		}
	}

	reset, err := storage.ResetErrored(ctx, "job-1")
	if err != nil {
		t.Fatalf("ResetErrored failed: %v", err)
	}
	if reset != 2 {
		t.Errorf("ResetErrored = %d, want 2", reset)
	}

	listed, err = storage.ListCombinations(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListCombinations failed: %v", err)
	}
	if listed[0].Status != models.CombinationStatusCompleted {
		t.Errorf("completed combination touched by reset: %s", listed[0].Status)
	}
	for _, combo := range listed[1:] {
		if combo.Status != models.CombinationStatusPending || combo.Error != "" {
			t.Errorf("combination %d not reset: status=%s error=%q", combo.Index, combo.Status, combo.Error)
		}
	}
}

func TestJobMutatePreservesConcurrentIncrements(t *testing.T) {
	db := openTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := &models.Job{
		ID:        "job-1",
		Status:    models.JobStatusSerpRunning,
		CreatedAt: time.Now(),
	}
	if err := storage.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := storage.Mutate(ctx, "job-1", func(j *models.Job) error {
				j.Counters.URLsFound++
				return nil
			})
			done <- err
		}()
	}
	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Mutate failed: %v", err)
		}
	}

	loaded, err := storage.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if loaded.Counters.URLsFound != 10 {
		t.Errorf("URLsFound = %d after 10 increments, want 10", loaded.Counters.URLsFound)
	}
}

func TestJobListFilters(t *testing.T) {
	db := openTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	seed := []*models.Job{
		{ID: "job-1", ProjectID: "p1", Status: models.JobStatusCompleted, CreatedAt: time.Now().Add(-3 * time.Hour)},
		{ID: "job-2", ProjectID: "p1", Status: models.JobStatusFailed, CreatedAt: time.Now().Add(-2 * time.Hour)},
		{ID: "job-3", ProjectID: "p2", Status: models.JobStatusCompleted, CreatedAt: time.Now().Add(-1 * time.Hour)},
	}
	for _, job := range seed {
		if err := storage.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
	}

	jobs, err := storage.ListJobs(ctx, &interfaces.JobListOptions{Status: models.JobStatusCompleted})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("status filter returned %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != "job-3" {
		t.Errorf("jobs[0].ID = %s, want job-3 (newest first)", jobs[0].ID)
	}

	jobs, err = storage.ListJobs(ctx, &interfaces.JobListOptions{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("project filter returned %d jobs, want 2", len(jobs))
	}

	live, err := storage.GetJobsByStatuses(ctx, models.JobStatusCompleted, models.JobStatusFailed)
	if err != nil {
		t.Fatalf("GetJobsByStatuses failed: %v", err)
	}
	if len(live) != 3 {
		t.Errorf("GetJobsByStatuses returned %d, want 3", len(live))
	}
}

func TestNicheUpsertAndFinalOrdering(t *testing.T) {
	db := openTestDB(t)
	storage := NewNicheStorage(db, arbor.NewLogger())
	ctx := context.Background()

	base := time.Now()
	seed := []*models.Niche{
		{ID: "n1", JobID: "job-1", Problem: "p1", Score: 4.0, CreatedAt: base},
		{ID: "n2", JobID: "job-1", Problem: "p2", Score: 9.0, CreatedAt: base.Add(time.Second)},
		{ID: "n3", JobID: "job-1", Problem: "p3", Score: 6.5, FilteredOut: true, CreatedAt: base.Add(2 * time.Second)},
		{ID: "n4", JobID: "job-1", Problem: "p4", Score: 7.0, MergedInto: "n2", CreatedAt: base.Add(3 * time.Second)},
	}
	for _, niche := range seed {
		if err := storage.SaveNiche(ctx, niche); err != nil {
			t.Fatalf("SaveNiche failed: %v", err)
		}
	}

	// Re-saving the same ID must overwrite, not duplicate
	updated := *seed[0]
	updated.Problem = "p1 revised"
	if err := storage.SaveNiche(ctx, &updated); err != nil {
		t.Fatalf("upsert SaveNiche failed: %v", err)
	}
	count, err := storage.CountNiches(ctx, "job-1")
	if err != nil {
		t.Fatalf("CountNiches failed: %v", err)
	}
	if count != 4 {
		t.Errorf("CountNiches = %d after upsert, want 4", count)
	}

	final, err := storage.ListFinalNiches(ctx, "job-1")
	if err != nil {
		t.Fatalf("ListFinalNiches failed: %v", err)
	}
	if len(final) != 2 {
		t.Fatalf("ListFinalNiches returned %d, want 2 (filtered and merged excluded)", len(final))
	}
	if final[0].ID != "n2" || final[1].ID != "n1" {
		t.Errorf("final order = [%s, %s], want highest score first", final[0].ID, final[1].ID)
	}
	if final[1].Problem != "p1 revised" {
		t.Errorf("upsert did not overwrite: %q", final[1].Problem)
	}
}
