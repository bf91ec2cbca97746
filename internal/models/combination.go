package models

import "fmt"

// CombinationStatus represents per-combination SERP progress.
type CombinationStatus string

const (
	CombinationStatusPending   CombinationStatus = "pending"
	CombinationStatusRunning   CombinationStatus = "running"
	CombinationStatusCompleted CombinationStatus = "completed"
	CombinationStatusError     CombinationStatus = "error"
)

// Combination is one (life context x product word) pair together with the
// queries it produced. Progress is persisted per combination rather than
// derived from serp_completed division, so uneven query counts (indicator
// queries present for some runs, absent for others) cannot skew resume
// position.
type Combination struct {
	ID          string            `json:"id"` // jobID + "/" + index
	JobID       string            `json:"job_id" badgerhold:"index"`
	Index       int               `json:"index"`
	LifeContext string            `json:"life_context"`
	ProductWord string            `json:"product_word"`
	Queries     []Query           `json:"queries"`
	Status      CombinationStatus `json:"status"`
	// QueriesCompleted is the count of successfully executed queries; it
	// doubles as the index of the next query to run.
	QueriesCompleted int    `json:"queries_completed"`
	URLsFound        int    `json:"urls_found"`
	Error            string `json:"error,omitempty"`
}

// CombinationID builds the storage key for a job's combination by index.
func CombinationID(jobID string, index int) string {
	return fmt.Sprintf("%s/%d", jobID, index)
}

// Done reports whether this combination has no runnable queries left.
func (c *Combination) Done() bool {
	return c.Status == CombinationStatusCompleted || c.Status == CombinationStatusError
}

// NextQuery returns the next query to execute, or nil when exhausted.
func (c *Combination) NextQuery() *Query {
	if c.QueriesCompleted >= len(c.Queries) {
		return nil
	}
	return &c.Queries[c.QueriesCompleted]
}
