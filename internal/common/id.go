package common

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NicheID derives a stable niche ID from the job and source URL, so a
// retried extraction pass upserts instead of duplicating.
func NicheID(jobID, sourceURL string) string {
	hash := sha256.Sum256([]byte(jobID + "|" + sourceURL))
	return "niche_" + hex.EncodeToString(hash[:8])
}
