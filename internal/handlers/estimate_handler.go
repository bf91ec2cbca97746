package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nichefinder/internal/common"
	"github.com/ternarybob/nichefinder/internal/models"
	"github.com/ternarybob/nichefinder/internal/services/cost"
)

// EstimateHandler prices a job configuration without creating a job.
type EstimateHandler struct {
	pricing common.CostConfig
	logger  arbor.ILogger
}

// NewEstimateHandler creates a new EstimateHandler.
func NewEstimateHandler(pricing common.CostConfig, logger arbor.ILogger) *EstimateHandler {
	return &EstimateHandler{
		pricing: pricing,
		logger:  logger,
	}
}

// EstimateHandler handles POST /api/estimate. The payload is the same
// config a job creation takes; estimation never persists anything.
func (h *EstimateHandler) EstimateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var config models.JobConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	config.Normalize()

	estimate := cost.Estimate(config, h.pricing)
	WriteJSON(w, http.StatusOK, estimate)
}
