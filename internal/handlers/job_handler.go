package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nichefinder/internal/interfaces"
	"github.com/ternarybob/nichefinder/internal/models"
	"github.com/ternarybob/nichefinder/internal/pipeline"
	"github.com/ternarybob/nichefinder/internal/services/report"
)

// JobHandler handles HTTP requests for pipeline jobs.
type JobHandler struct {
	coordinator *pipeline.Coordinator
	storage     interfaces.StorageManager
	validate    *validator.Validate
	logger      arbor.ILogger

	// onJobLive is invoked after creation and resume so the background
	// runner can pick the job up without waiting for its sweep.
	onJobLive func(jobID string)
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(coordinator *pipeline.Coordinator, storage interfaces.StorageManager, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		coordinator: coordinator,
		storage:     storage,
		validate:    validator.New(),
		logger:      logger,
	}
}

// SetOnJobLive registers the runner hook.
func (h *JobHandler) SetOnJobLive(fn func(jobID string)) {
	h.onJobLive = fn
}

// CreateJobRequest is the POST /api/jobs payload.
type CreateJobRequest struct {
	ProjectID string           `json:"project_id,omitempty"`
	Config    models.JobConfig `json:"config"`
}

// CreateJobHandler handles POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	req.Config.Normalize()
	if err := h.validate.Struct(&req.Config); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid job config: %v", err))
		return
	}

	snapshot, err := h.coordinator.CreateJob(r.Context(), req.Config, req.ProjectID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.onJobLive != nil {
		h.onJobLive(snapshot.Job.ID)
	}

	WriteJSON(w, http.StatusCreated, snapshot)
}

// ListJobsHandler handles GET /api/jobs
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit, offset := GetPaginationParams(r)
	opts := &interfaces.JobListOptions{
		ProjectID: r.URL.Query().Get("project_id"),
		Limit:     limit,
		Offset:    offset,
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := models.JobStatus(status)
		if !s.IsValid() {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown status filter: %s", status))
			return
		}
		opts.Status = s
	}

	jobs, err := h.storage.JobStorage().ListJobs(r.Context(), opts)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   jobs,
		"count":  len(jobs),
		"limit":  limit,
		"offset": offset,
	})
}

// GetJobHandler handles GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := h.jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	snapshot, err := h.coordinator.GetSnapshot(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, snapshot)
}

// jobOperation is a coordinator operation addressed by job ID.
type jobOperation func(ctx context.Context, jobID string) (*pipeline.Snapshot, error)

// AdvanceJobHandler handles POST /api/jobs/{id}/advance
func (h *JobHandler) AdvanceJobHandler(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, h.coordinator.Advance)
}

// ResumeJobHandler handles POST /api/jobs/{id}/resume
func (h *JobHandler) ResumeJobHandler(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, func(ctx context.Context, jobID string) (*pipeline.Snapshot, error) {
		snapshot, err := h.coordinator.Resume(ctx, jobID)
		if err == nil && h.onJobLive != nil {
			h.onJobLive(jobID)
		}
		return snapshot, err
	})
}

// AbortJobHandler handles POST /api/jobs/{id}/abort
func (h *JobHandler) AbortJobHandler(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, h.coordinator.Abort)
}

// RetryCombinationsHandler handles POST /api/jobs/{id}/retry/combinations
func (h *JobHandler) RetryCombinationsHandler(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, func(ctx context.Context, jobID string) (*pipeline.Snapshot, error) {
		snapshot, err := h.coordinator.RetryFailedCombinations(ctx, jobID)
		if err == nil && h.onJobLive != nil {
			h.onJobLive(jobID)
		}
		return snapshot, err
	})
}

// RetryURLsHandler handles POST /api/jobs/{id}/retry/urls
func (h *JobHandler) RetryURLsHandler(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, func(ctx context.Context, jobID string) (*pipeline.Snapshot, error) {
		snapshot, err := h.coordinator.RetryFailedURLs(ctx, jobID)
		if err == nil && h.onJobLive != nil {
			h.onJobLive(jobID)
		}
		return snapshot, err
	})
}

// RunQueryHandler handles POST /api/jobs/{id}/serp/query
func (h *JobHandler) RunQueryHandler(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, h.coordinator.RunOneQuery)
}

// FinalizeSerpHandler handles POST /api/jobs/{id}/serp/finalize
func (h *JobHandler) FinalizeSerpHandler(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, h.coordinator.FinalizeSerp)
}

// RunBatchHandler handles POST /api/jobs/{id}/scrape/batch
func (h *JobHandler) RunBatchHandler(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, h.coordinator.RunScrapeBatch)
}

// RunExtractionHandler handles POST /api/jobs/{id}/analysis/pass
func (h *JobHandler) RunExtractionHandler(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, h.coordinator.RunExtractionPass)
}

// runOperation executes a coordinator operation and writes the resulting
// snapshot. Operation-level rejections (wrong phase, unknown job) come
// back as 409 so clients can distinguish them from transport errors.
func (h *JobHandler) runOperation(w http.ResponseWriter, r *http.Request, op jobOperation) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	jobID := h.jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	snapshot, err := op(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, snapshot)
}

func (h *JobHandler) jobIDFromPath(path string) string {
	path = strings.TrimPrefix(path, "/api/jobs/")
	if idx := strings.Index(path, "/"); idx >= 0 {
		path = path[:idx]
	}
	return path
}

// NichesHandler handles GET /api/jobs/{id}/niches. The final=true query
// restricts the listing to the reportable set.
func (h *JobHandler) NichesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID := h.jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	var niches []*models.Niche
	var err error
	if r.URL.Query().Get("final") == "true" {
		niches, err = h.storage.NicheStorage().ListFinalNiches(r.Context(), jobID)
	} else {
		niches, err = h.storage.NicheStorage().ListNiches(r.Context(), jobID)
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"niches": niches,
		"count":  len(niches),
	})
}

// ReportHandler handles GET /api/jobs/{id}/report?format=markdown|html|pdf
func (h *JobHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID := h.jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.storage.JobStorage().GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	niches, err := h.storage.NicheStorage().ListFinalNiches(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(report.Markdown(job, niches)))
	case "html":
		html, err := report.HTML(job, niches)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(html)
	case "pdf":
		pdf, err := report.PDF(job, niches)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-report.pdf", jobID))
		w.Write(pdf)
	default:
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown report format: %s", format))
	}
}
