package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (snapshot push)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Jobs (pipeline management)
	mux.HandleFunc("/api/jobs", s.handleJobsRoute)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)

	// API routes - Cost estimation (no persistence)
	mux.HandleFunc("/api/estimate", s.app.EstimateHandler.EstimateHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobsRoute routes /api/jobs requests (list and create)
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.JobHandler.ListJobsHandler(w, r)
	case "POST":
		s.app.JobHandler.CreateJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// jobActions maps POST /api/jobs/{id}/{action} suffixes to handlers.
func (s *Server) jobActions() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"/advance":            s.app.JobHandler.AdvanceJobHandler,
		"/resume":             s.app.JobHandler.ResumeJobHandler,
		"/abort":              s.app.JobHandler.AbortJobHandler,
		"/retry/combinations": s.app.JobHandler.RetryCombinationsHandler,
		"/retry/urls":         s.app.JobHandler.RetryURLsHandler,
		"/serp/query":         s.app.JobHandler.RunQueryHandler,
		"/serp/finalize":      s.app.JobHandler.FinalizeSerpHandler,
		"/scrape/batch":       s.app.JobHandler.RunBatchHandler,
		"/analysis/pass":      s.app.JobHandler.RunExtractionHandler,
	}
}

// handleJobRoutes routes /api/jobs/{id} and subpath requests
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if r.Method == "POST" {
		for suffix, handler := range s.jobActions() {
			if strings.HasSuffix(path, suffix) {
				handler(w, r)
				return
			}
		}
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	if r.Method == "GET" {
		if strings.HasSuffix(path, "/niches") {
			s.app.JobHandler.NichesHandler(w, r)
			return
		}
		if strings.HasSuffix(path, "/report") {
			s.app.JobHandler.ReportHandler(w, r)
			return
		}
		// Otherwise it's GET /api/jobs/{id}
		s.app.JobHandler.GetJobHandler(w, r)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
