package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/dispatcher"
)

// triggerCrawl handles POST /v1/crawl. It answers 202 with the run ID, or
// 409 while another run is active.
func (s *Server) triggerCrawl(w http.ResponseWriter, r *http.Request) {
	if s.deps.Crawls == nil {
		writeError(w, http.StatusServiceUnavailable, "crawler unavailable")
		return
	}
	runID, err := s.deps.Crawls.Trigger(r.Context())
	if errors.Is(err, dispatcher.ErrCrawlInProgress) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  err.Error(),
			"run_id": s.deps.Crawls.Status().RunID,
		})
		return
	}
	if err != nil {
		s.logger.Error("Crawl trigger failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start crawl")
		return
	}
	s.logger.Info("Crawl triggered via API", zap.String("run_id", runID))
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) crawlStatus(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Crawls == nil {
		writeError(w, http.StatusServiceUnavailable, "crawler unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Crawls.Status())
}

func (s *Server) schedulerStatus(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Schedule == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler unavailable")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Schedule.Status())
}
