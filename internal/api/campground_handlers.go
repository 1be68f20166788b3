package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/campground"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	statsCacheKey    = "stats"
)

type campgroundList struct {
	Campgrounds []campground.Campground `json:"campgrounds"`
	Skip        int                     `json:"skip"`
	Limit       int                     `json:"limit"`
}

// listCampgrounds handles GET /v1/campgrounds?skip=&limit=&region=.
func (s *Server) listCampgrounds(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.deps.Campgrounds.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("List campgrounds failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list campgrounds")
		return
	}
	if list == nil {
		list = []campground.Campground{}
	}
	writeJSON(w, http.StatusOK, campgroundList{Campgrounds: list, Skip: filter.Skip, Limit: filter.Limit})
}

func (s *Server) getCampground(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	c, err := s.deps.Campgrounds.Get(r.Context(), id)
	if errors.Is(err, campground.ErrNotFound) {
		writeError(w, http.StatusNotFound, "campground not found")
		return
	}
	if err != nil {
		s.logger.Error("Get campground failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load campground")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// getStats serves region counts, cached for the configured TTL.
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.stats.Get(statsCacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}
	stats, err := s.deps.Campgrounds.Stats(r.Context())
	if err != nil {
		s.logger.Error("Campground stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	s.stats.Set(statsCacheKey, stats, cache.DefaultExpiration)
	writeJSON(w, http.StatusOK, stats)
}

func parseListFilter(r *http.Request) (campground.ListFilter, error) {
	q := r.URL.Query()
	filter := campground.ListFilter{Limit: defaultListLimit, Region: strings.TrimSpace(q.Get("region"))}
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return campground.ListFilter{}, errors.New("invalid limit")
		}
		filter.Limit = min(val, maxListLimit)
	}
	if skipStr := q.Get("skip"); skipStr != "" {
		val, err := strconv.Atoi(skipStr)
		if err != nil || val < 0 {
			return campground.ListFilter{}, errors.New("invalid skip")
		}
		filter.Skip = val
	}
	return filter, nil
}
