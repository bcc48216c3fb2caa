package api

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"

	"github.com/forPelevin/podclips/internal/deps"
	"github.com/forPelevin/podclips/internal/httputil"
	"github.com/forPelevin/podclips/internal/jobs"
	"github.com/forPelevin/podclips/internal/runstatus"
	"github.com/forPelevin/podclips/internal/sourceurl"
)

const defaultListLimit = 50

type generateRequest struct {
	YouTubeURL string `json:"youtube_url"`
}

type generateResponse struct {
	TaskID    string          `json:"task_id"`
	Status    runstatus.State `json:"status"`
	StatusURL string          `json:"status_url"`
}

// generateClips accepts a JSON body or a form field named youtube_url.
func (s *Server) generateClips(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		if err := httputil.ReadJSON(r, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
			return
		}
	default:
		if err := r.ParseForm(); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "INVALID_FORM", "invalid form body")
			return
		}
		req.YouTubeURL = r.PostFormValue("youtube_url")
	}
	if strings.TrimSpace(req.YouTubeURL) == "" {
		httputil.WriteError(w, http.StatusBadRequest, "MISSING_URL", "missing YouTube URL")
		return
	}
	src, err := sourceurl.Parse(req.YouTubeURL)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_URL", "invalid YouTube URL")
		return
	}

	run, err := s.tracker.Create(r.Context(), src.URL)
	if err != nil {
		s.logger.Error().Err(err).Msg("create run")
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to create run")
		return
	}
	if err := s.dispatcher.Dispatch(r.Context(), jobs.GeneratePayload{RunID: run.ID(), Input: src.URL}); err != nil {
		s.logger.Error().Err(err).Str("run_id", run.ID()).Msg("dispatch run")
		run.Fail(fmt.Errorf("dispatch: %w", err))
		httputil.WriteError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "failed to queue run")
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, generateResponse{
		TaskID:    run.ID(),
		Status:    runstatus.StateQueued,
		StatusURL: "/check_status/" + run.ID(),
	})
}

func (s *Server) checkStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil || n <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "INVALID_PARAMS", "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.tracker.List(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list runs")
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to list runs")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, runs)
}

// download serves a file listed in a completed run's manifest, or the
// manifest itself.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if snap.State != runstatus.StateCompleted {
		httputil.WriteError(w, http.StatusConflict, "NOT_READY", "run has not completed")
		return
	}
	rel := path.Clean("/" + chi.URLParam(r, "*"))[1:]
	if !servable(snap, rel) {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "file not found")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(rel)))
	http.ServeFile(w, r, filepath.Join(snap.OutDir, filepath.FromSlash(rel)))
}

func servable(snap runstatus.Snapshot, rel string) bool {
	if rel == "manifest.json" {
		return true
	}
	for _, c := range snap.Clips {
		if rel == c.File || (c.Subtitles != "" && rel == c.Subtitles) {
			return true
		}
	}
	return false
}

type healthResponse struct {
	Status       string        `json:"status"`
	Dependencies []deps.Status `json:"dependencies"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	statuses := deps.CheckBinaries(s.requirements)
	if !deps.Healthy(statuses) {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Dependencies: statuses})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Dependencies: statuses})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (runstatus.Snapshot, bool) {
	id := chi.URLParam(r, "id")
	snap, err := s.tracker.Get(r.Context(), id)
	if errors.Is(err, runstatus.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "task not found")
		return runstatus.Snapshot{}, false
	}
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", id).Msg("get run")
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to load run")
		return runstatus.Snapshot{}, false
	}
	return snap, true
}
