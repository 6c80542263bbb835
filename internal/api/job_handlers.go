package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/status"
)

type createJobRequest struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

func validSubmissionURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	owner := userID(r.Context())

	var req createJobRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validSubmissionURL(req.URL) {
		s.respondError(w, http.StatusBadRequest, "a valid http(s) url is required")
		return
	}

	ctx := r.Context()
	allowed, err := s.jobLimiter.Allow(ctx, owner)
	if err != nil {
		s.logger.Error("job limiter check failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "job creation failed")
		return
	}
	if !allowed {
		s.respondError(w, http.StatusTooManyRequests, "job creation limit reached, try again later")
		return
	}

	job, err := s.store.Create(ctx, owner, strings.TrimSpace(req.URL), req.Count)
	if err != nil {
		s.logger.Error("create job failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "job creation failed")
		return
	}

	if err := s.queues.Push(ctx, queue.StageDownload, job.ID); err != nil {
		s.logger.Error("enqueue job failed", logging.Error(err),
			logging.String(logging.FieldJobID, job.ID))
		s.respondError(w, http.StatusInternalServerError, "job creation failed")
		return
	}

	s.logger.Info("job created",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldOwner, owner),
		logging.Int("clip_count", job.ClipCount))
	s.respondData(w, http.StatusCreated, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	owner := userID(r.Context())
	list, err := s.store.ListByOwner(r.Context(), owner)
	if err != nil {
		s.logger.Error("list jobs failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "listing jobs failed")
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	s.respondData(w, http.StatusOK, list)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	owner := userID(r.Context())
	id := chi.URLParam(r, "id")

	job, err := s.store.GetOwned(r.Context(), id, owner)
	if err != nil {
		s.logger.Error("get job failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "fetching job failed")
		return
	}
	if job == nil {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.respondData(w, http.StatusOK, job)
}

type overrideStatusRequest struct {
	Status string `json:"status"`
}

// overrideStatus is the administrative escape hatch for stuck jobs. The
// transition is still validated by the store.
func (s *Server) overrideStatus(w http.ResponseWriter, r *http.Request) {
	owner := userID(r.Context())
	id := chi.URLParam(r, "id")

	var req overrideStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	next, ok := jobs.ParseStatus(req.Status)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "unknown status")
		return
	}

	ctx := r.Context()
	existing, err := s.store.GetOwned(ctx, id, owner)
	if err != nil {
		s.logger.Error("get job failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "status override failed")
		return
	}
	if existing == nil {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	job, err := s.store.Advance(ctx, id, next, jobs.Artifacts{})
	if err != nil {
		if errors.Is(err, jobs.ErrInvalidTransition) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("status override failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "status override failed")
		return
	}
	if job == nil {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	event := status.Event{Status: job.Status}
	if job.Status == jobs.StatusCompleted {
		event.ClipsPath = job.ClipsPath
	}
	if job.Status == jobs.StatusFailed {
		event.Error = job.ErrorMessage
	}
	if err := s.publisher.Publish(ctx, job.ID, event); err != nil {
		s.logger.Error("publish status failed", logging.Error(err))
	}

	s.logger.Info("status overridden",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("status", string(job.Status)))
	s.respondData(w, http.StatusOK, job)
}
