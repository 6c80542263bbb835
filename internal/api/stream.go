package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/status"
)

// snapshotEvent reflects a job's current state so a client connecting
// mid-pipeline (or after completion) sees where the job stands before live
// events start flowing.
func snapshotEvent(job *jobs.Job) status.Event {
	event := status.Event{Status: job.Status}
	if job.Status == jobs.StatusCompleted {
		event.ClipsPath = job.ClipsPath
		if event.ClipsPath == nil {
			event.ClipsPath = []string{}
		}
	}
	if job.Status == jobs.StatusFailed {
		event.Error = job.ErrorMessage
	}
	return event
}

func (s *Server) loadStreamJob(w http.ResponseWriter, r *http.Request) *jobs.Job {
	owner := userID(r.Context())
	id := chi.URLParam(r, "id")
	job, err := s.store.GetOwned(r.Context(), id, owner)
	if err != nil {
		s.logger.Error("get job failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "fetching job failed")
		return nil
	}
	if job == nil {
		s.respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

// streamJob serves the job's status channel as server-sent events. The
// stream ends after a terminal status or when the client disconnects.
// The subscription opens before the snapshot is read so a transition
// landing between the two shows up on the live stream instead of being
// lost.
func (s *Server) streamJob(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	id := chi.URLParam(r, "id")
	sub, err := s.subscriber.Subscribe(ctx, id)
	if err != nil {
		s.logger.Error("subscribe failed", logging.Error(err),
			logging.String(logging.FieldJobID, id))
		s.respondError(w, http.StatusInternalServerError, "subscribing to job failed")
		return
	}
	defer sub.Close()

	job := s.loadStreamJob(w, r)
	if job == nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	write := func(event status.Event) bool {
		if err := writeSSE(w, event); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	snapshot := snapshotEvent(job)
	if !write(snapshot) || snapshot.Terminal() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if !write(event) || event.Terminal() {
				return
			}
		}
	}
}

// streamJobWS mirrors the SSE stream over a websocket. As with streamJob,
// the subscription opens before the snapshot is read.
func (s *Server) streamJobWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	sub, err := s.subscriber.Subscribe(ctx, id)
	if err != nil {
		s.logger.Error("subscribe failed", logging.Error(err),
			logging.String(logging.FieldJobID, id))
		s.respondError(w, http.StatusInternalServerError, "subscribing to job failed")
		return
	}
	defer sub.Close()

	job := s.loadStreamJob(w, r)
	if job == nil {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	// Reader loop exists only to observe client disconnect.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshot := snapshotEvent(job)
	if err := conn.WriteJSON(snapshot); err != nil || snapshot.Terminal() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-disconnected:
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
			if event.Terminal() {
				return
			}
		}
	}
}
