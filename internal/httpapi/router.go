// Package httpapi is the transport adapter: it frames job operations over
// HTTP and maps the core error kinds to status codes. No job semantics live
// here.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bio-mcp/interprod/internal/executor"
	"github.com/bio-mcp/interprod/internal/jobs"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type router struct {
	manager  *jobs.Manager
	streamer *jobs.ProgressStreamer
}

func NewRouter(manager *jobs.Manager, streamer *jobs.ProgressStreamer) http.Handler {
	rt := &router{manager: manager, streamer: streamer}
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Get("/healthz", rt.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", rt.handleSubmit)
		r.Get("/", rt.handleList)
		r.Get("/{id}", rt.handleStatus)
		r.Get("/{id}/result", rt.handleResult)
		r.Get("/{id}/progress", rt.handleProgress)
		r.Delete("/{id}", rt.handleCancel)
	})
	return r
}

func (rt *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *router) handleSubmit(w http.ResponseWriter, req *http.Request) {
	var body jobs.Request
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := rt.manager.Submit(req.Context(), body)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"job_id": id,
		"state":  string(jobs.StatePending),
	})
}

func (rt *router) handleStatus(w http.ResponseWriter, req *http.Request) {
	job, err := rt.manager.Status(chi.URLParam(req, "id"))
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, statusPayload(job))
}

func (rt *router) handleResult(w http.ResponseWriter, req *http.Request) {
	job, err := rt.manager.Result(chi.URLParam(req, "id"))
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"job_id":      job.ID,
		"state":       job.State,
		"result_path": job.ResultPath,
		"finished_at": job.FinishedAt,
	})
}

func (rt *router) handleCancel(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if err := rt.manager.Cancel(id); err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"job_id": id,
		"status": "cancellation requested",
	})
}

func (rt *router) handleList(w http.ResponseWriter, req *http.Request) {
	f := jobs.Filter{State: jobs.State(req.URL.Query().Get("state"))}
	if v := req.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	list := rt.manager.List(f)
	payload := make([]map[string]any, 0, len(list))
	for _, job := range list {
		payload = append(payload, statusPayload(job))
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"jobs": payload})
}

// handleProgress upgrades to a websocket and streams the tool's progress
// lines until the client disconnects or the job finishes.
func (rt *router) handleProgress(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if _, err := rt.manager.Status(id); err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "job_id", id, "error", err)
		return
	}
	rt.streamer.Subscribe(id, conn)
	defer rt.streamer.Unsubscribe(id, conn)

	for {
		if _, _, err := conn.NextReader(); err != nil {
			conn.Close()
			return
		}
	}
}

func statusPayload(job *jobs.Job) map[string]any {
	p := map[string]any{
		"job_id":       job.ID,
		"state":        job.State,
		"priority":     job.Priority,
		"submitted_at": job.SubmittedAt,
	}
	if job.StartedAt != nil {
		p["started_at"] = job.StartedAt
	}
	if job.FinishedAt != nil {
		p["finished_at"] = job.FinishedAt
	}
	if job.Progress != "" {
		p["progress"] = job.Progress
	}
	if job.Error != nil {
		p["error"] = job.Error
	}
	return p
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, executor.ErrSizeLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, jobs.ErrInvalidRequest), errors.Is(err, jobs.ErrInvalidPriority):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrResultNotReady):
		return http.StatusConflict
	case errors.Is(err, jobs.ErrJobCancelled):
		return http.StatusGone
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrStopped):
		return http.StatusServiceUnavailable
	}
	var execErr *jobs.ExecError
	if errors.As(err, &execErr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
		)
	})
}
