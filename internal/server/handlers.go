package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/queue"
	"github.com/desertthunder/reelq/internal/shared"
)

// Queue is the subset of [queue.OfflineActionQueue] served over HTTP.
type Queue interface {
	Available(ctx context.Context) bool
	AddAction(ctx context.Context, in models.ActionInput) (string, error)
	GetActions(ctx context.Context) []models.QueuedAction
	RemoveAction(ctx context.Context, id string) error
	ClearActions(ctx context.Context) error
	ProcessQueue(ctx context.Context) (*queue.Summary, error)
}

// maxBodySize bounds POST /actions payloads.
const maxBodySize = 1 << 20

// QueueHandler serves the queue API:
//
//	GET    /actions       list queued actions in replay order
//	POST   /actions       enqueue an action, responds with its id
//	DELETE /actions       clear the queue
//	DELETE /actions/{id}  remove one action
//	POST   /process       run a processing pass, responds with the summary
//	GET    /health        queue availability and connectivity
type QueueHandler struct {
	queue  Queue
	online queue.Connectivity
	logger *log.Logger
	mux    *http.ServeMux
}

// NewQueueHandler creates a handler over q. A nil online reports connectivity as always available.
func NewQueueHandler(q Queue, online queue.Connectivity, logger *log.Logger) *QueueHandler {
	if online == nil {
		online = queue.AlwaysOnline
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	h := &QueueHandler{queue: q, online: online, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /actions", h.list)
	h.mux.HandleFunc("POST /actions", h.add)
	h.mux.HandleFunc("DELETE /actions", h.clear)
	h.mux.HandleFunc("DELETE /actions/{id}", h.remove)
	h.mux.HandleFunc("POST /process", h.process)
	h.mux.HandleFunc("GET /health", h.health)
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *QueueHandler) Routes() []string {
	return []string{"/actions", "/actions/{id}", "/process", "/health"}
}

func (h *QueueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *QueueHandler) list(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.queue.GetActions(r.Context()))
}

func (h *QueueHandler) add(w http.ResponseWriter, r *http.Request) {
	var in models.ActionInput
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	id, err := h.queue.AddAction(r.Context(), in)
	if err != nil {
		h.writeQueueError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *QueueHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.RemoveAction(r.Context(), r.PathValue("id")); err != nil {
		h.writeQueueError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QueueHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.ClearActions(r.Context()); err != nil {
		h.writeQueueError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QueueHandler) process(w http.ResponseWriter, r *http.Request) {
	summary, err := h.queue.ProcessQueue(r.Context())
	if err != nil {
		h.writeQueueError(w, err)
		return
	}
	if summary.Overlapped {
		h.writeError(w, http.StatusConflict, shared.ErrPassInProgress.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

type healthResponse struct {
	Available bool `json:"available"`
	Online    bool `json:"online"`
	Pending   int  `json:"pending"`
}

func (h *QueueHandler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Available: h.queue.Available(r.Context()),
		Online:    h.online.IsOnline(),
	}
	if resp.Available {
		resp.Pending = len(h.queue.GetActions(r.Context()))
	}

	status := http.StatusOK
	if !resp.Available {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, resp)
}

func (h *QueueHandler) writeQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidAction):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrStorageUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *QueueHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *QueueHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "status", status, "error", err)
	}
}
