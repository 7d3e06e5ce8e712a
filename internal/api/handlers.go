// Package api exposes the HTTP surface: synchronous sends, async
// enqueue, and read access to the delivery log.
package api

import (
	"net/http"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailroom/internal/maillog"
	"github.com/ignite/mailroom/internal/message"
	"github.com/ignite/mailroom/internal/pipeline"
	"github.com/ignite/mailroom/internal/pkg/httputil"
	"github.com/ignite/mailroom/internal/worker"
)

// Handlers bundles the dependencies the HTTP handlers need.
type Handlers struct {
	pipeline *pipeline.Pipeline
	logs     *maillog.Store

	// redis enables async enqueue; nil means synchronous sends only.
	redis *redis.Client
	queue string
}

// NewHandlers creates the handler set. rc may be nil when no queue is
// configured.
func NewHandlers(p *pipeline.Pipeline, logs *maillog.Store, rc *redis.Client, queue string) *Handlers {
	return &Handlers{pipeline: p, logs: logs, redis: rc, queue: queue}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// SendRequest is the POST /api/v1/messages payload.
type SendRequest struct {
	EmailType string                   `json:"email_type"`
	Message   *message.OutboundMessage `json:"message"`

	// Async enqueues instead of sending in-request. Requires a queue.
	Async bool `json:"async,omitempty"`
}

// SendMessage runs one message through the pipeline, or enqueues it when
// async was requested.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Message == nil {
		httputil.BadRequest(w, "message is required")
		return
	}
	if req.EmailType == "" {
		httputil.BadRequest(w, "email_type is required")
		return
	}

	if req.Async {
		if h.redis == nil {
			httputil.BadRequest(w, "async sends are not configured")
			return
		}
		job := &worker.Job{EmailType: req.EmailType, Message: req.Message}
		if err := worker.Enqueue(r.Context(), h.redis, h.queue, job); err != nil {
			httputil.InternalError(w, err)
			return
		}
		httputil.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	out, err := h.pipeline.Send(r.Context(), req.Message, req.EmailType)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, out)
}

// RecentLogs returns the latest delivery records.
func (h *Handlers) RecentLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.logs.RecentSent(r.Context(), queryLimit(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entries == nil {
		entries = []*maillog.Entry{}
	}
	httputil.OK(w, entries)
}

// RecentSkips returns the latest skip records.
func (h *Handlers) RecentSkips(w http.ResponseWriter, r *http.Request) {
	entries, err := h.logs.RecentSkipped(r.Context(), queryLimit(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entries == nil {
		entries = []*maillog.SkipEntry{}
	}
	httputil.OK(w, entries)
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
