package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

// RouterOptions configures NewRouter. Metrics is mounted at /metrics when set
// and RateLimitPerMin > 0 limits chat requests per client address.
type RouterOptions struct {
	ChatPath        string
	Metrics         http.Handler
	RateLimitPerMin int
}

// ServeHTTP serves the chat endpoint over net/http with the same contract as
// Handle.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := correlationIDFrom(r.Header.Get)
	if res, done := preflight(r.Method); done {
		h.writeResult(w, correlationID, res)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeResult(w, correlationID, result{status: http.StatusBadRequest, body: errorResponse{Error: msgInvalidBody}})
		return
	}
	h.writeResult(w, correlationID, h.process(r.Context(), r.Method, body, correlationID))
}

func (h *Handler) writeResult(w http.ResponseWriter, correlationID string, res result) {
	for k, v := range corsHeaders() {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(headerCorrelationID, correlationID)

	payload, err := encodeBody(res.body)
	if err != nil {
		h.logger.Error("encode response", zap.String("correlation_id", correlationID), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(res.status)
	if len(payload) > 0 {
		_, _ = w.Write(payload)
	}
}

// NewRouter mounts the chat handler together with /healthz and /metrics.
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	chatPath := strings.TrimSpace(opts.ChatPath)
	if chatPath == "" {
		chatPath = "/api/chat"
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	var chat http.Handler = h
	if opts.RateLimitPerMin > 0 {
		chat = h.rateLimit(newRateLimiter(opts.RateLimitPerMin), chat)
	}
	r.Handle(chatPath, chat)
	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
