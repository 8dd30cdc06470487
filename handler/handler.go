package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"site-assistant/internal/usecase"
)

const (
	headerCorrelationID    = "X-Correlation-Id"
	maxCorrelationIDLength = 128

	// ApologyText is the only failure text a visitor ever sees.
	ApologyText = "Sorry, I'm having trouble processing your request. Please try again."

	msgMissingMessage   = "Missing message"
	msgMessageTooLong   = "Message too long"
	msgInvalidBody      = "Invalid request body"
	msgMethodNotAllowed = "Method not allowed"
	msgTooManyRequests  = "Too many requests"
	msgProcessingFailed = "Failed to process message"
)

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

// messageFields are the accepted body keys, current name first.
var messageFields = []string{"input_as_text", "message"}

type chatResponse struct {
	OutputText string `json:"output_text"`
	Success    bool   `json:"success"`
}

type errorResponse struct {
	Error      string `json:"error"`
	OutputText string `json:"output_text,omitempty"`
}

// result is the transport-neutral outcome of one request. A nil body means
// the response has no body.
type result struct {
	status int
	body   any
}

// Handler adapts the chat use case to HTTP. Handle serves API Gateway proxy
// events on AWS Lambda and ServeHTTP serves net/http.
type Handler struct {
	uc     ChatUseCase
	logger *zap.Logger
}

func NewHandler(uc ChatUseCase, logger *zap.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{uc: uc, logger: logger}, nil
}

// preflight answers every method other than POST without looking at the
// body. The bool is false for POST.
func preflight(method string) (result, bool) {
	switch method {
	case http.MethodPost:
		return result{}, false
	case http.MethodOptions:
		return result{status: http.StatusOK}, true
	default:
		return result{status: http.StatusMethodNotAllowed, body: errorResponse{Error: msgMethodNotAllowed}}, true
	}
}

func (h *Handler) process(ctx context.Context, method string, body []byte, correlationID string) result {
	if res, done := preflight(method); done {
		return res
	}

	message, ok := parseMessage(body)
	if !ok {
		return result{status: http.StatusBadRequest, body: errorResponse{Error: msgInvalidBody}}
	}
	if message == "" {
		return result{status: http.StatusBadRequest, body: errorResponse{Error: msgMissingMessage}}
	}

	out, err := h.uc.Chat(ctx, usecase.ChatInput{Message: message, CorrelationID: correlationID})
	if err != nil {
		return h.failure(correlationID, err)
	}

	h.logger.Info("chat request completed",
		zap.String("correlation_id", correlationID),
		zap.String("request_id", out.RequestID),
		zap.String("category", string(out.Category)),
	)
	return result{status: http.StatusOK, body: chatResponse{OutputText: out.Text, Success: true}}
}

func (h *Handler) failure(correlationID string, err error) result {
	var usecaseErr *usecase.Error
	if errors.As(err, &usecaseErr) && usecaseErr.Code == usecase.ErrorInvalidInput {
		msg := msgMissingMessage
		if usecaseErr.Reason == "message_too_long" {
			msg = msgMessageTooLong
		}
		return result{status: http.StatusBadRequest, body: errorResponse{Error: msg}}
	}

	fields := []zap.Field{zap.String("correlation_id", correlationID), zap.Error(err)}
	if usecaseErr != nil {
		fields = append(fields, zap.String("code", string(usecaseErr.Code)), zap.String("reason", usecaseErr.Reason))
	}
	h.logger.Error("chat request failed", fields...)

	return result{
		status: http.StatusInternalServerError,
		body:   errorResponse{Error: msgProcessingFailed, OutputText: ApologyText},
	}
}

// parseMessage returns the first non-blank string among messageFields. A
// field holding a non-string value is skipped. The bool is false when the
// body is not a JSON object.
func parseMessage(body []byte) (string, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", true
	}
	if body[0] != '{' {
		return "", false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", false
	}
	for _, key := range messageFields {
		var candidate string
		if err := json.Unmarshal(fields[key], &candidate); err != nil {
			continue
		}
		if s := strings.TrimSpace(candidate); s != "" {
			return s, true
		}
	}
	return "", true
}

func corsHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}
}

// correlationIDFrom echoes the caller's header when it is present and at most
// maxCorrelationIDLength bytes; otherwise it generates one.
func correlationIDFrom(get func(string) string) string {
	if id := strings.TrimSpace(get(headerCorrelationID)); id != "" && len(id) <= maxCorrelationIDLength {
		return id
	}
	return newUUID()
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	return json.Marshal(body)
}

var newUUID = func() string {
	return uuid.NewString()
}
