package handler

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// Handle serves an API Gateway proxy event. Failures are reported in the
// response; the returned error is always nil so API Gateway never substitutes
// its own error page.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationIDFrom(func(name string) string {
		return headerValue(req.Headers, name)
	})

	method := strings.ToUpper(req.HTTPMethod)
	if res, done := preflight(method); done {
		return h.lambdaResponse(correlationID, res), nil
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return h.lambdaResponse(correlationID, result{
				status: http.StatusBadRequest,
				body:   errorResponse{Error: msgInvalidBody},
			}), nil
		}
		body = decoded
	}

	return h.lambdaResponse(correlationID, h.process(ctx, method, body, correlationID)), nil
}

func (h *Handler) lambdaResponse(correlationID string, res result) events.APIGatewayProxyResponse {
	headers := corsHeaders()
	headers["Content-Type"] = "application/json"
	headers[headerCorrelationID] = correlationID

	payload, err := encodeBody(res.body)
	if err != nil {
		h.logger.Error("encode response", zap.String("correlation_id", correlationID), zap.Error(err))
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Headers: headers}
	}
	return events.APIGatewayProxyResponse{StatusCode: res.status, Headers: headers, Body: string(payload)}
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
