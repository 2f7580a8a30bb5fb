// Package handler adapts API Gateway proxy events to the hint service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hint-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// HintUseCase is what the transport needs from the service layer.
type HintUseCase interface {
	SubmitTurn(ctx context.Context, in usecase.TurnInput) (usecase.TurnOutput, error)
	ClearSession(ctx context.Context, sessionID string) (bool, error)
}

type Handler struct {
	uc     HintUseCase
	logger *zap.Logger
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type clearRequest struct {
	SessionID string `json:"session_id"`
}

type clearResponse struct {
	SessionID string `json:"session_id"`
	Cleared   bool   `json:"cleared"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewHandler(uc HintUseCase, logger *zap.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{uc: uc, logger: logger}, nil
}

// Handle routes POST /chat, POST /clear-session and GET /health.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := headerValue(req.Headers, correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}
	logger := h.logger.With(zap.String("correlation_id", corrID))

	path := strings.TrimRight(req.Path, "/")
	switch {
	case req.HTTPMethod == http.MethodGet && strings.HasSuffix(path, "/health"):
		return jsonResponse(http.StatusOK, corrID, map[string]string{"status": "ok"}), nil
	case req.HTTPMethod == http.MethodPost && strings.HasSuffix(path, "/clear-session"):
		return h.clear(ctx, req, corrID, logger), nil
	case req.HTTPMethod == http.MethodPost && strings.HasSuffix(path, "/chat"):
		return h.chat(ctx, req, corrID, logger), nil
	}
	return jsonResponse(http.StatusNotFound, corrID, errorResponse{
		Error:   "NOT_FOUND",
		Message: "Unknown route.",
	}), nil
}

func (h *Handler) chat(ctx context.Context, req events.APIGatewayProxyRequest, corrID string, logger *zap.Logger) events.APIGatewayProxyResponse {
	var body chatRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return invalidBody(corrID)
	}

	out, err := h.uc.SubmitTurn(ctx, usecase.TurnInput{SessionID: body.SessionID, Text: body.Message})
	if err != nil {
		return errorResponseFor(err, corrID, logger)
	}
	logger.Info("chat turn served",
		zap.String("session_id", out.SessionID),
		zap.String("decision", string(out.Result.Decision)),
		zap.String("fallback_tier", string(out.Result.FallbackTier)),
	)
	return jsonResponse(http.StatusOK, corrID, chatResponse{Response: out.Text, SessionID: out.SessionID})
}

func (h *Handler) clear(ctx context.Context, req events.APIGatewayProxyRequest, corrID string, logger *zap.Logger) events.APIGatewayProxyResponse {
	var body clearRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return invalidBody(corrID)
	}

	removed, err := h.uc.ClearSession(ctx, body.SessionID)
	if err != nil {
		return errorResponseFor(err, corrID, logger)
	}
	return jsonResponse(http.StatusOK, corrID, clearResponse{SessionID: body.SessionID, Cleared: removed})
}

func invalidBody(corrID string) events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusBadRequest, corrID, errorResponse{
		Error:   string(usecase.ErrorInvalidInput),
		Message: "Request body must be JSON.",
	})
}

// errorResponseFor never exposes the wrapped cause to the caller.
func errorResponseFor(err error, corrID string, logger *zap.Logger) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logger.Error("unexpected use case error", zap.Error(err))
		return jsonResponse(http.StatusInternalServerError, corrID, errorResponse{
			Error:   string(usecase.ErrorInternal),
			Message: "My circuits are fried, detective. Try again in a moment.",
		})
	}

	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{
			Error:   string(ucErr.Code),
			Message: inputMessage(ucErr.Reason),
		})
	case usecase.ErrorSessionLimit:
		logger.Warn("session limit reached", zap.String("reason", ucErr.Reason))
		return jsonResponse(http.StatusServiceUnavailable, corrID, errorResponse{
			Error:   string(ucErr.Code),
			Message: "Too many detectives on the case right now. Try again soon.",
		})
	default:
		logger.Error("use case failed", zap.String("code", string(ucErr.Code)), zap.String("reason", ucErr.Reason), zap.Error(ucErr.Err))
		return jsonResponse(http.StatusInternalServerError, corrID, errorResponse{
			Error:   string(usecase.ErrorInternal),
			Message: "My circuits are fried, detective. Try again in a moment.",
		})
	}
}

func inputMessage(reason string) string {
	switch reason {
	case "empty_message":
		return "Ask me something first, detective."
	case "message_too_long":
		return "That's a novel, not a question. Keep it shorter."
	case "invalid_session_id":
		return "That session id doesn't look right."
	}
	return "Invalid request."
}

func jsonResponse(status int, corrID string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR","message":"encoding failure"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}

// headerValue looks a header up case-insensitively.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
