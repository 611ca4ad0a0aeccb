package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Shreyas-s47/cloudykitchen/pkg/apperr"
	"github.com/Shreyas-s47/cloudykitchen/pkg/circuitbreaker"
	"github.com/Shreyas-s47/cloudykitchen/pkg/logger"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// handleError maps an error kind onto an HTTP status. Only unexpected failures are logged.
func handleError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		respondError(w, r, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, apperr.ErrIndex):
		respondError(w, r, http.StatusConflict, "stale_index", err.Error())
	case errors.Is(err, apperr.ErrInvalidTransition):
		respondError(w, r, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, apperr.ErrUnauthorized):
		respondError(w, r, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, circuitbreaker.ErrUnavailable), status.Code(err) == codes.Unavailable:
		respondError(w, r, http.StatusServiceUnavailable, "service_unavailable", "orders service is unavailable")
	case errors.Is(err, context.DeadlineExceeded), status.Code(err) == codes.DeadlineExceeded:
		respondError(w, r, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.WithContext(r.Context(), log).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
