package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/apperrors"
)

// maxBodyBytes bounds JSON and form request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeError is ErrorResponse that logs encoding failures.
func writeError(w http.ResponseWriter, logger *zap.Logger, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeJSON is WriteJSON that logs encoding failures.
func writeJSON(w http.ResponseWriter, logger *zap.Logger, statusCode int, data interface{}) {
	if err := WriteJSON(w, statusCode, data); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// writeServiceError maps a service error to its HTTP status.
// notFound is the message used for apperrors.ErrNotFound; op names the
// operation in the log line written for unexpected errors.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, notFound, op string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		writeError(w, logger, http.StatusBadRequest, "invalid_input", inputMessage(err))
	case errors.Is(err, apperrors.ErrInvalidAssignee):
		writeError(w, logger, http.StatusBadRequest, "invalid_assignee", "Assignee does not exist")
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		writeError(w, logger, http.StatusUnauthorized, "invalid_credentials", "Incorrect username or password")
	case errors.Is(err, apperrors.ErrForbidden):
		writeError(w, logger, http.StatusForbidden, "forbidden", "You do not have access to this project")
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, "not_found", notFound)
	case errors.Is(err, apperrors.ErrAlreadyMember):
		writeError(w, logger, http.StatusConflict, "already_member", "User is already a member of this project")
	case errors.Is(err, apperrors.ErrConflict):
		writeError(w, logger, http.StatusConflict, "conflict", err.Error())
	default:
		logger.Error("Failed to "+op, zap.Error(err))
		writeError(w, logger, http.StatusInternalServerError, "internal_error", "Failed to "+op)
	}
}

// inputMessage strips the sentinel suffix from a validation error.
func inputMessage(err error) string {
	return strings.TrimSuffix(err.Error(), ": "+apperrors.ErrInvalidInput.Error())
}
