package api

import (
	"encoding/json"
	"net/http"

	apperrors "software-quoter/internal/common/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error": {...}} with a status derived from its code.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := apperrors.Normalize(err)
	status := statusFor(stdErr.Code)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", map[string]interface{}{
			"path":      r.URL.Path,
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
	}

	writeJSON(w, status, map[string]interface{}{
		"error": errorBody{
			Code:    string(stdErr.Code),
			Message: apperrors.UserMessage(stdErr),
			Details: stdErr.Details,
		},
	})
}

func statusFor(code apperrors.ErrorCode) int {
	switch {
	case code == apperrors.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case code == apperrors.ErrCodeInputParsingFailed:
		return http.StatusBadRequest
	case code == apperrors.ErrCodeSessionNotFound, code == apperrors.ErrCodeFileIndexOutOfRange:
		return http.StatusNotFound
	case code == apperrors.ErrCodeSubmissionInProgress,
		code == apperrors.ErrCodeInvalidStateTransition,
		code == apperrors.ErrCodeNoResult:
		return http.StatusConflict
	case apperrors.IsGeneratorFailure(code), code == apperrors.ErrCodeDeliveryFailed:
		return http.StatusBadGateway
	case code == apperrors.ErrCodeExportUnavailable,
		code == apperrors.ErrCodeDeliveryUnavailable,
		code == apperrors.ErrCodeSessionStoreFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
