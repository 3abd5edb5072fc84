package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/saturn/pkg/governance"
)

// Ingress error codes for failures detected before the pipeline runs.
const (
	CodeInvalidJSON     = "invalid_json"
	CodeRequestTooLarge = "request_too_large"
	CodeInternalError   = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorDetail maps err onto the error envelope and its HTTP status.
// Governance errors keep their reason as the code and their category as the
// type.
func errorDetail(requestID string, err error) (int, ErrorDetail) {
	if ge, ok := governance.AsError(err); ok {
		code := ge.Reason
		if code == "" {
			code = string(ge.Kind)
		}
		return ge.HTTPStatus(), ErrorDetail{
			Code:       code,
			Message:    ge.Error(),
			Type:       ge.Category(),
			RequestID:  requestID,
			PolicyHash: ge.PolicyHash,
		}
	}
	return http.StatusInternalServerError, ErrorDetail{
		Code:      CodeInternalError,
		Message:   "an internal error occurred",
		Type:      "internal",
		RequestID: requestID,
	}
}

func writeError(w http.ResponseWriter, requestID string, err error) {
	status, detail := errorDetail(requestID, err)
	if detail.PolicyHash != "" {
		w.Header().Set(HeaderPolicyHash, detail.PolicyHash)
	}
	writeJSON(w, status, &ErrorResponse{Error: detail})
}

// writeDecodeError reports a body that could not be read as the expected
// JSON document.
func writeDecodeError(w http.ResponseWriter, requestID string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, &ErrorResponse{Error: ErrorDetail{
			Code:      CodeRequestTooLarge,
			Message:   err.Error(),
			Type:      "validation",
			RequestID: requestID,
		}})
		return
	}
	writeJSON(w, http.StatusBadRequest, &ErrorResponse{Error: ErrorDetail{
		Code:      CodeInvalidJSON,
		Message:   "request body is not valid JSON: " + err.Error(),
		Type:      "validation",
		RequestID: requestID,
	}})
}
