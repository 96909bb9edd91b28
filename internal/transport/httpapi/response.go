package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"sdkbridge/internal/bridge"
	"sdkbridge/internal/command"
)

// Response is the envelope of every JSON endpoint.
type Response struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

const (
	codeRateLimited   = "rate_limited"
	codeBadRequest    = "bad_request"
	codeUnavailable   = "unavailable"
	codeInternalError = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are out; an encode error only means the client went away
	_ = json.NewEncoder(w).Encode(resp)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Data: data})
}

func fail(w http.ResponseWriter, status int, code, message, details string) {
	writeJSON(w, status, Response{Error: &Error{Code: code, Message: message, Details: details}})
}

// statusFor maps a command error code to its HTTP status.
func statusFor(code command.Code) int {
	switch code {
	case command.CodeInvalidArguments:
		return http.StatusBadRequest
	case command.CodeNotImplemented:
		return http.StatusNotImplemented
	case command.CodeSDK:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err and returns the code it was reported under.
func writeError(w http.ResponseWriter, err error) string {
	if e, isCmd := command.AsError(err); isCmd {
		fail(w, statusFor(e.Code), string(e.Code), e.Message, e.Details)
		return string(e.Code)
	}
	if errors.Is(err, bridge.ErrClosed) {
		fail(w, http.StatusServiceUnavailable, codeUnavailable, "bridge is shutting down", "")
		return codeUnavailable
	}
	fail(w, http.StatusInternalServerError, codeInternalError, "internal error", err.Error())
	return codeInternalError
}
