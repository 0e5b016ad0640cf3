package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/airview/airview/internal/api"
)

func (s *Server) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses in one place.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *api.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, api.APIError{Message: verr.Message, Code: verr.Code})
	case errors.Is(err, api.ErrAuthenticationRequired):
		s.writeJSON(w, http.StatusUnauthorized, api.APIError{Message: "authentication required", Code: "AUTH_REQUIRED"})
	case errors.Is(err, api.ErrRefreshFailed):
		// Terminal for the session; the client must run a full sign-out.
		s.writeJSON(w, http.StatusUnauthorized, api.APIError{Message: "session expired, sign in again", Code: "REFRESH_FAILED"})
	case errors.Is(err, api.ErrBackendUnavailable), errors.Is(err, api.ErrMalformedResponse):
		s.writeJSON(w, http.StatusBadGateway, api.APIError{Message: "backend unavailable", Code: "BACKEND_UNAVAILABLE"})
	default:
		s.Logger.Error("internal error", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, api.APIError{Message: "internal server error", Code: "INTERNAL_ERROR"})
	}
}

// relayBackend forwards a backend response body and status verbatim,
// preserving the backend's structured error payloads for mutations.
func (s *Server) relayBackend(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(body) == 0 {
		json.NewEncoder(w).Encode(api.APIResponse{Message: http.StatusText(status)})
		return
	}
	if json.Valid(body) {
		w.Write(body)
		return
	}
	json.NewEncoder(w).Encode(api.APIResponse{Message: string(body)})
}
