package server

import (
	"encoding/json"
	"net/http"

	"github.com/airview/airview/internal/api"
	"github.com/airview/airview/internal/devtools"
)

// handleDecodeJWT handles POST /api/utils/jwt.
func (s *Server) handleDecodeJWT(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, api.NewValidationError("INVALID_BODY", "request body must be {\"token\": string}"))
		return
	}

	decoded, err := devtools.DecodeJWT(req.Token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decoded)
}

// handleFormat handles POST /api/utils/format.
func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
		From  string `json:"from"`
		To    string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, api.NewValidationError("INVALID_BODY", "invalid request body"))
		return
	}

	out, err := devtools.Format(req.Input, req.From, req.To)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

// handleURLCodec handles POST /api/utils/urlcodec.
func (s *Server) handleURLCodec(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
		Mode  string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, api.NewValidationError("INVALID_BODY", "invalid request body"))
		return
	}

	out, err := devtools.URLCodec(req.Input, req.Mode)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"output": out})
}
