package api

import (
	"encoding/json"
	"net/http"

	"clipforge/internal/logging"
)

// envelope is the JSON shape of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response failed", logging.Error(err))
	}
}

func (s *Server) respondData(w http.ResponseWriter, code int, data any) {
	s.respond(w, code, envelope{Success: true, Data: data})
}

func (s *Server) respondError(w http.ResponseWriter, code int, message string) {
	s.respond(w, code, envelope{Success: false, Message: message})
}

func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(target)
}
