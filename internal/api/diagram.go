package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/blockdeck/blockdeck/internal/logging"
)

type diagramRequest struct {
	Prompt string `json:"prompt"`
}

const maxPromptLength = 4096

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	var req diagramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		s.sendError(w, http.StatusBadRequest, "prompt required")
		return
	}
	if len(req.Prompt) > maxPromptLength {
		s.sendError(w, http.StatusBadRequest, "prompt too long")
		return
	}

	d, err := s.diagrams.Generate(r.Context(), req.Prompt)
	if err != nil {
		logging.WithContext(r.Context()).Error("diagram generation failed", zap.Error(err))
		s.sendError(w, http.StatusBadGateway, "diagram generation failed")
		return
	}
	s.sendJSON(w, http.StatusOK, d)
}
