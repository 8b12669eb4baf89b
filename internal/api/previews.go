package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/blockdeck/blockdeck/internal/events"
	"github.com/blockdeck/blockdeck/internal/registry"
	"github.com/blockdeck/blockdeck/internal/session"
)

type openPreviewRequest struct {
	Block string `json:"block"`
}

func (s *Server) handleOpenPreview(w http.ResponseWriter, r *http.Request) {
	var req openPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Block == "" {
		s.sendError(w, http.StatusBadRequest, "block name required")
		return
	}

	block, err := s.registry.Get(req.Block)
	if err != nil {
		if errors.Is(err, registry.ErrBlockNotFound) {
			s.sendError(w, http.StatusNotFound, "block not found")
			return
		}
		s.sendError(w, http.StatusInternalServerError, "registry lookup failed")
		return
	}

	snap := s.sessions.Open(block)
	s.sendJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		s.sendError(w, http.StatusNotFound, "preview session not found")
		return
	}
	s.sendJSON(w, http.StatusOK, snap)
}

type selectFileRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req selectFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.sendError(w, http.StatusBadRequest, "file path required")
		return
	}

	snap, ok := s.sessions.Get(id)
	if !ok {
		s.sendError(w, http.StatusNotFound, "preview session not found")
		return
	}

	block, err := s.registry.Get(snap.Block)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "registry lookup failed")
		return
	}

	file, ok := findBlockFile(s.registry, block, req.Path)
	if !ok {
		s.sendError(w, http.StatusNotFound, "file not in block")
		return
	}

	updated, ok := s.sessions.SelectFile(id, file)
	if !ok {
		s.sendError(w, http.StatusNotFound, "preview session not found")
		return
	}
	s.sendJSON(w, http.StatusOK, updated)
}

type setScreenRequest struct {
	Screen string `json:"screen"`
}

func (s *Server) handleSetScreen(w http.ResponseWriter, r *http.Request) {
	var req setScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	size := session.ScreenSize(req.Screen)
	if !session.ValidScreenSize(size) {
		s.sendError(w, http.StatusBadRequest, "screen must be mobile, tablet, or desktop")
		return
	}

	snap, ok := s.sessions.SetScreenSize(r.PathValue("id"), size)
	if !ok {
		s.sendError(w, http.StatusNotFound, "preview session not found")
		return
	}
	s.sendJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClosePreview(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Close(r.PathValue("id")) {
		s.sendError(w, http.StatusNotFound, "preview session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePreviewEvents streams this session's events over SSE. Events
// for other sessions on the shared broadcaster are filtered out.
func (s *Server) handlePreviewEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.sessions.Get(id); !ok {
		s.sendError(w, http.StatusNotFound, "preview session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.SessionID != id {
				continue
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
			if event.Type == events.EventSessionEnd {
				return
			}
		}
	}
}
