package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/blockdeck/blockdeck/internal/logging"
	"github.com/blockdeck/blockdeck/internal/marketplace"
)

type templateListResponse struct {
	Templates []marketplace.Template `json:"templates"`
	Total     int                    `json:"total"`
	Page      int                    `json:"page"`
	PerPage   int                    `json:"per_page"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := marketplace.Filter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Page:     queryInt(r, "page"),
		PerPage:  queryInt(r, "per_page"),
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = marketplace.DefaultPerPage
	}

	items, total, err := s.templates.List(r.Context(), f)
	if err != nil {
		logging.WithContext(r.Context()).Error("template list failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "template listing failed")
		return
	}
	if items == nil {
		items = []marketplace.Template{}
	}

	s.sendJSON(w, http.StatusOK, templateListResponse{
		Templates: items,
		Total:     total,
		Page:      f.Page,
		PerPage:   f.PerPage,
	})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.templates.BySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		logging.WithContext(r.Context()).Error("template lookup failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "template lookup failed")
		return
	}
	if tpl == nil {
		s.sendError(w, http.StatusNotFound, "template not found")
		return
	}
	s.sendJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleTemplateDownload(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	ok, err := s.templates.RecordDownload(r.Context(), slug)
	if err != nil {
		logging.WithContext(r.Context()).Error("download count failed",
			zap.String("slug", slug), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "download recording failed")
		return
	}
	if !ok {
		s.sendError(w, http.StatusNotFound, "template not found")
		return
	}

	tpl, err := s.templates.BySlug(r.Context(), slug)
	if err != nil || tpl == nil {
		s.sendError(w, http.StatusInternalServerError, "template lookup failed")
		return
	}
	s.sendJSON(w, http.StatusOK, tpl)
}
