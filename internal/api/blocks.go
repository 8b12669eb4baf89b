package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/blockdeck/blockdeck/internal/filetree"
	"github.com/blockdeck/blockdeck/internal/logging"
	"github.com/blockdeck/blockdeck/internal/registry"
	"github.com/blockdeck/blockdeck/internal/storage"
)

// blockSummary is the listing shape: no file details.
type blockSummary struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Files    int    `json:"files"`
}

type blockListResponse struct {
	Blocks     []blockSummary `json:"blocks"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	Categories []string       `json:"categories"`
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := registry.Filter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Page:     queryInt(r, "page"),
		PerPage:  queryInt(r, "per_page"),
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = registry.DefaultPerPage
	}

	blocks, total := s.registry.List(f)

	out := make([]blockSummary, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockSummary{
			Name:     b.Name,
			Title:    b.Title,
			Category: b.Category,
			Files:    len(b.Files),
		})
	}

	s.sendJSON(w, http.StatusOK, blockListResponse{
		Blocks:     out,
		Total:      total,
		Page:       f.Page,
		PerPage:    f.PerPage,
		Categories: s.registry.Categories(),
	})
}

type blockDetailResponse struct {
	Name     string               `json:"name"`
	Title    string               `json:"title"`
	Category string               `json:"category"`
	Files    []registry.BlockFile `json:"files"`
	Tree     []*filetree.Node     `json:"tree"`
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	block, err := s.registry.Get(name)
	if err != nil {
		if errors.Is(err, registry.ErrBlockNotFound) {
			s.sendError(w, http.StatusNotFound, "block not found")
			return
		}
		s.sendError(w, http.StatusInternalServerError, "registry lookup failed")
		return
	}

	files := s.registry.NormalizedFiles(block)
	entries := make([]filetree.Entry, 0, len(files))
	for _, f := range files {
		entries = append(entries, filetree.Entry{Path: f.Path, Target: f.Target})
	}

	s.sendJSON(w, http.StatusOK, blockDetailResponse{
		Name:     block.Name,
		Title:    block.Title,
		Category: block.Category,
		Files:    files,
		Tree:     filetree.Build(entries),
	})
}

func (s *Server) handleBlockFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path := r.PathValue("path")

	block, err := s.registry.Get(name)
	if err != nil {
		s.sendError(w, http.StatusNotFound, "block not found")
		return
	}

	file, ok := findBlockFile(s.registry, block, path)
	if !ok {
		s.sendError(w, http.StatusNotFound, "file not in block")
		return
	}

	key := s.registry.Resolve(file.Path, block.Name)
	body, size, err := s.source.GetObject(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.sendError(w, http.StatusNotFound, "file content not found")
			return
		}
		logging.WithContext(r.Context()).Error("block file fetch failed",
			zap.String("key", key), zap.Error(err))
		s.sendError(w, http.StatusBadGateway, "content source unavailable")
		return
	}
	defer body.Close()

	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	io.Copy(w, body)
}

// findBlockFile matches a request path against the block's file list,
// accepting either the manifest form or the normalized form.
func findBlockFile(reg *registry.Registry, block *registry.Block, path string) (registry.BlockFile, bool) {
	for _, f := range block.Files {
		if f.Path == path || reg.Normalize(f.Path, block.Name) == path {
			return f, true
		}
	}
	return registry.BlockFile{}, false
}
