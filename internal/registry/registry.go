// Package registry loads the build-time block manifest and resolves
// block names to their source file lists. The manifest is generated at
// packaging time (see cmd/manifest-gen) and is read-only at runtime.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrBlockNotFound is returned when a requested block name is absent
// from the manifest. It surfaces to the client as a 404.
var ErrBlockNotFound = errors.New("block not found")

// DefaultSourceRoot is the conventional top-level directory that block
// source paths live under in the manifest.
const DefaultSourceRoot = "src/blocks"

// BlockFile is one source file of a block. Path is relative to the
// block's source root. Target, when set, is the display path shown in
// the file tree instead of the literal source path (used when a shared
// file is reused across blocks under a project-relative install path).
type BlockFile struct {
	Path   string `json:"path"`
	Target string `json:"target,omitempty"`
}

// Block is a named, self-contained UI page-section example with an
// ordered set of source files. The file list order is significant: the
// first file is the default selection when a preview opens.
type Block struct {
	Name     string      `json:"name"`
	Title    string      `json:"title"`
	Category string      `json:"category"`
	Files    []BlockFile `json:"files"`
}

// Manifest is the on-disk registry document.
type Manifest struct {
	GeneratedAt string  `json:"generated_at,omitempty"`
	SourceRoot  string  `json:"source_root,omitempty"`
	Blocks      []Block `json:"blocks"`
}

// Registry is the immutable in-memory block catalog. Safe for
// concurrent reads without synchronization.
type Registry struct {
	sourceRoot string
	order      []string
	blocks     map[string]*Block
}

// Load reads and parses a manifest file and builds the registry. A
// non-empty sourceRoot overrides the manifest's own value.
func Load(path, sourceRoot string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if sourceRoot != "" {
		m.SourceRoot = sourceRoot
	}
	return New(&m)
}

// New builds a registry from a parsed manifest. Every block must have a
// non-empty file list; duplicate block names are rejected.
func New(m *Manifest) (*Registry, error) {
	root := m.SourceRoot
	if root == "" {
		root = DefaultSourceRoot
	}
	r := &Registry{
		sourceRoot: strings.Trim(root, "/"),
		blocks:     make(map[string]*Block, len(m.Blocks)),
	}
	for i := range m.Blocks {
		b := m.Blocks[i]
		if b.Name == "" {
			return nil, fmt.Errorf("manifest block %d has no name", i)
		}
		if len(b.Files) == 0 {
			return nil, fmt.Errorf("block %s has an empty file list", b.Name)
		}
		if _, dup := r.blocks[b.Name]; dup {
			return nil, fmt.Errorf("duplicate block name %s", b.Name)
		}
		r.blocks[b.Name] = &b
		r.order = append(r.order, b.Name)
	}
	return r, nil
}

// SourceRoot returns the manifest's source root (no leading or trailing slash).
func (r *Registry) SourceRoot() string {
	return r.sourceRoot
}

// Get returns the block with the given name or ErrBlockNotFound.
func (r *Registry) Get(name string) (*Block, error) {
	b, ok := r.blocks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, name)
	}
	return b, nil
}

// Len returns the number of blocks in the registry.
func (r *Registry) Len() int {
	return len(r.blocks)
}

// Categories returns the distinct block categories in first-seen order.
func (r *Registry) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, name := range r.order {
		c := r.blocks[name].Category
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		cats = append(cats, c)
	}
	return cats
}

// Filter narrows a block listing. Zero values mean "no constraint".
type Filter struct {
	Category string
	Query    string // case-insensitive substring match on name and title
	Page     int    // 1-based; 0 means 1
	PerPage  int    // 0 means DefaultPerPage
}

// DefaultPerPage is the page size used when Filter.PerPage is zero.
const DefaultPerPage = 24

// List returns the blocks matching the filter, in manifest order, plus
// the total match count before pagination.
func (r *Registry) List(f Filter) ([]*Block, int) {
	var matched []*Block
	q := strings.ToLower(f.Query)
	for _, name := range r.order {
		b := r.blocks[name]
		if f.Category != "" && b.Category != f.Category {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(b.Name), q) &&
			!strings.Contains(strings.ToLower(b.Title), q) {
			continue
		}
		matched = append(matched, b)
	}

	total := len(matched)
	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	start := (page - 1) * perPage
	if start >= total {
		return nil, total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matched[start:end], total
}
