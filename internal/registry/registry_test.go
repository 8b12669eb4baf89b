package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testManifest() *Manifest {
	return &Manifest{
		SourceRoot: "src/blocks",
		Blocks: []Block{
			{
				Name:     "hero-01",
				Title:    "Hero 01",
				Category: "hero",
				Files: []BlockFile{
					{Path: "src/blocks/hero-01/hero-01.tsx"},
					{Path: "src/blocks/hero-01/hero-01.css", Target: "hero-01.css"},
				},
			},
			{
				Name:     "pricing-03",
				Title:    "Pricing Table",
				Category: "pricing",
				Files: []BlockFile{
					{Path: "src/blocks/pricing-03/pricing-03.tsx"},
					{Path: "src/blocks/pricing-03/components/tier-card.tsx"},
				},
			},
			{
				Name:     "hero-02",
				Title:    "Hero Split",
				Category: "hero",
				Files: []BlockFile{
					{Path: "src/blocks/hero-02/hero-02.tsx"},
				},
			},
		},
	}
}

func mustRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(testManifest())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestGet(t *testing.T) {
	r := mustRegistry(t)

	b, err := r.Get("hero-01")
	if err != nil {
		t.Fatalf("Get(hero-01): %v", err)
	}
	if b.Title != "Hero 01" {
		t.Errorf("expected title Hero 01, got %s", b.Title)
	}
	if len(b.Files) != 2 {
		t.Errorf("expected 2 files, got %d", len(b.Files))
	}
}

func TestGetNotFound(t *testing.T) {
	r := mustRegistry(t)

	_, err := r.Get("no-such-block")
	if !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestNewRejectsEmptyFileList(t *testing.T) {
	m := &Manifest{Blocks: []Block{{Name: "empty"}}}
	if _, err := New(m); err == nil {
		t.Fatal("expected error for empty file list")
	}
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	m := &Manifest{Blocks: []Block{
		{Name: "dup", Files: []BlockFile{{Path: "a.tsx"}}},
		{Name: "dup", Files: []BlockFile{{Path: "b.tsx"}}},
	}}
	if _, err := New(m); err == nil {
		t.Fatal("expected error for duplicate block name")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	data, err := json.Marshal(testManifest())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Len() != 3 {
		t.Errorf("expected 3 blocks, got %d", r.Len())
	}
	if r.SourceRoot() != "src/blocks" {
		t.Errorf("unexpected source root %q", r.SourceRoot())
	}

	override, err := Load(path, "packages/ui")
	if err != nil {
		t.Fatalf("Load with override: %v", err)
	}
	if override.SourceRoot() != "packages/ui" {
		t.Errorf("override source root %q", override.SourceRoot())
	}
}

func TestCategoriesFirstSeenOrder(t *testing.T) {
	r := mustRegistry(t)
	cats := r.Categories()
	want := []string{"hero", "pricing"}
	if len(cats) != len(want) {
		t.Fatalf("expected %v, got %v", want, cats)
	}
	for i := range want {
		if cats[i] != want[i] {
			t.Errorf("category %d: expected %s, got %s", i, want[i], cats[i])
		}
	}
}

func TestListFilters(t *testing.T) {
	r := mustRegistry(t)

	tests := []struct {
		name      string
		filter    Filter
		wantNames []string
		wantTotal int
	}{
		{"all", Filter{}, []string{"hero-01", "pricing-03", "hero-02"}, 3},
		{"category", Filter{Category: "hero"}, []string{"hero-01", "hero-02"}, 2},
		{"query name", Filter{Query: "pricing"}, []string{"pricing-03"}, 1},
		{"query title", Filter{Query: "split"}, []string{"hero-02"}, 1},
		{"no match", Filter{Query: "zzz"}, nil, 0},
		{"paged", Filter{Page: 2, PerPage: 2}, []string{"hero-02"}, 3},
		{"page past end", Filter{Page: 9, PerPage: 2}, nil, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total := r.List(tt.filter)
			if total != tt.wantTotal {
				t.Errorf("total: expected %d, got %d", tt.wantTotal, total)
			}
			if len(got) != len(tt.wantNames) {
				t.Fatalf("expected %d blocks, got %d", len(tt.wantNames), len(got))
			}
			for i, b := range got {
				if b.Name != tt.wantNames[i] {
					t.Errorf("block %d: expected %s, got %s", i, tt.wantNames[i], b.Name)
				}
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	r := mustRegistry(t)

	tests := []struct {
		path, block, want string
	}{
		{"src/blocks/hero-01/hero-01.tsx", "hero-01", "hero-01.tsx"},
		{"src/blocks/hero-01/css/hero.css", "hero-01", "css/hero.css"},
		// Prefix for a different block is left alone.
		{"src/blocks/hero-02/hero-02.tsx", "hero-01", "src/blocks/hero-02/hero-02.tsx"},
		// Already normalized: identity.
		{"hero-01.tsx", "hero-01", "hero-01.tsx"},
		{"lib/utils.ts", "hero-01", "lib/utils.ts"},
	}

	for _, tt := range tests {
		if got := r.Normalize(tt.path, tt.block); got != tt.want {
			t.Errorf("Normalize(%q, %q) = %q, want %q", tt.path, tt.block, got, tt.want)
		}
	}
}

func TestNormalizeStripsPrefixOnce(t *testing.T) {
	r := mustRegistry(t)
	// A pathological path repeating the prefix loses only the first copy.
	in := "src/blocks/hero-01/src/blocks/hero-01/x.tsx"
	want := "src/blocks/hero-01/x.tsx"
	if got := r.Normalize(in, "hero-01"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolve(t *testing.T) {
	r := mustRegistry(t)

	tests := []struct {
		path, block, want string
	}{
		{"hero-01.tsx", "hero-01", "src/blocks/hero-01/hero-01.tsx"},
		{"components/tier-card.tsx", "pricing-03", "src/blocks/pricing-03/components/tier-card.tsx"},
		// Already rooted: unchanged.
		{"src/blocks/hero-01/hero-01.css", "hero-01", "src/blocks/hero-01/hero-01.css"},
	}

	for _, tt := range tests {
		if got := r.Resolve(tt.path, tt.block); got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.path, tt.block, got, tt.want)
		}
	}
}

func TestNormalizeResolveRoundTrip(t *testing.T) {
	r := mustRegistry(t)
	for _, name := range []string{"hero-01", "pricing-03", "hero-02"} {
		b, err := r.Get(name)
		if err != nil {
			t.Fatal(err)
		}
		for _, f := range b.Files {
			norm := r.Normalize(f.Path, name)
			if got := r.Resolve(norm, name); got != f.Path {
				t.Errorf("%s: resolve(normalize(%q)) = %q", name, f.Path, got)
			}
		}
	}
}

func TestDisplayPath(t *testing.T) {
	r := mustRegistry(t)
	b, _ := r.Get("hero-01")

	if got := r.DisplayPath(b.Files[0], b.Name); got != "hero-01.tsx" {
		t.Errorf("expected hero-01.tsx, got %s", got)
	}
	// Target override wins.
	if got := r.DisplayPath(b.Files[1], b.Name); got != "hero-01.css" {
		t.Errorf("expected hero-01.css, got %s", got)
	}
}
