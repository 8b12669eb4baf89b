package filetree

import (
	"reflect"
	"testing"
)

func TestBuildSiblingsNoFolders(t *testing.T) {
	// Both paths are single-segment after normalization: two file leaves.
	nodes := Build([]Entry{
		{Path: "hero-01.tsx"},
		{Path: "hero-01.css", Target: "hero-01.css"},
	})

	if len(nodes) != 2 {
		t.Fatalf("expected 2 top-level nodes, got %d", len(nodes))
	}
	if nodes[0].Type != File || nodes[0].Name != "hero-01.tsx" {
		t.Errorf("unexpected first node %+v", nodes[0])
	}
	if nodes[1].Type != File || nodes[1].Target != "hero-01.css" {
		t.Errorf("unexpected second node %+v", nodes[1])
	}
}

func TestBuildNestedFolders(t *testing.T) {
	nodes := Build([]Entry{
		{Path: "page.tsx"},
		{Path: "components/card.tsx"},
		{Path: "components/ui/button.tsx"},
		{Path: "components/footer.tsx"},
	})

	if len(nodes) != 2 {
		t.Fatalf("expected 2 top-level nodes, got %d", len(nodes))
	}
	if nodes[0].Name != "page.tsx" {
		t.Errorf("expected page.tsx first, got %s", nodes[0].Name)
	}

	comp := nodes[1]
	if comp.Type != Folder || comp.Name != "components" {
		t.Fatalf("expected components folder, got %+v", comp)
	}
	// Insertion order inside the folder: card, ui, footer.
	names := []string{}
	for _, c := range comp.Children {
		names = append(names, c.Name)
	}
	want := []string{"card.tsx", "ui", "footer.tsx"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}

	ui := comp.Children[1]
	if ui.Type != Folder || len(ui.Children) != 1 || ui.Children[0].Name != "button.tsx" {
		t.Errorf("unexpected ui subtree %+v", ui)
	}
}

func TestBuildPreservesInputOrder(t *testing.T) {
	// Deliberately non-alphabetical: the builder must not re-sort.
	in := []Entry{
		{Path: "zeta.tsx"},
		{Path: "alpha.tsx"},
		{Path: "mid/om.tsx"},
		{Path: "beta.css"},
	}
	nodes := Build(in)
	got := []string{}
	for _, n := range nodes {
		got = append(got, n.Name)
	}
	want := []string{"zeta.tsx", "alpha.tsx", "mid", "beta.css"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	in := []Entry{
		{Path: "hero.tsx"},
		{Path: "components/nav.tsx"},
		{Path: "components/ui/button.tsx", Target: "ui/button.tsx"},
		{Path: "styles/hero.css"},
		{Path: "README.md"},
	}
	out := Flatten(Build(in))
	if !reflect.DeepEqual(out, in) {
		t.Errorf("flatten(build(x)) != x\n in: %v\nout: %v", in, out)
	}
}

// The exact round trip holds only for folder-grouped input; an
// interleaved list comes back regrouped under each folder's first
// appearance.
func TestFlattenRegroupsInterleavedInput(t *testing.T) {
	in := []Entry{
		{Path: "a/x.tsx"},
		{Path: "b/y.tsx"},
		{Path: "a/c/z.tsx"},
	}
	want := []Entry{
		{Path: "a/x.tsx"},
		{Path: "a/c/z.tsx"},
		{Path: "b/y.tsx"},
	}
	if out := Flatten(Build(in)); !reflect.DeepEqual(out, want) {
		t.Errorf("expected regrouped %v, got %v", want, out)
	}
}

func TestFlattenRoundTripSingleFile(t *testing.T) {
	in := []Entry{{Path: "only.tsx"}}
	if out := Flatten(Build(in)); !reflect.DeepEqual(out, in) {
		t.Errorf("expected %v, got %v", in, out)
	}
}

func TestBuildEmpty(t *testing.T) {
	if nodes := Build(nil); len(nodes) != 0 {
		t.Errorf("expected empty forest, got %v", nodes)
	}
}

func TestIconFor(t *testing.T) {
	tests := []struct{ name, want string }{
		{"button.tsx", "react"},
		{"util.ts", "typescript"},
		{"hero.css", "css"},
		{"manifest.json", "json"},
		{"notes.txt", "file"},
		{"Makefile", "file"},
	}
	for _, tt := range tests {
		if got := IconFor(tt.name); got != tt.want {
			t.Errorf("IconFor(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
