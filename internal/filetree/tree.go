// Package filetree builds the nested folder/file tree shown in the
// block preview's file explorer from a flat, ordered list of paths.
package filetree

import (
	"path"
	"strings"
)

// NodeType is the tagged variant for tree nodes.
type NodeType string

const (
	Folder NodeType = "folder"
	File   NodeType = "file"
)

// Node is one entry in the display tree. Children keep the first-seen
// order of the source file list; nothing is re-sorted.
type Node struct {
	Name     string   `json:"name"`
	Type     NodeType `json:"type"`
	Path     string   `json:"path,omitempty"`   // full normalized path, files only
	Target   string   `json:"target,omitempty"` // display override, files only
	Icon     string   `json:"icon,omitempty"`   // files only
	Children []*Node  `json:"children,omitempty"`
}

// Entry is one input file: a normalized path plus an optional display
// target override.
type Entry struct {
	Path   string
	Target string
}

// Build converts an ordered flat file list into a tree forest. Paths are
// split on "/"; intermediate folders are created on first use. A path
// with no separator becomes a top-level file leaf. The input order is a
// precondition-backed contract: callers rely on the first entry staying
// first ("most relevant file first").
func Build(entries []Entry) []*Node {
	root := &Node{Type: Folder}
	for _, e := range entries {
		insert(root, e)
	}
	return root.Children
}

func insert(root *Node, e Entry) {
	segments := strings.Split(e.Path, "/")
	node := root
	for _, seg := range segments[:len(segments)-1] {
		node = childFolder(node, seg)
	}
	leaf := segments[len(segments)-1]
	node.Children = append(node.Children, &Node{
		Name:   leaf,
		Type:   File,
		Path:   e.Path,
		Target: e.Target,
		Icon:   IconFor(leaf),
	})
}

// childFolder finds or creates a folder child, preserving insertion order.
func childFolder(parent *Node, name string) *Node {
	for _, c := range parent.Children {
		if c.Type == Folder && c.Name == name {
			return c
		}
	}
	f := &Node{Name: name, Type: Folder}
	parent.Children = append(parent.Children, f)
	return f
}

// Flatten returns the leaf entries of a forest in tree order. This
// reproduces Build's input list exactly when that list was
// folder-grouped (all files of a folder adjacent); an interleaved input
// comes back regrouped under each folder's first appearance.
func Flatten(nodes []*Node) []Entry {
	var out []Entry
	var walk func(ns []*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			if n.Type == File {
				out = append(out, Entry{Path: n.Path, Target: n.Target})
				continue
			}
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}

// icons is the closed extension-to-affordance mapping used by the UI.
// Unknown extensions fall through to the generic file icon.
var icons = map[string]string{
	".tsx":  "react",
	".jsx":  "react",
	".ts":   "typescript",
	".js":   "javascript",
	".css":  "css",
	".json": "json",
	".md":   "markdown",
	".svg":  "image",
	".png":  "image",
}

// IconFor returns the display affordance for a file name.
func IconFor(name string) string {
	if icon, ok := icons[path.Ext(name)]; ok {
		return icon
	}
	return "file"
}
