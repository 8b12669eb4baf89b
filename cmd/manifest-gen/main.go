// manifest-gen produces the block registry manifest from a source tree.
//
// It walks a block source root laid out as <root>/<category>/<block>/...
// and writes a manifest JSON document: one entry per block directory,
// files in walk order, category taken from the grouping directory.
// Designed to run at build time; the server never scans the tree itself.
package main

import (
	"encoding/json"
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/blockdeck/blockdeck/internal/logging"
	"github.com/blockdeck/blockdeck/internal/registry"
)

func main() {
	srcDir := flag.String("src", "src/blocks", "Block source root to scan")
	out := flag.String("out", "manifest.json", "Output manifest path")
	sourceRoot := flag.String("source-root", "", "source_root value to record (default: -src)")
	flag.Parse()

	if err := logging.Init(logging.Config{Level: "info", Format: "console"}); err != nil {
		panic("logging init: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("manifest-gen starting...", zap.String("src", *srcDir))

	root := *sourceRoot
	if root == "" {
		root = filepath.ToSlash(*srcDir)
	}

	manifest, err := scan(*srcDir, root)
	if err != nil {
		logging.Fatal("scan failed", zap.Error(err))
	}

	// Validate before writing: a manifest the server cannot load is
	// worse than no manifest.
	if _, err := registry.New(manifest); err != nil {
		logging.Fatal("generated manifest is invalid", zap.Error(err))
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		logging.Fatal("encode manifest", zap.Error(err))
	}
	data = append(data, '\n')

	if err := os.WriteFile(*out, data, 0644); err != nil {
		logging.Fatal("write manifest", zap.Error(err))
	}

	logging.Info("manifest written",
		zap.String("path", *out),
		zap.Int("blocks", len(manifest.Blocks)))
}

// scan walks <srcDir>/<category>/<block>/** and collects one manifest
// entry per block directory.
func scan(srcDir, sourceRoot string) (*registry.Manifest, error) {
	m := &registry.Manifest{SourceRoot: strings.Trim(sourceRoot, "/")}

	categories, err := sortedSubdirs(srcDir)
	if err != nil {
		return nil, err
	}

	for _, category := range categories {
		blocks, err := sortedSubdirs(filepath.Join(srcDir, category))
		if err != nil {
			return nil, err
		}
		for _, name := range blocks {
			files, err := blockFiles(filepath.Join(srcDir, category, name))
			if err != nil {
				return nil, err
			}
			if len(files) == 0 {
				logging.Warn("skipping empty block directory",
					zap.String("category", category), zap.String("block", name))
				continue
			}
			m.Blocks = append(m.Blocks, registry.Block{
				Name:     name,
				Title:    titleFor(name),
				Category: category,
				Files:    files,
			})
		}
	}
	return m, nil
}

func sortedSubdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// blockFiles lists the block's files relative to its directory, main
// entry files first, the rest in walk order.
func blockFiles(blockDir string) ([]registry.BlockFile, error) {
	var files []registry.BlockFile
	err := filepath.WalkDir(blockDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(blockDir, path)
		if err != nil {
			return err
		}
		files = append(files, registry.BlockFile{Path: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// WalkDir order is lexical and folder-grouped. Float only the
	// root-level files above the nested ones so the first file is the
	// block's entry point; anything deeper keeps its walk position,
	// which keeps files from the same folder adjacent.
	sort.SliceStable(files, func(i, j int) bool {
		return !strings.Contains(files[i].Path, "/") && strings.Contains(files[j].Path, "/")
	})
	return files, nil
}

// titleFor turns a block directory name into a display title:
// "hero-01" becomes "Hero 01".
func titleFor(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
