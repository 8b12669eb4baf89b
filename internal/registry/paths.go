package registry

import "strings"

// Normalize strips the conventional "<source-root>/<block-name>/" prefix
// from a raw manifest path so the UI shows project-relative paths. If the
// prefix is absent the path is returned unchanged. Pure and total.
func (r *Registry) Normalize(path, blockName string) string {
	prefix := r.sourceRoot + "/" + blockName + "/"
	return strings.TrimPrefix(path, prefix)
}

// NormalizedFiles returns the block's files with normalized paths, in
// manifest order.
func (r *Registry) NormalizedFiles(b *Block) []BlockFile {
	out := make([]BlockFile, len(b.Files))
	for i, f := range b.Files {
		out[i] = BlockFile{
			Path:   r.Normalize(f.Path, b.Name),
			Target: f.Target,
		}
	}
	return out
}

// Resolve maps a (possibly normalized) file path back to its physical
// location under the content source. If the path already starts with the
// source root it is used as-is, otherwise the
// "<source-root>/<block-name>/" convention is reapplied.
func (r *Registry) Resolve(path, blockName string) string {
	if strings.HasPrefix(path, r.sourceRoot+"/") {
		return path
	}
	return r.sourceRoot + "/" + blockName + "/" + path
}

// DisplayPath returns the path shown in the file tree for a block file:
// the target override when present, the normalized source path otherwise.
func (r *Registry) DisplayPath(f BlockFile, blockName string) string {
	if f.Target != "" {
		return f.Target
	}
	return r.Normalize(f.Path, blockName)
}
