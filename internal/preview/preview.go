// Package preview implements the code fetch and highlight pipeline for
// block preview sessions: resolve the active file's physical path, pull
// its raw text from the content source, and produce highlighted HTML.
package preview

import (
	"context"
	"crypto/sha256"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	htmlfmt "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"go.uber.org/zap"

	"github.com/blockdeck/blockdeck/internal/logging"
	"github.com/blockdeck/blockdeck/internal/metrics"
	"github.com/blockdeck/blockdeck/internal/registry"
	"github.com/blockdeck/blockdeck/internal/storage"
)

// DefaultLanguage is the fixed highlight language for the block code
// viewer: the catalog's blocks are TSX components.
const DefaultLanguage = "tsx"

// DefaultStyle is the chroma style used for highlighted output.
const DefaultStyle = "github"

// Pipeline fetches raw block source text and highlights it. Safe for
// concurrent use.
type Pipeline struct {
	registry *registry.Registry
	source   storage.Backend
	language string
	style    string

	// Most recently highlighted output, keyed by raw-text digest.
	// Replaced on every render of different content; this is a
	// recency cache, not a durable one.
	mu       sync.Mutex
	lastKey  [32]byte
	lastHTML string
}

// New creates a pipeline over the given registry and content source.
func New(reg *registry.Registry, source storage.Backend) *Pipeline {
	return &Pipeline{
		registry: reg,
		source:   source,
		language: DefaultLanguage,
		style:    DefaultStyle,
	}
}

// Render resolves the file's physical path for its block, fetches the
// raw text, and returns highlighted HTML. Fetch errors are returned to
// the caller; highlighter errors are not; they degrade to escaped
// plain text.
func (p *Pipeline) Render(ctx context.Context, blockName string, file registry.BlockFile) (string, error) {
	key := p.registry.Resolve(file.Path, blockName)

	raw, err := storage.ReadAll(ctx, p.source, key)
	if err != nil {
		metrics.RecordPreviewFetch(false)
		return "", fmt.Errorf("fetch %s: %w", key, err)
	}
	metrics.RecordPreviewFetch(true)

	return p.Highlight(raw), nil
}

// Highlight produces styled HTML for raw source text, reusing the most
// recent result when the text is unchanged. On any highlighter error it
// falls back to escaped plain text; the caller never sees a failure.
func (p *Pipeline) Highlight(raw string) string {
	digest := sha256.Sum256([]byte(raw))

	p.mu.Lock()
	if digest == p.lastKey && p.lastHTML != "" {
		out := p.lastHTML
		p.mu.Unlock()
		return out
	}
	p.mu.Unlock()

	out, err := highlight(raw, p.language, p.style)
	if err != nil {
		metrics.RecordHighlightFailure()
		logging.Warn("highlight failed, falling back to plain text", zap.Error(err))
		out = "<pre><code>" + html.EscapeString(raw) + "</code></pre>"
	}

	p.mu.Lock()
	p.lastKey = digest
	p.lastHTML = out
	p.mu.Unlock()
	return out
}

func highlight(raw, language, styleName string) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, raw)
	if err != nil {
		return "", fmt.Errorf("tokenise: %w", err)
	}

	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	formatter := htmlfmt.New(
		htmlfmt.WithLineNumbers(true),
		htmlfmt.TabWidth(2),
	)

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", fmt.Errorf("format: %w", err)
	}
	return buf.String(), nil
}
