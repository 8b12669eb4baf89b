// Package diagram turns natural-language prompts into structured layout
// diagrams using Google's Gemini API.
package diagram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/blockdeck/blockdeck/internal/logging"
	"github.com/blockdeck/blockdeck/internal/metrics"
	"go.uber.org/zap"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// Diagram is the structured result of a generation request.
type Diagram struct {
	Title string `json:"title"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a single box in the diagram.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// Edge connects two nodes by ID.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

const systemInstruction = `You are a layout diagram assistant. Given a
description of a page or system, respond with ONLY a JSON object, no prose
and no markdown fences, in exactly this shape:

{"title": "...", "nodes": [{"id": "...", "label": "...", "kind": "..."}],
 "edges": [{"from": "...", "to": "...", "label": "..."}]}

Rules: node ids are short unique slugs; kind is one of "section",
"component", "data", "action"; every edge references existing node ids.`

// Generator produces diagrams from prompts.
type Generator struct {
	client *genai.Client
	model  string
}

// NewGenerator creates a generator backed by the Gemini API.
func NewGenerator(ctx context.Context, apiKey, model string) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create GenAI client: %w", err)
	}

	return &Generator{client: client, model: model}, nil
}

// Close releases the generator. The genai SDK manages its own HTTP
// client and exposes nothing to release, so this is a no-op kept for
// symmetry with the other subsystem lifecycles.
func (g *Generator) Close() error {
	return nil
}

// Generate sends the prompt to the model and returns the parsed diagram.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Diagram, error) {
	start := time.Now()

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents,
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		metrics.RecordDiagramRequest(time.Since(start), false)
		return nil, fmt.Errorf("generate content: %w", err)
	}

	d, err := Parse(result.Text())
	if err != nil {
		metrics.RecordDiagramRequest(time.Since(start), false)
		logging.Warn("diagram response rejected",
			zap.String("model", g.model), zap.Error(err))
		return nil, err
	}

	metrics.RecordDiagramRequest(time.Since(start), true)
	return d, nil
}

// Parse extracts and validates a diagram from a model response. Text
// around the JSON object is tolerated.
func Parse(text string) (*Diagram, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var d Diagram
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("decode diagram: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// extractJSON returns the substring from the first '{' to the last '}'.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return text[start : end+1], nil
}

// Validate checks structural consistency: at least one node, unique
// node IDs, and edges that reference existing nodes.
func (d *Diagram) Validate() error {
	if len(d.Nodes) == 0 {
		return fmt.Errorf("diagram has no nodes")
	}

	ids := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node with empty id")
		}
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		ids[n.ID] = struct{}{}
	}

	for _, e := range d.Edges {
		if _, ok := ids[e.From]; !ok {
			return fmt.Errorf("edge references unknown node %q", e.From)
		}
		if _, ok := ids[e.To]; !ok {
			return fmt.Errorf("edge references unknown node %q", e.To)
		}
	}
	return nil
}
