package renderer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/registry"
)

// PDFConverter turns rendered HTML into PDF bytes. It is the replaceable
// second stage of the render pipeline.
type PDFConverter interface {
	Convert(ctx context.Context, html string) ([]byte, error)
}

// Output is the final rendered document.
type Output struct {
	Bytes       []byte
	ContentType string
}

// Renderer converts (template entry, input data) into output document bytes.
// It has no side effects beyond the returned bytes and is deterministic for
// identical inputs, which makes retries safe.
type Renderer struct {
	conv         PDFConverter
	strictFields bool
	logger       *zap.Logger
}

// New creates a Renderer. With strictFields enabled, input payloads missing a
// registry-declared required field fail the render instead of producing a
// document with blanks.
func New(conv PDFConverter, strictFields bool, logger *zap.Logger) *Renderer {
	return &Renderer{
		conv:         conv,
		strictFields: strictFields,
		logger:       logger,
	}
}

// Render produces the document for one job attempt.
//
// Two stages: (a) data + template → HTML markup, (b) markup → PDF bytes.
// The JSON format skips both and emits a structured echo of the input.
// Template failures are permanent; converter failures are marked transient
// so the task runner may retry them.
func (r *Renderer) Render(ctx context.Context, entry *registry.Entry, format domain.OutputFormat, input map[string]any) (*Output, error) {
	if r.strictFields {
		if missing := missingFields(entry, input); len(missing) > 0 {
			return nil, &domain.RenderError{
				Template: entry.Name,
				Stage:    "template",
				Err:      fmt.Errorf("missing required fields: %v", missing),
			}
		}
	}

	if format == domain.FormatJSON {
		return r.renderJSON(entry, input)
	}

	html, err := entry.Render(input)
	if err != nil {
		return nil, &domain.RenderError{Template: entry.Name, Stage: "template", Err: err}
	}

	pdf, err := r.conv.Convert(ctx, html)
	if err != nil {
		// The converter is an external process boundary; its faults are
		// candidates for retry.
		return nil, &domain.RenderError{Template: entry.Name, Stage: "convert", Err: domain.Transient(err)}
	}

	r.logger.Debug("Rendered document",
		zap.String("template", string(entry.Name)),
		zap.Int("pdf_bytes", len(pdf)),
	)

	return &Output{Bytes: pdf, ContentType: domain.FormatPDF.ContentType()}, nil
}

// renderJSON emits the structured echo document: the input data plus a
// summary block describing it.
func (r *Renderer) renderJSON(entry *registry.Entry, input map[string]any) (*Output, error) {
	doc := map[string]any{
		"template":     entry.Name,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"input_data":   input,
		"summary":      summarize(input),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, &domain.RenderError{Template: entry.Name, Stage: "encode", Err: err}
	}
	return &Output{Bytes: data, ContentType: domain.FormatJSON.ContentType()}, nil
}

func summarize(data map[string]any) map[string]any {
	keys := make([]string, 0, len(data))
	hasNumbers := false
	hasStrings := false
	for k, v := range data {
		keys = append(keys, k)
		switch v.(type) {
		case int, int64, float32, float64:
			hasNumbers = true
		case string:
			hasStrings = true
		}
	}
	return map[string]any{
		"fields_count": len(data),
		"keys":         keys,
		"has_numbers":  hasNumbers,
		"has_strings":  hasStrings,
	}
}

func missingFields(entry *registry.Entry, input map[string]any) []string {
	var missing []string
	for _, f := range entry.RequiredFields {
		if _, ok := input[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}
