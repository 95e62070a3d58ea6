package renderer

import (
	"context"
	"fmt"
	"strings"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
)

var _ PDFConverter = (*WkhtmltopdfConverter)(nil)

// WkhtmltopdfConverter converts HTML to PDF by driving the wkhtmltopdf
// binary. Each Convert call builds a fresh generator; the generator type is
// not safe for concurrent reuse.
type WkhtmltopdfConverter struct{}

// NewWkhtmltopdfConverter creates a converter. The wkhtmltopdf binary must be
// on PATH (or set via the WKHTMLTOPDF_PATH environment variable, which the
// library honors).
func NewWkhtmltopdfConverter() *WkhtmltopdfConverter {
	return &WkhtmltopdfConverter{}
}

func (c *WkhtmltopdfConverter) Convert(ctx context.Context, html string) ([]byte, error) {
	gen, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("wkhtmltopdf: init: %w", err)
	}

	page := wkhtmltopdf.NewPageReader(strings.NewReader(html))
	page.EnableLocalFileAccess.Set(false)
	gen.AddPage(page)

	if err := gen.CreateContext(ctx); err != nil {
		return nil, fmt.Errorf("wkhtmltopdf: create: %w", err)
	}
	return gen.Bytes(), nil
}
