package registry

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/flosch/pongo2/v6"

	"github.com/GitRadiation/template-filler/internal/domain"
)

// entrySpec is the static registry table. Adding a template is a
// deployment-time action: ship the file and extend this table.
var entrySpecs = []struct {
	name           domain.TemplateName
	displayName    string
	file           string
	requiredFields []string
}{
	{domain.TemplateContract, "Contract", "contract.html.j2", []string{"party_a", "party_b"}},
	{domain.TemplateInvoice, "Invoice", "invoice.html.j2", []string{"invoice_number", "customer"}},
	{domain.TemplateCertificate, "Certificate", "certificate.html.j2", []string{"recipient", "course"}},
}

// Entry resolves a template name to its renderable resource.
type Entry struct {
	Name           domain.TemplateName
	DisplayName    string
	File           string
	RequiredFields []string

	tpl *pongo2.Template
}

// Render evaluates the template against the input data. Missing fields render
// as blanks; strict-field enforcement happens upstream in the renderer.
func (e *Entry) Render(data map[string]any) (string, error) {
	ctx := pongo2.Context{
		"now":   time.Now(),
		"today": time.Now().Format("2006-01-02"),
	}
	for k, v := range data {
		ctx[k] = v
	}
	out, err := e.tpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("execute template %s: %w", e.Name, err)
	}
	return out, nil
}

// Registry maps template names to renderable entries. It is built once at
// process start and never mutated afterwards.
type Registry struct {
	entries map[domain.TemplateName]*Entry
}

// New loads and parses every registered template from dir. A missing or
// unparsable template file fails startup rather than the first render.
func New(dir string) (*Registry, error) {
	r := &Registry{entries: make(map[domain.TemplateName]*Entry)}
	for _, spec := range entrySpecs {
		tpl, err := pongo2.FromFile(filepath.Join(dir, spec.file))
		if err != nil {
			return nil, fmt.Errorf("registry: load template %s: %w", spec.name, err)
		}
		r.entries[spec.name] = &Entry{
			Name:           spec.name,
			DisplayName:    spec.displayName,
			File:           spec.file,
			RequiredFields: spec.requiredFields,
			tpl:            tpl,
		}
	}
	return r, nil
}

// NewFromSources builds a registry from in-memory template sources, keyed by
// template name. Entries absent from the map are left out of the registry.
// Intended for tests.
func NewFromSources(sources map[domain.TemplateName]string) (*Registry, error) {
	r := &Registry{entries: make(map[domain.TemplateName]*Entry)}
	for _, spec := range entrySpecs {
		src, ok := sources[spec.name]
		if !ok {
			continue
		}
		tpl, err := pongo2.FromString(src)
		if err != nil {
			return nil, fmt.Errorf("registry: parse template %s: %w", spec.name, err)
		}
		r.entries[spec.name] = &Entry{
			Name:           spec.name,
			DisplayName:    spec.displayName,
			File:           spec.file,
			RequiredFields: spec.requiredFields,
			tpl:            tpl,
		}
	}
	return r, nil
}

// Resolve returns the entry for name, or domain.ErrUnsupportedTemplate.
func (r *Registry) Resolve(name domain.TemplateName) (*Entry, error) {
	entry, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedTemplate, name)
	}
	return entry, nil
}

// Entries lists all registered templates in table order.
func (r *Registry) Entries() []domain.TemplateInfo {
	infos := make([]domain.TemplateInfo, 0, len(r.entries))
	for _, spec := range entrySpecs {
		if e, ok := r.entries[spec.name]; ok {
			infos = append(infos, domain.TemplateInfo{
				Name:           e.Name,
				DisplayName:    e.DisplayName,
				RequiredFields: e.RequiredFields,
			})
		}
	}
	return infos
}
