package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"sync"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type TemplateName string

const (
	TemplateToxicity  TemplateName = "toxicity.tmpl"
	TemplateTranslate TemplateName = "translate.tmpl"
)

// Builder renders the embedded prompt templates. Every template is parsed up
// front and a missing field fails the render instead of printing "<no value>".
type Builder struct {
	set *template.Template
}

func NewBuilder() (*Builder, error) {
	set, err := template.New("prompts").
		Option("missingkey=error").
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	return &Builder{set: set}, nil
}

var defaultBuilder = sync.OnceValues(NewBuilder)

// Render executes name with the shared builder.
func Render(name TemplateName, data any) (string, error) {
	b, err := defaultBuilder()
	if err != nil {
		return "", err
	}
	return b.Render(name, data)
}

func (b *Builder) Render(name TemplateName, data any) (string, error) {
	tmpl := b.set.Lookup(string(name))
	if tmpl == nil {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

// Names lists the loaded templates.
func (b *Builder) Names() []TemplateName {
	var names []TemplateName
	for _, t := range b.set.Templates() {
		if t.Name() != "prompts" {
			names = append(names, TemplateName(t.Name()))
		}
	}
	return names
}
