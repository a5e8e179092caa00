package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

// DocumentRef is the part of a document handle a prompt may mention.
type DocumentRef struct {
	ID       string
	FileName string
	Pages    int
}

// Data parameterizes a stage prompt.
type Data struct {
	Query    string
	Document DocumentRef
	// Prior holds upstream stage outputs keyed by stage name.
	Prior map[string]string
}

// Template is a parsed stage prompt.
type Template struct {
	name string
	tmpl *template.Template
}

var registry = mustLoad()

func mustLoad() map[string]*Template {
	entries, err := templateFiles.ReadDir("templates")
	if err != nil {
		panic(fmt.Sprintf("read prompt templates: %v", err))
	}
	out := make(map[string]*Template, len(entries))
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".tmpl")
		raw, err := templateFiles.ReadFile("templates/" + e.Name())
		if err != nil {
			panic(fmt.Sprintf("read prompt template %s: %v", name, err))
		}
		t, err := Parse(name, string(raw))
		if err != nil {
			panic(err.Error())
		}
		out[name] = t
	}
	return out
}

// Parse compiles an ad-hoc template, mainly for tests and custom pipelines.
func Parse(name, text string) (*Template, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return &Template{name: name, tmpl: t}, nil
}

// Lookup returns the embedded template for a stage.
func Lookup(name string) (*Template, error) {
	t, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("prompt template %q not found", name)
	}
	return t, nil
}

// Names lists embedded templates in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Name is the template's name.
func (t *Template) Name() string { return t.name }

// Render executes the template.
func (t *Template) Render(data Data) (string, error) {
	if data.Prior == nil {
		data.Prior = map[string]string{}
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", t.name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
