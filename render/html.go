package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

//go:embed assets
var defaultAssets embed.FS

// HTMLRenderer renders panel pages with html/template. Ships with a
// functional default template set; hosts override individual templates
// by name. Safe for concurrent Render once construction is done.
type HTMLRenderer struct {
	mu      sync.RWMutex
	sources map[string]string
	funcs   template.FuncMap
	assets  map[string][]byte
	tmpl    *template.Template
	stale   bool
}

// NewHTMLRenderer builds a renderer preloaded with the default templates
// and assets.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	r := &HTMLRenderer{
		sources: make(map[string]string),
		assets:  make(map[string][]byte),
		funcs: template.FuncMap{
			"lower": strings.ToLower,
			"fmttime": func(t time.Time) string {
				if t.IsZero() {
					return ""
				}
				return t.Format("2006-01-02 15:04:05")
			},
		},
		stale: true,
	}

	entries, err := defaultTemplates.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	for _, e := range entries {
		text, err := defaultTemplates.ReadFile(path.Join("templates", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRender, err)
		}
		name := strings.TrimSuffix(e.Name(), ".tmpl")
		r.sources[name] = string(text)
	}

	if err := fs.WalkDir(defaultAssets, "assets", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		blob, err := defaultAssets.ReadFile(p)
		if err != nil {
			return err
		}
		r.assets[strings.TrimPrefix(p, "assets/")] = blob
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	return r, nil
}

// RegisterTemplate adds or overrides a template. The text is validated
// immediately.
func (r *HTMLRenderer) RegisterTemplate(name, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := template.New(name).Funcs(r.funcs).Parse(text); err != nil {
		return fmt.Errorf("%w: template %q: %w", ErrRender, name, err)
	}
	r.sources[name] = text
	r.stale = true
	return nil
}

func (r *HTMLRenderer) RegisterFunc(name string, fn any) {
	r.mu.Lock()
	r.funcs[name] = fn
	r.stale = true
	r.mu.Unlock()
}

func (r *HTMLRenderer) RegisterAsset(name string, blob []byte) {
	r.mu.Lock()
	r.assets[name] = blob
	r.mu.Unlock()
}

func (r *HTMLRenderer) Assets() map[string][]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]byte, len(r.assets))
	for k, v := range r.assets {
		out[k] = v
	}
	return out
}

// Render executes the named template against data.
func (r *HTMLRenderer) Render(name string, data map[string]any) (string, error) {
	tmpl, err := r.compiled()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("%w: template %q: %w", ErrRender, name, err)
	}
	return buf.String(), nil
}

func (r *HTMLRenderer) compiled() (*template.Template, error) {
	r.mu.RLock()
	if !r.stale {
		t := r.tmpl
		r.mu.RUnlock()
		return t, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stale {
		return r.tmpl, nil
	}
	root := template.New("").Funcs(r.funcs)
	for name, text := range r.sources {
		if _, err := root.New(name).Parse(text); err != nil {
			return nil, fmt.Errorf("%w: template %q: %w", ErrRender, name, err)
		}
	}
	r.tmpl = root
	r.stale = false
	return r.tmpl, nil
}
