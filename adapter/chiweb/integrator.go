// Package chiweb binds a panel onto a go-chi router, for hosts living in
// the net/http world.
package chiweb

import (
	"context"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/gopanel/gopanel/web"
)

// Integrator implements web.Integrator over a chi.Router.
type Integrator struct {
	r chi.Router
}

func New(r chi.Router) *Integrator {
	return &Integrator{r: r}
}

// Handle registers a panel handler, translating ":name" path parameters
// to chi's "{name}" form.
func (i *Integrator) Handle(method, path string, h web.HandlerFunc) {
	i.r.MethodFunc(method, translatePath(path), func(w http.ResponseWriter, r *http.Request) {
		status, body := h(newChiCtx(r))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

// ServeAssets exposes the renderer's asset blobs under prefix.
func (i *Integrator) ServeAssets(prefix string, assets map[string][]byte) {
	base := strings.TrimSuffix(prefix, "/")
	i.r.Get(base+"/*", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "*")
		blob, ok := assets[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		_, _ = w.Write(blob)
	})
}

func translatePath(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			segs[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segs, "/")
}

// chiCtx adapts an *http.Request to web.Context.
type chiCtx struct {
	r  *http.Request
	mu sync.RWMutex
	// vals holds request-scoped values set after middleware ran.
	vals map[string]any
}

func newChiCtx(r *http.Request) *chiCtx {
	return &chiCtx{r: r, vals: make(map[string]any)}
}

func (c *chiCtx) Context() context.Context { return c.r.Context() }
func (c *chiCtx) Method() string           { return c.r.Method }
func (c *chiCtx) Path() string             { return c.r.URL.Path }

func (c *chiCtx) Param(name string) string { return chi.URLParam(c.r, name) }

func (c *chiCtx) Query(name string) string { return c.r.URL.Query().Get(name) }

func (c *chiCtx) FormValue(name string) string {
	_ = c.r.ParseForm()
	return c.r.PostFormValue(name)
}

func (c *chiCtx) Form() map[string]string {
	_ = c.r.ParseForm()
	out := make(map[string]string, len(c.r.PostForm))
	for key, values := range c.r.PostForm {
		if len(values) > 0 {
			out[key] = values[0]
		}
	}
	return out
}

func (c *chiCtx) Get(key string) any {
	c.mu.RLock()
	if v, ok := c.vals[key]; ok {
		c.mu.RUnlock()
		return v
	}
	c.mu.RUnlock()
	// Fall back to values middleware put on the request context.
	return c.r.Context().Value(ctxKey(key))
}

func (c *chiCtx) Set(key string, v any) {
	c.mu.Lock()
	c.vals[key] = v
	c.mu.Unlock()
}

type ctxKey string
