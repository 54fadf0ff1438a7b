// Package fiberweb binds a panel onto a gofiber application. It carries
// the usual middleware stack (request id, logging, JWT auth, redis rate
// limit) and a websocket endpoint streaming live log entries.
package fiberweb

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gopanel/gopanel/web"
)

// Integrator implements web.Integrator over a *fiber.App.
type Integrator struct {
	app *fiber.App
}

func New(app *fiber.App) *Integrator {
	return &Integrator{app: app}
}

// Handle registers a panel handler. Fiber shares the ":name" parameter
// syntax, so paths pass through untouched.
func (i *Integrator) Handle(method, path string, h web.HandlerFunc) {
	i.app.Add(method, path, func(c *fiber.Ctx) error {
		status, body := h(&fiberCtx{c: c})
		c.Type("html", "utf-8")
		return c.Status(status).SendString(body)
	})
}

// ServeAssets exposes the renderer's asset blobs under prefix.
func (i *Integrator) ServeAssets(prefix string, assets map[string][]byte) {
	base := strings.TrimSuffix(prefix, "/")
	i.app.Get(base+"/*", func(c *fiber.Ctx) error {
		name := c.Params("*")
		blob, ok := assets[name]
		if !ok {
			return c.SendStatus(fiber.StatusNotFound)
		}
		if ext := strings.TrimPrefix(filepath.Ext(name), "."); ext != "" {
			c.Type(ext)
		}
		return c.Send(blob)
	})
}

// fiberCtx adapts *fiber.Ctx to web.Context.
type fiberCtx struct {
	c *fiber.Ctx
}

func (f *fiberCtx) Context() context.Context { return f.c.UserContext() }
func (f *fiberCtx) Method() string           { return f.c.Method() }
func (f *fiberCtx) Path() string             { return f.c.Path() }
func (f *fiberCtx) Param(name string) string { return f.c.Params(name) }
func (f *fiberCtx) Query(name string) string { return f.c.Query(name) }

func (f *fiberCtx) FormValue(name string) string { return f.c.FormValue(name) }

func (f *fiberCtx) Form() map[string]string {
	out := make(map[string]string)
	f.c.Request().PostArgs().VisitAll(func(key, value []byte) {
		k := string(key)
		if _, ok := out[k]; !ok {
			out[k] = string(value)
		}
	})
	return out
}

func (f *fiberCtx) Get(key string) any    { return f.c.Locals(key) }
func (f *fiberCtx) Set(key string, v any) { f.c.Locals(key, v) }
