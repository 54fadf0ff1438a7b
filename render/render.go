// Package render is the panel's rendering boundary: a name and a data
// mapping go in, markup comes out. The default implementation sits on
// html/template; hosts may swap in any engine that satisfies Renderer.
package render

import "errors"

// ErrRender wraps template lookup and execution failures.
var ErrRender = errors.New("rendering failed")

// Renderer produces markup for panel pages and owns the panel's static
// assets and template helper functions.
type Renderer interface {
	// Render executes the named template against data.
	Render(name string, data map[string]any) (string, error)
	// RegisterTemplate adds or overrides a template by name.
	RegisterTemplate(name, text string) error
	// RegisterFunc makes fn callable from templates. Must be called
	// before the first Render of a template using it.
	RegisterFunc(name string, fn any)
	// RegisterAsset adds or overrides a static asset blob.
	RegisterAsset(name string, blob []byte)
	// Assets returns all registered assets by name.
	Assets() map[string][]byte
}
