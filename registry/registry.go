// Package registry owns the application → model tree of a panel. It is
// populated once during startup and read-only afterwards, so lookups take
// no locks.
package registry

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	ErrNotFound            = errors.New("not found")
	ErrInvalidPrimaryKey   = errors.New("invalid primary key")
	ErrInvalidField        = errors.New("invalid field")
)

// Application groups models under a URL-safe identifier.
type Application struct {
	ID     string
	Name   string
	models map[string]*Model
	order  []string
}

// Models returns the application's models in registration order.
func (a *Application) Models() []*Model {
	out := make([]*Model, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.models[id])
	}
	return out
}

type Registry struct {
	apps  map[string]*Application
	order []string
}

func New() *Registry {
	return &Registry{apps: make(map[string]*Application)}
}

// RegisterApplication adds an application. The identifier must be URL-safe
// and unique; on failure the registry is left unchanged.
func (r *Registry) RegisterApplication(id, name string) (*Application, error) {
	if !isURLSafe(id) {
		return nil, fmt.Errorf("application id %q is not url-safe", id)
	}
	if _, ok := r.apps[id]; ok {
		return nil, fmt.Errorf("application %q: %w", id, ErrDuplicateIdentifier)
	}
	if name == "" {
		name = id
	}
	app := &Application{ID: id, Name: name, models: make(map[string]*Model)}
	r.apps[id] = app
	r.order = append(r.order, id)
	return app, nil
}

// RegisterModel introspects prototype (a struct or pointer to struct) and
// registers the resulting model under the given application. The model
// identifier is derived from the type name unless overridden.
func (r *Registry) RegisterModel(appID string, prototype any, opts ...ModelOption) (*Model, error) {
	app, err := r.App(appID)
	if err != nil {
		return nil, err
	}
	m, err := describe(prototype)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(m)
	}
	if _, ok := app.models[m.ID]; ok {
		return nil, fmt.Errorf("model %q in application %q: %w", m.ID, appID, ErrDuplicateIdentifier)
	}
	m.App = app
	app.models[m.ID] = m
	app.order = append(app.order, m.ID)
	return m, nil
}

// App looks up an application by identifier.
func (r *Registry) App(id string) (*Application, error) {
	app, ok := r.apps[id]
	if !ok {
		return nil, fmt.Errorf("application %q: %w", id, ErrNotFound)
	}
	return app, nil
}

// Model looks up a model by application and model identifier.
func (r *Registry) Model(appID, modelID string) (*Model, error) {
	app, err := r.App(appID)
	if err != nil {
		return nil, err
	}
	m, ok := app.models[modelID]
	if !ok {
		return nil, fmt.Errorf("model %q in application %q: %w", modelID, appID, ErrNotFound)
	}
	return m, nil
}

// Apps returns all applications in registration order.
func (r *Registry) Apps() []*Application {
	out := make([]*Application, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.apps[id])
	}
	return out
}

func isURLSafe(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
