// Package gopanel assembles a generic admin panel from pluggable parts:
// a model registry, a permission gate, a CRUD dispatcher, a log store, a
// renderer and a web-framework adapter. The core never depends on a
// concrete ORM or web framework.
package gopanel

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/gopanel/gopanel/data"
	"github.com/gopanel/gopanel/dispatch"
	"github.com/gopanel/gopanel/logstore"
	"github.com/gopanel/gopanel/permission"
	"github.com/gopanel/gopanel/registry"
	"github.com/gopanel/gopanel/render"
	"github.com/gopanel/gopanel/web"
)

// NavItem is one navigation-bar link.
type NavItem struct {
	Label string
	URL   string
}

// NavFunc generates a navigation item per request.
type NavFunc func(c web.Context) NavItem

// Options carries the panel's collaborators. Permission and Accessor are
// mandatory; everything else has a default.
type Options struct {
	Config *Config
	// Registry may be pre-populated; nil creates an empty one.
	Registry *registry.Registry
	// Permission is the single decision function consulted before every
	// operation. Required.
	Permission permission.Func
	// Accessor is the default data-access capability. Required unless
	// every application has an override.
	Accessor data.Accessor
	// Overrides replaces the accessor per application ID.
	Overrides map[string]data.Accessor
	// Renderer defaults to the embedded html/template engine.
	Renderer render.Renderer
	// Store defaults to an in-memory FIFO store of Config.LogCapacity.
	Store logstore.Store
	// UserFunc resolves the acting user for log entries. Defaults to
	// reading the identity the web adapter's auth middleware stashed.
	UserFunc dispatch.UserFunc
	// NavItems generate extra navigation-bar links.
	NavItems []NavFunc
	Log      *zap.Logger
}

// Panel is a constructed admin panel, ready to bind onto a web adapter.
type Panel struct {
	cfg      *Config
	reg      *registry.Registry
	disp     *dispatch.Dispatcher
	renderer render.Renderer
	nav      []NavFunc
	log      *zap.Logger
}

// New builds a panel. Registration-time failures (duplicate identifiers,
// unresolvable primary keys, missing collaborators) abort construction.
func New(opts Options) (*Panel, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.normalize()

	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	gate, err := permission.NewGate(opts.Permission)
	if err != nil {
		return nil, err
	}

	reg := opts.Registry
	if reg == nil {
		reg = registry.New()
	}

	renderer := opts.Renderer
	if renderer == nil {
		renderer, err = render.NewHTMLRenderer()
		if err != nil {
			return nil, err
		}
	}

	store := opts.Store
	if store == nil {
		store = logstore.NewMemoryStore(cfg.LogCapacity)
	}

	userFn := opts.UserFunc
	if userFn == nil {
		userFn = contextUser
	}

	disp, err := dispatch.New(dispatch.Config{
		Registry:  reg,
		Gate:      gate,
		Accessor:  opts.Accessor,
		Overrides: opts.Overrides,
		Store:     store,
		Level:     cfg.LogLevel,
		PageSize:  cfg.PageSize,
		UserFunc:  userFn,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}

	return &Panel{
		cfg:      cfg,
		reg:      reg,
		disp:     disp,
		renderer: renderer,
		nav:      opts.NavItems,
		log:      log,
	}, nil
}

// contextUser reads the identity an auth middleware stashed on the
// request.
func contextUser(c web.Context) (string, string, error) {
	id, _ := c.Get(web.CtxUserID).(string)
	repr, _ := c.Get(web.CtxUserRepr).(string)
	if id == "" {
		return "", "", fmt.Errorf("no authenticated user on request")
	}
	return id, repr, nil
}

// Registry exposes the panel's registry for startup-time registration.
func (p *Panel) Registry() *registry.Registry { return p.reg }

// Dispatcher exposes the CRUD dispatcher, for hosts that build their own
// routes on top of it.
func (p *Panel) Dispatcher() *dispatch.Dispatcher { return p.disp }

// Renderer exposes the renderer for template and asset overrides.
func (p *Panel) Renderer() render.Renderer { return p.renderer }

// Config returns the panel's configuration.
func (p *Panel) Config() *Config { return p.cfg }

// Bind registers the panel's routes and assets on a web adapter. Static
// segments are registered before parameterized ones so order-sensitive
// routers resolve them first.
func (p *Panel) Bind(in web.Integrator) {
	prefix := strings.TrimSuffix(p.cfg.URLPrefix, "/")

	in.ServeAssets(p.cfg.AssetsPrefix, p.renderer.Assets())

	in.Handle(http.MethodGet, prefix+"/", p.handleDashboard)
	in.Handle(http.MethodGet, prefix+"/logs", p.handleLogs)
	in.Handle(http.MethodGet, prefix+"/:app/:model/new", p.handleNewForm)
	in.Handle(http.MethodGet, prefix+"/:app/:model", p.handleList)
	in.Handle(http.MethodPost, prefix+"/:app/:model", p.handleCreate)
	in.Handle(http.MethodGet, prefix+"/:app/:model/:id/edit", p.handleEditForm)
	in.Handle(http.MethodGet, prefix+"/:app/:model/:id", p.handleDetail)
	in.Handle(http.MethodPost, prefix+"/:app/:model/:id", p.handleUpdate)
	in.Handle(http.MethodPost, prefix+"/:app/:model/:id/delete", p.handleDelete)
}

// baseData merges the per-page data with what every template expects.
func (p *Panel) baseData(c web.Context, page map[string]any) map[string]any {
	nav := make([]NavItem, 0, len(p.nav))
	for _, fn := range p.nav {
		nav = append(nav, fn(c))
	}
	out := map[string]any{
		"Panel":        p.cfg.Name,
		"Prefix":       strings.TrimSuffix(p.cfg.URLPrefix, "/"),
		"AssetsPrefix": p.cfg.AssetsPrefix,
		"Nav":          nav,
	}
	for k, v := range page {
		out[k] = v
	}
	return out
}

// fail maps an error to its HTTP outcome. Denials and misses are 4xx;
// capability and rendering failures are 5xx with the cause logged.
func (p *Panel) fail(c web.Context, err error) (int, string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		p.log.Error("panel request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
		return status, "internal error"
	}
	return status, err.Error()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrForbidden), errors.Is(err, permission.ErrEvaluation):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrInvalidField):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
