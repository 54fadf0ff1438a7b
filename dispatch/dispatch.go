// Package dispatch executes panel CRUD operations: every request passes
// the permission gate, resolves its model against the registry, runs
// against the data-access capability and, on success, leaves a log entry.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gopanel/gopanel/data"
	"github.com/gopanel/gopanel/logstore"
	"github.com/gopanel/gopanel/permission"
	"github.com/gopanel/gopanel/registry"
	"github.com/gopanel/gopanel/web"
)

var (
	// ErrForbidden reports a permission denial. The data-access
	// capability is never touched when it is returned.
	ErrForbidden = errors.New("forbidden")
	// ErrDataAccess wraps a failure of the data-access capability.
	ErrDataAccess = errors.New("data access failure")
)

// UserFunc resolves the acting user from the request, for log entries.
type UserFunc func(c web.Context) (id, repr string, err error)

// Config carries the dispatcher's collaborators. Registry, Gate and
// Accessor are mandatory.
type Config struct {
	Registry *registry.Registry
	Gate     *permission.Gate
	// Accessor is the default data-access capability.
	Accessor data.Accessor
	// Overrides maps application IDs to a capability replacing the
	// default for that application's models.
	Overrides map[string]data.Accessor
	// Store receives log entries; nil disables logging entirely.
	Store logstore.Store
	// Level selects which actions are logged (cumulative semantics).
	Level logstore.Level
	// PageSize caps list and search results. Defaults to 20.
	PageSize int
	// UserFunc populates log-entry actor fields; nil means anonymous.
	UserFunc UserFunc
	Log      *zap.Logger
}

// Page is one page of list or search results.
type Page struct {
	Items []data.Record
	Num   int
	Size  int
	Query string
}

type Dispatcher struct {
	reg       *registry.Registry
	gate      *permission.Gate
	accessor  data.Accessor
	overrides map[string]data.Accessor
	store     logstore.Store
	level     logstore.Level
	pageSize  int
	userFn    UserFunc
	log       *zap.Logger
}

func New(cfg Config) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("dispatch: registry is required")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("dispatch: permission gate is required")
	}
	if cfg.Accessor == nil && len(cfg.Overrides) == 0 {
		return nil, fmt.Errorf("dispatch: a data accessor is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Dispatcher{
		reg:       cfg.Registry,
		gate:      cfg.Gate,
		accessor:  cfg.Accessor,
		overrides: cfg.Overrides,
		store:     cfg.Store,
		level:     cfg.Level,
		pageSize:  cfg.PageSize,
		userFn:    cfg.UserFunc,
		log:       cfg.Log,
	}, nil
}

// PageSize returns the configured page size.
func (d *Dispatcher) PageSize() int { return d.pageSize }

func (d *Dispatcher) accessorFor(appID string) data.Accessor {
	if acc, ok := d.overrides[appID]; ok {
		return acc
	}
	return d.accessor
}

// authorize runs the permission gate for one operation. A (false, nil)
// decision maps to ErrForbidden; an evaluation failure propagates as a
// denial carrying permission.ErrEvaluation.
func (d *Dispatcher) authorize(c web.Context, action permission.Action, appID, modelID, instanceID string) error {
	req := permission.Request{App: appID, Model: modelID, InstanceID: instanceID, Action: action}
	allowed, err := d.gate.Check(req, c)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%s %s/%s: %w", action, appID, modelID, ErrForbidden)
	}
	return nil
}

// Authorize runs the permission gate for an operation without executing
// it; form pages use it before rendering.
func (d *Dispatcher) Authorize(c web.Context, action permission.Action, appID, modelID, instanceID string) error {
	return d.authorize(c, action, appID, modelID, instanceID)
}

// PanelView authorizes and records a visit to the panel dashboard.
func (d *Dispatcher) PanelView(ctx context.Context, c web.Context) error {
	if err := d.authorize(c, permission.ActionRead, "", "", ""); err != nil {
		return err
	}
	d.logAction(ctx, c, logstore.FlagPanelView, "", "", "viewed panel")
	return nil
}

// List returns one page of a model's records, projected to its list
// fields, with a per-record permission re-check.
func (d *Dispatcher) List(ctx context.Context, c web.Context, appID, modelID string, page int) (*Page, error) {
	return d.list(ctx, c, appID, modelID, nil, "", page)
}

// ListFields is List with an explicit field projection.
func (d *Dispatcher) ListFields(ctx context.Context, c web.Context, appID, modelID string, fields []string, page int) (*Page, error) {
	return d.list(ctx, c, appID, modelID, fields, "", page)
}

// Search free-text matches query across the model's search fields.
func (d *Dispatcher) Search(ctx context.Context, c web.Context, appID, modelID, query string, page int) (*Page, error) {
	return d.list(ctx, c, appID, modelID, nil, query, page)
}

func (d *Dispatcher) list(ctx context.Context, c web.Context, appID, modelID string, fields []string, query string, page int) (*Page, error) {
	if err := d.authorize(c, permission.ActionRead, appID, modelID, ""); err != nil {
		return nil, err
	}
	m, err := d.reg.Model(appID, modelID)
	if err != nil {
		return nil, err
	}
	if fields != nil {
		if err := m.ValidateFields(fields); err != nil {
			return nil, err
		}
	}

	if page <= 0 {
		page = 1
	}
	limit := d.pageSize
	offset := (page - 1) * limit

	acc := d.accessorFor(appID)
	var recs []data.Record
	switch {
	case query != "":
		recs, err = acc.Search(ctx, m, query, m.SearchFields(), limit, offset)
	case fields != nil:
		recs, err = acc.FetchAllFields(ctx, m, fields, limit, offset)
	default:
		recs, err = acc.FetchAllFields(ctx, m, m.ListFields(), limit, offset)
	}
	if err != nil {
		return nil, d.wrapData(m, err)
	}

	// The decision function is re-evaluated per instance; rows it denies
	// are dropped from the page.
	visible := recs[:0]
	for _, rec := range recs {
		req := permission.Request{
			App: appID, Model: modelID,
			InstanceID: rec.PKString(m),
			Action:     permission.ActionRead,
		}
		allowed, err := d.gate.Check(req, c)
		if err != nil {
			d.log.Debug("per-instance permission check failed",
				zap.String("model", m.ID), zap.Error(err))
			continue
		}
		if allowed {
			visible = append(visible, rec)
		}
	}

	d.logAction(ctx, c, logstore.FlagListView, contentType(m), "",
		fmt.Sprintf("listed %s (page %d)", m.ID, page))
	return &Page{Items: visible, Num: page, Size: d.pageSize, Query: query}, nil
}

// Get returns a single record by primary key.
func (d *Dispatcher) Get(ctx context.Context, c web.Context, appID, modelID, id string) (data.Record, error) {
	return d.get(ctx, c, appID, modelID, id, nil)
}

// GetFields is Get with a field projection.
func (d *Dispatcher) GetFields(ctx context.Context, c web.Context, appID, modelID, id string, fields []string) (data.Record, error) {
	return d.get(ctx, c, appID, modelID, id, fields)
}

func (d *Dispatcher) get(ctx context.Context, c web.Context, appID, modelID, id string, fields []string) (data.Record, error) {
	if err := d.authorize(c, permission.ActionRead, appID, modelID, id); err != nil {
		return nil, err
	}
	m, err := d.reg.Model(appID, modelID)
	if err != nil {
		return nil, err
	}

	acc := d.accessorFor(appID)
	var rec data.Record
	if fields != nil {
		if err := m.ValidateFields(fields); err != nil {
			return nil, err
		}
		rec, err = acc.FetchOneFields(ctx, m, id, fields)
	} else {
		rec, err = acc.FetchOne(ctx, m, id)
	}
	if err != nil {
		return nil, d.wrapData(m, err)
	}

	d.logAction(ctx, c, logstore.FlagInstanceView, contentType(m), id,
		fmt.Sprintf("viewed %s %s", m.ID, id))
	return rec, nil
}

// Create stores a new record and returns its primary key. The record's
// keys are validated against the model's field set first.
func (d *Dispatcher) Create(ctx context.Context, c web.Context, appID, modelID string, rec data.Record) (string, error) {
	if err := d.authorize(c, permission.ActionCreate, appID, modelID, ""); err != nil {
		return "", err
	}
	m, err := d.reg.Model(appID, modelID)
	if err != nil {
		return "", err
	}
	if err := m.ValidateFields(recordFields(rec)); err != nil {
		return "", err
	}

	id, err := d.accessorFor(appID).Create(ctx, m, rec)
	if err != nil {
		return "", d.wrapData(m, err)
	}

	d.logAction(ctx, c, logstore.FlagCreate, contentType(m), id,
		fmt.Sprintf("created %s %s", m.ID, id))
	return id, nil
}

// Update rewrites the fields present in rec on the identified record;
// fields outside the record are left untouched.
func (d *Dispatcher) Update(ctx context.Context, c web.Context, appID, modelID, id string, rec data.Record) error {
	if err := d.authorize(c, permission.ActionUpdate, appID, modelID, id); err != nil {
		return err
	}
	m, err := d.reg.Model(appID, modelID)
	if err != nil {
		return err
	}
	if err := m.ValidateFields(recordFields(rec)); err != nil {
		return err
	}

	if err := d.accessorFor(appID).Update(ctx, m, id, rec); err != nil {
		return d.wrapData(m, err)
	}

	d.logAction(ctx, c, logstore.FlagUpdate, contentType(m), id,
		fmt.Sprintf("updated %s %s", m.ID, id))
	return nil
}

// Delete removes the identified record.
func (d *Dispatcher) Delete(ctx context.Context, c web.Context, appID, modelID, id string) error {
	if err := d.authorize(c, permission.ActionDelete, appID, modelID, id); err != nil {
		return err
	}
	m, err := d.reg.Model(appID, modelID)
	if err != nil {
		return err
	}

	if err := d.accessorFor(appID).Delete(ctx, m, id); err != nil {
		return d.wrapData(m, err)
	}

	d.logAction(ctx, c, logstore.FlagDelete, contentType(m), id,
		fmt.Sprintf("deleted %s %s", m.ID, id))
	return nil
}

// Logs returns one page of log entries, newest first.
func (d *Dispatcher) Logs(ctx context.Context, c web.Context, page int) ([]logstore.Entry, error) {
	if err := d.authorize(c, permission.ActionLogView, "", "", ""); err != nil {
		return nil, err
	}
	if d.store == nil {
		return nil, nil
	}
	if page <= 0 {
		page = 1
	}
	entries, err := d.store.Entries(ctx, d.pageSize, (page-1)*d.pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", logstore.ErrStore, err)
	}
	return entries, nil
}

// logAction appends a log entry, best-effort. A store failure is reported
// to the diagnostic logger and never fails the enclosing operation.
func (d *Dispatcher) logAction(ctx context.Context, c web.Context, flag logstore.ActionFlag, contentType, objectID, message string) {
	if d.store == nil || !d.level.Includes(flag) {
		return
	}
	e := logstore.Entry{
		ContentType: contentType,
		ObjectID:    objectID,
		ObjectRepr:  objectID,
		Flag:        flag,
		Message:     message,
	}
	if d.userFn != nil {
		id, repr, err := d.userFn(c)
		if err != nil {
			d.log.Debug("user fetch failed, logging as anonymous", zap.Error(err))
		} else {
			e.UserID = id
			e.UserRepr = repr
		}
	}
	if err := d.store.Append(ctx, e); err != nil {
		d.log.Error("log store append failed",
			zap.String("flag", flag.String()),
			zap.String("content_type", contentType),
			zap.Error(err))
	}
}

func (d *Dispatcher) wrapData(m *registry.Model, err error) error {
	if errors.Is(err, data.ErrNoRecord) {
		return fmt.Errorf("%s: %w", m.ID, registry.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", m.ID, ErrDataAccess, err)
}

func contentType(m *registry.Model) string {
	return m.App.ID + "." + m.ID
}

func recordFields(rec data.Record) []string {
	out := make([]string, 0, len(rec))
	for k := range rec {
		out = append(out, k)
	}
	return out
}
