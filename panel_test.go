package gopanel

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gopanel/gopanel/adapter/memdata"
	"github.com/gopanel/gopanel/data"
	"github.com/gopanel/gopanel/dispatch"
	"github.com/gopanel/gopanel/logstore"
	"github.com/gopanel/gopanel/permission"
	"github.com/gopanel/gopanel/registry"
	"github.com/gopanel/gopanel/web"
)

type testPost struct {
	ID      int
	Title   string `admin:"search"`
	Content string `admin:"-list"`
	Public  bool
}

// fakeIntegrator records what Bind registers, keyed "METHOD path".
type fakeIntegrator struct {
	routes       map[string]web.HandlerFunc
	assetsPrefix string
	assets       map[string][]byte
}

func newFakeIntegrator() *fakeIntegrator {
	return &fakeIntegrator{routes: make(map[string]web.HandlerFunc)}
}

func (f *fakeIntegrator) Handle(method, path string, h web.HandlerFunc) {
	f.routes[method+" "+path] = h
}

func (f *fakeIntegrator) ServeAssets(prefix string, assets map[string][]byte) {
	f.assetsPrefix = prefix
	f.assets = assets
}

// testCtx is a minimal web.Context for driving handlers directly.
type testCtx struct {
	method string
	path   string
	params map[string]string
	query  map[string]string
	form   map[string]string
	vals   map[string]any
}

func newTestCtx() *testCtx {
	return &testCtx{
		params: map[string]string{},
		query:  map[string]string{},
		form:   map[string]string{},
		vals: map[string]any{
			web.CtxUserID:   "u1",
			web.CtxUserRepr: "User One",
		},
	}
}

func (c *testCtx) Context() context.Context     { return context.Background() }
func (c *testCtx) Method() string               { return c.method }
func (c *testCtx) Path() string                 { return c.path }
func (c *testCtx) Param(name string) string     { return c.params[name] }
func (c *testCtx) Query(name string) string     { return c.query[name] }
func (c *testCtx) FormValue(name string) string { return c.form[name] }
func (c *testCtx) Form() map[string]string      { return c.form }
func (c *testCtx) Get(key string) any           { return c.vals[key] }
func (c *testCtx) Set(key string, v any)        { c.vals[key] = v }

func newTestPanel(t *testing.T, fn permission.Func) (*Panel, *logstore.MemoryStore) {
	t.Helper()

	reg := registry.New()
	if _, err := reg.RegisterApplication("blog", "Blog"); err != nil {
		t.Fatal(err)
	}
	m, err := reg.RegisterModel("blog", testPost{})
	if err != nil {
		t.Fatal(err)
	}

	mem := memdata.New()
	seed := []data.Record{
		{"Title": "Hello", "Content": "first", "Public": true},
		{"Title": "Drafts", "Content": "second", "Public": false},
		{"Title": "Goodbye", "Content": "third", "Public": true},
	}
	for _, rec := range seed {
		if _, err := mem.Create(context.Background(), m, rec); err != nil {
			t.Fatal(err)
		}
	}

	store := logstore.NewMemoryStore(100)
	p, err := New(Options{
		Registry:   reg,
		Permission: fn,
		Accessor:   mem,
		Store:      store,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p, store
}

func TestBindRegistersPanelRoutes(t *testing.T) {
	p, _ := newTestPanel(t, permission.AllowAll)
	in := newFakeIntegrator()
	p.Bind(in)

	want := []string{
		"GET /admin/",
		"GET /admin/logs",
		"GET /admin/:app/:model/new",
		"GET /admin/:app/:model",
		"POST /admin/:app/:model",
		"GET /admin/:app/:model/:id/edit",
		"GET /admin/:app/:model/:id",
		"POST /admin/:app/:model/:id",
		"POST /admin/:app/:model/:id/delete",
	}
	for _, route := range want {
		if _, ok := in.routes[route]; !ok {
			t.Errorf("route %q not registered", route)
		}
	}
	if in.assetsPrefix != "/admin/assets" {
		t.Errorf("assets prefix = %q, want /admin/assets", in.assetsPrefix)
	}
	if len(in.assets) == 0 {
		t.Error("no assets served")
	}
}

func TestDashboardListsApplications(t *testing.T) {
	p, _ := newTestPanel(t, permission.AllowAll)
	c := newTestCtx()

	status, body := p.handleDashboard(c)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %q", status, body)
	}
	if !strings.Contains(body, "Blog") {
		t.Errorf("dashboard does not mention the registered application:\n%s", body)
	}
}

func TestListAndDetail(t *testing.T) {
	p, _ := newTestPanel(t, permission.AllowAll)

	c := newTestCtx()
	c.params["app"], c.params["model"] = "blog", "testpost"
	status, body := p.handleList(c)
	if status != http.StatusOK {
		t.Fatalf("list status = %d, body = %q", status, body)
	}
	for _, title := range []string{"Hello", "Drafts", "Goodbye"} {
		if !strings.Contains(body, title) {
			t.Errorf("list missing %q", title)
		}
	}
	// Content is tagged out of the list view.
	if strings.Contains(body, "first") {
		t.Error("list leaked a field excluded from list views")
	}

	c = newTestCtx()
	c.params["app"], c.params["model"], c.params["id"] = "blog", "testpost", "1"
	status, body = p.handleDetail(c)
	if status != http.StatusOK {
		t.Fatalf("detail status = %d, body = %q", status, body)
	}
	if !strings.Contains(body, "Hello") || !strings.Contains(body, "first") {
		t.Errorf("detail missing record fields:\n%s", body)
	}
}

func TestSearchFiltersByQuery(t *testing.T) {
	p, _ := newTestPanel(t, permission.AllowAll)

	c := newTestCtx()
	c.params["app"], c.params["model"] = "blog", "testpost"
	c.query["q"] = "good"
	status, body := p.handleList(c)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, "Goodbye") {
		t.Error("search result missing the matching record")
	}
	if strings.Contains(body, "Hello") {
		t.Error("search result contains a non-matching record")
	}
}

func TestDeniedReadIsForbiddenAndUnlogged(t *testing.T) {
	denyAll := func(permission.Request, web.Context) (bool, error) { return false, nil }
	p, store := newTestPanel(t, denyAll)

	c := newTestCtx()
	c.params["app"], c.params["model"], c.params["id"] = "blog", "testpost", "1"
	status, _ := p.handleDetail(c)
	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", status, http.StatusForbidden)
	}
	if store.Len() != 0 {
		t.Errorf("denied operation left %d log entries", store.Len())
	}
}

func TestDeleteLeavesOneLogEntry(t *testing.T) {
	p, store := newTestPanel(t, permission.AllowAll)

	c := newTestCtx()
	c.params["app"], c.params["model"], c.params["id"] = "blog", "testpost", "2"
	status, _ := p.handleDelete(c)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	entries, err := store.Entries(context.Background(), 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	var deletes []logstore.Entry
	for _, e := range entries {
		if e.Flag == logstore.FlagDelete {
			deletes = append(deletes, e)
		}
	}
	if len(deletes) != 1 {
		t.Fatalf("delete entries = %d, want 1", len(deletes))
	}
	e := deletes[0]
	if e.ContentType != "blog.testpost" || e.ObjectID != "2" {
		t.Errorf("entry = %+v", e)
	}
	if e.UserID != "u1" || e.UserRepr != "User One" {
		t.Errorf("entry actor = %q/%q, want the stashed identity", e.UserID, e.UserRepr)
	}
}

func TestCreateFromForm(t *testing.T) {
	p, _ := newTestPanel(t, permission.AllowAll)

	c := newTestCtx()
	c.params["app"], c.params["model"] = "blog", "testpost"
	c.form = map[string]string{"Title": "Fresh", "Content": "new body", "Public": "true"}
	status, body := p.handleCreate(c)
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body = %q", status, body)
	}
	if !strings.Contains(body, "Fresh") {
		t.Errorf("create response does not show the new record:\n%s", body)
	}
}

func TestUpdatePartialFormKeepsOtherFields(t *testing.T) {
	p, _ := newTestPanel(t, permission.AllowAll)

	c := newTestCtx()
	c.params["app"], c.params["model"], c.params["id"] = "blog", "testpost", "1"
	// Only Title submitted: Content must survive, the absent checkbox
	// means Public goes false.
	c.form = map[string]string{"Title": "Hello v2"}
	status, body := p.handleUpdate(c)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %q", status, body)
	}
	if !strings.Contains(body, "Hello v2") || !strings.Contains(body, "first") {
		t.Errorf("update lost fields:\n%s", body)
	}
	if !strings.Contains(body, "false") {
		t.Errorf("absent checkbox did not clear the boolean:\n%s", body)
	}
}

func TestUpdateRejectsBadInput(t *testing.T) {
	p, _ := newTestPanel(t, permission.AllowAll)

	c := newTestCtx()
	c.params["app"], c.params["model"], c.params["id"] = "blog", "testpost", "1"
	c.form = map[string]string{"Public": "not-a-bool"}
	status, _ := p.handleUpdate(c)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", status, http.StatusBadRequest)
	}
}

func TestUnknownModelIs404ButDenialWins(t *testing.T) {
	p, _ := newTestPanel(t, permission.AllowAll)

	c := newTestCtx()
	c.params["app"], c.params["model"] = "blog", "nosuch"
	status, _ := p.handleList(c)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", status, http.StatusNotFound)
	}

	// With a denying policy the same miss is a 403: authorization is
	// checked before existence is revealed.
	denyAll := func(permission.Request, web.Context) (bool, error) { return false, nil }
	p2, _ := newTestPanel(t, denyAll)
	c = newTestCtx()
	c.params["app"], c.params["model"] = "blog", "nosuch"
	c.form = map[string]string{"Title": "x"}
	status, _ = p2.handleCreate(c)
	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", status, http.StatusForbidden)
	}
}

func TestLogsPageRequiresLogView(t *testing.T) {
	readerOnly := func(req permission.Request, _ web.Context) (bool, error) {
		return req.Action != permission.ActionLogView, nil
	}
	p, _ := newTestPanel(t, readerOnly)

	c := newTestCtx()
	status, _ := p.handleLogs(c)
	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", status, http.StatusForbidden)
	}

	p2, _ := newTestPanel(t, permission.AllowAll)
	c = newTestCtx()
	// Produce an entry, then read the page.
	c.params["app"], c.params["model"], c.params["id"] = "blog", "testpost", "1"
	if status, _ := p2.handleDetail(c); status != http.StatusOK {
		t.Fatal("detail view failed")
	}
	status, body := p2.handleLogs(newTestCtx())
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, "instance_view") {
		t.Errorf("logs page missing the recorded action:\n%s", body)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"forbidden", dispatch.ErrForbidden, http.StatusForbidden},
		{"evaluation failure", permission.ErrEvaluation, http.StatusForbidden},
		{"not found", registry.ErrNotFound, http.StatusNotFound},
		{"invalid field", registry.ErrInvalidField, http.StatusBadRequest},
		{"data access", dispatch.ErrDataAccess, http.StatusInternalServerError},
		{"render", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusFor(tc.err); got != tc.want {
				t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestParseFormConversions(t *testing.T) {
	reg := registry.New()
	if _, err := reg.RegisterApplication("blog", ""); err != nil {
		t.Fatal(err)
	}
	type typed struct {
		ID    int
		Name  string
		Count int
		Score float64
		Live  bool
	}
	m, err := reg.RegisterModel("blog", typed{})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := parseForm(m, m.AddFormFields(), map[string]string{
		"Name":  "x",
		"Count": "42",
		"Score": "2.5",
		"Live":  "true",
	})
	if err != nil {
		t.Fatal(err)
	}
	if rec["Count"] != int64(42) || rec["Score"] != 2.5 || rec["Live"] != true {
		t.Errorf("rec = %v", rec)
	}

	// Absent non-boolean fields stay absent; absent booleans go false.
	rec, err = parseForm(m, m.AddFormFields(), map[string]string{"Name": "y"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rec["Count"]; ok {
		t.Error("absent int field was filled in")
	}
	if rec["Live"] != false {
		t.Error("absent checkbox should read as false")
	}

	if _, err := parseForm(m, m.AddFormFields(), map[string]string{"Count": "NaN"}); !errors.Is(err, registry.ErrInvalidField) {
		t.Errorf("err = %v, want ErrInvalidField", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.normalize()
	if cfg.AssetsPrefix != "/admin/assets" {
		t.Errorf("AssetsPrefix = %q", cfg.AssetsPrefix)
	}
	if cfg.PageSize != 20 || cfg.LogCapacity != 1000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logstore.Level{
		"off":           logstore.LevelOff,
		"panel_view":    logstore.LevelPanelView,
		"delete":        logstore.LevelDelete,
		"gibberish":     logstore.LevelInstanceView,
		"instance_view": logstore.LevelInstanceView,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %d, want %d", in, got, want)
		}
	}
}
