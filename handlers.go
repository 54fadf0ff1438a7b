package gopanel

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gopanel/gopanel/data"
	"github.com/gopanel/gopanel/dispatch"
	"github.com/gopanel/gopanel/permission"
	"github.com/gopanel/gopanel/registry"
	"github.com/gopanel/gopanel/web"
)

func (p *Panel) handleDashboard(c web.Context) (int, string) {
	if err := p.disp.PanelView(c.Context(), c); err != nil {
		return p.fail(c, err)
	}
	html, err := p.renderer.Render("dashboard", p.baseData(c, map[string]any{
		"Apps": p.reg.Apps(),
	}))
	if err != nil {
		return p.fail(c, err)
	}
	return http.StatusOK, html
}

func (p *Panel) handleLogs(c web.Context) (int, string) {
	page := queryInt(c, "page", 1)
	entries, err := p.disp.Logs(c.Context(), c, page)
	if err != nil {
		return p.fail(c, err)
	}
	html, err := p.renderer.Render("logs", p.baseData(c, map[string]any{
		"Entries": entries,
		"Page":    page,
	}))
	if err != nil {
		return p.fail(c, err)
	}
	return http.StatusOK, html
}

func (p *Panel) handleList(c web.Context) (int, string) {
	appID, modelID := c.Param("app"), c.Param("model")
	pageNum := queryInt(c, "page", 1)
	query := c.Query("q")

	var (
		page *dispatch.Page
		err  error
	)
	if query != "" {
		page, err = p.disp.Search(c.Context(), c, appID, modelID, query, pageNum)
	} else {
		page, err = p.disp.List(c.Context(), c, appID, modelID, pageNum)
	}
	if err != nil {
		return p.fail(c, err)
	}

	m, err := p.reg.Model(appID, modelID)
	if err != nil {
		return p.fail(c, err)
	}

	html, err := p.renderer.Render("list", p.baseData(c, map[string]any{
		"App":      m.App,
		"Model":    m,
		"Fields":   m.ListFields(),
		"Items":    page.Items,
		"Page":     page.Num,
		"PrevPage": page.Num - 1,
		"NextPage": page.Num + 1,
		"HasMore":  len(page.Items) == page.Size,
		"Query":    query,
	}))
	if err != nil {
		return p.fail(c, err)
	}
	return http.StatusOK, html
}

func (p *Panel) handleDetail(c web.Context) (int, string) {
	appID, modelID, id := c.Param("app"), c.Param("model"), c.Param("id")
	rec, err := p.disp.Get(c.Context(), c, appID, modelID, id)
	if err != nil {
		return p.fail(c, err)
	}
	return p.renderDetail(c, appID, modelID, id, rec, http.StatusOK)
}

func (p *Panel) handleNewForm(c web.Context) (int, string) {
	appID, modelID := c.Param("app"), c.Param("model")
	if err := p.disp.Authorize(c, permission.ActionCreate, appID, modelID, ""); err != nil {
		return p.fail(c, err)
	}
	m, err := p.reg.Model(appID, modelID)
	if err != nil {
		return p.fail(c, err)
	}

	html, err := p.renderer.Render("form", p.baseData(c, map[string]any{
		"App":        m.App,
		"Model":      m,
		"Title":      "Add " + m.Name,
		"Action":     fmt.Sprintf("%s/%s/%s", p.prefix(), appID, modelID),
		"FormFields": fieldDescriptors(m, m.AddFormFields()),
		"Record":     data.Record{},
	}))
	if err != nil {
		return p.fail(c, err)
	}
	return http.StatusOK, html
}

func (p *Panel) handleCreate(c web.Context) (int, string) {
	appID, modelID := c.Param("app"), c.Param("model")
	m, err := p.reg.Model(appID, modelID)
	if err != nil {
		// Authorization still runs first for the 403-over-404 contract.
		if authErr := p.disp.Authorize(c, permission.ActionCreate, appID, modelID, ""); authErr != nil {
			return p.fail(c, authErr)
		}
		return p.fail(c, err)
	}

	rec, err := parseForm(m, m.AddFormFields(), c.Form())
	if err != nil {
		return p.fail(c, err)
	}

	id, err := p.disp.Create(c.Context(), c, appID, modelID, rec)
	if err != nil {
		return p.fail(c, err)
	}

	full, err := p.disp.Get(c.Context(), c, appID, modelID, id)
	if err != nil {
		// Created but not readable back (read denied, say); still a success.
		return http.StatusCreated, fmt.Sprintf("created %s %s", modelID, id)
	}
	return p.renderDetail(c, appID, modelID, id, full, http.StatusCreated)
}

func (p *Panel) handleEditForm(c web.Context) (int, string) {
	appID, modelID, id := c.Param("app"), c.Param("model"), c.Param("id")
	if err := p.disp.Authorize(c, permission.ActionUpdate, appID, modelID, id); err != nil {
		return p.fail(c, err)
	}
	m, err := p.reg.Model(appID, modelID)
	if err != nil {
		return p.fail(c, err)
	}
	rec, err := p.disp.Get(c.Context(), c, appID, modelID, id)
	if err != nil {
		return p.fail(c, err)
	}

	html, err := p.renderer.Render("form", p.baseData(c, map[string]any{
		"App":        m.App,
		"Model":      m,
		"Title":      fmt.Sprintf("Edit %s %s", m.Name, id),
		"Action":     fmt.Sprintf("%s/%s/%s/%s", p.prefix(), appID, modelID, id),
		"FormFields": fieldDescriptors(m, m.EditFormFields()),
		"Record":     rec,
	}))
	if err != nil {
		return p.fail(c, err)
	}
	return http.StatusOK, html
}

func (p *Panel) handleUpdate(c web.Context) (int, string) {
	appID, modelID, id := c.Param("app"), c.Param("model"), c.Param("id")
	m, err := p.reg.Model(appID, modelID)
	if err != nil {
		if authErr := p.disp.Authorize(c, permission.ActionUpdate, appID, modelID, id); authErr != nil {
			return p.fail(c, authErr)
		}
		return p.fail(c, err)
	}

	rec, err := parseForm(m, m.EditFormFields(), c.Form())
	if err != nil {
		return p.fail(c, err)
	}

	if err := p.disp.Update(c.Context(), c, appID, modelID, id, rec); err != nil {
		return p.fail(c, err)
	}

	full, err := p.disp.Get(c.Context(), c, appID, modelID, id)
	if err != nil {
		return http.StatusOK, fmt.Sprintf("updated %s %s", modelID, id)
	}
	return p.renderDetail(c, appID, modelID, id, full, http.StatusOK)
}

func (p *Panel) handleDelete(c web.Context) (int, string) {
	appID, modelID, id := c.Param("app"), c.Param("model"), c.Param("id")
	if err := p.disp.Delete(c.Context(), c, appID, modelID, id); err != nil {
		return p.fail(c, err)
	}
	return http.StatusOK, fmt.Sprintf("deleted %s %s", modelID, id)
}

func (p *Panel) renderDetail(c web.Context, appID, modelID, id string, rec data.Record, status int) (int, string) {
	m, err := p.reg.Model(appID, modelID)
	if err != nil {
		return p.fail(c, err)
	}
	html, err := p.renderer.Render("detail", p.baseData(c, map[string]any{
		"App":    m.App,
		"Model":  m,
		"ID":     id,
		"Record": rec,
	}))
	if err != nil {
		return p.fail(c, err)
	}
	return status, html
}

func (p *Panel) prefix() string {
	pfx := p.cfg.URLPrefix
	for len(pfx) > 1 && pfx[len(pfx)-1] == '/' {
		pfx = pfx[:len(pfx)-1]
	}
	return pfx
}

func fieldDescriptors(m *registry.Model, names []string) []registry.Field {
	out := make([]registry.Field, 0, len(names))
	for _, n := range names {
		if f, ok := m.Field(n); ok {
			out = append(out, f)
		}
	}
	return out
}

// parseForm converts submitted form values into a typed record, honoring
// the model's field kinds. Only the allowed fields are read; absent
// fields stay absent (a partial update), except booleans where an absent
// checkbox means false.
func parseForm(m *registry.Model, allowed []string, form map[string]string) (data.Record, error) {
	rec := make(data.Record, len(allowed))
	for _, name := range allowed {
		f, ok := m.Field(name)
		if !ok {
			continue
		}
		raw, present := form[name]
		if !present {
			if f.Kind == registry.KindBool {
				rec[name] = false
			}
			continue
		}
		v, err := convert(f, raw)
		if err != nil {
			return nil, err
		}
		rec[name] = v
	}
	return rec, nil
}

func convert(f registry.Field, raw string) (any, error) {
	switch f.Kind {
	case registry.KindString:
		return raw, nil
	case registry.KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q wants an integer: %w", f.Name, registry.ErrInvalidField)
		}
		return n, nil
	case registry.KindFloat:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q wants a number: %w", f.Name, registry.ErrInvalidField)
		}
		return n, nil
	case registry.KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q wants a boolean: %w", f.Name, registry.ErrInvalidField)
		}
		return b, nil
	case registry.KindTime:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("field %q wants a timestamp: %w", f.Name, registry.ErrInvalidField)
	default:
		return raw, nil
	}
}

func queryInt(c web.Context, name string, fallback int) int {
	s := c.Query(name)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
