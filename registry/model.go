package registry

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Field kinds, derived from the Go type at registration time.
const (
	KindString = "string"
	KindInt    = "int"
	KindFloat  = "float"
	KindBool   = "bool"
	KindTime   = "time"
)

// Field describes one column of a registered model. Built once during
// registration; request handling only reads it.
type Field struct {
	Name       string
	Label      string
	Kind       string
	IsPK       bool
	InList     bool
	InSearch   bool
	InAddForm  bool
	InEditForm bool
}

// Model is the descriptor for one registered data type. Read-only after
// registration.
type Model struct {
	ID     string
	Name   string
	App    *Application
	Type   reflect.Type
	Fields []Field
	PK     Field
}

// ModelOption tweaks a model during registration.
type ModelOption func(*Model)

// WithDisplayName overrides the model's human-readable name.
func WithDisplayName(name string) ModelOption {
	return func(m *Model) { m.Name = name }
}

// WithID overrides the identifier derived from the type name.
func WithID(id string) ModelOption {
	return func(m *Model) { m.ID = id }
}

// Field returns the descriptor for a field by name.
func (m *Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ValidateFields checks a projection list against the model's field set.
// Unknown names fail with ErrInvalidField rather than being dropped.
func (m *Model) ValidateFields(names []string) error {
	for _, n := range names {
		if _, ok := m.Field(n); !ok {
			return fmt.Errorf("field %q on model %q: %w", n, m.ID, ErrInvalidField)
		}
	}
	return nil
}

// ListFields returns the names of fields shown in list views.
func (m *Model) ListFields() []string { return m.fieldsWhere(func(f Field) bool { return f.InList }) }

// SearchFields returns the names of fields matched by free-text search.
func (m *Model) SearchFields() []string {
	return m.fieldsWhere(func(f Field) bool { return f.InSearch })
}

// AddFormFields returns the names of fields editable on the add form.
func (m *Model) AddFormFields() []string {
	return m.fieldsWhere(func(f Field) bool { return f.InAddForm })
}

// EditFormFields returns the names of fields editable on the edit form.
func (m *Model) EditFormFields() []string {
	return m.fieldsWhere(func(f Field) bool { return f.InEditForm })
}

func (m *Model) fieldsWhere(keep func(Field) bool) []string {
	var out []string
	for _, f := range m.Fields {
		if keep(f) {
			out = append(out, f.Name)
		}
	}
	return out
}

// describe builds a model descriptor from a struct prototype. The primary
// key is the field tagged `admin:"pk"`, or a field named ID.
func describe(prototype any) (*Model, error) {
	t := reflect.TypeOf(prototype)
	if t == nil {
		return nil, fmt.Errorf("nil prototype: %w", ErrInvalidPrimaryKey)
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("prototype %s is not a struct: %w", t, ErrInvalidPrimaryKey)
	}

	m := &Model{
		ID:   strings.ToLower(t.Name()),
		Name: t.Name(),
		Type: t,
	}

	pkFound := false
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("admin")
		if tag == "-" {
			continue
		}
		kind, ok := fieldKind(sf.Type)
		if !ok {
			continue
		}

		f := Field{
			Name:       sf.Name,
			Label:      sf.Name,
			Kind:       kind,
			InList:     true,
			InSearch:   kind == KindString,
			InAddForm:  true,
			InEditForm: true,
		}
		applyTag(&f, tag)

		if !f.IsPK && sf.Name == "ID" && !pkFound {
			f.IsPK = true
		}
		if f.IsPK {
			if pkFound {
				return nil, fmt.Errorf("model %q has more than one primary key: %w", m.ID, ErrInvalidPrimaryKey)
			}
			pkFound = true
			// The key is assigned by the store, not typed into forms.
			f.InAddForm = false
			f.InEditForm = false
			f.InSearch = false
			m.PK = f
		}
		m.Fields = append(m.Fields, f)
	}

	if !pkFound {
		return nil, fmt.Errorf("model %q lacks a resolvable primary key: %w", m.ID, ErrInvalidPrimaryKey)
	}
	return m, nil
}

// applyTag parses `admin:"label=Published At,search,-edit,pk"` style tags.
func applyTag(f *Field, tag string) {
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "":
		case strings.HasPrefix(part, "label="):
			f.Label = strings.TrimPrefix(part, "label=")
		case part == "pk":
			f.IsPK = true
		case part == "list":
			f.InList = true
		case part == "-list":
			f.InList = false
		case part == "search":
			f.InSearch = true
		case part == "-search":
			f.InSearch = false
		case part == "add":
			f.InAddForm = true
		case part == "-add":
			f.InAddForm = false
		case part == "edit":
			f.InEditForm = true
		case part == "-edit":
			f.InEditForm = false
		}
	}
}

func fieldKind(t reflect.Type) (string, bool) {
	if t == reflect.TypeOf(time.Time{}) {
		return KindTime, true
	}
	switch t.Kind() {
	case reflect.String:
		return KindString, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt, true
	case reflect.Float32, reflect.Float64:
		return KindFloat, true
	case reflect.Bool:
		return KindBool, true
	default:
		return "", false
	}
}
