// Package data defines the pluggable data-access capability the CRUD
// dispatcher drives. One adapter exists per backing store; the core only
// ever sees this interface.
package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/gopanel/gopanel/registry"
)

// ErrNoRecord reports that the requested instance does not exist.
// Adapters return it (possibly wrapped) so the dispatcher can surface a
// not-found outcome instead of a data-access failure.
var ErrNoRecord = errors.New("record not found")

// Record is one instance of a model, keyed by field name. For create and
// update, only the keys present are written: a partial record is a field
// projection.
type Record map[string]any

// PK extracts the record's primary-key value per the model descriptor.
func (r Record) PK(m *registry.Model) any {
	return r[m.PK.Name]
}

// PKString renders the record's primary key as the string form used in
// URLs and log entries.
func (r Record) PKString(m *registry.Model) string {
	v := r.PK(m)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Project copies only the named fields into a new record.
func (r Record) Project(fields []string) Record {
	out := make(Record, len(fields))
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		}
	}
	return out
}

// Accessor is the capability contract a storage backend implements.
// Instance identifiers arrive as strings (their URL form); the adapter
// converts them using the model's primary-key descriptor. All list-like
// methods honor limit/offset in the backend's natural order.
type Accessor interface {
	// FetchAll returns up to limit records starting at offset.
	FetchAll(ctx context.Context, m *registry.Model, limit, offset int) ([]Record, error)
	// FetchAllFields is FetchAll with a field projection.
	FetchAllFields(ctx context.Context, m *registry.Model, fields []string, limit, offset int) ([]Record, error)
	// Search free-text matches query across the named fields.
	Search(ctx context.Context, m *registry.Model, query string, fields []string, limit, offset int) ([]Record, error)
	// FetchOne returns the record with the given primary key.
	FetchOne(ctx context.Context, m *registry.Model, id string) (Record, error)
	// FetchOneFields is FetchOne with a field projection.
	FetchOneFields(ctx context.Context, m *registry.Model, id string, fields []string) (Record, error)
	// Create stores a new record and returns its primary key. A partial
	// record creates with only those fields set.
	Create(ctx context.Context, m *registry.Model, rec Record) (string, error)
	// Update rewrites the fields present in rec on the identified record.
	Update(ctx context.Context, m *registry.Model, id string, rec Record) error
	// Delete removes the identified record.
	Delete(ctx context.Context, m *registry.Model, id string) error
}
