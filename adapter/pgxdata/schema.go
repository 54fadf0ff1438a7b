package pgxdata

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gopanel/gopanel/registry"
)

// EnsureSchema creates the backing table for every registered model that
// does not have one yet. Column types follow the field kinds; it never
// alters existing tables.
func (s *Store) EnsureSchema(ctx context.Context, reg *registry.Registry, log *zap.Logger) error {
	for _, app := range reg.Apps() {
		for _, m := range app.Models() {
			if err := s.ensureTable(ctx, m); err != nil {
				return fmt.Errorf("ensure table for %s.%s: %w", app.ID, m.ID, err)
			}
			log.Debug("table ready", zap.String("table", m.App.ID+"_"+m.ID))
		}
	}
	return nil
}

func (s *Store) ensureTable(ctx context.Context, m *registry.Model) error {
	cols := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		cols = append(cols, column(f.Name)+" "+columnType(f))
	}

	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s)`,
		tableName(m), strings.Join(cols, ", "),
	)

	_, err := s.pool.Exec(ctx, query)
	return err
}

func columnType(f registry.Field) string {
	if f.IsPK {
		if f.Kind == registry.KindInt {
			return "BIGSERIAL PRIMARY KEY"
		}
		return "TEXT PRIMARY KEY"
	}
	switch f.Kind {
	case registry.KindInt:
		return "BIGINT NOT NULL DEFAULT 0"
	case registry.KindFloat:
		return "DOUBLE PRECISION NOT NULL DEFAULT 0"
	case registry.KindBool:
		return "BOOLEAN NOT NULL DEFAULT FALSE"
	case registry.KindTime:
		return "TIMESTAMPTZ NOT NULL DEFAULT NOW()"
	default:
		return "TEXT NOT NULL DEFAULT ''"
	}
}
