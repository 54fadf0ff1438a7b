package pgxdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gopanel/gopanel/data"
	"github.com/gopanel/gopanel/registry"
)

// Store implements data.Accessor over a pgx connection pool. Tables are
// named <app>_<model>, columns after the lowercased field names.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) FetchAll(ctx context.Context, m *registry.Model, limit, offset int) ([]data.Record, error) {
	return s.FetchAllFields(ctx, m, fieldNames(m), limit, offset)
}

func (s *Store) FetchAllFields(ctx context.Context, m *registry.Model, fields []string, limit, offset int) ([]data.Record, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %s ORDER BY %s LIMIT $1 OFFSET $2`,
		columnList(fields), tableName(m), column(m.PK.Name),
	)

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", m.ID, err)
	}
	defer rows.Close()

	return collect(rows, fields)
}

func (s *Store) Search(ctx context.Context, m *registry.Model, query string, fields []string, limit, offset int) ([]data.Record, error) {
	if len(fields) == 0 {
		return []data.Record{}, nil
	}

	conds := make([]string, 0, len(fields))
	for _, f := range fields {
		conds = append(conds, fmt.Sprintf("%s ILIKE $1", column(f)))
	}

	all := fieldNames(m)
	sql := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT $2 OFFSET $3`,
		columnList(all), tableName(m), strings.Join(conds, " OR "), column(m.PK.Name),
	)

	rows, err := s.pool.Query(ctx, sql, "%"+query+"%", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", m.ID, err)
	}
	defer rows.Close()

	return collect(rows, all)
}

func (s *Store) FetchOne(ctx context.Context, m *registry.Model, id string) (data.Record, error) {
	return s.FetchOneFields(ctx, m, id, fieldNames(m))
}

func (s *Store) FetchOneFields(ctx context.Context, m *registry.Model, id string, fields []string) (data.Record, error) {
	key, err := pkValue(m, id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = $1 LIMIT 1`,
		columnList(fields), tableName(m), column(m.PK.Name),
	)

	rows, err := s.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", m.ID, id, err)
	}
	defer rows.Close()

	recs, err := collect(rows, fields)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s %s: %w", m.ID, id, data.ErrNoRecord)
	}
	return recs[0], nil
}

func (s *Store) Create(ctx context.Context, m *registry.Model, rec data.Record) (string, error) {
	cols := make([]string, 0, len(rec))
	placeholders := make([]string, 0, len(rec))
	args := make([]any, 0, len(rec))

	// Walk the descriptor so column order is deterministic.
	for _, f := range m.Fields {
		v, ok := rec[f.Name]
		if !ok {
			continue
		}
		cols = append(cols, column(f.Name))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, v)
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("create %s: empty record", m.ID)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		tableName(m), strings.Join(cols, ", "), strings.Join(placeholders, ", "), column(m.PK.Name),
	)

	var key any
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&key); err != nil {
		return "", fmt.Errorf("create %s: %w", m.ID, err)
	}
	return fmt.Sprint(key), nil
}

func (s *Store) Update(ctx context.Context, m *registry.Model, id string, rec data.Record) error {
	key, err := pkValue(m, id)
	if err != nil {
		return err
	}

	sets := make([]string, 0, len(rec))
	args := make([]any, 0, len(rec)+1)
	for _, f := range m.Fields {
		if f.IsPK {
			continue
		}
		v, ok := rec[f.Name]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column(f.Name), len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, key)
	query := fmt.Sprintf(
		`UPDATE %s SET %s WHERE %s = $%d`,
		tableName(m), strings.Join(sets, ", "), column(m.PK.Name), len(args),
	)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", m.ID, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", m.ID, id, data.ErrNoRecord)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, m *registry.Model, id string) error {
	key, err := pkValue(m, id)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, tableName(m), column(m.PK.Name))

	tag, err := s.pool.Exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", m.ID, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", m.ID, id, data.ErrNoRecord)
	}
	return nil
}

// collect scans every row into records keyed by the original field names.
func collect(rows pgx.Rows, fields []string) ([]data.Record, error) {
	out := []data.Record{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec := make(data.Record, len(fields))
		for i, f := range fields {
			if i < len(values) {
				rec[f] = values[i]
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return out, nil
}

// pkValue converts the URL form of a primary key to the column's type.
func pkValue(m *registry.Model, id string) (any, error) {
	switch m.PK.Kind {
	case registry.KindInt:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", m.ID, id, data.ErrNoRecord)
		}
		return n, nil
	default:
		return id, nil
	}
}

func tableName(m *registry.Model) string {
	return pgx.Identifier{m.App.ID + "_" + m.ID}.Sanitize()
}

func column(field string) string {
	return pgx.Identifier{strings.ToLower(field)}.Sanitize()
}

func columnList(fields []string) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = column(f)
	}
	return strings.Join(cols, ", ")
}

func fieldNames(m *registry.Model) []string {
	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.Name
	}
	return out
}
