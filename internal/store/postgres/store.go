// Package postgres implements store.RecordStore over database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"eduprima/internal/store"

	"github.com/lib/pq"
)

const (
	codeForeignKeyViolation = "23503"
	codeUndefinedFunction   = "42883"
)

// Store runs parameterised SQL against a pooled connection. It holds no
// transaction between calls.
type Store struct {
	db              *sql.DB
	previewFuncs    map[string]string
	schemaNamespace string
}

type Option func(*Store)

// WithPreviewFunction registers the set-returning function that previews a
// cascade delete of table. It must return (table_name, row_count, data_type).
func WithPreviewFunction(table, function string) Option {
	return func(s *Store) { s.previewFuncs[table] = function }
}

// WithSchemaNamespace sets the schema searched by CheckSchema. Defaults to current_schema().
func WithSchemaNamespace(namespace string) Option {
	return func(s *Store) { s.schemaNamespace = namespace }
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, previewFuncs: map[string]string{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.RecordStore = (*Store)(nil)
var _ store.CascadePreviewer = (*Store)(nil)
var _ store.SchemaChecker = (*Store)(nil)

func (s *Store) Select(ctx context.Context, table string, columns []string, opts store.SelectOptions, filters ...store.Filter) ([]store.Row, error) {
	where, args, err := whereClause(filters, 1)
	if err != nil {
		return nil, err
	}

	cols := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = pq.QuoteIdentifier(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s", cols, pq.QuoteIdentifier(table), where)
	if opts.OrderBy != "" {
		query += " ORDER BY " + pq.QuoteIdentifier(opts.OrderBy)
	}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("select", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}

	var out []store.Row
	for rows.Next() {
		values := make([]interface{}, len(names))
		ptrs := make([]interface{}, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		row := make(store.Row, len(names))
		for i, name := range names {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("select", table, err)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, table string, filters ...store.Filter) (int64, error) {
	where, args, err := whereClause(filters, 1)
	if err != nil {
		return 0, err
	}

	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", pq.QuoteIdentifier(table), where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapError("count", table, err)
	}
	return n, nil
}

func (s *Store) Insert(ctx context.Context, table string, values store.Row) error {
	if len(values) == 0 {
		return fmt.Errorf("insert %s: no values", table)
	}

	keys := sortedKeys(values)
	cols := make([]string, len(keys))
	placeholders := make([]string, len(keys))
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		cols[i] = pq.QuoteIdentifier(k)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = bindValue(values[k])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return mapError("insert", table, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table string, values store.Row, filters ...store.Filter) (int64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("update %s: no values", table)
	}
	if len(filters) == 0 {
		return 0, fmt.Errorf("update %s: refusing to update without filters", table)
	}

	keys := sortedKeys(values)
	sets := make([]string, len(keys))
	args := make([]interface{}, 0, len(keys)+len(filters))
	for i, k := range keys {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(k), i+1)
		args = append(args, bindValue(values[k]))
	}

	where, whereArgs, err := whereClause(filters, len(keys)+1)
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s%s", pq.QuoteIdentifier(table), strings.Join(sets, ", "), where)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError("update", table, err)
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, table string, filters ...store.Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("delete %s: refusing to delete without filters", table)
	}

	where, args, err := whereClause(filters, 1)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s%s", pq.QuoteIdentifier(table), where), args...)
	if err != nil {
		return 0, mapError("delete", table, err)
	}
	return res.RowsAffected()
}

// PreviewCascade calls the function registered for table. A table without a
// registered function, or a database without it, yields store.ErrPreviewUnavailable.
func (s *Store) PreviewCascade(ctx context.Context, table, id string) ([]store.CascadeCount, error) {
	fn, ok := s.previewFuncs[table]
	if !ok {
		return nil, store.ErrPreviewUnavailable
	}

	query := fmt.Sprintf("SELECT table_name, row_count, data_type FROM %s($1)", pq.QuoteIdentifier(fn))
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == codeUndefinedFunction {
			return nil, fmt.Errorf("%w: %s", store.ErrPreviewUnavailable, pqErr.Message)
		}
		return nil, mapError("preview", table, err)
	}
	defer rows.Close()

	var out []store.CascadeCount
	for rows.Next() {
		var c store.CascadeCount
		var dataType sql.NullString
		if err := rows.Scan(&c.Table, &c.Count, &dataType); err != nil {
			return nil, fmt.Errorf("scan preview: %w", err)
		}
		c.DataType = dataType.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("preview", table, err)
	}
	return out, nil
}

// CheckSchema compares schema with information_schema.columns.
func (s *Store) CheckSchema(ctx context.Context, schema store.Schema) error {
	namespace := "current_schema()"
	args := []interface{}{pq.Array(schema.Tables())}
	if s.schemaNamespace != "" {
		namespace = "$2"
		args = append(args, s.schemaNamespace)
	}

	query := fmt.Sprintf(`SELECT table_name, column_name FROM information_schema.columns WHERE table_schema = %s AND table_name = ANY($1)`, namespace)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("read information_schema: %w", err)
	}
	defer rows.Close()

	actual := map[string]map[string]bool{}
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return fmt.Errorf("scan information_schema: %w", err)
		}
		if actual[table] == nil {
			actual[table] = map[string]bool{}
		}
		actual[table][column] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read information_schema: %w", err)
	}
	return schema.Diff(actual)
}

func whereClause(filters []store.Filter, start int) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	conds := make([]string, len(filters))
	args := make([]interface{}, len(filters))
	for i, f := range filters {
		col := pq.QuoteIdentifier(f.Column)
		n := start + i
		args[i] = f.Value
		switch f.Op {
		case store.OpEq:
			conds[i] = fmt.Sprintf("%s = $%d", col, n)
		case store.OpNeq:
			conds[i] = fmt.Sprintf("%s <> $%d", col, n)
		case store.OpGt:
			conds[i] = fmt.Sprintf("%s > $%d", col, n)
		case store.OpGte:
			conds[i] = fmt.Sprintf("%s >= $%d", col, n)
		case store.OpLt:
			conds[i] = fmt.Sprintf("%s < $%d", col, n)
		case store.OpLte:
			conds[i] = fmt.Sprintf("%s <= $%d", col, n)
		case store.OpLike:
			conds[i] = fmt.Sprintf("%s LIKE $%d", col, n)
		case store.OpILike:
			conds[i] = fmt.Sprintf("%s ILIKE $%d", col, n)
		case store.OpIn:
			conds[i] = fmt.Sprintf("%s = ANY($%d)", col, n)
			args[i] = pq.Array(f.Value)
		case store.OpOverlaps:
			conds[i] = fmt.Sprintf("%s && $%d", col, n)
			args[i] = pq.Array(f.Value)
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %q on %s", f.Op, f.Column)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func mapError(op, table string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation {
		fk := &store.ForeignKeyViolation{Table: table, Constraint: pqErr.Constraint, Detail: pqErr.Detail}
		if pqErr.Table != "" {
			fk.Table = pqErr.Table
		}
		return fk
	}
	return fmt.Errorf("%s %s: %w", op, table, err)
}

func bindValue(v interface{}) interface{} {
	if ss, ok := v.([]string); ok {
		return pq.Array(ss)
	}
	return v
}

func sortedKeys(r store.Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
