// Package memstore is an in-memory store.RecordStore with configurable
// foreign keys. It backs tests and local runs without a database.
package memstore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"eduprima/internal/store"
)

type OnDelete int

const (
	Restrict OnDelete = iota
	Cascade
)

// ForeignKey makes Child.Column reference Parent.ParentColumn.
type ForeignKey struct {
	Name         string
	Child        string
	Column       string
	Parent       string
	ParentColumn string
	OnDelete     OnDelete
	// Label is reported as the data type in aggregate previews.
	Label string
}

type Store struct {
	mu      sync.RWMutex
	tables  map[string][]store.Row
	columns map[string][]string
	fks     []ForeignKey

	aggregate map[string]bool
	failures  map[string]error
	phantom   map[string]bool
}

type Option func(*Store)

func WithForeignKey(fk ForeignKey) Option {
	return func(s *Store) {
		if fk.ParentColumn == "" {
			fk.ParentColumn = "id"
		}
		if fk.Name == "" {
			fk.Name = fmt.Sprintf("%s_%s_fkey", fk.Child, fk.Column)
		}
		s.fks = append(s.fks, fk)
	}
}

// WithAggregatePreview enables PreviewCascade for the given parent table.
func WithAggregatePreview(table string) Option {
	return func(s *Store) { s.aggregate[table] = true }
}

// WithTable declares a table and its columns, for CheckSchema.
func WithTable(table string, columns ...string) Option {
	return func(s *Store) {
		s.columns[table] = columns
		if _, ok := s.tables[table]; !ok {
			s.tables[table] = nil
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		tables:    map[string][]store.Row{},
		columns:   map[string][]string{},
		aggregate: map[string]bool{},
		failures:  map[string]error{},
		phantom:   map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.RecordStore = (*Store)(nil)
var _ store.CascadePreviewer = (*Store)(nil)
var _ store.SchemaChecker = (*Store)(nil)

// FailOn makes every op ("select", "count", "insert", "update", "delete",
// "preview") on table return err until cleared with a nil err.
func (s *Store) FailOn(op, table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := op + ":" + table
	if err == nil {
		delete(s.failures, key)
		return
	}
	s.failures[key] = err
}

// SetPhantomDelete makes deletes on table report success without removing rows.
func (s *Store) SetPhantomDelete(table string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phantom[table] = on
}

// Seed appends rows without constraint checks.
func (s *Store) Seed(table string, rows ...store.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], clone(r))
	}
}

func (s *Store) failure(op, table string) error {
	return s.failures[op+":"+table]
}

func (s *Store) Select(_ context.Context, table string, columns []string, opts store.SelectOptions, filters ...store.Filter) ([]store.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("select", table); err != nil {
		return nil, err
	}

	var out []store.Row
	for _, r := range s.tables[table] {
		ok, err := matches(r, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, project(r, columns))
		}
	}

	if opts.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return compare(out[i][opts.OrderBy], out[j][opts.OrderBy]) < 0
		})
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) Count(_ context.Context, table string, filters ...store.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("count", table); err != nil {
		return 0, err
	}

	var n int64
	for _, r := range s.tables[table] {
		ok, err := matches(r, filters)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (s *Store) Insert(_ context.Context, table string, values store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("insert", table); err != nil {
		return err
	}

	for _, fk := range s.fks {
		if fk.Child != table || values[fk.Column] == nil {
			continue
		}
		if !s.exists(fk.Parent, fk.ParentColumn, values[fk.Column]) {
			return &store.ForeignKeyViolation{
				Table:      table,
				Constraint: fk.Name,
				Detail:     fmt.Sprintf("Key (%s)=(%v) is not present in table %q.", fk.Column, values[fk.Column], fk.Parent),
			}
		}
	}
	s.tables[table] = append(s.tables[table], clone(values))
	return nil
}

func (s *Store) Update(_ context.Context, table string, values store.Row, filters ...store.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(filters) == 0 {
		return 0, fmt.Errorf("update %s: refusing to update without filters", table)
	}
	if err := s.failure("update", table); err != nil {
		return 0, err
	}

	var n int64
	for _, r := range s.tables[table] {
		ok, err := matches(r, filters)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		for k, v := range values {
			r[k] = v
		}
		n++
	}
	return n, nil
}

// Delete removes matching rows and cascades to children. A Restrict child
// with referencing rows aborts the whole delete.
func (s *Store) Delete(_ context.Context, table string, filters ...store.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(filters) == 0 {
		return 0, fmt.Errorf("delete %s: refusing to delete without filters", table)
	}
	if err := s.failure("delete", table); err != nil {
		return 0, err
	}

	plan, err := s.plan(table, filters)
	if err != nil {
		return 0, err
	}

	affected := int64(len(plan[table]))
	if s.phantom[table] {
		return affected, nil
	}
	for t, idx := range plan {
		s.tables[t] = without(s.tables[t], idx)
	}
	return affected, nil
}

// PreviewCascade reports, per child table, how many rows a delete of id would remove.
func (s *Store) PreviewCascade(_ context.Context, table, id string) ([]store.CascadeCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.aggregate[table] {
		return nil, store.ErrPreviewUnavailable
	}
	if err := s.failure("preview", table); err != nil {
		return nil, err
	}

	plan, err := s.plan(table, []store.Filter{store.Eq("id", id)})
	if err != nil {
		return nil, err
	}

	var out []store.CascadeCount
	seen := map[string]bool{table: true}
	for _, fk := range s.fks {
		if seen[fk.Child] {
			continue
		}
		seen[fk.Child] = true
		if n := len(plan[fk.Child]); n > 0 {
			out = append(out, store.CascadeCount{Table: fk.Child, Count: int64(n), DataType: fk.Label})
		}
	}
	return out, nil
}

func (s *Store) CheckSchema(_ context.Context, schema store.Schema) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	actual := map[string]map[string]bool{}
	for table, cols := range s.columns {
		actual[table] = map[string]bool{}
		for _, c := range cols {
			actual[table][c] = true
		}
	}
	return schema.Diff(actual)
}

// plan collects row indexes to delete per table, following cascades.
func (s *Store) plan(table string, filters []store.Filter) (map[string]map[int]bool, error) {
	plan := map[string]map[int]bool{}

	var visit func(table string, match func(store.Row) (bool, error)) error
	visit = func(table string, match func(store.Row) (bool, error)) error {
		for i, r := range s.tables[table] {
			if plan[table][i] {
				continue
			}
			ok, err := match(r)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if plan[table] == nil {
				plan[table] = map[int]bool{}
			}
			plan[table][i] = true

			for _, fk := range s.fks {
				if fk.Parent != table {
					continue
				}
				key := r[fk.ParentColumn]
				refs := func(child store.Row) (bool, error) { return equal(child[fk.Column], key), nil }
				if fk.OnDelete == Restrict {
					for _, child := range s.tables[fk.Child] {
						if equal(child[fk.Column], key) {
							return &store.ForeignKeyViolation{
								Table:      fk.Child,
								Constraint: fk.Name,
								Detail:     fmt.Sprintf("Key (%s)=(%v) is still referenced from table %q.", fk.ParentColumn, key, fk.Child),
							}
						}
					}
					continue
				}
				if err := visit(fk.Child, refs); err != nil {
					return err
				}
			}
		}
		return nil
	}

	err := visit(table, func(r store.Row) (bool, error) { return matches(r, filters) })
	return plan, err
}

func (s *Store) exists(table, column string, value interface{}) bool {
	for _, r := range s.tables[table] {
		if equal(r[column], value) {
			return true
		}
	}
	return false
}

func matches(r store.Row, filters []store.Filter) (bool, error) {
	for _, f := range filters {
		ok, err := match(r[f.Column], f)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func match(v interface{}, f store.Filter) (bool, error) {
	switch f.Op {
	case store.OpEq:
		return equal(v, f.Value), nil
	case store.OpNeq:
		return v != nil && !equal(v, f.Value), nil
	case store.OpGt:
		return v != nil && compare(v, f.Value) > 0, nil
	case store.OpGte:
		return v != nil && compare(v, f.Value) >= 0, nil
	case store.OpLt:
		return v != nil && compare(v, f.Value) < 0, nil
	case store.OpLte:
		return v != nil && compare(v, f.Value) <= 0, nil
	case store.OpIn:
		for _, want := range toStrings(f.Value) {
			if equal(v, want) {
				return true, nil
			}
		}
		return false, nil
	case store.OpLike, store.OpILike:
		if v == nil {
			return false, nil
		}
		re, err := likePattern(fmt.Sprint(f.Value), f.Op == store.OpILike)
		if err != nil {
			return false, err
		}
		return re.MatchString(fmt.Sprint(v)), nil
	case store.OpOverlaps:
		have := map[string]bool{}
		for _, s := range toStrings(v) {
			have[s] = true
		}
		for _, s := range toStrings(f.Value) {
			if have[s] {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported filter operator %q on %s", f.Op, f.Column)
	}
}

func likePattern(pattern string, fold bool) (*regexp.Regexp, error) {
	var b strings.Builder
	if fold {
		b.WriteString("(?i)")
	}
	b.WriteString("^")
	escaped := false
	for _, r := range pattern {
		if escaped {
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return sa == sb
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b interface{}) int {
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb)
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toStrings(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, len(s))
		for i, e := range s {
			out[i] = fmt.Sprint(e)
		}
		return out
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(s)}
	}
}

func project(r store.Row, columns []string) store.Row {
	if len(columns) == 0 {
		return clone(r)
	}
	out := make(store.Row, len(columns))
	for _, c := range columns {
		out[c] = r[c]
	}
	return out
}

func clone(r store.Row) store.Row {
	out := make(store.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func without(rows []store.Row, drop map[int]bool) []store.Row {
	out := make([]store.Row, 0, len(rows)-len(drop))
	for i, r := range rows {
		if !drop[i] {
			out = append(out, r)
		}
	}
	return out
}
