// Package store defines the record-store collaborator that the matching and
// deletion code depend on, independent of the backing database.
package store

import "context"

// Row is one record keyed by column name.
type Row map[string]interface{}

// String returns the column as a string, or "" when absent or not a string.
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

type Op string

const (
	OpEq       Op = "eq"
	OpNeq      Op = "neq"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
	OpLike     Op = "like"
	OpILike    Op = "ilike"
	OpOverlaps Op = "overlaps"
)

// Filter is a single column predicate. Filters passed together are ANDed.
type Filter struct {
	Column string
	Op     Op
	Value  interface{}
}

func Eq(column string, value interface{}) Filter  { return Filter{Column: column, Op: OpEq, Value: value} }
func Neq(column string, value interface{}) Filter { return Filter{Column: column, Op: OpNeq, Value: value} }
func Gt(column string, value interface{}) Filter  { return Filter{Column: column, Op: OpGt, Value: value} }
func Gte(column string, value interface{}) Filter { return Filter{Column: column, Op: OpGte, Value: value} }
func Lt(column string, value interface{}) Filter  { return Filter{Column: column, Op: OpLt, Value: value} }
func Lte(column string, value interface{}) Filter { return Filter{Column: column, Op: OpLte, Value: value} }
func Like(column, pattern string) Filter          { return Filter{Column: column, Op: OpLike, Value: pattern} }
func ILike(column, pattern string) Filter         { return Filter{Column: column, Op: OpILike, Value: pattern} }

// In matches rows whose column equals any of values.
func In(column string, values []string) Filter { return Filter{Column: column, Op: OpIn, Value: values} }

// Overlaps matches rows whose array column shares at least one element with values.
func Overlaps(column string, values []string) Filter {
	return Filter{Column: column, Op: OpOverlaps, Value: values}
}

// SelectOptions bounds and orders a Select.
type SelectOptions struct {
	OrderBy string
	Limit   int
}

// RecordStore is the tabular query interface over the hosted database.
type RecordStore interface {
	Select(ctx context.Context, table string, columns []string, opts SelectOptions, filters ...Filter) ([]Row, error)
	Count(ctx context.Context, table string, filters ...Filter) (int64, error)
	Insert(ctx context.Context, table string, values Row) error
	Update(ctx context.Context, table string, values Row, filters ...Filter) (int64, error)
	Delete(ctx context.Context, table string, filters ...Filter) (int64, error)
}

// CascadeCount is one table's share of an aggregate cascade preview.
type CascadeCount struct {
	Table    string
	Count    int64
	DataType string
}

// CascadePreviewer is implemented by stores that can compute a whole cascade
// preview in one round trip.
type CascadePreviewer interface {
	PreviewCascade(ctx context.Context, table, id string) ([]CascadeCount, error)
}

// SchemaChecker is implemented by stores that can verify a Schema up front.
type SchemaChecker interface {
	CheckSchema(ctx context.Context, schema Schema) error
}
