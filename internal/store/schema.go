package store

import "sort"

// Schema is the table and column contract a component relies on.
type Schema map[string][]string

// Tables returns the table names in sorted order.
func (s Schema) Tables() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Diff compares s against the columns a store actually has and returns a
// *SchemaMismatchError, or nil when every table and column is present.
func (s Schema) Diff(actual map[string]map[string]bool) error {
	mismatch := &SchemaMismatchError{MissingColumns: map[string][]string{}}
	for _, table := range s.Tables() {
		cols, ok := actual[table]
		if !ok || len(cols) == 0 {
			mismatch.MissingTables = append(mismatch.MissingTables, table)
			continue
		}
		for _, col := range s[table] {
			if !cols[col] {
				mismatch.MissingColumns[table] = append(mismatch.MissingColumns[table], col)
			}
		}
	}
	if len(mismatch.MissingTables) == 0 && len(mismatch.MissingColumns) == 0 {
		return nil
	}
	return mismatch
}
