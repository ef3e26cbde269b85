package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrPreviewUnavailable means the store has no aggregate cascade preview.
var ErrPreviewUnavailable = errors.New("aggregate cascade preview unavailable")

// ForeignKeyViolation is returned when a delete or insert is rejected by a
// referential constraint.
type ForeignKeyViolation struct {
	Table      string
	Constraint string
	Detail     string
}

func (e *ForeignKeyViolation) Error() string {
	msg := fmt.Sprintf("foreign key violation on %s", e.Table)
	if e.Constraint != "" {
		msg += fmt.Sprintf(" (constraint %s)", e.Constraint)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// SchemaMismatchError lists what the live schema is missing.
type SchemaMismatchError struct {
	MissingTables  []string
	MissingColumns map[string][]string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.MissingTables) > 0 {
		parts = append(parts, "missing tables: "+strings.Join(e.MissingTables, ", "))
	}
	tables := make([]string, 0, len(e.MissingColumns))
	for t := range e.MissingColumns {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		parts = append(parts, fmt.Sprintf("%s missing columns: %s", t, strings.Join(e.MissingColumns[t], ", ")))
	}
	return "schema mismatch: " + strings.Join(parts, "; ")
}
