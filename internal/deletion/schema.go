package deletion

import "eduprima/internal/store"

const (
	CoreTable  = "users"
	AuditTable = "audit_log"
)

// DependentTable is a table holding rows that reference a user.
type DependentTable struct {
	Table  string
	Column string
	Label  string
}

// DependentTables is the display order of a preview. Keep it in sync with
// the foreign keys on users when the schema changes.
var DependentTables = []DependentTable{
	{Table: "user_profiles", Column: "user_id", Label: "Profile"},
	{Table: "user_addresses", Column: "user_id", Label: "Addresses"},
	{Table: "tutor_details", Column: "user_id", Label: "Education and tutor details"},
	{Table: "tutor_availability_config", Column: "user_id", Label: "Availability schedule"},
	{Table: "tutor_teaching_preferences", Column: "user_id", Label: "Teaching preferences"},
	{Table: "tutor_personality_traits", Column: "user_id", Label: "Personality traits"},
	{Table: "tutor_program_mappings", Column: "user_id", Label: "Program mappings"},
	{Table: "user_banking_info", Column: "user_id", Label: "Banking information"},
	{Table: "tutor_management", Column: "user_id", Label: "Management status"},
	{Table: "user_documents", Column: "user_id", Label: "Documents"},
}

// UserSchema lists every table and column the orchestrator reads or writes.
var UserSchema = func() store.Schema {
	s := store.Schema{
		CoreTable:  {"id", "email", "user_code"},
		AuditTable: {"id", "event_type", "resource_type", "resource_id", "actor_id", "details", "created_at"},
	}
	for _, dt := range DependentTables {
		s[dt.Table] = []string{dt.Column}
	}
	return s
}()

func labelFor(table string) string {
	for _, dt := range DependentTables {
		if dt.Table == table {
			return dt.Label
		}
	}
	return table
}

func orderOf(table string) int {
	for i, dt := range DependentTables {
		if dt.Table == table {
			return i
		}
	}
	return len(DependentTables)
}
