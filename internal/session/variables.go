// Package session implements the per-connection Session type, its
// system-variable store, and the ordered middleware pipeline that
// intercepts administrative statements before they ever reach the
// pluggable backend. Grounded on the teacher's
// server/dispatcher/system_variable_engine.go (CanHandle-style
// recognition) and server/dispatcher/query_dispatcher.go (the
// SQLEngine/SQLRouter fallthrough shape), generalized from vitess AST
// nodes to internal/sqlast.Statement and reshaped per spec.md §4.G/§4.J.
package session

import (
	"strconv"
	"strings"
	"sync"

	"github.com/mimicd/mimicd/internal/common"
)

// VariantKind is the small typed-variant spec.md §9 prescribes in
// place of the source's callable-type coercion trick.
type VariantKind int

const (
	KindString VariantKind = iota
	KindInt
	KindFloat
	KindBool
)

// VarSchemaEntry describes one system variable: its type, default
// value, and whether SET may change it at session scope.
type VarSchemaEntry struct {
	Kind    VariantKind
	Default string
	Dynamic bool
}

// DefaultSchema is the system-variable catalog this front end
// recognizes, per the list in spec.md §6.
var DefaultSchema = map[string]VarSchemaEntry{
	"version":                      {KindString, "8.0.34-mimicd", false},
	"version_comment":              {KindString, "mysql-mimic", false},
	"character_set_client":         {KindString, "utf8mb4", true},
	"character_set_connection":     {KindString, "utf8mb4", true},
	"character_set_results":        {KindString, "utf8mb4", true},
	"character_set_server":         {KindString, "utf8mb4", false},
	"character_set_database":       {KindString, "utf8mb4", true},
	"collation_connection":         {KindString, "utf8mb4_general_ci", true},
	"collation_database":           {KindString, "utf8mb4_general_ci", true},
	"collation_server":             {KindString, "utf8mb4_general_ci", false},
	"sql_mode":                     {KindString, "NO_ENGINE_SUBSTITUTION", true},
	"autocommit":                   {KindBool, "ON", true},
	"transaction_isolation":        {KindString, "REPEATABLE-READ", true},
	"transaction_read_only":        {KindBool, "OFF", true},
	"sql_auto_is_null":             {KindBool, "OFF", true},
	"sql_select_limit":             {KindString, "18446744073709551615", true},
	"lower_case_table_names":       {KindInt, "0", false},
	"external_user":                {KindString, "", true},
	"time_zone":                    {KindString, "SYSTEM", true},
	"max_execution_time":           {KindInt, "0", true},
	"max_allowed_packet":           {KindInt, "67108864", true},
	"net_buffer_length":            {KindInt, "16384", true},
	"wait_timeout":                 {KindInt, "28800", true},
	"interactive_timeout":          {KindInt, "28800", true},
	"init_connect":                 {KindString, "", false},
	"default_storage_engine":       {KindString, "InnoDB", true},
}

// Variables is a mutable, case-insensitive system-variable store: get
// falls back to the schema default, set refuses non-dynamic variables
// unless forced.
type Variables struct {
	mu     sync.RWMutex
	schema map[string]VarSchemaEntry
	values map[string]string
	set    map[string]bool
}

// NewVariables returns a store seeded from schema (DefaultSchema if nil).
func NewVariables(schema map[string]VarSchemaEntry) *Variables {
	if schema == nil {
		schema = DefaultSchema
	}
	return &Variables{schema: schema, values: map[string]string{}, set: map[string]bool{}}
}

func key(name string) string { return strings.ToLower(name) }

// Get returns a variable's current (or default) value. ok is false iff
// the name is not in the schema, which callers turn into
// ER_UNKNOWN_SYSTEM_VARIABLE per spec.md §3's invariants.
func (v *Variables) Get(name string) (value string, ok bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	entry, known := v.schema[key(name)]
	if !known {
		return "", false
	}
	if val, isSet := v.values[key(name)]; isSet {
		return val, true
	}
	return entry.Default, true
}

// Entry returns the schema entry for name.
func (v *Variables) Entry(name string) (VarSchemaEntry, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.schema[key(name)]
	return e, ok
}

// Set assigns value to name. It refuses to change a non-dynamic
// variable unless force is true (used internally for fields like
// external_user that the wire protocol itself needs to set).
func (v *Variables) Set(name, value string, force bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	entry, ok := v.schema[key(name)]
	if !ok {
		return common.NewError(common.ErUnknownSystemVariable, "Unknown system variable '%s'", name)
	}
	if !entry.Dynamic && !force {
		return common.NewError(common.ErWrongValueForVar, "Variable '%s' is a read only variable", name)
	}
	coerced, err := Coerce(entry.Kind, value, entry.Default)
	if err != nil {
		return err
	}
	v.values[key(name)] = coerced
	v.set[key(name)] = true
	return nil
}

// Snapshot returns name->value for every variable in the schema, using
// the default for any that has not been set, for SHOW VARIABLES /
// diagnostics.
func (v *Variables) Snapshot() map[string]string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]string, len(v.schema))
	for name, entry := range v.schema {
		if val, ok := v.values[name]; ok {
			out[name] = val
		} else {
			out[name] = entry.Default
		}
	}
	return out
}

// Coerce converts a raw textual value per the variable's kind and the
// rules in spec.md §4.G stage 3: bool accepts ON/OFF/1/0/TRUE/FALSE;
// DEFAULT resolves to defaultValue; NULL also resolves to default;
// quoted strings are unquoted; numeric literals pass through.
func Coerce(kind VariantKind, raw, defaultValue string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	upper := strings.ToUpper(trimmed)
	if upper == "DEFAULT" || upper == "NULL" {
		return defaultValue, nil
	}
	if len(trimmed) >= 2 && (trimmed[0] == '\'' || trimmed[0] == '"') && trimmed[len(trimmed)-1] == trimmed[0] {
		trimmed = trimmed[1 : len(trimmed)-1]
	}
	switch kind {
	case KindBool:
		switch strings.ToUpper(trimmed) {
		case "ON", "1", "TRUE":
			return "ON", nil
		case "OFF", "0", "FALSE":
			return "OFF", nil
		default:
			return "", common.NewError(common.ErWrongValueForVar, "Variable can't be set to the value of '%s'", raw)
		}
	case KindInt:
		if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
			return "", common.NewError(common.ErWrongValueForVar, "Variable can't be set to the value of '%s'", raw)
		}
		return trimmed, nil
	case KindFloat:
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return "", common.NewError(common.ErWrongValueForVar, "Variable can't be set to the value of '%s'", raw)
		}
		return trimmed, nil
	default:
		return trimmed, nil
	}
}

// HintGuard is the scoped-guard pattern spec.md §9 prescribes for
// SET_VAR: Apply pushes a save slot per assignment; Restore pops them,
// restoring the prior values (or clearing the variable if it had never
// been explicitly set before).
type HintGuard struct {
	vars  *Variables
	saved []savedVar
}

type savedVar struct {
	name     string
	hadValue bool
	value    string
}

// NewHintGuard prepares a guard for vars; call Apply then, after the
// annotated statement runs, Restore (typically via defer).
func NewHintGuard(vars *Variables) *HintGuard { return &HintGuard{vars: vars} }

// Apply pushes name=value as the current value, remembering what to
// restore. Errors from Set (unknown variable, bad coercion) propagate.
func (g *HintGuard) Apply(name, value string) error {
	g.vars.mu.Lock()
	prevValue, hadValue := g.vars.values[key(name)]
	g.vars.mu.Unlock()

	if err := g.vars.Set(name, value, true); err != nil {
		return err
	}
	g.saved = append(g.saved, savedVar{name: name, hadValue: hadValue, value: prevValue})
	return nil
}

// Restore pops every save slot in reverse order.
func (g *HintGuard) Restore() {
	for i := len(g.saved) - 1; i >= 0; i-- {
		s := g.saved[i]
		g.vars.mu.Lock()
		if s.hadValue {
			g.vars.values[key(s.name)] = s.value
		} else {
			delete(g.vars.values, key(s.name))
		}
		g.vars.mu.Unlock()
	}
}
