package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldSuccess     = "success"
	FieldDuration    = "duration_ms"
	FieldEntityKind  = "entity_kind"
	FieldEntityID    = "entity_id"
	FieldHomeGroupID = "home_group_id"
	FieldUserID      = "user_id"
	FieldRevision    = "revision"
	FieldChanges     = "changes"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldCategory    = "category"
	FieldQuery       = "query"
	FieldResults     = "results"
	FieldGeneration  = "generation"
	FieldBackend     = "backend"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentLedger  = "ledger"
	ComponentStore   = "store"
	ComponentStorage = "storage"
	ComponentSearch  = "search"
	ComponentEvents  = "events"
	ComponentCache   = "cache"
	ComponentBackend = "backend"
	ComponentCLI     = "cli"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpSave     = "save"
	OpLoad     = "load"
	OpPublish  = "publish"
	OpSuggest  = "suggest"
	OpCompute  = "compute"
	OpValidate = "validate"
	OpMigrate  = "migrate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(errorType string) LogFields {
	f[FieldErrorType] = errorType
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithEntity adds the kind and id of the record being touched
func (f LogFields) WithEntity(kind, id string) LogFields {
	f[FieldEntityKind] = kind
	f[FieldEntityID] = id
	return f
}

// WithHomeGroup adds the home group id
func (f LogFields) WithHomeGroup(id string) LogFields {
	f[FieldHomeGroupID] = id
	return f
}

// WithRevision adds the store revision
func (f LogFields) WithRevision(rev uint64) LogFields {
	f[FieldRevision] = rev
	return f
}

// WithPeriod adds year and month fields
func (f LogFields) WithPeriod(year, month int) LogFields {
	f[FieldYear] = year
	f[FieldMonth] = month
	return f
}

// WithQuery adds a search query and its result count
func (f LogFields) WithQuery(query string, results int) LogFields {
	f[FieldQuery] = query
	f[FieldResults] = results
	return f
}

// ToSlice converts LogFields to a slice for slog. The component key is left
// out because Logger adds its own.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		if k == FieldComponent {
			continue
		}
		slice = append(slice, k, v)
	}
	return slice
}
