package store

import "fmt"

// Dialect abstracts database-specific SQL generation and behavior.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string

	// DriverName returns the database/sql driver name ("pgx" or "sqlite").
	DriverName() string

	// NewParamBuilder creates a dialect-aware parameter builder.
	NewParamBuilder() ParamBuilder

	// NowExpr returns the SQL expression for the current timestamp.
	NowExpr() string

	// TablesSQL returns the DDL for all application tables.
	TablesSQL() string

	// IntervalDeleteExpr returns SQL for deleting rows older than N days.
	IntervalDeleteExpr(createdAtCol string, pb ParamBuilder, days string) string

	// ArrayParam encodes a string slice for storage.
	// PostgreSQL: returns the slice as-is (pgx handles TEXT[]).
	// SQLite: JSON-encodes to string.
	ArrayParam(values []string) any

	// ScanArray decodes a TEXT[] (PostgreSQL) or JSON string (SQLite) into []string.
	ScanArray(src any) ([]string, error)

	// MapError inspects a driver error and returns a well-known sentinel error if applicable.
	MapError(err error) error

	// NeedsBoolFix returns true if boolean columns come back as integers (SQLite).
	NeedsBoolFix() bool
}

// ParamBuilder accumulates query parameters and generates dialect-specific placeholders.
type ParamBuilder interface {
	// Add appends a value and returns the placeholder string.
	Add(v any) string

	// Params returns all accumulated parameter values.
	Params() []any

	// Count returns the number of parameters added so far.
	Count() int
}

// NewDialect creates a Dialect for the given driver name ("postgres" or "sqlite").
func NewDialect(driver string) Dialect {
	switch driver {
	case "sqlite":
		return &SQLiteDialect{}
	default:
		return &PostgresDialect{}
	}
}

// --- PostgreSQL ParamBuilder ---

type pgParamBuilder struct {
	params []any
	n      int
}

func (p *pgParamBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("$%d", p.n)
}

func (p *pgParamBuilder) Params() []any { return p.params }
func (p *pgParamBuilder) Count() int    { return p.n }

// --- SQLite ParamBuilder ---

type sqliteParamBuilder struct {
	params []any
	n      int
}

func (p *sqliteParamBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("?%d", p.n)
}

func (p *sqliteParamBuilder) Params() []any { return p.params }
func (p *sqliteParamBuilder) Count() int    { return p.n }
