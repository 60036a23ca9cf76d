package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) NowExpr() string    { return "NOW()" }
func (d *PostgresDialect) NeedsBoolFix() bool { return false }

func (d *PostgresDialect) TablesSQL() string {
	return pgTablesSQL
}

func (d *PostgresDialect) IntervalDeleteExpr(createdAtCol string, pb ParamBuilder, days string) string {
	ph := pb.Add(days)
	return fmt.Sprintf("%s < now() - (%s || ' days')::interval", createdAtCol, ph)
}

func (d *PostgresDialect) ArrayParam(values []string) any {
	return values
}

func (d *PostgresDialect) ScanArray(src any) ([]string, error) {
	if src == nil {
		return []string{}, nil
	}
	switch v := src.(type) {
	case []string:
		return v, nil
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result, nil
	case string:
		return parsePgTextArray(v), nil
	default:
		return []string{}, nil
	}
}

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

// parsePgTextArray decodes the wire form "{a,b,c}" returned by database/sql
// when a TEXT[] column is scanned into a string.
func parsePgTextArray(s string) []string {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return []string{}
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return []string{}
	}
	var result []string
	var cur []byte
	inQuotes := false
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case c == '\\' && i+1 < len(inner):
			i++
			cur = append(cur, inner[i])
		case c == ',' && !inQuotes:
			result = append(result, string(cur))
			cur = cur[:0]
		default:
			cur = append(cur, c)
		}
	}
	result = append(result, string(cur))
	return result
}

// --- PostgreSQL DDL ---

const pgTablesSQL = `
CREATE TABLE IF NOT EXISTS products (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    sku         TEXT NOT NULL,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price       DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (price >= 0),
    status      TEXT NOT NULL DEFAULT 'active',
    created_at  TIMESTAMPTZ DEFAULT NOW(),
    updated_at  TIMESTAMPTZ DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_products_sku_lower ON products (lower(sku));

CREATE TABLE IF NOT EXISTS _webhooks (
    id         UUID PRIMARY KEY,
    url        TEXT NOT NULL,
    events     TEXT[] NOT NULL DEFAULT '{}',
    secret     TEXT NOT NULL DEFAULT '',
    condition  TEXT NOT NULL DEFAULT '',
    active     BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _webhook_deliveries (
    id              UUID PRIMARY KEY,
    webhook_id      UUID NOT NULL,
    event_id        TEXT NOT NULL,
    event_type      TEXT NOT NULL,
    sku             TEXT NOT NULL,
    job_id          TEXT NOT NULL,
    sequence        BIGINT NOT NULL DEFAULT 0,
    url             TEXT NOT NULL,
    attempt         INT NOT NULL DEFAULT 1,
    max_attempts    INT NOT NULL DEFAULT 1,
    response_status INT,
    status          TEXT NOT NULL DEFAULT 'pending',
    error           TEXT NOT NULL DEFAULT '',
    idempotency_key TEXT NOT NULL,
    created_at      TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_status ON _webhook_deliveries(status);
CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_created ON _webhook_deliveries(created_at DESC);

CREATE TABLE IF NOT EXISTS _users (
    id            UUID PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    active        BOOLEAN NOT NULL DEFAULT true,
    created_at    TIMESTAMPTZ DEFAULT NOW(),
    updated_at    TIMESTAMPTZ DEFAULT NOW()
);
`

// Compile-time check
var _ Dialect = (*PostgresDialect)(nil)
