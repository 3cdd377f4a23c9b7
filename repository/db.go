package repository

import (
	"context"
	"database/sql"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config holds the store-of-record connection options.
type Config struct {
	// Driver selects the database: "sqlite3" or "postgres".
	Driver string

	// DSN is the driver-specific connection string.
	DSN string
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
	)
}

// Open connects to the configured database and wraps it in a bun.DB with the
// matching dialect.
func Open(cfg Config) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverPostgres:
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}
}

// CreateSchema creates the portal tables if they do not exist. Intended for
// embedded sqlite deployments and tests; production postgres schemas are
// managed by migrations.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*Student)(nil),
		(*Staff)(nil),
		(*Course)(nil),
		(*PaymentMethod)(nil),
		(*CourseRegistration)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
