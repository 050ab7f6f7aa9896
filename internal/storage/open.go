package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/dbx"
	"github.com/dmitrijs2005/ordvault/internal/models"
	"github.com/dmitrijs2005/ordvault/internal/storage/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Driver names a SQL backend selectable by DSN.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// DriverFor picks the backend from a DSN: postgres:// and postgresql:// URLs
// and key=value strings go to Postgres, sqlite:// and file: paths to SQLite.
func DriverFor(dsn string) (Driver, string, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"),
		strings.Contains(dsn, "host="):
		return DriverPostgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"), dsn == ":memory:":
		return DriverSQLite, dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported database dsn %q", redact(dsn))
	}
}

// OpenSQL opens the database named by dsn, applies the embedded migrations
// and returns a repository bound to it. The caller owns the returned *sql.DB.
func OpenSQL(ctx context.Context, dsn string) (*sql.DB, *SQLRepository, error) {
	driver, source, err := DriverFor(dsn)
	if err != nil {
		return nil, nil, err
	}

	sqlDriver := "sqlite"
	if driver == DriverPostgres {
		sqlDriver = "pgx"
	}

	db, err := sql.Open(sqlDriver, source)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if driver == DriverSQLite {
		// single writer; also keeps :memory: databases on one connection
		db.SetMaxOpenConns(1)
	}

	if err := RunMigrations(ctx, db, driver); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}

	if driver == DriverPostgres {
		return db, NewPostgresRepository(db), nil
	}
	return db, NewSQLiteRepository(db), nil
}

// RunMigrations applies the embedded migrations for driver.
func RunMigrations(ctx context.Context, db *sql.DB, driver Driver) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(string(driver)); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, string(driver))
}

func redact(dsn string) string {
	if i := strings.Index(dsn, "@"); i > 0 {
		if j := strings.Index(dsn, "://"); j >= 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
	}
	return dsn
}

// Import copies recs into the SQL database in one transaction. Records that
// already exist are skipped; any other failure rolls the whole import back.
func Import(ctx context.Context, db *sql.DB, driver Driver, recs []*models.Inscription) (int, error) {
	imported := 0
	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := &SQLRepository{db: tx, dollarBV: driver == DriverPostgres}
		for _, rec := range recs {
			err := repo.Save(ctx, rec)
			if errors.Is(err, common.ErrAlreadyExists) {
				continue
			}
			if err != nil {
				return err
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}
