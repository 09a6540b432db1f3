// Package storage is a SQL-backed record store. Every table's rows live in one
// records table as JSON cell arrays, ordered by insertion id.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"scuola/internal/log"
	"scuola/internal/sheets"
)

// Dialect selects the SQL driver and migration set.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

const pgUniqueViolation = "23505"

type recordRow struct {
	ID    int64  `db:"id"`
	Cells string `db:"cells"`
}

type Store struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *log.Logger
}

// OpenSQLite creates the database file's directory, migrates and opens it.
func OpenSQLite(path string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if err := RunMigrations(SQLite, dsn); err != nil {
		return nil, err
	}
	db, err := sqlx.Open(SQLite.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; readers queue behind it.
	db.SetMaxOpenConns(1)
	return newStore(db, SQLite, logger)
}

// OpenPostgres migrates and connects through the pgx stdlib driver.
func OpenPostgres(url string, logger *log.Logger) (*Store, error) {
	if err := RunMigrations(Postgres, url); err != nil {
		return nil, err
	}
	db, err := sqlx.Open(Postgres.driverName(), url)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return newStore(db, Postgres, logger)
}

func newStore(db *sqlx.DB, d Dialect, logger *log.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}
	return &Store{db: db, dialect: d, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Rows(ctx context.Context, ref sheets.Ref) ([]sheets.Row, error) {
	schema, err := schemaFor(ref)
	if err != nil {
		return nil, err
	}
	var recs []recordRow
	q := s.db.Rebind(`SELECT id, ` + s.cellsExpr() + ` AS cells FROM records WHERE tbl = ? AND sheet = ? ORDER BY id`)
	if err := s.db.SelectContext(ctx, &recs, q, string(ref.Table), ref.Sheet); err != nil {
		return nil, fmt.Errorf("select %s: %w", ref, err)
	}
	out := make([]sheets.Row, 0, len(recs))
	for _, r := range recs {
		row, err := decodeCells(schema, r.Cells)
		if err != nil {
			return nil, fmt.Errorf("decode %s row %d: %w", ref, r.ID, err)
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) Append(ctx context.Context, ref sheets.Ref, row sheets.Row) error {
	schema, row, err := prepare(ref, row)
	if err != nil {
		return err
	}
	key, err := rowKey(schema, row)
	if err != nil {
		return err
	}
	cells, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.ensure(ctx, tx, ref); err != nil {
			return err
		}
		q := tx.Rebind(`INSERT INTO records (tbl, sheet, row_key, cells) VALUES (?, ?, ?, ` + s.cellsParam() + `)`)
		if _, err := tx.ExecContext(ctx, q, string(ref.Table), ref.Sheet, key, string(cells)); err != nil {
			return s.mapWriteErr(ref, schema, row, err)
		}
		return nil
	})
}

func (s *Store) Update(ctx context.Context, ref sheets.Ref, index int, row sheets.Row) error {
	schema, row, err := prepare(ref, row)
	if err != nil {
		return err
	}
	key, err := rowKey(schema, row)
	if err != nil {
		return err
	}
	cells, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.idAt(ctx, tx, ref, index)
		if err != nil {
			return err
		}
		q := tx.Rebind(`UPDATE records SET row_key = ?, cells = ` + s.cellsParam() + ` WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, q, key, string(cells), id); err != nil {
			return s.mapWriteErr(ref, schema, row, err)
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, ref sheets.Ref, index int) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.idAt(ctx, tx, ref, index)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM records WHERE id = ?`), id); err != nil {
			return fmt.Errorf("delete %s[%d]: %w", ref, index, err)
		}
		return nil
	})
}

func (s *Store) Ensure(ctx context.Context, ref sheets.Ref) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error { return s.ensure(ctx, tx, ref) })
}

// Sheets lists the partitions created for table, in name order.
func (s *Store) Sheets(ctx context.Context, table sheets.Table) ([]string, error) {
	var names []string
	q := s.db.Rebind(`SELECT sheet FROM sheets WHERE tbl = ? ORDER BY sheet`)
	if err := s.db.SelectContext(ctx, &names, q, string(table)); err != nil {
		return nil, fmt.Errorf("list sheets of %s: %w", table, err)
	}
	return names, nil
}

func (s *Store) ensure(ctx context.Context, tx *sqlx.Tx, ref sheets.Ref) error {
	q := tx.Rebind(`INSERT INTO sheets (tbl, sheet) VALUES (?, ?) ON CONFLICT DO NOTHING`)
	if _, err := tx.ExecContext(ctx, q, string(ref.Table), ref.Sheet); err != nil {
		return fmt.Errorf("ensure %s: %w", ref, err)
	}
	return nil
}

// idAt resolves a positional row index to its record id.
func (s *Store) idAt(ctx context.Context, tx *sqlx.Tx, ref sheets.Ref, index int) (int64, error) {
	if index < 0 {
		return 0, fmt.Errorf("%w: %s[%d]", sheets.ErrRowIndex, ref, index)
	}
	var id int64
	q := tx.Rebind(`SELECT id FROM records WHERE tbl = ? AND sheet = ? ORDER BY id LIMIT 1 OFFSET ?`)
	err := tx.GetContext(ctx, &id, q, string(ref.Table), ref.Sheet, index)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s[%d]", sheets.ErrRowIndex, ref, index)
	}
	if err != nil {
		return 0, fmt.Errorf("locate %s[%d]: %w", ref, index, err)
	}
	return id, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("Rollback failed", log.FieldError, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// cellsExpr reads JSONB back as text on Postgres.
func (s *Store) cellsExpr() string {
	if s.dialect == Postgres {
		return "cells::text"
	}
	return "cells"
}

func (s *Store) cellsParam() string {
	if s.dialect == Postgres {
		return "CAST(? AS JSONB)"
	}
	return "?"
}

func (s *Store) mapWriteErr(ref sheets.Ref, schema sheets.Schema, row sheets.Row, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s %s=%s", sheets.ErrDuplicateKey, ref.Table, schema.Key, row.Get(schema.KeyCol()))
	}
	return fmt.Errorf("write %s: %w", ref, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

func prepare(ref sheets.Ref, row sheets.Row) (sheets.Schema, sheets.Row, error) {
	schema, err := schemaFor(ref)
	if err != nil {
		return sheets.Schema{}, nil, err
	}
	row, err = schema.Normalize(row)
	return schema, row, err
}

func schemaFor(ref sheets.Ref) (sheets.Schema, error) {
	if err := ref.Validate(); err != nil {
		return sheets.Schema{}, err
	}
	return sheets.SchemaFor(ref.Table)
}

// rowKey is NULL for unkeyed tables, so the unique constraint never fires for them.
func rowKey(schema sheets.Schema, row sheets.Row) (sql.NullString, error) {
	k := schema.KeyCol()
	if k < 0 {
		return sql.NullString{}, nil
	}
	key := row.Get(k)
	if key == "" {
		return sql.NullString{}, fmt.Errorf("%s: empty %s", schema.Table, schema.Key)
	}
	return sql.NullString{String: key, Valid: true}, nil
}

func decodeCells(schema sheets.Schema, raw string) (sheets.Row, error) {
	var cells []string
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, err
	}
	// Tolerate rows written before a column was dropped from the schema.
	if len(cells) > len(schema.Headers) {
		cells = cells[:len(schema.Headers)]
	}
	return schema.Normalize(cells)
}

var (
	_ sheets.Store         = (*Store)(nil)
	_ sheets.HealthChecker = (*Store)(nil)
)
