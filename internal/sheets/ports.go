// Package sheets defines the record store: a closed set of tables, each a
// header-described grid partitioned into named sheets.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultSheet is the partition used by tables that are not split per class.
const DefaultSheet = "Master"

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrRowIndex     = errors.New("row index out of range")
	ErrRowTooWide   = errors.New("row wider than table schema")
)

type (
	// Row is one data row; cells follow the table's header order.
	Row []string

	// Ref addresses one sheet of one table.
	Ref struct {
		Table Table
		Sheet string
	}
)

// Ports for outbound adapters.
type (
	RowReader interface {
		// Rows returns data rows in insertion order. A missing sheet yields no rows and no error.
		Rows(ctx context.Context, ref Ref) ([]Row, error)
	}

	RowWriter interface {
		Append(ctx context.Context, ref Ref, row Row) error
		// Update overwrites the row at the 0-based index of the last Rows result.
		Update(ctx context.Context, ref Ref, index int, row Row) error
		Delete(ctx context.Context, ref Ref, index int) error
	}

	SheetEnsurer interface {
		// Ensure creates the sheet with its header row if missing.
		Ensure(ctx context.Context, ref Ref) error
	}

	Store interface {
		RowReader
		RowWriter
		SheetEnsurer
	}

	// HealthChecker is implemented by stores that can report liveness of their backing service.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)

// Master returns the default-sheet ref for t.
func Master(t Table) Ref {
	return Ref{Table: t, Sheet: DefaultSheet}
}

// ClassSheet names the per class-section partition, e.g. "5-B".
func ClassSheet(class, section string) string {
	return strings.TrimSpace(class) + "-" + strings.TrimSpace(section)
}

func (r Ref) String() string {
	return string(r.Table) + "/" + r.Sheet
}

// Validate checks that the table is known and the sheet is named.
func (r Ref) Validate() error {
	if _, ok := schemas[r.Table]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, r.Table)
	}
	if strings.TrimSpace(r.Sheet) == "" {
		return fmt.Errorf("empty sheet name for %s", r.Table)
	}
	return nil
}

// Get returns cell i or "" when the row is short.
func (r Row) Get(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// Clone returns a copy that does not share the backing array.
func (r Row) Clone() Row {
	return append(Row(nil), r...)
}
