// Package sheetstest holds the behaviour every sheets.Store backend must share.
package sheetstest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"scuola/internal/sheets"
)

// Run exercises a fresh store from newStore against the record store contract.
func Run(t *testing.T, newStore func(t *testing.T) sheets.Store) {
	t.Helper()

	t.Run("absent sheet is empty", func(t *testing.T) {
		s := newStore(t)
		rows, err := s.Rows(context.Background(), attendance("9", "Z"))
		if err != nil || len(rows) != 0 {
			t.Fatalf("rows=%v err=%v", rows, err)
		}
	})

	t.Run("append update delete keep positions", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		ref := attendance("5", "B")
		if err := s.Ensure(ctx, ref); err != nil {
			t.Fatalf("ensure: %v", err)
		}
		for _, adm := range []string{"A1", "A2", "A3"} {
			if err := s.Append(ctx, ref, sheets.Row{"2024-06-01", adm, "P"}); err != nil {
				t.Fatalf("append %s: %v", adm, err)
			}
		}
		if err := s.Update(ctx, ref, 1, sheets.Row{"2024-06-01", "A2", "A"}); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := s.Delete(ctx, ref, 0); err != nil {
			t.Fatalf("delete: %v", err)
		}

		rows, err := s.Rows(ctx, ref)
		if err != nil {
			t.Fatalf("rows: %v", err)
		}
		if len(rows) != 2 || rows[0].Get(1) != "A2" || rows[0].Get(2) != "A" || rows[1].Get(1) != "A3" {
			t.Fatalf("unexpected rows: %v", rows)
		}
		if want := len(sheets.MustSchema(sheets.Attendance).Headers); len(rows[0]) != want {
			t.Fatalf("row width %d, want %d", len(rows[0]), want)
		}

		other, _ := s.Rows(ctx, attendance("5", "A"))
		if len(other) != 0 {
			t.Fatalf("sheets must be isolated: %v", other)
		}
	})

	t.Run("index out of range", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		ref := sheets.Master(sheets.Events)
		if err := s.Update(ctx, ref, 0, sheets.Row{"EVT-1"}); !errors.Is(err, sheets.ErrRowIndex) {
			t.Fatalf("update: expected ErrRowIndex, got %v", err)
		}
		if err := s.Delete(ctx, ref, -1); !errors.Is(err, sheets.ErrRowIndex) {
			t.Fatalf("delete: expected ErrRowIndex, got %v", err)
		}
	})

	t.Run("duplicate key rejected", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		ref := sheets.Master(sheets.Fees)
		if err := s.Append(ctx, ref, sheets.Row{"RCT-1", "A1", "500.00"}); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := s.Append(ctx, ref, sheets.Row{"RCT-1", "A2", "100.00"}); !errors.Is(err, sheets.ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
		rows, _ := s.Rows(ctx, ref)
		if len(rows) != 1 {
			t.Fatalf("rejected row must not be stored: %v", rows)
		}
	})

	t.Run("concurrent appends all land", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		ref := sheets.Master(sheets.Fees)
		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Append(ctx, ref, sheets.Row{fmt.Sprintf("RCT-%d", i), "A1", "10.00"})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		rows, err := s.Rows(ctx, ref)
		if err != nil {
			t.Fatalf("rows: %v", err)
		}
		seen := make(map[string]bool, n)
		for _, r := range rows {
			seen[r.Get(0)] = true
		}
		if len(rows) != n || len(seen) != n {
			t.Fatalf("got %d rows with %d distinct receipts, want %d", len(rows), len(seen), n)
		}
	})

	t.Run("concurrent duplicate appends keep one", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		ref := sheets.Master(sheets.Fees)
		const n = 8
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.Append(ctx, ref, sheets.Row{"RCT-1", "A1", "10.00"})
			}()
		}
		wg.Wait()
		close(errs)
		stored := 0
		for err := range errs {
			switch {
			case err == nil:
				stored++
			case !errors.Is(err, sheets.ErrDuplicateKey):
				t.Fatalf("expected ErrDuplicateKey, got %v", err)
			}
		}
		rows, _ := s.Rows(ctx, ref)
		if stored != 1 || len(rows) != 1 {
			t.Fatalf("stored=%d rows=%d, want exactly one", stored, len(rows))
		}
	})

	t.Run("too wide and unknown table", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		wide := make(sheets.Row, len(sheets.MustSchema(sheets.Events).Headers)+1)
		wide[0] = "EVT-1"
		if err := s.Append(ctx, sheets.Master(sheets.Events), wide); !errors.Is(err, sheets.ErrRowTooWide) {
			t.Fatalf("expected ErrRowTooWide, got %v", err)
		}
		if _, err := s.Rows(ctx, sheets.Ref{Table: "BOGUS", Sheet: sheets.DefaultSheet}); !errors.Is(err, sheets.ErrUnknownTable) {
			t.Fatalf("expected ErrUnknownTable, got %v", err)
		}
	})

	t.Run("cells round trip verbatim", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		ref := sheets.Master(sheets.Events)
		row := sheets.Row{"EVT-1", "Sports, Day \"A\"", "2024-06-20", "line1\nline2"}
		if err := s.Append(ctx, ref, row); err != nil {
			t.Fatalf("append: %v", err)
		}
		rows, _ := s.Rows(ctx, ref)
		for i, want := range row {
			if rows[0].Get(i) != want {
				t.Fatalf("cell %d = %q, want %q", i, rows[0].Get(i), want)
			}
		}
	})
}

func attendance(class, section string) sheets.Ref {
	return sheets.Ref{Table: sheets.Attendance, Sheet: sheets.ClassSheet(class, section)}
}
