// Package memory is an in-process record store, optionally seeded from CSV files.
package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"scuola/internal/sheets"
)

type Store struct {
	mu     sync.Mutex
	sheets map[sheets.Ref][]sheets.Row
}

func New() *Store {
	return &Store{sheets: make(map[sheets.Ref][]sheets.Row)}
}

// NewFromFiles seeds the store from <TABLE>.csv (Master sheet) and
// <TABLE>_<sheet>.csv files in base. The first CSV line is the header and is skipped.
// A missing directory yields an empty store.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	entries, err := os.ReadDir(base)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		ref, ok := refFromFile(strings.TrimSuffix(e.Name(), ".csv"))
		if !ok {
			continue
		}
		rows, err := readCSV(filepath.Join(base, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", e.Name(), err)
		}
		schema := sheets.MustSchema(ref.Table)
		for _, r := range rows {
			row, err := schema.Normalize(r)
			if err != nil {
				return nil, fmt.Errorf("seed %s: %w", e.Name(), err)
			}
			s.sheets[ref] = append(s.sheets[ref], row)
		}
	}
	return s, nil
}

// refFromFile matches the longest known table prefix, so STUDENTS_ARCHIVE wins over STUDENTS.
func refFromFile(name string) (sheets.Ref, bool) {
	var best sheets.Table
	for _, t := range sheets.Tables() {
		n := string(t)
		if (name == n || strings.HasPrefix(name, n+"_")) && len(n) > len(best) {
			best = t
		}
	}
	if best == "" {
		return sheets.Ref{}, false
	}
	sheet := strings.TrimPrefix(strings.TrimPrefix(name, string(best)), "_")
	if sheet == "" {
		sheet = sheets.DefaultSheet
	}
	return sheets.Ref{Table: best, Sheet: sheet}, true
}

func readCSV(path string) ([]sheets.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []sheets.Row
	for i, rec := range records {
		if i == 0 {
			continue
		}
		out = append(out, sheets.Row(rec))
	}
	return out, nil
}

func (s *Store) Rows(_ context.Context, ref sheets.Ref) ([]sheets.Row, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.sheets[ref]
	out := make([]sheets.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *Store) Append(_ context.Context, ref sheets.Ref, row sheets.Row) error {
	schema, row, err := prepare(ref, row)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := schema.CheckKey(s.sheets[ref], row); err != nil {
		return err
	}
	s.sheets[ref] = append(s.sheets[ref], row)
	return nil
}

func (s *Store) Update(_ context.Context, ref sheets.Ref, index int, row sheets.Row) error {
	_, row, err := prepare(ref, row)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.sheets[ref]
	if index < 0 || index >= len(rows) {
		return fmt.Errorf("%w: %s[%d]", sheets.ErrRowIndex, ref, index)
	}
	rows[index] = row
	return nil
}

func (s *Store) Delete(_ context.Context, ref sheets.Ref, index int) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.sheets[ref]
	if index < 0 || index >= len(rows) {
		return fmt.Errorf("%w: %s[%d]", sheets.ErrRowIndex, ref, index)
	}
	s.sheets[ref] = append(rows[:index:index], rows[index+1:]...)
	return nil
}

func (s *Store) Ensure(_ context.Context, ref sheets.Ref) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sheets[ref]; !ok {
		s.sheets[ref] = nil
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func prepare(ref sheets.Ref, row sheets.Row) (sheets.Schema, sheets.Row, error) {
	if err := ref.Validate(); err != nil {
		return sheets.Schema{}, nil, err
	}
	schema := sheets.MustSchema(ref.Table)
	row, err := schema.Normalize(row)
	return schema, row, err
}

var (
	_ sheets.Store         = (*Store)(nil)
	_ sheets.HealthChecker = (*Store)(nil)
)
