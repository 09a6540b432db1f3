package services

import (
	"context"
	"testing"
	"time"

	"scuola/internal/core"
	"scuola/internal/lock"
	"scuola/internal/log"
	"scuola/internal/sheets"
	"scuola/internal/sheets/memory"
)

var fixedNow = time.Date(2024, time.June, 15, 9, 30, 0, 0, time.UTC)

func newTestServices(t *testing.T, opts Options) (*Services, *memory.Store) {
	t.Helper()
	store := memory.New()
	return newServicesOver(t, store, opts), store
}

func newServicesOver(t *testing.T, store sheets.Store, opts Options) *Services {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	opts.Logger = log.Discard()
	return New(store, lock.New(time.Second), opts)
}

// racingStore appends extra to ref right after the first append there, the way
// a submission for another day landing at the same moment would.
type racingStore struct {
	sheets.Store
	ref   sheets.Ref
	extra sheets.Row
	done  bool
}

func (s *racingStore) Append(ctx context.Context, ref sheets.Ref, row sheets.Row) error {
	if err := s.Store.Append(ctx, ref, row); err != nil {
		return err
	}
	if ref == s.ref && !s.done {
		s.done = true
		return s.Store.Append(ctx, ref, s.extra)
	}
	return nil
}

func seedStudents(t *testing.T, svc *Services, students ...core.Student) {
	t.Helper()
	for _, st := range students {
		if _, err := svc.Students.Add(context.Background(), st); err != nil {
			t.Fatalf("add student %s: %v", st.AdmissionNo, err)
		}
	}
}

func appendRaw(t *testing.T, store sheets.Store, ref sheets.Ref, row sheets.Row) {
	t.Helper()
	if err := store.Append(context.Background(), ref, row); err != nil {
		t.Fatalf("append %s: %v", ref, err)
	}
}

func money(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseMoney(s)
	if err != nil {
		t.Fatalf("money %q: %v", s, err)
	}
	return m
}
