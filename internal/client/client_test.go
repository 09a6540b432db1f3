package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scuola/internal/cache"
	"scuola/internal/core"
	"scuola/internal/lock"
	"scuola/internal/log"
	"scuola/internal/router"
	"scuola/internal/services"
	"scuola/internal/sheets/memory"
)

// countingTransport counts round trips per action body.
type countingTransport struct {
	next  Transport
	calls atomic.Int32
}

func (t *countingTransport) RoundTrip(ctx context.Context, body []byte) ([]byte, error) {
	t.calls.Add(1)
	return t.next.RoundTrip(ctx, body)
}

type countingStore struct {
	cache.Store
	mu   sync.Mutex
	sets int
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.sets++
	s.mu.Unlock()
	return s.Store.Set(ctx, key, value)
}

func (s *countingStore) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

type fixture struct {
	client    *Client
	svc       *services.Services
	transport *countingTransport
	store     *countingStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := func() time.Time { return time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC) }
	svc := services.New(memory.New(), lock.New(time.Second), services.Options{Now: now, Logger: log.Discard()})
	r := router.New(svc, router.WithLogger(log.Discard()))

	tr := &countingTransport{next: NewLocalTransport(r)}
	store := &countingStore{Store: cache.NewMemory(0, 30*time.Minute)}
	c := New(tr, Options{Cache: store, Logger: log.Discard()})
	t.Cleanup(c.Wait)
	return &fixture{client: c, svc: svc, transport: tr, store: store}
}

func student(adm, roll string) core.Student {
	return core.Student{AdmissionNo: adm, RollNo: roll, Name: "Student " + adm, Class: "5", Section: "B"}
}

func TestQueryServesStaleThenRefreshes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.client.AddStudent(ctx, student("A1", "1")); err != nil {
		t.Fatalf("AddStudent: %v", err)
	}

	q := StudentQuery{Class: "5", Section: "B"}
	first, err := f.client.GetStudents(ctx, q)
	if err != nil || len(first) != 1 {
		t.Fatalf("first read: %v %v", first, err)
	}

	// Written behind the client's back: the cache cannot know.
	if _, err := f.svc.Students.Add(ctx, student("A2", "2")); err != nil {
		t.Fatalf("direct add: %v", err)
	}

	stale, err := f.client.GetStudents(ctx, q)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("cache hit should return the stored value, got %d students", len(stale))
	}

	f.client.Wait()
	fresh, err := f.client.GetStudents(ctx, q)
	if err != nil {
		t.Fatalf("third read: %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("background refresh should have updated the entry, got %d students", len(fresh))
	}
}

func TestWriteClearsCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if list, err := f.client.GetStudents(ctx, StudentQuery{}); err != nil || len(list) != 0 {
		t.Fatalf("empty read: %v %v", list, err)
	}
	if _, err := f.client.AddStudent(ctx, student("A1", "1")); err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
	list, err := f.client.GetStudents(ctx, StudentQuery{})
	if err != nil {
		t.Fatalf("GetStudents: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("write should invalidate the cached empty list, got %d", len(list))
	}
}

// heldTransport lets one read compute its response, then holds it until release.
type heldTransport struct {
	next    Transport
	hold    atomic.Bool
	fetched chan struct{}
	release chan struct{}
}

func (t *heldTransport) RoundTrip(ctx context.Context, body []byte) ([]byte, error) {
	raw, err := t.next.RoundTrip(ctx, body)
	if bytes.Contains(body, []byte(`"action":"getStudents"`)) && t.hold.CompareAndSwap(true, false) {
		close(t.fetched)
		<-t.release
	}
	return raw, err
}

func TestRefreshOlderThanWriteIsNotStored(t *testing.T) {
	ctx := context.Background()
	now := func() time.Time { return time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC) }
	svc := services.New(memory.New(), lock.New(time.Second), services.Options{Now: now, Logger: log.Discard()})
	tr := &heldTransport{
		next:    NewLocalTransport(router.New(svc, router.WithLogger(log.Discard()))),
		fetched: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := New(tr, Options{Cache: cache.NewMemory(0, 30*time.Minute), Logger: log.Discard()})

	if list, err := c.GetStudents(ctx, StudentQuery{}); err != nil || len(list) != 0 {
		t.Fatalf("empty read: %v %v", list, err)
	}

	// The hit starts a refresh that reads the empty list and stalls.
	tr.hold.Store(true)
	if _, err := c.GetStudents(ctx, StudentQuery{}); err != nil {
		t.Fatalf("cached read: %v", err)
	}
	<-tr.fetched

	if _, err := c.AddStudent(ctx, student("A1", "1")); err != nil {
		t.Fatalf("AddStudent: %v", err)
	}
	close(tr.release)
	c.Wait()

	list, err := c.GetStudents(ctx, StudentQuery{})
	if err != nil {
		t.Fatalf("GetStudents: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("pre-write refresh was cached over the write, got %d students", len(list))
	}
}

func TestFailedWriteKeepsCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.client.GetEmployees(ctx, false); err != nil {
		t.Fatalf("GetEmployees: %v", err)
	}
	before := f.transport.calls.Load()

	_, err := f.client.AddStudent(ctx, core.Student{Name: "No Admission"})
	var ae *ActionError
	if !errors.As(err, &ae) {
		t.Fatalf("expected ActionError, got %v", err)
	}
	if ae.Message == "" || Message(err) != ae.Message {
		t.Fatalf("message not surfaced: %q", Message(err))
	}

	if _, err := f.client.GetEmployees(ctx, false); err != nil {
		t.Fatalf("GetEmployees: %v", err)
	}
	f.client.Wait()
	// one failed write, then a hit plus its background refresh
	if got := f.transport.calls.Load() - before; got != 2 {
		t.Fatalf("expected 2 round trips after the failed write, got %d", got)
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		if _, err := f.client.GetStudent(ctx, "NOPE"); err == nil {
			t.Fatalf("expected not found")
		}
	}
	if f.store.setCount() != 0 {
		t.Fatalf("failed envelopes must not be cached")
	}
	if f.transport.calls.Load() != 2 {
		t.Fatalf("each failed read should reach the server, got %d calls", f.transport.calls.Load())
	}
}

func TestLoginBypassesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.client.CreateUser(ctx, NewUser{Username: "Admin", Password: "secret1", Role: "admin"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	sets := f.store.setCount()
	u, err := f.client.Login(ctx, Credentials{Username: "admin", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Username != "admin" || u.PasswordHash != "" {
		t.Fatalf("unexpected user %+v", u)
	}
	if f.store.setCount() != sets {
		t.Fatalf("login response was cached")
	}

	_, err = f.client.Login(ctx, Credentials{Username: "admin", Password: "wrong"})
	if Message(err) != "Invalid username or password" {
		t.Fatalf("unexpected login failure message %q", Message(err))
	}
}

func TestAttendanceThroughClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, s := range []core.Student{student("A1", "1"), student("A2", "2")} {
		if _, err := f.client.AddStudent(ctx, s); err != nil {
			t.Fatalf("AddStudent: %v", err)
		}
	}
	day := ClassDay{Class: "5", Section: "B", Date: "2024-06-14"}

	before, err := f.client.GetAttendanceData(ctx, day)
	if err != nil || before.IsLocked {
		t.Fatalf("before submit: %+v %v", before, err)
	}

	msg, err := f.client.MarkAttendance(ctx, day, []Mark{{"A1", "P"}, {"A2", "A"}}, "teacher")
	if err != nil || msg == "" {
		t.Fatalf("MarkAttendance: %q %v", msg, err)
	}

	after, err := f.client.GetAttendanceData(ctx, day)
	if err != nil {
		t.Fatalf("GetAttendanceData: %v", err)
	}
	if !after.IsLocked {
		t.Fatalf("submitted day should read back locked")
	}
	if s := after.Students[1].Status; s == nil || *s != "Absent" {
		t.Fatalf("A2 status = %v", s)
	}

	csv, _, err := f.client.ExportAttendanceCSV(ctx, "5", "B")
	if err != nil || csv == "" {
		t.Fatalf("export: %q %v", csv, err)
	}
}

func TestFeesThroughClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := student("A1", "1")
	s.FeesTotal = core.MustMoney("1000")
	if _, err := f.client.AddStudent(ctx, s); err != nil {
		t.Fatalf("AddStudent: %v", err)
	}

	pay, err := f.client.CollectFee(ctx, Payment{AdmissionNo: "A1", Amount: core.MustMoney("250.50")})
	if err != nil {
		t.Fatalf("CollectFee: %v", err)
	}
	if pay.ReceiptNo == "" || pay.Mode != "Cash" {
		t.Fatalf("unexpected payment %+v", pay)
	}

	sum, err := f.client.GetStudentFees(ctx, "A1", nil)
	if err != nil {
		t.Fatalf("GetStudentFees: %v", err)
	}
	if sum.DueFees != core.MustMoney("749.50") {
		t.Fatalf("due = %s", sum.DueFees)
	}
}

func TestEncodeRequestIsCanonical(t *testing.T) {
	a, err := encodeRequest("getSchedule", map[string]string{"section": "B", "class": "5"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := encodeRequest("getSchedule", struct {
		Class   string `json:"class"`
		Section string `json:"section"`
	}{"5", "B"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if cacheKey(a) != cacheKey(b) {
		t.Fatalf("equal payloads hashed differently: %s vs %s", a, b)
	}
	c, _ := encodeRequest("getHomework", map[string]string{"section": "B", "class": "5"})
	if cacheKey(a) == cacheKey(c) {
		t.Fatalf("action must be part of the key")
	}
	if _, err := encodeRequest("x", []int{1}); err == nil {
		t.Fatalf("non-object payload should be rejected")
	}
}

func TestHTTPTransportErrors(t *testing.T) {
	ctx := context.Background()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer broken.Close()
	c := New(NewHTTPTransport(broken.URL, nil), Options{Logger: log.Discard()})
	if err := c.Ping(ctx); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork for 502, got %v", err)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	c = New(NewHTTPTransport(url, nil), Options{Logger: log.Discard()})
	err := c.Ping(ctx)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork for closed server, got %v", err)
	}
	if Message(err) == err.Error() {
		t.Fatalf("network errors should get a friendly message")
	}
}

func TestHTTPTransportEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"success":false,"message":"Rate limit exceeded. Please try again later."}`))
	}))
	defer srv.Close()

	c := New(NewHTTPTransport(srv.URL+"/", nil), Options{Logger: log.Discard()})
	err := c.Ping(context.Background())
	if Message(err) != "Rate limit exceeded. Please try again later." {
		t.Fatalf("unexpected error %v", err)
	}
}
