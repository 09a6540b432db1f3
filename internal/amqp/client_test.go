package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"scuola/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	want := map[int]time.Duration{
		0: time.Second, 1: 2 * time.Second, 3: 8 * time.Second, 4: 16 * time.Second,
		5: maxBackoff, 12: maxBackoff, 63: maxBackoff,
	}
	for attempt, d := range want {
		if got := exponentialBackoff(attempt); got != d {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", attempt, got, d)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	retry := []error{
		errors.New("dial tcp: connection refused"),
		errors.New("read: unexpected EOF"),
		errors.New("write: broken pipe"),
		errors.New("use of closed network connection"),
		fmt.Errorf("publish absentee notice: %w", amqp091.ErrClosed),
	}
	for _, err := range retry {
		if !isConnectionError(err) {
			t.Errorf("isConnectionError(%q) = false, want true", err)
		}
	}
	for _, err := range []error{nil, errors.New("PRECONDITION_FAILED - inequivalent arg 'durable'")} {
		if isConnectionError(err) {
			t.Errorf("isConnectionError(%v) = true, want false", err)
		}
	}
}

func breakerState(c *Client) int32 { return atomic.LoadInt32(&c.state) }

func TestCircuitBreaker(t *testing.T) {
	c := &Client{queueName: "absentee_notices"}
	if c.isCircuitOpen() {
		t.Fatal("new client must start closed")
	}

	for i := 1; i < maxFailures; i++ {
		c.recordFailure()
	}
	if c.isCircuitOpen() {
		t.Fatalf("opened after %d failures, threshold is %d", maxFailures-1, maxFailures)
	}
	c.recordFailure()
	if !c.isCircuitOpen() || breakerState(c) != StateOpen {
		t.Fatal("threshold reached, breaker must be open")
	}

	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if c.isCircuitOpen() || breakerState(c) != StateHalfOpen {
		t.Fatalf("after the open timeout the breaker must be half-open, state=%d", breakerState(c))
	}

	// One failure while probing reopens it.
	c.recordFailure()
	if breakerState(c) != StateOpen {
		t.Fatalf("failure in half-open must reopen, state=%d", breakerState(c))
	}

	c.recordSuccess()
	if breakerState(c) != StateClosed || atomic.LoadInt64(&c.failureCount) != 0 {
		t.Fatal("success must close the breaker and reset the count")
	}
}

func TestPublishAbsenteeGuards(t *testing.T) {
	c := &Client{queueName: "absentee_notices"}
	msg := NewAbsenteeMessage(core.AbsenteeNotice{AdmissionNo: "A1", Date: "2024-06-01"})

	atomic.StoreInt32(&c.state, StateOpen)
	c.lastFailure = time.Now()
	err := c.PublishAbsentee(context.Background(), msg)
	if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Fatalf("open breaker: err = %v", err)
	}

	c.recordSuccess()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.NotifyAbsentee(ctx, msg.Notice); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled context: err = %v", err)
	}
}

type fakeAck struct {
	acked, nacked, requeued int
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked++; return nil }

func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}

func (a *fakeAck) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

func TestHandleDelivery(t *testing.T) {
	body, err := NewAbsenteeMessage(core.AbsenteeNotice{AdmissionNo: "A1"}).ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	failing := func(context.Context, *AbsenteeMessage) error { return errors.New("smtp down") }
	ok := func(_ context.Context, m *AbsenteeMessage) error {
		if m.Notice.AdmissionNo != "A1" {
			return fmt.Errorf("unexpected notice %+v", m.Notice)
		}
		return nil
	}

	tests := []struct {
		name        string
		body        []byte
		redelivered bool
		handler     func(context.Context, *AbsenteeMessage) error
		want        fakeAck
	}{
		{"success acks", body, false, ok, fakeAck{acked: 1}},
		{"bad json is dropped", []byte("{"), false, ok, fakeAck{nacked: 1}},
		{"first failure requeues", body, false, failing, fakeAck{nacked: 1, requeued: 1}},
		{"second failure drops", body, true, failing, fakeAck{nacked: 1}},
	}
	c := &Client{queueName: "q"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			c.handleDelivery(context.Background(), amqp091.Delivery{
				Acknowledger: ack,
				Body:         tt.body,
				Redelivered:  tt.redelivered,
			}, tt.handler)
			if *ack != tt.want {
				t.Fatalf("acks = %+v, want %+v", *ack, tt.want)
			}
		})
	}
}

func TestAbsenteeMessage_JSON(t *testing.T) {
	notice := core.AbsenteeNotice{
		AdmissionNo:   "A1",
		StudentName:   "Asha",
		Class:         "5",
		Section:       "B",
		Date:          "2024-06-01",
		GuardianEmail: "parent@example.com",
	}
	msg := NewAbsenteeMessage(notice)
	if msg.ID == "" || msg.Timestamp.IsZero() {
		t.Fatalf("NewAbsenteeMessage() must stamp id and time: %+v", msg)
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := AbsenteeMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("AbsenteeMessageFromJSON() error = %v", err)
	}
	if parsed.ID != msg.ID || parsed.Notice != notice || !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
}

func TestAbsenteeMessage_InvalidJSON(t *testing.T) {
	if _, err := AbsenteeMessageFromJSON([]byte(`{"notice": "not an object"}`)); err == nil {
		t.Error("AbsenteeMessageFromJSON() should fail with invalid JSON")
	}
}
