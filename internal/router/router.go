// Package router dispatches {action, ...fields} requests to the school services
// and wraps every outcome in the {success, data, message} envelope.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"scuola/internal/core"
	"scuola/internal/lock"
	"scuola/internal/log"
	"scuola/internal/metrics"
	"scuola/internal/services"
)

const lockBusyMessage = "Another update is in progress, please retry"

// Response is the envelope returned for every action. Message is always set.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
}

// Result is what a handler produces on success.
type Result struct {
	Data    any
	Message string
}

// Handler serves one action. payload is the full request object.
type Handler func(ctx context.Context, payload json.RawMessage) (Result, error)

// Router maps action names to handlers.
type Router struct {
	svc      *services.Services
	handlers map[string]Handler
	writes   map[string]bool
	logger   *log.Logger
	events   *log.StructuredLogger
	metrics  *metrics.Metrics
}

type Option func(*Router)

func WithLogger(l *log.Logger) Option { return func(r *Router) { r.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(r *Router) { r.metrics = m } }

// New builds a router with the full action catalog registered.
func New(svc *services.Services, opts ...Option) *Router {
	r := &Router{
		svc:      svc,
		handlers: make(map[string]Handler),
		writes:   make(map[string]bool),
		logger:   log.New(log.DefaultConfig()),
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.WithComponent(log.ComponentRouter)
	r.events = log.NewStructuredLogger(r.logger)
	r.registerAttendance()
	r.registerFees()
	r.registerRecords()
	r.registerAcademics()
	r.read("ping", func(context.Context, json.RawMessage) (Result, error) {
		return Result{Data: map[string]string{"status": "ok"}, Message: "pong"}, nil
	})
	return r
}

func (r *Router) read(action string, h Handler) {
	r.handlers[action] = h
}

func (r *Router) write(action string, h Handler) {
	r.handlers[action] = h
	r.writes[action] = true
}

// Actions lists the registered action names.
func (r *Router) Actions() []string {
	out := make([]string, 0, len(r.handlers))
	for a := range r.handlers {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// IsWrite reports whether action mutates state.
func (r *Router) IsWrite(action string) bool {
	return r.writes[action]
}

// Dispatch decodes a raw request body and routes it.
func (r *Router) Dispatch(ctx context.Context, body []byte) Response {
	var env struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return Response{Message: "Invalid request: " + err.Error()}
	}
	return r.Handle(ctx, env.Action, body)
}

// Handle routes an already-extracted action. It never panics.
func (r *Router) Handle(ctx context.Context, action string, payload json.RawMessage) (resp Response) {
	start := time.Now()
	action = strings.TrimSpace(action)
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "Handler panicked", log.FieldAction, action, "panic", p, "stack", string(debug.Stack()))
			resp = Response{Message: fmt.Sprintf("Server error: %v", p)}
		}
		outcome := "success"
		if !resp.Success {
			outcome = "error"
		}
		r.metrics.ObserveAction(action, outcome, time.Since(start))
	}()

	if action == "" {
		return Response{Message: "Missing required field: action"}
	}
	h, ok := r.handlers[action]
	if !ok {
		return Response{Message: "Unknown action: " + action}
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	res, err := h(ctx, payload)
	if err != nil {
		return r.failure(ctx, action, err)
	}
	msg := res.Message
	if msg == "" {
		msg = "OK"
	}
	return Response{Success: true, Data: res.Data, Message: msg}
}

// failure maps an error onto the envelope. Expected failures are logged at warn level.
func (r *Router) failure(ctx context.Context, action string, err error) Response {
	var msg, kind string
	switch {
	case errors.Is(err, core.ErrNotFound):
		msg, kind = err.Error(), log.ErrorTypeNotFound
	case errors.Is(err, core.ErrBadLogin):
		msg, kind = "Invalid username or password", log.ErrorTypeValidation
	case errors.Is(err, core.ErrDayLocked):
		msg, kind = "Attendance already submitted and locked for this day", log.ErrorTypeConflict
	case core.IsValidation(err):
		msg, kind = validationMessage(err), log.ErrorTypeValidation
	case errors.Is(err, lock.ErrLockTimeout):
		msg, kind = lockBusyMessage, log.ErrorTypeTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		msg, kind = "Request cancelled", log.ErrorTypeTimeout
	default:
		r.events.LogError(ctx, "Action failed", err, log.ComponentRouter, action,
			log.NewFields().WithErrorType(log.ErrorTypeInternal))
		return Response{Message: "Server error: " + err.Error()}
	}
	r.logger.WarnContext(ctx, "Action rejected", log.FieldAction, action, log.FieldError, err, "error_type", kind)
	return Response{Message: msg}
}

// validationMessage prefers the ValidationError text over wrapped context.
func validationMessage(err error) string {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 && strings.HasPrefix(msg, core.ErrValidation.Error()) {
		return strings.TrimSpace(msg[i+2:])
	}
	return msg
}
