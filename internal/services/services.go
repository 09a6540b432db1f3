// Package services implements the school operations on top of the record store.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"scuola/internal/core"
	"scuola/internal/lock"
	"scuola/internal/log"
	"scuola/internal/sheets"
)

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time

// AbsenteeNotifier delivers guardian notices for absent students.
type AbsenteeNotifier interface {
	NotifyAbsentee(ctx context.Context, notice core.AbsenteeNotice) error
}

// Options configures the service set.
type Options struct {
	Now Clock
	// RejectLockedDays makes a second submission of a locked class day fail with core.ErrDayLocked.
	RejectLockedDays bool
	Logger           *log.Logger
	Notifier         AbsenteeNotifier
	SchoolName       string
}

// Services bundles every domain service over one store and one locker.
type Services struct {
	Students   *StudentService
	Employees  *EmployeeService
	Attendance *AttendanceService
	Staff      *StaffService
	Fees       *FeeService
	Users      *UserService
	Exams      *ExamService
	Schedule   *ScheduleService
	Homework   *HomeworkService
	Events     *EventService
	Dashboard  *DashboardService
}

func New(store sheets.Store, locker *lock.Locker, opts Options) *Services {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	b := base{store: store, locker: locker, now: opts.Now, logger: opts.Logger}

	students := &StudentService{base: b.named(log.ComponentRecords)}
	employees := &EmployeeService{base: b.named(log.ComponentRecords)}
	attendance := &AttendanceService{
		base:         b.named(log.ComponentAttendance),
		students:     students,
		rejectLocked: opts.RejectLockedDays,
		notifier:     opts.Notifier,
		school:       opts.SchoolName,
	}
	staff := &StaffService{base: b.named(log.ComponentStaff), employees: employees}
	fees := &FeeService{base: b.named(log.ComponentFees)}

	return &Services{
		Students:   students,
		Employees:  employees,
		Attendance: attendance,
		Staff:      staff,
		Fees:       fees,
		Users:      &UserService{base: b.named(log.ComponentRecords)},
		Exams:      &ExamService{base: b.named(log.ComponentRecords)},
		Schedule:   &ScheduleService{base: b.named(log.ComponentRecords)},
		Homework:   &HomeworkService{base: b.named(log.ComponentRecords)},
		Events:     &EventService{base: b.named(log.ComponentRecords)},
		Dashboard: &DashboardService{
			students: students, employees: employees, attendance: attendance, fees: fees, now: opts.Now,
		},
	}
}

// base carries the collaborators every service needs.
type base struct {
	store  sheets.Store
	locker *lock.Locker
	now    Clock
	logger *log.Logger
}

func (b base) named(component string) base {
	b.logger = b.logger.WithComponent(component)
	return b
}

func (b base) events() *log.StructuredLogger {
	return log.NewStructuredLogger(b.logger)
}

func (b base) today() string {
	return core.DateOf(b.now()).String()
}

func (b base) timestamp() string {
	return b.now().Format(time.RFC3339)
}

// rows reads ref, creating nothing.
func (b base) rows(ctx context.Context, ref sheets.Ref) ([]sheets.Row, error) {
	rows, err := b.store.Rows(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return rows, nil
}

func (b base) append(ctx context.Context, ref sheets.Ref, row sheets.Row) error {
	if err := b.store.Ensure(ctx, ref); err != nil {
		return fmt.Errorf("ensure %s: %w", ref, err)
	}
	if err := b.store.Append(ctx, ref, row); err != nil {
		return fmt.Errorf("append %s: %w", ref, err)
	}
	return nil
}

// findRow returns the index of the first row whose col equals value, or -1.
func findRow(rows []sheets.Row, schema sheets.Schema, col, value string) int {
	c := schema.Col(col)
	for i, r := range rows {
		if r.Get(c) == value {
			return i
		}
	}
	return -1
}

// deleteByKey removes the row of a keyed master table under the table lock.
func (b base) deleteByKey(ctx context.Context, table sheets.Table, what, key string) error {
	schema := sheets.MustSchema(table)
	ref := sheets.Master(table)
	return b.locker.WithLock(ctx, lock.TableKey(string(table)), func() error {
		rows, err := b.rows(ctx, ref)
		if err != nil {
			return err
		}
		idx := findRow(rows, schema, schema.Key, key)
		if idx < 0 {
			return core.NotFound(what, key)
		}
		if err := b.store.Delete(ctx, ref, idx); err != nil {
			return fmt.Errorf("delete %s %s: %w", what, key, err)
		}
		return nil
	})
}

// newID returns prefix-<uuid v7>. V7 ids sort by creation time.
func newID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "-" + id.String()
}

func required(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return core.NewValidationError(missing...)
	}
	return nil
}
