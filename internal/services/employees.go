package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"scuola/internal/core"
	"scuola/internal/lock"
	"scuola/internal/sheets"
)

const employeeIDPrefix = "EMP-"

// EmployeeService manages staff records. IDs are sequential per school.
type EmployeeService struct {
	base
}

func (s *EmployeeService) Add(ctx context.Context, e core.Employee) (core.Employee, error) {
	e.Name = strings.TrimSpace(e.Name)
	e.Role = strings.TrimSpace(e.Role)
	if err := e.Validate(); err != nil {
		return core.Employee{}, err
	}
	if e.Status == "" {
		e.Status = core.StatusActive
	}
	if e.JoinDate == "" {
		e.JoinDate = s.today()
	}
	ref := sheets.Master(sheets.Employees)
	err := s.locker.WithLock(ctx, lock.TableKey(string(sheets.Employees)), func() error {
		rows, err := s.rows(ctx, ref)
		if err != nil {
			return err
		}
		e.EmployeeID = nextEmployeeID(rows)
		return s.append(ctx, ref, employeeSchema.NewRow(employeeCells(e)))
	})
	if err != nil {
		return core.Employee{}, err
	}
	return e, nil
}

// nextEmployeeID returns one past the highest numeric suffix in use.
func nextEmployeeID(rows []sheets.Row) string {
	max := 0
	col := employeeSchema.Col("EmployeeID")
	for _, r := range rows {
		n, err := strconv.Atoi(strings.TrimPrefix(r.Get(col), employeeIDPrefix))
		if err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%04d", employeeIDPrefix, max+1)
}

func (s *EmployeeService) Update(ctx context.Context, e core.Employee) (core.Employee, error) {
	if strings.TrimSpace(e.EmployeeID) == "" {
		return core.Employee{}, core.NewValidationError("employeeId")
	}
	if err := e.Validate(); err != nil {
		return core.Employee{}, err
	}
	ref := sheets.Master(sheets.Employees)
	err := s.locker.WithLock(ctx, lock.TableKey(string(sheets.Employees)), func() error {
		rows, err := s.rows(ctx, ref)
		if err != nil {
			return err
		}
		idx := findRow(rows, employeeSchema, "EmployeeID", e.EmployeeID)
		if idx < 0 {
			return core.NotFound("employee", e.EmployeeID)
		}
		if e.Status == "" {
			e.Status = employeeFromRow(rows[idx]).Status
		}
		return s.store.Update(ctx, ref, idx, employeeSchema.NewRow(employeeCells(e)))
	})
	if err != nil {
		return core.Employee{}, err
	}
	return e, nil
}

func (s *EmployeeService) Get(ctx context.Context, id string) (core.Employee, error) {
	rows, err := s.rows(ctx, sheets.Master(sheets.Employees))
	if err != nil {
		return core.Employee{}, err
	}
	idx := findRow(rows, employeeSchema, "EmployeeID", id)
	if idx < 0 {
		return core.Employee{}, core.NotFound("employee", id)
	}
	return employeeFromRow(rows[idx]), nil
}

// List returns employees in sheet order, skipping archived ones unless includeLeft.
func (s *EmployeeService) List(ctx context.Context, includeLeft bool) ([]core.Employee, error) {
	rows, err := s.rows(ctx, sheets.Master(sheets.Employees))
	if err != nil {
		return nil, err
	}
	out := make([]core.Employee, 0, len(rows))
	for _, r := range rows {
		e := employeeFromRow(r)
		if !includeLeft && e.Status == core.StatusLeft {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *EmployeeService) Archive(ctx context.Context, id, reason string) error {
	ref := sheets.Master(sheets.Employees)
	return s.locker.WithLock(ctx, lock.TableKey(string(sheets.Employees)), func() error {
		rows, err := s.rows(ctx, ref)
		if err != nil {
			return err
		}
		idx := findRow(rows, employeeSchema, "EmployeeID", id)
		if idx < 0 {
			return core.NotFound("employee", id)
		}
		e := employeeFromRow(rows[idx])
		if e.Status == core.StatusLeft {
			return fmt.Errorf("%w: employee %s is already archived", core.ErrValidation, id)
		}
		cells := employeeCells(e)
		cells["ArchivedAt"] = s.timestamp()
		cells["Reason"] = reason
		archive := sheets.MustSchema(sheets.EmployeesArchive)
		if err := s.append(ctx, sheets.Master(sheets.EmployeesArchive), archive.NewRow(cells)); err != nil {
			return err
		}
		e.Status = core.StatusLeft
		return s.store.Update(ctx, ref, idx, employeeSchema.NewRow(employeeCells(e)))
	})
}
