package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"scuola/internal/core"
	"scuola/internal/lock"
	"scuola/internal/sheets"
)

// StaffService keeps the flat employee attendance log and teacher holidays.
type StaffService struct {
	base
	employees *EmployeeService
}

type (
	StaffRosterEntry struct {
		EmployeeID string  `json:"employeeId"`
		Name       string  `json:"name"`
		Role       string  `json:"role"`
		OnHoliday  bool    `json:"onHoliday"`
		Status     *string `json:"status"`
	}

	StaffDay struct {
		IsHoliday     bool               `json:"isHoliday"`
		HolidayReason string             `json:"holidayReason,omitempty"`
		Employees     []StaffRosterEntry `json:"employees"`
	}

	StaffEntry struct {
		EmployeeID string
		Status     core.StaffStatus
	}

	EmployeeHistory struct {
		PresentCount  int            `json:"presentCount"`
		AbsentCount   int            `json:"absentCount"`
		LateCount     int            `json:"lateCount"`
		HalfDayCount  int            `json:"halfDayCount"`
		TotalDays     int            `json:"totalDays"`
		Percentage    int            `json:"percentage"`
		RecentHistory []HistoryEntry `json:"recentHistory"`
	}
)

var staffRef = sheets.Master(sheets.StaffAttendance)

func (s *StaffService) GetDay(ctx context.Context, date string) (StaffDay, error) {
	d, err := core.ParseDate(date)
	if err != nil {
		return StaffDay{}, err
	}
	date = d.String()
	employees, err := s.employees.List(ctx, false)
	if err != nil {
		return StaffDay{}, err
	}
	rows, err := s.rows(ctx, staffRef)
	if err != nil {
		return StaffDay{}, err
	}
	marks := make(map[string]string)
	for _, r := range rows {
		if staffSchema.Value(r, "Date") == date {
			marks[staffSchema.Value(r, "EmployeeID")] = staffSchema.Value(r, "Status")
		}
	}
	holidays, err := s.ListHolidays(ctx, "")
	if err != nil {
		return StaffDay{}, err
	}

	day := StaffDay{Employees: make([]StaffRosterEntry, 0, len(employees))}
	personal := make(map[string]bool)
	for _, h := range holidays {
		if h.Date != date {
			continue
		}
		if h.EmployeeID == "" {
			day.IsHoliday = true
			day.HolidayReason = h.Reason
		} else {
			personal[h.EmployeeID] = true
		}
	}
	for _, e := range employees {
		entry := StaffRosterEntry{EmployeeID: e.EmployeeID, Name: e.Name, Role: e.Role, OnHoliday: day.IsHoliday || personal[e.EmployeeID]}
		if m, ok := marks[e.EmployeeID]; ok {
			entry.Status = &m
		}
		day.Employees = append(day.Employees, entry)
	}
	return day, nil
}

// SubmitDay upserts each employee's status for date.
func (s *StaffService) SubmitDay(ctx context.Context, date string, entries []StaffEntry) error {
	d, err := core.ParseDate(date)
	if err != nil {
		return err
	}
	date = d.String()
	if len(entries) == 0 {
		return core.NewValidationError("attendance")
	}
	for _, e := range entries {
		if strings.TrimSpace(e.EmployeeID) == "" {
			return core.NewValidationError("employeeId")
		}
		if e.Status.Weight() == 0 && e.Status != core.StaffAbsent {
			return fmt.Errorf("%w: %q for %s", core.ErrInvalidStatus, e.Status, e.EmployeeID)
		}
	}
	entries = lastStaffMarks(entries)
	return s.locker.WithLock(ctx, lock.StaffAttendanceKey(date), func() error {
		if err := s.store.Ensure(ctx, staffRef); err != nil {
			return fmt.Errorf("ensure %s: %w", staffRef, err)
		}
		rows, err := s.rows(ctx, staffRef)
		if err != nil {
			return err
		}
		index := make(map[string]int)
		for i, r := range rows {
			if staffSchema.Value(r, "Date") == date {
				index[staffSchema.Value(r, "EmployeeID")] = i
			}
		}
		now := s.timestamp()
		for _, e := range entries {
			row := staffSchema.NewRow(map[string]string{
				"Date": date, "EmployeeID": e.EmployeeID, "Status": string(e.Status), "Timestamp": now,
			})
			if i, ok := index[e.EmployeeID]; ok {
				if err := s.store.Update(ctx, staffRef, i, row); err != nil {
					return fmt.Errorf("update staff mark %s: %w", e.EmployeeID, err)
				}
				continue
			}
			if err := s.store.Append(ctx, staffRef, row); err != nil {
				return fmt.Errorf("append staff mark %s: %w", e.EmployeeID, err)
			}
		}
		s.logger.InfoContext(ctx, "Staff attendance submitted", "date", date, "entries", len(entries))
		return nil
	})
}

// lastStaffMarks keeps the last entry given for each employee.
func lastStaffMarks(entries []StaffEntry) []StaffEntry {
	pos := make(map[string]int, len(entries))
	out := make([]StaffEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := pos[e.EmployeeID]; ok {
			out[i] = e
			continue
		}
		pos[e.EmployeeID] = len(out)
		out = append(out, e)
	}
	return out
}

// EmployeeHistory summarizes one employee's log with the weighted percentage.
func (s *StaffService) EmployeeHistory(ctx context.Context, employeeID string) (EmployeeHistory, error) {
	if err := required("employeeId", employeeID); err != nil {
		return EmployeeHistory{}, err
	}
	rows, err := s.rows(ctx, staffRef)
	if err != nil {
		return EmployeeHistory{}, err
	}
	type staffMark struct {
		date   string
		status core.StaffStatus
	}
	var marks []staffMark
	for _, r := range rows {
		if staffSchema.Value(r, "EmployeeID") != employeeID {
			continue
		}
		date := staffSchema.Value(r, "Date")
		if !core.IsCanonicalDate(date) {
			continue
		}
		st, err := core.ParseStaffStatus(staffSchema.Value(r, "Status"))
		if err != nil {
			continue
		}
		marks = append(marks, staffMark{date: date, status: st})
	}
	sort.SliceStable(marks, func(i, j int) bool { return marks[i].date < marks[j].date })

	h := EmployeeHistory{RecentHistory: []HistoryEntry{}}
	statuses := make([]core.StaffStatus, 0, len(marks))
	for _, m := range marks {
		statuses = append(statuses, m.status)
		switch m.status {
		case core.StaffPresent:
			h.PresentCount++
		case core.StaffAbsent:
			h.AbsentCount++
		case core.StaffLate:
			h.LateCount++
		case core.StaffHalfDay:
			h.HalfDayCount++
		}
	}
	h.TotalDays = len(marks)
	h.Percentage = core.StaffPercentage(statuses)
	for i := len(marks) - 1; i >= 0 && len(h.RecentHistory) < recentHistoryLimit; i-- {
		h.RecentHistory = append(h.RecentHistory, HistoryEntry{Date: marks[i].date, Status: string(marks[i].status)})
	}
	return h, nil
}

// AddHoliday records a holiday. An empty EmployeeID applies to all staff.
func (s *StaffService) AddHoliday(ctx context.Context, h core.Holiday) (core.Holiday, error) {
	d, err := core.ParseDate(h.Date)
	if err != nil {
		return core.Holiday{}, err
	}
	h.Date = d.String()
	h.HolidayID = newID("HOL")
	row := holidaySchema.NewRow(map[string]string{
		"HolidayID": h.HolidayID, "Date": h.Date, "EmployeeID": strings.TrimSpace(h.EmployeeID), "Reason": h.Reason,
	})
	if err := s.append(ctx, sheets.Master(sheets.Holidays), row); err != nil {
		return core.Holiday{}, err
	}
	return h, nil
}

// ListHolidays returns holidays sorted by date. A non-empty employeeID keeps
// that employee's holidays plus school-wide ones.
func (s *StaffService) ListHolidays(ctx context.Context, employeeID string) ([]core.Holiday, error) {
	rows, err := s.rows(ctx, sheets.Master(sheets.Holidays))
	if err != nil {
		return nil, err
	}
	out := make([]core.Holiday, 0, len(rows))
	for _, r := range rows {
		h := holidayFromRow(r)
		if employeeID != "" && h.EmployeeID != "" && h.EmployeeID != employeeID {
			continue
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *StaffService) RemoveHoliday(ctx context.Context, holidayID string) error {
	if err := required("holidayId", holidayID); err != nil {
		return err
	}
	return s.deleteByKey(ctx, sheets.Holidays, "holiday", holidayID)
}
