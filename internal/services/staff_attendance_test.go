package services

import (
	"context"
	"errors"
	"testing"

	"scuola/internal/core"
	"scuola/internal/sheets"
	"scuola/internal/sheets/memory"
)

func seedEmployees(t *testing.T, svc *Services, names ...string) []core.Employee {
	t.Helper()
	var out []core.Employee
	for _, n := range names {
		e, err := svc.Employees.Add(context.Background(), core.Employee{Name: n, Role: "Teacher"})
		if err != nil {
			t.Fatalf("add employee %s: %v", n, err)
		}
		out = append(out, e)
	}
	return out
}

func TestStaffWeightedPercentage(t *testing.T) {
	svc, _ := newTestServices(t, Options{})
	emps := seedEmployees(t, svc, "Anita")
	id := emps[0].EmployeeID
	ctx := context.Background()

	statuses := []core.StaffStatus{core.StaffPresent, core.StaffLate, core.StaffHalfDay, core.StaffAbsent}
	for i, st := range statuses {
		date := core.NewDate(2024, 6, i+1).String()
		if err := svc.Staff.SubmitDay(ctx, date, []StaffEntry{{EmployeeID: id, Status: st}}); err != nil {
			t.Fatalf("submit %s: %v", date, err)
		}
	}
	h, err := svc.Staff.EmployeeHistory(ctx, id)
	if err != nil {
		t.Fatalf("EmployeeHistory: %v", err)
	}
	if h.Percentage != 63 {
		t.Fatalf("expected 63, got %d", h.Percentage)
	}
	if h.PresentCount != 1 || h.LateCount != 1 || h.HalfDayCount != 1 || h.AbsentCount != 1 || h.TotalDays != 4 {
		t.Fatalf("unexpected counts %+v", h)
	}
	if h.RecentHistory[0].Date != "2024-06-04" || h.RecentHistory[0].Status != "Absent" {
		t.Fatalf("unexpected first history entry %+v", h.RecentHistory[0])
	}
}

func TestStaffSubmitUpserts(t *testing.T) {
	svc, store := newTestServices(t, Options{})
	emps := seedEmployees(t, svc, "Anita", "Bala")
	ctx := context.Background()

	first := []StaffEntry{{EmployeeID: emps[0].EmployeeID, Status: core.StaffPresent}, {EmployeeID: emps[1].EmployeeID, Status: core.StaffAbsent}}
	if err := svc.Staff.SubmitDay(ctx, "2024-06-01", first); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Staff.SubmitDay(ctx, "2024-06-01", []StaffEntry{{EmployeeID: emps[1].EmployeeID, Status: core.StaffLate}}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	rows, _ := store.Rows(ctx, sheets.Master(sheets.StaffAttendance))
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	day, err := svc.Staff.GetDay(ctx, "2024-06-01")
	if err != nil {
		t.Fatalf("GetDay: %v", err)
	}
	if *day.Employees[1].Status != "Late" {
		t.Fatalf("expected Late, got %v", *day.Employees[1].Status)
	}
}

func TestStaffGetDayHolidays(t *testing.T) {
	svc, _ := newTestServices(t, Options{})
	emps := seedEmployees(t, svc, "Anita", "Bala")
	ctx := context.Background()

	if _, err := svc.Staff.AddHoliday(ctx, core.Holiday{Date: "2024-08-15", Reason: "Independence Day"}); err != nil {
		t.Fatalf("AddHoliday: %v", err)
	}
	leave, err := svc.Staff.AddHoliday(ctx, core.Holiday{Date: "2024-08-16", EmployeeID: emps[1].EmployeeID, Reason: "Leave"})
	if err != nil {
		t.Fatalf("AddHoliday: %v", err)
	}

	day, _ := svc.Staff.GetDay(ctx, "2024-08-15")
	if !day.IsHoliday || day.HolidayReason != "Independence Day" {
		t.Fatalf("expected school holiday, got %+v", day)
	}
	day, _ = svc.Staff.GetDay(ctx, "2024-08-16")
	if day.IsHoliday || day.Employees[0].OnHoliday || !day.Employees[1].OnHoliday {
		t.Fatalf("expected personal holiday only for second employee, got %+v", day)
	}

	mine, _ := svc.Staff.ListHolidays(ctx, emps[0].EmployeeID)
	if len(mine) != 1 {
		t.Fatalf("first employee should only see the school holiday, got %v", mine)
	}

	if err := svc.Staff.RemoveHoliday(ctx, leave.HolidayID); err != nil {
		t.Fatalf("RemoveHoliday: %v", err)
	}
	if err := svc.Staff.RemoveHoliday(ctx, leave.HolidayID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStaffSubmitRejectsBadStatus(t *testing.T) {
	svc, _ := newTestServices(t, Options{})
	err := svc.Staff.SubmitDay(context.Background(), "2024-06-01", []StaffEntry{{EmployeeID: "EMP-0001", Status: "Leave"}})
	if !errors.Is(err, core.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestStaffSubmitCollapsesRepeatedEmployee(t *testing.T) {
	base := memory.New()
	other := sheets.Row{"2024-06-02", "EMP-9999", "Present", "2024-06-02T08:00:00Z"}
	svc := newServicesOver(t, &racingStore{Store: base, ref: staffRef, extra: other}, Options{})
	emps := seedEmployees(t, svc, "Anita", "Bala")
	ctx := context.Background()

	entries := []StaffEntry{
		{EmployeeID: emps[0].EmployeeID, Status: core.StaffPresent},
		{EmployeeID: emps[1].EmployeeID, Status: core.StaffPresent},
		{EmployeeID: emps[1].EmployeeID, Status: core.StaffHalfDay},
	}
	if err := svc.Staff.SubmitDay(ctx, "2024-06-01", entries); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rows, _ := base.Rows(ctx, staffRef)
	if len(rows) != 3 {
		t.Fatalf("expected two marks and the other day's row, got %v", rows)
	}
	for _, r := range rows {
		switch r[1] {
		case "EMP-9999":
			if r[0] != "2024-06-02" || r[2] != "Present" {
				t.Fatalf("row of another day was overwritten: %v", r)
			}
		case emps[1].EmployeeID:
			if r[2] != string(core.StaffHalfDay) {
				t.Fatalf("last entry should win, got %v", r)
			}
		}
	}
}
