package router

import (
	"context"
	"encoding/json"
	"fmt"

	"scuola/internal/core"
	"scuola/internal/services"
)

type classDayParams struct {
	Class   string `json:"class" validate:"notblank"`
	Section string `json:"section" validate:"notblank"`
	Date    string `json:"date" validate:"notblank,datetime=2006-01-02"`
}

type markAttendanceParams struct {
	classDayParams
	MarkedBy   string `json:"markedBy"`
	Attendance []struct {
		AdmissionNo string `json:"admissionNo" validate:"notblank"`
		Status      string `json:"status" validate:"notblank"`
	} `json:"attendance" validate:"required,min=1,dive"`
}

type staffDayParams struct {
	Date string `json:"date" validate:"notblank,datetime=2006-01-02"`
}

type submitStaffParams struct {
	staffDayParams
	Attendance []struct {
		EmployeeID string `json:"employeeId" validate:"notblank"`
		Status     string `json:"status" validate:"notblank"`
	} `json:"attendance" validate:"required,min=1,dive"`
}

type holidayParams struct {
	Date       string `json:"date" validate:"notblank,datetime=2006-01-02"`
	EmployeeID string `json:"employeeId"`
	Reason     string `json:"reason"`
}

func (r *Router) registerAttendance() {
	r.read("getAttendanceData", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p classDayParams
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		day, err := r.svc.Attendance.GetDay(ctx, p.Class, p.Section, p.Date)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: day, Message: fmt.Sprintf("Loaded %d students", len(day.Students))}, nil
	})

	r.write("markAttendance", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p markAttendanceParams
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		entries := make([]services.AttendanceEntry, 0, len(p.Attendance))
		for _, a := range p.Attendance {
			st, err := core.ParseAttendanceStatus(a.Status)
			if err != nil {
				return Result{}, err
			}
			entries = append(entries, services.AttendanceEntry{AdmissionNo: a.AdmissionNo, Status: st})
		}
		if err := r.svc.Attendance.SubmitDay(ctx, p.Class, p.Section, p.Date, entries, p.MarkedBy); err != nil {
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("Attendance saved for %d students", len(entries))}, nil
	})

	r.read("getStudentAttendance", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p admissionParams
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		h, err := r.svc.Attendance.StudentHistory(ctx, p.AdmissionNo)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: h}, nil
	})

	r.read("exportAttendanceCSV", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			Class   string `json:"class" validate:"notblank"`
			Section string `json:"section" validate:"notblank"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		csv, err := r.svc.Attendance.ExportCSV(ctx, p.Class, p.Section)
		if err != nil {
			return Result{}, err
		}
		if csv == "" {
			return Result{Data: "", Message: services.NoAttendanceDataMessage}, nil
		}
		return Result{Data: csv, Message: "Export ready"}, nil
	})

	r.write("notifyAbsentees", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p classDayParams
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		res, err := r.svc.Attendance.NotifyAbsentees(ctx, p.Class, p.Section, p.Date)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: res, Message: fmt.Sprintf("Queued %d of %d absentee notices", res.Sent, res.Absentees)}, nil
	})

	r.read("getStaffAttendanceData", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p staffDayParams
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		day, err := r.svc.Staff.GetDay(ctx, p.Date)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: day}, nil
	})

	r.write("submitStaffAttendance", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p submitStaffParams
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		entries := make([]services.StaffEntry, 0, len(p.Attendance))
		for _, a := range p.Attendance {
			st, err := core.ParseStaffStatus(a.Status)
			if err != nil {
				return Result{}, err
			}
			entries = append(entries, services.StaffEntry{EmployeeID: a.EmployeeID, Status: st})
		}
		if err := r.svc.Staff.SubmitDay(ctx, p.Date, entries); err != nil {
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("Staff attendance saved for %d employees", len(entries))}, nil
	})

	r.read("getEmployeeAttendance", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p employeeParams
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		h, err := r.svc.Staff.EmployeeHistory(ctx, p.EmployeeID)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: h}, nil
	})

	r.write("addTeacherHoliday", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p holidayParams
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		h, err := r.svc.Staff.AddHoliday(ctx, core.Holiday{Date: p.Date, EmployeeID: p.EmployeeID, Reason: p.Reason})
		if err != nil {
			return Result{}, err
		}
		return Result{Data: h, Message: "Holiday added"}, nil
	})

	r.read("getTeacherHolidays", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			EmployeeID string `json:"employeeId"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		list, err := r.svc.Staff.ListHolidays(ctx, p.EmployeeID)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: list}, nil
	})

	r.write("removeTeacherHoliday", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			HolidayID string `json:"holidayId" validate:"notblank"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		if err := r.svc.Staff.RemoveHoliday(ctx, p.HolidayID); err != nil {
			return Result{}, err
		}
		return Result{Message: "Holiday removed"}, nil
	})
}
