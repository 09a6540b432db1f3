package services

import (
	"context"
	"errors"
	"testing"

	"scuola/internal/core"
	"scuola/internal/sheets"
)

func TestStudentLifecycle(t *testing.T) {
	svc, store := newTestServices(t, Options{})
	ctx := context.Background()
	seedStudents(t, svc, classFive...)

	if _, err := svc.Students.Add(ctx, classFive[0]); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("duplicate admission number should fail validation, got %v", err)
	}

	st := classFive[0]
	st.Phone = "11111"
	st.Status = ""
	updated, err := svc.Students.Update(ctx, st)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != core.StatusActive || updated.CreatedAt == "" {
		t.Fatalf("update should keep status and creation time: %+v", updated)
	}

	if err := svc.Students.Archive(ctx, "A1", "Transferred"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	roster, _ := svc.Students.Roster(ctx, "5", "B")
	if len(roster) != 2 {
		t.Fatalf("archived student should leave the roster, got %d", len(roster))
	}
	all, _ := svc.Students.List(ctx, StudentFilter{IncludeLeft: true})
	if len(all) != 4 {
		t.Fatalf("archived students remain in master, got %d", len(all))
	}
	archive, _ := store.Rows(ctx, sheets.Master(sheets.StudentsArchive))
	arSchema := sheets.MustSchema(sheets.StudentsArchive)
	if len(archive) != 1 || arSchema.Value(archive[0], "Reason") != "Transferred" || arSchema.Value(archive[0], "Phone") != "11111" {
		t.Fatalf("unexpected archive rows %v", archive)
	}
	if err := svc.Students.Archive(ctx, "A1", ""); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("second archive should fail, got %v", err)
	}
	if _, err := svc.Students.Get(ctx, "ZZ"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEmployeeSequentialIDs(t *testing.T) {
	svc, store := newTestServices(t, Options{})
	ctx := context.Background()
	appendRaw(t, store, sheets.Master(sheets.Employees), sheets.Row{"EMP-0007", "Legacy", "Clerk"})

	emps := seedEmployees(t, svc, "Anita", "Bala")
	if emps[0].EmployeeID != "EMP-0008" || emps[1].EmployeeID != "EMP-0009" {
		t.Fatalf("unexpected ids %s %s", emps[0].EmployeeID, emps[1].EmployeeID)
	}
	if err := svc.Employees.Archive(ctx, "EMP-0008", "Retired"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	active, _ := svc.Employees.List(ctx, false)
	if len(active) != 2 {
		t.Fatalf("expected 2 active employees, got %d", len(active))
	}
	if _, err := svc.Employees.Update(ctx, core.Employee{EmployeeID: "EMP-0404", Name: "x", Role: "y"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUsers(t *testing.T) {
	svc, _ := newTestServices(t, Options{})
	ctx := context.Background()
	u, err := svc.Users.Create(ctx, NewUser{Username: " Priya ", Password: "secret1", Role: "teacher", LinkedID: "EMP-0001"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Username != "priya" || u.PasswordHash == "secret1" {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := svc.Users.Create(ctx, NewUser{Username: "priya", Password: "secret2", Role: "admin"}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("duplicate username should fail, got %v", err)
	}
	if _, err := svc.Users.Create(ctx, NewUser{Username: "x", Password: "secret2", Role: "janitor"}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("unknown role should fail, got %v", err)
	}

	got, err := svc.Users.Login(ctx, "PRIYA", "secret1")
	if err != nil || got.Role != core.RoleTeacher || got.LinkedID != "EMP-0001" {
		t.Fatalf("Login: %+v err=%v", got, err)
	}
	if _, err := svc.Users.Login(ctx, "priya", "wrong"); !errors.Is(err, core.ErrBadLogin) {
		t.Fatalf("expected ErrBadLogin, got %v", err)
	}
	if _, err := svc.Users.Login(ctx, "nobody", "secret1"); !errors.Is(err, core.ErrBadLogin) {
		t.Fatalf("expected ErrBadLogin, got %v", err)
	}
	if err := svc.Users.Delete(ctx, "priya"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	users, _ := svc.Users.List(ctx)
	if len(users) != 0 {
		t.Fatalf("expected no users, got %d", len(users))
	}
}

func TestExamsAndResults(t *testing.T) {
	svc, _ := newTestServices(t, Options{})
	ctx := context.Background()
	exam, err := svc.Exams.CreateExam(ctx, core.Exam{
		Name: "Term 1", Class: "5", Date: "2024-07-01",
		Subjects: []core.ExamSubject{{Name: "Maths", MaxMarks: 50}, {Name: "English", MaxMarks: 50}},
	})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}

	if err := svc.Exams.SaveMarks(ctx, exam.ExamID, "A1", []MarkEntry{{Subject: "Maths", Marks: 40}, {Subject: "English", Marks: 30}}); err != nil {
		t.Fatalf("SaveMarks: %v", err)
	}
	// Correcting one subject overwrites it.
	if err := svc.Exams.SaveMarks(ctx, exam.ExamID, "A1", []MarkEntry{{Subject: "English", Marks: 35}}); err != nil {
		t.Fatalf("SaveMarks: %v", err)
	}
	if err := svc.Exams.SaveMarks(ctx, exam.ExamID, "A1", []MarkEntry{{Subject: "Maths", Marks: 60}}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("marks above max should fail, got %v", err)
	}
	if err := svc.Exams.SaveMarks(ctx, exam.ExamID, "A1", []MarkEntry{{Subject: "Art", Marks: 1}}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("unknown subject should fail, got %v", err)
	}
	if err := svc.Exams.SaveMarks(ctx, "EXM-missing", "A1", []MarkEntry{{Subject: "Maths", Marks: 1}}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown exam should be not found, got %v", err)
	}

	res, err := svc.Exams.StudentResults(ctx, "A1")
	if err != nil {
		t.Fatalf("StudentResults: %v", err)
	}
	if len(res) != 1 || res[0].Total != 75 || res[0].MaxTotal != 100 || res[0].Percentage != 75 {
		t.Fatalf("unexpected results %+v", res)
	}

	exams, _ := svc.Exams.ListExams(ctx, "5")
	if len(exams) != 1 || len(exams[0].Subjects) != 2 {
		t.Fatalf("unexpected exams %+v", exams)
	}
	if err := svc.Exams.DeleteExam(ctx, exam.ExamID); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
}

func TestScheduleSaveOverwritesSlot(t *testing.T) {
	svc, _ := newTestServices(t, Options{})
	ctx := context.Background()
	first, err := svc.Schedule.Save(ctx, core.ScheduleEntry{Day: "Monday", TimeSlot: "09:00", Class: "5", Section: "B", Subject: "Maths", EmployeeID: "EMP-0001"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := svc.Schedule.Save(ctx, core.ScheduleEntry{Day: "Monday", TimeSlot: "09:00", Class: "5", Section: "B", Subject: "Science", EmployeeID: "EMP-0002"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first.EntryID != second.EntryID {
		t.Fatalf("same slot should keep its id")
	}
	if _, err := svc.Schedule.Save(ctx, core.ScheduleEntry{Day: "Monday", TimeSlot: "10:00", Class: "5", Section: "B", Subject: "Art", EmployeeID: "EMP-0002"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	list, _ := svc.Schedule.List(ctx, "5", "B", "")
	if len(list) != 2 || list[0].Subject != "Science" {
		t.Fatalf("unexpected schedule %+v", list)
	}
	mine, _ := svc.Schedule.List(ctx, "", "", "EMP-0001")
	if len(mine) != 0 {
		t.Fatalf("EMP-0001 lost the slot, got %+v", mine)
	}
	if err := svc.Schedule.Delete(ctx, first.EntryID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestHomeworkAndEvents(t *testing.T) {
	svc, _ := newTestServices(t, Options{})
	ctx := context.Background()
	if _, err := svc.Homework.Add(ctx, core.Homework{Class: "5", Subject: "Maths", Title: "Fractions", DueDate: "2024-06-20"}); err != nil {
		t.Fatalf("Add homework: %v", err)
	}
	if _, err := svc.Homework.Add(ctx, core.Homework{Class: "5", Section: "A", Subject: "Art", Title: "Draw"}); err != nil {
		t.Fatalf("Add homework: %v", err)
	}
	hw, _ := svc.Homework.List(ctx, "5", "B")
	if len(hw) != 1 || hw[0].Title != "Fractions" {
		t.Fatalf("unexpected homework %+v", hw)
	}
	if _, err := svc.Homework.Add(ctx, core.Homework{Class: "5"}); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	for _, d := range []string{"2024-06-01", "2024-06-15", "2024-07-01"} {
		if _, err := svc.Events.Add(ctx, core.Event{Title: "E " + d, Date: d}); err != nil {
			t.Fatalf("Add event: %v", err)
		}
	}
	upcoming, _ := svc.Events.List(ctx, true)
	if len(upcoming) != 2 || upcoming[0].Date != "2024-06-15" {
		t.Fatalf("unexpected upcoming events %+v", upcoming)
	}
	if err := svc.Events.Delete(ctx, "EVT-none"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDashboardStats(t *testing.T) {
	svc, _ := newTestServices(t, Options{})
	ctx := context.Background()
	seedStudents(t, svc, classFive...)
	seedEmployees(t, svc, "Anita")
	entries := []AttendanceEntry{{AdmissionNo: "A1", Status: core.Present}, {AdmissionNo: "A2", Status: core.Absent}}
	if err := svc.Attendance.SubmitDay(ctx, "5", "B", "2024-06-15", entries, "t"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Attendance.SubmitDay(ctx, "6", "A", "2024-06-15", []AttendanceEntry{{AdmissionNo: "C1", Status: core.Present}}, "t"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Fees.RecordPayment(ctx, PaymentRequest{AdmissionNo: "A1", Amount: money(t, "500")}); err != nil {
		t.Fatalf("pay: %v", err)
	}

	stats, err := svc.Dashboard.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ActiveStudents != 4 || stats.ActiveEmployees != 1 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if stats.PresentToday != 2 || stats.AbsentToday != 1 || stats.AttendancePercentage != 67 {
		t.Fatalf("unexpected attendance %+v", stats)
	}
	if stats.MonthlyCollection.Cents != 50000 {
		t.Fatalf("unexpected collection %s", stats.MonthlyCollection)
	}
}
