package services

import (
	"strconv"

	"scuola/internal/core"
	"scuola/internal/sheets"
)

var (
	studentSchema  = sheets.MustSchema(sheets.Students)
	employeeSchema = sheets.MustSchema(sheets.Employees)
	attSchema      = sheets.MustSchema(sheets.Attendance)
	lockSchema     = sheets.MustSchema(sheets.AttendanceLocks)
	staffSchema    = sheets.MustSchema(sheets.StaffAttendance)
	holidaySchema  = sheets.MustSchema(sheets.Holidays)
	feeSchema      = sheets.MustSchema(sheets.Fees)
	expenseSchema  = sheets.MustSchema(sheets.Expenses)
	examSchema     = sheets.MustSchema(sheets.Exams)
	resultSchema   = sheets.MustSchema(sheets.Results)
	scheduleSchema = sheets.MustSchema(sheets.Schedule)
	homeworkSchema = sheets.MustSchema(sheets.Homework)
	eventSchema    = sheets.MustSchema(sheets.Events)
	userSchema     = sheets.MustSchema(sheets.Users)
)

func studentFromRow(r sheets.Row) core.Student {
	v := func(c string) string { return studentSchema.Value(r, c) }
	return core.Student{
		AdmissionNo:   v("AdmissionNo"),
		RollNo:        v("RollNo"),
		Name:          v("Name"),
		Class:         v("Class"),
		Section:       v("Section"),
		Status:        v("Status"),
		FatherName:    v("FatherName"),
		MotherName:    v("MotherName"),
		Phone:         v("Phone"),
		AltPhone:      v("AltPhone"),
		GuardianEmail: v("GuardianEmail"),
		FeesTotal:     core.MustMoney(v("FeesTotal")),
		PhotoURL:      v("PhotoURL"),
		CreatedAt:     v("CreatedAt"),
	}
}

func studentCells(s core.Student) map[string]string {
	return map[string]string{
		"AdmissionNo":   s.AdmissionNo,
		"RollNo":        s.RollNo,
		"Name":          s.Name,
		"Class":         s.Class,
		"Section":       s.Section,
		"Status":        s.Status,
		"FatherName":    s.FatherName,
		"MotherName":    s.MotherName,
		"Phone":         s.Phone,
		"AltPhone":      s.AltPhone,
		"GuardianEmail": s.GuardianEmail,
		"FeesTotal":     s.FeesTotal.String(),
		"PhotoURL":      s.PhotoURL,
		"CreatedAt":     s.CreatedAt,
	}
}

func employeeFromRow(r sheets.Row) core.Employee {
	v := func(c string) string { return employeeSchema.Value(r, c) }
	return core.Employee{
		EmployeeID: v("EmployeeID"),
		Name:       v("Name"),
		Role:       v("Role"),
		Department: v("Department"),
		Phone:      v("Phone"),
		Email:      v("Email"),
		Address:    v("Address"),
		JoinDate:   v("JoinDate"),
		Salary:     core.MustMoney(v("Salary")),
		BankName:   v("BankName"),
		AccountNo:  v("AccountNo"),
		IFSC:       v("IFSC"),
		Status:     v("Status"),
		PhotoURL:   v("PhotoURL"),
	}
}

func employeeCells(e core.Employee) map[string]string {
	return map[string]string{
		"EmployeeID": e.EmployeeID,
		"Name":       e.Name,
		"Role":       e.Role,
		"Department": e.Department,
		"Phone":      e.Phone,
		"Email":      e.Email,
		"Address":    e.Address,
		"JoinDate":   e.JoinDate,
		"Salary":     e.Salary.String(),
		"BankName":   e.BankName,
		"AccountNo":  e.AccountNo,
		"IFSC":       e.IFSC,
		"Status":     e.Status,
		"PhotoURL":   e.PhotoURL,
	}
}

func feeFromRow(r sheets.Row) core.FeePayment {
	v := func(c string) string { return feeSchema.Value(r, c) }
	return core.FeePayment{
		ReceiptNo:   v("ReceiptNo"),
		AdmissionNo: v("AdmissionNo"),
		Amount:      core.MustMoney(v("Amount")),
		Date:        v("Date"),
		Mode:        v("Mode"),
		Remarks:     v("Remarks"),
		RecordedAt:  v("RecordedAt"),
	}
}

func feeRow(p core.FeePayment) sheets.Row {
	return feeSchema.NewRow(map[string]string{
		"ReceiptNo":   p.ReceiptNo,
		"AdmissionNo": p.AdmissionNo,
		"Amount":      p.Amount.String(),
		"Date":        p.Date,
		"Mode":        p.Mode,
		"Remarks":     p.Remarks,
		"RecordedAt":  p.RecordedAt,
	})
}

func expenseFromRow(r sheets.Row) core.Expense {
	v := func(c string) string { return expenseSchema.Value(r, c) }
	return core.Expense{
		ReceiptNo:   v("ReceiptNo"),
		Category:    v("Category"),
		Amount:      core.MustMoney(v("Amount")),
		Date:        v("Date"),
		Mode:        v("Mode"),
		EmployeeID:  v("EmployeeID"),
		Description: v("Description"),
		RecordedAt:  v("RecordedAt"),
	}
}

func expenseRow(e core.Expense) sheets.Row {
	return expenseSchema.NewRow(map[string]string{
		"ReceiptNo":   e.ReceiptNo,
		"Category":    e.Category,
		"Amount":      e.Amount.String(),
		"Date":        e.Date,
		"Mode":        e.Mode,
		"EmployeeID":  e.EmployeeID,
		"Description": e.Description,
		"RecordedAt":  e.RecordedAt,
	})
}

func holidayFromRow(r sheets.Row) core.Holiday {
	v := func(c string) string { return holidaySchema.Value(r, c) }
	return core.Holiday{HolidayID: v("HolidayID"), Date: v("Date"), EmployeeID: v("EmployeeID"), Reason: v("Reason")}
}

func examFromRow(r sheets.Row) core.Exam {
	v := func(c string) string { return examSchema.Value(r, c) }
	return core.Exam{
		ExamID:   v("ExamID"),
		Name:     v("Name"),
		Class:    v("Class"),
		Date:     v("Date"),
		Subjects: core.ParseSubjects(v("Subjects")),
	}
}

func resultFromRow(r sheets.Row) core.Result {
	v := func(c string) string { return resultSchema.Value(r, c) }
	return core.Result{
		ExamID:      v("ExamID"),
		AdmissionNo: v("AdmissionNo"),
		Subject:     v("Subject"),
		Marks:       parseFloat(v("Marks")),
		MaxMarks:    parseFloat(v("MaxMarks")),
	}
}

func resultRow(r core.Result) sheets.Row {
	return resultSchema.NewRow(map[string]string{
		"ExamID":      r.ExamID,
		"AdmissionNo": r.AdmissionNo,
		"Subject":     r.Subject,
		"Marks":       formatFloat(r.Marks),
		"MaxMarks":    formatFloat(r.MaxMarks),
	})
}

func scheduleFromRow(r sheets.Row) core.ScheduleEntry {
	v := func(c string) string { return scheduleSchema.Value(r, c) }
	return core.ScheduleEntry{
		EntryID:    v("EntryID"),
		Day:        v("Day"),
		TimeSlot:   v("TimeSlot"),
		Class:      v("Class"),
		Section:    v("Section"),
		Subject:    v("Subject"),
		EmployeeID: v("EmployeeID"),
	}
}

func scheduleRow(e core.ScheduleEntry) sheets.Row {
	return scheduleSchema.NewRow(map[string]string{
		"EntryID":    e.EntryID,
		"Day":        e.Day,
		"TimeSlot":   e.TimeSlot,
		"Class":      e.Class,
		"Section":    e.Section,
		"Subject":    e.Subject,
		"EmployeeID": e.EmployeeID,
	})
}

func homeworkFromRow(r sheets.Row) core.Homework {
	v := func(c string) string { return homeworkSchema.Value(r, c) }
	return core.Homework{
		HomeworkID: v("HomeworkID"),
		Class:      v("Class"),
		Section:    v("Section"),
		Subject:    v("Subject"),
		Title:      v("Title"),
		Details:    v("Details"),
		DueDate:    v("DueDate"),
		AssignedBy: v("AssignedBy"),
		CreatedAt:  v("CreatedAt"),
	}
}

func eventFromRow(r sheets.Row) core.Event {
	v := func(c string) string { return eventSchema.Value(r, c) }
	return core.Event{EventID: v("EventID"), Title: v("Title"), Date: v("Date"), Description: v("Description"), Audience: v("Audience")}
}

func userFromRow(r sheets.Row) core.User {
	v := func(c string) string { return userSchema.Value(r, c) }
	return core.User{
		Username:     v("Username"),
		PasswordHash: v("PasswordHash"),
		Role:         core.Role(v("Role")),
		LinkedID:     v("LinkedID"),
		DisplayName:  v("DisplayName"),
		CreatedAt:    v("CreatedAt"),
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
