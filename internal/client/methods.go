package client

import (
	"context"

	"scuola/internal/core"
	"scuola/internal/services"
)

type (
	ClassDay struct {
		Class   string `json:"class"`
		Section string `json:"section"`
		Date    string `json:"date"`
	}

	Mark struct {
		AdmissionNo string `json:"admissionNo"`
		Status      string `json:"status"`
	}

	StaffMark struct {
		EmployeeID string `json:"employeeId"`
		Status     string `json:"status"`
	}

	Payment struct {
		AdmissionNo string     `json:"admissionNo"`
		Amount      core.Money `json:"amount"`
		Mode        string     `json:"mode,omitempty"`
		Remarks     string     `json:"remarks,omitempty"`
		Date        string     `json:"date,omitempty"`
	}

	StudentQuery struct {
		Class       string `json:"class,omitempty"`
		Section     string `json:"section,omitempty"`
		IncludeLeft bool   `json:"includeLeft,omitempty"`
	}

	Credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	NewUser struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		Role        string `json:"role"`
		LinkedID    string `json:"linkedId,omitempty"`
		DisplayName string `json:"displayName,omitempty"`
	}

	Marks struct {
		Subject string  `json:"subject"`
		Marks   float64 `json:"marks"`
	}
)

type admission struct {
	AdmissionNo string `json:"admissionNo"`
}

type employee struct {
	EmployeeID string `json:"employeeId"`
}

// Attendance

func (c *Client) GetAttendanceData(ctx context.Context, day ClassDay) (services.AttendanceDay, error) {
	var out services.AttendanceDay
	_, err := c.Query(ctx, "getAttendanceData", day, &out)
	return out, err
}

// MarkAttendance returns the server's confirmation message.
func (c *Client) MarkAttendance(ctx context.Context, day ClassDay, marks []Mark, markedBy string) (string, error) {
	req := struct {
		ClassDay
		MarkedBy   string `json:"markedBy,omitempty"`
		Attendance []Mark `json:"attendance"`
	}{day, markedBy, marks}
	return c.Mutate(ctx, "markAttendance", req, nil)
}

func (c *Client) GetStudentAttendance(ctx context.Context, admissionNo string) (services.StudentHistory, error) {
	var out services.StudentHistory
	_, err := c.Query(ctx, "getStudentAttendance", admission{admissionNo}, &out)
	return out, err
}

// ExportAttendanceCSV returns the grid and the message; an empty grid is not an error.
func (c *Client) ExportAttendanceCSV(ctx context.Context, class, section string) (string, string, error) {
	var out string
	msg, err := c.Query(ctx, "exportAttendanceCSV", map[string]string{"class": class, "section": section}, &out)
	return out, msg, err
}

func (c *Client) NotifyAbsentees(ctx context.Context, day ClassDay) (services.NotifyResult, error) {
	var out services.NotifyResult
	_, err := c.Mutate(ctx, "notifyAbsentees", day, &out)
	return out, err
}

func (c *Client) GetStaffAttendanceData(ctx context.Context, date string) (services.StaffDay, error) {
	var out services.StaffDay
	_, err := c.Query(ctx, "getStaffAttendanceData", map[string]string{"date": date}, &out)
	return out, err
}

func (c *Client) SubmitStaffAttendance(ctx context.Context, date string, marks []StaffMark) (string, error) {
	req := struct {
		Date       string      `json:"date"`
		Attendance []StaffMark `json:"attendance"`
	}{date, marks}
	return c.Mutate(ctx, "submitStaffAttendance", req, nil)
}

func (c *Client) GetEmployeeAttendance(ctx context.Context, employeeID string) (services.EmployeeHistory, error) {
	var out services.EmployeeHistory
	_, err := c.Query(ctx, "getEmployeeAttendance", employee{employeeID}, &out)
	return out, err
}

func (c *Client) AddTeacherHoliday(ctx context.Context, h core.Holiday) (core.Holiday, error) {
	var out core.Holiday
	_, err := c.Mutate(ctx, "addTeacherHoliday", h, &out)
	return out, err
}

func (c *Client) GetTeacherHolidays(ctx context.Context, employeeID string) ([]core.Holiday, error) {
	var out []core.Holiday
	_, err := c.Query(ctx, "getTeacherHolidays", employee{employeeID}, &out)
	return out, err
}

func (c *Client) RemoveTeacherHoliday(ctx context.Context, holidayID string) error {
	_, err := c.Mutate(ctx, "removeTeacherHoliday", map[string]string{"holidayId": holidayID}, nil)
	return err
}

// Fees

func (c *Client) GetFeeDashboard(ctx context.Context) (services.FeeDashboard, error) {
	var out services.FeeDashboard
	_, err := c.Query(ctx, "getFeeDashboard", nil, &out)
	return out, err
}

// GetStudentFees uses the student's recorded total when totalFees is nil.
func (c *Client) GetStudentFees(ctx context.Context, admissionNo string, totalFees *core.Money) (services.FeeSummary, error) {
	req := struct {
		AdmissionNo string      `json:"admissionNo"`
		TotalFees   *core.Money `json:"totalFees,omitempty"`
	}{admissionNo, totalFees}
	var out services.FeeSummary
	_, err := c.Query(ctx, "getStudentFees", req, &out)
	return out, err
}

func (c *Client) CollectFee(ctx context.Context, p Payment) (core.FeePayment, error) {
	var out core.FeePayment
	_, err := c.Mutate(ctx, "collectFee", p, &out)
	return out, err
}

func (c *Client) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var out core.Expense
	_, err := c.Mutate(ctx, "addExpense", e, &out)
	return out, err
}

// GetExpenses lists a month's expenses; zero year and month list everything.
func (c *Client) GetExpenses(ctx context.Context, year, month int) ([]core.Expense, error) {
	req := struct {
		Year  int `json:"year,omitempty"`
		Month int `json:"month,omitempty"`
	}{year, month}
	var out []core.Expense
	_, err := c.Query(ctx, "getExpenses", req, &out)
	return out, err
}

func (c *Client) DeleteExpense(ctx context.Context, receiptNo string) error {
	_, err := c.Mutate(ctx, "deleteExpense", map[string]string{"receiptNo": receiptNo}, nil)
	return err
}

// Records

func (c *Client) AddStudent(ctx context.Context, s core.Student) (core.Student, error) {
	var out core.Student
	_, err := c.Mutate(ctx, "addStudent", s, &out)
	return out, err
}

func (c *Client) UpdateStudent(ctx context.Context, s core.Student) (core.Student, error) {
	var out core.Student
	_, err := c.Mutate(ctx, "updateStudent", s, &out)
	return out, err
}

func (c *Client) GetStudent(ctx context.Context, admissionNo string) (core.Student, error) {
	var out core.Student
	_, err := c.Query(ctx, "getStudent", admission{admissionNo}, &out)
	return out, err
}

func (c *Client) GetStudents(ctx context.Context, q StudentQuery) ([]core.Student, error) {
	var out []core.Student
	_, err := c.Query(ctx, "getStudents", q, &out)
	return out, err
}

func (c *Client) ArchiveStudent(ctx context.Context, admissionNo, reason string) error {
	req := map[string]string{"admissionNo": admissionNo, "reason": reason}
	_, err := c.Mutate(ctx, "archiveStudent", req, nil)
	return err
}

func (c *Client) AddEmployee(ctx context.Context, e core.Employee) (core.Employee, error) {
	var out core.Employee
	_, err := c.Mutate(ctx, "addEmployee", e, &out)
	return out, err
}

func (c *Client) UpdateEmployee(ctx context.Context, e core.Employee) (core.Employee, error) {
	var out core.Employee
	_, err := c.Mutate(ctx, "updateEmployee", e, &out)
	return out, err
}

func (c *Client) GetEmployees(ctx context.Context, includeLeft bool) ([]core.Employee, error) {
	var out []core.Employee
	_, err := c.Query(ctx, "getEmployees", map[string]bool{"includeLeft": includeLeft}, &out)
	return out, err
}

func (c *Client) ArchiveEmployee(ctx context.Context, employeeID, reason string) error {
	req := map[string]string{"employeeId": employeeID, "reason": reason}
	_, err := c.Mutate(ctx, "archiveEmployee", req, nil)
	return err
}

func (c *Client) CreateUser(ctx context.Context, u NewUser) (core.User, error) {
	var out core.User
	_, err := c.Mutate(ctx, "createUser", u, &out)
	return out, err
}

// Login never touches the cache: credentials must not end up in cache keys or values.
func (c *Client) Login(ctx context.Context, creds Credentials) (core.User, error) {
	var out core.User
	_, err := c.call(ctx, "login", creds, &out, modeUncached)
	return out, err
}

func (c *Client) GetUsers(ctx context.Context) ([]core.User, error) {
	var out []core.User
	_, err := c.Query(ctx, "getUsers", nil, &out)
	return out, err
}

func (c *Client) DeleteUser(ctx context.Context, username string) error {
	_, err := c.Mutate(ctx, "deleteUser", map[string]string{"username": username}, nil)
	return err
}

func (c *Client) GetDashboardStats(ctx context.Context) (services.DashboardStats, error) {
	var out services.DashboardStats
	_, err := c.Query(ctx, "getDashboardStats", nil, &out)
	return out, err
}

// Academics

func (c *Client) CreateExam(ctx context.Context, e core.Exam) (core.Exam, error) {
	var out core.Exam
	_, err := c.Mutate(ctx, "createExam", e, &out)
	return out, err
}

func (c *Client) GetExams(ctx context.Context, class string) ([]core.Exam, error) {
	var out []core.Exam
	_, err := c.Query(ctx, "getExams", map[string]string{"class": class}, &out)
	return out, err
}

func (c *Client) DeleteExam(ctx context.Context, examID string) error {
	_, err := c.Mutate(ctx, "deleteExam", map[string]string{"examId": examID}, nil)
	return err
}

func (c *Client) SaveMarks(ctx context.Context, examID, admissionNo string, marks []Marks) error {
	req := struct {
		ExamID      string  `json:"examId"`
		AdmissionNo string  `json:"admissionNo"`
		Marks       []Marks `json:"marks"`
	}{examID, admissionNo, marks}
	_, err := c.Mutate(ctx, "saveMarks", req, nil)
	return err
}

func (c *Client) GetStudentResults(ctx context.Context, admissionNo string) ([]core.ResultSummary, error) {
	var out []core.ResultSummary
	_, err := c.Query(ctx, "getStudentResults", admission{admissionNo}, &out)
	return out, err
}

func (c *Client) SaveSchedule(ctx context.Context, e core.ScheduleEntry) (core.ScheduleEntry, error) {
	var out core.ScheduleEntry
	_, err := c.Mutate(ctx, "saveSchedule", e, &out)
	return out, err
}

func (c *Client) GetSchedule(ctx context.Context, class, section, employeeID string) ([]core.ScheduleEntry, error) {
	req := map[string]string{"class": class, "section": section, "employeeId": employeeID}
	var out []core.ScheduleEntry
	_, err := c.Query(ctx, "getSchedule", req, &out)
	return out, err
}

func (c *Client) DeleteSchedule(ctx context.Context, entryID string) error {
	_, err := c.Mutate(ctx, "deleteSchedule", map[string]string{"entryId": entryID}, nil)
	return err
}

func (c *Client) AddHomework(ctx context.Context, h core.Homework) (core.Homework, error) {
	var out core.Homework
	_, err := c.Mutate(ctx, "addHomework", h, &out)
	return out, err
}

func (c *Client) GetHomework(ctx context.Context, class, section string) ([]core.Homework, error) {
	var out []core.Homework
	_, err := c.Query(ctx, "getHomework", map[string]string{"class": class, "section": section}, &out)
	return out, err
}

func (c *Client) DeleteHomework(ctx context.Context, homeworkID string) error {
	_, err := c.Mutate(ctx, "deleteHomework", map[string]string{"homeworkId": homeworkID}, nil)
	return err
}

func (c *Client) AddEvent(ctx context.Context, e core.Event) (core.Event, error) {
	var out core.Event
	_, err := c.Mutate(ctx, "addEvent", e, &out)
	return out, err
}

func (c *Client) GetEvents(ctx context.Context, upcoming bool) ([]core.Event, error) {
	var out []core.Event
	_, err := c.Query(ctx, "getEvents", map[string]bool{"upcoming": upcoming}, &out)
	return out, err
}

func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	_, err := c.Mutate(ctx, "deleteEvent", map[string]string{"eventId": eventID}, nil)
	return err
}

// Ping checks the server is reachable. It bypasses the cache.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, "ping", nil, nil, modeUncached)
	return err
}
