package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar date format used in every log row.
const DateLayout = "2006-01-02"

const (
	Present AttendanceStatus = "P"
	Absent  AttendanceStatus = "A"
)

const (
	StaffPresent StaffStatus = "Present"
	StaffAbsent  StaffStatus = "Absent"
	StaffLate    StaffStatus = "Late"
	StaffHalfDay StaffStatus = "Half Day"
)

const (
	StatusActive = "Active"
	StatusLeft   = "Left"
)

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
)

type (
	// AttendanceStatus is the single-letter code stored in the student log.
	AttendanceStatus string

	// StaffStatus is stored verbatim in the staff log.
	StaffStatus string

	Role string

	Date struct {
		time.Time
	}

	Student struct {
		AdmissionNo   string `json:"admissionNo"`
		RollNo        string `json:"rollNo"`
		Name          string `json:"name"`
		Class         string `json:"class"`
		Section       string `json:"section"`
		Status        string `json:"status"`
		FatherName    string `json:"fatherName"`
		MotherName    string `json:"motherName"`
		Phone         string `json:"phone"`
		AltPhone      string `json:"altPhone"`
		GuardianEmail string `json:"guardianEmail"`
		FeesTotal     Money  `json:"feesTotal"`
		PhotoURL      string `json:"photoUrl"`
		CreatedAt     string `json:"createdAt"`
	}

	Employee struct {
		EmployeeID string `json:"employeeId"`
		Name       string `json:"name"`
		Role       string `json:"role"`
		Department string `json:"department"`
		Phone      string `json:"phone"`
		Email      string `json:"email"`
		Address    string `json:"address"`
		JoinDate   string `json:"joinDate"`
		Salary     Money  `json:"salary"`
		BankName   string `json:"bankName"`
		AccountNo  string `json:"accountNo"`
		IFSC       string `json:"ifsc"`
		Status     string `json:"status"`
		PhotoURL   string `json:"photoUrl"`
	}

	FeePayment struct {
		ReceiptNo   string `json:"receiptNo"`
		AdmissionNo string `json:"admissionNo"`
		Amount      Money  `json:"amount"`
		Date        string `json:"date"`
		Mode        string `json:"mode"`
		Remarks     string `json:"remarks"`
		RecordedAt  string `json:"recordedAt"`
	}

	Expense struct {
		ReceiptNo   string `json:"receiptNo"`
		Category    string `json:"category"`
		Amount      Money  `json:"amount"`
		Date        string `json:"date"`
		Mode        string `json:"mode"`
		EmployeeID  string `json:"employeeId"`
		Description string `json:"description"`
		RecordedAt  string `json:"recordedAt"`
	}

	Holiday struct {
		HolidayID  string `json:"holidayId"`
		Date       string `json:"date"`
		EmployeeID string `json:"employeeId"`
		Reason     string `json:"reason"`
	}

	ExamSubject struct {
		Name     string `json:"name"`
		MaxMarks int    `json:"maxMarks"`
	}

	Exam struct {
		ExamID   string        `json:"examId"`
		Name     string        `json:"name"`
		Class    string        `json:"class"`
		Date     string        `json:"date"`
		Subjects []ExamSubject `json:"subjects"`
	}

	Result struct {
		ExamID      string  `json:"examId"`
		AdmissionNo string  `json:"admissionNo"`
		Subject     string  `json:"subject"`
		Marks       float64 `json:"marks"`
		MaxMarks    float64 `json:"maxMarks"`
	}

	ScheduleEntry struct {
		EntryID    string `json:"entryId"`
		Day        string `json:"day"`
		TimeSlot   string `json:"timeSlot"`
		Class      string `json:"class"`
		Section    string `json:"section"`
		Subject    string `json:"subject"`
		EmployeeID string `json:"employeeId"`
	}

	Homework struct {
		HomeworkID string `json:"homeworkId"`
		Class      string `json:"class"`
		Section    string `json:"section"`
		Subject    string `json:"subject"`
		Title      string `json:"title"`
		Details    string `json:"details"`
		DueDate    string `json:"dueDate"`
		AssignedBy string `json:"assignedBy"`
		CreatedAt  string `json:"createdAt"`
	}

	Event struct {
		EventID     string `json:"eventId"`
		Title       string `json:"title"`
		Date        string `json:"date"`
		Description string `json:"description"`
		Audience    string `json:"audience"`
	}

	User struct {
		Username     string `json:"username"`
		PasswordHash string `json:"-"`
		Role         Role   `json:"role"`
		LinkedID     string `json:"linkedId"`
		DisplayName  string `json:"displayName"`
		CreatedAt    string `json:"createdAt"`
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidStatus = errors.New("invalid status")
)

// ParseDate accepts only the canonical YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(DateLayout) {
		return Date{}, ErrInvalidDate
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// IsCanonicalDate reports whether s is already a canonical date string.
func IsCanonicalDate(s string) bool {
	d, err := ParseDate(s)
	return err == nil && d.String() == s
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// ParseAttendanceStatus accepts both the stored code and the display label.
func ParseAttendanceStatus(s string) (AttendanceStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p", "present":
		return Present, nil
	case "a", "absent":
		return Absent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Label returns the display form used in responses.
func (s AttendanceStatus) Label() string {
	switch s {
	case Present:
		return "Present"
	case Absent:
		return "Absent"
	}
	return ""
}

func ParseStaffStatus(s string) (StaffStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present", "p":
		return StaffPresent, nil
	case "absent", "a":
		return StaffAbsent, nil
	case "late", "l":
		return StaffLate, nil
	case "half day", "halfday", "half-day", "hd":
		return StaffHalfDay, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Weight is the credit a status contributes to the staff percentage.
func (s StaffStatus) Weight() float64 {
	switch s {
	case StaffPresent, StaffLate:
		return 1
	case StaffHalfDay:
		return 0.5
	}
	return 0
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

func (s Student) Validate() error {
	var missing []string
	if strings.TrimSpace(s.AdmissionNo) == "" {
		missing = append(missing, "admissionNo")
	}
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(s.Class) == "" {
		missing = append(missing, "class")
	}
	if strings.TrimSpace(s.Section) == "" {
		missing = append(missing, "section")
	}
	if len(missing) > 0 {
		return NewValidationError(missing...)
	}
	return nil
}

func (e Employee) Validate() error {
	var missing []string
	if strings.TrimSpace(e.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(e.Role) == "" {
		missing = append(missing, "role")
	}
	if len(missing) > 0 {
		return NewValidationError(missing...)
	}
	if e.Salary.Cents < 0 {
		return fmt.Errorf("%w: salary", ErrInvalidAmount)
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Category) == "" {
		return NewValidationError("category")
	}
	if e.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if _, err := ParseDate(e.Date); err != nil {
		return err
	}
	if len(e.Description) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrValidation)
	}
	return nil
}

func (e Exam) Validate() error {
	var missing []string
	if strings.TrimSpace(e.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(e.Class) == "" {
		missing = append(missing, "class")
	}
	if len(e.Subjects) == 0 {
		missing = append(missing, "subjects")
	}
	if len(missing) > 0 {
		return NewValidationError(missing...)
	}
	for _, s := range e.Subjects {
		if strings.TrimSpace(s.Name) == "" || s.MaxMarks <= 0 {
			return fmt.Errorf("%w: subject %q needs a name and positive max marks", ErrValidation, s.Name)
		}
	}
	return nil
}

func (r Result) Validate() error {
	if r.Marks < 0 || r.MaxMarks <= 0 || r.Marks > r.MaxMarks {
		return fmt.Errorf("%w: marks %.1f out of %.1f for %s", ErrValidation, r.Marks, r.MaxMarks, r.Subject)
	}
	return nil
}

func (s ScheduleEntry) Validate() error {
	var missing []string
	for _, f := range [][2]string{{"day", s.Day}, {"timeSlot", s.TimeSlot}, {"class", s.Class}, {"subject", s.Subject}} {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return NewValidationError(missing...)
	}
	return nil
}

// FormatSubjects encodes exam subjects as name:max pairs separated by semicolons.
func FormatSubjects(subjects []ExamSubject) string {
	parts := make([]string, 0, len(subjects))
	for _, s := range subjects {
		parts = append(parts, fmt.Sprintf("%s:%d", s.Name, s.MaxMarks))
	}
	return strings.Join(parts, ";")
}

// ParseSubjects decodes the FormatSubjects encoding, skipping malformed pairs.
func ParseSubjects(s string) []ExamSubject {
	var out []ExamSubject
	for _, part := range strings.Split(s, ";") {
		name, max, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || name == "" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(max, "%d", &n); err != nil {
			continue
		}
		out = append(out, ExamSubject{Name: name, MaxMarks: n})
	}
	return out
}

// AbsenteeNotice is published for every student marked absent when guardians are notified.
type AbsenteeNotice struct {
	AdmissionNo   string `json:"admissionNo"`
	StudentName   string `json:"studentName"`
	Class         string `json:"class"`
	Section       string `json:"section"`
	Date          string `json:"date"`
	GuardianName  string `json:"guardianName"`
	Phone         string `json:"phone"`
	GuardianEmail string `json:"guardianEmail"`
	School        string `json:"school"`
}
