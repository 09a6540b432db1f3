package sheets

import "fmt"

// Table enumerates every table the store knows about.
type Table string

const (
	Students         Table = "STUDENTS"
	StudentsArchive  Table = "STUDENTS_ARCHIVE"
	Employees        Table = "EMPLOYEES"
	EmployeesArchive Table = "EMPLOYEES_ARCHIVE"
	Attendance       Table = "ATTENDANCE"
	AttendanceLocks  Table = "ATTENDANCE_LOCKS"
	StaffAttendance  Table = "STAFF_ATTENDANCE"
	Holidays         Table = "HOLIDAYS"
	Fees             Table = "FEES"
	Expenses         Table = "EXPENSES"
	Exams            Table = "EXAMS"
	Results          Table = "RESULTS"
	Schedule         Table = "SCHEDULE"
	Homework         Table = "HOMEWORK"
	Events           Table = "EVENTS"
	Users            Table = "USERS"
)

// Schema is the static header row of a table and its optional unique key column.
type Schema struct {
	Table   Table
	Headers []string
	Key     string
}

var studentHeaders = []string{
	"AdmissionNo", "RollNo", "Name", "Class", "Section", "Status", "FatherName", "MotherName",
	"Phone", "AltPhone", "GuardianEmail", "FeesTotal", "PhotoURL", "CreatedAt",
}

var employeeHeaders = []string{
	"EmployeeID", "Name", "Role", "Department", "Phone", "Email", "Address", "JoinDate",
	"Salary", "BankName", "AccountNo", "IFSC", "Status", "PhotoURL",
}

var schemas = map[Table]Schema{
	Students:         {Students, studentHeaders, "AdmissionNo"},
	StudentsArchive:  {StudentsArchive, append(append([]string{}, studentHeaders...), "ArchivedAt", "Reason"), ""},
	Employees:        {Employees, employeeHeaders, "EmployeeID"},
	EmployeesArchive: {EmployeesArchive, append(append([]string{}, employeeHeaders...), "ArchivedAt", "Reason"), ""},
	Attendance:       {Attendance, []string{"Date", "AdmissionNo", "Status", "MarkedBy", "MarkedAt"}, ""},
	AttendanceLocks:  {AttendanceLocks, []string{"Date", "LockedBy", "LockedAt"}, ""},
	StaffAttendance:  {StaffAttendance, []string{"Date", "EmployeeID", "Status", "Timestamp"}, ""},
	Holidays:         {Holidays, []string{"HolidayID", "Date", "EmployeeID", "Reason"}, "HolidayID"},
	Fees:             {Fees, []string{"ReceiptNo", "AdmissionNo", "Amount", "Date", "Mode", "Remarks", "RecordedAt"}, "ReceiptNo"},
	Expenses:         {Expenses, []string{"ReceiptNo", "Category", "Amount", "Date", "Mode", "EmployeeID", "Description", "RecordedAt"}, "ReceiptNo"},
	Exams:            {Exams, []string{"ExamID", "Name", "Class", "Date", "Subjects"}, "ExamID"},
	Results:          {Results, []string{"ExamID", "AdmissionNo", "Subject", "Marks", "MaxMarks"}, ""},
	Schedule:         {Schedule, []string{"EntryID", "Day", "TimeSlot", "Class", "Section", "Subject", "EmployeeID"}, "EntryID"},
	Homework:         {Homework, []string{"HomeworkID", "Class", "Section", "Subject", "Title", "Details", "DueDate", "AssignedBy", "CreatedAt"}, "HomeworkID"},
	Events:           {Events, []string{"EventID", "Title", "Date", "Description", "Audience"}, "EventID"},
	Users:            {Users, []string{"Username", "PasswordHash", "Role", "LinkedID", "DisplayName", "CreatedAt"}, "Username"},
}

// Tables returns every known table.
func Tables() []Table {
	return []Table{
		Students, StudentsArchive, Employees, EmployeesArchive, Attendance, AttendanceLocks,
		StaffAttendance, Holidays, Fees, Expenses, Exams, Results, Schedule, Homework, Events, Users,
	}
}

// SchemaFor returns the schema of t.
func SchemaFor(t Table) (Schema, error) {
	s, ok := schemas[t]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrUnknownTable, t)
	}
	return s, nil
}

// MustSchema is SchemaFor for tables known at compile time.
func MustSchema(t Table) Schema {
	s, err := SchemaFor(t)
	if err != nil {
		panic(err)
	}
	return s
}

// Col returns the index of a header, or -1.
func (s Schema) Col(name string) int {
	for i, h := range s.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// KeyCol returns the key column index, or -1 for unkeyed tables.
func (s Schema) KeyCol() int {
	if s.Key == "" {
		return -1
	}
	return s.Col(s.Key)
}

// Value reads a named cell from row.
func (s Schema) Value(row Row, col string) string {
	return row.Get(s.Col(col))
}

// NewRow builds a row from named cells. Unknown names are ignored.
func (s Schema) NewRow(cells map[string]string) Row {
	row := make(Row, len(s.Headers))
	for i, h := range s.Headers {
		row[i] = cells[h]
	}
	return row
}

// Normalize pads short rows to the header width and rejects wider ones.
func (s Schema) Normalize(row Row) (Row, error) {
	if len(row) > len(s.Headers) {
		return nil, fmt.Errorf("%w: %s has %d columns, got %d", ErrRowTooWide, s.Table, len(s.Headers), len(row))
	}
	out := make(Row, len(s.Headers))
	copy(out, row)
	return out, nil
}

// CheckKey fails with ErrDuplicateKey when row's key already exists in rows.
func (s Schema) CheckKey(rows []Row, row Row) error {
	k := s.KeyCol()
	if k < 0 {
		return nil
	}
	key := row.Get(k)
	if key == "" {
		return fmt.Errorf("%s: empty %s", s.Table, s.Key)
	}
	for _, r := range rows {
		if r.Get(k) == key {
			return fmt.Errorf("%w: %s %s=%s", ErrDuplicateKey, s.Table, s.Key, key)
		}
	}
	return nil
}
