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

// recentHistoryLimit caps the history returned to clients.
const recentHistoryLimit = 30

// NoAttendanceDataMessage accompanies an empty CSV export.
const NoAttendanceDataMessage = "No data found for this class"

// AttendanceService keeps the per class-section student attendance log.
//
// The log holds one row per (date, student). A submission upserts each
// student's cell and then appends a lock row for the day.
type AttendanceService struct {
	base
	students     *StudentService
	rejectLocked bool
	notifier     AbsenteeNotifier
	school       string
}

type (
	RosterEntry struct {
		AdmissionNo string  `json:"admissionNo"`
		Name        string  `json:"name"`
		RollNo      string  `json:"rollNo"`
		PhotoURL    string  `json:"photoUrl"`
		Status      *string `json:"status"`
	}

	AttendanceDay struct {
		IsLocked bool          `json:"isLocked"`
		Students []RosterEntry `json:"students"`
	}

	AttendanceEntry struct {
		AdmissionNo string
		Status      core.AttendanceStatus
	}

	HistoryEntry struct {
		Date   string `json:"date"`
		Status string `json:"status"`
	}

	StudentHistory struct {
		PresentCount  int            `json:"presentCount"`
		AbsentCount   int            `json:"absentCount"`
		TotalDays     int            `json:"totalDays"`
		Percentage    int            `json:"percentage"`
		RecentHistory []HistoryEntry `json:"recentHistory"`
	}
)

func classRefs(class, section string) (sheets.Ref, sheets.Ref) {
	sheet := sheets.ClassSheet(class, section)
	return sheets.Ref{Table: sheets.Attendance, Sheet: sheet}, sheets.Ref{Table: sheets.AttendanceLocks, Sheet: sheet}
}

// validateClassDay trims the coordinates and canonicalizes date.
func validateClassDay(class, section, date string) (string, string, string, error) {
	class, section = strings.TrimSpace(class), strings.TrimSpace(section)
	if err := required("class", class, "section", section, "date", date); err != nil {
		return "", "", "", err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return "", "", "", err
	}
	return class, section, d.String(), nil
}

// GetDay returns the roster of a class-section with each student's mark for date.
func (s *AttendanceService) GetDay(ctx context.Context, class, section, date string) (AttendanceDay, error) {
	class, section, date, err := validateClassDay(class, section, date)
	if err != nil {
		return AttendanceDay{}, err
	}
	roster, err := s.students.Roster(ctx, class, section)
	if err != nil {
		return AttendanceDay{}, err
	}
	logRef, lockRef := classRefs(class, section)
	rows, err := s.rows(ctx, logRef)
	if err != nil {
		return AttendanceDay{}, err
	}
	marks := make(map[string]core.AttendanceStatus)
	for _, r := range rows {
		if attSchema.Value(r, "Date") != date {
			continue
		}
		if st, ok := storedStatus(attSchema.Value(r, "Status")); ok {
			marks[attSchema.Value(r, "AdmissionNo")] = st
		}
	}
	locked, err := s.isLocked(ctx, lockRef, date)
	if err != nil {
		return AttendanceDay{}, err
	}

	day := AttendanceDay{IsLocked: locked, Students: make([]RosterEntry, 0, len(roster))}
	for _, st := range roster {
		e := RosterEntry{AdmissionNo: st.AdmissionNo, Name: st.Name, RollNo: st.RollNo, PhotoURL: st.PhotoURL}
		if m, ok := marks[st.AdmissionNo]; ok {
			label := m.Label()
			e.Status = &label
		}
		day.Students = append(day.Students, e)
	}
	return day, nil
}

func (s *AttendanceService) isLocked(ctx context.Context, ref sheets.Ref, date string) (bool, error) {
	rows, err := s.rows(ctx, ref)
	if err != nil {
		return false, err
	}
	return findRow(rows, lockSchema, "Date", date) >= 0, nil
}

// SubmitDay records entries for one class day and locks it.
// Re-submitting an already locked day overwrites the cells and appends another
// lock row, unless the service rejects locked days.
func (s *AttendanceService) SubmitDay(ctx context.Context, class, section, date string, entries []AttendanceEntry, markedBy string) error {
	class, section, date, err := validateClassDay(class, section, date)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return core.NewValidationError("attendance")
	}
	entries = append([]AttendanceEntry(nil), entries...)
	for i := range entries {
		entries[i].AdmissionNo = strings.TrimSpace(entries[i].AdmissionNo)
	}
	for _, e := range entries {
		if e.AdmissionNo == "" {
			return core.NewValidationError("admissionNo")
		}
		if e.Status.Label() == "" {
			return fmt.Errorf("%w: %q for %s", core.ErrInvalidStatus, e.Status, e.AdmissionNo)
		}
	}
	entries = lastMarkPerStudent(entries)
	logRef, lockRef := classRefs(class, section)

	err = s.locker.WithLock(ctx, lock.AttendanceKey(class, section, date), func() error {
		if s.rejectLocked {
			locked, err := s.isLocked(ctx, lockRef, date)
			if err != nil {
				return err
			}
			if locked {
				return fmt.Errorf("%w: %s %s-%s", core.ErrDayLocked, date, class, section)
			}
		}
		if err := s.store.Ensure(ctx, logRef); err != nil {
			return fmt.Errorf("ensure %s: %w", logRef, err)
		}
		rows, err := s.rows(ctx, logRef)
		if err != nil {
			return err
		}
		index := make(map[string]int)
		for i, r := range rows {
			if attSchema.Value(r, "Date") == date {
				index[attSchema.Value(r, "AdmissionNo")] = i
			}
		}
		now := s.timestamp()
		for _, e := range entries {
			row := attSchema.NewRow(map[string]string{
				"Date":        date,
				"AdmissionNo": e.AdmissionNo,
				"Status":      string(e.Status),
				"MarkedBy":    markedBy,
				"MarkedAt":    now,
			})
			if i, ok := index[e.AdmissionNo]; ok {
				if err := s.store.Update(ctx, logRef, i, row); err != nil {
					return fmt.Errorf("update mark %s: %w", e.AdmissionNo, err)
				}
				continue
			}
			if err := s.store.Append(ctx, logRef, row); err != nil {
				return fmt.Errorf("append mark %s: %w", e.AdmissionNo, err)
			}
		}
		return s.append(ctx, lockRef, lockSchema.NewRow(map[string]string{
			"Date": date, "LockedBy": markedBy, "LockedAt": now,
		}))
	})
	if err != nil {
		return err
	}
	s.events().LogAttendanceSubmitted(ctx, class, section, date, len(entries))
	return nil
}

// lastMarkPerStudent keeps one entry per student, the last one submitted, in
// the position of the student's first entry. It reuses the backing array.
func lastMarkPerStudent(entries []AttendanceEntry) []AttendanceEntry {
	pos := make(map[string]int, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if i, ok := pos[e.AdmissionNo]; ok {
			out[i] = e
			continue
		}
		pos[e.AdmissionNo] = len(out)
		out = append(out, e)
	}
	return out
}

// storedStatus reads a log cell. Only the exact codes count; anything else
// leaves the student unmarked.
func storedStatus(cell string) (core.AttendanceStatus, bool) {
	switch st := core.AttendanceStatus(cell); st {
	case core.Present, core.Absent:
		return st, true
	}
	return "", false
}

type mark struct {
	date   string
	status core.AttendanceStatus
}

// marksFor returns the canonical-dated marks of one student in date order.
// Rows with any other date form are skipped.
func marksFor(rows []sheets.Row, admissionNo string) []mark {
	var out []mark
	for _, r := range rows {
		if attSchema.Value(r, "AdmissionNo") != admissionNo {
			continue
		}
		date := attSchema.Value(r, "Date")
		if !core.IsCanonicalDate(date) {
			continue
		}
		st, ok := storedStatus(attSchema.Value(r, "Status"))
		if !ok {
			continue
		}
		out = append(out, mark{date: date, status: st})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].date < out[j].date })
	return out
}

// StudentHistory summarizes a student's log in their current class-section.
func (s *AttendanceService) StudentHistory(ctx context.Context, admissionNo string) (StudentHistory, error) {
	if err := required("admissionNo", admissionNo); err != nil {
		return StudentHistory{}, err
	}
	st, err := s.students.Get(ctx, admissionNo)
	if err != nil {
		return StudentHistory{}, err
	}
	logRef, _ := classRefs(st.Class, st.Section)
	rows, err := s.rows(ctx, logRef)
	if err != nil {
		return StudentHistory{}, err
	}
	marks := marksFor(rows, st.AdmissionNo)

	h := StudentHistory{RecentHistory: []HistoryEntry{}}
	for _, m := range marks {
		if m.status == core.Present {
			h.PresentCount++
		} else {
			h.AbsentCount++
		}
	}
	h.TotalDays = h.PresentCount + h.AbsentCount
	h.Percentage = core.StudentPercentage(h.PresentCount, h.AbsentCount)
	for i := len(marks) - 1; i >= 0 && len(h.RecentHistory) < recentHistoryLimit; i-- {
		h.RecentHistory = append(h.RecentHistory, HistoryEntry{Date: marks[i].date, Status: marks[i].status.Label()})
	}
	return h, nil
}

// ExportCSV renders the class grid: one line per student, one column per
// marked date. Cells are joined with bare commas and not quoted.
// An empty string means the class has no attendance rows.
func (s *AttendanceService) ExportCSV(ctx context.Context, class, section string) (string, error) {
	if err := required("class", class, "section", section); err != nil {
		return "", err
	}
	logRef, _ := classRefs(class, section)
	rows, err := s.rows(ctx, logRef)
	if err != nil {
		return "", err
	}
	grid := make(map[string]map[string]string)
	dateSet := make(map[string]struct{})
	var seen []string
	for _, r := range rows {
		date := attSchema.Value(r, "Date")
		if !core.IsCanonicalDate(date) {
			continue
		}
		adm := attSchema.Value(r, "AdmissionNo")
		if _, ok := grid[adm]; !ok {
			grid[adm] = make(map[string]string)
			seen = append(seen, adm)
		}
		grid[adm][date] = attSchema.Value(r, "Status")
		dateSet[date] = struct{}{}
	}
	if len(grid) == 0 {
		return "", nil
	}
	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	students, err := s.students.List(ctx, StudentFilter{Class: class, Section: section, IncludeLeft: true})
	if err != nil {
		return "", err
	}
	known := make(map[string]core.Student, len(students))
	var order []string
	for _, st := range students {
		known[st.AdmissionNo] = st
		if _, ok := grid[st.AdmissionNo]; ok {
			order = append(order, st.AdmissionNo)
		}
	}
	for _, adm := range seen {
		if _, ok := known[adm]; !ok {
			order = append(order, adm)
		}
	}

	var b strings.Builder
	b.WriteString("Roll No,Name,Admission No")
	for _, d := range dates {
		b.WriteString("," + d)
	}
	for _, adm := range order {
		st := known[adm]
		b.WriteString("\n" + st.RollNo + "," + st.Name + "," + adm)
		for _, d := range dates {
			b.WriteString("," + grid[adm][d])
		}
	}
	return b.String(), nil
}

// Absentees lists the students marked absent on date, with guardian contacts.
func (s *AttendanceService) Absentees(ctx context.Context, class, section, date string) ([]core.AbsenteeNotice, error) {
	class, section, date, err := validateClassDay(class, section, date)
	if err != nil {
		return nil, err
	}
	logRef, _ := classRefs(class, section)
	rows, err := s.rows(ctx, logRef)
	if err != nil {
		return nil, err
	}
	students, err := s.students.List(ctx, StudentFilter{Class: class, Section: section})
	if err != nil {
		return nil, err
	}
	absent := make(map[string]bool)
	for _, r := range rows {
		if attSchema.Value(r, "Date") == date && attSchema.Value(r, "Status") == string(core.Absent) {
			absent[attSchema.Value(r, "AdmissionNo")] = true
		}
	}
	var out []core.AbsenteeNotice
	for _, st := range students {
		if !absent[st.AdmissionNo] {
			continue
		}
		guardian := st.FatherName
		if guardian == "" {
			guardian = st.MotherName
		}
		out = append(out, core.AbsenteeNotice{
			AdmissionNo:   st.AdmissionNo,
			StudentName:   st.Name,
			Class:         class,
			Section:       section,
			Date:          date,
			GuardianName:  guardian,
			Phone:         st.Phone,
			GuardianEmail: st.GuardianEmail,
			School:        s.school,
		})
	}
	return out, nil
}

// NotifyResult reports how many notices went out.
type NotifyResult struct {
	Absentees int `json:"absentees"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// NotifyAbsentees sends one notice per absent student. Individual delivery
// failures are counted and logged, not returned.
func (s *AttendanceService) NotifyAbsentees(ctx context.Context, class, section, date string) (NotifyResult, error) {
	notices, err := s.Absentees(ctx, class, section, date)
	if err != nil {
		return NotifyResult{}, err
	}
	res := NotifyResult{Absentees: len(notices)}
	if s.notifier == nil {
		s.logger.WarnContext(ctx, "No notifier configured, skipping absentee notices", "count", len(notices))
		return res, nil
	}
	for _, n := range notices {
		if err := s.notifier.NotifyAbsentee(ctx, n); err != nil {
			res.Failed++
			s.logger.ErrorContext(ctx, "Failed to send absentee notice", "admission_no", n.AdmissionNo, "error", err)
			continue
		}
		res.Sent++
	}
	return res, nil
}
