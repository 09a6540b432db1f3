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

// ExamService manages exam definitions and per-subject marks.
type ExamService struct {
	base
}

// MarkEntry is one subject score submitted for a student.
type MarkEntry struct {
	Subject string
	Marks   float64
}

var resultsRef = sheets.Master(sheets.Results)

func (s *ExamService) CreateExam(ctx context.Context, e core.Exam) (core.Exam, error) {
	e.Name = strings.TrimSpace(e.Name)
	e.Class = strings.TrimSpace(e.Class)
	if err := e.Validate(); err != nil {
		return core.Exam{}, err
	}
	if e.Date != "" {
		d, err := core.ParseDate(e.Date)
		if err != nil {
			return core.Exam{}, err
		}
		e.Date = d.String()
	}
	e.ExamID = newID("EXM")
	row := examSchema.NewRow(map[string]string{
		"ExamID": e.ExamID, "Name": e.Name, "Class": e.Class, "Date": e.Date, "Subjects": core.FormatSubjects(e.Subjects),
	})
	if err := s.append(ctx, sheets.Master(sheets.Exams), row); err != nil {
		return core.Exam{}, err
	}
	return e, nil
}

// ListExams returns exams sorted by date, optionally for one class.
func (s *ExamService) ListExams(ctx context.Context, class string) ([]core.Exam, error) {
	rows, err := s.rows(ctx, sheets.Master(sheets.Exams))
	if err != nil {
		return nil, err
	}
	out := make([]core.Exam, 0, len(rows))
	for _, r := range rows {
		e := examFromRow(r)
		if class != "" && e.Class != class {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *ExamService) getExam(ctx context.Context, examID string) (core.Exam, error) {
	rows, err := s.rows(ctx, sheets.Master(sheets.Exams))
	if err != nil {
		return core.Exam{}, err
	}
	idx := findRow(rows, examSchema, "ExamID", examID)
	if idx < 0 {
		return core.Exam{}, core.NotFound("exam", examID)
	}
	return examFromRow(rows[idx]), nil
}

func (s *ExamService) DeleteExam(ctx context.Context, examID string) error {
	if err := required("examId", examID); err != nil {
		return err
	}
	return s.deleteByKey(ctx, sheets.Exams, "exam", examID)
}

// SaveMarks upserts one student's marks on (exam, student, subject).
// Max marks come from the exam definition.
func (s *ExamService) SaveMarks(ctx context.Context, examID, admissionNo string, marks []MarkEntry) error {
	if err := required("examId", examID, "admissionNo", admissionNo); err != nil {
		return err
	}
	if len(marks) == 0 {
		return core.NewValidationError("marks")
	}
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return err
	}
	maxBySubject := make(map[string]int, len(exam.Subjects))
	for _, sub := range exam.Subjects {
		maxBySubject[sub.Name] = sub.MaxMarks
	}
	results := make([]core.Result, 0, len(marks))
	for _, m := range marks {
		max, ok := maxBySubject[m.Subject]
		if !ok {
			return fmt.Errorf("%w: subject %q is not part of exam %s", core.ErrValidation, m.Subject, exam.Name)
		}
		r := core.Result{ExamID: examID, AdmissionNo: admissionNo, Subject: m.Subject, Marks: m.Marks, MaxMarks: float64(max)}
		if err := r.Validate(); err != nil {
			return err
		}
		results = append(results, r)
	}

	return s.locker.WithLock(ctx, lock.TableKey(string(sheets.Results)), func() error {
		if err := s.store.Ensure(ctx, resultsRef); err != nil {
			return err
		}
		rows, err := s.rows(ctx, resultsRef)
		if err != nil {
			return err
		}
		for _, r := range results {
			idx := -1
			for i, row := range rows {
				old := resultFromRow(row)
				if old.ExamID == r.ExamID && old.AdmissionNo == r.AdmissionNo && old.Subject == r.Subject {
					idx = i
					break
				}
			}
			if idx >= 0 {
				if err := s.store.Update(ctx, resultsRef, idx, resultRow(r)); err != nil {
					return fmt.Errorf("update marks: %w", err)
				}
				continue
			}
			if err := s.store.Append(ctx, resultsRef, resultRow(r)); err != nil {
				return fmt.Errorf("append marks: %w", err)
			}
			rows = append(rows, resultRow(r))
		}
		return nil
	})
}

// StudentResults groups a student's marks by exam, in the order exams were first seen.
func (s *ExamService) StudentResults(ctx context.Context, admissionNo string) ([]core.ResultSummary, error) {
	if err := required("admissionNo", admissionNo); err != nil {
		return nil, err
	}
	rows, err := s.rows(ctx, resultsRef)
	if err != nil {
		return nil, err
	}
	byExam := make(map[string][]core.Result)
	var order []string
	for _, r := range rows {
		res := resultFromRow(r)
		if res.AdmissionNo != admissionNo {
			continue
		}
		if _, ok := byExam[res.ExamID]; !ok {
			order = append(order, res.ExamID)
		}
		byExam[res.ExamID] = append(byExam[res.ExamID], res)
	}
	out := make([]core.ResultSummary, 0, len(order))
	for _, id := range order {
		out = append(out, core.Summarize(id, byExam[id]))
	}
	return out, nil
}
