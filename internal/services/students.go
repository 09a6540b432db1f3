package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"scuola/internal/core"
	"scuola/internal/lock"
	"scuola/internal/sheets"
)

// StudentService manages the student master sheet and its archive.
type StudentService struct {
	base
}

// StudentFilter narrows List. Empty fields match everything.
type StudentFilter struct {
	Class       string
	Section     string
	IncludeLeft bool
}

func (s *StudentService) Add(ctx context.Context, st core.Student) (core.Student, error) {
	st = trimStudent(st)
	if err := st.Validate(); err != nil {
		return core.Student{}, err
	}
	if st.Status == "" {
		st.Status = core.StatusActive
	}
	st.CreatedAt = s.timestamp()
	err := s.locker.WithLock(ctx, lock.TableKey(string(sheets.Students)), func() error {
		return s.append(ctx, sheets.Master(sheets.Students), studentSchema.NewRow(studentCells(st)))
	})
	if errors.Is(err, sheets.ErrDuplicateKey) {
		return core.Student{}, fmt.Errorf("%w: admission number %s already exists", core.ErrValidation, st.AdmissionNo)
	}
	if err != nil {
		return core.Student{}, err
	}
	return st, nil
}

// Update overwrites the student's row, keeping its creation time.
func (s *StudentService) Update(ctx context.Context, st core.Student) (core.Student, error) {
	st = trimStudent(st)
	if err := st.Validate(); err != nil {
		return core.Student{}, err
	}
	ref := sheets.Master(sheets.Students)
	err := s.locker.WithLock(ctx, lock.TableKey(string(sheets.Students)), func() error {
		rows, err := s.rows(ctx, ref)
		if err != nil {
			return err
		}
		idx := findRow(rows, studentSchema, "AdmissionNo", st.AdmissionNo)
		if idx < 0 {
			return core.NotFound("student", st.AdmissionNo)
		}
		old := studentFromRow(rows[idx])
		st.CreatedAt = old.CreatedAt
		if st.Status == "" {
			st.Status = old.Status
		}
		return s.store.Update(ctx, ref, idx, studentSchema.NewRow(studentCells(st)))
	})
	if err != nil {
		return core.Student{}, err
	}
	return st, nil
}

func (s *StudentService) Get(ctx context.Context, admissionNo string) (core.Student, error) {
	rows, err := s.rows(ctx, sheets.Master(sheets.Students))
	if err != nil {
		return core.Student{}, err
	}
	idx := findRow(rows, studentSchema, "AdmissionNo", strings.TrimSpace(admissionNo))
	if idx < 0 {
		return core.Student{}, core.NotFound("student", admissionNo)
	}
	return studentFromRow(rows[idx]), nil
}

// List returns matching students in roster order.
func (s *StudentService) List(ctx context.Context, f StudentFilter) ([]core.Student, error) {
	rows, err := s.rows(ctx, sheets.Master(sheets.Students))
	if err != nil {
		return nil, err
	}
	out := make([]core.Student, 0, len(rows))
	for _, r := range rows {
		st := studentFromRow(r)
		if f.Class != "" && st.Class != f.Class {
			continue
		}
		if f.Section != "" && st.Section != f.Section {
			continue
		}
		if !f.IncludeLeft && st.Status == core.StatusLeft {
			continue
		}
		out = append(out, st)
	}
	sortRoster(out)
	return out, nil
}

// Roster returns the active students of one class-section.
func (s *StudentService) Roster(ctx context.Context, class, section string) ([]core.Student, error) {
	return s.List(ctx, StudentFilter{Class: class, Section: section})
}

// Archive copies the student to the archive sheet and marks them Left.
func (s *StudentService) Archive(ctx context.Context, admissionNo, reason string) error {
	ref := sheets.Master(sheets.Students)
	return s.locker.WithLock(ctx, lock.TableKey(string(sheets.Students)), func() error {
		rows, err := s.rows(ctx, ref)
		if err != nil {
			return err
		}
		idx := findRow(rows, studentSchema, "AdmissionNo", admissionNo)
		if idx < 0 {
			return core.NotFound("student", admissionNo)
		}
		st := studentFromRow(rows[idx])
		if st.Status == core.StatusLeft {
			return fmt.Errorf("%w: student %s is already archived", core.ErrValidation, admissionNo)
		}
		cells := studentCells(st)
		cells["ArchivedAt"] = s.timestamp()
		cells["Reason"] = reason
		archive := sheets.MustSchema(sheets.StudentsArchive)
		if err := s.append(ctx, sheets.Master(sheets.StudentsArchive), archive.NewRow(cells)); err != nil {
			return err
		}
		st.Status = core.StatusLeft
		return s.store.Update(ctx, ref, idx, studentSchema.NewRow(studentCells(st)))
	})
}

func trimStudent(st core.Student) core.Student {
	st.AdmissionNo = strings.TrimSpace(st.AdmissionNo)
	st.Name = strings.TrimSpace(st.Name)
	st.Class = strings.TrimSpace(st.Class)
	st.Section = strings.TrimSpace(st.Section)
	st.RollNo = strings.TrimSpace(st.RollNo)
	return st
}

// sortRoster orders by numeric roll number, then name. Students without a roll number go last.
func sortRoster(list []core.Student) {
	sort.SliceStable(list, func(i, j int) bool {
		ri, ei := strconv.Atoi(list[i].RollNo)
		rj, ej := strconv.Atoi(list[j].RollNo)
		switch {
		case ei == nil && ej == nil && ri != rj:
			return ri < rj
		case ei == nil && ej != nil:
			return true
		case ei != nil && ej == nil:
			return false
		}
		return list[i].Name < list[j].Name
	})
}
