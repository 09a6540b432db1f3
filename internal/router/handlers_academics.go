package router

import (
	"context"
	"encoding/json"

	"scuola/internal/core"
	"scuola/internal/services"
)

func (r *Router) registerAcademics() {
	r.write("createExam", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			Name     string `json:"name" validate:"notblank"`
			Class    string `json:"class" validate:"notblank"`
			Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
			Subjects []struct {
				Name     string `json:"name" validate:"notblank"`
				MaxMarks int    `json:"maxMarks" validate:"gt=0"`
			} `json:"subjects" validate:"required,min=1,dive"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		exam := core.Exam{Name: p.Name, Class: p.Class, Date: p.Date}
		for _, s := range p.Subjects {
			exam.Subjects = append(exam.Subjects, core.ExamSubject{Name: s.Name, MaxMarks: s.MaxMarks})
		}
		created, err := r.svc.Exams.CreateExam(ctx, exam)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: created, Message: "Exam created"}, nil
	})

	r.read("getExams", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			Class string `json:"class"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		list, err := r.svc.Exams.ListExams(ctx, p.Class)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: list}, nil
	})

	r.write("deleteExam", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			ExamID string `json:"examId" validate:"notblank"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		if err := r.svc.Exams.DeleteExam(ctx, p.ExamID); err != nil {
			return Result{}, err
		}
		return Result{Message: "Exam deleted"}, nil
	})

	r.write("saveMarks", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			ExamID      string `json:"examId" validate:"notblank"`
			AdmissionNo string `json:"admissionNo" validate:"notblank"`
			Marks       []struct {
				Subject string  `json:"subject" validate:"notblank"`
				Marks   float64 `json:"marks" validate:"gte=0"`
			} `json:"marks" validate:"required,min=1,dive"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		entries := make([]services.MarkEntry, 0, len(p.Marks))
		for _, m := range p.Marks {
			entries = append(entries, services.MarkEntry{Subject: m.Subject, Marks: m.Marks})
		}
		if err := r.svc.Exams.SaveMarks(ctx, p.ExamID, p.AdmissionNo, entries); err != nil {
			return Result{}, err
		}
		return Result{Message: "Marks saved"}, nil
	})

	r.read("getStudentResults", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p admissionParams
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		res, err := r.svc.Exams.StudentResults(ctx, p.AdmissionNo)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: res}, nil
	})

	r.write("saveSchedule", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p core.ScheduleEntry
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		e, err := r.svc.Schedule.Save(ctx, p)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: e, Message: "Schedule saved"}, nil
	})

	r.read("getSchedule", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			Class      string `json:"class"`
			Section    string `json:"section"`
			EmployeeID string `json:"employeeId"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		list, err := r.svc.Schedule.List(ctx, p.Class, p.Section, p.EmployeeID)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: list}, nil
	})

	r.write("deleteSchedule", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			EntryID string `json:"entryId" validate:"notblank"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		if err := r.svc.Schedule.Delete(ctx, p.EntryID); err != nil {
			return Result{}, err
		}
		return Result{Message: "Schedule entry deleted"}, nil
	})

	r.write("addHomework", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p core.Homework
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		h, err := r.svc.Homework.Add(ctx, p)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: h, Message: "Homework assigned"}, nil
	})

	r.read("getHomework", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			Class   string `json:"class"`
			Section string `json:"section"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		list, err := r.svc.Homework.List(ctx, p.Class, p.Section)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: list}, nil
	})

	r.write("deleteHomework", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			HomeworkID string `json:"homeworkId" validate:"notblank"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		if err := r.svc.Homework.Delete(ctx, p.HomeworkID); err != nil {
			return Result{}, err
		}
		return Result{Message: "Homework deleted"}, nil
	})

	r.write("addEvent", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p core.Event
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		e, err := r.svc.Events.Add(ctx, p)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: e, Message: "Event added"}, nil
	})

	r.read("getEvents", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			Upcoming bool `json:"upcoming"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		list, err := r.svc.Events.List(ctx, p.Upcoming)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: list}, nil
	})

	r.write("deleteEvent", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		var p struct {
			EventID string `json:"eventId" validate:"notblank"`
		}
		if err := bind(payload, &p); err != nil {
			return Result{}, err
		}
		if err := r.svc.Events.Delete(ctx, p.EventID); err != nil {
			return Result{}, err
		}
		return Result{Message: "Event deleted"}, nil
	})
}
