package services

import (
	"context"
	"sort"
	"strings"

	"scuola/internal/core"
	"scuola/internal/sheets"
)

type HomeworkService struct {
	base
}

func (s *HomeworkService) Add(ctx context.Context, h core.Homework) (core.Homework, error) {
	h.Class = strings.TrimSpace(h.Class)
	h.Section = strings.TrimSpace(h.Section)
	if err := required("class", h.Class, "subject", h.Subject, "title", h.Title); err != nil {
		return core.Homework{}, err
	}
	if h.DueDate != "" {
		d, err := core.ParseDate(h.DueDate)
		if err != nil {
			return core.Homework{}, err
		}
		h.DueDate = d.String()
	}
	h.HomeworkID = newID("HW")
	h.CreatedAt = s.timestamp()
	row := homeworkSchema.NewRow(map[string]string{
		"HomeworkID": h.HomeworkID,
		"Class":      h.Class,
		"Section":    h.Section,
		"Subject":    h.Subject,
		"Title":      h.Title,
		"Details":    h.Details,
		"DueDate":    h.DueDate,
		"AssignedBy": h.AssignedBy,
		"CreatedAt":  h.CreatedAt,
	})
	if err := s.append(ctx, sheets.Master(sheets.Homework), row); err != nil {
		return core.Homework{}, err
	}
	return h, nil
}

// List returns a class's homework, newest first. Homework without a section applies to every section.
func (s *HomeworkService) List(ctx context.Context, class, section string) ([]core.Homework, error) {
	rows, err := s.rows(ctx, sheets.Master(sheets.Homework))
	if err != nil {
		return nil, err
	}
	out := make([]core.Homework, 0, len(rows))
	for _, r := range rows {
		h := homeworkFromRow(r)
		if class != "" && h.Class != class {
			continue
		}
		if section != "" && h.Section != "" && h.Section != section {
			continue
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (s *HomeworkService) Delete(ctx context.Context, homeworkID string) error {
	if err := required("homeworkId", homeworkID); err != nil {
		return err
	}
	return s.deleteByKey(ctx, sheets.Homework, "homework", homeworkID)
}
