package services

import (
	"context"
	"strings"

	"scuola/internal/core"
	"scuola/internal/lock"
	"scuola/internal/sheets"
)

var scheduleRef = sheets.Master(sheets.Schedule)

// ScheduleService keeps the timetable. A slot is identified by day, time slot and class-section.
type ScheduleService struct {
	base
}

// Save writes e into its slot, replacing whatever was there.
func (s *ScheduleService) Save(ctx context.Context, e core.ScheduleEntry) (core.ScheduleEntry, error) {
	e.Day = strings.TrimSpace(e.Day)
	e.TimeSlot = strings.TrimSpace(e.TimeSlot)
	e.Class = strings.TrimSpace(e.Class)
	e.Section = strings.TrimSpace(e.Section)
	if err := e.Validate(); err != nil {
		return core.ScheduleEntry{}, err
	}
	err := s.locker.WithLock(ctx, lock.TableKey(string(sheets.Schedule)), func() error {
		if err := s.store.Ensure(ctx, scheduleRef); err != nil {
			return err
		}
		rows, err := s.rows(ctx, scheduleRef)
		if err != nil {
			return err
		}
		for i, r := range rows {
			old := scheduleFromRow(r)
			if old.Day == e.Day && old.TimeSlot == e.TimeSlot && old.Class == e.Class && old.Section == e.Section {
				e.EntryID = old.EntryID
				return s.store.Update(ctx, scheduleRef, i, scheduleRow(e))
			}
		}
		e.EntryID = newID("SCH")
		return s.store.Append(ctx, scheduleRef, scheduleRow(e))
	})
	if err != nil {
		return core.ScheduleEntry{}, err
	}
	return e, nil
}

// List filters by class-section and/or employee. Empty filters match all.
func (s *ScheduleService) List(ctx context.Context, class, section, employeeID string) ([]core.ScheduleEntry, error) {
	rows, err := s.rows(ctx, scheduleRef)
	if err != nil {
		return nil, err
	}
	out := make([]core.ScheduleEntry, 0, len(rows))
	for _, r := range rows {
		e := scheduleFromRow(r)
		if (class != "" && e.Class != class) || (section != "" && e.Section != section) {
			continue
		}
		if employeeID != "" && e.EmployeeID != employeeID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *ScheduleService) Delete(ctx context.Context, entryID string) error {
	if err := required("entryId", entryID); err != nil {
		return err
	}
	return s.deleteByKey(ctx, sheets.Schedule, "schedule entry", entryID)
}
