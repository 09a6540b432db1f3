package services

import (
	"context"
	"sort"

	"scuola/internal/core"
	"scuola/internal/sheets"
)

type EventService struct {
	base
}

func (s *EventService) Add(ctx context.Context, e core.Event) (core.Event, error) {
	if err := required("title", e.Title, "date", e.Date); err != nil {
		return core.Event{}, err
	}
	d, err := core.ParseDate(e.Date)
	if err != nil {
		return core.Event{}, err
	}
	e.Date = d.String()
	e.EventID = newID("EVT")
	row := eventSchema.NewRow(map[string]string{
		"EventID": e.EventID, "Title": e.Title, "Date": e.Date, "Description": e.Description, "Audience": e.Audience,
	})
	if err := s.append(ctx, sheets.Master(sheets.Events), row); err != nil {
		return core.Event{}, err
	}
	return e, nil
}

// List returns events by date. With upcoming set, past events are dropped.
func (s *EventService) List(ctx context.Context, upcoming bool) ([]core.Event, error) {
	rows, err := s.rows(ctx, sheets.Master(sheets.Events))
	if err != nil {
		return nil, err
	}
	today := s.today()
	out := make([]core.Event, 0, len(rows))
	for _, r := range rows {
		e := eventFromRow(r)
		if upcoming && e.Date < today {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *EventService) Delete(ctx context.Context, eventID string) error {
	if err := required("eventId", eventID); err != nil {
		return err
	}
	return s.deleteByKey(ctx, sheets.Events, "event", eventID)
}
