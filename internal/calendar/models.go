// Package calendar normalizes events from the configured calendar backend
// and narrows them to the dashboard's target day.
package calendar

import (
	"errors"
	"time"
)

// Calendar errors.
var (
	// ErrNoAccounts is returned by backends that need a connected account
	// when none has been stored yet.
	ErrNoAccounts = errors.New("no calendar accounts connected")
)

// Date layouts used in Event.Start and Event.End.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
)

// Event is one normalized calendar entry. Start and End are ISO strings:
// "2006-01-02" for all-day events, otherwise "2006-01-02T15:04:05" with an
// optional "Z" or offset suffix. Times without a zone are local.
type Event struct {
	Title         string `json:"title"`
	Start         string `json:"startIso"`
	End           string `json:"endIso"`
	AllDay        bool   `json:"allDay"`
	Location      string `json:"location"`
	Description   string `json:"description"`
	CalendarLabel string `json:"calendarLabel"`
	CalendarColor string `json:"calendarColor"`
}

// Bounds resolves the event's start and end instants in loc. All-day events
// span whole local days with an exclusive end. A missing end means the event
// ends where it starts (timed) or after one day (all-day).
func (e Event) Bounds(loc *time.Location) (start, end time.Time, err error) {
	start, err = parseISO(e.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if e.End == "" {
		if e.AllDay {
			return start, start.AddDate(0, 0, 1), nil
		}
		return start, start, nil
	}
	end, err = parseISO(e.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseISO(s string, loc *time.Location) (time.Time, error) {
	switch {
	case len(s) == len(DateLayout):
		return time.ParseInLocation(DateLayout, s, loc)
	case len(s) == len(DateTimeLayout):
		return time.ParseInLocation(DateTimeLayout, s, loc)
	default:
		return time.Parse(time.RFC3339, s)
	}
}
