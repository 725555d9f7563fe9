// Package ics reads iCalendar VEVENT data, either from a public feed URL or
// as the calendar-data bodies embedded in CalDAV responses.
package ics

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/tidewatch/tidewatch/internal/calendar"
)

// maxLineBytes bounds a single physical line.
const maxLineBytes = 1 << 20

// Parse extracts the VEVENT components of an iCalendar document. label and
// color are stamped on every event. Components nested inside an event
// (VALARM and the like) are skipped. A line that cannot be read fails the
// whole document rather than dropping the events after it.
func Parse(data, label, color string) ([]calendar.Event, error) {
	lines, err := unfold(data)
	if err != nil {
		return nil, err
	}

	var (
		events  []calendar.Event
		current *calendar.Event
		nested  int
	)

	for _, line := range lines {
		name, value := splitProperty(line)

		switch {
		case name == "BEGIN" && strings.EqualFold(value, "VEVENT") && current == nil:
			current = &calendar.Event{CalendarLabel: label, CalendarColor: color}
			continue
		case current == nil:
			continue
		case name == "BEGIN":
			nested++
			continue
		case name == "END" && nested > 0:
			nested--
			continue
		case name == "END" && strings.EqualFold(value, "VEVENT"):
			events = append(events, *current)
			current = nil
			continue
		case nested > 0:
			continue
		}

		switch name {
		case "SUMMARY":
			current.Title = Unescape(value)
		case "LOCATION":
			current.Location = Unescape(value)
		case "DESCRIPTION":
			current.Description = Unescape(value)
		case "DTSTART":
			if iso, allDay, err := ParseDate(value); err == nil {
				current.Start, current.AllDay = iso, allDay
			}
		case "DTEND":
			if iso, _, err := ParseDate(value); err == nil {
				current.End = iso
			}
		}
	}
	return events, nil
}

// ParseDate converts an iCalendar date token to ISO form. An 8 character
// token is an all-day date (YYYYMMDD => YYYY-MM-DD); a token containing "T"
// is a date-time (YYYYMMDDTHHMMSS[Z] => YYYY-MM-DDTHH:MM:SS[Z]).
func ParseDate(token string) (iso string, allDay bool, err error) {
	token = strings.TrimSpace(token)

	switch {
	case len(token) == 8 && isDigits(token):
		return token[0:4] + "-" + token[4:6] + "-" + token[6:8], true, nil
	case strings.Contains(token, "T"):
		date, clock, _ := strings.Cut(token, "T")
		utc := strings.HasSuffix(clock, "Z")
		clock = strings.TrimSuffix(clock, "Z")
		if len(date) != 8 || len(clock) < 6 || !isDigits(date) || !isDigits(clock[:6]) {
			return "", false, fmt.Errorf("malformed date-time %q", token)
		}
		iso = date[0:4] + "-" + date[4:6] + "-" + date[6:8] + "T" +
			clock[0:2] + ":" + clock[2:4] + ":" + clock[4:6]
		if utc {
			iso += "Z"
		}
		return iso, false, nil
	default:
		return "", false, fmt.Errorf("malformed date %q", token)
	}
}

// Unescape reverses iCalendar TEXT escaping: \n and \N become newlines,
// \, \; and \\ become their literal characters.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		case ',', ';', '\\':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// unfold joins continuation lines (leading space or tab) onto the previous line.
func unfold(data string) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading icalendar lines: %w", err)
	}
	return lines, nil
}

// splitProperty returns the upper-cased property name without parameters
// ("DTSTART;TZID=America/New_York" => "DTSTART") and the raw value.
func splitProperty(line string) (string, string) {
	head, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", ""
	}
	name, _, _ := strings.Cut(head, ";")
	return strings.ToUpper(strings.TrimSpace(name)), value
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
