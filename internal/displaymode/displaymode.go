// Package displaymode decides whether the dashboard presents today or tomorrow.
package displaymode

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultThresholdHour is the local hour from which tomorrow is shown.
const DefaultThresholdHour = 17

// Mode is the day the dashboard is presenting.
type Mode int

const (
	Today Mode = iota
	Tomorrow
)

// String returns the lowercase name of the mode.
func (m Mode) String() string {
	switch m {
	case Tomorrow:
		return "tomorrow"
	default:
		return "today"
	}
}

// MarshalJSON encodes the mode as its name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a mode name.
func (m *Mode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "today":
		*m = Today
	case "tomorrow":
		*m = Tomorrow
	default:
		return fmt.Errorf("unknown display mode %q", s)
	}
	return nil
}

// LoadLocation resolves a timezone id, falling back to the machine zone.
// The boolean reports whether the requested zone was used.
func LoadLocation(timezoneID string) (*time.Location, bool) {
	if timezoneID == "" {
		return time.Local, false
	}
	loc, err := time.LoadLocation(timezoneID)
	if err != nil {
		return time.Local, false
	}
	return loc, true
}

// Resolve returns Tomorrow when the local hour of now in timezoneID is at or
// past thresholdHour, Today otherwise. An unknown timezone is not an error:
// the comparison is made in the machine's local zone instead.
func Resolve(now time.Time, timezoneID string, thresholdHour int) Mode {
	loc, _ := LoadLocation(timezoneID)
	if now.In(loc).Hour() >= thresholdHour {
		return Tomorrow
	}
	return Today
}

// TargetDate returns the instant whose calendar day the mode presents.
// Tomorrow is a plain 24h offset and ignores DST transitions.
func TargetDate(mode Mode, now time.Time) time.Time {
	if mode == Tomorrow {
		return now.Add(24 * time.Hour)
	}
	return now
}

// Config holds configuration for a Resolver.
type Config struct {
	// Clock supplies the current instant (default: wall clock).
	Clock clock.Clock

	// Timezone is an IANA zone id such as "America/Los_Angeles".
	Timezone string

	// ThresholdHour is the local hour from which tomorrow is shown.
	ThresholdHour int
}

// Resolver binds a clock, timezone and threshold so callers can poll the mode.
type Resolver struct {
	clock     clock.Clock
	timezone  string
	location  *time.Location
	threshold int
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) *Resolver {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	loc, _ := LoadLocation(cfg.Timezone)
	return &Resolver{
		clock:     clk,
		timezone:  cfg.Timezone,
		location:  loc,
		threshold: cfg.ThresholdHour,
	}
}

// Current resolves the mode for the clock's current instant.
func (r *Resolver) Current() Mode {
	return Resolve(r.clock.Now(), r.timezone, r.threshold)
}

// Now returns the clock's current instant.
func (r *Resolver) Now() time.Time {
	return r.clock.Now()
}

// Target returns the target instant for mode relative to the current instant.
func (r *Resolver) Target(mode Mode) time.Time {
	return TargetDate(mode, r.clock.Now()).In(r.location)
}

// Location returns the zone used for local wall-clock formatting.
func (r *Resolver) Location() *time.Location {
	return r.location
}
