package tide

import (
	"sort"
	"time"
)

const (
	clockLayout = "3:04 PM"
	dateLayout  = "2006-01-02"
)

// Semidiurnal fallback pattern.
const (
	FallbackSource   = "fallback_estimate"
	FallbackPeriod   = 12*time.Hour + 30*time.Minute
	FallbackHighFt   = 5.2
	FallbackLowFt    = 0.8
	fallbackHalfTide = FallbackPeriod / 2
)

// DetectExtrema classifies every interior sample that is strictly above both
// neighbours as High and strictly below both as Low. The first and last
// samples are never classified.
func DetectExtrema(series []Prediction) []Event {
	var events []Event
	for i := 1; i < len(series)-1; i++ {
		prev, cur, next := series[i-1].HeightFt, series[i].HeightFt, series[i+1].HeightFt
		switch {
		case cur > prev && cur > next:
			events = append(events, eventAt(High, series[i]))
		case cur < prev && cur < next:
			events = append(events, eventAt(Low, series[i]))
		}
	}
	return events
}

func eventAt(kind Kind, p Prediction) Event {
	return Event{Kind: kind, LocalTime: p.Time.Format(clockLayout), HeightFt: p.HeightFt}
}

// Fallback synthesizes a twice-daily pattern for target's calendar day in
// loc. Highs recur every FallbackPeriod from target's time of day, lows sit
// half a period after each high; only events on the target day are kept.
func Fallback(target time.Time, loc *time.Location) []Event {
	anchor := target.In(loc)
	day := anchor.Format(dateLayout)

	type mark struct {
		at   time.Time
		kind Kind
	}
	var marks []mark
	for k := -2; k <= 2; k++ {
		high := anchor.Add(time.Duration(k) * FallbackPeriod)
		marks = append(marks,
			mark{at: high, kind: High},
			mark{at: high.Add(fallbackHalfTide), kind: Low},
		)
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].at.Before(marks[j].at) })

	events := make([]Event, 0, 4)
	for _, m := range marks {
		if m.at.Format(dateLayout) != day {
			continue
		}
		height := FallbackHighFt
		if m.kind == Low {
			height = FallbackLowFt
		}
		events = append(events, Event{Kind: m.kind, LocalTime: m.at.Format(clockLayout), HeightFt: height})
	}
	return events
}
