package tide

import "time"

// Kind distinguishes high from low water.
type Kind string

const (
	High Kind = "high"
	Low  Kind = "low"
)

// Event is one high or low water mark on the target day.
type Event struct {
	Kind      Kind    `json:"kind"`
	LocalTime string  `json:"localTime"`
	HeightFt  float64 `json:"heightFt"`
}

// Station is a tide prediction station.
type Station struct {
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
}

// DefaultStations are tried in order when none are configured.
var DefaultStations = []Station{
	{ID: "9413745", Name: "Santa Cruz, Monterey Bay"},
	{ID: "9413450", Name: "Monterey"},
	{ID: "9414290", Name: "San Francisco"},
}

// Prediction is one water level sample from a station series.
type Prediction struct {
	Time     time.Time
	HeightFt float64
}
