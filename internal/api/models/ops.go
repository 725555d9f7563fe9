package models

// HealthStatus is the coarse health of the service or one of its parts.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Health is the liveness and readiness response.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus is the provider and scheduler status response.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Scheduler SchedulerStatus  `json:"scheduler"`
	Providers []ProviderStatus `json:"providers"`
}

// SchedulerStatus summarizes the refresh loop.
type SchedulerStatus struct {
	State         string     `json:"state"`
	Generation    uint64     `json:"generation"`
	Mode          string     `json:"mode"`
	Visible       bool       `json:"visible"`
	LastSuccessAt *Timestamp `json:"lastSuccessAt,omitempty"`
	Refreshes     int64      `json:"refreshes"`
	Retries       int64      `json:"retries"`
	Discarded     int64      `json:"discarded"`
}

// ProviderStatus is one upstream provider's circuit state.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
