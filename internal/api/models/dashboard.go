package models

// VisibilityRequest reports whether the display is showing.
type VisibilityRequest struct {
	Visible *bool `json:"visible"`
}

// RefreshResponse acknowledges a trigger.
type RefreshResponse struct {
	Triggered  bool   `json:"triggered"`
	Generation uint64 `json:"generation"`
	Trigger    string `json:"trigger,omitempty"`
}
