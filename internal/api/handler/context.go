package handler

import (
	"context"

	"github.com/tidewatch/tidewatch/internal/api/middleware"
)

// GetSubject retrieves the control token subject from the context.
// This is a convenience wrapper around middleware.GetSubject.
func GetSubject(ctx context.Context) string {
	return middleware.GetSubject(ctx)
}
