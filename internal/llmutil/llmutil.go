// Package llmutil holds small helpers shared by the packages that call the
// model or log around it.
package llmutil

import (
	"context"
	"time"
)

// Truncate caps s at max bytes for logging, marking the cut.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Sleep waits for d or until the context is done, returning the context
// error in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
