package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cancellation flags live under run:cancel:<runID>. The executor checks
// the flag before each node dispatch; setting it stops the run at the
// next node boundary.

const cancelTTL = 24 * time.Hour

func cancelKey(runID uuid.UUID) string {
	return "run:cancel:" + runID.String()
}

// RequestCancel raises the cancellation flag for a run
func (c *Client) RequestCancel(ctx context.Context, runID uuid.UUID) error {
	return c.Set(ctx, cancelKey(runID), "1", cancelTTL)
}

// Cancelled reports whether a run's cancellation flag is raised. Errors
// read as not-cancelled: a flaky flag store must not fail healthy runs.
func (c *Client) Cancelled(ctx context.Context, runID uuid.UUID) bool {
	exists, err := c.Exists(ctx, cancelKey(runID))
	if err != nil {
		c.log.Warn("cancellation check failed", "run_id", runID, "error", err)
		return false
	}
	return exists
}

// ClearCancel removes the cancellation flag after the run terminates
func (c *Client) ClearCancel(ctx context.Context, runID uuid.UUID) error {
	return c.Delete(ctx, cancelKey(runID))
}
