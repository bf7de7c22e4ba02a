package ticket

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopTracker implements Tracker without an external issue tracker
// connection. It logs the issue that would have been filed and returns a
// synthetic tracker key, so the Ticket Workflow stays usable (and its
// lifecycle record still gets created) when no JIRA_URL is configured.
type NoopTracker struct {
	logger *slog.Logger
}

// NewNoopTracker creates a NoopTracker.
func NewNoopTracker(logger *slog.Logger) *NoopTracker {
	return &NoopTracker{logger: logger}
}

// CreateTicket implements Tracker.
func (t *NoopTracker) CreateTicket(_ context.Context, summary IssueSummary) (key, id string, err error) {
	key = "NOTRACKER-" + uuid.NewString()[:8]
	if t.logger != nil {
		t.logger.Warn("no issue tracker configured: ticket not filed externally",
			"synthetic_key", key,
			"title", summary.Title(),
		)
	}
	return key, key, nil
}

// UpdateStatus implements Tracker.
func (t *NoopTracker) UpdateStatus(context.Context, string, string) error { return nil }

// GetTicket implements Tracker.
func (t *NoopTracker) GetTicket(_ context.Context, key string) (string, error) {
	return "open", nil
}
