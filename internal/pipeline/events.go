package pipeline

import (
	"context"

	"github.com/silviaroy/upscalerd/internal/policy"
)

type EventType string

const (
	EventAdmitted   EventType = "admitted"
	EventDenied     EventType = "denied"
	EventProgress   EventType = "progress"
	EventDelivering EventType = "delivering"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
)

// StatusEvent is the status feed to the transport boundary. Exactly one
// terminal event (completed or failed) is emitted per job; denied is
// emitted when no job was created at all.
type StatusEvent struct {
	Type      EventType
	JobID     string
	UserID    string
	Kind      policy.MediaKind
	Reason    string  // denied / failed: stable error code
	Fraction  float64 // progress only, in [0, 0.99]
	TierLabel string  // completed only
}

// Fetcher retrieves the source bytes behind an opaque handle into a
// local file.
type Fetcher interface {
	Fetch(ctx context.Context, sourceRef, destPath string) error
}

// Deliverer hands the finished output back to the user. A failure here
// fails the job.
type Deliverer interface {
	Deliver(ctx context.Context, userID string, kind policy.MediaKind, outputPath, tierLabel string) error
}

// Notifier receives status events. Errors are treated as transient and
// never abort a job.
type Notifier interface {
	Notify(ctx context.Context, ev StatusEvent) error
}
