package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/silviaroy/upscalerd/internal/logger"
	"github.com/silviaroy/upscalerd/internal/policy"
)

type State int

const (
	StateAdmitted State = iota
	StateFetching
	StateTransforming
	StateDelivering
	StateCleaningUp
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAdmitted:
		return "admitted"
	case StateFetching:
		return "fetching"
	case StateTransforming:
		return "transforming"
	case StateDelivering:
		return "delivering"
	case StateCleaningUp:
		return "cleaning_up"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is one in-flight request. It lives only in memory and is owned by
// a single pipeline goroutine for its whole lifetime; the state field
// has exactly one writer.
type Job struct {
	ID        string
	UserID    string
	Kind      policy.MediaKind
	SourceRef string
	SrcWidth  int
	SrcHeight int
	FileSize  int64
	Tier      policy.Tier
	CreatedAt time.Time

	state      State
	inputPath  string
	outputPath string
}

func newJob(req Request, tier policy.Tier) *Job {
	return &Job{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Kind:      req.Kind,
		SourceRef: req.SourceRef,
		SrcWidth:  req.SourceWidth,
		SrcHeight: req.SourceHeight,
		FileSize:  req.FileSizeBytes,
		Tier:      tier,
		CreatedAt: time.Now(),
		state:     StateAdmitted,
	}
}

func (j *Job) State() State {
	return j.state
}

func (j *Job) setState(ctx context.Context, s State) {
	logger.FromContext(ctx).Debug("job state change", "from", j.state.String(), "to", s.String())
	j.state = s
}

func (j *Job) ext() string {
	if j.Kind == policy.KindVideo {
		return ".mp4"
	}
	return ".jpg"
}
