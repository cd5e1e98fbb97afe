package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/silviaroy/upscalerd/internal/logger"
	"github.com/silviaroy/upscalerd/internal/metrics"
)

// Reporter emits a monotonically increasing progress fraction on a
// fixed cadence while a transform runs. It never reaches 1.0 on its
// own; completion is signaled by the pipeline. Tick delivery errors are
// swallowed.
type Reporter struct {
	cadence   time.Duration
	increment float64
	onTick    func(fraction float64) error

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	started   bool
}

const maxFraction = 0.99

func NewReporter(cadence time.Duration, increment float64, onTick func(fraction float64) error) *Reporter {
	return &Reporter{
		cadence:   cadence,
		increment: increment,
		onTick:    onTick,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the tick loop. Calling Start more than once is a no-op.
func (r *Reporter) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.started = true
		go r.loop(ctx)
	})
}

// Stop terminates the tick loop and waits for it to exit, so no tick is
// emitted after Stop returns. Idempotent and safe to call before Start
// or after natural completion.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	if r.started {
		<-r.done
	}
}

func (r *Reporter) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cadence)
	defer ticker.Stop()

	fraction := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			fraction += r.increment
			if fraction > maxFraction {
				fraction = maxFraction
			}
			metrics.ProgressTicksTotal.Inc()
			if err := r.onTick(fraction); err != nil {
				// Transient transport trouble (rate limits and the
				// like) must never abort the job.
				metrics.ProgressTickErrorsTotal.Inc()
				logger.FromContext(ctx).Debug("progress tick dropped", "error", err)
			}
		}
	}
}
