// Package pipeline drives one upscale job from admission through fetch,
// transform, delivery and cleanup. Temporary resources are released and
// the progress reporter is stopped on every exit path, success or
// failure, and exactly one terminal status is reported per job.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/silviaroy/upscalerd/internal/apperror"
	"github.com/silviaroy/upscalerd/internal/ledger"
	"github.com/silviaroy/upscalerd/internal/logger"
	"github.com/silviaroy/upscalerd/internal/metrics"
	"github.com/silviaroy/upscalerd/internal/policy"
	"github.com/silviaroy/upscalerd/internal/transform"
)

// Request is one inbound media event from the transport boundary. Size
// limits are checked by the caller before submission.
type Request struct {
	UserID        string
	Kind          policy.MediaKind
	SourceRef     string
	SourceWidth   int
	SourceHeight  int
	FileSizeBytes int64
}

// Archiver optionally retains completed outputs. Failures are logged
// and never fail the job.
type Archiver interface {
	Store(ctx context.Context, userID, jobID, outputPath string, kind policy.MediaKind) error
}

type Config struct {
	WorkDir string

	ImageTimeout time.Duration
	VideoTimeout time.Duration
	FetchTimeout time.Duration

	MaxConcurrent int64
	FrameRate     int

	// Progress cadence per media kind. Video transforms run longer, so
	// they tick slower with smaller increments.
	ImageTickCadence   time.Duration
	ImageTickIncrement float64
	VideoTickCadence   time.Duration
	VideoTickIncrement float64
}

func DefaultConfig(workDir string) *Config {
	return &Config{
		WorkDir:            workDir,
		ImageTimeout:       5 * time.Minute,
		VideoTimeout:       60 * time.Minute,
		FetchTimeout:       2 * time.Minute,
		MaxConcurrent:      4,
		FrameRate:          30,
		ImageTickCadence:   3 * time.Second,
		ImageTickIncrement: 0.2,
		VideoTickCadence:   5 * time.Second,
		VideoTickIncrement: 0.1,
	}
}

type Pipeline struct {
	cfg       *Config
	ledger    *ledger.Ledger
	invoker   transform.Invoker
	fetcher   Fetcher
	deliverer Deliverer
	notifier  Notifier
	archiver  Archiver // nil when archiving is disabled

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func New(cfg *Config, l *ledger.Ledger, invoker transform.Invoker, fetcher Fetcher, deliverer Deliverer, notifier Notifier) (*Pipeline, error) {
	if cfg.MaxConcurrent < 1 {
		return nil, fmt.Errorf("pipeline: max concurrent jobs must be positive, got %d", cfg.MaxConcurrent)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: create work dir: %w", err)
	}

	return &Pipeline{
		cfg:       cfg,
		ledger:    l,
		invoker:   invoker,
		fetcher:   fetcher,
		deliverer: deliverer,
		notifier:  notifier,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
	}, nil
}

// SetArchiver enables best-effort retention of completed outputs.
func (p *Pipeline) SetArchiver(a Archiver) {
	p.archiver = a
}

// Submit runs the entitlement check and, if admitted, starts the job in
// the background. The admission decision is synchronous: when Submit
// returns nil a job exists and will report exactly one terminal status;
// a non-nil error means no job was created and the denial or failure
// has already been reported through the notifier.
func (p *Pipeline) Submit(ctx context.Context, req Request) error {
	log := logger.FromContext(ctx).With("user_id", req.UserID, "kind", string(req.Kind))

	rec, err := p.ledger.Get(ctx, req.UserID)
	if err != nil {
		log.Error("admission lookup failed", "error", err)
		p.notify(ctx, StatusEvent{Type: EventDenied, UserID: req.UserID, Kind: req.Kind, Reason: apperror.Code(err)})
		return err
	}

	allowed, err := p.ledger.CheckAndReserve(ctx, req.UserID)
	if err != nil {
		log.Error("admission check failed", "error", err)
		metrics.AdmissionsTotal.WithLabelValues("error").Inc()
		p.notify(ctx, StatusEvent{Type: EventDenied, UserID: req.UserID, Kind: req.Kind, Reason: apperror.Code(err)})
		return err
	}
	if !allowed {
		log.Info("admission denied", "usage_count", rec.UsageCount)
		metrics.AdmissionsTotal.WithLabelValues("denied").Inc()
		p.notify(ctx, StatusEvent{Type: EventDenied, UserID: req.UserID, Kind: req.Kind, Reason: apperror.ErrQuotaExhausted.Code})
		return apperror.ErrQuotaExhausted
	}

	tier := policy.SelectTier(req.Kind, p.ledger.IsPrivileged(rec))
	job := newJob(req, tier)

	metrics.AdmissionsTotal.WithLabelValues("allowed").Inc()
	metrics.SourceBytes.WithLabelValues(string(req.Kind)).Observe(float64(req.FileSizeBytes))

	jobCtx := logger.WithJobID(logger.WithUserID(ctx, req.UserID), job.ID)
	logger.FromContext(jobCtx).Info("job admitted", "tier", string(tier), "source", fmt.Sprintf("%dx%d", req.SourceWidth, req.SourceHeight))
	p.notify(jobCtx, StatusEvent{Type: EventAdmitted, JobID: job.ID, UserID: job.UserID, Kind: job.Kind})

	p.wg.Add(1)
	go p.run(jobCtx, job)
	return nil
}

// Wait blocks until every in-flight job has reached a terminal state or
// the context expires.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) run(ctx context.Context, job *Job) {
	defer p.wg.Done()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.finish(ctx, job, apperror.Wrap(err, apperror.ErrTransform), time.Now())
		return
	}
	defer p.sem.Release(1)

	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()

	start := time.Now()
	err := p.process(ctx, job)
	p.cleanup(ctx, job)
	p.finish(ctx, job, err, start)
}

func (p *Pipeline) process(ctx context.Context, job *Job) error {
	log := logger.FromContext(ctx)

	// Fetching
	job.setState(ctx, StateFetching)
	job.inputPath = filepath.Join(p.cfg.WorkDir, job.ID+"_in"+job.ext())

	fetchStart := time.Now()
	fetchCtx, cancelFetch := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	err := p.fetcher.Fetch(fetchCtx, job.SourceRef, job.inputPath)
	cancelFetch()
	if err != nil {
		log.Error("fetch failed", "error", err)
		return apperror.Wrap(err, apperror.ErrFetch)
	}
	metrics.JobStageDuration.WithLabelValues(string(job.Kind), "fetch").Observe(time.Since(fetchStart).Seconds())

	// Transforming
	job.setState(ctx, StateTransforming)
	job.outputPath = filepath.Join(p.cfg.WorkDir, job.ID+"_out"+job.ext())

	width, height := policy.TargetGeometry(job.Tier, job.Kind, job.SrcWidth, job.SrcHeight)
	if width == 0 || height == 0 {
		return apperror.Wrap(fmt.Errorf("bad source geometry %dx%d", job.SrcWidth, job.SrcHeight), apperror.ErrTransform)
	}

	reporter := p.newReporter(ctx, job)
	reporter.Start(ctx)
	defer reporter.Stop()

	timeout := p.cfg.ImageTimeout
	if job.Kind == policy.KindVideo {
		timeout = p.cfg.VideoTimeout
	}
	transformCtx, cancelTransform := context.WithTimeout(ctx, timeout)
	defer cancelTransform()

	transformStart := time.Now()
	if job.Kind == policy.KindVideo {
		err = p.invoker.TransformVideo(transformCtx, job.inputPath, job.outputPath, width, height, p.cfg.FrameRate)
	} else {
		err = p.invoker.TransformImage(transformCtx, job.inputPath, job.outputPath, width, height)
	}
	reporter.Stop()
	if err != nil {
		log.Error("transform failed", "error", err, "width", width, "height", height)
		return apperror.Wrap(err, apperror.ErrTransform)
	}
	metrics.JobStageDuration.WithLabelValues(string(job.Kind), "transform").Observe(time.Since(transformStart).Seconds())

	// Delivering
	job.setState(ctx, StateDelivering)
	p.notify(ctx, StatusEvent{Type: EventDelivering, JobID: job.ID, UserID: job.UserID, Kind: job.Kind})

	deliverStart := time.Now()
	if err := p.deliverer.Deliver(ctx, job.UserID, job.Kind, job.outputPath, job.Tier.Label()); err != nil {
		log.Error("delivery failed", "error", err)
		return apperror.Wrap(err, apperror.ErrDelivery)
	}
	metrics.JobStageDuration.WithLabelValues(string(job.Kind), "deliver").Observe(time.Since(deliverStart).Seconds())

	if p.archiver != nil {
		if err := p.archiver.Store(ctx, job.UserID, job.ID, job.outputPath, job.Kind); err != nil {
			log.Warn("archive failed", "error", err)
		}
	}
	return nil
}

// cleanup removes the job's temporary resources. It runs on every exit
// path; errors are logged and swallowed.
func (p *Pipeline) cleanup(ctx context.Context, job *Job) {
	job.setState(ctx, StateCleaningUp)
	log := logger.FromContext(ctx)

	for _, path := range []string{job.inputPath, job.outputPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("cleanup failed", "path", path, "error", apperror.Wrap(err, apperror.ErrCleanup))
		}
	}
}

// finish moves the job to its terminal state and emits the single
// terminal notification.
func (p *Pipeline) finish(ctx context.Context, job *Job, err error, start time.Time) {
	log := logger.FromContext(ctx)

	if err != nil {
		job.setState(ctx, StateFailed)
		metrics.JobsTotal.WithLabelValues(string(job.Kind), "failed").Inc()
		log.Info("job failed", "reason", apperror.Code(err), "duration_ms", time.Since(start).Milliseconds())
		p.notify(ctx, StatusEvent{Type: EventFailed, JobID: job.ID, UserID: job.UserID, Kind: job.Kind, Reason: apperror.Code(err)})
		return
	}

	job.setState(ctx, StateCompleted)
	metrics.JobsTotal.WithLabelValues(string(job.Kind), "completed").Inc()
	metrics.JobDuration.WithLabelValues(string(job.Kind)).Observe(time.Since(start).Seconds())
	log.Info("job completed", "tier", string(job.Tier), "duration_ms", time.Since(start).Milliseconds())
	p.notify(ctx, StatusEvent{Type: EventCompleted, JobID: job.ID, UserID: job.UserID, Kind: job.Kind, TierLabel: job.Tier.Label()})
}

func (p *Pipeline) newReporter(ctx context.Context, job *Job) *Reporter {
	cadence := p.cfg.ImageTickCadence
	increment := p.cfg.ImageTickIncrement
	if job.Kind == policy.KindVideo {
		cadence = p.cfg.VideoTickCadence
		increment = p.cfg.VideoTickIncrement
	}

	return NewReporter(cadence, increment, func(fraction float64) error {
		return p.notifier.Notify(ctx, StatusEvent{
			Type:     EventProgress,
			JobID:    job.ID,
			UserID:   job.UserID,
			Kind:     job.Kind,
			Fraction: fraction,
		})
	})
}

// notify delivers a status event best-effort. Status traffic never
// decides a job's fate.
func (p *Pipeline) notify(ctx context.Context, ev StatusEvent) {
	if err := p.notifier.Notify(ctx, ev); err != nil {
		logger.FromContext(ctx).Debug("status notification dropped", "event", string(ev.Type), "error", err)
	}
}
