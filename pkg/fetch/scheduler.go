package fetch

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// State is the scheduler's position in its session lifecycle.
type State int

const (
	// StateWarmup means no data has been observed yet.
	StateWarmup State = iota
	// StateStreaming means segments are being delivered downstream.
	StateStreaming
	// StateDraining means the sentinel arrived and already-delivered audio
	// is playing out.
	StateDraining
	// StateComplete is a successful session end.
	StateComplete
	// StateCancelled is a caller-requested session end.
	StateCancelled
	// StateFailed is a session end caused by a stream or network failure.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateWarmup:
		return "warmup"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateComplete:
		return "complete"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SchedulerConfig carries the timing tunables of the pacing loop. Zero
// values fall back to the package defaults.
type SchedulerConfig struct {
	// PollInterval is how often the loop wakes while the queue is empty, so
	// the stall watchdog stays live.
	PollInterval time.Duration
	// StallTimeout is the empty-queue duration after which the session fails
	// with a StallError.
	StallTimeout time.Duration
	// GracePeriod bounds the wait for the worker to acknowledge
	// cancellation.
	GracePeriod time.Duration
	// Slack is the deadline overshoot tolerated before a late segment
	// extends the estimated playback end.
	Slack time.Duration
	// LagRecovery lets early arrivals claw back previously accumulated lag
	// compensation. When false (the default) drift persists for the session.
	LagRecovery bool
}

func (c *SchedulerConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = DefaultStallTimeout
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.Slack <= 0 {
		c.Slack = DefaultSlack
	}
}

// Result describes how a playback session ended.
type Result struct {
	State State
	// PlaybackStart is when the first segment was delivered.
	PlaybackStart time.Time
	// PlaybackEnd is the estimated wall-clock time at which everything
	// delivered will have finished playing.
	PlaybackEnd time.Time
	// Compensated is the total forward drift added by lag compensation.
	Compensated time.Duration
}

// Scheduler is the foreground half of the pipeline. Run consumes the
// worker's segments in order, delivers them to the downstream consumer,
// tracks the playback clock and owns the cancellation flag.
type Scheduler struct {
	logger  *slog.Logger
	metrics *Metrics
	cfg     SchedulerConfig
}

func NewScheduler(logger *slog.Logger, metrics *Metrics, cfg SchedulerConfig) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		logger:  logger.With("component", "scheduler"),
		metrics: metrics,
		cfg:     cfg,
	}
}

// Run drives one playback session: the worker must already be started and
// publishing to its queue, sink is the downstream audio consumer's input.
// On return the source has been invalidated and the sink closed (close
// failures, typically broken pipes, are swallowed). The returned error is
// nil for a complete session, ErrFetchInterrupted for a cancelled one, and
// a StallError, StreamReadError or transport error for a failed one.
func (s *Scheduler) Run(ctx context.Context, worker *Worker, src Source, sink io.WriteCloser) (Result, error) {
	res := Result{State: StateWarmup}
	flag := worker.Flag()

	defer func() { s.metrics.addSession(res.State) }()
	defer src.Invalidate()

	var estimatedEnd time.Time
	var nextDeadline time.Time
	lastData := time.Now()

	for {
		select {
		case <-ctx.Done():
			flag.Set(true)
			s.awaitWorker(worker)
			res.State = StateCancelled
			s.closeSink(sink)
			return res, ErrFetchInterrupted

		case seg, ok := <-worker.Segments():
			if !ok {
				if flag.Get() {
					// The worker was cancelled against a full queue and had to
					// drop the sentinel; the closed queue marks the end.
					res.State = StateCancelled
					s.closeSink(sink)
					return res, ErrFetchInterrupted
				}
				panic("fetch: segment queue closed without terminal sentinel")
			}
			lastData = time.Now()

			if seg.Terminal() {
				if err := worker.Err(); err != nil {
					res.State = StateFailed
					s.closeSink(sink)
					return res, err
				}
				if flag.Get() {
					// The flag was set externally; the worker stopped early
					// without error.
					res.State = StateCancelled
					s.closeSink(sink)
					return res, ErrFetchInterrupted
				}
				res.State = StateDraining
				if !s.drain(ctx, estimatedEnd, flag) {
					res.State = StateCancelled
					s.closeSink(sink)
					return res, ErrFetchInterrupted
				}
				s.closeSink(sink)
				res.State = StateComplete
				return res, nil
			}

			now := time.Now()
			if !nextDeadline.IsZero() {
				critical := nextDeadline.Add(s.cfg.Slack)
				if now.After(critical) {
					// Late arrival: playback end drifts forward instead of
					// trying to catch up by dropping data.
					over := now.Sub(critical)
					estimatedEnd = estimatedEnd.Add(over)
					res.Compensated += over
					s.metrics.addLag(over.Seconds())
					s.logger.Debug("segment arrived late", "overrun", over)
				} else if s.cfg.LagRecovery && res.Compensated > 0 {
					if early := nextDeadline.Sub(now); early > 0 {
						recovered := min(early, res.Compensated)
						estimatedEnd = estimatedEnd.Add(-recovered)
						res.Compensated -= recovered
					}
				}
			}
			if estimatedEnd.IsZero() {
				estimatedEnd = now
				res.PlaybackStart = now
				res.State = StateStreaming
				s.logger.Info("playback started")
			}

			if _, err := sink.Write(seg.Payload); err != nil {
				// The consumer went away mid-stream; stop fetching, keep
				// what was already delivered.
				s.logger.Warn("downstream consumer rejected write", "err", err)
				flag.Set(true)
				s.awaitWorker(worker)
				res.State = StateCancelled
				s.closeSink(sink)
				return res, ErrFetchInterrupted
			}

			estimatedEnd = estimatedEnd.Add(seg.Duration)
			nextDeadline = now.Add(seg.Duration)
			res.PlaybackEnd = estimatedEnd

		case <-time.After(s.cfg.PollInterval):
			if elapsed := time.Since(lastData); elapsed > s.cfg.StallTimeout {
				flag.Set(true)
				s.awaitWorker(worker)
				s.metrics.addStall()
				res.State = StateFailed
				s.closeSink(sink)
				return res, &StallError{Elapsed: elapsed}
			}
		}
	}
}

// drain waits until the estimated playback end so already-delivered audio
// plays out. It reports false when the wait was interrupted.
func (s *Scheduler) drain(ctx context.Context, until time.Time, flag *Flag) bool {
	if flag.Get() {
		return false
	}
	wait := time.Until(until)
	if wait <= 0 {
		return true
	}
	s.logger.Debug("draining delivered audio", "wait", wait)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		flag.Set(true)
		return false
	}
}

// awaitWorker gives the worker a bounded grace period to observe the
// cancellation flag, draining its queue so a blocked publish can complete.
func (s *Scheduler) awaitWorker(worker *Worker) {
	deadline := time.NewTimer(s.cfg.GracePeriod)
	defer deadline.Stop()
	segments := worker.Segments()
	for {
		select {
		case <-worker.Done():
			return
		case _, ok := <-segments:
			if !ok {
				segments = nil
			}
		case <-deadline.C:
			s.logger.Warn("worker did not stop within grace period")
			return
		}
	}
}

// closeSink closes the downstream consumer best-effort. A broken pipe here
// means the consumer already exited, which is not worth escalating.
func (s *Scheduler) closeSink(sink io.WriteCloser) {
	if err := sink.Close(); err != nil {
		s.logger.Debug("closing downstream consumer", "err", err)
	}
}
