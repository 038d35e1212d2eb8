package fetch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// publishRetryInterval is how often a worker blocked on a full queue
// re-checks the cancellation flag, so an abandoned worker still exits
// promptly.
const publishRetryInterval = 50 * time.Millisecond

// WorkerConfig carries the tunables of a streaming fetch worker. Zero values
// fall back to the package defaults.
type WorkerConfig struct {
	ChunkSize    int64
	EndTolerance int64
	QueueSize    int
}

func (c *WorkerConfig) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.EndTolerance <= 0 {
		c.EndTolerance = DefaultEndTolerance
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
}

// Worker is the background half of the pipeline. It repeatedly reads chunks
// from a media stream, attributes playable duration to them and publishes
// timed segments to a bounded queue. It terminates on stream exhaustion,
// cancellation or unrecoverable read failure, publishing the terminal
// sentinel as its last item. Only a cancellation that finds the queue full
// may drop the sentinel; consumers must treat a closed queue with the flag
// set as a cancelled run.
type Worker struct {
	logger    *slog.Logger
	metrics   *Metrics
	stream    MediaStream
	extractor *Extractor
	flag      *Flag
	cfg       WorkerConfig

	id   string
	out  chan Segment
	done chan struct{}

	mu  sync.Mutex
	err error
}

// NewWorker prepares a worker for one fetch session. id is the media id used
// in error messages, flag is the shared cancellation flag (a fresh one is
// created when nil).
func NewWorker(logger *slog.Logger, metrics *Metrics, id string, stream MediaStream, probe DurationProbe, flag *Flag, cfg WorkerConfig) *Worker {
	cfg.applyDefaults()
	if flag == nil {
		flag = NewFlag(false)
	}
	return &Worker{
		logger:    logger.With("component", "fetch_worker", "id", id),
		metrics:   metrics,
		stream:    stream,
		extractor: NewExtractor(probe),
		flag:      flag,
		cfg:       cfg,
		id:        id,
		out:       make(chan Segment, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

// Segments is the hand-off queue. It carries segments in production order,
// then the terminal sentinel, then closes. The sentinel is absent only when
// the run was cancelled against a full queue.
func (w *Worker) Segments() <-chan Segment { return w.out }

// Done is closed once the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Err reports the failure of a finished run, if any. It is meaningful once
// the terminal sentinel has been consumed (or Done is closed).
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Flag returns the cancellation flag the worker observes.
func (w *Worker) Flag() *Flag { return w.flag }

// Start launches the fetch goroutine. It must be called at most once.
func (w *Worker) Start() {
	go w.run()
}

func (w *Worker) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

// publish delivers seg to the queue, re-checking the cancellation flag while
// blocked so the worker never outlives an abandoned session. It reports
// whether the segment was delivered.
func (w *Worker) publish(seg Segment) bool {
	for {
		select {
		case w.out <- seg:
			return true
		case <-time.After(publishRetryInterval):
			if w.flag.Get() {
				return false
			}
		}
	}
}

func (w *Worker) run() {
	defer close(w.done)
	defer close(w.out)
	// The sentinel is attempted on every exit path, after any failure has
	// been recorded. It can only fail against a full queue with the flag
	// already set, and then the close of the queue marks the end instead.
	defer w.publish(Segment{})

	total := w.stream.Size()
	chunk := w.cfg.ChunkSize
	buf := make([]byte, chunk)

	var fetched int64
	full := make([]byte, 0, total)
	var pending []byte

	for fetched < total && !w.flag.Get() {
		n, err := w.stream.Read(buf[:chunk])
		if err != nil {
			w.setErr(errors.Wrapf(err, "reading media stream for %q", w.id))
			return
		}
		pending = append(pending, buf[:n]...)
		if n == 0 && chunk <= w.cfg.EndTolerance {
			// Trailing bytes within the tolerance are stream artifacts, not
			// data loss.
			w.logger.Debug("ignoring unreadable trailing bytes", "remaining", total-fetched)
			return
		}
		if remaining := total - fetched; remaining < chunk {
			chunk = remaining
		}
		if n == 0 && chunk > w.cfg.EndTolerance {
			w.setErr(&StreamReadError{
				ID:        w.id,
				Remaining: total - fetched,
				Tolerance: w.cfg.EndTolerance,
			})
			return
		}
		fetched += int64(n)
		w.metrics.addBytes(n)

		if n == 0 {
			continue
		}
		full = append(full, buf[:n]...)
		delta, ok, err := w.extractor.Extract(full)
		if err != nil {
			w.setErr(errors.Wrapf(err, "malformed container data for %q", w.id))
			return
		}
		if !ok {
			// Header not complete yet, keep accumulating.
			continue
		}
		if !w.publish(Segment{Duration: delta, Payload: pending}) {
			return
		}
		w.metrics.addSegment()
		pending = nil
	}
}
