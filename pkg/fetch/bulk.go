package fetch

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"
)

// Progress phase texts passed to the bulk fetch callback.
const (
	PhaseDownloading = "Downloading"
	PhaseReadError   = "Read Error"
	PhaseCancelled   = "Cancelled"
)

// Progress is called after every read attempt of a bulk fetch, including
// zero-length ones.
type Progress func(fetched, total int64, phase string)

// CancelSet is a shared set of media ids whose in-flight bulk fetches should
// stop. It is safe for concurrent use.
type CancelSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewCancelSet() *CancelSet {
	return &CancelSet{ids: make(map[string]struct{})}
}

func (c *CancelSet) Add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[id] = struct{}{}
}

func (c *CancelSet) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ids[id]
	return ok
}

// Remove deletes id and reports whether it was present.
func (c *CancelSet) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ids[id]
	delete(c.ids, id)
	return ok
}

// BulkFetcher drains a media stream to a single complete buffer. It is the
// non-real-time counterpart of the worker/scheduler pair, used when the bytes
// are saved rather than played.
type BulkFetcher struct {
	logger    *slog.Logger
	metrics   *Metrics
	chunkSize int64
	tolerance int64
}

func NewBulkFetcher(logger *slog.Logger, metrics *Metrics, chunkSize, tolerance int64) *BulkFetcher {
	if chunkSize <= 0 {
		chunkSize = DefaultBulkChunkSize
	}
	if tolerance <= 0 {
		tolerance = DefaultEndTolerance
	}
	return &BulkFetcher{
		logger:    logger.With("component", "bulk_fetcher"),
		metrics:   metrics,
		chunkSize: chunkSize,
		tolerance: tolerance,
	}
}

// Fetch reads src until all declared bytes arrive or the source id shows up
// in cancels. The progress callback fires after every read. A zero-length
// read with no more than the end tolerance left is a normal end of stream;
// with more left it is a StreamReadError. On cancellation the triggering id
// is removed from the set and ErrFetchInterrupted is returned. The stream
// handle is invalidated on every exit path.
func (b *BulkFetcher) Fetch(src Source, cancels *CancelSet, progress Progress) ([]byte, error) {
	if cancels == nil {
		cancels = NewCancelSet()
	}
	if progress == nil {
		progress = func(int64, int64, string) {}
	}

	stream, err := src.Stream()
	if err != nil {
		return nil, errors.Wrap(err, "opening media stream")
	}

	total := stream.Size()
	raw := make([]byte, 0, total)
	chunk := b.chunkSize
	buf := make([]byte, chunk)

	for int64(len(raw)) < total && !cancels.Has(src.ID()) {
		n, err := stream.Read(buf[:chunk])
		if err != nil {
			progress(0, 1, PhaseReadError)
			src.Invalidate()
			return nil, errors.Wrapf(err, "reading media stream for %q", src.ID())
		}
		if n != 0 {
			raw = append(raw, buf[:n]...)
			b.metrics.addBytes(n)
		}
		progress(int64(len(raw)), total, PhaseDownloading)
		if n == 0 && chunk <= b.tolerance {
			// The remaining tail is an unrecoverable stream artifact, not
			// data loss.
			b.logger.Debug("ignoring unreadable trailing bytes", "id", src.ID(), "remaining", total-int64(len(raw)))
			break
		}
		if remaining := total - int64(len(raw)); remaining < chunk {
			chunk = remaining
		}
		if n == 0 && chunk > b.tolerance {
			progress(0, 1, PhaseReadError)
			src.Invalidate()
			return nil, &StreamReadError{
				ID:        src.ID(),
				Remaining: total - int64(len(raw)),
				Tolerance: b.tolerance,
			}
		}
	}

	if cancels.Remove(src.ID()) {
		progress(0, 1, PhaseCancelled)
		src.Invalidate()
		return nil, ErrFetchInterrupted
	}

	src.Invalidate()
	return raw, nil
}
