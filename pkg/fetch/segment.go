package fetch

import (
	"fmt"
	"time"
)

// Segment is a byte range together with the playable duration it decodes to.
// Segments are produced by the worker and consumed exactly once by the
// scheduler, in FIFO order.
type Segment struct {
	Duration time.Duration
	Payload  []byte
}

// Terminal reports whether this is the sentinel the worker publishes as its
// last item, on both normal and aborted runs.
func (s Segment) Terminal() bool {
	return s.Duration == 0 && len(s.Payload) == 0
}

// DurationProbe reports the total decodable duration of an accumulated byte
// buffer. ok is false while the buffer does not yet contain enough data for
// the container headers to parse; that is a normal mid-accumulation state,
// not an error. A non-nil error means the data is malformed.
type DurationProbe interface {
	TotalDuration(buf []byte) (d time.Duration, ok bool, err error)
}

// Extractor attributes playable duration to newly appended bytes. It is
// stateless aside from the cumulative duration already attributed to earlier
// extractions.
type Extractor struct {
	probe DurationProbe
	prior time.Duration
}

func NewExtractor(probe DurationProbe) *Extractor {
	return &Extractor{probe: probe}
}

// Extract probes buf, the full byte accumulation since the start of the
// stream, and returns the duration attributable to the bytes appended since
// the last successful extraction. ok is false when the buffer is still an
// incomplete unit and the caller should keep accumulating. A successful
// extraction marks the appended bytes consumed: the caller flushes its
// pending chunk downstream and the next delta is measured from here.
func (e *Extractor) Extract(buf []byte) (delta time.Duration, ok bool, err error) {
	total, ok, err := e.probe.TotalDuration(buf)
	if err != nil || !ok {
		return 0, false, err
	}
	delta = total - e.prior
	if delta < 0 {
		panic(fmt.Sprintf("fetch: decodable duration went backwards: %s -> %s", e.prior, total))
	}
	e.prior = total
	return delta, true, nil
}

// Prior returns the cumulative duration attributed so far.
func (e *Extractor) Prior() time.Duration {
	return e.prior
}
