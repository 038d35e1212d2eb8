package fetch

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrFetchInterrupted reports a caller-requested cancellation. It is an
// expected outcome, not a failure: data already delivered stays delivered and
// the caller may retry with a fresh stream.
var ErrFetchInterrupted = errors.New("fetch interrupted by external event")

// StreamReadError reports that the transport returned no data while more than
// the tolerated number of trailing bytes were still unread. The stream handle
// must be invalidated before this error is surfaced.
type StreamReadError struct {
	ID        string
	Remaining int64
	Tolerance int64
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf(
		"failed to read stream for media %q, might be due to parallel use of the session: %d bytes were not read (ignorable: %d)",
		e.ID, e.Remaining, e.Tolerance,
	)
}

// StallError reports that the stall watchdog fired: the worker published no
// data for longer than the configured stall timeout.
type StallError struct {
	Elapsed time.Duration
}

func (e *StallError) Error() string {
	return fmt.Sprintf("network stall, no segment received for %s", e.Elapsed)
}
