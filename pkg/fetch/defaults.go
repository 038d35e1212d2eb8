package fetch

import "time"

// Tunable defaults for the fetch pipeline.
const (
	// DefaultChunkSize is the streaming read size.
	DefaultChunkSize int64 = 50000
	// DefaultBulkChunkSize is the typical read size for bulk fetches.
	DefaultBulkChunkSize int64 = 1024
	// DefaultEndTolerance is the number of unreadable trailing bytes treated
	// as a normal end of stream.
	DefaultEndTolerance int64 = 167
	// DefaultQueueSize bounds the worker-to-scheduler hand-off queue.
	DefaultQueueSize = 64

	// DefaultStallTimeout is how long the scheduler tolerates an empty queue
	// before declaring a network stall.
	DefaultStallTimeout = 15 * time.Second
	// DefaultGracePeriod is how long the scheduler waits for the worker to
	// acknowledge cancellation before proceeding regardless.
	DefaultGracePeriod = 2 * time.Second
	// DefaultSlack is the deadline overshoot tolerated before lag
	// compensation kicks in.
	DefaultSlack = 30 * time.Millisecond
	// DefaultPollInterval is the warmup/stall-watchdog wakeup interval.
	DefaultPollInterval = 100 * time.Millisecond
)
