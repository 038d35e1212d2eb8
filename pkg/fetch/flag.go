package fetch

import "sync/atomic"

// Flag is a shared cancellation marker readable and writable from both the
// worker goroutine and the scheduler without tearing. Once set for a session
// it is never cleared; the worker stops issuing reads after it next observes
// the flag.
type Flag struct {
	v atomic.Bool
}

// NewFlag returns a flag with the given initial value. Constructing a
// pre-set flag is allowed so callers can start a session already cancelled.
func NewFlag(value bool) *Flag {
	f := &Flag{}
	f.v.Store(value)
	return f
}

func (f *Flag) Set(value bool) { f.v.Store(value) }

func (f *Flag) Get() bool { return f.v.Load() }
