package fetch_test

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pacecast/pacecast/pkg/fetch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// linearProbe reports durations as if every byte were worth a fixed amount
// of audio, once a minimal header is present.
type linearProbe struct {
	bytesPerSecond float64
	headerBytes    int
}

func (p linearProbe) TotalDuration(buf []byte) (time.Duration, bool, error) {
	if len(buf) < p.headerBytes {
		return 0, false, nil
	}
	seconds := float64(len(buf)) / p.bytesPerSecond
	return time.Duration(seconds * float64(time.Second)), true, nil
}

// fakeStream serves a fixed byte slice and then zero-length reads. The
// declared size may exceed the available data to simulate unreadable
// trailing bytes. delayAt injects a sleep before the n-th read (0-based).
type fakeStream struct {
	mu      sync.Mutex
	data    []byte
	pos     int
	size    int64
	reads   int
	delayAt map[int]time.Duration
}

func newFakeStream(data []byte, size int64) *fakeStream {
	return &fakeStream{data: data, size: size}
}

func (s *fakeStream) Size() int64 { return s.size }

func (s *fakeStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	delay := s.delayAt[s.reads]
	s.reads++
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}

// fakeSource re-serves the same data on every fresh stream, mimicking a
// protocol collaborator that can reopen the same logical media.
type fakeSource struct {
	mu            sync.Mutex
	id            string
	data          []byte
	size          int64
	delayAt       map[int]time.Duration
	cur           *fakeStream
	invalidations int
}

func newFakeSource(id string, data []byte, size int64) *fakeSource {
	return &fakeSource{id: id, data: data, size: size}
}

func (s *fakeSource) ID() string { return s.id }

func (s *fakeSource) Stream() (fetch.MediaStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		s.cur = newFakeStream(s.data, s.size)
		s.cur.delayAt = s.delayAt
	}
	return s.cur, nil
}

func (s *fakeSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = nil
	s.invalidations++
}

func (s *fakeSource) invalidated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidations
}

// captureSink collects everything the scheduler delivers.
type captureSink struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	writeErr error
	closed   bool
}

func (s *captureSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.buf.Write(p)
}

func (s *captureSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...)
}

func (s *captureSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// drainSegments collects everything the worker publishes until the queue
// closes.
func drainSegments(w *fetch.Worker) []fetch.Segment {
	var segs []fetch.Segment
	for seg := range w.Segments() {
		segs = append(segs, seg)
	}
	return segs
}
