package mediastream

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pacecast/pacecast/pkg/fetch"
)

// HTTPSource serves media streams over plain HTTP GET. The remote must
// declare the total size via Content-Length; the body is treated as an
// opaque elementary stream of exactly that many bytes.
type HTTPSource struct {
	id        string
	url       string
	userAgent string
	client    *http.Client

	mu     sync.Mutex
	stream *httpStream
}

// NewHTTPSource creates a source for one logical piece of media. id is used
// in error messages and cancellation sets; when empty the URL is used.
func NewHTTPSource(id, url, userAgent string) *HTTPSource {
	if id == "" {
		id = url
	}

	// Timeout for establishing the connection only. Reads must be able to
	// outlive any fixed deadline since delivery is paced by playback.
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		Dial:                  dialer.Dial,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	return &HTTPSource{
		id:        id,
		url:       url,
		userAgent: userAgent,
		client:    &http.Client{Transport: transport},
	}
}

func (s *HTTPSource) ID() string { return s.id }

// Stream returns the live stream handle, opening a fresh one if none is
// cached.
func (s *HTTPSource) Stream() (fetch.MediaStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return s.stream, nil
	}

	req, err := http.NewRequest(http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("accept", "*/*")
	if s.userAgent != "" {
		req.Header.Add("user-agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, s.url)
	}
	if resp.ContentLength < 0 {
		resp.Body.Close()
		return nil, fmt.Errorf("source %s did not declare a total size", s.url)
	}

	s.stream = &httpStream{size: resp.ContentLength, rc: resp.Body}
	return s.stream, nil
}

// Invalidate discards the cached stream so the next Stream call reopens.
func (s *HTTPSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		s.stream.close()
		s.stream = nil
	}
}

type httpStream struct {
	size int64
	rc   io.ReadCloser
}

func (st *httpStream) Size() int64 { return st.size }

// Read maps the transport's EOF to a zero-length read: whether the tail is
// tolerable is the fetch pipeline's call, not the transport's.
func (st *httpStream) Read(p []byte) (int, error) {
	n, err := st.rc.Read(p)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (st *httpStream) close() {
	_ = st.rc.Close()
}
