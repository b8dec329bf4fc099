package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
)

// MockImageServer simulates an image CDN with configurable failures.
type MockImageServer struct {
	server       *httptest.Server
	requestCount int32

	mu       sync.Mutex
	images   map[string][]byte
	failures map[string]int // remaining error responses per path
	failCode map[string]int
	attempts map[string]int
}

// NewMockImageServer creates a mock CDN serving the given images.
func NewMockImageServer() *MockImageServer {
	m := &MockImageServer{
		images:   make(map[string][]byte),
		failures: make(map[string]int),
		failCode: make(map[string]int),
		attempts: make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// AddImage registers an image at path with the given bytes.
func (m *MockImageServer) AddImage(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[path] = data
}

// FailTimes makes a path return code for the next n requests before
// succeeding.
func (m *MockImageServer) FailTimes(path string, code, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = n
	m.failCode[path] = code
}

// URL returns the full URL for a registered path.
func (m *MockImageServer) URL(path string) string {
	return m.server.URL + path
}

// RequestCount returns the number of requests served.
func (m *MockImageServer) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// Attempts returns how many requests a single path received.
func (m *MockImageServer) Attempts(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[path]
}

// Close shuts the server down.
func (m *MockImageServer) Close() {
	m.server.Close()
}

func (m *MockImageServer) handle(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)

	m.mu.Lock()
	m.attempts[r.URL.Path]++
	if n := m.failures[r.URL.Path]; n > 0 {
		m.failures[r.URL.Path] = n - 1
		code := m.failCode[r.URL.Path]
		m.mu.Unlock()
		if code == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "0")
		}
		http.Error(w, fmt.Sprintf("simulated %d", code), code)
		return
	}
	data, ok := m.images[r.URL.Path]
	m.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
