package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmylchreest/pageshot/internal/logger"
)

// fakeSession is a scripted Session.
type fakeSession struct {
	id int

	mu sync.Mutex

	// navErr returns the error for the n-th Navigate call (0-based).
	navErr func(n int) error

	// heights are returned by successive Height calls; the last value
	// repeats. heightErr, when set, is consulted first.
	heights   []int
	heightErr func(n int) error

	shotErr  func(n int) error
	html     string
	htmlErr  error
	clickOK  string // query that clicks successfully
	clickErr error
	styleErr error

	navigated   []string
	clicks      []string
	scrolls     []int
	styles      int
	navCalls    int
	heightCalls int
	shotCalls   int
	closed      int
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.navCalls
	s.navCalls++
	s.navigated = append(s.navigated, url)
	if s.navErr != nil {
		return s.navErr(n)
	}
	return nil
}

func (s *fakeSession) HTML(context.Context) (string, error) {
	return s.html, s.htmlErr
}

func (s *fakeSession) Click(_ context.Context, xpath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, xpath)
	if s.clickErr != nil {
		return false, s.clickErr
	}
	return xpath == s.clickOK, nil
}

func (s *fakeSession) InjectStyle(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.styles++
	return s.styleErr
}

func (s *fakeSession) Height(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.heightCalls
	s.heightCalls++
	if s.heightErr != nil {
		if err := s.heightErr(n); err != nil {
			return 0, err
		}
	}
	if len(s.heights) == 0 {
		return 0, nil
	}
	if n >= len(s.heights) {
		return s.heights[len(s.heights)-1], nil
	}
	return s.heights[n], nil
}

func (s *fakeSession) ScrollTo(_ context.Context, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolls = append(s.scrolls, y)
	return nil
}

func (s *fakeSession) Screenshot(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.shotCalls
	s.shotCalls++
	if s.shotErr != nil {
		if err := s.shotErr(n); err != nil {
			return nil, err
		}
	}
	return []byte(fmt.Sprintf("png-%d", n)), nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// fakeProvisioner hands out sessions built by newSession.
type fakeProvisioner struct {
	mu         sync.Mutex
	newSession func(n int) *fakeSession
	acquireErr error
	sessions   []*fakeSession
	calls      int
}

func (p *fakeProvisioner) Acquire(context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	s := p.newSession(len(p.sessions))
	s.id = len(p.sessions)
	p.sessions = append(p.sessions, s)
	return s, nil
}

// memStore keeps segments in memory.
type memStore struct {
	mu       sync.Mutex
	files    map[string][]byte
	pathErr  error
	writeErr func(path string) error
	pruned   []int // keep values passed to PruneSegments
	pruneErr error
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (m *memStore) SegmentPath(url string, index int) (string, error) {
	if m.pathErr != nil {
		return "", m.pathErr
	}
	return fmt.Sprintf("/assets/page_%d.png", index), nil
}

func (m *memStore) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		if err := m.writeErr(path); err != nil {
			return err
		}
	}
	m.files[path] = data
	return nil
}

func (m *memStore) PruneSegments(_ string, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = append(m.pruned, keep)
	return 0, m.pruneErr
}

// sleepRecorder records requested delays without sleeping.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	if r.err != nil {
		return r.err
	}
	return ctx.Err()
}

func (r *sleepRecorder) count(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.delays {
		if got == d {
			n++
		}
	}
	return n
}

// testOptions uses distinct delays so tests can tell them apart.
func testOptions(rec *sleepRecorder) Options {
	return Options{
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		ViewportHeight: 1080,
		ConsentDelay:   3 * time.Second,
		DismissDelay:   1 * time.Second,
		ScrollPause:    500 * time.Millisecond,
		Logger:         logger.Discard(),
		Sleep:          rec.Sleep,
		NewID:          func() string { return "test-id" },
	}
}

func timeoutErr(url string) error {
	return NewError(KindTimeout, "navigate", url, ErrPageLoadTimeout)
}

func sessionErr(url string) error {
	return NewError(KindSession, "navigate", url, ErrSessionLost)
}

var errBoom = errors.New("boom")
