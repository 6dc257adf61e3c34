package preload

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/subcast/internal/ports"
	"github.com/bft-labs/subcast/internal/ports/portstest"
	"github.com/bft-labs/subcast/pkg/log"
)

// levelLogger counts records per level.
type levelLogger struct {
	mu     sync.Mutex
	levels map[string]int
}

func (l *levelLogger) add(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.levels == nil {
		l.levels = make(map[string]int)
	}
	l.levels[level]++
}

func (l *levelLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.levels[level]
}

func (l *levelLogger) Debug(string, ...log.Field) { l.add("debug") }
func (l *levelLogger) Info(string, ...log.Field)  { l.add("info") }
func (l *levelLogger) Warn(string, ...log.Field)  { l.add("warn") }
func (l *levelLogger) Error(string, ...log.Field) { l.add("error") }

type result struct {
	src string
	img ports.Asset
	err error
}

// collector gathers completions from any goroutine.
type collector struct {
	mu      sync.Mutex
	results []result
	ch      chan result
}

func newCollector() *collector {
	return &collector{ch: make(chan result, 64)}
}

func (c *collector) done(src string) DoneFunc {
	return func(img ports.Asset, err error) {
		r := result{src: src, img: img, err: err}
		c.mu.Lock()
		c.results = append(c.results, r)
		c.mu.Unlock()
		c.ch <- r
	}
}

func (c *collector) wait(t *testing.T) result {
	t.Helper()
	select {
	case r := <-c.ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
		return result{}
	}
}

func waitStarted(t *testing.T, l *portstest.Loader, n int) []string {
	t.Helper()
	var got []string
	for len(got) < n {
		select {
		case src := <-l.Notify():
			got = append(got, src)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for load %d, started %v", len(got)+1, got)
		}
	}
	return got
}

func TestPreloader_BoundedFIFO(t *testing.T) {
	loader := portstest.NewLoader()
	c := newCollector()
	p := New(loader, WithMaxConcurrent(2))

	for _, src := range []string{"a", "b", "c", "d", "e"} {
		p.Preload(src, c.done(src))
	}

	if got := p.InFlight(); got != 2 {
		t.Errorf("InFlight() = %d, want 2", got)
	}
	if got := p.Queued(); got != 3 {
		t.Errorf("Queued() = %d, want 3", got)
	}
	waitStarted(t, loader, 2)

	img := portstest.Image(1, 1)
	loader.Complete("a", img, nil)
	if r := c.wait(t); r.src != "a" || r.img == nil {
		t.Errorf("completion = %+v, want a with image", r)
	}

	started := waitStarted(t, loader, 1)
	if started[0] != "c" {
		t.Errorf("next started = %s, want c", started[0])
	}
	if got := p.Queued(); got != 2 {
		t.Errorf("Queued() after one completion = %d, want 2", got)
	}
}

func TestPreloader_AbortResolvesQueuedEmpty(t *testing.T) {
	loader := portstest.NewLoader()
	c := newCollector()
	p := New(loader, WithMaxConcurrent(2))

	for _, src := range []string{"a", "b", "c", "d", "e"} {
		p.Preload(src, c.done(src))
	}
	waitStarted(t, loader, 2)

	p.Abort()
	if !p.Aborted() {
		t.Fatal("Aborted() = false after Abort")
	}

	// c, d, e complete immediately; a and b are cancelled.
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		r := c.wait(t)
		if r.img != nil || r.err != nil {
			t.Errorf("completion of %s after abort = (%v, %v), want empty", r.src, r.img, r.err)
		}
		seen[r.src] = true
	}
	if len(seen) != 5 {
		t.Errorf("completed %v, want all five", seen)
	}

	p.Preload("f", c.done("f"))
	if r := c.wait(t); r.src != "f" || r.img != nil {
		t.Errorf("preload after abort = %+v, want empty f", r)
	}
	if got := loader.Started(); len(got) != 2 {
		t.Errorf("loads started = %v, want only a and b", got)
	}
}

func TestPreloader_FailureIsolated(t *testing.T) {
	loader := portstest.NewLoader()
	c := newCollector()
	logger := &levelLogger{}
	p := New(loader, WithMaxConcurrent(1), WithLogger(logger))

	p.Preload("bad", c.done("bad"))
	p.Preload("good", c.done("good"))
	waitStarted(t, loader, 1)

	boom := errors.New("decode failed")
	loader.Complete("bad", nil, boom)
	if r := c.wait(t); r.src != "bad" || !errors.Is(r.err, boom) {
		t.Errorf("bad completion = %+v, want error %v", r, boom)
	}
	// The caller owns failure reporting.
	if n := logger.count("warn") + logger.count("error"); n != 0 {
		t.Errorf("warn or error records = %d, want 0", n)
	}
	if logger.count("debug") != 1 {
		t.Errorf("debug records = %d, want 1", logger.count("debug"))
	}

	waitStarted(t, loader, 1)
	loader.Complete("good", portstest.Image(2, 2), nil)
	if r := c.wait(t); r.src != "good" || r.err != nil || r.img == nil {
		t.Errorf("good completion = %+v, want image", r)
	}
}

func TestPreloader_ResetDiscardsOldGeneration(t *testing.T) {
	loader := portstest.NewLoader()
	c := newCollector()
	p := New(loader, WithMaxConcurrent(1))

	p.Preload("old", c.done("old"))
	p.Preload("queued", c.done("queued"))
	waitStarted(t, loader, 1)

	p.Abort()
	p.Reset()
	if p.Aborted() {
		t.Error("Aborted() = true after Reset")
	}
	if p.InFlight() != 0 || p.Queued() != 0 {
		t.Errorf("after Reset InFlight=%d Queued=%d, want 0/0", p.InFlight(), p.Queued())
	}

	for i := 0; i < 2; i++ {
		if r := c.wait(t); r.img != nil {
			t.Errorf("%s completed with image after reset", r.src)
		}
	}

	p.Preload("new", c.done("new"))
	waitStarted(t, loader, 1)
	loader.Complete("new", portstest.Image(1, 1), nil)
	if r := c.wait(t); r.src != "new" || r.img == nil {
		t.Errorf("new completion = %+v, want image", r)
	}
}

func TestPreloader_Dispatcher(t *testing.T) {
	loader := portstest.NewLoader()
	posted := make(chan func(), 4)
	p := New(loader, WithDispatcher(func(f func()) { posted <- f }))

	called := false
	p.Preload("a", func(ports.Asset, error) { called = true })
	waitStarted(t, loader, 1)
	loader.Complete("a", portstest.Image(1, 1), nil)

	select {
	case f := <-posted:
		if called {
			t.Fatal("callback ran before dispatch")
		}
		f()
	case <-time.After(2 * time.Second):
		t.Fatal("completion was not dispatched")
	}
	if !called {
		t.Error("dispatched callback did not run")
	}
}
