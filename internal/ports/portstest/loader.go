package portstest

import (
	"context"
	"sync"

	"github.com/bft-labs/subcast/internal/ports"
)

type loadResult struct {
	img ports.Asset
	err error
}

// Loader blocks every Load until the test completes it with Complete.
type Loader struct {
	mu      sync.Mutex
	started []string
	waiting map[string][]chan loadResult
	notify  chan string
}

// NewLoader creates a manually completed loader.
func NewLoader() *Loader {
	return &Loader{
		waiting: make(map[string][]chan loadResult),
		notify:  make(chan string, 128),
	}
}

// Load implements ports.Loader.
func (l *Loader) Load(ctx context.Context, src string) (ports.Asset, error) {
	ch := make(chan loadResult, 1)
	l.mu.Lock()
	l.started = append(l.started, src)
	l.waiting[src] = append(l.waiting[src], ch)
	l.mu.Unlock()
	l.notify <- src

	select {
	case r := <-ch:
		return r.img, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Started returns the sources whose loads began, in order.
func (l *Loader) Started() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.started...)
}

// Notify delivers the source of each load as it starts.
func (l *Loader) Notify() <-chan string {
	return l.notify
}

// Complete finishes the oldest pending load of src. It reports false when
// no load of src is pending.
func (l *Loader) Complete(src string, img ports.Asset, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.waiting[src]
	if len(q) == 0 {
		return false
	}
	q[0] <- loadResult{img: img, err: err}
	l.waiting[src] = q[1:]
	return true
}

var _ ports.Loader = (*Loader)(nil)
