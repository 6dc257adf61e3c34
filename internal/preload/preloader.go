// Package preload implements a bounded-concurrency asset preloader.
//
// At most MaxConcurrent loads run at once; further submissions wait in a
// FIFO queue. Completions are handed to a Dispatcher so that callers can
// receive them on their own event loop.
package preload

import (
	"context"
	"sync"

	"github.com/bft-labs/subcast/internal/ports"
	"github.com/bft-labs/subcast/pkg/log"
)

// DefaultMaxConcurrent is the default number of loads in flight.
const DefaultMaxConcurrent = 20

// DoneFunc receives the result of one load. A nil asset with a nil error is
// the empty result produced by abort and reset.
type DoneFunc = func(ports.Asset, error)

// Dispatcher runs a completion callback. The receiver posts callbacks to its
// event loop; the default runs them in place.
type Dispatcher func(func())

type entry struct {
	src  string
	done DoneFunc
}

// Option configures a Preloader.
type Option func(*Preloader)

// WithMaxConcurrent bounds the number of loads in flight.
func WithMaxConcurrent(n int) Option {
	return func(p *Preloader) {
		if n > 0 {
			p.max = n
		}
	}
}

// WithDispatcher sets where completion callbacks run.
func WithDispatcher(d Dispatcher) Option {
	return func(p *Preloader) {
		if d != nil {
			p.dispatch = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Preloader) {
		p.logger = log.OrNoop(l)
	}
}

// WithContext sets the parent context of every load.
func WithContext(ctx context.Context) Option {
	return func(p *Preloader) {
		p.parent = ctx
	}
}

// Preloader loads assets with bounded concurrency.
type Preloader struct {
	loader   ports.Loader
	dispatch Dispatcher
	logger   log.Logger
	parent   context.Context

	mu       sync.Mutex
	max      int
	inFlight int
	queue    []entry
	aborted  bool
	gen      uint64
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a Preloader backed by loader.
func New(loader ports.Loader, opts ...Option) *Preloader {
	p := &Preloader{
		loader:   loader,
		dispatch: func(f func()) { f() },
		logger:   log.NoopLogger{},
		parent:   context.Background(),
		max:      DefaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ctx, p.cancel = context.WithCancel(p.parent)
	return p
}

// Preload submits src. done is called exactly once.
func (p *Preloader) Preload(src string, done DoneFunc) {
	p.mu.Lock()
	if p.aborted {
		p.mu.Unlock()
		p.deliver(done, nil, nil)
		return
	}
	e := entry{src: src, done: done}
	if p.inFlight < p.max {
		p.startLocked(e)
	} else {
		p.queue = append(p.queue, e)
	}
	p.mu.Unlock()
}

// SetMaxConcurrent changes the concurrency bound. Raising it starts queued
// entries immediately.
func (p *Preloader) SetMaxConcurrent(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.max = n
	for !p.aborted && len(p.queue) > 0 && p.inFlight < p.max {
		next := p.queue[0]
		p.queue = p.queue[1:]
		p.startLocked(next)
	}
}

// Abort stops the preloader. Queued entries complete empty, running loads
// are cancelled and complete empty, and nothing new is started until Reset.
func (p *Preloader) Abort() {
	p.mu.Lock()
	if p.aborted {
		p.mu.Unlock()
		return
	}
	p.aborted = true
	queued := p.queue
	p.queue = nil
	p.cancel()
	p.mu.Unlock()

	if len(queued) > 0 {
		p.logger.Debug("preloader aborted", log.Int("queued", len(queued)))
	}
	for _, e := range queued {
		p.deliver(e.done, nil, nil)
	}
}

// Reset empties the queue, forgets running loads and leaves the aborted
// state. Loads started before the reset complete empty.
func (p *Preloader) Reset() {
	p.mu.Lock()
	queued := p.queue
	p.queue = nil
	p.inFlight = 0
	p.aborted = false
	p.gen++
	p.cancel()
	p.ctx, p.cancel = context.WithCancel(p.parent)
	p.mu.Unlock()

	for _, e := range queued {
		p.deliver(e.done, nil, nil)
	}
}

// Aborted reports whether Abort was called since the last Reset.
func (p *Preloader) Aborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborted
}

// InFlight returns the number of running loads.
func (p *Preloader) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Queued returns the number of waiting entries.
func (p *Preloader) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Preloader) startLocked(e entry) {
	p.inFlight++
	gen := p.gen
	ctx := p.ctx
	go func() {
		img, err := p.loader.Load(ctx, e.src)
		p.complete(gen, e, img, err)
	}()
}

func (p *Preloader) complete(gen uint64, e entry, img ports.Asset, err error) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		p.deliver(e.done, nil, nil)
		return
	}
	p.inFlight--
	if p.aborted {
		p.mu.Unlock()
		p.deliver(e.done, nil, nil)
		return
	}
	if len(p.queue) > 0 && p.inFlight < p.max {
		next := p.queue[0]
		p.queue = p.queue[1:]
		p.startLocked(next)
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Debug("asset load failed", log.Err(err))
		img = nil
	}
	p.deliver(e.done, img, err)
}

func (p *Preloader) deliver(done DoneFunc, img ports.Asset, err error) {
	if done == nil {
		return
	}
	p.dispatch(func() { done(img, err) })
}
