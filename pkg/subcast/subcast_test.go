package subcast_test

import (
	"context"
	"errors"
	"image"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/subcast/internal/domain"
	"github.com/bft-labs/subcast/internal/ports"
	"github.com/bft-labs/subcast/internal/ports/portstest"
	"github.com/bft-labs/subcast/pkg/subcast"
)

// fakeChannel can be started again after Close.
type fakeChannel struct {
	mu      sync.Mutex
	deliver ports.DeliverFunc
	starts  chan struct{}
	sends   chan []byte
	closes  int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{starts: make(chan struct{}, 8), sends: make(chan []byte, 16)}
}

func (c *fakeChannel) Start(_ context.Context, deliver ports.DeliverFunc) error {
	c.mu.Lock()
	c.deliver = deliver
	c.mu.Unlock()
	c.starts <- struct{}{}
	return nil
}

func (c *fakeChannel) Send(_ context.Context, _ string, data []byte, _ ports.Format) error {
	c.sends <- data
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeChannel) send(raw string) {
	c.mu.Lock()
	d := c.deliver
	c.mu.Unlock()
	d(ports.Inbound{SenderID: "phone", Format: ports.FormatJSON, Data: []byte(raw)})
}

func (c *fakeChannel) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-c.starts:
	case <-time.After(2 * time.Second):
		t.Fatal("channel not started")
	}
}

// recordingHandler records every event it receives.
type recordingHandler struct {
	mu       sync.Mutex
	states   []subcast.State
	requests []subcast.DataRequestEvent
}

func (h *recordingHandler) OnStateChange(ev subcast.StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, ev.Current)
}

func (h *recordingHandler) OnDataRequest(ev subcast.DataRequestEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, ev)
}

func (h *recordingHandler) snapshot() ([]subcast.State, []subcast.DataRequestEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.states), slices.Clone(h.requests)
}

// trackingPlugin records initialization and shutdown order.
type trackingPlugin struct {
	name      string
	mu        *sync.Mutex
	order     *[]string
	initError error
	cfg       subcast.PluginConfig
}

func (p *trackingPlugin) Name() string { return p.name }

func (p *trackingPlugin) Initialize(_ context.Context, cfg subcast.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	*p.order = append(*p.order, "init:"+p.name)
	return p.initError
}

func (p *trackingPlugin) Shutdown(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.order = append(*p.order, "shutdown:"+p.name)
	return nil
}

func testSurfaces(width, height int) (subcast.Surface, error) {
	return portstest.NewSurface(width, height), nil
}

func testLoader() subcast.Loader {
	return ports.LoaderFunc(func(context.Context, string) (ports.Asset, error) {
		return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
	})
}

func newTestSubcast(t *testing.T, ch *fakeChannel, opts ...subcast.Option) *subcast.Subcast {
	t.Helper()
	cfg := subcast.DefaultConfig()
	cfg.TickInterval = time.Millisecond
	base := []subcast.Option{
		subcast.WithChannel(ch),
		subcast.WithLoader(testLoader()),
		subcast.WithSurfaceFactory(testSurfaces),
	}
	s, err := subcast.New(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func waitForState(t *testing.T, s *subcast.Subcast, want subcast.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", s.Status(), want)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := subcast.DefaultConfig()
	cfg.Transport = "smoke-signals"
	if _, err := subcast.New(cfg); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestNew_SurfaceFactoryError(t *testing.T) {
	boom := errors.New("no gpu")
	_, err := subcast.New(subcast.DefaultConfig(), subcast.WithSurfaceFactory(func(int, int) (subcast.Surface, error) {
		return nil, boom
	}))
	if !errors.Is(err, boom) {
		t.Errorf("New() error = %v, want %v", err, boom)
	}
}

func TestSubcast_StartStop(t *testing.T) {
	ch := newFakeChannel()
	handler := &recordingHandler{}
	s := newTestSubcast(t, ch, subcast.WithEventHandler(handler))

	if s.Status() != subcast.StateStopped {
		t.Fatalf("initial state = %s", s.Status())
	}
	if err := s.Stop(); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("Stop() before Start error = %v, want ErrNotRunning", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ch.waitStarted(t)
	waitForState(t, s, subcast.StateRunning)

	if err := s.Start(ctx); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.Status() != subcast.StateStopped {
		t.Errorf("state after Stop = %s", s.Status())
	}

	states, _ := handler.snapshot()
	want := []subcast.State{subcast.StateStarting, subcast.StateRunning, subcast.StateStopping, subcast.StateStopped}
	if !slices.Equal(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
	ch.mu.Lock()
	if ch.closes != 1 {
		t.Errorf("channel closed %d times, want 1", ch.closes)
	}
	ch.mu.Unlock()
}

func TestSubcast_Restart(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSubcast(t, ch)

	for i := 0; i < 2; i++ {
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() #%d error = %v", i, err)
		}
		ch.waitStarted(t)
		waitForState(t, s, subcast.StateRunning)
		if err := s.Stop(); err != nil {
			t.Fatalf("Stop() #%d error = %v", i, err)
		}
	}
}

func TestSubcast_DataRequestEvent(t *testing.T) {
	ch := newFakeChannel()
	handler := &recordingHandler{}
	s := newTestSubcast(t, ch, subcast.WithEventHandler(handler))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()
	ch.waitStarted(t)

	ch.send(`{"type":"REQUEST_LOAD"}`)
	ch.send(`{"type":"PLAYING","currentMediaTime":0}`)

	select {
	case data := <-ch.sends:
		if !strings.Contains(string(data), `"action":"request"`) {
			t.Errorf("sent %s, want a data request", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no data request sent")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, reqs := handler.snapshot(); len(reqs) > 0 {
			if reqs[0].TimeMs != 0 || reqs[0].DurationMs != 3000 {
				t.Errorf("request event = %+v", reqs[0])
			}
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("no data request event")
}

func TestSubcast_PluginOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	a := &trackingPlugin{name: "a", mu: &mu, order: &order}
	b := &trackingPlugin{name: "b", mu: &mu, order: &order}

	ch := newFakeChannel()
	s := newTestSubcast(t, ch,
		subcast.WithPlugin(a),
		subcast.WithPlugin(b),
		subcast.WithConfigFile("/etc/subcast.toml", map[string]bool{"listen": true}),
	)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ch.waitStarted(t)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"init:a", "init:b", "shutdown:b", "shutdown:a"}
	if !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if a.cfg.Tuner == nil || a.cfg.Logger == nil {
		t.Error("plugin config missing tuner or logger")
	}
	if a.cfg.ConfigFile != "/etc/subcast.toml" || !a.cfg.PinnedFlags["listen"] {
		t.Errorf("plugin config = %+v", a.cfg)
	}
}

func TestSubcast_PluginInitFailure(t *testing.T) {
	var mu sync.Mutex
	var order []string
	boom := errors.New("boom")
	a := &trackingPlugin{name: "a", mu: &mu, order: &order}
	b := &trackingPlugin{name: "b", mu: &mu, order: &order, initError: boom}

	s := newTestSubcast(t, newFakeChannel(), subcast.WithPlugin(a), subcast.WithPlugin(b))

	if err := s.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want %v", err, boom)
	}
	if s.Status() != subcast.StateCrashed {
		t.Errorf("state = %s, want Crashed", s.Status())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"init:a", "init:b", "shutdown:a"}
	if !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestSubcast_ParentContextCancel(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSubcast(t, ch)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ch.waitStarted(t)
	waitForState(t, s, subcast.StateRunning)

	cancel()
	waitForState(t, s, subcast.StateStopped)
}

func TestSubcast_UpdateTuning(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSubcast(t, ch)

	bad := s.Config().Tuning()
	bad.DriftAheadThreshold = -time.Millisecond
	if err := s.UpdateTuning(bad); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("UpdateTuning(bad) error = %v, want ErrInvalidConfig", err)
	}

	tuning := s.Config().Tuning()
	tuning.TimeShift = -300 * time.Millisecond
	if err := s.UpdateTuning(tuning); err != nil {
		t.Fatalf("UpdateTuning() while stopped error = %v", err)
	}
	if got := s.Config().TimeShift; got != -300*time.Millisecond {
		t.Errorf("TimeShift = %v", got)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()
	ch.waitStarted(t)

	tuning.BufferAhead = 5 * time.Second
	if err := s.UpdateTuning(tuning); err != nil {
		t.Errorf("UpdateTuning() while running error = %v", err)
	}
	if got := s.Config().BufferAhead; got != 5*time.Second {
		t.Errorf("BufferAhead = %v", got)
	}
}
