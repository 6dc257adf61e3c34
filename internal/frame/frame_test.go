package frame

import (
	"errors"
	"testing"

	"github.com/bft-labs/subcast/internal/ports"
	"github.com/bft-labs/subcast/internal/ports/portstest"
)

// manualPreloader holds completions until the test releases them.
type manualPreloader struct {
	aborted bool
	pending map[string]func(ports.Asset, error)
	order   []string
}

func newManualPreloader() *manualPreloader {
	return &manualPreloader{pending: make(map[string]func(ports.Asset, error))}
}

func (m *manualPreloader) Preload(src string, done func(ports.Asset, error)) {
	m.pending[src] = done
	m.order = append(m.order, src)
}

func (m *manualPreloader) Aborted() bool { return m.aborted }

func (m *manualPreloader) finish(src string, img ports.Asset, err error) {
	done := m.pending[src]
	delete(m.pending, src)
	done(img, err)
}

func TestFrame_ReadyRequiresCountAndPreload(t *testing.T) {
	p := newManualPreloader()
	f := New(1000, 2, 0, 0)

	f.Add(10, 20, "a.png")
	if f.Ready() {
		t.Fatal("Ready() with 1 of 2 fragments")
	}
	f.Preload(p, nil)
	f.Add(30, 40, "b.png")
	if f.Fragments() != 2 {
		t.Fatalf("Fragments() = %d, want 2", f.Fragments())
	}
	if len(p.order) != 2 {
		t.Fatalf("preloads started = %v, want both captions", p.order)
	}
	if f.Ready() {
		t.Fatal("Ready() before assets preloaded")
	}

	p.finish("a.png", portstest.Image(4, 4), nil)
	if f.Ready() {
		t.Fatal("Ready() with one caption still loading")
	}
	p.finish("b.png", portstest.Image(4, 4), nil)
	if !f.Ready() {
		t.Fatal("Ready() = false after all captions preloaded")
	}
	for _, c := range f.Captions() {
		if c.Data() != "" {
			t.Errorf("caption data retained after preload: %q", c.Data())
		}
	}
}

func TestFrame_ClearRegionsCountTowardsReady(t *testing.T) {
	f := New(500, 2, 0, 0)
	f.AddClearRegion(0, 0, 10, 10)
	f.AddClearRegion(10, 10, 10, 10)
	if !f.Ready() {
		t.Error("frame with only clear regions should be ready once complete")
	}
}

func TestFrame_WipeAlwaysReady(t *testing.T) {
	f := NewWipe(100)
	if !f.IsWipe() || !f.Ready() {
		t.Fatalf("wipe frame IsWipe=%v Ready=%v", f.IsWipe(), f.Ready())
	}

	s := portstest.NewSurface(1920, 1080)
	shown, err := f.Show(s)
	if err != nil || !shown {
		t.Fatalf("Show() = %v, %v", shown, err)
	}
	if ops := s.Ops(); len(ops) != 1 || ops[0].Kind != "clear" {
		t.Errorf("ops = %v, want [clear]", ops)
	}
}

func TestFrame_ShowOrder(t *testing.T) {
	p := newManualPreloader()
	f := New(0, 3, 1280, 720)
	f.AddClearRegion(1, 2, 3, 4)
	f.Add(5, 6, "x")
	f.Add(7, 8, "y")
	f.Preload(p, nil)
	p.finish("x", portstest.Image(2, 2), nil)
	p.finish("y", portstest.Image(2, 2), nil)

	s := portstest.NewSurface(1920, 1080)
	shown, err := f.Show(s)
	if err != nil || !shown {
		t.Fatalf("Show() = %v, %v", shown, err)
	}

	want := []string{"resize(1280,720)", "clearRect(1,2,3,4)", "draw(5,6)", "draw(7,8)"}
	ops := s.Ops()
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i].String() != want[i] {
			t.Errorf("ops[%d] = %s, want %s", i, ops[i], want[i])
		}
	}

	s.Reset()
	f.Show(s)
	if s.Count("draw") != 0 {
		t.Errorf("second Show drew %d captions, want 0", s.Count("draw"))
	}
}

func TestFrame_NoResizeWhenSizeMatches(t *testing.T) {
	f := New(0, 1, 1920, 1080)
	f.AddClearRegion(0, 0, 1, 1)

	s := portstest.NewSurface(1920, 1080)
	f.Show(s)
	if s.Count("resize") != 0 {
		t.Error("surface resized to its current size")
	}
}

func TestFrame_NotReadyShowIsNoop(t *testing.T) {
	f := New(0, 2, 0, 0)
	f.Add(0, 0, "x")

	s := portstest.NewSurface(10, 10)
	shown, err := f.Show(s)
	if shown || err != nil {
		t.Errorf("Show() = %v, %v; want false, nil", shown, err)
	}
	if len(s.Ops()) != 0 {
		t.Errorf("not-ready frame painted %v", s.Ops())
	}
}

func TestCaption_LoadFailure(t *testing.T) {
	p := newManualPreloader()
	f := New(0, 1, 0, 0)
	f.Add(0, 0, "broken")

	var failed *Caption
	f.Preload(p, func(c *Caption, err error) { failed = c })

	boom := errors.New("404")
	p.finish("broken", nil, boom)

	if failed == nil || !errors.Is(failed.Err(), boom) {
		t.Fatalf("failure not reported, got %v", failed)
	}
	if f.Ready() {
		t.Error("frame ready despite failed caption")
	}
}

func TestCaption_EmptyResultAfterAbort(t *testing.T) {
	p := newManualPreloader()
	f := New(0, 1, 0, 0)
	f.Add(0, 0, "x")
	f.Preload(p, nil)

	p.aborted = true
	p.finish("x", portstest.Image(1, 1), nil)
	if f.Ready() {
		t.Error("caption accepted an asset after abort")
	}
}

func TestFrame_PreloadOnce(t *testing.T) {
	p := newManualPreloader()
	f := New(0, 1, 0, 0)
	f.Add(0, 0, "x")
	f.Preload(p, nil)
	f.Preload(p, nil)

	if len(p.order) != 1 {
		t.Errorf("preload submissions = %d, want 1", len(p.order))
	}
	if !f.PreloadRequested() {
		t.Error("PreloadRequested() = false")
	}
}
