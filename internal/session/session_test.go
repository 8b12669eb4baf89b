package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blockdeck/blockdeck/internal/events"
	"github.com/blockdeck/blockdeck/internal/registry"
)

// fakeRenderer renders instantly unless a gate is registered for the
// file's path, in which case it blocks until the gate is released.
type fakeRenderer struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	fail  map[string]bool
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		gates: make(map[string]chan struct{}),
		fail:  make(map[string]bool),
	}
}

func (f *fakeRenderer) gate(path string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[path] = g
	return g
}

func (f *fakeRenderer) Render(_ context.Context, _ string, file registry.BlockFile) (string, error) {
	f.mu.Lock()
	g := f.gates[file.Path]
	fail := f.fail[file.Path]
	f.mu.Unlock()

	if g != nil {
		<-g
	}
	if fail {
		return "", errors.New("fetch failed")
	}
	return "<pre>" + file.Path + "</pre>", nil
}

func testBlock() *registry.Block {
	return &registry.Block{
		Name:     "hero-01",
		Title:    "Hero 01",
		Category: "hero",
		Files: []registry.BlockFile{
			{Path: "hero-01.tsx"},
			{Path: "hero-01.css", Target: "hero-01.css"},
		},
	}
}

// waitFor polls the session until cond is satisfied or the deadline hits.
func waitFor(t *testing.T, s *Store, id string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := s.Get(id)
		if !ok {
			t.Fatal("session disappeared")
		}
		if cond(snap) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap, _ := s.Get(id)
	t.Fatalf("condition not met in time; last state: %+v", snap)
	return Snapshot{}
}

func TestOpenDefaults(t *testing.T) {
	s := NewStore(newFakeRenderer(), nil, 0)
	snap := s.Open(testBlock())

	if snap.ActiveFile.Path != "hero-01.tsx" {
		t.Errorf("expected first file active, got %s", snap.ActiveFile.Path)
	}
	if snap.ScreenSize != ScreenDesktop {
		t.Errorf("expected desktop default, got %s", snap.ScreenSize)
	}
	if snap.Preview.State != StateLoading {
		t.Errorf("expected loading preview, got %s", snap.Preview.State)
	}
	if snap.Preview.HTML != "" {
		t.Error("loading preview must not carry content")
	}
}

func TestInitialRenderCompletes(t *testing.T) {
	s := NewStore(newFakeRenderer(), nil, 0)
	snap := s.Open(testBlock())

	got := waitFor(t, s, snap.ID, func(sn Snapshot) bool {
		return sn.Preview.State == StateReady
	})
	if got.Preview.HTML != "<pre>hero-01.tsx</pre>" {
		t.Errorf("unexpected preview HTML %q", got.Preview.HTML)
	}
}

func TestSelectFileReplacesActive(t *testing.T) {
	s := NewStore(newFakeRenderer(), nil, 0)
	b := testBlock()
	snap := s.Open(b)

	got, ok := s.SelectFile(snap.ID, b.Files[1])
	if !ok {
		t.Fatal("session not found")
	}
	if got.ActiveFile.Path != "hero-01.css" {
		t.Errorf("expected hero-01.css active, got %s", got.ActiveFile.Path)
	}
	if got.Preview.State != StateLoading {
		t.Errorf("selection must reset preview to loading, got %s", got.Preview.State)
	}

	final := waitFor(t, s, snap.ID, func(sn Snapshot) bool {
		return sn.Preview.State == StateReady
	})
	if final.Preview.File.Path != "hero-01.css" {
		t.Errorf("expected css preview, got %s", final.Preview.File.Path)
	}
}

func TestLastSelectedWins(t *testing.T) {
	r := newFakeRenderer()
	b := testBlock()

	// Hold up the render for the first file so it finishes after the
	// second selection's render.
	gate := r.gate("hero-01.tsx")

	s := NewStore(r, nil, 0)
	snap := s.Open(b)

	// The initial fetch (hero-01.tsx) is in flight. Select the css
	// file; its render completes immediately.
	if _, ok := s.SelectFile(snap.ID, b.Files[1]); !ok {
		t.Fatal("session not found")
	}
	got := waitFor(t, s, snap.ID, func(sn Snapshot) bool {
		return sn.Preview.State == StateReady
	})
	if got.Preview.File.Path != "hero-01.css" {
		t.Fatalf("expected css preview, got %s", got.Preview.File.Path)
	}

	// Now let the stale tsx render complete. It must be discarded.
	close(gate)
	time.Sleep(50 * time.Millisecond)

	final, _ := s.Get(snap.ID)
	if final.Preview.File.Path != "hero-01.css" {
		t.Errorf("stale result overwrote display: %s", final.Preview.File.Path)
	}
	if final.Preview.HTML != "<pre>hero-01.css</pre>" {
		t.Errorf("unexpected HTML %q", final.Preview.HTML)
	}
}

func TestReselectionDuringFlight(t *testing.T) {
	r := newFakeRenderer()
	b := testBlock()

	s := NewStore(r, nil, 0)
	snap := s.Open(b)
	waitFor(t, s, snap.ID, func(sn Snapshot) bool { return sn.Preview.State == StateReady })

	// Select css (gated), then reselect tsx before css resolves.
	cssGate := r.gate("hero-01.css")
	s.SelectFile(snap.ID, b.Files[1])
	s.SelectFile(snap.ID, b.Files[0])

	got := waitFor(t, s, snap.ID, func(sn Snapshot) bool {
		return sn.Preview.State == StateReady
	})
	if got.Preview.File.Path != "hero-01.tsx" {
		t.Fatalf("expected tsx preview, got %s", got.Preview.File.Path)
	}

	// Late css result must not displace the tsx content.
	close(cssGate)
	time.Sleep(50 * time.Millisecond)

	final, _ := s.Get(snap.ID)
	if final.Preview.File.Path != "hero-01.tsx" {
		t.Errorf("late css result overwrote tsx preview")
	}
}

func TestFetchFailureIsDistinctState(t *testing.T) {
	r := newFakeRenderer()
	r.fail["hero-01.tsx"] = true

	s := NewStore(r, nil, 0)
	snap := s.Open(testBlock())

	got := waitFor(t, s, snap.ID, func(sn Snapshot) bool {
		return sn.Preview.State != StateLoading
	})
	if got.Preview.State != StateFailed {
		t.Fatalf("expected failed state, got %s", got.Preview.State)
	}
	if got.Preview.HTML != "" {
		t.Error("failed preview must not carry content")
	}
	if got.Preview.Error == "" {
		t.Error("expected an error message")
	}
}

func TestSetScreenSize(t *testing.T) {
	s := NewStore(newFakeRenderer(), nil, 0)
	snap := s.Open(testBlock())

	got, ok := s.SetScreenSize(snap.ID, ScreenMobile)
	if !ok {
		t.Fatal("session not found")
	}
	if got.ScreenSize != ScreenMobile {
		t.Errorf("expected mobile, got %s", got.ScreenSize)
	}
	// Screen size changes do not reset the preview.
	if got.ActiveFile.Path != "hero-01.tsx" {
		t.Errorf("active file changed unexpectedly")
	}
}

func TestCloseAndExpiry(t *testing.T) {
	s := NewStore(newFakeRenderer(), nil, 0)
	snap := s.Open(testBlock())

	if !s.Close(snap.ID) {
		t.Fatal("Close returned false for live session")
	}
	if _, ok := s.Get(snap.ID); ok {
		t.Error("closed session still readable")
	}
	if s.Close(snap.ID) {
		t.Error("Close returned true for missing session")
	}
}

func TestSweep(t *testing.T) {
	s := NewStore(newFakeRenderer(), nil, 0)
	a := s.Open(testBlock())
	b := s.Open(testBlock())

	// Make session a look stale.
	s.mu.Lock()
	s.sessions[a.ID].lastUsed = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	if n := s.Sweep(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if _, ok := s.Get(a.ID); ok {
		t.Error("stale session survived sweep")
	}
	if _, ok := s.Get(b.ID); !ok {
		t.Error("fresh session was swept")
	}
}

func TestEventsPublished(t *testing.T) {
	broadcaster := events.NewBroadcaster()
	ch := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(ch)

	s := NewStore(newFakeRenderer(), broadcaster, 0)
	snap := s.Open(testBlock())
	waitFor(t, s, snap.ID, func(sn Snapshot) bool { return sn.Preview.State == StateReady })

	select {
	case e := <-ch:
		if e.Type != events.EventContentReady || e.SessionID != snap.ID {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no content_ready event")
	}
}

func TestValidScreenSize(t *testing.T) {
	for _, ok := range []ScreenSize{ScreenMobile, ScreenTablet, ScreenDesktop} {
		if !ValidScreenSize(ok) {
			t.Errorf("%s should be valid", ok)
		}
	}
	if ValidScreenSize("widescreen") {
		t.Error("widescreen should be invalid")
	}
}
