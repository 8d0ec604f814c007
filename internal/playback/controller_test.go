package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/readaloud/internal/cache"
	"github.com/snarg/readaloud/internal/synth"
)

// fakeSink records plays. When blocking, Play holds until ctx cancellation.
type fakeSink struct {
	blocking bool

	mu     sync.Mutex
	played []string

	concurrent    atomic.Int32
	maxConcurrent atomic.Int32
}

func (s *fakeSink) Play(ctx context.Context, audio []byte) error {
	cur := s.concurrent.Add(1)
	defer s.concurrent.Add(-1)
	for {
		max := s.maxConcurrent.Load()
		if cur <= max || s.maxConcurrent.CompareAndSwap(max, cur) {
			break
		}
	}

	s.mu.Lock()
	s.played = append(s.played, string(audio))
	s.mu.Unlock()

	if s.blocking {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (s *fakeSink) playedBlocks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.played))
	copy(out, s.played)
	return out
}

func newTestController(t *testing.T, provider synth.Provider, sink Sink) (*Controller, *cache.Cache) {
	t.Helper()
	c := cache.New(10)
	ctrl := New(Options{
		Provider:      provider,
		Cache:         c,
		Sink:          sink,
		Voice:         "test-voice",
		PrefetchDelay: time.Hour, // keep delayed prefetch out of short tests
		Log:           zerolog.Nop(),
	})
	t.Cleanup(ctrl.Close)
	return ctrl, c
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

const threeBlocks = "First block.\n\nSecond block.\n\nThird block."

func TestController_AutoAdvanceToStopped(t *testing.T) {
	provider := &synth.MockProvider{}
	sink := &fakeSink{}
	ctrl, _ := newTestController(t, provider, sink)

	ctrl.SetText(threeBlocks)
	if s := ctrl.Snapshot(); s.State != StateIdle || s.Total != 3 {
		t.Fatalf("after SetText: %+v", s)
	}

	ctrl.TogglePlay()
	waitFor(t, "stopped state", func() bool { return ctrl.Snapshot().State == StateStopped })

	got := sink.playedBlocks()
	want := []string{"First block.", "Second block.", "Third block."}
	if len(got) != len(want) {
		t.Fatalf("played %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("play %d = %q, want %q", i, got[i], want[i])
		}
	}
	if idx := ctrl.Snapshot().CurrentIndex; idx != 2 {
		t.Errorf("final index = %d, want 2", idx)
	}
}

func TestController_TogglePauses(t *testing.T) {
	provider := &synth.MockProvider{}
	sink := &fakeSink{blocking: true}
	ctrl, _ := newTestController(t, provider, sink)

	ctrl.SetText(threeBlocks)
	ctrl.TogglePlay()
	waitFor(t, "playing state", func() bool { return ctrl.Snapshot().State == StatePlaying })

	ctrl.TogglePlay()
	s := ctrl.Snapshot()
	if s.State != StatePaused {
		t.Fatalf("state = %s, want paused", s.State)
	}
	if s.CurrentIndex != 0 {
		t.Errorf("index = %d, want 0", s.CurrentIndex)
	}

	// The interrupted source's ended event must not advance.
	time.Sleep(30 * time.Millisecond)
	if s := ctrl.Snapshot(); s.CurrentIndex != 0 || s.State != StatePaused {
		t.Errorf("after pause settle: %+v", s)
	}

	// Resume picks the same block up again (now cached).
	ctrl.TogglePlay()
	waitFor(t, "playing again", func() bool { return ctrl.Snapshot().State == StatePlaying })
	// The sink runs on a goroutine that first waits out the previous source,
	// so the second play lands shortly after the state flips to playing.
	waitFor(t, "second play", func() bool { return len(sink.playedBlocks()) >= 2 })
	if n := len(sink.playedBlocks()); n != 2 {
		t.Errorf("plays = %d, want 2", n)
	}
}

func TestController_SkipCancelsInFlightFetch(t *testing.T) {
	provider := &synth.MockProvider{Delay: 5 * time.Second}
	sink := &fakeSink{}
	ctrl, c := newTestController(t, provider, sink)

	ctrl.SetText(threeBlocks)
	ctrl.TogglePlay()
	waitFor(t, "processing state", func() bool { return ctrl.Snapshot().State == StateProcessing })

	ctrl.SkipForward()

	s := ctrl.Snapshot()
	if s.CurrentIndex != 1 {
		t.Errorf("index = %d, want 1", s.CurrentIndex)
	}
	// The aborted fetch must never populate the cache or advance playback.
	time.Sleep(20 * time.Millisecond)
	if c.Has("First block.") {
		t.Error("cancelled fetch updated the cache")
	}
	if idx := ctrl.Snapshot().CurrentIndex; idx != 1 {
		t.Errorf("index moved after cancelled fetch: %d", idx)
	}
}

func TestController_SkipClampsAtBounds(t *testing.T) {
	provider := &synth.MockProvider{Delay: time.Hour}
	ctrl, _ := newTestController(t, provider, &fakeSink{})

	ctrl.SetText(threeBlocks)
	ctrl.SkipBackward()
	if idx := ctrl.Snapshot().CurrentIndex; idx != 0 {
		t.Errorf("index = %d, want 0", idx)
	}
	for i := 0; i < 10; i++ {
		ctrl.SkipForward()
	}
	if idx := ctrl.Snapshot().CurrentIndex; idx != 2 {
		t.Errorf("index = %d, want 2", idx)
	}
}

func TestController_SkipOnEmptySessionIsNoop(t *testing.T) {
	ctrl, _ := newTestController(t, &synth.MockProvider{}, &fakeSink{})
	ctrl.SkipForward()
	ctrl.SkipBackward()
	if s := ctrl.Snapshot(); s.State != StateIdle || s.CurrentIndex != 0 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestController_SingleActiveSource(t *testing.T) {
	provider := &synth.MockProvider{}
	sink := &fakeSink{blocking: true}
	ctrl, _ := newTestController(t, provider, sink)

	ctrl.SetText("One.\n\nTwo.\n\nThree.\n\nFour.\n\nFive.")
	ctrl.TogglePlay()
	waitFor(t, "first play", func() bool { return len(sink.playedBlocks()) >= 1 })

	for i := 0; i < 4; i++ {
		ctrl.SkipForward()
		time.Sleep(5 * time.Millisecond)
	}
	ctrl.Stop()

	if max := sink.maxConcurrent.Load(); max > 1 {
		t.Errorf("observed %d concurrent active sources, want at most 1", max)
	}
}

func TestController_JumpTo(t *testing.T) {
	provider := &synth.MockProvider{}
	sink := &fakeSink{blocking: true}
	ctrl, _ := newTestController(t, provider, sink)
	ctrl.SetText(threeBlocks)

	if err := ctrl.JumpTo(5, false); err != ErrIndexOutOfRange {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}

	if err := ctrl.JumpTo(2, false); err != nil {
		t.Fatal(err)
	}
	if s := ctrl.Snapshot(); s.State != StatePaused || s.CurrentIndex != 2 {
		t.Errorf("snapshot = %+v", s)
	}

	if err := ctrl.JumpTo(1, true); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "autoplay", func() bool { return ctrl.Snapshot().State == StatePlaying })
	played := sink.playedBlocks()
	if len(played) == 0 || played[len(played)-1] != "Second block." {
		t.Errorf("played = %v", played)
	}
}

func TestController_StopResets(t *testing.T) {
	provider := &synth.MockProvider{}
	sink := &fakeSink{blocking: true}
	ctrl, _ := newTestController(t, provider, sink)

	ctrl.SetText(threeBlocks)
	ctrl.TogglePlay()
	waitFor(t, "playing", func() bool { return ctrl.Snapshot().State == StatePlaying })

	ctrl.Stop()
	if s := ctrl.Snapshot(); s.State != StateIdle || s.CurrentIndex != 0 || s.Total != 0 {
		t.Errorf("snapshot after stop = %+v", s)
	}
	// Stopped session ignores toggles until new text arrives.
	ctrl.TogglePlay()
	if s := ctrl.Snapshot(); s.State != StateIdle {
		t.Errorf("state = %s, want idle", s.State)
	}
}

func TestController_SetTextClearsCache(t *testing.T) {
	provider := &synth.MockProvider{}
	ctrl, c := newTestController(t, provider, &fakeSink{})

	ctrl.SetText(threeBlocks)
	waitFor(t, "prefetch of first block", func() bool {
		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		return c.Has("First block.")
	})

	ctrl.SetText("Entirely new document.")
	ctrl.mu.Lock()
	stale := c.Has("First block.")
	ctrl.mu.Unlock()
	if stale {
		t.Error("cache kept audio from previous document")
	}
}

func TestController_SynthesisFailurePausesSession(t *testing.T) {
	provider := &synth.MockProvider{FailFirst: 1}
	sink := &fakeSink{}
	ctrl, _ := newTestController(t, provider, sink)

	// Suppress the immediate prefetch hiding the foreground failure: use a
	// document whose first block the prefetch also fails on, then play.
	ctrl.SetText(threeBlocks)
	ctrl.TogglePlay()

	waitFor(t, "recovery or pause", func() bool {
		s := ctrl.Snapshot()
		return s.State == StatePaused || s.State == StateStopped
	})
	// Retrying by toggling again succeeds (mock only fails once).
	ctrl.TogglePlay()
	waitFor(t, "finished", func() bool { return ctrl.Snapshot().State == StateStopped })
}
