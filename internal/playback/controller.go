// Package playback drives continuous, interruptible reading of a segmented
// document: it pulls audio from the cache or the synthesis backend and feeds
// one block at a time to an output sink.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/readaloud/internal/cache"
	"github.com/snarg/readaloud/internal/metrics"
	"github.com/snarg/readaloud/internal/segment"
	"github.com/snarg/readaloud/internal/synth"
)

// ErrIndexOutOfRange is returned by JumpTo for an index outside the
// segmented document.
var ErrIndexOutOfRange = errors.New("block index out of range")

// Sink plays one decoded audio buffer. Play blocks until the audio ends or
// ctx is cancelled; a cancelled play returns ctx.Err().
type Sink interface {
	Play(ctx context.Context, audio []byte) error
}

// Options configures a Controller.
type Options struct {
	Provider      synth.Provider
	Cache         *cache.Cache
	Sink          Sink
	Voice         string
	Speed         float64
	MaxBlockLen   int
	PrefetchDelay time.Duration
	Log           zerolog.Logger
}

// Snapshot is an observable copy of the session state.
type Snapshot struct {
	State        State  `json:"state"`
	CurrentIndex int    `json:"current_index"`
	Total        int    `json:"total"`
	Processing   bool   `json:"processing"`
	LastError    string `json:"last_error,omitempty"`
}

// Controller is the playback state machine. One controller owns one cache
// and one sink; all transitions are serialized by its mutex. Every logical
// "advance" carries its own cancellation token (a generation number plus a
// context), so a stale fetch or a stopped source can never mutate state that
// a newer operation already owns.
type Controller struct {
	provider      synth.Provider
	cache         *cache.Cache
	sink          Sink
	voice         string
	speed         float64
	maxBlockLen   int
	prefetchDelay time.Duration
	log           zerolog.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu           sync.Mutex
	state        State
	sentences    []segment.Block
	currentIndex int
	processing   bool
	lastErr      error

	gen      int // bumped by every transition that invalidates in-flight work
	session  int // bumped when the document changes; guards stale prefetch writes
	cancelOp context.CancelFunc
	srcDone  chan struct{} // closed when the active source's Play returns

	prefetchInflight map[string]bool
}

// New creates an idle Controller.
func New(opts Options) *Controller {
	if opts.Cache == nil {
		opts.Cache = cache.New(cache.DefaultCapacity)
	}
	if opts.Cache.OnEvict == nil {
		opts.Cache.OnEvict = func(string) { metrics.CacheEvictionsTotal.Inc() }
	}
	if opts.MaxBlockLen <= 0 {
		opts.MaxBlockLen = segment.DefaultMaxBlockLen
	}
	if opts.Speed == 0 {
		opts.Speed = 1.0
	}
	if opts.PrefetchDelay <= 0 {
		opts.PrefetchDelay = 250 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		provider:         opts.Provider,
		cache:            opts.Cache,
		sink:             opts.Sink,
		voice:            opts.Voice,
		speed:            opts.Speed,
		maxBlockLen:      opts.MaxBlockLen,
		prefetchDelay:    opts.PrefetchDelay,
		log:              opts.Log,
		rootCtx:          ctx,
		rootCancel:       cancel,
		state:            StateIdle,
		prefetchInflight: make(map[string]bool),
	}
}

// Close cancels all outstanding work. The controller is unusable afterwards.
func (c *Controller) Close() {
	c.Stop()
	c.rootCancel()
}

// SetText segments a new document, resets position, clears the cache and
// re-enters Idle. Prefetch of the first two blocks starts immediately.
func (c *Controller) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextGenLocked()
	c.session++
	c.sentences = segment.Segment(text, c.maxBlockLen)
	c.currentIndex = 0
	c.processing = false
	c.lastErr = nil
	c.state = StateIdle
	c.cache.Clear()

	c.schedulePrefetchLocked(0, 0)
	c.schedulePrefetchLocked(1, c.prefetchDelay)
}

// TogglePlay starts playback from the current block, or pauses it. Pausing
// stops the active source without auto-advancing. A Stopped session stays
// stopped until SetText.
func (c *Controller) TogglePlay() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePlaying, StateProcessing:
		c.nextGenLocked()
		c.processing = false
		c.state = StatePaused
	case StateIdle, StatePaused:
		if len(c.sentences) == 0 {
			return
		}
		c.startCurrentLocked()
	}
}

// SkipForward moves one block ahead, cancelling any in-flight fetch and
// stopping the active source.
func (c *Controller) SkipForward() { c.skip(1) }

// SkipBackward moves one block back.
func (c *Controller) SkipBackward() { c.skip(-1) }

func (c *Controller) skip(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.sentences) == 0 {
		return
	}
	resume := c.state == StatePlaying || c.state == StateProcessing
	c.nextGenLocked()
	c.processing = false

	idx := c.currentIndex + delta
	if idx < 0 {
		idx = 0
	}
	if idx > len(c.sentences)-1 {
		idx = len(c.sentences) - 1
	}
	c.currentIndex = idx

	if resume {
		c.startCurrentLocked()
	} else {
		c.state = StatePaused
		c.schedulePrefetchLocked(c.currentIndex+1, c.prefetchDelay)
	}
}

// JumpTo moves to an arbitrary block, optionally starting playback there.
func (c *Controller) JumpTo(i int, autoplay bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.sentences) {
		return ErrIndexOutOfRange
	}
	c.nextGenLocked()
	c.processing = false
	c.currentIndex = i

	if autoplay {
		c.startCurrentLocked()
	} else {
		c.state = StatePaused
		c.schedulePrefetchLocked(c.currentIndex+1, c.prefetchDelay)
	}
	return nil
}

// Stop cancels everything, clears the document and returns to Idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextGenLocked()
	c.session++
	c.sentences = nil
	c.currentIndex = 0
	c.processing = false
	c.lastErr = nil
	c.state = StateIdle
}

// Snapshot returns an observable copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:        c.state,
		CurrentIndex: c.currentIndex,
		Total:        len(c.sentences),
		Processing:   c.processing,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// CachedBlocks reports how many audio buffers the session cache holds.
func (c *Controller) CachedBlocks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Blocks returns a copy of the segmented document.
func (c *Controller) Blocks() []segment.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]segment.Block, len(c.sentences))
	copy(out, c.sentences)
	return out
}

// nextGenLocked invalidates the current operation: it cancels the in-flight
// fetch and active source and bumps the generation so their callbacks no-op.
func (c *Controller) nextGenLocked() int {
	if c.cancelOp != nil {
		c.cancelOp()
		c.cancelOp = nil
	}
	c.gen++
	return c.gen
}

// startCurrentLocked begins fetch/playback of sentences[currentIndex] under
// a fresh operation token.
func (c *Controller) startCurrentLocked() {
	gen := c.nextGenLocked()
	ctx, cancel := context.WithCancel(c.rootCtx)
	c.cancelOp = cancel

	text := c.sentences[c.currentIndex].Text
	if audio, ok := c.cache.Get(text); ok {
		metrics.CacheHitsTotal.Inc()
		c.state = StatePlaying
		c.schedulePrefetchLocked(c.currentIndex+1, c.prefetchDelay)
		c.startSourceLocked(ctx, gen, audio)
		return
	}

	metrics.CacheMissesTotal.Inc()
	c.state = StateProcessing
	c.processing = true
	go c.fetchAndPlay(ctx, gen, text)
}

// fetchAndPlay synthesizes the current block and, if still current, caches
// it and starts the source.
func (c *Controller) fetchAndPlay(ctx context.Context, gen int, text string) {
	audio, err := c.provider.Synthesize(ctx, synth.Request{Text: text, Voice: c.voice, Speed: c.speed})
	metrics.SynthRequestsTotal.WithLabelValues(synthOutcome(err)).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		// Superseded by a newer operation; the result is dropped and the
		// cache is left untouched.
		return
	}
	c.processing = false

	if err != nil {
		if errors.Is(err, synth.ErrCancelled) {
			return
		}
		c.lastErr = err
		c.state = StatePaused
		c.log.Warn().Err(err).Int("index", c.currentIndex).Msg("synthesis failed, playback paused")
		return
	}

	c.cache.Set(text, audio)
	c.state = StatePlaying
	c.schedulePrefetchLocked(c.currentIndex+1, c.prefetchDelay)
	c.startSourceLocked(ctx, gen, audio)
}

// startSourceLocked hands one buffer to the sink. The new source first waits
// for the previous source's Play call to return, so the sink never sees two
// active sources even across a skip that interrupts mid-play.
func (c *Controller) startSourceLocked(ctx context.Context, gen int, audio []byte) {
	prev := c.srcDone
	done := make(chan struct{})
	c.srcDone = done
	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		if ctx.Err() != nil {
			return
		}
		c.playSource(ctx, gen, audio)
	}()
}

// playSource runs the sink for one buffer and handles its "ended" event.
func (c *Controller) playSource(ctx context.Context, gen int, audio []byte) {
	err := c.sink.Play(ctx, audio)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != StatePlaying {
		// An interrupted source never advances.
		return
	}
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.lastErr = err
		c.state = StatePaused
		c.log.Warn().Err(err).Int("index", c.currentIndex).Msg("audio sink failed")
		return
	}

	if c.currentIndex >= len(c.sentences)-1 {
		c.state = StateStopped
		c.cancelOp = nil
		return
	}
	c.currentIndex++
	c.startCurrentLocked()
}

// schedulePrefetchLocked issues a best-effort background synthesis of block
// idx after delay. Failures only cost latency on the next advance, so they
// are logged at debug and swallowed.
func (c *Controller) schedulePrefetchLocked(idx int, delay time.Duration) {
	if c.provider == nil || idx < 0 || idx >= len(c.sentences) {
		return
	}
	text := c.sentences[idx].Text
	if c.cache.Has(text) || c.prefetchInflight[text] {
		return
	}
	c.prefetchInflight[text] = true
	go c.prefetch(c.session, text, delay)
}

func (c *Controller) prefetch(session int, text string, delay time.Duration) {
	if delay > 0 {
		select {
		case <-c.rootCtx.Done():
			c.clearPrefetch(text)
			return
		case <-time.After(delay):
		}
	}

	c.mu.Lock()
	if session != c.session || c.cache.Has(text) {
		delete(c.prefetchInflight, text)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	audio, err := c.provider.Synthesize(c.rootCtx, synth.Request{Text: text, Voice: c.voice, Speed: c.speed})
	metrics.SynthRequestsTotal.WithLabelValues(synthOutcome(err)).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.prefetchInflight, text)
	if err != nil {
		if !errors.Is(err, synth.ErrCancelled) {
			c.log.Debug().Err(err).Msg("prefetch failed")
		}
		return
	}
	if session == c.session {
		c.cache.Set(text, audio)
	}
}

func (c *Controller) clearPrefetch(text string) {
	c.mu.Lock()
	delete(c.prefetchInflight, text)
	c.mu.Unlock()
}

// synthOutcome maps a synthesis result to its metric label.
func synthOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, synth.ErrCancelled):
		return "cancelled"
	default:
		return "failed"
	}
}
