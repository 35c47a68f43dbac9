package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/johna108/comic-sync/internal/browser"
)

// RunState is the lifecycle state of a shared browser session.
type RunState int32

const (
	// Starting means the underlying page is being acquired.
	Starting RunState = iota
	// Ready means the session accepts commands and is being sampled.
	Ready
	// Failed is terminal: acquisition or the engine itself failed.
	Failed
	// Stopped is terminal: the session was shut down on purpose.
	Stopped
)

func (s RunState) String() string {
	switch s {
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SessionConfig tunes one session's loops.
type SessionConfig struct {
	StartURL       string
	SampleInterval time.Duration
	DrainTimeout   time.Duration
	StartTimeout   time.Duration
	ViewportWidth  int
	ViewportHeight int
}

// SessionController owns one shared browser session. All mutation of the
// page flows through exactly one command-application loop, regardless of how
// many participants submit commands; a separate loop samples the rendered
// state on a fixed period and publishes it to the room. The two loops share
// the engine handle under a short mutex, since engine calls are not safe for
// concurrent invocation.
type SessionController struct {
	roomID string
	room   *Room
	engine browser.Engine
	hub    *BroadcastHub
	cfg    SessionConfig
	log    zerolog.Logger

	queue *CommandQueue
	state atomic.Int32

	typingSuppressed atomic.Bool

	// engineMu serializes all calls against the handle.
	engineMu sync.Mutex
	handle   browser.Handle

	frameMu   sync.RWMutex
	lastFrame *browser.Frame

	// urlMu guards lastURL, shared between the sampling loop, the engine
	// event loop and Submit.
	urlMu   sync.Mutex
	lastURL string

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSessionController builds a controller in the Starting state. Start must
// be called to acquire the page.
func NewSessionController(room *Room, engine browser.Engine, hub *BroadcastHub, cfg SessionConfig, logger *zerolog.Logger) *SessionController {
	ctx, cancel := context.WithCancel(context.Background())
	s := &SessionController{
		roomID: room.ID,
		room:   room,
		engine: engine,
		hub:    hub,
		cfg:    cfg,
		log:    logger.With().Str("room", room.ID).Logger(),
		queue:  NewCommandQueue(),
		ctx:    ctx,
		cancel: cancel,
	}
	s.state.Store(int32(Starting))
	return s
}

// State returns the current lifecycle state.
func (s *SessionController) State() RunState {
	return RunState(s.state.Load())
}

// Start acquires the page asynchronously. The caller's join succeeds
// immediately; the session becomes usable once it reaches Ready.
func (s *SessionController) Start() {
	go s.run()
}

func (s *SessionController) run() {
	acquireCtx, cancel := context.WithTimeout(s.ctx, s.cfg.StartTimeout)
	h, err := s.engine.Acquire(acquireCtx, s.cfg.StartURL, browser.Options{
		Width:  s.cfg.ViewportWidth,
		Height: s.cfg.ViewportHeight,
	})
	cancel()
	if err != nil {
		s.fail(ErrCodeSessionAcquireFailed, err)
		return
	}

	s.engineMu.Lock()
	s.handle = h
	s.engineMu.Unlock()

	if !s.state.CompareAndSwap(int32(Starting), int32(Ready)) {
		// Stopped while acquiring; tear the page back down. The handle
		// is taken under engineMu so releaseAfterLoops and this branch
		// cannot both release it.
		s.engineMu.Lock()
		owned := s.handle
		s.handle = nil
		s.engineMu.Unlock()
		if owned != nil {
			if err := s.engine.Release(owned); err != nil {
				s.log.Warn().Err(err).Msg("release after aborted start")
			}
		}
		return
	}

	s.log.Info().Str("url", s.cfg.StartURL).Msg("session ready")
	s.hub.Broadcast(s.roomID, &Event{Kind: EventBrowserReady, Room: s.roomID})

	s.wg.Add(3)
	go s.applyLoop(h)
	go s.sampleLoop(h)
	go s.engineEventLoop(h)
}

// Submit enqueues a command for the shared page. It is a no-op unless the
// session is Ready, and never blocks or acknowledges per command.
func (s *SessionController) Submit(cmd browser.Command) {
	if s.State() != Ready {
		return
	}
	s.queue.Enqueue(cmd)

	// Participant-initiated navigation is reflected immediately rather
	// than waiting for the next sample, matching what viewers expect
	// from an address bar. lastURL stays untouched: it tracks only what
	// the engine reports, so a sample taken while the navigate is still
	// queued sees the unchanged location and stays silent.
	if cmd.Kind == browser.CommandNavigate {
		s.room.SetCurrentURL(cmd.URL)
		s.hub.Broadcast(s.roomID, &Event{Kind: EventURLChanged, Room: s.roomID, URL: cmd.URL})
	}
}

// SetTypingSuppressed toggles suppression of URL updates while a participant
// edits the address bar. Takes effect on the next sample cycle.
func (s *SessionController) SetTypingSuppressed(suppressed bool) {
	if s.State() != Ready {
		return
	}
	s.typingSuppressed.Store(suppressed)
}

// Snapshot returns the most recent frame for late-joining participants, or
// nil if the session is not Ready or nothing has been captured yet.
func (s *SessionController) Snapshot() *browser.Frame {
	if s.State() != Ready {
		return nil
	}
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.lastFrame
}

// Stop shuts the session down. It is idempotent, returns without blocking on
// the loops, and releases the engine handle asynchronously.
func (s *SessionController) Stop() {
	s.stopOnce.Do(func() {
		for {
			st := RunState(s.state.Load())
			if st == Failed || st == Stopped {
				break
			}
			if s.state.CompareAndSwap(int32(st), int32(Stopped)) {
				break
			}
		}
		s.cancel()
		go s.releaseAfterLoops()
	})
}

func (s *SessionController) fail(code string, err error) {
	for {
		st := RunState(s.state.Load())
		if st == Failed || st == Stopped {
			return
		}
		if s.state.CompareAndSwap(int32(st), int32(Failed)) {
			break
		}
	}
	s.log.Error().Err(err).Str("code", code).Msg("session failed")
	s.hub.Broadcast(s.roomID, &Event{
		Kind:  EventBrowserError,
		Room:  s.roomID,
		Error: coreError(code, err.Error()),
	})
	s.cancel()
	go s.releaseAfterLoops()
}

func (s *SessionController) releaseAfterLoops() {
	s.wg.Wait()
	s.engineMu.Lock()
	h := s.handle
	s.handle = nil
	s.engineMu.Unlock()
	if h != nil {
		if err := s.engine.Release(h); err != nil {
			s.log.Warn().Err(err).Msg("release engine handle")
		}
	}
	s.log.Info().Str("state", s.State().String()).Msg("session released")
}

// applyLoop drains one command at a time and applies it to the page. A
// command that fails at the engine boundary is logged and the loop
// continues; one bad command never halts the controller.
func (s *SessionController) applyLoop(h browser.Handle) {
	defer s.wg.Done()
	for {
		if s.ctx.Err() != nil {
			return
		}
		cmd, ok := s.queue.DrainOne(s.cfg.DrainTimeout)
		if !ok {
			continue
		}

		s.engineMu.Lock()
		err := h.Apply(s.ctx, cmd)
		s.engineMu.Unlock()

		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if errors.Is(err, browser.ErrEngineGone) {
				s.fail(ErrCodeEngineFatal, err)
				return
			}
			s.log.Warn().Err(err).Int("kind", int(cmd.Kind)).Msg("command apply failed")
		}
	}
}

// sampleLoop captures the page on a fixed period and fans the result out.
func (s *SessionController) sampleLoop(h browser.Handle) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		s.engineMu.Lock()
		frame, err := h.Capture(s.ctx)
		s.engineMu.Unlock()

		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if errors.Is(err, browser.ErrEngineGone) {
				s.fail(ErrCodeEngineFatal, err)
				return
			}
			s.log.Warn().Err(err).Msg("capture failed")
			continue
		}

		frame.CapturedAt = time.Now()
		s.publishSample(frame)
	}
}

func (s *SessionController) publishSample(frame browser.Frame) {
	s.frameMu.Lock()
	stored := frame
	s.lastFrame = &stored
	s.frameMu.Unlock()

	s.noteURL(frame.URL)

	// While a participant edits the address bar, the location field is
	// withheld so their in-progress text is never overwritten.
	published := frame
	if s.typingSuppressed.Load() {
		published.URL = ""
	}
	s.hub.Broadcast(s.roomID, &Event{Kind: EventFrame, Room: s.roomID, Frame: &published})
	s.hub.Broadcast(s.roomID, &Event{Kind: EventPageInfo, Room: s.roomID, Frame: &published})
}

// noteURL records a page location observed by the sampling loop or the
// engine event stream, emitting url-changed when the page navigated itself.
// Suppressed observations are deliberately not recorded, so the first sample
// after suppression ends re-detects and publishes the change.
func (s *SessionController) noteURL(url string) {
	if url == "" || s.typingSuppressed.Load() {
		return
	}
	s.urlMu.Lock()
	prev := s.lastURL
	if url == prev {
		s.urlMu.Unlock()
		return
	}
	s.lastURL = url
	s.urlMu.Unlock()

	s.room.SetCurrentURL(url)
	if prev != "" {
		s.hub.Broadcast(s.roomID, &Event{Kind: EventURLChanged, Room: s.roomID, URL: url})
	}
}

// engineEventLoop surfaces engine-originated events to the room.
func (s *SessionController) engineEventLoop(h browser.Handle) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-h.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case browser.EventURLChanged:
				s.noteURL(ev.URL)
			case browser.EventLoading:
				s.hub.Broadcast(s.roomID, &Event{Kind: EventLoadingState, Room: s.roomID, Loading: ev.Loading})
			case browser.EventDialog:
				s.hub.Broadcast(s.roomID, &Event{Kind: EventDialog, Room: s.roomID, DialogType: ev.DialogType, Text: ev.Message})
			case browser.EventDownload:
				s.hub.Broadcast(s.roomID, &Event{Kind: EventDownload, Room: s.roomID, URL: ev.URL, Filename: ev.Filename})
			case browser.EventFatal:
				s.fail(ErrCodeEngineFatal, ev.Err)
				return
			}
		}
	}
}
