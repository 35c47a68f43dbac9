// Package chrome implements the browser.Engine interface on top of a
// headless Chrome instance driven through chromedp.
package chrome

import (
	"context"
	"fmt"
	"sync"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog"

	"github.com/johna108/comic-sync/internal/browser"
)

const scrollMetricsJS = `({
	x: window.pageXOffset || 0,
	y: window.pageYOffset || 0,
	maxX: Math.max(0, (document.documentElement.scrollWidth || 0) - window.innerWidth),
	maxY: Math.max(0, (document.documentElement.scrollHeight || 0) - window.innerHeight),
	pageWidth: document.documentElement.scrollWidth || 0,
	pageHeight: document.documentElement.scrollHeight || 0
})`

// Engine launches one headless Chrome per acquired page.
type Engine struct {
	log *zerolog.Logger
}

// New builds a chromedp-backed engine.
func New(logger *zerolog.Logger) *Engine {
	return &Engine{log: logger}
}

// Acquire starts a headless Chrome, opens a tab at url and wires CDP events
// into the handle's event stream.
func (e *Engine) Acquire(ctx context.Context, url string, opts browser.Options) (browser.Handle, error) {
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(width, height),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	h := &handle{
		ctx:         tabCtx,
		cancelTab:   tabCancel,
		cancelAlloc: allocCancel,
		events:      make(chan browser.Event, 16),
		log:         e.log,
	}
	chromedp.ListenTarget(tabCtx, h.onTargetEvent)

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tabCtx, chromedp.Navigate(url))
	}()

	select {
	case err := <-done:
		if err != nil {
			h.close()
			return nil, fmt.Errorf("acquire page %q: %w", url, err)
		}
	case <-ctx.Done():
		h.close()
		return nil, ctx.Err()
	}

	e.log.Info().Str("url", url).Int("width", width).Int("height", height).Msg("headless chrome acquired")
	return h, nil
}

// Release shuts the tab and the Chrome process down.
func (e *Engine) Release(h browser.Handle) error {
	ch, ok := h.(*handle)
	if !ok {
		return fmt.Errorf("release: foreign handle %T", h)
	}
	ch.close()
	return nil
}

type handle struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	log         *zerolog.Logger

	mu     sync.Mutex
	closed bool
	events chan browser.Event
}

func (h *handle) Events() <-chan browser.Event { return h.events }

func (h *handle) Apply(ctx context.Context, cmd browser.Command) error {
	action, err := actionFor(cmd)
	if err != nil {
		return err
	}
	return h.run(ctx, action)
}

func (h *handle) Capture(ctx context.Context) (browser.Frame, error) {
	var (
		buf     []byte
		loc     string
		title   string
		metrics browser.ScrollInfo
	)
	err := h.run(ctx,
		chromedp.CaptureScreenshot(&buf),
		chromedp.Location(&loc),
		chromedp.Title(&title),
		chromedp.Evaluate(scrollMetricsJS, &metrics),
	)
	if err != nil {
		return browser.Frame{}, err
	}
	return browser.Frame{
		Screenshot: buf,
		Scroll:     metrics,
		URL:        loc,
		Title:      title,
	}, nil
}

// run executes actions against the tab, bounded by both the tab's lifetime
// and the caller's context.
func (h *handle) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return h.classify(err)
	}
	return nil
}

func actionFor(cmd browser.Command) (chromedp.Action, error) {
	switch cmd.Kind {
	case browser.CommandScroll:
		return chromedp.Evaluate(fmt.Sprintf("window.scrollTo(%f, %f)", cmd.X, cmd.Y), nil), nil
	case browser.CommandScrollBy:
		return chromedp.Evaluate(fmt.Sprintf("window.scrollBy(%f, %f)", cmd.DeltaX, cmd.DeltaY), nil), nil
	case browser.CommandClick:
		return chromedp.MouseClickXY(cmd.X, cmd.Y), nil
	case browser.CommandNavigate:
		return chromedp.Navigate(cmd.URL), nil
	case browser.CommandType:
		return chromedp.KeyEvent(cmd.Text), nil
	case browser.CommandKeyPress:
		key, ok := mapKey(cmd.Key)
		if !ok {
			return nil, fmt.Errorf("unmapped key %q", cmd.Key)
		}
		return chromedp.KeyEvent(key), nil
	case browser.CommandKeyCombo:
		key, mods, err := mapCombo(cmd.Keys)
		if err != nil {
			return nil, err
		}
		return chromedp.KeyEvent(key, chromedp.KeyModifiers(mods...)), nil
	case browser.CommandBack:
		return chromedp.NavigateBack(), nil
	case browser.CommandForward:
		return chromedp.NavigateForward(), nil
	case browser.CommandReload:
		return chromedp.Reload(), nil
	default:
		return nil, fmt.Errorf("unknown command kind %d", cmd.Kind)
	}
}

var specialKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
	"Space":      " ",
}

func mapKey(key string) (string, bool) {
	if mapped, ok := specialKeys[key]; ok {
		return mapped, true
	}
	if len([]rune(key)) == 1 {
		return key, true
	}
	return "", false
}

var modifierKeys = map[string]input.Modifier{
	"Control": input.ModifierCtrl,
	"Ctrl":    input.ModifierCtrl,
	"Alt":     input.ModifierAlt,
	"Shift":   input.ModifierShift,
	"Meta":    input.ModifierMeta,
}

func mapCombo(keys []string) (string, []input.Modifier, error) {
	var mods []input.Modifier
	var key string
	for _, k := range keys {
		if mod, ok := modifierKeys[k]; ok {
			mods = append(mods, mod)
			continue
		}
		mapped, ok := mapKey(k)
		if !ok {
			return "", nil, fmt.Errorf("unmapped key %q in combo", k)
		}
		key = mapped
	}
	if key == "" {
		return "", nil, fmt.Errorf("combo %v has no non-modifier key", keys)
	}
	return key, mods, nil
}

// classify maps a chromedp error to ErrEngineGone when the tab is dead.
func (h *handle) classify(err error) error {
	if h.ctx.Err() != nil {
		return fmt.Errorf("%w: %v", browser.ErrEngineGone, err)
	}
	return err
}

func (h *handle) onTargetEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame.ParentID == "" {
			h.emit(browser.Event{Kind: browser.EventURLChanged, URL: e.Frame.URL})
		}
	case *page.EventFrameStartedLoading:
		h.emit(browser.Event{Kind: browser.EventLoading, Loading: true})
	case *page.EventFrameStoppedLoading:
		h.emit(browser.Event{Kind: browser.EventLoading, Loading: false})
	case *page.EventJavascriptDialogOpening:
		h.emit(browser.Event{Kind: browser.EventDialog, DialogType: string(e.Type), Message: e.Message})
		// Dismiss so the page does not hang waiting for a user that is
		// watching a screenshot stream.
		go func() {
			if err := chromedp.Run(h.ctx, page.HandleJavaScriptDialog(true)); err != nil {
				h.log.Warn().Err(err).Msg("dismiss dialog")
			}
		}()
	case *cdpbrowser.EventDownloadWillBegin:
		h.emit(browser.Event{Kind: browser.EventDownload, URL: e.URL, Filename: e.SuggestedFilename})
	case *inspector.EventTargetCrashed:
		h.emit(browser.Event{Kind: browser.EventFatal, Err: browser.ErrEngineGone})
	}
}

func (h *handle) emit(ev browser.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.events <- ev:
	default:
		// Drop if the session is not keeping up; state events are
		// superseded by the next sample anyway.
	}
}

func (h *handle) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.events)
	h.mu.Unlock()

	h.cancelTab()
	h.cancelAlloc()
}
