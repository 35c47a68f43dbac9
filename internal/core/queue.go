package core

import (
	"sync"
	"time"

	"github.com/johna108/comic-sync/internal/browser"
)

// CommandQueue hands commands from many producers to a single consumer.
//
// Absolute scroll commands are coalesced: a new scroll replaces the pending
// one, taking the queue position of the newest enqueue. Scroll events arrive
// at pointer-move frequency and only the latest target position matters;
// every other command kind is individually significant and is kept in strict
// enqueue order. Relative scrolls (ScrollBy) are deltas and are never
// coalesced.
type CommandQueue struct {
	mu       sync.Mutex
	items    []browser.Command
	scrollAt int // index of the pending absolute scroll, -1 if none
	notify   chan struct{}
}

// NewCommandQueue constructs an empty queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{
		scrollAt: -1,
		notify:   make(chan struct{}, 1),
	}
}

// Enqueue adds a command. It never blocks and always succeeds.
func (q *CommandQueue) Enqueue(cmd browser.Command) {
	q.mu.Lock()
	if cmd.Kind == browser.CommandScroll && q.scrollAt >= 0 {
		q.items = append(q.items[:q.scrollAt], q.items[q.scrollAt+1:]...)
	}
	q.items = append(q.items, cmd)
	if cmd.Kind == browser.CommandScroll {
		q.scrollAt = len(q.items) - 1
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// DrainOne blocks the single consumer for up to timeout and returns one
// command, or ok=false if none arrived. Returning at most one command per
// call bounds per-command latency and lets the consumer interleave its own
// periodic work.
func (q *CommandQueue) DrainOne(timeout time.Duration) (browser.Command, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			cmd := q.items[0]
			q.items = q.items[1:]
			switch {
			case q.scrollAt == 0:
				q.scrollAt = -1
			case q.scrollAt > 0:
				q.scrollAt--
			}
			q.mu.Unlock()
			return cmd, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-timer.C:
			return browser.Command{}, false
		}
	}
}

// Len reports the number of pending commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
