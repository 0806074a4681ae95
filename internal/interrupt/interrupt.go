// Package interrupt implements spec.md §4.9/§5's process-wide signal
// handling: a blocked-count guard that defers SIGINT while a critical
// section (evaluating a backtick, editing the ran-set) is in flight,
// SIGTERM/SIGHUP/SIGQUIT forwarding to the active child process, and the
// 128+signal exit convention.
//
// Grounded on cmd/just/run.go's signal.Notify(sigCh, syscall.SIGINT,
// syscall.SIGTERM) + forwarding goroutine, generalized from "forward one
// signal to one child" to the blocked-count/deferred-SIGINT model spec.md
// requires.
package interrupt

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler tracks in-flight critical sections and forwards OS signals to
// whatever child process is currently running.
type Handler struct {
	mu      sync.Mutex
	blocked int
	pending bool // SIGINT arrived while blocked, deferred until Unblock
	child   *os.Process

	sigCh  chan os.Signal
	done   chan struct{}
	exitFn func(code int) // overridable in tests; os.Exit by default
}

// New creates a Handler and starts its signal-handling goroutine. Call
// Stop when the process no longer needs signal handling (the tests, and
// cmd/just's dispatch on return).
func New() *Handler {
	h := &Handler{
		sigCh:  make(chan os.Signal, 1),
		done:   make(chan struct{}),
		exitFn: os.Exit,
	}
	sigs := append([]os.Signal{syscall.SIGINT, syscall.SIGTERM}, platformSignals()...)
	signal.Notify(h.sigCh, sigs...)
	go h.loop()
	return h
}

// Stop releases the signal subscription and terminates the handler's
// goroutine.
func (h *Handler) Stop() {
	signal.Stop(h.sigCh)
	close(h.done)
}

// SetChild records the process signals should be forwarded to (SIGINT,
// SIGTERM, SIGHUP, SIGQUIT). A nil process means "no active child".
func (h *Handler) SetChild(p *os.Process) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.child = p
}

// Block enters a critical section: SIGINT arriving before the matching
// Unblock is deferred rather than exiting immediately.
func (h *Handler) Block() {
	h.mu.Lock()
	h.blocked++
	h.mu.Unlock()
}

// Unblock leaves a critical section. If a SIGINT was deferred while
// blocked, the process now exits with code 130.
func (h *Handler) Unblock() {
	h.mu.Lock()
	h.blocked--
	deferred := h.blocked == 0 && h.pending
	h.mu.Unlock()
	if deferred {
		h.exitFn(130)
	}
}

func (h *Handler) loop() {
	for {
		select {
		case <-h.done:
			return
		case sig := <-h.sigCh:
			h.handle(sig)
		}
	}
}

func (h *Handler) handle(sig os.Signal) {
	h.mu.Lock()
	child := h.child
	blocked := h.blocked > 0
	h.mu.Unlock()

	switch sig {
	case syscall.SIGINT:
		if child != nil {
			_ = child.Signal(sig)
		}
		if blocked {
			h.mu.Lock()
			h.pending = true
			h.mu.Unlock()
			return
		}
		h.exitFn(130)
	default:
		if child != nil {
			_ = child.Signal(sig)
		}
		h.exitFn(128 + signalNumber(sig))
	}
}
