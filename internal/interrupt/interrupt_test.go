package interrupt

import (
	"os"
	"sync"
	"syscall"
	"testing"
	"time"
)

func newTestHandler(t *testing.T) (*Handler, *int, chan struct{}) {
	t.Helper()
	var mu sync.Mutex
	exitCode := -1
	exited := make(chan struct{})
	h := &Handler{
		sigCh: make(chan os.Signal, 1),
		done:  make(chan struct{}),
		exitFn: func(code int) {
			mu.Lock()
			exitCode = code
			mu.Unlock()
			close(exited)
		},
	}
	go h.loop()
	t.Cleanup(h.Stop)
	return h, &exitCode, exited
}

func TestSIGINTOutsideBlockExitsImmediately(t *testing.T) {
	h, _, exited := newTestHandler(t)
	h.sigCh <- syscall.SIGINT

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("expected an immediate exit for an unblocked SIGINT")
	}
}

func TestSIGINTDuringBlockIsDeferred(t *testing.T) {
	h, _, exited := newTestHandler(t)
	h.Block()
	h.sigCh <- syscall.SIGINT

	select {
	case <-exited:
		t.Fatal("SIGINT during a blocked section should not exit immediately")
	case <-time.After(100 * time.Millisecond):
	}

	h.Unblock()
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("expected the deferred SIGINT to exit on Unblock")
	}
}

func TestNestedBlockOnlyExitsAfterOutermostUnblock(t *testing.T) {
	h, _, exited := newTestHandler(t)
	h.Block()
	h.Block()
	h.sigCh <- syscall.SIGINT
	time.Sleep(50 * time.Millisecond)

	h.Unblock()
	select {
	case <-exited:
		t.Fatal("should not have exited: one Block is still outstanding")
	case <-time.After(100 * time.Millisecond):
	}

	h.Unblock()
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("expected exit once the outermost Unblock ran")
	}
}

func TestSIGTERMForwardsAndExitsWith128PlusSignal(t *testing.T) {
	h, exitCode, exited := newTestHandler(t)
	h.sigCh <- syscall.SIGTERM

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("expected SIGTERM to trigger an exit")
	}
	want := 128 + int(syscall.SIGTERM)
	if *exitCode != want {
		t.Fatalf("exit code = %d, want %d", *exitCode, want)
	}
}
