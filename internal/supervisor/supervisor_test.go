package supervisor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeRunnable struct {
	startErr  error
	startedAt time.Time
	stopped   chan struct{}
}

func (f *fakeRunnable) Start(ctx context.Context) error {
	f.startedAt = time.Now()
	return f.startErr
}

func (f *fakeRunnable) Stop() {
	close(f.stopped)
}

func discardLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestRunReturnsNonZeroOnStartFailure(t *testing.T) {
	r := &fakeRunnable{startErr: context.DeadlineExceeded, stopped: make(chan struct{})}
	s := New(r, discardLogger())

	code := s.Run(context.Background())
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	r := &fakeRunnable{stopped: make(chan struct{})}
	s := New(r, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()

	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("expected exit code 0, got %d", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	select {
	case <-r.stopped:
	default:
		t.Fatal("expected consumer Stop to be called")
	}
}
