package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/MrSnakeDoc/bkmeta/internal/logger"
)

type fakeCompactor struct {
	rewritten int
	err       error
	calls     int
}

func (f *fakeCompactor) Compact(context.Context) (int, error) {
	f.calls++
	return f.rewritten, f.err
}

func TestGarbageCollector_Collect(t *testing.T) {
	c := &fakeCompactor{rewritten: 2}
	gc := NewGarbageCollector(c, logger.New("error", false), 0)

	if gc.interval != DefaultGCInterval {
		t.Errorf("interval = %v, want default %v", gc.interval, DefaultGCInterval)
	}
	if err := gc.Collect(context.Background()); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if c.calls != 1 {
		t.Errorf("compactions = %d, want 1", c.calls)
	}
}

func TestGarbageCollector_CollectError(t *testing.T) {
	boom := errors.New("disk full")
	gc := NewGarbageCollector(&fakeCompactor{err: boom}, logger.NewNop(), 0)

	if err := gc.Collect(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Collect() error = %v, want %v", err, boom)
	}
}

func TestGarbageCollector_StartStop(t *testing.T) {
	gc := NewGarbageCollector(&fakeCompactor{}, logger.NewNop(), 0)
	if err := gc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	gc.Stop()
	gc.Stop()
}
