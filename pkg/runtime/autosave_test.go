package runtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSaveable struct {
	saves int32
	err   error
}

func (f *fakeSaveable) SaveIfDirty(ctx context.Context) error {
	atomic.AddInt32(&f.saves, 1)
	return f.err
}

func TestAutoSaveTaskTicksUntilCollectionDropped(t *testing.T) {
	coll := &fakeSaveable{}
	var dropped atomic.Bool

	lookup := func(name string) (Saveable, bool) {
		if dropped.Load() {
			return nil, false
		}
		return coll, true
	}

	task := NewAutoSaveTask("docs", 5*time.Millisecond, lookup, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		task.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	assert.Greater(t, int(atomic.LoadInt32(&coll.saves)), 0)

	dropped.Store(true)
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("autosave task did not stop after collection was dropped")
	}
}
