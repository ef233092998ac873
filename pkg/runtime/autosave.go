package runtime

import (
	"context"
	"time"

	"github.com/liliang-cn/vectorizer/pkg/corelog"
)

// Saveable is the persistence half of a collection that the auto-save
// task depends on. It is a narrow interface so this package never
// imports pkg/collection.
type Saveable interface {
	SaveIfDirty(ctx context.Context) error
}

// Lookup resolves a collection name to its current Saveable, reporting
// ok=false once the collection has been dropped from the registry. This
// stands in for a weak reference (spec.md §9 "Cyclic references between
// Collection, auto-save task, and Vector Store"): the task holds a name
// and a Lookup closure over the registry rather than a strong pointer to
// the Collection, so a dropped collection doesn't keep its auto-save
// goroutine alive and the goroutine notices the drop on its own.
type Lookup func(name string) (Saveable, bool)

// AutoSaveTask periodically persists one collection's dirty state.
type AutoSaveTask struct {
	name     string
	interval time.Duration
	lookup   Lookup
	log      corelog.Logger
}

// NewAutoSaveTask creates a task for the named collection. It does not
// start running until Run is called.
func NewAutoSaveTask(name string, interval time.Duration, lookup Lookup, log corelog.Logger) *AutoSaveTask {
	if log == nil {
		log = corelog.Nop()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &AutoSaveTask{name: name, interval: interval, lookup: lookup, log: log}
}

// Run ticks until ctx is cancelled or the collection is no longer found
// in the registry, at which point the goroutine exits on its own. A
// persistent save failure is logged and the loop continues; a single
// failed tick never stops auto-save, since a transient I/O error should
// not strand a collection without snapshots forever.
func (t *AutoSaveTask) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			coll, ok := t.lookup(t.name)
			if !ok {
				t.log.Info("autosave: collection dropped, stopping", "collection", t.name)
				return
			}
			if err := coll.SaveIfDirty(ctx); err != nil {
				t.log.Warn("autosave: save failed", "collection", t.name, "error", err.Error())
			}
		}
	}
}
