package store

import (
	"context"
	"time"
)

// StartAutoSave launches the single background task that persists every
// dirty collection on an interval (spec.md §4.6 "a single background task
// per Vector Store wakes every auto_save_interval... and persists every
// collection whose dirty flag is set, clearing the flag only after
// successful atomic rename"). This is one ticker walking all collections
// per tick, not one task per collection — runtime.AutoSaveTask models a
// single named resource's save loop and stays available for callers that
// want a per-collection cadence, but the store-level contract here is
// literally one task, so it is hand-rolled rather than built from N
// AutoSaveTask instances.
//
// Calling StartAutoSave twice without Stop in between replaces the running
// loop.
func (s *Store) StartAutoSave(ctx context.Context) {
	s.Stop()
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.autosaveCancel = cancel
	s.autosaveDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.AutoSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.saveAllDirty(loopCtx)
			}
		}
	}()
}

func (s *Store) saveAllDirty(ctx context.Context) {
	for _, name := range s.names() {
		c, ok := s.lookup(name)
		if !ok {
			continue
		}
		if err := c.SaveIfDirty(ctx); err != nil {
			s.log.Warn("store: auto-save failed", "collection", name, "error", err.Error())
		}
	}
}

// Stop cancels the running auto-save loop, if any, and waits for it to
// exit.
func (s *Store) Stop() {
	if s.autosaveCancel == nil {
		return
	}
	s.autosaveCancel()
	<-s.autosaveDone
	s.autosaveCancel = nil
	s.autosaveDone = nil
}
