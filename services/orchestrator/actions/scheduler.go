// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package actions

import (
	"sync"
	"time"
)

// TimerScheduler is the in-process Scheduler backed by time.AfterFunc.
//
// Timers do not survive a restart; the orchestrator re-arms pending
// outcome checks from the store on startup (RearmOutcomeChecks), which
// together with the callbacks' idempotency guards gives at-least-once
// delivery across restarts.
type TimerScheduler struct {
	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
}

// NewTimerScheduler returns a ready scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[*time.Timer]struct{})}
}

// ScheduleOnce runs fn once after delay. A non-positive delay runs it
// on the next timer tick.
func (s *TimerScheduler) ScheduleOnce(delay time.Duration, fn func()) {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		stopped := s.stopped
		s.mu.Unlock()
		if !stopped {
			fn()
		}
	})
	s.timers[timer] = struct{}{}
}

// Stop cancels all pending timers. Callbacks already running are not
// interrupted; new ScheduleOnce calls become no-ops.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for timer := range s.timers {
		timer.Stop()
	}
	s.timers = map[*time.Timer]struct{}{}
}

var _ Scheduler = (*TimerScheduler)(nil)
