package workspace

import (
	"sync"
	"time"
)

// timers runs keyed delayed tasks. Scheduling a key replaces its pending
// task, and a replaced or cancelled task never runs even if its timer has
// already fired.
type timers struct {
	mu     sync.Mutex
	gen    uint64
	tasks  map[string]*timerTask
	closed bool
}

type timerTask struct {
	timer *time.Timer
	gen   uint64
}

func newTimers() *timers {
	return &timers{tasks: make(map[string]*timerTask)}
}

func (ts *timers) schedule(key string, d time.Duration, fn func()) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.closed {
		return
	}
	if old, ok := ts.tasks[key]; ok {
		old.timer.Stop()
	}

	ts.gen++
	gen := ts.gen
	ts.tasks[key] = &timerTask{
		gen: gen,
		timer: time.AfterFunc(d, func() {
			ts.mu.Lock()
			cur, ok := ts.tasks[key]
			if !ok || cur.gen != gen {
				ts.mu.Unlock()
				return
			}
			delete(ts.tasks, key)
			ts.mu.Unlock()
			fn()
		}),
	}
}

// cancel reports whether a pending task was removed.
func (ts *timers) cancel(key string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.tasks[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(ts.tasks, key)
	return true
}

func (ts *timers) pending(key string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	_, ok := ts.tasks[key]
	return ok
}

// stopAll cancels every task and refuses new ones.
func (ts *timers) stopAll() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for key, t := range ts.tasks {
		t.timer.Stop()
		delete(ts.tasks, key)
	}
	ts.closed = true
}
