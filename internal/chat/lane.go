package chat

import (
	"context"
	"sync"
)

// laneLock serializes work per session while letting different sessions
// proceed concurrently. The global mutex is held only to look up or
// create a lane.
type laneLock struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// A lane is a one-slot semaphore. refs counts goroutines holding or
// waiting on it.
type lane struct {
	slot chan struct{}
	refs int
}

func newLaneLock() *laneLock {
	return &laneLock{lanes: make(map[string]*lane)}
}

// acquire takes the lane for sessionID, giving up when ctx is done. The
// caller must call release only if acquire returned nil.
func (l *laneLock) acquire(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	ln, ok := l.lanes[sessionID]
	if !ok {
		ln = &lane{slot: make(chan struct{}, 1)}
		l.lanes[sessionID] = ln
	}
	ln.refs++
	l.mu.Unlock()

	select {
	case ln.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(sessionID, ln)
		return ctx.Err()
	}
}

// release frees the lane and drops it once nobody is waiting.
func (l *laneLock) release(sessionID string) {
	l.mu.Lock()
	ln, ok := l.lanes[sessionID]
	l.mu.Unlock()
	if !ok {
		return
	}
	<-ln.slot
	l.drop(sessionID, ln)
}

func (l *laneLock) drop(sessionID string, ln *lane) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln.refs--
	if ln.refs == 0 && l.lanes[sessionID] == ln {
		delete(l.lanes, sessionID)
	}
}

func (l *laneLock) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
