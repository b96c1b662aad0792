package coordinator

import "sync"

// ticketLocks serializes mutating operations per ticket id so two concurrent
// transitions cannot race past each other's precondition checks. Locks are
// kept for the process lifetime; the cardinality is bounded by the number of
// tickets touched.
type ticketLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTicketLocks() *ticketLocks {
	return &ticketLocks{locks: make(map[string]*sync.Mutex)}
}

func (t *ticketLocks) lock(ticketID string) func() {
	t.mu.Lock()
	l, ok := t.locks[ticketID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[ticketID] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}
