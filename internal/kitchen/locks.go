package kitchen

import "sync"

// lockTable hands out one mutex per order id so that commands targeting the
// same order never interleave, while commands on different orders run freely.
type lockTable struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uint]*sync.Mutex)}
}

// lock acquires the mutex for an order id and returns its unlock func.
func (t *lockTable) lock(orderID uint) func() {
	t.mu.Lock()
	m, ok := t.locks[orderID]
	if !ok {
		m = &sync.Mutex{}
		t.locks[orderID] = m
	}
	t.mu.Unlock()

	m.Lock()
	return m.Unlock
}
