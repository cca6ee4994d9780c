package attendance

import "sync"

// workerLocks hands out one mutex per worker and drops it once nobody holds or waits on it.
type workerLocks struct {
	mu    sync.Mutex
	locks map[uint]*workerLock
}

type workerLock struct {
	sync.Mutex
	refs int
}

func newWorkerLocks() *workerLocks {
	return &workerLocks{locks: make(map[uint]*workerLock)}
}

// lock blocks until the worker's mutex is held and returns the matching unlock.
func (w *workerLocks) lock(workerID uint) func() {
	w.mu.Lock()
	l, ok := w.locks[workerID]
	if !ok {
		l = &workerLock{}
		w.locks[workerID] = l
	}
	l.refs++
	w.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		w.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(w.locks, workerID)
		}
		w.mu.Unlock()
	}
}
