package catalog

import "sync"

// urlLocks serializes work on the same canonical URL
type urlLocks struct {
	mu    sync.Mutex
	locks map[string]*urlLock
}

type urlLock struct {
	mu   sync.Mutex
	refs int
}

func newURLLocks() *urlLocks {
	return &urlLocks{locks: make(map[string]*urlLock)}
}

// Lock blocks until url is free and returns the unlock function
func (l *urlLocks) Lock(url string) func() {
	l.mu.Lock()
	lock, ok := l.locks[url]
	if !ok {
		lock = &urlLock{}
		l.locks[url] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, url)
		}
		l.mu.Unlock()
	}
}
