package services

import (
	"sync"

	"github.com/maxaizer/jobboard-core/internal/domain/models"
)

// entityLocks hands out one mutex per entity; entries are dropped once no
// goroutine holds or waits for them.
type entityLocks struct {
	mu    sync.Mutex
	locks map[models.EntityRef]*refLock
}

type refLock struct {
	sync.Mutex
	holders int
}

func newEntityLocks() *entityLocks {
	return &entityLocks{locks: make(map[models.EntityRef]*refLock)}
}

func (l *entityLocks) Lock(ref models.EntityRef) (unlock func()) {
	l.mu.Lock()
	lock, ok := l.locks[ref]
	if !ok {
		lock = &refLock{}
		l.locks[ref] = lock
	}
	lock.holders++
	l.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()
		l.mu.Lock()
		lock.holders--
		if lock.holders == 0 {
			delete(l.locks, ref)
		}
		l.mu.Unlock()
	}
}

func (l *entityLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
