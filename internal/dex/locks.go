// internal/dex/locks.go
package dex

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type lockKey struct {
	wallet common.Address
	token  common.Address
}

// Locks holds in-flight trades keyed by (wallet, token). One Locks value is
// shared by every executor that may trade with the same key.
type Locks struct {
	mu     sync.Mutex
	active map[lockKey]struct{}
}

func NewLocks() *Locks {
	return &Locks{active: make(map[lockKey]struct{})}
}

// TryAcquire returns a release func, or ok=false when the pair is busy.
func (l *Locks) TryAcquire(wallet, token common.Address) (release func(), ok bool) {
	key := lockKey{wallet: wallet, token: token}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[key]; busy {
		return nil, false
	}
	l.active[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.active, key)
			l.mu.Unlock()
		})
	}, true
}

// Busy reports whether a trade is in flight for the pair.
func (l *Locks) Busy(wallet, token common.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.active[lockKey{wallet: wallet, token: token}]
	return busy
}
