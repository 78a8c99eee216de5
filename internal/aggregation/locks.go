package aggregation

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const lockShards = 64

// keyedLocks serializes same-key merges inside one process
type keyedLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *keyedLocks) lock(key string) func() {
	m := &l.shards[xxhash.Sum64String(key)%lockShards]
	m.Lock()
	return m.Unlock
}
