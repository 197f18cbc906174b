package lock

import (
	"hash/fnv"
	"sync"
)

const shards = 32

// Keyed hands out a mutex per string key over a fixed shard set. Every
// writer of a vehicle's control state must serialize on the same Keyed
// instance, keyed by IMEI: two connections claiming one IMEI never
// interleave their read-modify-write cycles, whichever component runs them.
type Keyed struct {
	shards [shards]sync.Mutex
}

func NewKeyed() *Keyed {
	return &Keyed{}
}

// For returns the mutex owning the given key. Distinct keys may share a
// shard; that costs contention, never correctness.
func (k *Keyed) For(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &k.shards[h.Sum32()%shards]
}
