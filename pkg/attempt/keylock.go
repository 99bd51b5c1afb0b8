package attempt

import (
	"hash/fnv"
	"sync"
)

const keyedMutexStripes = 256

// KeyedMutex serializes work per key without a single global critical
// section. Keys are hashed onto a fixed set of stripes, so unrelated keys
// rarely contend.
type KeyedMutex struct {
	stripes [keyedMutexStripes]sync.Mutex
}

// Lock acquires the stripe owning key and returns its unlock function.
func (k *KeyedMutex) Lock(key string) func() {
	m := &k.stripes[stripe(key)]
	m.Lock()
	return m.Unlock
}

func stripe(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % keyedMutexStripes
}
