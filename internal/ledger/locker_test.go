package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocker_ReleasesEntries(t *testing.T) {
	k := newKeyedLocker()
	unlock := k.Lock(3, 1, 3, 2)
	assert.Equal(t, 3, k.size())
	unlock()
	assert.Equal(t, 0, k.size())
}

func TestKeyedLocker_SerializesSameKey(t *testing.T) {
	k := newKeyedLocker()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Opposite key orders must not deadlock.
			var unlock func()
			if i%2 == 0 {
				unlock = k.Lock(1, 2)
			} else {
				unlock = k.Lock(2, 1)
			}
			counter++
			unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, k.size())
}
