package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTicketLock_MutualExclusion(t *testing.T) {
	var lock ticketLock
	var counter int
	var wg sync.WaitGroup

	const goroutines = 50
	const incrementsEach = 200
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < incrementsEach; j++ {
				lock.Lock()
				counter++
				lock.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, goroutines*incrementsEach, counter)
}

func TestTicketLock_TryLock(t *testing.T) {
	var lock ticketLock
	require.True(t, lock.TryLock())
	require.False(t, lock.TryLock(), "TryLock must fail while already held")
	lock.Unlock()
	require.True(t, lock.TryLock())
}
