package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_StartsAtEpoch(t *testing.T) {
	clock := NewFakeClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestFakeClock_Advance(t *testing.T) {
	clock := NewFakeClock(Epoch)

	clock.Advance(time.Hour)
	assert.Equal(t, Epoch.Add(time.Hour), clock.Now())

	clock.Advance(-time.Minute)
	assert.Equal(t, Epoch.Add(time.Hour), clock.Now(), "clock never moves backwards")
}

func TestFakeClock_SetAndReset(t *testing.T) {
	clock := NewFakeClock(Epoch)

	clock.Set(Epoch.Add(48 * time.Hour))
	assert.Equal(t, Epoch.Add(48*time.Hour), clock.Now())

	clock.Set(Epoch)
	assert.Equal(t, Epoch.Add(48*time.Hour), clock.Now(), "Set ignores the past")

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestFakeClock_ConcurrentAdvance(t *testing.T) {
	clock := NewFakeClock(Epoch)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(50*time.Second), clock.Now())
}

func TestSequenceGenerator(t *testing.T) {
	gen := NewSequenceGenerator("of")
	assert.Equal(t, "of-1", gen.Generate())
	assert.Equal(t, "of-2", gen.Generate())

	assert.Equal(t, "test-1", NewSequenceGenerator("").Generate())
}
