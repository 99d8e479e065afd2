package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFailedLoginCounter_Record(t *testing.T) {
	counter := NewFailedLoginCounter(15 * time.Minute)

	for i := 1; i <= 5; i++ {
		assert.Equal(t, i, counter.Record("203.0.113.10"))
	}

	assert.Equal(t, 1, counter.Record("198.51.100.1"), "addresses are counted independently")
}

func TestFailedLoginCounter_WindowElapsed(t *testing.T) {
	counter := NewFailedLoginCounter(20 * time.Millisecond)

	counter.Record("203.0.113.10")
	counter.Record("203.0.113.10")

	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 1, counter.Record("203.0.113.10"), "elapsed window must reset the count")
}

func TestFailedLoginCounter_Clear(t *testing.T) {
	counter := NewFailedLoginCounter(15 * time.Minute)

	for i := 0; i < 4; i++ {
		counter.Record("203.0.113.10")
	}

	counter.Clear("203.0.113.10")
	assert.Equal(t, 0, counter.Count("203.0.113.10"))
	assert.Equal(t, 1, counter.Record("203.0.113.10"))
}

func TestFailedLoginCounter_Sweep(t *testing.T) {
	counter := NewFailedLoginCounter(10 * time.Millisecond)

	counter.Record("stale")
	time.Sleep(20 * time.Millisecond)
	counter.Record("fresh")

	assert.Equal(t, 1, counter.Sweep())
	assert.Equal(t, 1, counter.Count("fresh"))
}
