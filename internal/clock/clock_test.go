package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClocks(t *testing.T) {
	t.Run("SystemIsUTC", func(t *testing.T) {
		assert.Equal(t, time.UTC, NewSystem().Now().Location())
	})

	t.Run("Fixed", func(t *testing.T) {
		at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
		c := NewFixed(at)
		assert.True(t, c.Now().Equal(at))
		assert.Equal(t, time.UTC, c.Now().Location())
	})

	t.Run("ManualAdvance", func(t *testing.T) {
		at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		m := NewManual(at)
		m.Advance(16 * time.Minute)
		assert.Equal(t, at.Add(16*time.Minute), m.Now())
		m.Set(at)
		assert.Equal(t, at, m.Now())
	})
}
