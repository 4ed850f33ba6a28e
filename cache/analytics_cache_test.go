package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	var c AnalyticsCache = Noop{}
	require.NoError(t, c.Set(t.Context(), "k", map[string]int{"a": 1}))

	var out map[string]int
	hit, err := c.Get(t.Context(), "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, out)
}

func TestNew_WithoutURLDisablesCaching(t *testing.T) {
	assert.IsType(t, Noop{}, New("", time.Minute))
}

func TestNew_BadURLFallsBack(t *testing.T) {
	assert.IsType(t, Noop{}, New("not-a-redis-url", time.Minute))
}
