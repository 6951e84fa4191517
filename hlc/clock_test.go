package hlc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_clock_now_monotonic(t *testing.T) {
	clock := NewPhysicalLogicalClock(500 * time.Millisecond)
	fixed := time.Unix(1000, 0)
	clock.nowFunc = func() time.Time { return fixed }

	first := clock.Now()
	second := clock.Now()
	assert.True(t, first.Less(second))
	assert.Equal(t, first.Physical, second.Physical)
	assert.Equal(t, first.Logical+1, second.Logical)
}

func Test_clock_update_folds_future_timestamp(t *testing.T) {
	clock := NewPhysicalLogicalClock(500 * time.Millisecond)
	clock.nowFunc = func() time.Time { return time.Unix(1000, 0) }

	future := Timestamp{Physical: time.Unix(5000, 0).UnixMicro()}
	clock.Update(future)

	got := clock.Now()
	assert.False(t, got.Less(future))
}

func Test_clock_update_ignores_invalid(t *testing.T) {
	clock := NewPhysicalLogicalClock(time.Second)
	clock.Update(Invalid)
	assert.False(t, clock.Now().Equal(Invalid))
}

func Test_timestamp_max(t *testing.T) {
	a := Timestamp{Physical: 10, Logical: 0}
	b := Timestamp{Physical: 10, Logical: 5}
	assert.Equal(t, b, a.Max(b))
	assert.Equal(t, b, b.Max(a))
}
