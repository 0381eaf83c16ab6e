package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasePoints(t *testing.T) {
	tests := []struct {
		remaining float64
		want      int
	}{
		{45, 1000},
		{30, 1000},
		{28, 1000},
		{25.5, 1000},
		{25, 800},
		{21, 800},
		{18, 600},
		{12, 400},
		{7, 200},
		{5, 100},
		{3, 100},
		{0, 100},
		{-4, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BasePoints(tt.remaining, DefaultRoundDuration), "remaining=%v", tt.remaining)
	}
}

func TestBasePoints_NonIncreasingAsTimeRunsOut(t *testing.T) {
	prev := BasePoints(DefaultRoundDuration, DefaultRoundDuration)
	for r := float64(DefaultRoundDuration); r >= 0; r -= 0.25 {
		p := BasePoints(r, DefaultRoundDuration)
		assert.LessOrEqual(t, p, prev, "remaining=%v", r)
		prev = p
	}
}

func TestBasePoints_ClampsToRoundLength(t *testing.T) {
	assert.Equal(t, 600, BasePoints(28, 20))
	assert.Equal(t, 600, BasePoints(20, 20))
	assert.Equal(t, 1000, BasePoints(28, 0))
	assert.Equal(t, 1000, BasePoints(50, 60))

	short := TimePolicy{}.Score(RoundClock{Remaining: 45, Duration: 18}, 0)
	assert.Equal(t, 600, short.Total)
}

func TestTotalPoints(t *testing.T) {
	assert.Equal(t, 1000, TotalPoints(1000, 0))
	assert.Equal(t, 1150, TotalPoints(1000, 1))
	assert.Equal(t, 1450, TotalPoints(1000, 3))
	assert.Equal(t, 230, TotalPoints(200, 1))
	assert.Equal(t, 100, TotalPoints(100, -2))
}

func TestCalculateAndZero(t *testing.T) {
	s := Calculate(28, DefaultRoundDuration, 3)
	assert.Equal(t, 1000, s.Base)
	assert.InDelta(t, 1.45, s.Multiplier, 1e-9)
	assert.Equal(t, 1450, s.Total)

	assert.Equal(t, Score{Base: 0, Multiplier: 1, Total: 0}, Zero())
}

func TestHintBasePoints(t *testing.T) {
	assert.Equal(t, 1000, HintBasePoints(0))
	assert.Equal(t, 1000, HintBasePoints(1))
	assert.Equal(t, 800, HintBasePoints(2))
	assert.Equal(t, 200, HintBasePoints(5))
	assert.Equal(t, 200, HintBasePoints(9))
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	require.NoError(t, err)
	assert.Equal(t, "time", p.Name())

	p, err = PolicyByName("hints")
	require.NoError(t, err)
	assert.Equal(t, 800, p.Score(RoundClock{Remaining: 29, RevealedHints: 2}, 0).Total)

	_, err = PolicyByName("vibes")
	assert.Error(t, err)
}

func TestRemaining(t *testing.T) {
	assert.InDelta(t, 24.0, Remaining(30*time.Second, 3*time.Second, 3*time.Second), 1e-9)
	assert.InDelta(t, -1.0, Remaining(30*time.Second, 31*time.Second, 0), 1e-9)
}
