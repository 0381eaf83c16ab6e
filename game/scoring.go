package game

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultRoundDuration is the length of a round in seconds.
	DefaultRoundDuration = 30
	// StreakBonus is the multiplier added per consecutive win.
	StreakBonus = 0.15
)

type threshold struct {
	above  float64
	points int
}

var timeThresholds = []threshold{
	{25, 1000},
	{20, 800},
	{15, 600},
	{10, 400},
	{5, 200},
}

var hintPoints = []int{1000, 800, 600, 400, 200}

// Score is the breakdown of the points awarded for a round.
type Score struct {
	Base       int     `json:"base"`
	Multiplier float64 `json:"multiplier"`
	Total      int     `json:"total"`
}

// BasePoints maps the seconds remaining in a round of the given length to its
// base point value. remaining is clamped to [0, duration]; a non-positive
// duration means DefaultRoundDuration.
func BasePoints(remaining, duration float64) int {
	if duration <= 0 {
		duration = DefaultRoundDuration
	}
	t := math.Max(0, math.Min(duration, remaining))
	for _, th := range timeThresholds {
		if t > th.above {
			return th.points
		}
	}
	return 100
}

// HintBasePoints maps the number of revealed hints (1-based) to a base point
// value. Anything past the fifth hint is worth the minimum.
func HintBasePoints(revealed int) int {
	if revealed < 1 {
		revealed = 1
	}
	if revealed > len(hintPoints) {
		return hintPoints[len(hintPoints)-1]
	}
	return hintPoints[revealed-1]
}

func TotalPoints(base, streak int) int {
	return int(math.Round(float64(base) * multiplier(streak)))
}

func multiplier(streak int) float64 {
	if streak < 0 {
		streak = 0
	}
	return 1 + float64(streak)*StreakBonus
}

// Calculate scores a correct answer given the time remaining, the round
// length and the player's streak before this round.
func Calculate(remaining, duration float64, streak int) Score {
	return withStreak(BasePoints(remaining, duration), streak)
}

func Zero() Score {
	return Score{Base: 0, Multiplier: 1, Total: 0}
}

func withStreak(base, streak int) Score {
	return Score{
		Base:       base,
		Multiplier: multiplier(streak),
		Total:      TotalPoints(base, streak),
	}
}

// RoundClock describes what the server observed of a round when a guess
// arrived.
type RoundClock struct {
	Remaining     float64
	Duration      float64
	RevealedHints int
}

// ScoringPolicy decides the base points of a correct answer.
type ScoringPolicy interface {
	Name() string
	Score(clock RoundClock, streak int) Score
}

// TimePolicy scores on wall-clock time remaining.
type TimePolicy struct{}

func (TimePolicy) Name() string { return "time" }

func (TimePolicy) Score(clock RoundClock, streak int) Score {
	return Calculate(clock.Remaining, clock.Duration, streak)
}

// HintPolicy scores on how many hints were revealed when the answer came in.
type HintPolicy struct{}

func (HintPolicy) Name() string { return "hints" }

func (HintPolicy) Score(clock RoundClock, streak int) Score {
	return withStreak(HintBasePoints(clock.RevealedHints), streak)
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (ScoringPolicy, error) {
	switch name {
	case "", "time":
		return TimePolicy{}, nil
	case "hints":
		return HintPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown scoring policy %q", name)
	}
}

// Remaining returns the seconds left in a round of the given duration after
// elapsed time and accumulated penalties.
func Remaining(duration, elapsed, penalty time.Duration) float64 {
	return (duration - elapsed - penalty).Seconds()
}
