package game

import (
	"time"
	"unicode/utf8"
)

// DefaultCharInterval is the typing speed of the hint reveal when there is
// plenty of time.
const DefaultCharInterval = 18 * time.Millisecond

// HintReveal is the advisory pacing of one hint. Clients type each hint out
// one character per CharInterval starting at StartAt.
type HintReveal struct {
	Index        int           `json:"index"`
	StartAt      time.Duration `json:"startAt"`
	EndAt        time.Duration `json:"endAt"`
	CharInterval time.Duration `json:"charInterval"`
}

// RevealSchedule paces hints so the last one is fully shown before only
// buffer remains of duration. One extra tick separates consecutive hints.
func RevealSchedule(hints []string, duration, buffer, maxInterval time.Duration) []HintReveal {
	if len(hints) == 0 {
		return nil
	}

	ticks := 0
	for _, h := range hints {
		ticks += utf8.RuneCountInString(h)
	}
	ticks += len(hints) - 1

	window := duration - buffer
	if window <= 0 {
		window = duration
	}

	interval := maxInterval
	if ticks > 0 && window/time.Duration(ticks) < interval {
		interval = window / time.Duration(ticks)
	}
	if interval <= 0 {
		interval = time.Millisecond
	}

	schedule := make([]HintReveal, len(hints))
	var at time.Duration
	for i, h := range hints {
		n := time.Duration(utf8.RuneCountInString(h))
		schedule[i] = HintReveal{
			Index:        i,
			StartAt:      at,
			EndAt:        at + n*interval,
			CharInterval: interval,
		}
		at += (n + 1) * interval
	}
	return schedule
}

// RevealedHints counts the hints that had started appearing after elapsed.
// At least one hint is always considered revealed.
func RevealedHints(schedule []HintReveal, elapsed time.Duration) int {
	n := 0
	for _, h := range schedule {
		if h.StartAt <= elapsed {
			n++
		}
	}
	return max(n, 1)
}
