package game

import (
	"errors"
	"fmt"
	"time"
)

type RoundStatus string

const (
	StatusIdle    RoundStatus = "idle"
	StatusLoading RoundStatus = "loading"
	StatusPlaying RoundStatus = "playing"
	StatusWon     RoundStatus = "won"
	StatusLost    RoundStatus = "lost"
)

// Terminal reports whether the round is over.
func (s RoundStatus) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

type LossReason string

const (
	LossNone    LossReason = ""
	LossTimeout LossReason = "timeout"
	LossStrikes LossReason = "strikes"
	LossForfeit LossReason = "forfeit"
)

var ErrInvalidTransition = errors.New("invalid round transition")

// Rules are the per-round limits.
type Rules struct {
	Duration     time.Duration
	Penalty      time.Duration
	MaxStrikes   int
	ReadingSlack time.Duration
}

var DefaultRules = Rules{
	Duration:     DefaultRoundDuration * time.Second,
	Penalty:      3 * time.Second,
	MaxStrikes:   3,
	ReadingSlack: 5 * time.Second,
}

// Round is the state of one character-guessing challenge.
type Round struct {
	Number      int           `json:"number"`
	CharacterID string        `json:"characterId"`
	Status      RoundStatus   `json:"status"`
	StartedAt   time.Time     `json:"startedAt"`
	EndedAt     time.Time     `json:"endedAt,omitempty"`
	Strikes     int           `json:"strikes"`
	Penalty     time.Duration `json:"penalty"`
	LossReason  LossReason    `json:"lossReason,omitempty"`
	Schedule    []HintReveal  `json:"schedule,omitempty"`
}

func (r *Round) transition(from []RoundStatus, to RoundStatus) error {
	for _, s := range from {
		if r.Status == s {
			r.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
}

// Begin moves an idle or finished round into loading for the next character.
func (r *Round) Begin() error {
	if err := r.transition([]RoundStatus{"", StatusIdle, StatusWon, StatusLost}, StatusLoading); err != nil {
		return err
	}
	r.Number++
	r.CharacterID = ""
	r.Strikes = 0
	r.Penalty = 0
	r.LossReason = LossNone
	r.Schedule = nil
	r.StartedAt = time.Time{}
	r.EndedAt = time.Time{}
	return nil
}

// Start puts the acquired character in play.
func (r *Round) Start(characterID string, schedule []HintReveal, now time.Time) error {
	if err := r.transition([]RoundStatus{StatusLoading}, StatusPlaying); err != nil {
		return err
	}
	r.CharacterID = characterID
	r.Schedule = schedule
	r.StartedAt = now
	return nil
}

// Clock reports the time remaining and hints revealed at now.
func (r *Round) Clock(rules Rules, now time.Time) RoundClock {
	elapsed := now.Sub(r.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return RoundClock{
		Remaining:     Remaining(rules.Duration, elapsed, r.Penalty),
		Duration:      rules.Duration.Seconds(),
		RevealedHints: RevealedHints(r.Schedule, elapsed),
	}
}

// Guess applies a guess result at now. Guessing after the clock ran out loses
// the round on timeout regardless of correctness.
func (r *Round) Guess(rules Rules, correct bool, now time.Time) (RoundClock, error) {
	if r.Status != StatusPlaying {
		return RoundClock{}, fmt.Errorf("%w: guess while %s", ErrInvalidTransition, r.Status)
	}

	clock := r.Clock(rules, now)
	if clock.Remaining <= 0 {
		r.lose(LossTimeout, now)
		return clock, nil
	}

	if correct {
		r.Status = StatusWon
		r.EndedAt = now
		return clock, nil
	}

	r.Strikes++
	r.Penalty += rules.Penalty
	if r.Strikes >= rules.MaxStrikes {
		r.lose(LossStrikes, now)
	}
	return r.Clock(rules, now), nil
}

// Forfeit ends a playing round as lost. An expired clock is reported as a
// timeout rather than a forfeit.
func (r *Round) Forfeit(rules Rules, now time.Time) error {
	if r.Status != StatusPlaying {
		return fmt.Errorf("%w: forfeit while %s", ErrInvalidTransition, r.Status)
	}
	reason := LossForfeit
	if r.Clock(rules, now).Remaining <= 0 {
		reason = LossTimeout
	}
	r.lose(reason, now)
	return nil
}

// Expire ends a playing round on timeout if its clock has run out at now and
// reports whether it did.
func (r *Round) Expire(rules Rules, now time.Time) bool {
	if r.Status != StatusPlaying || r.Clock(rules, now).Remaining > 0 {
		return false
	}
	r.lose(LossTimeout, now)
	return true
}

// Abort returns a loading round to idle when no character could be acquired.
func (r *Round) Abort() {
	if r.Status == StatusLoading {
		r.Status = StatusIdle
		r.Number--
	}
}

func (r *Round) StrikesLeft(rules Rules) int {
	return max(0, rules.MaxStrikes-r.Strikes)
}

func (r *Round) lose(reason LossReason, now time.Time) {
	r.Status = StatusLost
	r.LossReason = reason
	r.EndedAt = now
}
