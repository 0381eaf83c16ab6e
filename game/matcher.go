package game

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tolerance tunes how forgiving the matcher is with typos.
type Tolerance struct {
	// Canonical strings (or tokens) longer than LongNameThreshold allow
	// LongDistance edits, shorter ones ShortDistance.
	LongNameThreshold int
	LongDistance      int
	ShortDistance     int
	// Minimum length of a single-token guess for last-name/prefix matching.
	MinPrefixLen int
}

// DefaultTolerance matches the game's production settings.
var DefaultTolerance = Tolerance{
	LongNameThreshold: 5,
	LongDistance:      2,
	ShortDistance:     1,
	MinPrefixLen:      3,
}

func (t Tolerance) maxDistance(s string) int {
	if len([]rune(s)) > t.LongNameThreshold {
		return t.LongDistance
	}
	return t.ShortDistance
}

// Matcher compares free-text guesses against canonical character names.
type Matcher struct {
	tol Tolerance
}

func NewMatcher(tol Tolerance) *Matcher {
	return &Matcher{tol: tol}
}

var defaultMatcher = NewMatcher(DefaultTolerance)

// IsMatch reports whether guess names canonical using DefaultTolerance.
func IsMatch(guess, canonical string) bool {
	return defaultMatcher.IsMatch(guess, canonical)
}

func (m *Matcher) IsMatch(guess, canonical string) bool {
	g := Normalize(guess)
	a := Normalize(canonical)
	if g == "" || a == "" {
		return false
	}

	if g == a {
		return true
	}

	guessParts := strings.Split(g, " ")
	answerParts := strings.Split(a, " ")

	// "jordan" or "jord" for "Michael Jordan"
	if len(guessParts) == 1 && len(answerParts) > 1 && len([]rune(g)) >= m.tol.MinPrefixLen {
		for _, part := range answerParts {
			if strings.HasPrefix(part, g) {
				return true
			}
		}
	}

	if levenshtein.ComputeDistance(g, a) <= m.tol.maxDistance(a) {
		return true
	}

	if len(answerParts) > 1 {
		for _, gp := range guessParts {
			if !m.matchesAnyToken(gp, answerParts) {
				return false
			}
		}
		return true
	}

	return false
}

func (m *Matcher) matchesAnyToken(token string, candidates []string) bool {
	for _, c := range candidates {
		if levenshtein.ComputeDistance(token, c) <= m.tol.maxDistance(c) {
			return true
		}
	}
	return false
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

var punctuation = strings.NewReplacer("'", "", "’", "", "-", "", ".", "")

// Normalize lowercases s, strips accents and apostrophes/hyphens/periods, and
// collapses whitespace to single spaces.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, stripMarks, norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = punctuation.Replace(strings.ToLower(out))
	return strings.Join(strings.Fields(out), " ")
}
