package game

const (
	DefaultMaxDifficulty    = 5
	DefaultCorrectToLevelUp = 5
)

// Leveling holds the difficulty ladder settings.
type Leveling struct {
	MaxDifficulty    int
	CorrectToLevelUp int
}

var DefaultLeveling = Leveling{
	MaxDifficulty:    DefaultMaxDifficulty,
	CorrectToLevelUp: DefaultCorrectToLevelUp,
}

// Progression tracks a player's climb through difficulty tiers within a
// session.
type Progression struct {
	Difficulty            int  `json:"difficulty"`
	QuestionsAtDifficulty int  `json:"questionsAtDifficulty"`
	HighestLevelCleared   int  `json:"highestLevelCleared"`
	AllLevelsCleared      bool `json:"allLevelsCleared"`
}

func NewProgression(start int, l Leveling) Progression {
	return Progression{Difficulty: l.clamp(start)}
}

func (l Leveling) clamp(d int) int {
	if d < 1 {
		return 1
	}
	if d > l.MaxDifficulty {
		return l.MaxDifficulty
	}
	return d
}

// Win counts a correct answer at the current tier and reports whether the
// tier was cleared by it.
func (p *Progression) Win(l Leveling) bool {
	if p.AllLevelsCleared {
		return false
	}
	p.QuestionsAtDifficulty++
	if p.QuestionsAtDifficulty < l.CorrectToLevelUp {
		return false
	}

	p.HighestLevelCleared = max(p.HighestLevelCleared, p.Difficulty)
	p.QuestionsAtDifficulty = 0
	if p.Difficulty >= l.MaxDifficulty {
		p.AllLevelsCleared = true
		return true
	}
	p.Difficulty++
	return true
}

// Loss breaks the run of consecutive answers at the current tier.
func (p *Progression) Loss() {
	p.QuestionsAtDifficulty = 0
}
