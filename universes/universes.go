// Package universes is the lookup table of game collections ("scopes"). The
// scoring and matching core only ever sees a universe id; labels and
// character types here feed presentation and share text.
package universes

import (
	"sort"
	"strings"
)

type CharacterType struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Emoji string `json:"emoji"`
}

type Universe struct {
	ID                string                   `json:"id"`
	Name              string                   `json:"name"`
	Title             string                   `json:"title"`
	CharacterTypes    map[string]CharacterType `json:"character_types"`
	AchievementLabels []string                 `json:"achievement_labels"`
}

// AchievementLabel returns the label for a cleared level (1-based), or "" for
// levels outside the ladder.
func (u Universe) AchievementLabel(level int) string {
	if level < 1 || level > len(u.AchievementLabels) {
		return ""
	}
	return u.AchievementLabels[level-1]
}

var nba = Universe{
	ID:    "nba",
	Name:  "NBA",
	Title: "NBA WHO AM I ?",
	CharacterTypes: map[string]CharacterType{
		"player":    {ID: "player", Label: "PLAYER", Emoji: "🏀"},
		"coach":     {ID: "coach", Label: "COACH", Emoji: "📋"},
		"legend":    {ID: "legend", Label: "LEGEND", Emoji: "👑"},
		"executive": {ID: "executive", Label: "EXEC", Emoji: "👔"},
	},
	AchievementLabels: []string{"ROOKIE", "STARTER", "ALL-STAR", "MVP", "GOAT"},
}

var onePiece = Universe{
	ID:    "one-piece",
	Name:  "One Piece",
	Title: "ONE PIECE WHO AM I ?",
	CharacterTypes: map[string]CharacterType{
		"pirate":        {ID: "pirate", Label: "PIRATE", Emoji: "🏴‍☠️"},
		"marine":        {ID: "marine", Label: "MARINE", Emoji: "⚓"},
		"revolutionary": {ID: "revolutionary", Label: "RÉVOLUTIONNAIRE", Emoji: "🔥"},
		"shichibukai":   {ID: "shichibukai", Label: "SHICHIBUKAI", Emoji: "⚔️"},
		"yonko":         {ID: "yonko", Label: "YONKO", Emoji: "👑"},
		"civilian":      {ID: "civilian", Label: "CIVIL", Emoji: "🏝️"},
	},
	AchievementLabels: []string{"MOUSSE", "MATELOT", "CAPITAINE", "SUPERNOVA", "ROI DES PIRATES"},
}

// Registry resolves universes by id.
type Registry struct {
	byID      map[string]Universe
	defaultID string
}

// NewRegistry returns a registry holding the built-in universes with
// defaultID as the fallback scope.
func NewRegistry(defaultID string) *Registry {
	r := &Registry{byID: map[string]Universe{}, defaultID: defaultID}
	r.Register(nba)
	r.Register(onePiece)
	if _, ok := r.byID[defaultID]; !ok {
		r.defaultID = nba.ID
	}
	return r
}

func (r *Registry) Register(u Universe) {
	r.byID[u.ID] = u
}

// Resolve maps a requested scope to a known universe. An empty scope resolves
// to the default universe.
func (r *Registry) Resolve(scope string) (Universe, bool) {
	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope == "" {
		scope = r.defaultID
	}
	u, ok := r.byID[scope]
	return u, ok
}

func (r *Registry) Default() Universe {
	return r.byID[r.defaultID]
}

func (r *Registry) All() []Universe {
	out := make([]Universe, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
