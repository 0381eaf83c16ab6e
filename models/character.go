package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Character is a guessable figure. Hints are ordered least specific first.
type Character struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name       string    `json:"name" gorm:"not null"`
	Category   string    `json:"category" gorm:"not null"`
	Hints      []string  `json:"hints" gorm:"serializer:json;not null"`
	Difficulty int       `json:"difficulty" gorm:"not null;default:1;index"`
	Collection string    `json:"collection" gorm:"not null;default:'nba';index"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewCharacter validates and builds a character, filling in defaults.
func NewCharacter(id, name, category string, hints []string, difficulty int, collection string) (*Character, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("character name is required")
	}
	if len(hints) == 0 {
		return nil, errors.New("character must have at least one hint")
	}
	for _, h := range hints {
		if strings.TrimSpace(h) == "" {
			return nil, errors.New("character hints must not be blank")
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	if difficulty < 1 {
		difficulty = 1
	}
	if collection == "" {
		collection = "nba"
	}

	return &Character{
		ID:         id,
		Name:       name,
		Category:   category,
		Hints:      append([]string(nil), hints...),
		Difficulty: difficulty,
		Collection: collection,
		CreatedAt:  time.Now(),
	}, nil
}

// PublicCharacter is what a guesser may see: everything but the name.
type PublicCharacter struct {
	ID         string   `json:"id"`
	Category   string   `json:"category"`
	Hints      []string `json:"hints"`
	Difficulty int      `json:"difficulty"`
	Collection string   `json:"collection"`
}

func (c *Character) Public() PublicCharacter {
	return PublicCharacter{
		ID:         c.ID,
		Category:   c.Category,
		Hints:      append([]string(nil), c.Hints...),
		Difficulty: c.Difficulty,
		Collection: c.Collection,
	}
}
