// Package data bundles the starter character catalogue.
package data

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"whoami/services"
)

//go:embed characters.json
var characters []byte

// Characters returns the bundled catalogue.
func Characters() ([]services.CreateCharacterRequest, error) {
	return parse(characters)
}

// LoadFile reads a catalogue in the bundled format from path.
func LoadFile(path string) ([]services.CreateCharacterRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return parse(raw)
}

func parse(raw []byte) ([]services.CreateCharacterRequest, error) {
	var out []services.CreateCharacterRequest
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse characters: %w", err)
	}
	return out, nil
}
