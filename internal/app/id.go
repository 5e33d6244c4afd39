package app

import (
	"crypto/rand"
	"encoding/hex"
)

// generateID produces a random hex identifier with a short readable prefix
// ("reg" for sessions). Isolated here so the ID strategy can evolve
// independently.
func generateID(prefix string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + "_" + hex.EncodeToString(b), nil
}
