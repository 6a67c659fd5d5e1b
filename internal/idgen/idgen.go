// Package idgen generates run identifiers.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// RunPrefix is prepended to every run ID.
const RunPrefix = "run-"

const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	length   = 12
)

func NewRunID() (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return RunPrefix + id, nil
}
