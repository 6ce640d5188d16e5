package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique diagnostic run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewProbeID generates a DOM-safe identifier for a probe element
func NewProbeID() string {
	return "mapcheck-probe-" + uuid.New().String()
}
