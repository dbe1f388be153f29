package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateDecisionID generates a unique ID for a control decision.
func GenerateDecisionID() string {
	return uuid.New().String()
}

// GenerateComparisonID generates an ID for a comparator run with a timestamp
// prefix so listings sort chronologically.
func GenerateComparisonID() string {
	id := uuid.New().String()
	return fmt.Sprintf("cmp-%s-%s", time.Now().Format("20060102-150405"), id[:8])
}
