package queue

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Job kinds. A job ID is "<kind>-<numeric id>" and is deterministic, so
// enqueueing the same subject twice produces the same ID and the broker can
// deduplicate.
const (
	KindGeneration = "gen"
	KindOrder      = "order"
)

var ErrInvalidJobID = errors.New("invalid job id")

// GenerationJobID returns the job ID for a generation
func GenerationJobID(id int64) string {
	return fmt.Sprintf("%s-%d", KindGeneration, id)
}

// OrderJobID returns the job ID for an order
func OrderJobID(id int64) string {
	return fmt.Sprintf("%s-%d", KindOrder, id)
}

// ParseJobID recovers the kind and numeric id from a job ID
func ParseJobID(jobID string) (string, int64, error) {
	kind, rest, found := strings.Cut(jobID, "-")
	if !found || rest == "" {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	if kind != KindGeneration && kind != KindOrder {
		return "", 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidJobID, kind)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return kind, id, nil
}
