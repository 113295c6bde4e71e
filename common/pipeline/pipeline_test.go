package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/llmify/llmstxt-service/common/generator"
)

func TestIsFatalClassification(t *testing.T) {
	fatal := []error{
		generator.ErrNoContent,
		generator.ErrNotRunnable,
		fmt.Errorf("reloading generation 1: %w", generator.ErrNotRunnable),
	}
	for _, err := range fatal {
		if !isFatal(err) {
			t.Errorf("expected %v to terminate delivery", err)
		}
	}

	// A critical failure rate gets queue-level retries before the subject is
	// failed for good, so it must not terminate the delivery.
	transient := []error{
		generator.ErrCriticalFailure,
		fmt.Errorf("%w: 90%% of URLs failed", generator.ErrCriticalFailure),
		errors.New("reading url source: connection refused"),
	}
	for _, err := range transient {
		if isFatal(err) {
			t.Errorf("expected %v to stay retriable", err)
		}
	}
}
