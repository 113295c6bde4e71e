package generator

import (
	"errors"
	"testing"
)

func TestAggregateBelowThreshold(t *testing.T) {
	results := []UrlSummary{
		{URL: "a", Summary: "ok"},
		{URL: "b", Summary: "ok"},
		{URL: "c", Err: errors.New("boom")},
		{URL: "d", Summary: "ok"},
	}

	outcome := Aggregate(results, 0.8)
	if outcome.Failed {
		t.Fatal("25% failure must not trip an 80% threshold")
	}
	if len(outcome.Valid) != 3 {
		t.Errorf("expected 3 valid entries, got %d", len(outcome.Valid))
	}
	if outcome.FailureRate != 0.25 {
		t.Errorf("expected failure rate 0.25, got %f", outcome.FailureRate)
	}
}

func TestAggregateAtThresholdExactly(t *testing.T) {
	// 8 of 10 failed: rate == threshold, which already fails.
	results := make([]UrlSummary, 10)
	for i := range results {
		if i < 8 {
			results[i] = UrlSummary{URL: "u", Err: errors.New("boom")}
		} else {
			results[i] = UrlSummary{URL: "u", Summary: "ok"}
		}
	}

	outcome := Aggregate(results, 0.8)
	if !outcome.Failed {
		t.Error("failure rate equal to the threshold must fail")
	}

	// 7 of 10: just under.
	results[7] = UrlSummary{URL: "u", Summary: "ok"}
	outcome = Aggregate(results, 0.8)
	if outcome.Failed {
		t.Error("failure rate below the threshold must not fail")
	}
}

func TestAggregateDeduplicatesErrors(t *testing.T) {
	results := []UrlSummary{
		{URL: "a", Err: errors.New("connection refused")},
		{URL: "b", Err: errors.New("connection refused")},
		{URL: "c", Err: errors.New("status 404")},
		{URL: "d", Err: errors.New("connection refused")},
	}

	outcome := Aggregate(results, 0.8)
	if !outcome.Failed {
		t.Fatal("all-failed input must fail")
	}
	if len(outcome.Errors) != 2 {
		t.Errorf("expected 2 distinct errors, got %v", outcome.Errors)
	}
}

func TestAggregateEmptySummaryIsInvalid(t *testing.T) {
	results := []UrlSummary{
		{URL: "a", Summary: ""},
	}
	outcome := Aggregate(results, 0.8)
	if !outcome.Failed {
		t.Error("an entry with no summary is not valid")
	}
	if len(outcome.Errors) != 1 || outcome.Errors[0] != "empty summary" {
		t.Errorf("unexpected errors: %v", outcome.Errors)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	outcome := Aggregate(nil, 0.8)
	if !outcome.Failed {
		t.Error("empty input must fail")
	}
}
