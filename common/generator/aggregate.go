package generator

import (
	"github.com/samber/lo"
)

// Outcome is the aggregated result of one run
type Outcome struct {
	Valid       []UrlSummary
	FailureRate float64
	Failed      bool
	Errors      []string
}

// Aggregate splits results into valid entries and failures and decides
// whether the run crossed the failure threshold. At or above the threshold
// the run is failed outright and nothing is published.
func Aggregate(results []UrlSummary, threshold float64) Outcome {
	if len(results) == 0 {
		return Outcome{Failed: true, FailureRate: 1, Errors: []string{ErrNoContent.Error()}}
	}

	valid, invalid := lo.FilterReject(results, func(s UrlSummary, _ int) bool {
		return s.Valid()
	})

	rate := float64(len(invalid)) / float64(len(results))
	if rate >= threshold {
		messages := lo.Map(invalid, func(s UrlSummary, _ int) string {
			if s.Err != nil {
				return s.Err.Error()
			}
			return "empty summary"
		})
		return Outcome{
			FailureRate: rate,
			Failed:      true,
			Errors:      lo.Uniq(messages),
		}
	}

	return Outcome{
		Valid:       valid,
		FailureRate: rate,
	}
}
