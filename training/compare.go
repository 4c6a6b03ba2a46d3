package training

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
)

// Comparison ranks results by holdout accuracy, best first. Results with equal
// accuracy keep their input order.
type Comparison struct {
	Ranked []*Result
}

// Compare ranks results.
func Compare(results []*Result) (*Comparison, error) {
	if len(results) == 0 {
		return nil, errors.NewValueError("Compare", "no results to compare")
	}
	ranked := make([]*Result, 0, len(results))
	for _, r := range results {
		if r == nil {
			return nil, errors.NewValueError("Compare", "nil result")
		}
		ranked = append(ranked, r)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TestAccuracy > ranked[j].TestAccuracy
	})

	c := &Comparison{Ranked: ranked}
	best := c.Best()
	log.Component("training").Info("models compared",
		log.StageKey, log.StageCompare,
		log.ModelNameKey, best.Name,
		log.AccuracyKey, best.TestAccuracy,
		log.CountKey, len(ranked),
	)
	return c, nil
}

// Best returns the highest-accuracy result.
func (c *Comparison) Best() *Result {
	return c.Ranked[0]
}

// Table renders the ranking as aligned text.
func (c *Comparison) Table() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %-8s %10s %10s %12s\n", "rank", "model", "accuracy", "loss", "duration")
	for i, r := range c.Ranked {
		fmt.Fprintf(&b, "%-4d %-8s %10.4f %10.4f %12s\n", i+1, r.Name, r.TestAccuracy, r.TestLoss, r.Duration.Round(1e6))
	}
	return b.String()
}
