package insights

import (
	"context"

	"github.com/lettings-match/internal/campaign"
)

// Chain runs every provider in order and concatenates their lines. The
// first error is returned after all providers have run.
type Chain []campaign.InsightsProvider

func (c Chain) Insights(ctx context.Context, camp *campaign.Campaign) ([]string, error) {
	var lines []string
	var firstErr error
	for _, p := range c {
		if p == nil {
			continue
		}
		out, err := p.Insights(ctx, camp)
		lines = append(lines, out...)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return lines, firstErr
}
