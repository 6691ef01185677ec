// Package insights produces the optional insight lines attached to a
// campaign after a run.
package insights

import (
	"context"
	"fmt"
	"sort"

	"github.com/lettings-match/internal/campaign"
)

// strongScore is the best score from which a tenant counts as a strong match.
const strongScore = 80

// Summarizer derives insight lines from the campaign outcome alone.
type Summarizer struct{}

// Insights returns a fixed set of lines for c. Output is deterministic.
func (Summarizer) Insights(_ context.Context, c *campaign.Campaign) ([]string, error) {
	matched := len(c.MatchedTenants)
	lines := []string{
		fmt.Sprintf("%d tenants matched across %d target properties", matched, len(c.TargetProperties)),
	}
	if matched == 0 {
		return append(lines, "No tenant scored above the match threshold; consider widening the property or tenant filters"), nil
	}

	var total, strong int
	recommended := make(map[string]int)
	for _, mt := range c.MatchedTenants {
		total += mt.BestScore
		if mt.BestScore >= strongScore {
			strong++
		}
		for _, id := range mt.RecommendedPropertyIDs {
			recommended[id]++
		}
	}

	lines = append(lines,
		fmt.Sprintf("Average best score %.1f", float64(total)/float64(matched)),
		fmt.Sprintf("%d strong matches (score %d+), %d good matches", strong, strongScore, matched-strong),
	)

	if id, n := mostRecommended(recommended); id != "" {
		lines = append(lines, fmt.Sprintf("Property %s is recommended to %d tenants", id, n))
	}

	if unmatched := unrecommended(c.TargetProperties, recommended); len(unmatched) > 0 {
		lines = append(lines, fmt.Sprintf("%d properties matched no tenant", len(unmatched)))
	}
	return lines, nil
}

func mostRecommended(counts map[string]int) (string, int) {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	best, bestN := "", 0
	for _, id := range ids {
		if counts[id] > bestN {
			best, bestN = id, counts[id]
		}
	}
	return best, bestN
}

func unrecommended(targets []string, counts map[string]int) []string {
	var out []string
	for _, id := range targets {
		if counts[id] == 0 {
			out = append(out, id)
		}
	}
	return out
}
