package match

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lettings-match/internal/normalize"
	"github.com/lettings-match/internal/proximity"
)

const (
	// NoCriteriaReason is the sole reason when no clause contributed.
	NoCriteriaReason = "No specific match criteria met"

	minScore = 0
	maxScore = 100

	dealBreakerPenalty    = 15
	dealBreakerPenaltyCap = 50
)

var (
	belowBudgetTolerance = decimal.RequireFromString("0.15")
	aboveBudgetTolerance = decimal.RequireFromString("0.05")
)

// clause scores one aspect of a pair. A clause that does not apply returns
// (0, ""); every clause that applies returns exactly one reason.
type clause func(p *TenantPreference, l *PropertyListing) (int, string)

// clauses run in this order; the order only affects how reasons are listed.
var clauses = []clause{
	propertyTypeClause,
	budgetClause,
	bedroomsClause,
	locationClause,
	universityClause,
	distanceClause,
	billsClause,
	mustHaveClause,
	niceToHaveClause,
	dealBreakerClause,
	furnishedClause,
	moveInClause,
}

// Evaluate computes the deterministic compatibility score of a property for a
// tenant with stated preferences. The sum of all clauses is clamped to
// [0,100] once, at the end.
func Evaluate(pref TenantPreference, prop PropertyListing) MatchResult {
	var score int
	var reasons []string

	for _, c := range clauses {
		points, reason := c(&pref, &prop)
		if reason == "" {
			continue
		}
		score += points
		reasons = append(reasons, reason)
	}

	if len(reasons) == 0 {
		reasons = []string{NoCriteriaReason}
	}
	return MatchResult{Score: clamp(score), Reasons: reasons}
}

func clamp(score int) int {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

func propertyTypeClause(p *TenantPreference, l *PropertyListing) (int, string) {
	if len(p.PropertyTypes) == 0 || normalize.Key(l.PropertyType) == "" {
		return 0, ""
	}

	want := normalize.Key(l.PropertyType)
	for _, t := range p.PropertyTypes {
		if normalize.Key(t) == want {
			return 15, fmt.Sprintf("Property type matches preference (%s)", l.PropertyType)
		}
	}
	for _, t := range p.PropertyTypes {
		if proximity.SimilarTypes(t, l.PropertyType) {
			return 5, fmt.Sprintf("Property type %s is similar to preferred %s", l.PropertyType, t)
		}
	}
	return 0, ""
}

func budgetClause(p *TenantPreference, l *PropertyListing) (int, string) {
	if p.Budget == nil {
		return 0, ""
	}
	b, price := *p.Budget, l.Price

	switch {
	case price.GreaterThanOrEqual(b.Min) && price.LessThanOrEqual(b.Max):
		return 20, "Price within budget"

	case price.LessThan(b.Min) && b.Min.IsPositive():
		gap := b.Min.Sub(price).Div(b.Min)
		if gap.LessThanOrEqual(belowBudgetTolerance) {
			return 15, "Price slightly below budget"
		}
		return 10, "Price well below budget"

	case price.GreaterThan(b.Max) && b.Max.IsPositive():
		over := price.Sub(b.Max).Div(b.Max)
		if over.LessThanOrEqual(aboveBudgetTolerance) {
			return 5, "Price slightly above budget"
		}
	}
	return 0, ""
}

func bedroomsClause(p *TenantPreference, l *PropertyListing) (int, string) {
	if len(p.BedroomCounts) == 0 {
		return 0, ""
	}
	for _, n := range p.BedroomCounts {
		if n == l.Bedrooms {
			return 15, fmt.Sprintf("Bedroom count matches (%d)", l.Bedrooms)
		}
	}
	for _, n := range p.BedroomCounts {
		if n-l.Bedrooms == 1 || l.Bedrooms-n == 1 {
			return 8, fmt.Sprintf("Bedroom count close to preference (%d)", l.Bedrooms)
		}
	}
	return 0, ""
}

func locationClause(p *TenantPreference, l *PropertyListing) (int, string) {
	for _, loc := range p.Locations {
		if normalize.Contains(l.Address, loc) || normalize.Contains(l.City, loc) || normalize.Contains(l.Area, loc) {
			return 15, fmt.Sprintf("Location matches preferred area (%s)", strings.TrimSpace(loc))
		}
	}
	for _, loc := range p.Locations {
		for _, place := range []string{l.Area, l.City} {
			if proximity.Nearby(loc, place) {
				return 10, fmt.Sprintf("%s is near preferred area %s", place, strings.TrimSpace(loc))
			}
		}
	}
	return 0, ""
}

func universityClause(p *TenantPreference, l *PropertyListing) (int, string) {
	if l.University == nil {
		return 0, ""
	}
	for _, u := range p.Universities {
		if normalize.Contains(*l.University, u) {
			return 10, fmt.Sprintf("Near preferred university (%s)", strings.TrimSpace(u))
		}
	}
	return 0, ""
}

func distanceClause(p *TenantPreference, l *PropertyListing) (int, string) {
	if l.DistanceToUniversity == nil {
		return 0, ""
	}
	d := *l.DistanceToUniversity
	reason := fmt.Sprintf("%.1f miles from university", d)

	if p.MaxDistanceToUniversity != nil {
		if d <= *p.MaxDistanceToUniversity {
			return 10, fmt.Sprintf("Within %.1f miles of university", *p.MaxDistanceToUniversity)
		}
		return 0, ""
	}

	switch {
	case d <= 0.5:
		return 12, reason
	case d <= 1:
		return 10, reason
	case d <= 2:
		return 7, reason
	case d <= 3:
		return 4, reason
	}
	return 0, ""
}

func billsClause(_ *TenantPreference, l *PropertyListing) (int, string) {
	essential := normalize.EssentialBills(l.IncludedBills)
	switch {
	case essential >= 4:
		return 12, "All essential bills included"
	case essential >= 2:
		return 8, fmt.Sprintf("%d essential bills included", essential)
	case len(l.IncludedBills) > 0 || l.BillsIncluded:
		return 4, "Some bills included"
	}
	return 0, ""
}

func mustHaveClause(p *TenantPreference, l *PropertyListing) (int, string) {
	m := countNonBlank(p.MustHaveFeatures)
	if m == 0 {
		return 0, ""
	}
	n := len(presentFeatures(p.MustHaveFeatures, l.Features))
	switch {
	case n == m:
		return 15, "All must-have features present"
	case n > 0:
		return proportion(10, n, m), fmt.Sprintf("%d of %d must-have features present", n, m)
	}
	return 0, ""
}

func niceToHaveClause(p *TenantPreference, l *PropertyListing) (int, string) {
	m := countNonBlank(p.NiceToHaveFeatures)
	if m == 0 {
		return 0, ""
	}
	n := len(presentFeatures(p.NiceToHaveFeatures, l.Features))
	if n == 0 {
		return 0, ""
	}
	return proportion(5, n, m), fmt.Sprintf("%d of %d nice-to-have features present", n, m)
}

func dealBreakerClause(p *TenantPreference, l *PropertyListing) (int, string) {
	found := presentFeatures(p.DealBreakers, l.Features)
	if len(found) == 0 {
		return 0, ""
	}
	penalty := dealBreakerPenalty * len(found)
	if penalty > dealBreakerPenaltyCap {
		penalty = dealBreakerPenaltyCap
	}
	return -penalty, "Has deal-breakers: " + strings.Join(found, ", ")
}

func furnishedClause(p *TenantPreference, l *PropertyListing) (int, string) {
	if p.Furnished == nil {
		return 0, ""
	}
	v, known := l.Furnished.Bool()
	if !known || v != *p.Furnished {
		return 0, ""
	}
	if v {
		return 10, "Furnished as preferred"
	}
	return 10, "Unfurnished as preferred"
}

func moveInClause(p *TenantPreference, l *PropertyListing) (int, string) {
	if p.MoveInDate == nil || l.AvailableDate == nil {
		return 0, ""
	}
	days := daysApart(*p.MoveInDate, *l.AvailableDate)
	switch {
	case days == 0:
		return 10, "Available on preferred move-in date"
	case days <= 7:
		return 8, "Available within a week of move-in date"
	case days <= 14:
		return 5, "Available within two weeks of move-in date"
	}
	return 0, ""
}

// presentFeatures returns the wanted items found in the listing features,
// in the order they were asked for. An item is present when any feature
// contains it, ignoring case.
func presentFeatures(wanted, features []string) []string {
	var found []string
	for _, w := range wanted {
		if strings.TrimSpace(w) == "" {
			continue
		}
		for _, f := range features {
			if normalize.Contains(f, w) {
				found = append(found, strings.TrimSpace(w))
				break
			}
		}
	}
	return found
}

func proportion(points, n, m int) int {
	return int(math.Round(float64(points) * float64(n) / float64(m)))
}

// daysApart counts calendar days between two dates regardless of order.
func daysApart(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(da.Sub(db).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
