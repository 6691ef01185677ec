package match

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lettings-match/internal/normalize"
)

// PropertyFilter selects listings for a campaign. Zero values do not constrain.
type PropertyFilter struct {
	MinPrice      *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice      *decimal.Decimal `json:"maxPrice,omitempty"`
	PropertyTypes []string         `json:"propertyTypes,omitempty"`
	MinBedrooms   *int             `json:"minBedrooms,omitempty"`
	MaxBedrooms   *int             `json:"maxBedrooms,omitempty"`
	Location      string           `json:"location,omitempty"`
	University    string           `json:"university,omitempty"`
	Features      []string         `json:"features,omitempty"`
	Furnished     *bool            `json:"furnished,omitempty"`
	AvailableBy   *time.Time       `json:"availableBy,omitempty"`
	OnlyAvailable bool             `json:"onlyAvailable,omitempty"`
}

// IsEmpty reports whether the filter constrains nothing.
func (f PropertyFilter) IsEmpty() bool {
	return f.MinPrice == nil && f.MaxPrice == nil && len(f.PropertyTypes) == 0 &&
		f.MinBedrooms == nil && f.MaxBedrooms == nil && f.Location == "" &&
		f.University == "" && len(f.Features) == 0 && f.Furnished == nil &&
		f.AvailableBy == nil && !f.OnlyAvailable
}

// Validate returns a list of field problems, empty when the filter is usable.
func (f PropertyFilter) Validate() []string {
	var problems []string
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		problems = append(problems, "minPrice must not be negative")
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		problems = append(problems, "maxPrice must not be negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		problems = append(problems, "minPrice must not exceed maxPrice")
	}
	if f.MinBedrooms != nil && *f.MinBedrooms < 0 {
		problems = append(problems, "minBedrooms must not be negative")
	}
	if f.MinBedrooms != nil && f.MaxBedrooms != nil && *f.MinBedrooms > *f.MaxBedrooms {
		problems = append(problems, "minBedrooms must not exceed maxBedrooms")
	}
	return problems
}

// Matches applies every present predicate. Text predicates are
// case-insensitive substring matches; all requested features must be present.
func (f PropertyFilter) Matches(p PropertyListing) bool {
	if f.OnlyAvailable && !p.Available {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if len(f.PropertyTypes) > 0 && !normalize.Intersects(f.PropertyTypes, []string{p.PropertyType}) {
		return false
	}
	if f.MinBedrooms != nil && p.Bedrooms < *f.MinBedrooms {
		return false
	}
	if f.MaxBedrooms != nil && p.Bedrooms > *f.MaxBedrooms {
		return false
	}
	if f.Location != "" &&
		!normalize.Contains(p.Address, f.Location) &&
		!normalize.Contains(p.City, f.Location) &&
		!normalize.Contains(p.Area, f.Location) {
		return false
	}
	if f.University != "" && (p.University == nil || !normalize.Contains(*p.University, f.University)) {
		return false
	}
	if len(f.Features) > 0 && len(presentFeatures(f.Features, p.Features)) != countNonBlank(f.Features) {
		return false
	}
	if f.Furnished != nil {
		v, known := p.Furnished.Bool()
		if !known || v != *f.Furnished {
			return false
		}
	}
	if f.AvailableBy != nil && (p.AvailableDate == nil || p.AvailableDate.After(*f.AvailableBy)) {
		return false
	}
	return true
}

func countNonBlank(items []string) int {
	n := 0
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}
