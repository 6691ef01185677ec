package match

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Oracle estimates compatibility for tenants that have not stated any
// preferences. Implementations must respect ctx cancellation.
type Oracle interface {
	Estimate(ctx context.Context, tenant TenantSummary, property PropertySummary) (Estimate, error)
}

// Estimate is the raw oracle answer. Score is clamped by the caller.
type Estimate struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// TenantSummary is the non-identifying view of a tenant shared with the oracle.
type TenantSummary struct {
	ID           string   `json:"id"`
	Demographic  string   `json:"demographic,omitempty"`
	Lifestyles   []string `json:"lifestyles,omitempty"`
	Universities []string `json:"universities,omitempty"`
}

// PropertySummary is the listing view shared with the oracle.
type PropertySummary struct {
	ID                   string          `json:"id"`
	PropertyType         string          `json:"propertyType"`
	Price                decimal.Decimal `json:"price"`
	Bedrooms             int             `json:"bedrooms"`
	City                 string          `json:"city,omitempty"`
	Area                 string          `json:"area,omitempty"`
	University           string          `json:"university,omitempty"`
	DistanceToUniversity *float64        `json:"distanceToUniversity,omitempty"`
	BillsIncluded        bool            `json:"billsIncluded"`
	Features             []string        `json:"features,omitempty"`
	Furnished            Furnished       `json:"furnished"`
	AvailableDate        *time.Time      `json:"availableDate,omitempty"`
}

// SummarizeTenant drops the tenant's name and contact details.
func SummarizeTenant(t Tenant, pref *TenantPreference) TenantSummary {
	s := TenantSummary{ID: t.ID, Demographic: t.Demographic}
	if pref != nil {
		s.Lifestyles = pref.Lifestyles
		s.Universities = pref.Universities
	}
	return s
}

// SummarizeProperty drops the street address and agent of a listing.
func SummarizeProperty(p PropertyListing) PropertySummary {
	s := PropertySummary{
		ID:                   p.ID,
		PropertyType:         p.PropertyType,
		Price:                p.Price,
		Bedrooms:             p.Bedrooms,
		City:                 p.City,
		Area:                 p.Area,
		DistanceToUniversity: p.DistanceToUniversity,
		BillsIncluded:        p.BillsIncluded || len(p.IncludedBills) > 0,
		Features:             p.Features,
		Furnished:            p.Furnished,
		AvailableDate:        p.AvailableDate,
	}
	if p.University != nil {
		s.University = *p.University
	}
	return s
}
