package match

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lettings-match/internal/normalize"
)

// Tenant is a prospective renter as known to the directory.
type Tenant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Demographic string `json:"demographic,omitempty"`
}

// Budget is an inclusive monthly rent range.
type Budget struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Valid reports whether both bounds are non-negative and Min <= Max.
func (b Budget) Valid() bool {
	return !b.Min.IsNegative() && !b.Max.IsNegative() && b.Min.LessThanOrEqual(b.Max)
}

// Overlaps reports whether two ranges share at least one value.
func (b Budget) Overlaps(o Budget) bool {
	return b.Min.LessThanOrEqual(o.Max) && b.Max.GreaterThanOrEqual(o.Min)
}

// TenantPreference is the structured wish list a tenant submits. It is
// replaced wholesale on update.
type TenantPreference struct {
	TenantID                string     `json:"tenantId"`
	PropertyTypes           []string   `json:"propertyTypes,omitempty"`
	Budget                  *Budget    `json:"budget,omitempty"`
	BedroomCounts           []int      `json:"bedroomCounts,omitempty"`
	Locations               []string   `json:"locations,omitempty"`
	Universities            []string   `json:"universities,omitempty"`
	MaxDistanceToUniversity *float64   `json:"maxDistanceToUniversity,omitempty"` // miles
	MustHaveFeatures        []string   `json:"mustHaveFeatures,omitempty"`
	NiceToHaveFeatures      []string   `json:"niceToHaveFeatures,omitempty"`
	DealBreakers            []string   `json:"dealBreakers,omitempty"`
	Furnished               *bool      `json:"furnished,omitempty"`
	MoveInDate              *time.Time `json:"moveInDate,omitempty"`
	Lifestyles              []string   `json:"lifestyles,omitempty"`
}

// Validate lists the problems that make a preference unfit for scoring.
func (p TenantPreference) Validate() []string {
	var problems []string
	if strings.TrimSpace(p.TenantID) == "" {
		problems = append(problems, "preference tenantId is required")
	}
	if p.Budget != nil && !p.Budget.Valid() {
		problems = append(problems, fmt.Sprintf("preference of %s: budget must satisfy 0 <= min <= max", p.TenantID))
	}
	for _, n := range p.BedroomCounts {
		if n < 0 {
			problems = append(problems, fmt.Sprintf("preference of %s: bedroom counts must not be negative", p.TenantID))
			break
		}
	}
	if p.MaxDistanceToUniversity != nil && *p.MaxDistanceToUniversity < 0 {
		problems = append(problems, fmt.Sprintf("preference of %s: max distance must not be negative", p.TenantID))
	}
	return problems
}

// Furnished is the normalized tri-state furnished flag of a listing.
type Furnished int

const (
	FurnishedUnknown Furnished = iota
	FurnishedYes
	FurnishedNo
)

// FurnishedFromBool converts a known boolean.
func FurnishedFromBool(v bool) Furnished {
	if v {
		return FurnishedYes
	}
	return FurnishedNo
}

// Bool returns the flag value and whether it is known.
func (f Furnished) Bool() (bool, bool) {
	switch f {
	case FurnishedYes:
		return true, true
	case FurnishedNo:
		return false, true
	}
	return false, false
}

func (f Furnished) String() string {
	switch f {
	case FurnishedYes:
		return "furnished"
	case FurnishedNo:
		return "unfurnished"
	}
	return "unknown"
}

// MarshalJSON writes true, false or null.
func (f Furnished) MarshalJSON() ([]byte, error) {
	v, known := f.Bool()
	if !known {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON accepts a boolean, a string such as "furnished" or "true", or null.
func (f *Furnished) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*f = FurnishedUnknown
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FurnishedFromBool(b)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("furnished: expected bool or string, got %s", raw)
	}
	*f = ParseFurnished(s)
	return nil
}

// ParseFurnished normalizes the free-text furnished values found on listings.
func ParseFurnished(s string) Furnished {
	v, known := normalize.Furnished(s)
	if !known {
		return FurnishedUnknown
	}
	return FurnishedFromBool(v)
}

// PropertyListing is a rentable property. It is treated as immutable for the
// duration of a scoring pass.
type PropertyListing struct {
	ID                   string          `json:"id"`
	AgentID              string          `json:"agentId,omitempty"`
	PropertyType         string          `json:"propertyType"`
	Price                decimal.Decimal `json:"price"`
	Bedrooms             int             `json:"bedrooms"`
	Address              string          `json:"address,omitempty"`
	City                 string          `json:"city,omitempty"`
	Area                 string          `json:"area,omitempty"`
	University           *string         `json:"university,omitempty"`
	DistanceToUniversity *float64        `json:"distanceToUniversity,omitempty"` // miles
	BillsIncluded        bool            `json:"billsIncluded"`
	IncludedBills        []string        `json:"includedBills,omitempty"`
	Features             []string        `json:"features,omitempty"`
	Furnished            Furnished       `json:"furnished"`
	AvailableDate        *time.Time      `json:"availableDate,omitempty"`
	Available            bool            `json:"available"`
}

// Validate lists the problems that make a listing unfit for scoring.
func (p PropertyListing) Validate() []string {
	var problems []string
	if strings.TrimSpace(p.ID) == "" {
		problems = append(problems, "property id is required")
	}
	if p.Price.IsNegative() {
		problems = append(problems, fmt.Sprintf("property %s: price must not be negative", p.ID))
	}
	if p.Bedrooms < 0 {
		problems = append(problems, fmt.Sprintf("property %s: bedrooms must not be negative", p.ID))
	}
	if p.DistanceToUniversity != nil && *p.DistanceToUniversity < 0 {
		problems = append(problems, fmt.Sprintf("property %s: distance to university must not be negative", p.ID))
	}
	return problems
}

// MatchResult is the outcome of scoring one tenant against one property.
type MatchResult struct {
	Score     int      `json:"score"`
	Reasons   []string `json:"reasons"`
	Estimated bool     `json:"estimated,omitempty"` // produced by the estimation oracle
	Err       error    `json:"-"`
}

// PropertyTenantMatch is the persisted summary of a qualifying pair within a campaign.
type PropertyTenantMatch struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"propertyId"`
	TenantID   string    `json:"tenantId"`
	CampaignID string    `json:"campaignId"`
	Score      int       `json:"score"`
	Reasons    []string  `json:"reasons"`
	CreatedAt  time.Time `json:"createdAt"`
}
