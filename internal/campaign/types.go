package campaign

import (
	"time"

	"github.com/lettings-match/internal/match"
)

// Demographic is the audience a campaign targets.
type Demographic string

const (
	DemographicStudents           Demographic = "students"
	DemographicProfessionals      Demographic = "professionals"
	DemographicFamilies           Demographic = "families"
	DemographicPropertyManagement Demographic = "property_management"
)

// Valid reports whether d is a known demographic.
func (d Demographic) Valid() bool {
	switch d {
	case DemographicStudents, DemographicProfessionals, DemographicFamilies, DemographicPropertyManagement:
		return true
	}
	return false
}

// Status of a campaign.
type Status string

const (
	StatusActive    Status = "active"
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
)

// RerunPolicy decides what happens to previous match rows when a campaign runs again.
type RerunPolicy string

const (
	// RerunAppend keeps earlier match rows and adds new ones.
	RerunAppend RerunPolicy = "append"
	// RerunSupersede deletes the campaign's earlier match rows first.
	RerunSupersede RerunPolicy = "supersede"
)

// TenantFilter narrows the tenant pool. Empty dimensions are not applied.
type TenantFilter struct {
	Lifestyles   []string      `json:"lifestyles,omitempty"`
	Universities []string      `json:"universities,omitempty"`
	Budget       *match.Budget `json:"budget,omitempty"`
}

// Criteria is the request to create and run a campaign.
type Criteria struct {
	Name              string                `json:"name"`
	AgentID           string                `json:"agentId"`
	TargetDemographic Demographic           `json:"targetDemographic"`
	PropertyIDs       []string              `json:"propertyIds,omitempty"`
	PropertyFilter    *match.PropertyFilter `json:"propertyFilter,omitempty"`
	TenantFilter      *TenantFilter         `json:"tenantFilter,omitempty"`
	GenerateInsights  bool                  `json:"generateInsights,omitempty"`
}

// Validate fails fast on malformed criteria, before any work starts.
func (c Criteria) Validate() error {
	var problems []string
	if c.Name == "" {
		problems = append(problems, "name is required")
	}
	if c.AgentID == "" {
		problems = append(problems, "agentId is required")
	}
	if !c.TargetDemographic.Valid() {
		problems = append(problems, "targetDemographic must be one of students, professionals, families, property_management")
	}
	for _, id := range c.PropertyIDs {
		if id == "" {
			problems = append(problems, "propertyIds must not contain empty ids")
			break
		}
	}
	if c.PropertyFilter != nil {
		problems = append(problems, c.PropertyFilter.Validate()...)
	}
	if c.TenantFilter != nil && c.TenantFilter.Budget != nil && !c.TenantFilter.Budget.Valid() {
		problems = append(problems, "tenantFilter.budget must satisfy 0 <= min <= max")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// MatchedTenant is a tenant with at least one qualifying property.
type MatchedTenant struct {
	TenantID               string   `json:"tenantId"`
	BestScore              int      `json:"bestScore"`
	RecommendedPropertyIDs []string `json:"recommendedPropertyIds"`
}

// Campaign is a targeting run: an agent's properties matched against the tenant pool.
type Campaign struct {
	ID                string                `json:"id"`
	Name              string                `json:"name"`
	AgentID           string                `json:"agentId"`
	TargetDemographic Demographic           `json:"targetDemographic"`
	PropertyFilter    *match.PropertyFilter `json:"propertyFilter,omitempty"`
	TenantFilter      *TenantFilter         `json:"tenantFilter,omitempty"`
	TargetProperties  []string              `json:"targetProperties"`
	MatchedTenants    []MatchedTenant       `json:"matchedTenants"`
	Status            Status                `json:"status"`
	GenerateInsights  bool                  `json:"generateInsights"`
	Insights          []string              `json:"insights,omitempty"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

// RunStats counts what happened during one run. Partial failure shows up as
// non-zero failure counters.
type RunStats struct {
	RunID              string    `json:"runId"`
	Candidates         int       `json:"candidates"`
	Properties         int       `json:"properties"`
	PairsScored        int       `json:"pairsScored"`
	PairsFailed        int       `json:"pairsFailed"`
	EstimationFailures int       `json:"estimationFailures"`
	TenantsMatched     int       `json:"tenantsMatched"`
	MatchesPersisted   int       `json:"matchesPersisted"`
	PersistFailures    int       `json:"persistFailures"`
	InsightFailures    int       `json:"insightFailures"`
	Cancelled          bool      `json:"cancelled"`
	StartedAt          time.Time `json:"startedAt"`
	FinishedAt         time.Time `json:"finishedAt"`
}

// Duration of the run.
func (s RunStats) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// RunResult is returned by a campaign run.
type RunResult struct {
	Campaign *Campaign `json:"campaign"`
	Stats    RunStats  `json:"stats"`
}
