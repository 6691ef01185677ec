package campaign

import (
	"context"

	"github.com/lettings-match/internal/match"
)

// Store persists campaigns and their match rows. Each call is atomic on its
// own record; no cross-record transaction is assumed.
type Store interface {
	CreateCampaign(ctx context.Context, c *Campaign) error
	UpdateCampaign(ctx context.Context, c *Campaign) error
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	CreateMatch(ctx context.Context, m *match.PropertyTenantMatch) error
	DeleteMatches(ctx context.Context, campaignID string) (int, error)
	ListMatches(ctx context.Context, campaignID string) ([]match.PropertyTenantMatch, error)
}

// Directory is the read side for tenants, their preferences and listings.
type Directory interface {
	ListTenants(ctx context.Context) ([]match.Tenant, error)
	GetTenant(ctx context.Context, id string) (*match.Tenant, error)
	// GetPreference returns ErrNotFound when the tenant has none.
	GetPreference(ctx context.Context, tenantID string) (*match.TenantPreference, error)
	GetProperty(ctx context.Context, id string) (*match.PropertyListing, error)
	ListProperties(ctx context.Context, filter match.PropertyFilter) ([]match.PropertyListing, error)
	ListPropertiesByAgent(ctx context.Context, agentID string) ([]match.PropertyListing, error)
}

// RunRecorder keeps a durable record of run statistics.
type RunRecorder interface {
	RecordRun(ctx context.Context, campaignID string, stats RunStats) error
}

// InsightsProvider produces insight lines for a finished campaign.
type InsightsProvider interface {
	Insights(ctx context.Context, c *Campaign) ([]string, error)
}
