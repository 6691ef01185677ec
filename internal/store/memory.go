package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/lettings-match/internal/campaign"
	"github.com/lettings-match/internal/match"
)

// Memory is an in-process Store and Directory. Lists are returned ordered by ID.
type Memory struct {
	mu          sync.RWMutex
	tenants     map[string]match.Tenant
	preferences map[string]match.TenantPreference
	properties  map[string]match.PropertyListing
	campaigns   map[string]campaign.Campaign
	matches     map[string][]match.PropertyTenantMatch
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tenants:     make(map[string]match.Tenant),
		preferences: make(map[string]match.TenantPreference),
		properties:  make(map[string]match.PropertyListing),
		campaigns:   make(map[string]campaign.Campaign),
		matches:     make(map[string][]match.PropertyTenantMatch),
	}
}

// SaveTenant inserts or replaces a tenant.
func (m *Memory) SaveTenant(_ context.Context, t match.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
	return nil
}

// SavePreference replaces the tenant's preference wholesale.
func (m *Memory) SavePreference(_ context.Context, p match.TenantPreference) error {
	if err := checkPreference(p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferences[p.TenantID] = p
	return nil
}

// SaveProperty inserts or replaces a listing.
func (m *Memory) SaveProperty(_ context.Context, p match.PropertyListing) error {
	if err := checkProperty(p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties[p.ID] = p
	return nil
}

func (m *Memory) ListTenants(_ context.Context) ([]match.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]match.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetTenant(_ context.Context, id string) (*match.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[id]
	if !ok {
		return nil, eris.Wrapf(campaign.ErrNotFound, "tenant %s", id)
	}
	return &t, nil
}

func (m *Memory) GetPreference(_ context.Context, tenantID string) (*match.TenantPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.preferences[tenantID]
	if !ok {
		return nil, eris.Wrapf(campaign.ErrNotFound, "preference of tenant %s", tenantID)
	}
	return &p, nil
}

func (m *Memory) GetProperty(_ context.Context, id string) (*match.PropertyListing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.properties[id]
	if !ok {
		return nil, eris.Wrapf(campaign.ErrNotFound, "property %s", id)
	}
	return &p, nil
}

func (m *Memory) ListProperties(_ context.Context, filter match.PropertyFilter) ([]match.PropertyListing, error) {
	return m.listProperties(filter.Matches), nil
}

func (m *Memory) ListPropertiesByAgent(_ context.Context, agentID string) ([]match.PropertyListing, error) {
	return m.listProperties(func(p match.PropertyListing) bool { return p.AgentID == agentID }), nil
}

func (m *Memory) listProperties(keep func(match.PropertyListing) bool) []match.PropertyListing {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []match.PropertyListing{}
	for _, p := range m.properties {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) CreateCampaign(_ context.Context, c *campaign.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.campaigns[c.ID]; exists {
		return eris.Wrapf(campaign.ErrPersistenceFailure, "campaign %s already exists", c.ID)
	}
	m.campaigns[c.ID] = cloneCampaign(*c)
	return nil
}

func (m *Memory) UpdateCampaign(_ context.Context, c *campaign.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.campaigns[c.ID]; !exists {
		return eris.Wrapf(campaign.ErrNotFound, "campaign %s", c.ID)
	}
	m.campaigns[c.ID] = cloneCampaign(*c)
	return nil
}

func (m *Memory) GetCampaign(_ context.Context, id string) (*campaign.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.campaigns[id]
	if !ok {
		return nil, eris.Wrapf(campaign.ErrNotFound, "campaign %s", id)
	}
	c = cloneCampaign(c)
	return &c, nil
}

func (m *Memory) CreateMatch(_ context.Context, pm *match.PropertyTenantMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.campaigns[pm.CampaignID]; !ok {
		return eris.Wrapf(campaign.ErrPersistenceFailure, "campaign %s does not exist", pm.CampaignID)
	}
	row := *pm
	row.Reasons = append([]string(nil), pm.Reasons...)
	m.matches[pm.CampaignID] = append(m.matches[pm.CampaignID], row)
	return nil
}

func (m *Memory) DeleteMatches(_ context.Context, campaignID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.matches[campaignID])
	delete(m.matches, campaignID)
	return n, nil
}

// ListMatches returns the campaign's match rows ordered by score descending,
// then tenant and property ID.
func (m *Memory) ListMatches(_ context.Context, campaignID string) ([]match.PropertyTenantMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]match.PropertyTenantMatch{}, m.matches[campaignID]...)
	sortMatches(out)
	return out, nil
}

func sortMatches(ms []match.PropertyTenantMatch) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Score != ms[j].Score {
			return ms[i].Score > ms[j].Score
		}
		if ms[i].TenantID != ms[j].TenantID {
			return ms[i].TenantID < ms[j].TenantID
		}
		return ms[i].PropertyID < ms[j].PropertyID
	})
}

func cloneCampaign(c campaign.Campaign) campaign.Campaign {
	c.TargetProperties = append([]string(nil), c.TargetProperties...)
	c.Insights = append([]string(nil), c.Insights...)
	matched := make([]campaign.MatchedTenant, len(c.MatchedTenants))
	for i, mt := range c.MatchedTenants {
		mt.RecommendedPropertyIDs = append([]string(nil), mt.RecommendedPropertyIDs...)
		matched[i] = mt
	}
	c.MatchedTenants = matched
	return c
}
