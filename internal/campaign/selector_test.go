package campaign_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/lettings-match/internal/campaign"
	"github.com/lettings-match/internal/match"
	"github.com/lettings-match/internal/store"
)

func budgetRange(lo, hi int64) *match.Budget {
	return &match.Budget{Min: decimal.NewFromInt(lo), Max: decimal.NewFromInt(hi)}
}

func selectorFixture(t *testing.T) (*store.Memory, []match.Tenant) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	tenants := []match.Tenant{{ID: "t1"}, {ID: "t2"}, {ID: "t3"}, {ID: "t4"}}
	for _, tn := range tenants {
		if err := mem.SaveTenant(ctx, tn); err != nil {
			t.Fatal(err)
		}
	}
	prefs := []match.TenantPreference{
		{TenantID: "t1", Lifestyles: []string{"Quiet", "studious"}, Universities: []string{"Leeds"}, Budget: budgetRange(400, 600)},
		{TenantID: "t2", Lifestyles: []string{"quiet"}, Budget: budgetRange(900, 1200)},
		{TenantID: "t3", Lifestyles: []string{"social"}, Universities: []string{"leeds"}, Budget: budgetRange(500, 700)},
		// t4 has no preference
	}
	for _, p := range prefs {
		if err := mem.SavePreference(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	return mem, tenants
}

func TestSelectCandidates(t *testing.T) {
	mem, tenants := selectorFixture(t)
	sel := campaign.NewSelector(mem, zaptest.NewLogger(t))

	tests := []struct {
		name   string
		filter *campaign.TenantFilter
		want   []string
	}{
		{"no filter keeps everyone", nil, []string{"t1", "t2", "t3", "t4"}},
		{"lifestyle intersection", &campaign.TenantFilter{Lifestyles: []string{"QUIET", "outdoorsy"}}, []string{"t1", "t2"}},
		{"university", &campaign.TenantFilter{Universities: []string{"Leeds"}}, []string{"t1", "t3"}},
		{"budget overlap", &campaign.TenantFilter{Budget: budgetRange(600, 650)}, []string{"t1", "t3"}},
		// t2 shares the lifestyle but its budget does not overlap
		{"dimensions are ANDed", &campaign.TenantFilter{Lifestyles: []string{"quiet"}, Budget: budgetRange(300, 650)}, []string{"t1"}},
		{"empty filter excludes tenants without preferences", &campaign.TenantFilter{}, []string{"t1", "t2", "t3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sel.SelectCandidates(context.Background(), tenants, tt.filter)
			if err != nil {
				t.Fatalf("SelectCandidates() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d candidates, want %v", len(got), tt.want)
			}
			for i, c := range got {
				if c.Tenant.ID != tt.want[i] {
					t.Errorf("candidate %d = %s, want %s", i, c.Tenant.ID, tt.want[i])
				}
			}
		})
	}
}

func TestSelectCandidatesAttachesPreference(t *testing.T) {
	mem, tenants := selectorFixture(t)
	got, err := campaign.NewSelector(mem, nil).SelectCandidates(context.Background(), tenants, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Preference == nil || got[0].Preference.TenantID != "t1" {
		t.Errorf("t1 preference not attached: %+v", got[0])
	}
	if got[3].Preference != nil {
		t.Errorf("t4 should have no preference, got %+v", got[3].Preference)
	}
}

func TestSelectCandidatesCancelled(t *testing.T) {
	mem, tenants := selectorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := campaign.NewSelector(mem, nil).SelectCandidates(ctx, tenants, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
