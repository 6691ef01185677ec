package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/lettings-match/internal/campaign"
	"github.com/lettings-match/internal/config"
	"github.com/lettings-match/internal/db"
	"github.com/lettings-match/internal/match"
)

func newSQLiteStore(t *testing.T) *SQL {
	t.Helper()
	conn, err := db.NewConnection(config.DatabaseConfig{
		Driver: db.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "store.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return NewSQL(conn, zaptest.NewLogger(t))
}

// directory is the seed surface shared by SQL and Memory.
type directory interface {
	campaign.Directory
	campaign.Store
	SaveTenant(ctx context.Context, t match.Tenant) error
	SavePreference(ctx context.Context, p match.TenantPreference) error
	SaveProperty(ctx context.Context, p match.PropertyListing) error
}

func implementations(t *testing.T) map[string]directory {
	return map[string]directory{
		"memory": NewMemory(),
		"sqlite": newSQLiteStore(t),
	}
}

func sampleProperties() []match.PropertyListing {
	uni := "University of Leeds"
	dist := 0.6
	avail := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	return []match.PropertyListing{
		{ID: "p1", AgentID: "a1", PropertyType: "Flat", Price: decimal.NewFromInt(550), Bedrooms: 2,
			Address: "4 Cardigan Road", City: "Leeds", Area: "Headingley", University: &uni, DistanceToUniversity: &dist,
			BillsIncluded: true, IncludedBills: []string{"gas", "water"}, Features: []string{"Garden", "WiFi"},
			Furnished: match.FurnishedYes, AvailableDate: &avail, Available: true},
		{ID: "p2", AgentID: "a1", PropertyType: "House", Price: decimal.NewFromInt(1200), Bedrooms: 4,
			City: "Leeds", Area: "Hyde Park", Furnished: match.FurnishedNo, Available: true},
		{ID: "p3", AgentID: "a2", PropertyType: "Studio", Price: decimal.NewFromInt(700), Bedrooms: 1,
			City: "Manchester", Area: "Fallowfield", Available: false},
	}
}

func seed(t *testing.T, d directory) {
	t.Helper()
	ctx := context.Background()
	for _, p := range sampleProperties() {
		if err := d.SaveProperty(ctx, p); err != nil {
			t.Fatalf("SaveProperty(%s) error = %v", p.ID, err)
		}
	}
	for _, id := range []string{"t2", "t1"} {
		if err := d.SaveTenant(ctx, match.Tenant{ID: id, Name: "Tenant " + id, Demographic: "students"}); err != nil {
			t.Fatal(err)
		}
	}
	furnished := true
	if err := d.SavePreference(ctx, match.TenantPreference{
		TenantID: "t1", PropertyTypes: []string{"flat"}, Furnished: &furnished,
		Budget: &match.Budget{Min: decimal.NewFromInt(400), Max: decimal.NewFromInt(600)},
	}); err != nil {
		t.Fatal(err)
	}
}

func TestDirectoryRoundTrip(t *testing.T) {
	for name, d := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, d)

			tenants, err := d.ListTenants(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(tenants) != 2 || tenants[0].ID != "t1" {
				t.Errorf("ListTenants() = %+v", tenants)
			}

			pref, err := d.GetPreference(ctx, "t1")
			if err != nil {
				t.Fatal(err)
			}
			if pref.Budget == nil || !pref.Budget.Max.Equal(decimal.NewFromInt(600)) || pref.Furnished == nil || !*pref.Furnished {
				t.Errorf("GetPreference() = %+v", pref)
			}

			if _, err := d.GetPreference(ctx, "t2"); !errors.Is(err, campaign.ErrNotFound) {
				t.Errorf("missing preference error = %v, want ErrNotFound", err)
			}
			if _, err := d.GetTenant(ctx, "nobody"); !errors.Is(err, campaign.ErrNotFound) {
				t.Errorf("missing tenant error = %v, want ErrNotFound", err)
			}

			p, err := d.GetProperty(ctx, "p1")
			if err != nil {
				t.Fatal(err)
			}
			want := sampleProperties()[0]
			if !p.Price.Equal(want.Price) || p.Furnished != match.FurnishedYes || *p.University != *want.University ||
				*p.DistanceToUniversity != *want.DistanceToUniversity || !p.AvailableDate.Equal(*want.AvailableDate) ||
				!reflect.DeepEqual(p.Features, want.Features) || !reflect.DeepEqual(p.IncludedBills, want.IncludedBills) {
				t.Errorf("GetProperty() = %+v", p)
			}

			p2, _ := d.GetProperty(ctx, "p2")
			if p2.University != nil || p2.AvailableDate != nil || p2.Furnished != match.FurnishedNo {
				t.Errorf("optional fields of p2 = %+v", p2)
			}
		})
	}
}

func TestListPropertiesFilter(t *testing.T) {
	lo, hi := decimal.NewFromInt(500), decimal.NewFromInt(800)
	two := 2
	yes := true
	by := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter match.PropertyFilter
		want   []string
	}{
		{"empty", match.PropertyFilter{}, []string{"p1", "p2", "p3"}},
		{"price range", match.PropertyFilter{MinPrice: &lo, MaxPrice: &hi}, []string{"p1", "p3"}},
		{"min bedrooms", match.PropertyFilter{MinBedrooms: &two}, []string{"p1", "p2"}},
		{"location", match.PropertyFilter{Location: "leeds"}, []string{"p1", "p2"}},
		{"street", match.PropertyFilter{Location: "cardigan"}, []string{"p1"}},
		{"type", match.PropertyFilter{PropertyTypes: []string{"studio"}}, []string{"p3"}},
		{"university", match.PropertyFilter{University: "leeds"}, []string{"p1"}},
		{"features", match.PropertyFilter{Features: []string{"wifi", "garden"}}, []string{"p1"}},
		{"furnished", match.PropertyFilter{Furnished: &yes}, []string{"p1"}},
		{"available by", match.PropertyFilter{AvailableBy: &by}, []string{"p1"}},
		{"only available", match.PropertyFilter{OnlyAvailable: true}, []string{"p1", "p2"}},
	}

	for name, d := range implementations(t) {
		seed(t, d)
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				props, err := d.ListProperties(context.Background(), tt.filter)
				if err != nil {
					t.Fatalf("ListProperties() error = %v", err)
				}
				got := make([]string, len(props))
				for i, p := range props {
					got[i] = p.ID
				}
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("ListProperties() = %v, want %v", got, tt.want)
				}
			})
		}

		byAgent, err := d.ListPropertiesByAgent(context.Background(), "a1")
		if err != nil || len(byAgent) != 2 {
			t.Errorf("%s: ListPropertiesByAgent() = %d properties, err %v", name, len(byAgent), err)
		}
	}
}

func TestCampaignLifecycle(t *testing.T) {
	for name, d := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
			maxPrice := decimal.NewFromInt(900)

			c := &campaign.Campaign{
				ID: "c1", Name: "Freshers", AgentID: "a1", TargetDemographic: campaign.DemographicStudents,
				PropertyFilter:   &match.PropertyFilter{MaxPrice: &maxPrice},
				TenantFilter:     &campaign.TenantFilter{Lifestyles: []string{"quiet"}},
				TargetProperties: []string{"p1", "p2"},
				MatchedTenants:   []campaign.MatchedTenant{},
				Status:           campaign.StatusActive,
				CreatedAt:        now, UpdatedAt: now,
			}
			if err := d.CreateCampaign(ctx, c); err != nil {
				t.Fatalf("CreateCampaign() error = %v", err)
			}

			c.MatchedTenants = []campaign.MatchedTenant{{TenantID: "t1", BestScore: 80, RecommendedPropertyIDs: []string{"p1"}}}
			c.Insights = []string{"1 tenant matched"}
			c.UpdatedAt = now.Add(time.Minute)
			if err := d.UpdateCampaign(ctx, c); err != nil {
				t.Fatalf("UpdateCampaign() error = %v", err)
			}

			got, err := d.GetCampaign(ctx, "c1")
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got.MatchedTenants, c.MatchedTenants) || !reflect.DeepEqual(got.Insights, c.Insights) ||
				!reflect.DeepEqual(got.TargetProperties, c.TargetProperties) || !got.UpdatedAt.Equal(c.UpdatedAt) {
				t.Errorf("GetCampaign() = %+v", got)
			}
			if got.PropertyFilter == nil || !got.PropertyFilter.MaxPrice.Equal(maxPrice) || got.TenantFilter.Lifestyles[0] != "quiet" {
				t.Errorf("filters not restored: %+v %+v", got.PropertyFilter, got.TenantFilter)
			}

			for i, m := range []match.PropertyTenantMatch{
				{ID: "m1", PropertyID: "p2", TenantID: "t1", Score: 70, Reasons: []string{"Price within budget"}},
				{ID: "m2", PropertyID: "p1", TenantID: "t1", Score: 80, Reasons: []string{"Furnished as preferred"}},
				{ID: "m3", PropertyID: "p1", TenantID: "t0", Score: 70},
			} {
				m.CampaignID = "c1"
				m.CreatedAt = now.Add(time.Duration(i) * time.Second)
				if err := d.CreateMatch(ctx, &m); err != nil {
					t.Fatalf("CreateMatch() error = %v", err)
				}
			}

			rows, err := d.ListMatches(ctx, "c1")
			if err != nil {
				t.Fatal(err)
			}
			order := []string{}
			for _, r := range rows {
				order = append(order, r.ID)
			}
			if !reflect.DeepEqual(order, []string{"m2", "m3", "m1"}) {
				t.Errorf("ListMatches() order = %v", order)
			}

			n, err := d.DeleteMatches(ctx, "c1")
			if err != nil || n != 3 {
				t.Errorf("DeleteMatches() = %d, %v", n, err)
			}

			if err := d.UpdateCampaign(ctx, &campaign.Campaign{ID: "ghost"}); !errors.Is(err, campaign.ErrNotFound) {
				t.Errorf("update of unknown campaign error = %v", err)
			}
			if _, err := d.GetCampaign(ctx, "ghost"); !errors.Is(err, campaign.ErrNotFound) {
				t.Errorf("get of unknown campaign error = %v", err)
			}
			orphan := &match.PropertyTenantMatch{ID: "x", CampaignID: "ghost", CreatedAt: now}
			if err := d.CreateMatch(ctx, orphan); !errors.Is(err, campaign.ErrPersistenceFailure) {
				t.Errorf("orphan match error = %v, want ErrPersistenceFailure", err)
			}
		})
	}
}

func TestSaveRejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	for name, d := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			err := d.SaveProperty(ctx, match.PropertyListing{ID: "neg", PropertyType: "flat", Price: decimal.NewFromInt(-10)})
			if !errors.Is(err, campaign.ErrValidationFailure) {
				t.Errorf("negative price: error = %v, want ErrValidationFailure", err)
			}
			err = d.SaveProperty(ctx, match.PropertyListing{ID: "beds", PropertyType: "flat", Bedrooms: -1})
			if !errors.Is(err, campaign.ErrValidationFailure) {
				t.Errorf("negative bedrooms: error = %v, want ErrValidationFailure", err)
			}
			if _, err := d.GetProperty(ctx, "neg"); !errors.Is(err, campaign.ErrNotFound) {
				t.Errorf("rejected listing was stored: %v", err)
			}

			bad := &match.Budget{Min: decimal.NewFromInt(900), Max: decimal.NewFromInt(500)}
			err = d.SavePreference(ctx, match.TenantPreference{TenantID: "t1", Budget: bad})
			if !errors.Is(err, campaign.ErrValidationFailure) {
				t.Errorf("inverted budget: error = %v, want ErrValidationFailure", err)
			}
		})
	}
}
