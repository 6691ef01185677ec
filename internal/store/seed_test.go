package store

import (
	"context"
	"strings"
	"testing"
)

const seedDoc = `{
  "tenants": [{"id": "t1", "name": "Ada", "demographic": "student"}],
  "preferences": [{"tenantId": "t1", "propertyTypes": ["flat"], "budget": {"min": "500", "max": "700"}, "bedroomCounts": [2]}],
  "properties": [{"id": "p1", "agentId": "a1", "propertyType": "flat", "price": "650", "bedrooms": 2, "furnished": true, "available": true}]
}`

func TestReadSeedApply(t *testing.T) {
	seed, err := ReadSeed(strings.NewReader(seedDoc))
	if err != nil {
		t.Fatalf("ReadSeed() error = %v", err)
	}

	ctx := context.Background()
	mem := NewMemory()
	if err := seed.Apply(ctx, mem); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	pref, err := mem.GetPreference(ctx, "t1")
	if err != nil {
		t.Fatalf("GetPreference() error = %v", err)
	}
	if pref.Budget == nil || pref.Budget.Max.String() != "700" {
		t.Errorf("budget = %+v, want max 700", pref.Budget)
	}

	props, err := mem.ListPropertiesByAgent(ctx, "a1")
	if err != nil {
		t.Fatalf("ListPropertiesByAgent() error = %v", err)
	}
	if len(props) != 1 || props[0].Bedrooms != 2 {
		t.Errorf("properties = %+v", props)
	}
}

func TestReadSeedRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", `{"landlords": []}`},
		{"tenant without id", `{"tenants": [{"name": "x"}]}`},
		{"preference without tenant", `{"preferences": [{"propertyTypes": ["flat"]}]}`},
		{"inverted budget", `{"preferences": [{"tenantId": "t1", "budget": {"min": "900", "max": "500"}}]}`},
		{"property without id", `{"properties": [{"propertyType": "flat"}]}`},
		{"negative price", `{"properties": [{"id": "p1", "propertyType": "flat", "price": "-10"}]}`},
		{"negative bedrooms", `{"properties": [{"id": "p1", "propertyType": "flat", "price": "500", "bedrooms": -1}]}`},
		{"not json", `tenants`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadSeed(strings.NewReader(tt.doc)); err == nil {
				t.Error("ReadSeed() error = nil, want error")
			}
		})
	}
}
