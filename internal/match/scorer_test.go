package match

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

func budget(lo, hi int64) *Budget {
	return &Budget{Min: decimal.NewFromInt(lo), Max: decimal.NewFromInt(hi)}
}

func flatPreference() TenantPreference {
	return TenantPreference{
		TenantID:      "t1",
		PropertyTypes: []string{"flat"},
		Budget:        budget(400, 600),
		BedroomCounts: []int{2},
	}
}

func TestEvaluateFlatScenario(t *testing.T) {
	prop := PropertyListing{ID: "p1", PropertyType: "flat", Price: decimal.NewFromInt(550), Bedrooms: 2}

	got := Evaluate(flatPreference(), prop)

	if got.Score < 50 {
		t.Errorf("Score = %d, want >= 50", got.Score)
	}
	want := []string{
		"Property type matches preference (flat)",
		"Price within budget",
		"Bedroom count matches (2)",
	}
	if !reflect.DeepEqual(got.Reasons, want) {
		t.Errorf("Reasons = %v, want %v", got.Reasons, want)
	}
}

func TestEvaluateNoFalsePositives(t *testing.T) {
	prop := PropertyListing{ID: "p2", PropertyType: "house", Price: decimal.NewFromInt(900), Bedrooms: 1}

	got := Evaluate(flatPreference(), prop)

	// only the bedroom proximity clause applies
	if got.Score != 8 {
		t.Errorf("Score = %d, want 8", got.Score)
	}
	if len(got.Reasons) != 1 || !strings.HasPrefix(got.Reasons[0], "Bedroom count close") {
		t.Errorf("Reasons = %v", got.Reasons)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	uni := "University of Leeds"
	dist := 0.4
	avail := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	pref := TenantPreference{
		PropertyTypes:      []string{"flat", "studio"},
		Budget:             budget(500, 800),
		Locations:          []string{"Headingley"},
		Universities:       []string{"Leeds"},
		MustHaveFeatures:   []string{"wifi", "washing machine"},
		NiceToHaveFeatures: []string{"garden", "parking", "dishwasher"},
		MoveInDate:         &avail,
	}
	prop := PropertyListing{
		ID: "p1", PropertyType: "apartment", Price: decimal.NewFromInt(650), Bedrooms: 3,
		Area: "Hyde Park", City: "Leeds", University: &uni, DistanceToUniversity: &dist,
		IncludedBills: []string{"Gas", "Electricity", "Water", "WiFi"},
		Features:      []string{"Fast WiFi", "Dishwasher", "Bike store"},
		AvailableDate: &avail,
	}

	first := Evaluate(pref, prop)
	second := Evaluate(pref, prop)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Evaluate not deterministic: %+v vs %+v", first, second)
	}
}

func TestEvaluateClamping(t *testing.T) {
	furnished := true
	day := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	uni := "Manchester Metropolitan University"
	dist := 0.2

	tests := []struct {
		name string
		pref TenantPreference
		prop PropertyListing
		want int
	}{
		{
			name: "every clause at maximum",
			pref: TenantPreference{
				PropertyTypes: []string{"flat"}, Budget: budget(400, 600), BedroomCounts: []int{2},
				Locations: []string{"Fallowfield"}, Universities: []string{"Manchester"},
				MustHaveFeatures: []string{"wifi"}, NiceToHaveFeatures: []string{"garden"},
				Furnished: &furnished, MoveInDate: &day,
			},
			prop: PropertyListing{
				PropertyType: "Flat", Price: decimal.NewFromInt(500), Bedrooms: 2, Area: "Fallowfield",
				University: &uni, DistanceToUniversity: &dist,
				IncludedBills: []string{"gas", "electric", "water", "broadband"},
				Features:      []string{"wifi", "garden"}, Furnished: FurnishedYes, AvailableDate: &day,
			},
			want: 100,
		},
		{
			name: "deal-breakers only",
			pref: TenantPreference{DealBreakers: []string{"smoking", "pets", "carpet", "no lift", "bunk"}},
			prop: PropertyListing{Features: []string{"smoking allowed", "pets ok", "carpet", "no lift", "bunk beds"}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.pref, tt.prop)
			if got.Score != tt.want {
				t.Errorf("Score = %d, want %d (reasons %v)", got.Score, tt.want, got.Reasons)
			}
		})
	}
}

func TestEvaluateBudget(t *testing.T) {
	tests := []struct {
		price int64
		want  int
	}{
		{400, 20}, // min is inclusive
		{600, 20}, // max is inclusive
		{350, 15}, // 12.5% below
		{300, 10}, // 25% below
		{630, 5},  // 5% above
		{631, 0},
	}

	for _, tt := range tests {
		t.Run(decimal.NewFromInt(tt.price).String(), func(t *testing.T) {
			pref := TenantPreference{Budget: budget(400, 600)}
			got := Evaluate(pref, PropertyListing{Price: decimal.NewFromInt(tt.price)})
			if got.Score != tt.want {
				t.Errorf("Score = %d, want %d", got.Score, tt.want)
			}
		})
	}
}

func TestEvaluateZeroMaxBudget(t *testing.T) {
	got := Evaluate(TenantPreference{Budget: budget(0, 0)}, PropertyListing{Price: decimal.NewFromInt(10)})
	if got.Score != 0 || got.Reasons[0] != NoCriteriaReason {
		t.Errorf("got %+v, want no criteria met", got)
	}
}

func TestScorerNegativePrice(t *testing.T) {
	prop := PropertyListing{ID: "p1", Price: decimal.NewFromInt(-10)}
	pref := &TenantPreference{TenantID: "t1", Budget: budget(0, 500)}

	got := NewScorer(nil, ScorerOptions{}, zaptest.NewLogger(t)).Score(context.Background(), TenantSummary{ID: "t1"}, pref, prop)
	if got.Score != 0 || got.Err != nil {
		t.Errorf("got %+v, want score 0 without error", got)
	}
}

func TestPropertyListingValidate(t *testing.T) {
	neg := -0.5
	tests := []struct {
		name string
		prop PropertyListing
		want int
	}{
		{"valid", PropertyListing{ID: "p1", Price: decimal.NewFromInt(500), Bedrooms: 2}, 0},
		{"free listing", PropertyListing{ID: "p1"}, 0},
		{"missing id", PropertyListing{Price: decimal.NewFromInt(500)}, 1},
		{"negative price", PropertyListing{ID: "p1", Price: decimal.NewFromInt(-10)}, 1},
		{"negative bedrooms and distance", PropertyListing{ID: "p1", Bedrooms: -1, DistanceToUniversity: &neg}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.prop.Validate(); len(got) != tt.want {
				t.Errorf("Validate() = %v, want %d problems", got, tt.want)
			}
		})
	}
}

func TestEvaluateBedrooms(t *testing.T) {
	pref := TenantPreference{BedroomCounts: []int{2, 3}}

	tests := []struct {
		bedrooms int
		want     int
	}{
		{2, 15},
		{3, 15},
		{4, 8},
		{1, 8},
		{5, 0},
	}
	for _, tt := range tests {
		got := Evaluate(pref, PropertyListing{Bedrooms: tt.bedrooms})
		if got.Score != tt.want {
			t.Errorf("bedrooms=%d: Score = %d, want %d", tt.bedrooms, got.Score, tt.want)
		}
	}
}

func TestEvaluateDealBreakerCap(t *testing.T) {
	pref := TenantPreference{
		BedroomCounts: []int{2},
		Budget:        budget(400, 600),
		PropertyTypes: []string{"flat"},
		DealBreakers:  []string{"a1", "b2", "c3", "d4", "e5"},
	}
	prop := PropertyListing{
		PropertyType: "flat", Price: decimal.NewFromInt(500), Bedrooms: 2,
		Features: []string{"a1", "b2", "c3", "d4", "e5"},
	}

	got := Evaluate(pref, prop)

	// 15 + 20 + 15 - 50
	if got.Score != 0 {
		t.Errorf("Score = %d, want 0", got.Score)
	}
	last := got.Reasons[len(got.Reasons)-1]
	if !strings.HasPrefix(last, "Has deal-breakers") {
		t.Errorf("last reason = %q", last)
	}

	pref.DealBreakers = pref.DealBreakers[:1]
	if got := Evaluate(pref, prop); got.Score != 35 {
		t.Errorf("single deal-breaker Score = %d, want 35", got.Score)
	}
}

func TestEvaluatePartialCredit(t *testing.T) {
	tests := []struct {
		name   string
		pref   TenantPreference
		prop   PropertyListing
		points int
	}{
		{"similar type", TenantPreference{PropertyTypes: []string{"flat"}}, PropertyListing{PropertyType: "Studio"}, 5},
		{"nearby area", TenantPreference{Locations: []string{"Fallowfield"}}, PropertyListing{Area: "Withington"}, 10},
		{"address substring", TenantPreference{Locations: []string{"oak"}}, PropertyListing{Address: "12 Oak Road"}, 15},
		{"two essential bills", TenantPreference{}, PropertyListing{IncludedBills: []string{"gas", "water"}}, 8},
		{"non-essential bills", TenantPreference{}, PropertyListing{IncludedBills: []string{"TV licence"}}, 4},
		{"must-have ignores blank entries", TenantPreference{MustHaveFeatures: []string{"wifi", " "}}, PropertyListing{Features: []string{"WiFi"}}, 15},
		{"nice-to-have ignores blank entries", TenantPreference{NiceToHaveFeatures: []string{"", "garden"}}, PropertyListing{Features: []string{"garden"}}, 5},
		{"combined bill label", TenantPreference{}, PropertyListing{IncludedBills: []string{"gas and electric", "water", "wifi"}}, 12},
		{"must-have 1 of 3", TenantPreference{MustHaveFeatures: []string{"wifi", "garden", "parking"}}, PropertyListing{Features: []string{"WiFi"}}, 3},
		{"nice-to-have 1 of 2", TenantPreference{NiceToHaveFeatures: []string{"garden", "parking"}}, PropertyListing{Features: []string{"garden"}}, 3},
		{"unknown furnished", TenantPreference{Furnished: new(bool)}, PropertyListing{}, 0},
		{"unfurnished match", TenantPreference{Furnished: new(bool)}, PropertyListing{Furnished: FurnishedNo}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.pref, tt.prop); got.Score != tt.points {
				t.Errorf("Score = %d, want %d (reasons %v)", got.Score, tt.points, got.Reasons)
			}
		})
	}
}

func TestEvaluateDistance(t *testing.T) {
	limit := 1.5
	tests := []struct {
		name     string
		distance float64
		max      *float64
		want     int
	}{
		{"within explicit max", 1.2, &limit, 10},
		{"beyond explicit max", 1.8, &limit, 0},
		{"half mile", 0.5, nil, 12},
		{"one mile", 0.9, nil, 10},
		{"two miles", 2, nil, 7},
		{"three miles", 2.5, nil, 4},
		{"far", 4, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.distance
			got := Evaluate(TenantPreference{MaxDistanceToUniversity: tt.max}, PropertyListing{DistanceToUniversity: &d})
			if got.Score != tt.want {
				t.Errorf("Score = %d, want %d", got.Score, tt.want)
			}
		})
	}
}

func TestEvaluateMoveIn(t *testing.T) {
	want := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		offsetDays int
		points     int
	}{
		{0, 10},
		{-3, 8},
		{7, 8},
		{10, 5},
		{-14, 5},
		{15, 0},
	}

	for _, tt := range tests {
		avail := want.AddDate(0, 0, tt.offsetDays)
		got := Evaluate(TenantPreference{MoveInDate: &want}, PropertyListing{AvailableDate: &avail})
		if got.Score != tt.points {
			t.Errorf("offset %d: Score = %d, want %d", tt.offsetDays, got.Score, tt.points)
		}
	}
}

type stubOracle struct {
	est   Estimate
	err   error
	panic bool
	calls int
}

func (o *stubOracle) Estimate(ctx context.Context, _ TenantSummary, _ PropertySummary) (Estimate, error) {
	o.calls++
	if o.panic {
		panic("boom")
	}
	return o.est, o.err
}

func TestScorerOracleFallback(t *testing.T) {
	logger := zaptest.NewLogger(t)
	prop := PropertyListing{ID: "p1", PropertyType: "flat", Price: decimal.NewFromInt(550), Bedrooms: 2}
	tenant := TenantSummary{ID: "t1", Demographic: "students"}

	t.Run("uses oracle score", func(t *testing.T) {
		oracle := &stubOracle{est: Estimate{Score: 42, Reasons: []string{"looks fine"}}}
		got := NewScorer(oracle, ScorerOptions{}, logger).Score(context.Background(), tenant, nil, prop)
		if got.Score != 42 || !got.Estimated || got.Err != nil {
			t.Errorf("got %+v, want oracle estimate 42", got)
		}
		if oracle.calls != 1 {
			t.Errorf("oracle calls = %d, want 1", oracle.calls)
		}
	})

	t.Run("clamps oracle score", func(t *testing.T) {
		oracle := &stubOracle{est: Estimate{Score: 140}}
		got := NewScorer(oracle, ScorerOptions{}, logger).Score(context.Background(), tenant, nil, prop)
		if got.Score != 100 {
			t.Errorf("Score = %d, want 100", got.Score)
		}
	})

	t.Run("preference bypasses oracle", func(t *testing.T) {
		oracle := &stubOracle{est: Estimate{Score: 1}}
		pref := flatPreference()
		got := NewScorer(oracle, ScorerOptions{}, logger).Score(context.Background(), tenant, &pref, prop)
		if oracle.calls != 0 {
			t.Error("oracle must not be called when a preference is present")
		}
		if got.Score != Evaluate(pref, prop).Score {
			t.Errorf("Score = %d, want deterministic score", got.Score)
		}
	})

	failures := []struct {
		name   string
		oracle Oracle
	}{
		{"oracle error", &stubOracle{err: errors.New("timeout")}},
		{"oracle panic", &stubOracle{panic: true}},
		{"no oracle", nil},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			got := NewScorer(tt.oracle, ScorerOptions{OracleTimeout: time.Second}, logger).Score(context.Background(), tenant, nil, prop)
			if got.Score != 0 || len(got.Reasons) != 1 || got.Reasons[0] != EstimationFailedReason {
				t.Errorf("got %+v, want estimation failure", got)
			}
			if !errors.Is(got.Err, ErrEstimationFailure) {
				t.Errorf("Err = %v, want ErrEstimationFailure", got.Err)
			}
		})
	}
}

func TestPropertyFilterMatches(t *testing.T) {
	minPrice, maxPrice := decimal.NewFromInt(400), decimal.NewFromInt(700)
	two := 2
	yes := true
	uni := "University of Sheffield"
	day := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	prop := PropertyListing{
		PropertyType: "Flat", Price: decimal.NewFromInt(550), Bedrooms: 2,
		City: "Sheffield", Area: "Broomhill", University: &uni,
		Features: []string{"Garden", "Dishwasher"}, Furnished: FurnishedYes,
		AvailableDate: &day, Available: true,
	}

	tests := []struct {
		name   string
		filter PropertyFilter
		want   bool
	}{
		{"empty", PropertyFilter{}, true},
		{"price range", PropertyFilter{MinPrice: &minPrice, MaxPrice: &maxPrice}, true},
		{"too cheap", PropertyFilter{MinPrice: &maxPrice}, false},
		{"type", PropertyFilter{PropertyTypes: []string{"house", "flat"}}, true},
		{"bedrooms", PropertyFilter{MinBedrooms: &two, MaxBedrooms: &two}, true},
		{"location", PropertyFilter{Location: "broomhill"}, true},
		{"wrong location", PropertyFilter{Location: "Leeds"}, false},
		{"university", PropertyFilter{University: "sheffield"}, true},
		{"all features", PropertyFilter{Features: []string{"garden", "dishwasher"}}, true},
		{"missing feature", PropertyFilter{Features: []string{"garden", "parking"}}, false},
		{"furnished", PropertyFilter{Furnished: &yes}, true},
		{"available by", PropertyFilter{AvailableBy: &day}, true},
		{"available too late", PropertyFilter{AvailableBy: ptrTime(day.AddDate(0, 0, -1))}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(prop); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPropertyFilterValidate(t *testing.T) {
	low, high := decimal.NewFromInt(100), decimal.NewFromInt(50)
	f := PropertyFilter{MinPrice: &low, MaxPrice: &high}
	if problems := f.Validate(); len(problems) != 1 {
		t.Errorf("Validate() = %v, want one problem", problems)
	}
	if problems := (PropertyFilter{}).Validate(); len(problems) != 0 {
		t.Errorf("empty filter problems = %v", problems)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
