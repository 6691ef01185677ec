package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/lettings-match/internal/match"
)

func TestClientEstimate(t *testing.T) {
	var got estimateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/estimate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"score": 73, "reasons": ["close to campus"]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL + "/", APIKey: "secret"}, zaptest.NewLogger(t))
	tenant := match.TenantSummary{ID: "t1", Demographic: "students", Universities: []string{"Leeds"}}
	prop := match.SummarizeProperty(match.PropertyListing{ID: "p1", PropertyType: "flat", Price: decimal.NewFromInt(550)})

	est, err := c.Estimate(context.Background(), tenant, prop)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if est.Score != 73 || len(est.Reasons) != 1 {
		t.Errorf("Estimate() = %+v", est)
	}
	if got.Tenant.ID != "t1" || got.Property.ID != "p1" {
		t.Errorf("request body = %+v", got)
	}
}

func TestClientEstimateErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"score": "high"`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
			},
			timeout: 50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(Config{URL: srv.URL, Timeout: tt.timeout}, zaptest.NewLogger(t))
			if _, err := c.Estimate(context.Background(), match.TenantSummary{ID: "t"}, match.PropertySummary{ID: "p"}); err == nil {
				t.Error("Estimate() error = nil, want error")
			}
		})
	}
}

func TestClientFeedsScorerFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	scorer := match.NewScorer(NewClient(Config{URL: srv.URL}, logger), match.ScorerOptions{}, logger)
	res := scorer.Score(context.Background(), match.TenantSummary{ID: "t"}, nil, match.PropertyListing{ID: "p"})
	if res.Score != 0 || res.Reasons[0] != match.EstimationFailedReason {
		t.Errorf("Score() = %+v, want estimation failure", res)
	}
}
