package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lettings-match/internal/campaign"
	"github.com/lettings-match/internal/match"
)

// RunLister exposes the audit trail of a campaign.
type RunLister interface {
	ListRuns(ctx context.Context, campaignID string) ([]campaign.RunStats, error)
}

// CampaignHandler serves the campaign and scoring endpoints.
type CampaignHandler struct {
	Orchestrator *campaign.Orchestrator
	Store        campaign.Store
	Runs         RunLister // optional
	RunTimeout   time.Duration
	Logger       *zap.Logger
}

type runResponse struct {
	Campaign *campaign.Campaign `json:"campaign"`
	Stats    campaign.RunStats  `json:"stats"`
	Partial  bool               `json:"partial,omitempty"`
}

// CreateCampaign runs a new campaign from the posted criteria.
func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var criteria campaign.Criteria
	if err := decodeJSON(w, r, &criteria); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	ctx, cancel := h.runContext(r)
	defer cancel()

	res, err := h.Orchestrator.RunCampaign(ctx, criteria)
	h.writeRun(w, http.StatusCreated, res, err)
}

// Rerun scores an existing campaign again.
func (h *CampaignHandler) Rerun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.runContext(r)
	defer cancel()

	res, err := h.Orchestrator.Rerun(ctx, mux.Vars(r)["id"])
	h.writeRun(w, http.StatusOK, res, err)
}

// writeRun reports a cancelled run that produced a partial result as 200
// with partial set, rather than as a failure.
func (h *CampaignHandler) writeRun(w http.ResponseWriter, status int, res *campaign.RunResult, err error) {
	if err != nil {
		if res != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			writeJSON(w, http.StatusOK, runResponse{Campaign: res.Campaign, Stats: res.Stats, Partial: true})
			return
		}
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, status, runResponse{Campaign: res.Campaign, Stats: res.Stats})
}

// GetCampaign returns a stored campaign.
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetCampaign(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetRanked returns the matched tenants ordered by best score.
func (h *CampaignHandler) GetRanked(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetCampaign(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"campaignId":     c.ID,
		"matchedTenants": campaign.RankedView(c),
	})
}

// ListMatches returns the persisted match rows of a campaign.
func (h *CampaignHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.Store.GetCampaign(r.Context(), id); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	matches, err := h.Store.ListMatches(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaignId": id, "matches": matches})
}

// ListRuns returns the recorded runs of a campaign.
func (h *CampaignHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "run history is not enabled"})
		return
	}
	id := mux.Vars(r)["id"]
	runs, err := h.Runs.ListRuns(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaignId": id, "runs": runs})
}

type scoreRequest struct {
	TenantID   string `json:"tenantId"`
	PropertyID string `json:"propertyId"`
}

type scoreResponse struct {
	TenantID   string            `json:"tenantId"`
	PropertyID string            `json:"propertyId"`
	Result     match.MatchResult `json:"result"`
}

// Score scores one tenant against one property.
func (h *CampaignHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if req.TenantID == "" || req.PropertyID == "" {
		writeError(w, h.Logger, &campaign.ValidationError{Problems: []string{"tenantId and propertyId are required"}})
		return
	}

	res, err := h.Orchestrator.ScorePair(r.Context(), req.TenantID, req.PropertyID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{TenantID: req.TenantID, PropertyID: req.PropertyID, Result: res})
}

func (h *CampaignHandler) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.RunTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.RunTimeout)
}
