package campaign

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lettings-match/internal/debug"
	"github.com/lettings-match/internal/match"
)

// DefaultThreshold is the score a pair must exceed to qualify.
const DefaultThreshold = 60

// Options tunes a campaign run.
type Options struct {
	Workers int
	// Threshold is the score a pair must exceed. Nil means DefaultThreshold;
	// a pointer to 0 qualifies every positive score.
	Threshold   *int
	RerunPolicy RerunPolicy
}

// ScoreThreshold returns n as an Options.Threshold value.
func ScoreThreshold(n int) *int {
	return &n
}

// Deps are the collaborators of the orchestrator. Insights and Recorder are optional.
type Deps struct {
	Store     Store
	Directory Directory
	Scorer    *match.Scorer
	Insights  InsightsProvider
	Recorder  RunRecorder
}

// Orchestrator runs targeting campaigns end to end.
type Orchestrator struct {
	deps      Deps
	selector  *Selector
	opts      Options
	threshold int
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator, filling unset options with defaults.
func NewOrchestrator(deps Deps, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.RerunPolicy == "" {
		opts.RerunPolicy = RerunAppend
	}
	threshold := DefaultThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if deps.Scorer == nil {
		deps.Scorer = match.NewScorer(nil, match.ScorerOptions{}, logger)
	}
	return &Orchestrator{
		deps:      deps,
		selector:  NewSelector(deps.Directory, logger),
		opts:      opts,
		threshold: threshold,
		logger:    logger.Named("orchestrator"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunCampaign resolves the campaign's properties, creates the campaign and
// scores every candidate against every property. When ctx is cancelled
// mid-run, no new pairs are started, completed tenants stay persisted and
// the partial result is returned together with the context error.
func (o *Orchestrator) RunCampaign(ctx context.Context, criteria Criteria) (*RunResult, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	props, err := o.resolveProperties(ctx, criteria)
	if err != nil {
		return nil, err
	}

	now := o.now()
	c := &Campaign{
		ID:                uuid.NewString(),
		Name:              criteria.Name,
		AgentID:           criteria.AgentID,
		TargetDemographic: criteria.TargetDemographic,
		PropertyFilter:    criteria.PropertyFilter,
		TenantFilter:      criteria.TenantFilter,
		TargetProperties:  propertyIDs(props),
		MatchedTenants:    []MatchedTenant{},
		Status:            StatusActive,
		GenerateInsights:  criteria.GenerateInsights,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := o.deps.Store.CreateCampaign(ctx, c); err != nil {
		return nil, eris.Wrap(err, "create campaign")
	}

	o.logger.Info("campaign created",
		zap.String("campaign_id", c.ID),
		zap.String("agent_id", c.AgentID),
		zap.Int("properties", len(props)))

	return o.execute(ctx, c, props)
}

// Rerun scores a stored campaign again against its target properties and
// filters. Earlier match rows are kept or deleted according to the rerun policy.
func (o *Orchestrator) Rerun(ctx context.Context, campaignID string) (*RunResult, error) {
	c, err := o.deps.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "load campaign %s", campaignID)
	}

	props, err := o.lookupProperties(ctx, c.TargetProperties)
	if err != nil {
		return nil, err
	}
	if len(props) == 0 {
		return nil, eris.Wrapf(ErrNoPropertiesMatched, "campaign %s has no remaining target properties", campaignID)
	}

	if o.opts.RerunPolicy == RerunSupersede {
		n, err := o.deps.Store.DeleteMatches(ctx, c.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "clear matches of campaign %s", c.ID)
		}
		o.logger.Info("previous matches superseded", zap.String("campaign_id", c.ID), zap.Int("deleted", n))
	}

	c.TargetProperties = propertyIDs(props)
	c.Insights = nil
	return o.execute(ctx, c, props)
}

// ScorePair scores a single tenant against a single property.
func (o *Orchestrator) ScorePair(ctx context.Context, tenantID, propertyID string) (match.MatchResult, error) {
	tenant, err := o.deps.Directory.GetTenant(ctx, tenantID)
	if err != nil {
		return match.MatchResult{}, eris.Wrapf(err, "load tenant %s", tenantID)
	}
	prop, err := o.deps.Directory.GetProperty(ctx, propertyID)
	if err != nil {
		return match.MatchResult{}, eris.Wrapf(err, "load property %s", propertyID)
	}
	pref, err := o.deps.Directory.GetPreference(ctx, tenantID)
	if err != nil && !IsNotFound(err) {
		return match.MatchResult{}, eris.Wrapf(err, "load preference of tenant %s", tenantID)
	}
	return o.deps.Scorer.Score(ctx, match.SummarizeTenant(*tenant, pref), pref, *prop), nil
}

// RankedView returns the matched tenants ordered by best score, highest
// first, ties by tenant ID. The campaign itself is not modified.
func RankedView(c *Campaign) []MatchedTenant {
	if c == nil {
		return nil
	}
	ranked := make([]MatchedTenant, len(c.MatchedTenants))
	copy(ranked, c.MatchedTenants)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].BestScore != ranked[j].BestScore {
			return ranked[i].BestScore > ranked[j].BestScore
		}
		return ranked[i].TenantID < ranked[j].TenantID
	})
	return ranked
}

func (o *Orchestrator) resolveProperties(ctx context.Context, criteria Criteria) ([]match.PropertyListing, error) {
	defer debug.Timing(o.logger, "resolve properties")()

	if len(criteria.PropertyIDs) > 0 {
		props, err := o.lookupProperties(ctx, criteria.PropertyIDs)
		if err != nil {
			return nil, err
		}
		if len(props) > 0 {
			return props, nil
		}
	}

	if criteria.PropertyFilter != nil && !criteria.PropertyFilter.IsEmpty() {
		props, err := o.deps.Directory.ListProperties(ctx, *criteria.PropertyFilter)
		if err != nil {
			return nil, eris.Wrap(err, "list properties by filter")
		}
		if len(props) > 0 {
			return props, nil
		}
	}

	props, err := o.deps.Directory.ListPropertiesByAgent(ctx, criteria.AgentID)
	if err != nil {
		return nil, eris.Wrapf(err, "list properties of agent %s", criteria.AgentID)
	}
	if len(props) == 0 {
		return nil, eris.Wrapf(ErrNoPropertiesMatched, "agent %s", criteria.AgentID)
	}
	return props, nil
}

// lookupProperties loads listings by ID, skipping unknown and duplicate IDs.
func (o *Orchestrator) lookupProperties(ctx context.Context, ids []string) ([]match.PropertyListing, error) {
	props := make([]match.PropertyListing, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		p, err := o.deps.Directory.GetProperty(ctx, id)
		if IsNotFound(err) {
			o.logger.Warn("target property not found, skipped", zap.String("property_id", id))
			continue
		}
		if err != nil {
			return nil, eris.Wrapf(err, "load property %s", id)
		}
		props = append(props, *p)
	}
	return props, nil
}

type pairJob struct {
	candidate int
	property  int
}

type pairResult struct {
	candidate int
	property  int
	result    match.MatchResult
	failed    bool
}

// execute runs selection, scoring, aggregation and insights for c.
func (o *Orchestrator) execute(ctx context.Context, c *Campaign, props []match.PropertyListing) (*RunResult, error) {
	stats := RunStats{
		RunID:      uuid.NewString(),
		Properties: len(props),
		StartedAt:  o.now(),
	}
	// completed work is saved even when the run is cancelled
	persistCtx := context.WithoutCancel(ctx)
	log := o.logger.With(zap.String("campaign_id", c.ID), zap.String("run_id", stats.RunID))

	tenants, err := o.deps.Directory.ListTenants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "list tenants")
	}

	candidates, err := o.selector.SelectCandidates(ctx, tenants, c.TenantFilter)
	if err != nil && ctx.Err() == nil {
		return nil, eris.Wrap(err, "select candidates")
	}
	stats.Candidates = len(candidates)

	matched := o.scoreAll(ctx, persistCtx, c, candidates, props, &stats)

	c.MatchedTenants = matched
	c.UpdatedAt = o.now()
	stats.TenantsMatched = len(matched)
	stats.Cancelled = ctx.Err() != nil

	if err := o.deps.Store.UpdateCampaign(persistCtx, c); err != nil {
		return nil, eris.Wrapf(err, "update campaign %s", c.ID)
	}

	if c.GenerateInsights && o.deps.Insights != nil && !stats.Cancelled {
		o.attachInsights(ctx, persistCtx, c, &stats, log)
	}

	stats.FinishedAt = o.now()
	if o.deps.Recorder != nil {
		if err := o.deps.Recorder.RecordRun(persistCtx, c.ID, stats); err != nil {
			log.Warn("failed to record run statistics", zap.Error(err))
		}
	}

	log.Info("campaign run finished",
		zap.Int("candidates", stats.Candidates),
		zap.Int("pairs_scored", stats.PairsScored),
		zap.Int("pairs_failed", stats.PairsFailed),
		zap.Int("tenants_matched", stats.TenantsMatched),
		zap.Int("matches_persisted", stats.MatchesPersisted),
		zap.Int("persist_failures", stats.PersistFailures),
		zap.Bool("cancelled", stats.Cancelled),
		zap.Duration("took", stats.Duration()))

	result := &RunResult{Campaign: c, Stats: stats}
	if stats.Cancelled {
		return result, eris.Wrap(ctx.Err(), "campaign run cancelled")
	}
	return result, nil
}

// scoreAll fans the candidate x property product out to a bounded worker
// pool. This goroutine owns all per-tenant state: a tenant is finalized as
// soon as its last pair arrives. Cancelling ctx stops new pairs from
// starting; pairs already running finish under persistCtx, bounded by the
// scorer's oracle timeout. Tenants left incomplete by cancellation are not
// recorded.
func (o *Orchestrator) scoreAll(ctx, persistCtx context.Context, c *Campaign, candidates []Candidate, props []match.PropertyListing, stats *RunStats) []MatchedTenant {
	if len(candidates) == 0 || len(props) == 0 {
		return []MatchedTenant{}
	}

	summaries := make([]match.TenantSummary, len(candidates))
	for i, cand := range candidates {
		summaries[i] = match.SummarizeTenant(cand.Tenant, cand.Preference)
	}

	workers := o.opts.Workers
	if total := len(candidates) * len(props); total < workers {
		workers = total
	}

	jobs := make(chan pairJob)
	results := make(chan pairResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				// a job can still be handed over after cancellation; it is not started
				if ctx.Err() != nil {
					continue
				}
				res, failed := o.scorePair(persistCtx, candidates[j.candidate], summaries[j.candidate], props[j.property])
				results <- pairResult{candidate: j.candidate, property: j.property, result: res, failed: failed}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for ci := range candidates {
			for pi := range props {
				select {
				case <-ctx.Done():
					return
				case jobs <- pairJob{candidate: ci, property: pi}:
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make([]int, len(candidates))
	for i := range pending {
		pending[i] = len(props)
	}
	scored := make([][]pairResult, len(candidates))
	byCandidate := make([]*MatchedTenant, len(candidates))

	for r := range results {
		stats.PairsScored++
		if r.failed {
			stats.PairsFailed++
		}
		if r.result.Err != nil && errors.Is(r.result.Err, ErrEstimationFailure) {
			stats.EstimationFailures++
		}

		scored[r.candidate] = append(scored[r.candidate], r)
		pending[r.candidate]--
		if pending[r.candidate] == 0 {
			byCandidate[r.candidate] = o.finalizeTenant(persistCtx, c, candidates[r.candidate].Tenant.ID, scored[r.candidate], props, stats)
			scored[r.candidate] = nil
		}
	}

	matched := make([]MatchedTenant, 0, len(candidates))
	for _, mt := range byCandidate {
		if mt != nil {
			matched = append(matched, *mt)
		}
	}
	return matched
}

// scorePair never panics. A failing pair scores 0 with a reason naming the failure.
func (o *Orchestrator) scorePair(ctx context.Context, cand Candidate, summary match.TenantSummary, prop match.PropertyListing) (res match.MatchResult, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			res = failedPair(eris.Errorf("panic: %v", r))
			failed = true
		}
	}()

	if cand.LookupErr != nil {
		return failedPair(cand.LookupErr), true
	}

	res = o.deps.Scorer.Score(ctx, summary, cand.Preference, prop)
	return res, res.Err != nil
}

func failedPair(err error) match.MatchResult {
	return match.MatchResult{
		Score:   0,
		Reasons: []string{fmt.Sprintf("scoring failed: %v", err)},
		Err:     err,
	}
}

// finalizeTenant keeps the qualifying pairs of one tenant, persists one match
// row per pair and returns the tenant's summary, or nil when nothing qualified.
func (o *Orchestrator) finalizeTenant(ctx context.Context, c *Campaign, tenantID string, pairs []pairResult, props []match.PropertyListing, stats *RunStats) *MatchedTenant {
	type qualifying struct {
		propertyID string
		result     match.MatchResult
	}

	var qs []qualifying
	for _, p := range pairs {
		if p.failed || p.result.Score <= o.threshold {
			continue
		}
		qs = append(qs, qualifying{propertyID: props[p.property].ID, result: p.result})
	}
	if len(qs) == 0 {
		return nil
	}

	sort.Slice(qs, func(i, j int) bool {
		if qs[i].result.Score != qs[j].result.Score {
			return qs[i].result.Score > qs[j].result.Score
		}
		return qs[i].propertyID < qs[j].propertyID
	})

	mt := &MatchedTenant{
		TenantID:               tenantID,
		BestScore:              qs[0].result.Score,
		RecommendedPropertyIDs: make([]string, 0, len(qs)),
	}

	for _, q := range qs {
		mt.RecommendedPropertyIDs = append(mt.RecommendedPropertyIDs, q.propertyID)

		m := &match.PropertyTenantMatch{
			ID:         uuid.NewString(),
			PropertyID: q.propertyID,
			TenantID:   tenantID,
			CampaignID: c.ID,
			Score:      q.result.Score,
			Reasons:    q.result.Reasons,
			CreatedAt:  o.now(),
		}
		if err := o.deps.Store.CreateMatch(ctx, m); err != nil {
			stats.PersistFailures++
			o.logger.Warn("failed to persist match",
				zap.String("campaign_id", c.ID),
				zap.String("tenant_id", tenantID),
				zap.String("property_id", q.propertyID),
				zap.Error(err))
			continue
		}
		stats.MatchesPersisted++
	}

	o.logger.Debug("tenant finalized",
		zap.String("tenant_id", tenantID),
		zap.Int("best_score", mt.BestScore),
		zap.Int("qualifying", len(qs)))
	return mt
}

func (o *Orchestrator) attachInsights(ctx, persistCtx context.Context, c *Campaign, stats *RunStats, log *zap.Logger) {
	lines, err := o.deps.Insights.Insights(ctx, c)
	if err != nil {
		stats.InsightFailures++
		log.Warn("insight generation failed", zap.Error(err))
	}
	if len(lines) == 0 {
		return
	}

	c.Insights = lines
	c.UpdatedAt = o.now()
	if err := o.deps.Store.UpdateCampaign(persistCtx, c); err != nil {
		stats.InsightFailures++
		log.Warn("failed to store insights", zap.Error(err))
	}
}

func propertyIDs(props []match.PropertyListing) []string {
	ids := make([]string, len(props))
	for i, p := range props {
		ids[i] = p.ID
	}
	return ids
}
