package match

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// EstimationFailedReason is the only reason attached to a failed estimate.
const EstimationFailedReason = "estimation failed"

// ErrEstimationFailure marks a pair that could not be scored by the oracle.
var ErrEstimationFailure = eris.New("estimation failure")

// ScorerOptions tunes the oracle path of the Scorer.
type ScorerOptions struct {
	OracleTimeout time.Duration
}

// Scorer scores tenant/property pairs. Pairs with a stated preference are
// evaluated locally; pairs without one are delegated to the oracle.
type Scorer struct {
	oracle Oracle
	opts   ScorerOptions
	logger *zap.Logger
}

// NewScorer creates a scorer. A nil oracle makes every preference-less pair
// fail estimation.
func NewScorer(oracle Oracle, opts ScorerOptions, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = 10 * time.Second
	}
	return &Scorer{
		oracle: oracle,
		opts:   opts,
		logger: logger.Named("scorer"),
	}
}

// Score never returns an error to the caller. Estimation failures come back
// as a zero score with Err set.
func (s *Scorer) Score(ctx context.Context, tenant TenantSummary, pref *TenantPreference, prop PropertyListing) MatchResult {
	if pref != nil {
		return s.evaluate(tenant, pref, prop)
	}
	return s.estimate(ctx, tenant, prop)
}

func (s *Scorer) evaluate(tenant TenantSummary, pref *TenantPreference, prop PropertyListing) (res MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			err := eris.Errorf("evaluate pair: %v", r)
			s.logger.Error("evaluation panicked",
				zap.String("tenant_id", tenant.ID),
				zap.String("property_id", prop.ID),
				zap.Error(err))
			res = MatchResult{Score: 0, Reasons: []string{"scoring failed: " + err.Error()}, Err: err}
		}
	}()

	res = Evaluate(*pref, prop)
	s.logger.Debug("pair evaluated",
		zap.String("tenant_id", tenant.ID),
		zap.String("property_id", prop.ID),
		zap.Int("score", res.Score))
	return res
}

func (s *Scorer) estimate(ctx context.Context, tenant TenantSummary, prop PropertyListing) (res MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			res = failedEstimate(eris.Errorf("oracle panic: %v", r))
		}
		if res.Err != nil {
			s.logger.Warn("estimation failed",
				zap.String("tenant_id", tenant.ID),
				zap.String("property_id", prop.ID),
				zap.Error(res.Err))
		}
	}()

	if s.oracle == nil {
		return failedEstimate(eris.New("no estimation oracle configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OracleTimeout)
	defer cancel()

	est, err := s.oracle.Estimate(ctx, tenant, SummarizeProperty(prop))
	if err != nil {
		return failedEstimate(err)
	}

	reasons := est.Reasons
	if len(reasons) == 0 {
		reasons = []string{NoCriteriaReason}
	}
	return MatchResult{Score: clamp(est.Score), Reasons: reasons, Estimated: true}
}

func failedEstimate(cause error) MatchResult {
	return MatchResult{
		Score:   0,
		Reasons: []string{EstimationFailedReason},
		Err:     eris.Wrapf(ErrEstimationFailure, "estimate pair: %v", cause),
	}
}
