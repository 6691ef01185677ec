package campaign

import (
	"context"

	"go.uber.org/zap"

	"github.com/lettings-match/internal/match"
	"github.com/lettings-match/internal/normalize"
)

// Candidate is a tenant selected for scoring together with the preference
// snapshot used for every pair of that tenant. Preference is nil when the
// tenant has not stated any. LookupErr is set when the preference could not
// be read; every pair of such a candidate fails.
type Candidate struct {
	Tenant     match.Tenant
	Preference *match.TenantPreference
	LookupErr  error
}

// Selector narrows the tenant pool with a TenantFilter.
type Selector struct {
	dir    Directory
	logger *zap.Logger
}

// NewSelector creates a selector reading preferences from dir.
func NewSelector(dir Directory, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{dir: dir, logger: logger.Named("selector")}
}

// SelectCandidates returns the tenants passing filter, in input order. A nil
// filter keeps every tenant. With a filter, tenants without preferences are
// excluded and every present dimension must match.
func (s *Selector) SelectCandidates(ctx context.Context, tenants []match.Tenant, filter *TenantFilter) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(tenants))

	for _, t := range tenants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pref, err := s.dir.GetPreference(ctx, t.ID)
		switch {
		case err == nil:
		case IsNotFound(err):
			pref = nil
		default:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if filter == nil {
				s.logger.Warn("preference lookup failed",
					zap.String("tenant_id", t.ID), zap.Error(err))
				candidates = append(candidates, Candidate{Tenant: t, LookupErr: err})
				continue
			}
			s.logger.Warn("preference lookup failed, tenant excluded",
				zap.String("tenant_id", t.ID), zap.Error(err))
			continue
		}

		if filter != nil && (pref == nil || !filter.Accepts(*pref)) {
			continue
		}
		candidates = append(candidates, Candidate{Tenant: t, Preference: pref})
	}

	s.logger.Debug("candidates selected",
		zap.Int("pool", len(tenants)),
		zap.Int("selected", len(candidates)),
		zap.Bool("filtered", filter != nil))
	return candidates, nil
}

// Accepts reports whether pref passes every present dimension of the filter.
func (f TenantFilter) Accepts(pref match.TenantPreference) bool {
	if len(f.Lifestyles) > 0 && !normalize.Intersects(pref.Lifestyles, f.Lifestyles) {
		return false
	}
	if len(f.Universities) > 0 && !normalize.Intersects(pref.Universities, f.Universities) {
		return false
	}
	if f.Budget != nil && (pref.Budget == nil || !pref.Budget.Overlaps(*f.Budget)) {
		return false
	}
	return true
}
