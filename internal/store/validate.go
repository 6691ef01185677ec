package store

import (
	"github.com/lettings-match/internal/campaign"
	"github.com/lettings-match/internal/match"
)

func checkProperty(p match.PropertyListing) error {
	if problems := p.Validate(); len(problems) > 0 {
		return &campaign.ValidationError{Problems: problems}
	}
	return nil
}

func checkPreference(p match.TenantPreference) error {
	if problems := p.Validate(); len(problems) > 0 {
		return &campaign.ValidationError{Problems: problems}
	}
	return nil
}
