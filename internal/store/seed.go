package store

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/lettings-match/internal/campaign"
	"github.com/lettings-match/internal/match"
)

// Seed is a directory snapshot loaded from a JSON document.
type Seed struct {
	Tenants     []match.Tenant           `json:"tenants"`
	Preferences []match.TenantPreference `json:"preferences"`
	Properties  []match.PropertyListing  `json:"properties"`
}

// Saver is implemented by both Memory and SQL.
type Saver interface {
	SaveTenant(ctx context.Context, t match.Tenant) error
	SavePreference(ctx context.Context, p match.TenantPreference) error
	SaveProperty(ctx context.Context, p match.PropertyListing) error
}

// ReadSeed decodes a seed document, rejecting unknown fields.
func ReadSeed(r io.Reader) (*Seed, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var s Seed
	if err := dec.Decode(&s); err != nil {
		return nil, eris.Wrap(err, "decode seed")
	}
	for _, t := range s.Tenants {
		if t.ID == "" {
			return nil, eris.New("seed tenant without id")
		}
	}
	var problems []string
	for _, p := range s.Preferences {
		problems = append(problems, p.Validate()...)
	}
	for _, p := range s.Properties {
		problems = append(problems, p.Validate()...)
	}
	if len(problems) > 0 {
		return nil, eris.Wrap(&campaign.ValidationError{Problems: problems}, "invalid seed")
	}
	return &s, nil
}

// Apply saves every record in the seed. Tenants are written before their
// preferences.
func (s *Seed) Apply(ctx context.Context, dst Saver) error {
	for _, t := range s.Tenants {
		if err := dst.SaveTenant(ctx, t); err != nil {
			return eris.Wrapf(err, "save tenant %s", t.ID)
		}
	}
	for _, p := range s.Preferences {
		if err := dst.SavePreference(ctx, p); err != nil {
			return eris.Wrapf(err, "save preference %s", p.TenantID)
		}
	}
	for _, p := range s.Properties {
		if err := dst.SaveProperty(ctx, p); err != nil {
			return eris.Wrapf(err, "save property %s", p.ID)
		}
	}
	return nil
}
