// Package locality fills in missing city and area fields of listings by
// parsing their free-text address with libpostal.
package locality

import (
	"strings"
	"unicode"
	"unicode/utf8"

	postal "github.com/openvenues/gopostal/parser"
	"go.uber.org/zap"

	"github.com/lettings-match/internal/match"
)

// ParseFunc splits an address into labelled components such as "city" and "suburb".
type ParseFunc func(address string) map[string]string

// Libpostal parses with the libpostal C library.
func Libpostal(address string) map[string]string {
	extracted := make(map[string]string)
	for _, comp := range postal.ParseAddress(address) {
		extracted[comp.Label] = comp.Value
	}
	return extracted
}

// areaLabels are tried in order when filling the area of a listing.
var areaLabels = []string{"suburb", "city_district", "neighbourhood"}

// Enricher completes listing locations from their address.
type Enricher struct {
	parse  ParseFunc
	logger *zap.Logger
}

// NewEnricher creates an enricher. A nil parse uses libpostal.
func NewEnricher(parse ParseFunc, logger *zap.Logger) *Enricher {
	if parse == nil {
		parse = Libpostal
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{parse: parse, logger: logger.Named("locality")}
}

// Enrich fills City and Area when they are empty and reports whether the
// listing changed. Existing values are never overwritten.
func (e *Enricher) Enrich(p *match.PropertyListing) bool {
	if strings.TrimSpace(p.Address) == "" || (p.City != "" && p.Area != "") {
		return false
	}

	components := e.parse(p.Address)
	changed := false

	if p.City == "" {
		if city := components["city"]; city != "" {
			p.City = titleCase(city)
			changed = true
		}
	}
	if p.Area == "" {
		for _, label := range areaLabels {
			if v := components[label]; v != "" {
				p.Area = titleCase(v)
				changed = true
				break
			}
		}
	}

	if changed {
		e.logger.Debug("listing enriched",
			zap.String("property_id", p.ID),
			zap.String("city", p.City),
			zap.String("area", p.Area))
	}
	return changed
}

// titleCase restores capitals; libpostal returns lower case components.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
