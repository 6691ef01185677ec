// Package proximity holds the static lookup tables used for partial credit
// when a listing is close to, but not exactly, what a tenant asked for.
// The tables are built once at package initialization and never mutated.
package proximity

import (
	"sort"

	"github.com/lettings-match/internal/normalize"
)

// areaEdges lists neighbouring areas. Each edge is made symmetric when the
// table is built, so listing it once is enough.
var areaEdges = [][2]string{
	// Manchester
	{"fallowfield", "withington"},
	{"fallowfield", "rusholme"},
	{"fallowfield", "victoria park"},
	{"withington", "didsbury"},
	{"rusholme", "victoria park"},
	{"victoria park", "manchester city centre"},
	{"hulme", "manchester city centre"},
	{"hulme", "moss side"},
	// Leeds
	{"headingley", "hyde park"},
	{"headingley", "burley"},
	{"headingley", "kirkstall"},
	{"hyde park", "woodhouse"},
	{"woodhouse", "leeds city centre"},
	{"burley", "kirkstall"},
	// Birmingham
	{"selly oak", "bournbrook"},
	{"selly oak", "edgbaston"},
	{"edgbaston", "harborne"},
	{"bournbrook", "edgbaston"},
	{"edgbaston", "birmingham city centre"},
	// Sheffield
	{"broomhill", "crookes"},
	{"broomhill", "ecclesall road"},
	{"crookes", "walkley"},
	{"broomhill", "sheffield city centre"},
	// Nottingham
	{"lenton", "dunkirk"},
	{"lenton", "beeston"},
	{"dunkirk", "beeston"},
	{"lenton", "nottingham city centre"},
	// Bristol
	{"clifton", "redland"},
	{"clifton", "cotham"},
	{"redland", "cotham"},
	{"cotham", "bristol city centre"},
	// Liverpool
	{"smithdown", "wavertree"},
	{"kensington", "wavertree"},
	{"smithdown", "liverpool city centre"},
	// London
	{"camden", "kentish town"},
	{"camden", "king s cross"},
	{"bloomsbury", "king s cross"},
	{"bloomsbury", "fitzrovia"},
	{"mile end", "stepney"},
	{"mile end", "bow"},
	{"stratford", "bow"},
	{"new cross", "deptford"},
	{"new cross", "lewisham"},
}

// typeEdges links property types that a tenant would consider similar.
var typeEdges = [][2]string{
	{"flat", "apartment"},
	{"flat", "studio"},
	{"flat", "maisonette"},
	{"apartment", "studio"},
	{"apartment", "penthouse"},
	{"studio", "bedsit"},
	{"house", "terraced house"},
	{"house", "semi detached"},
	{"house", "detached"},
	{"house", "townhouse"},
	{"house", "bungalow"},
	{"house", "cottage"},
	{"terraced house", "townhouse"},
	{"semi detached", "detached"},
	{"shared house", "hmo"},
	{"shared house", "room"},
	{"room", "en suite"},
	{"room", "hmo"},
	{"student accommodation", "halls"},
	{"student accommodation", "en suite"},
}

var (
	areaAdjacency  = buildGraph(areaEdges)
	typeSimilarity = buildGraph(typeEdges)
)

func buildGraph(edges [][2]string) map[string]map[string]struct{} {
	g := make(map[string]map[string]struct{})
	link := func(a, b string) {
		if g[a] == nil {
			g[a] = make(map[string]struct{})
		}
		g[a][b] = struct{}{}
	}
	for _, e := range edges {
		a, b := normalize.Key(e[0]), normalize.Key(e[1])
		link(a, b)
		link(b, a)
	}
	return g
}

// Nearby reports whether two areas are adjacent. An area is not nearby itself;
// exact matches are handled by the caller.
func Nearby(a, b string) bool {
	return connected(areaAdjacency, a, b)
}

// SimilarTypes reports whether two property types are considered similar.
func SimilarTypes(a, b string) bool {
	return connected(typeSimilarity, a, b)
}

// Neighbours returns the areas adjacent to area in sorted order.
func Neighbours(area string) []string {
	return members(areaAdjacency, area)
}

// SimilarTo returns the property types similar to t in sorted order.
func SimilarTo(t string) []string {
	return members(typeSimilarity, t)
}

func connected(g map[string]map[string]struct{}, a, b string) bool {
	ka, kb := normalize.Key(a), normalize.Key(b)
	if ka == "" || kb == "" || ka == kb {
		return false
	}
	_, ok := g[ka][kb]
	return ok
}

func members(g map[string]map[string]struct{}, v string) []string {
	set := g[normalize.Key(v)]
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
