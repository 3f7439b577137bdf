// Package matching implements the eligibility filter and deterministic ranker
// that select which candidate profiles are dispatched for a request. All
// functions are pure; persistence and notification happen in the callers.
package matching

import (
	"sort"

	"marketplace_backend/internal/candidates/repository"
	"marketplace_backend/platform/config"
)

// RequestView is the slice of a request the matching engine needs.
type RequestView struct {
	Type     string
	Category string
	Region   string
}

// RuleSet is the resolved eligibility and ranking configuration for one
// request type.
type RuleSet struct {
	TopN                  int
	MinRating             float64
	MinVolume             int64
	RequireSpecialization bool
	RegionWildcard        string
}

// RuleSetFor resolves the rule set for a request type from configuration.
func RuleSetFor(cfg config.MatchingConfig, requestType string) RuleSet {
	rule := cfg.GetMatchRule(requestType)
	return RuleSet{
		TopN:                  rule.TopN,
		MinRating:             rule.MinRating,
		MinVolume:             rule.MinVolume,
		RequireSpecialization: rule.RequireSpecialization,
		RegionWildcard:        cfg.GetRegionWildcard(),
	}
}

// Filter returns the subset of the pool satisfying every eligibility
// predicate for the request. Zero matches is a valid outcome, not an error.
func Filter(req RequestView, pool []repository.Profile, rules RuleSet) []repository.Profile {
	var eligible []repository.Profile
	for _, p := range pool {
		if !Eligible(req, p, rules) {
			continue
		}
		eligible = append(eligible, p)
	}
	return eligible
}

// Eligible reports whether a single profile passes the request's predicates.
func Eligible(req RequestView, p repository.Profile, rules RuleSet) bool {
	if !p.Verified || !p.Active {
		return false
	}
	if !servesRegion(p.Regions, req.Region, rules.RegionWildcard) {
		return false
	}
	if rules.RequireSpecialization && !contains(p.Specializations, req.Category) {
		return false
	}
	if rules.MinRating > 0 && p.Rating < rules.MinRating {
		return false
	}
	if rules.MinVolume > 0 && VolumeFor(p, req.Type) < rules.MinVolume {
		return false
	}
	return true
}

// VolumeFor returns the volume counter ranked and thresholded for a request type.
func VolumeFor(p repository.Profile, requestType string) int64 {
	switch requestType {
	case "valuation":
		return p.TotalValuations
	case "booking":
		return p.TotalBookings
	default:
		return p.TotalDeals
	}
}

// Rank orders eligible candidates by rating descending, then the type's
// volume counter descending, then candidate ID ascending. The final key makes
// the order fully deterministic for identical inputs.
func Rank(eligible []repository.Profile, requestType string) []repository.Profile {
	ranked := make([]repository.Profile, len(eligible))
	copy(ranked, eligible)

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		av, bv := VolumeFor(a, requestType), VolumeFor(b, requestType)
		if av != bv {
			return av > bv
		}
		return a.ID.String() < b.ID.String()
	})

	return ranked
}

// Take truncates the ranked list to the configured top-N bound.
func Take(ranked []repository.Profile, n int) []repository.Profile {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// TopCandidates runs the full pipeline: filter, rank, truncate.
func TopCandidates(req RequestView, pool []repository.Profile, rules RuleSet) []repository.Profile {
	return Take(Rank(Filter(req, pool, rules), req.Type), rules.TopN)
}

func servesRegion(regions []string, region, wildcard string) bool {
	for _, r := range regions {
		if r == region {
			return true
		}
		if wildcard != "" && r == wildcard {
			return true
		}
	}
	return false
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
