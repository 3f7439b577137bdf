package matching

import (
	"testing"

	"github.com/google/uuid"

	"marketplace_backend/internal/candidates/repository"
)

func profile(id byte, rating float64, valuations int64) repository.Profile {
	return repository.Profile{
		ID:              uuid.UUID{id},
		Verified:        true,
		Active:          true,
		Regions:         []string{"North Dublin"},
		Specializations: []string{"residential"},
		Rating:          rating,
		TotalValuations: valuations,
	}
}

func valuationRules() RuleSet {
	return RuleSet{TopN: 5, MinRating: 4.0, MinVolume: 5, RegionWildcard: "nationwide"}
}

func TestRank_RatingDescThenVolumeDesc(t *testing.T) {
	req := RequestView{Type: "valuation", Region: "North Dublin"}
	pool := []repository.Profile{
		profile(1, 4.8, 20),
		profile(2, 4.2, 15),
		profile(3, 4.9, 30),
	}

	got := TopCandidates(req, pool, valuationRules())

	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].Rating != 4.9 || got[1].Rating != 4.8 || got[2].Rating != 4.2 {
		t.Fatalf("wrong order: %.1f, %.1f, %.1f", got[0].Rating, got[1].Rating, got[2].Rating)
	}
}

func TestRank_TieBreaksAreDeterministic(t *testing.T) {
	a := profile(1, 4.5, 10)
	b := profile(2, 4.5, 10)
	c := profile(3, 4.5, 12)

	first := Rank([]repository.Profile{b, c, a}, "valuation")
	second := Rank([]repository.Profile{a, b, c}, "valuation")

	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("ranking not deterministic at position %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
	// Higher volume first, then id ascending among full ties.
	if first[0].ID != c.ID {
		t.Fatalf("expected highest-volume candidate first, got %s", first[0].ID)
	}
	if first[1].ID != a.ID || first[2].ID != b.ID {
		t.Fatalf("expected id-ascending tie-break, got %s then %s", first[1].ID, first[2].ID)
	}
}

func TestTake_BoundsResult(t *testing.T) {
	pool := []repository.Profile{profile(1, 5, 1), profile(2, 4, 1), profile(3, 3, 1)}

	if got := Take(pool, 2); len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
	if got := Take(pool, 10); len(got) != 3 {
		t.Fatalf("expected all 3 when bound exceeds pool, got %d", len(got))
	}
	if got := Take(pool, 0); len(got) != 3 {
		t.Fatalf("expected unbounded on zero, got %d", len(got))
	}
}

func TestFilter_MinimumVolumeFloor(t *testing.T) {
	req := RequestView{Type: "valuation", Region: "North Dublin"}
	tooFew := profile(1, 4.9, 3)

	got := Filter(req, []repository.Profile{tooFew}, valuationRules())
	if len(got) != 0 {
		t.Fatalf("candidate below valuation floor must be excluded, got %d matches", len(got))
	}
}

func TestFilter_UnverifiedOrInactiveExcluded(t *testing.T) {
	req := RequestView{Type: "valuation", Region: "North Dublin"}

	unverified := profile(1, 4.9, 20)
	unverified.Verified = false
	inactive := profile(2, 4.9, 20)
	inactive.Active = false

	got := Filter(req, []repository.Profile{unverified, inactive}, valuationRules())
	if len(got) != 0 {
		t.Fatalf("expected no eligible candidates, got %d", len(got))
	}
}

func TestFilter_RegionWildcard(t *testing.T) {
	req := RequestView{Type: "valuation", Region: "Cork"}
	nationwide := profile(1, 4.9, 20)
	nationwide.Regions = []string{"nationwide"}

	got := Filter(req, []repository.Profile{nationwide}, valuationRules())
	if len(got) != 1 {
		t.Fatalf("wildcard region must satisfy any request region, got %d matches", len(got))
	}
}

func TestFilter_SpecializationRequired(t *testing.T) {
	req := RequestView{Type: "property_submission", Category: "commercial", Region: "North Dublin"}
	rules := RuleSet{TopN: 10, RequireSpecialization: true, RegionWildcard: "nationwide"}

	residentialOnly := profile(1, 4.9, 20)

	got := Filter(req, []repository.Profile{residentialOnly}, rules)
	if len(got) != 0 {
		t.Fatalf("missing specialization must exclude, got %d matches", len(got))
	}

	commercial := profile(2, 4.9, 20)
	commercial.Specializations = []string{"commercial"}
	got = Filter(req, []repository.Profile{commercial}, rules)
	if len(got) != 1 {
		t.Fatalf("matching specialization must be eligible, got %d matches", len(got))
	}
}

// Removing a region or specialization from a profile never increases its
// presence in eligibility results for a fixed request.
func TestFilter_Monotonicity(t *testing.T) {
	req := RequestView{Type: "property_submission", Category: "residential", Region: "North Dublin"}
	rules := RuleSet{TopN: 10, RequireSpecialization: true, RegionWildcard: "nationwide"}

	full := profile(1, 4.9, 20)
	full.Regions = []string{"North Dublin", "South Dublin"}
	full.Specializations = []string{"residential", "commercial"}

	if len(Filter(req, []repository.Profile{full}, rules)) != 1 {
		t.Fatal("fully qualified profile must be eligible")
	}

	noRegion := full
	noRegion.Regions = []string{"South Dublin"}
	if len(Filter(req, []repository.Profile{noRegion}, rules)) != 0 {
		t.Fatal("removing the matching region must not keep the profile eligible")
	}

	noSpec := full
	noSpec.Specializations = []string{"commercial"}
	if len(Filter(req, []repository.Profile{noSpec}, rules)) != 0 {
		t.Fatal("removing the matching specialization must not keep the profile eligible")
	}
}

func TestFilter_EmptyPoolIsValidOutcome(t *testing.T) {
	req := RequestView{Type: "valuation", Region: "North Dublin"}
	got := Filter(req, nil, valuationRules())
	if got != nil {
		t.Fatalf("expected empty result, got %v", got)
	}
}
