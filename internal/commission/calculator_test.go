package commission

import (
	"math"
	"testing"

	"marketplace_backend/platform/apperr"
)

func defaultRates() Rates {
	return Rates{StandardRateBps: 500, IntroducerSplitBps: 2000, MaxOverrideMultiple: 3}
}

func TestCompute_StandardSplit(t *testing.T) {
	// 200,000.00 at 5% -> 10,000.00 fee; 20% split -> 2,000.00 / 8,000.00.
	b, err := Compute(20_000_000, nil, defaultRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.StandardFee != 1_000_000 {
		t.Fatalf("expected standard fee 1000000, got %d", b.StandardFee)
	}
	if b.EffectiveFee != 1_000_000 {
		t.Fatalf("expected effective fee 1000000, got %d", b.EffectiveFee)
	}
	if b.IntroducerShare != 200_000 {
		t.Fatalf("expected introducer share 200000, got %d", b.IntroducerShare)
	}
	if b.FulfillerShare != 800_000 {
		t.Fatalf("expected fulfiller share 800000, got %d", b.FulfillerShare)
	}
}

func TestCompute_OverrideReplacesStandardFee(t *testing.T) {
	override := int64(1_500_000)
	b, err := Compute(20_000_000, &override, defaultRates())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.EffectiveFee != override {
		t.Fatalf("expected effective fee %d, got %d", override, b.EffectiveFee)
	}
	if b.StandardFee != 1_000_000 {
		t.Fatalf("standard fee must still be recorded, got %d", b.StandardFee)
	}
}

func TestCompute_RejectsNonPositiveOverride(t *testing.T) {
	for _, override := range []int64{0, -100} {
		o := override
		_, err := Compute(20_000_000, &o, defaultRates())
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("override %d: expected validation error, got %v", override, err)
		}
	}
}

func TestCompute_RejectsOverrideAboveCeiling(t *testing.T) {
	override := int64(3_000_001) // just above 3x the 1,000,000 standard fee
	_, err := Compute(20_000_000, &override, defaultRates())
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSplit_ReconcilesExactly(t *testing.T) {
	// Odd fees and awkward rates must still reconcile exactly because the
	// fulfiller share is derived by subtraction.
	fees := []int64{1, 3, 99, 1001, 33333, 999999999}
	for _, fee := range fees {
		for bps := 0; bps <= 10000; bps += 137 {
			introducer, fulfiller := Split(fee, bps)
			if introducer+fulfiller != fee {
				t.Fatalf("fee %d at %d bps: %d + %d != %d", fee, bps, introducer, fulfiller, fee)
			}
		}
	}
}

func TestStandardFee_RoundsHalfUp(t *testing.T) {
	// 101 cents at 5% = 5.05 -> 5; 110 cents at 5% = 5.5 -> 6.
	if got := StandardFee(101, 500); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := StandardFee(110, 500); got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}
}

func TestNextRating_IncrementalMean(t *testing.T) {
	// 4.5 across 9 completions, then a 5.0 review on the 10th.
	got := NextRating(4.5, 9, 5.0)
	if math.Abs(got-4.55) > 1e-9 {
		t.Fatalf("expected 4.55, got %v", got)
	}
}

func TestNextRating_FirstReview(t *testing.T) {
	if got := NextRating(0, 0, 4.0); got != 4.0 {
		t.Fatalf("first review must set the rating, got %v", got)
	}
}
