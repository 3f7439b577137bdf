// Package commission computes standard fees, override validation, and the
// introducer/fulfiller split for engagements. Everything here is a pure
// function over integer cents and basis-point rates; persistence happens in
// the engagement repository.
package commission

import (
	"fmt"

	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/config"
)

// Rates are the configured commission parameters.
type Rates struct {
	// StandardRateBps is the standard fee as basis points of the base value.
	StandardRateBps int
	// IntroducerSplitBps is the introducer's share as basis points of the
	// effective fee.
	IntroducerSplitBps int
	// MaxOverrideMultiple caps a caller-supplied override at this multiple
	// of the standard fee.
	MaxOverrideMultiple int
}

// RatesFrom resolves rates from configuration.
func RatesFrom(cfg config.CommissionConfig) Rates {
	return Rates{
		StandardRateBps:     cfg.GetStandardRateBps(),
		IntroducerSplitBps:  cfg.GetIntroducerSplitBps(),
		MaxOverrideMultiple: cfg.GetMaxOverrideMultiple(),
	}
}

// Breakdown is the computed commission tuple attached to an engagement.
// Invariant: IntroducerShare + FulfillerShare == EffectiveFee.
type Breakdown struct {
	StandardFee     int64
	OverrideFee     *int64
	EffectiveFee    int64
	IntroducerShare int64
	FulfillerShare  int64
}

// StandardFee computes the standard fee in cents from a base value and a
// basis-point rate, rounding half up.
func StandardFee(baseValue int64, standardRateBps int) int64 {
	return (baseValue*int64(standardRateBps) + 5000) / 10000
}

// EffectiveFee resolves the fee actually distributed. A nil override keeps
// the standard fee. A present override must be positive and within the
// sanity ceiling; caller-supplied values are never trusted verbatim.
func EffectiveFee(standardFee int64, override *int64, maxMultiple int) (int64, error) {
	if override == nil {
		return standardFee, nil
	}
	if *override <= 0 {
		return 0, apperr.Validation("fee override must be positive")
	}
	if maxMultiple > 0 && standardFee > 0 && *override > standardFee*int64(maxMultiple) {
		return 0, apperr.Validation(fmt.Sprintf("fee override exceeds %dx the standard fee", maxMultiple))
	}
	return *override, nil
}

// Split divides an effective fee between introducer and fulfiller. The
// fulfiller share is computed by subtraction so the two shares reconcile to
// the effective fee exactly, with no independent rounding drift.
func Split(effectiveFee int64, splitRateBps int) (introducer, fulfiller int64) {
	introducer = (effectiveFee*int64(splitRateBps) + 5000) / 10000
	fulfiller = effectiveFee - introducer
	return introducer, fulfiller
}

// Compute builds the full breakdown for a base value and optional override,
// and verifies the reconciliation invariant before returning. A violation is
// a programming defect and is surfaced loudly, never persisted.
func Compute(baseValue int64, override *int64, rates Rates) (Breakdown, error) {
	if baseValue < 0 {
		return Breakdown{}, apperr.Validation("base value must not be negative")
	}

	standard := StandardFee(baseValue, rates.StandardRateBps)
	effective, err := EffectiveFee(standard, override, rates.MaxOverrideMultiple)
	if err != nil {
		return Breakdown{}, err
	}
	introducer, fulfiller := Split(effective, rates.IntroducerSplitBps)

	b := Breakdown{
		StandardFee:     standard,
		OverrideFee:     override,
		EffectiveFee:    effective,
		IntroducerShare: introducer,
		FulfillerShare:  fulfiller,
	}
	if !b.Reconciles() {
		return Breakdown{}, apperr.Invariant(fmt.Sprintf(
			"commission shares do not reconcile: %d + %d != %d",
			b.IntroducerShare, b.FulfillerShare, b.EffectiveFee,
		))
	}
	return b, nil
}

// Reconciles reports whether the shares sum to the effective fee exactly.
func (b Breakdown) Reconciles() bool {
	return b.IntroducerShare+b.FulfillerShare == b.EffectiveFee
}

// NextRating folds one review score into a candidate's running mean rating:
// newRating = oldRating + (review - oldRating) / (completedCount + 1).
// Must be applied exactly once per completion; the engagement state machine
// rejects replays before this is reached.
func NextRating(oldRating float64, completedCount int64, review float64) float64 {
	return oldRating + (review-oldRating)/float64(completedCount+1)
}
