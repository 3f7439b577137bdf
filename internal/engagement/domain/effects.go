package domain

// Effect is a required side effect of a transition. The audit record is not
// listed: it is written inside the authoritative transaction for every
// transition without exception.
type Effect string

const (
	// EffectNotifyCandidate creates an in-app notification and real-time
	// push for the engagement's candidate.
	EffectNotifyCandidate Effect = "notify_candidate"
	// EffectNotifyRequester creates an in-app notification and real-time
	// push for the request's owner.
	EffectNotifyRequester Effect = "notify_requester"
	// EffectNotifyCounterpart notifies whichever party did not perform the
	// transition; the coordinator resolves the target from the actor.
	EffectNotifyCounterpart Effect = "notify_counterpart"
	// EffectCRMNew upserts the CRM lead as NEW.
	EffectCRMNew Effect = "crm_new"
	// EffectCRMQualified moves the CRM lead to QUALIFIED.
	EffectCRMQualified Effect = "crm_qualified"
	// EffectCRMWon moves the CRM lead to WON.
	EffectCRMWon Effect = "crm_won"
	// EffectCRMLost moves the CRM lead to LOST.
	EffectCRMLost Effect = "crm_lost"
	// EffectComputeCommission computes the provisional split at acceptance
	// when the base value is known.
	EffectComputeCommission Effect = "compute_commission"
	// EffectFinalizeCommission recomputes the split against the final value
	// at completion.
	EffectFinalizeCommission Effect = "finalize_commission"
	// EffectApplyCompletion increments the candidate's counters and folds
	// the review score into the rating, atomically in storage.
	EffectApplyCompletion Effect = "apply_completion"
	// EffectPaymentIntent requests a payment intent from the payment
	// collaborator (booking engagements only).
	EffectPaymentIntent Effect = "payment_intent"
)

// effectTable binds each transition to its required side effects, in the
// order they are applied. Commission and completion effects are
// authoritative and join the state transaction; CRM and notification effects
// are downstream (best-effort, retried out-of-band).
var effectTable = map[Event][]Effect{
	EventDispatch:    {EffectCRMNew, EffectNotifyCandidate},
	EventUpdateTerms: {EffectNotifyCounterpart},
	EventAccept:      {EffectComputeCommission, EffectPaymentIntent, EffectCRMQualified, EffectNotifyCounterpart},
	EventComplete:    {EffectFinalizeCommission, EffectApplyCompletion, EffectCRMWon, EffectNotifyCounterpart},
	EventReject:      {EffectCRMLost, EffectNotifyCounterpart},
	EventWithdraw:    {EffectNotifyRequester},
	EventCancel:      {EffectCRMLost, EffectNotifyCandidate},
}

// bookingOnly marks effects that apply exclusively to booking engagements.
var bookingOnly = map[Effect]bool{
	EffectPaymentIntent: true,
}

// EffectsFor returns the side effects required by applying event to an
// engagement of the given request type. The set is static per transition.
func EffectsFor(event Event, requestType string) []Effect {
	base := effectTable[event]
	effects := make([]Effect, 0, len(base))
	for _, e := range base {
		if bookingOnly[e] && requestType != "booking" {
			continue
		}
		effects = append(effects, e)
	}
	return effects
}

// IsDownstream reports whether an effect is non-authoritative: applied after
// the state transaction commits, best-effort, independently retryable.
func IsDownstream(e Effect) bool {
	switch e {
	case EffectNotifyCandidate, EffectNotifyRequester, EffectNotifyCounterpart,
		EffectCRMNew, EffectCRMQualified, EffectCRMWon, EffectCRMLost:
		return true
	default:
		return false
	}
}
