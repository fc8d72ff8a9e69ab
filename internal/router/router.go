// Package router decides, per interaction state, which capability runs next.
//
// Next is a pure function over the interaction state: deterministic, side
// effect free, and cheap enough to call on every loop iteration. This is
// what makes the routing layer replayable in tests.
package router

import "github.com/carelane/orchestrator/internal/domain"

// Decision is the Router's verdict: either a single capability to invoke
// next, or finalize.
type Decision struct {
	Finalize   bool
	Capability domain.Capability
}

// Finalize is the terminal decision.
var Finalize = Decision{Finalize: true}

// Invoke wraps a capability name in a decision.
func Invoke(c domain.Capability) Decision {
	return Decision{Capability: c}
}

// Next returns the next step for the interaction. Rules are evaluated in
// precedence order and the first match wins.
//
// The routing policy is strictly sequential: per invocation an intent maps
// to at most one of the specialist capabilities (briefing vs. audit), so a
// fan-out decision is never reachable and Next returns exactly one step.
func Next(it *domain.Interaction) Decision {
	// Escalation halts all further routing.
	if it.Escalated {
		return Finalize
	}

	// Live interactions always start with Intake.
	if !it.HasRun(domain.CapabilityIntake) && it.TriggerType.IsLive() {
		return Invoke(domain.CapabilityIntake)
	}

	// After Intake, route by its refined intent.
	if intake := it.Output(domain.CapabilityIntake); intake != nil {
		refined := it.Intent
		if intake.RefinedIntent != "" {
			refined = intake.RefinedIntent
		}

		switch refined {
		case domain.IntentClinicalQuestion, domain.IntentTreatmentPlan, domain.IntentChartReview:
			if !it.HasRun(domain.CapabilityClinicalBriefing) {
				return Invoke(domain.CapabilityClinicalBriefing)
			}
		case domain.IntentBillingInquiry, domain.IntentInsuranceQuestion:
			if !it.HasRun(domain.CapabilityComplianceAudit) {
				return Invoke(domain.CapabilityComplianceAudit)
			}
		}

		// After a specialist, Communications drafts the outbound side.
		if it.HasRun(domain.CapabilityClinicalBriefing) || it.HasRun(domain.CapabilityComplianceAudit) {
			if !it.HasRun(domain.CapabilityCommunications) {
				return Invoke(domain.CapabilityCommunications)
			}
		}
	}

	// Manual triggers go directly to the named capability, once.
	if it.TriggerType == domain.TriggerManual {
		target := domain.CapabilityIntake
		if it.Payload.Agent != "" {
			target = domain.Capability(it.Payload.Agent)
		}
		if target.Valid() && !it.HasRun(target) {
			return Invoke(target)
		}
	}

	// Scheduled jobs go to Communications.
	if it.TriggerType == domain.TriggerScheduledJob && !it.HasRun(domain.CapabilityCommunications) {
		return Invoke(domain.CapabilityCommunications)
	}

	return Finalize
}
