package domain

import (
	"encoding/json"
	"time"
)

// AgentResult is the uniform output contract every capability returns. A
// failed run still produces a result with a zeroed payload of the same
// shape, so downstream consumers never branch on type.
type AgentResult struct {
	Capability Capability   `json:"capability"`
	Status     ResultStatus `json:"status"`

	// RefinedIntent, when set, overrides the interaction's intent.
	RefinedIntent Intent `json:"refined_intent,omitempty"`

	Escalate         bool   `json:"escalate,omitempty"`
	EscalationReason string `json:"escalation_reason,omitempty"`

	// Notes is a soft hand-off channel for the next capability in the
	// chain. Not authoritative.
	Notes string `json:"notes,omitempty"`

	// Payload holds the capability-specific structured output
	// (IntakeOutput, BriefingOutput, CommsOutput or AuditOutput).
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Failed reports whether the run ended in a capability-internal failure.
func (r *AgentResult) Failed() bool {
	return r != nil && r.Status == ResultFailed
}

// Interaction is the unit of orchestration: one per trigger event, owned by
// a single logical thread end-to-end, discarded after finalize.
type Interaction struct {
	InteractionID string         `json:"interaction_id"`
	WorkspaceID   string         `json:"workspace_id"`
	PatientRef    string         `json:"patient_ref,omitempty"`
	ProviderRef   string         `json:"provider_ref,omitempty"`
	TriggerType   TriggerType    `json:"trigger_type"`
	Payload       TriggerPayload `json:"payload"`

	Intent Intent `json:"intent,omitempty"`

	// Outputs holds one result per capability in execution order.
	Outputs []*AgentResult `json:"outputs"`

	Escalated        bool   `json:"escalated"`
	EscalationReason string `json:"escalation_reason,omitempty"`
	Completed        bool   `json:"completed"`
	Steps            int    `json:"steps"`
	Phase            Phase  `json:"phase"`

	StartedAt time.Time `json:"started_at"`
}

// HasRun reports whether the named capability has produced an output.
// A failed run still counts as having run.
func (it *Interaction) HasRun(c Capability) bool {
	return it.Output(c) != nil
}

// Output returns the named capability's result, or nil if it has not run.
func (it *Interaction) Output(c Capability) *AgentResult {
	for _, r := range it.Outputs {
		if r.Capability == c {
			return r
		}
	}
	return nil
}

// CapabilitiesUsed lists the capabilities invoked so far, in order.
func (it *Interaction) CapabilitiesUsed() []Capability {
	used := make([]Capability, 0, len(it.Outputs))
	for _, r := range it.Outputs {
		used = append(used, r.Capability)
	}
	return used
}

// InteractionSummary is the terminal view of an interaction, returned to the
// caller and mirrored into the audit log.
type InteractionSummary struct {
	InteractionID    string         `json:"interaction_id"`
	TriggerType      TriggerType    `json:"trigger_type"`
	Intent           Intent         `json:"intent"`
	CapabilitiesUsed []Capability   `json:"capabilities_used"`
	Outputs          []*AgentResult `json:"outputs"`
	Escalated        bool           `json:"escalated"`
	EscalationReason string         `json:"escalation_reason,omitempty"`
	Failures         []Capability   `json:"failures,omitempty"`
	Steps            int            `json:"steps"`
	DurationMs       int64          `json:"duration_ms"`
	AuditWriteFailed bool           `json:"audit_write_failed,omitempty"`
}
