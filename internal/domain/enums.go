// Package domain defines the core domain models for the orchestrator.
package domain

// TriggerType identifies why an interaction started.
type TriggerType string

const (
	TriggerInboundCall  TriggerType = "inbound_call"
	TriggerInboundSMS   TriggerType = "inbound_sms"
	TriggerWebChat      TriggerType = "web_chat"
	TriggerManual       TriggerType = "manual_trigger"
	TriggerScheduledJob TriggerType = "scheduled_job"
	TriggerSystemEvent  TriggerType = "system_event"
)

// IsLive reports whether the trigger represents a live caller interaction.
func (t TriggerType) IsLive() bool {
	switch t {
	case TriggerInboundCall, TriggerInboundSMS, TriggerWebChat:
		return true
	}
	return false
}

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerInboundCall, TriggerInboundSMS, TriggerWebChat,
		TriggerManual, TriggerScheduledJob, TriggerSystemEvent:
		return true
	}
	return false
}

// Capability names one of the four agent roles. The set is closed; the
// Router branches over it exhaustively.
type Capability string

const (
	CapabilityIntake           Capability = "intake"
	CapabilityClinicalBriefing Capability = "clinical_briefing"
	CapabilityCommunications   Capability = "communications"
	CapabilityComplianceAudit  Capability = "compliance_audit"
)

// Valid reports whether c is one of the four capabilities.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityIntake, CapabilityClinicalBriefing,
		CapabilityCommunications, CapabilityComplianceAudit:
		return true
	}
	return false
}

// Capabilities lists all capability names in registration order.
func Capabilities() []Capability {
	return []Capability{
		CapabilityIntake,
		CapabilityClinicalBriefing,
		CapabilityCommunications,
		CapabilityComplianceAudit,
	}
}

// Intent labels seeded by the classifier. Capabilities may refine the label
// with values outside this set; these are the ones the Router branches on.
type Intent string

const (
	IntentAppointmentRequest Intent = "appointment_request"
	IntentAppointmentConfirm Intent = "appointment_confirm"
	IntentScheduleChange     Intent = "schedule_change"
	IntentBillingInquiry     Intent = "billing_inquiry"
	IntentInsuranceQuestion  Intent = "insurance_question"
	IntentClinicalQuestion   Intent = "clinical_question"
	IntentTreatmentPlan      Intent = "treatment_plan"
	IntentChartReview        Intent = "chart_review"
	IntentGeneralInquiry     Intent = "general_inquiry"
	IntentEmergency          Intent = "emergency"
	IntentManual             Intent = "manual"
	IntentRecallCampaign     Intent = "recall_campaign"
	IntentUnknown            Intent = "unknown"
)

// ResultStatus indicates whether a capability run completed normally.
type ResultStatus string

const (
	ResultOK     ResultStatus = "ok"
	ResultFailed ResultStatus = "failed"
)

// Phase tracks the orchestrator state machine position.
type Phase string

const (
	PhaseCreated     Phase = "created"
	PhaseClassifying Phase = "classifying"
	PhaseRouting     Phase = "routing"
	PhaseExecuting   Phase = "executing"
	PhaseFinalizing  Phase = "finalizing"
	PhaseCompleted   Phase = "completed"
)

// DataQuality grades the clinical context behind a briefing card.
type DataQuality string

const (
	DataQualityGood         DataQuality = "good"
	DataQualityPartial      DataQuality = "partial"
	DataQualityInsufficient DataQuality = "insufficient"
)

// AuditStatus is the compliance review verdict.
type AuditStatus string

const (
	AuditPass    AuditStatus = "pass"
	AuditWarning AuditStatus = "warning"
	AuditFail    AuditStatus = "fail"
)

// Channel is an outbound message channel.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)
