package domain

// IntakeOutput is the structured payload of an Intake run. PatientRef is an
// opaque verified reference; DisplayName is used only for lookup
// confirmation, never carried into downstream systems.
type IntakeOutput struct {
	PatientIdentified bool    `json:"patient_identified"`
	PatientRef        string  `json:"patient_ref,omitempty"`
	RefinedIntent     Intent  `json:"refined_intent"`
	Confidence        float64 `json:"confidence"`
	CanHandle         bool    `json:"can_handle"`
	Response          string  `json:"response"`
	ActionTaken       string  `json:"action_taken,omitempty"`

	// ToolResults records the scheduling/identity tool calls made during
	// the run, keyed by tool name.
	ToolResults map[string]any `json:"tool_results,omitempty"`
}

// BriefingCard is the clinical summary produced for providers.
type BriefingCard struct {
	PatientRef        string   `json:"patient_ref,omitempty"`
	Summary           string   `json:"summary"`
	Alerts            []string `json:"alerts"`
	PendingTreatments []string `json:"pending_treatments"`
	TreatmentGaps     []string `json:"treatment_gaps"`
	RiskFlags         []string `json:"risk_flags"`
	LastVisit         string   `json:"last_visit,omitempty"`
	NextRecommended   string   `json:"next_recommended,omitempty"`
}

// BriefingOutput is the structured payload of a Clinical-Briefing run.
type BriefingOutput struct {
	Card        BriefingCard `json:"briefing_card"`
	Confidence  float64      `json:"confidence"`
	DataQuality DataQuality  `json:"data_quality"`
}

// DraftMessage is one outbound message drafted by Communications. Bodies use
// placeholders like {patient_name}; substitution happens in a separate
// secure delivery stage.
type DraftMessage struct {
	Channel          Channel `json:"channel"`
	RecipientRef     string  `json:"recipient_ref,omitempty"`
	TemplateType     string  `json:"template_type"`
	Subject          string  `json:"subject,omitempty"`
	Body             string  `json:"body"`
	Language         string  `json:"language,omitempty"`
	Urgency          string  `json:"urgency"`
	SendAt           string  `json:"send_at"`
	RequiresApproval bool    `json:"requires_approval"`
}

// CommsOutput is the structured payload of a Communications run.
type CommsOutput struct {
	Messages   []DraftMessage `json:"messages"`
	CampaignID string         `json:"campaign_id,omitempty"`
}

// Finding is one compliance observation.
type Finding struct {
	Severity       string `json:"severity"`
	Category       string `json:"category"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// AuditOutput is the structured payload of a Compliance-Audit run. It keeps
// full technical detail for operator review.
type AuditOutput struct {
	Status              AuditStatus `json:"status"`
	ChecksPerformed     []string    `json:"checks_performed"`
	Findings            []Finding   `json:"findings"`
	ComplianceScore     int         `json:"compliance_score"`
	PHIExposureDetected bool        `json:"phi_exposure_detected"`
	BalanceInfo         string      `json:"balance_info,omitempty"`
}
