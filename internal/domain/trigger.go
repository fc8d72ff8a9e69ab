package domain

// TriggerPayload carries the event-specific fields of a trigger. The known
// fields cover every branch the classifier and capabilities read; anything
// channel-specific the boundary layer wants to pass through goes in Extra.
type TriggerPayload struct {
	// Text is the free-text body of an SMS or chat message.
	Text string `json:"text,omitempty"`
	// Channel is the originating channel label (e.g. "vapi", "twilio").
	Channel string `json:"channel,omitempty"`
	// Intent pre-classifies inbound_call and manual_trigger events.
	Intent string `json:"intent,omitempty"`
	// JobType names the scheduled job for scheduled_job events.
	JobType string `json:"job_type,omitempty"`
	// Agent names the target capability for manual_trigger events.
	Agent string `json:"agent,omitempty"`
	// PatientName is the caller-supplied name used for identity lookup.
	PatientName string `json:"patient_name,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`
}

// TriggerEvent is the immutable input that seeds an interaction. It is
// constructed once by the boundary layer and consumed exactly once.
type TriggerEvent struct {
	EventType   TriggerType    `json:"event_type"`
	WorkspaceID string         `json:"workspace_id"`
	PatientRef  string         `json:"patient_ref,omitempty"`
	ProviderRef string         `json:"provider_ref,omitempty"`
	Payload     TriggerPayload `json:"payload"`
}
