package capability

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carelane/orchestrator/internal/adapter/llm"
	"github.com/carelane/orchestrator/internal/audit"
	"github.com/carelane/orchestrator/internal/domain"
)

// Required content per message class. Enforced in code after the model run,
// not left to the prompt.
const (
	optOutLine    = "Reply STOP to opt out."
	emergencyLine = "If you experience severe pain, swelling, or bleeding, call our emergency line at {emergency_phone}."
	disputeLine   = "If you believe this balance is incorrect, call our billing office at {billing_phone}."
)

// Comms drafts outbound patient messages: reminders, recall campaigns,
// post-op follow-ups and balance notifications. Drafts only: delivery and
// placeholder substitution happen in a separate secure stage.
type Comms struct {
	llm   llm.LLMClient
	model string
	sink  audit.Sink
	log   zerolog.Logger
}

// NewComms creates the communications capability.
func NewComms(client llm.LLMClient, model string, sink audit.Sink, log zerolog.Logger) *Comms {
	return &Comms{
		llm:   client,
		model: model,
		sink:  sink,
		log:   log.With().Str("component", "comms").Logger(),
	}
}

func (a *Comms) Name() domain.Capability { return domain.CapabilityCommunications }

// Run drafts messages for the interaction and normalizes each draft against
// the channel and template content rules.
func (a *Comms) Run(ctx context.Context, in Input) *domain.AgentResult {
	patientRef := in.PatientRef
	contextParts := []string{"Workspace: " + in.WorkspaceID}
	if in.Intent != "" {
		contextParts = append(contextParts, "Intent: "+string(in.Intent))
	}
	if in.Payload.JobType != "" {
		contextParts = append(contextParts, "Job type: "+in.Payload.JobType)
	}
	if in.Payload.Text != "" {
		contextParts = append(contextParts, "Request: "+in.Payload.Text)
	}
	for _, prior := range in.Prior {
		if prior.Notes != "" {
			contextParts = append(contextParts, string(prior.Capability)+" notes: "+prior.Notes)
		}
		if prior.Capability == domain.CapabilityIntake {
			var intake domain.IntakeOutput
			if err := parsePayload(string(prior.Payload), &intake); err == nil && intake.PatientRef != "" {
				patientRef = intake.PatientRef
			}
		}
	}
	if patientRef != "" {
		contextParts = append(contextParts, "Patient ref: "+patientRef)
	}

	out, notes, err := a.reason(ctx, strings.Join(contextParts, "\n"))
	if err != nil {
		a.log.Error().Err(err).Msg("drafting failed")
		return failedResult(domain.CapabilityCommunications, domain.CommsOutput{
			Messages: []domain.DraftMessage{},
		}, "communications failure: "+err.Error())
	}

	for i := range out.Messages {
		normalizeDraft(&out.Messages[i], patientRef)
	}

	result, rerr := okResult(domain.CapabilityCommunications, out)
	if rerr != nil {
		return failedResult(domain.CapabilityCommunications, domain.CommsOutput{
			Messages: []domain.DraftMessage{},
		}, "communications failure: "+rerr.Error())
	}
	result.Notes = notes

	a.writeAudit(ctx, in.WorkspaceID, patientRef, out)
	return result
}

// normalizeDraft applies the content rules a draft must satisfy regardless of
// what the model produced.
func normalizeDraft(msg *domain.DraftMessage, patientRef string) {
	if msg.RecipientRef == "" {
		msg.RecipientRef = patientRef
	}
	if msg.Language == "" {
		msg.Language = "en"
	}
	if msg.SendAt == "" {
		msg.SendAt = "now"
	}
	if msg.Urgency == "" {
		msg.Urgency = "low"
	}
	if msg.Channel == domain.ChannelSMS && !strings.Contains(strings.ToLower(msg.Body), "stop") {
		msg.Body = strings.TrimSpace(msg.Body) + " " + optOutLine
	}
	switch msg.TemplateType {
	case "post_op":
		if !containsAny(strings.ToLower(msg.Body), "emergency", "call us") {
			msg.Body = strings.TrimSpace(msg.Body) + " " + emergencyLine
		}
		// Post-op follow-ups always go through staff review.
		msg.RequiresApproval = true
	case "balance":
		if !containsAny(strings.ToLower(msg.Body), "dispute", "incorrect", "billing office") {
			msg.Body = strings.TrimSpace(msg.Body) + " " + disputeLine
		}
	}
}

func (a *Comms) reason(ctx context.Context, promptContext string) (*domain.CommsOutput, string, error) {
	resp, err := a.llm.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: a.model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: commsSystemPrompt},
			{Role: "user", Content: "Draft communications for this interaction:\n\n" + promptContext},
		},
	})
	if err != nil {
		return nil, "", err
	}
	var parsed struct {
		domain.CommsOutput
		Notes string `json:"notes"`
	}
	if err := parsePayload(resp.Content(), &parsed); err != nil {
		return nil, "", err
	}
	return &parsed.CommsOutput, parsed.Notes, nil
}

func (a *Comms) writeAudit(ctx context.Context, workspaceID, patientRef string, out *domain.CommsOutput) {
	if a.sink == nil {
		return
	}
	channels := make([]string, 0, len(out.Messages))
	for _, m := range out.Messages {
		channels = append(channels, string(m.Channel))
	}
	e := domain.AuditEvent{
		WorkspaceID:  workspaceID,
		ActorType:    "agent",
		ActorID:      string(domain.CapabilityCommunications),
		Action:       "communications_drafted",
		ResourceType: "patient",
		ResourceID:   patientRef,
		Metadata: audit.Metadata(map[string]any{
			"message_count": len(out.Messages),
			"channels":      channels,
			"campaign_id":   out.CampaignID,
		}),
	}
	if err := a.sink.Write(ctx, e); err != nil {
		a.log.Error().Err(err).Msg("audit trail gap")
	}
}
