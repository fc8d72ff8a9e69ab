package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carelane/orchestrator/internal/adapter/llm"
	"github.com/carelane/orchestrator/internal/audit"
	"github.com/carelane/orchestrator/internal/domain"
	"github.com/carelane/orchestrator/internal/scheduling"
)

// Briefing produces pre-appointment briefing cards for providers. It never
// fabricates clinical data: with no chart history available the result is an
// explicit insufficient-data card.
type Briefing struct {
	llm       llm.LLMClient
	model     string
	scheduler *scheduling.Service
	sink      audit.Sink
	log       zerolog.Logger
}

// NewBriefing creates the clinical briefing capability.
func NewBriefing(client llm.LLMClient, model string, scheduler *scheduling.Service, sink audit.Sink, log zerolog.Logger) *Briefing {
	return &Briefing{
		llm:       client,
		model:     model,
		scheduler: scheduler,
		sink:      sink,
		log:       log.With().Str("component", "briefing").Logger(),
	}
}

func (a *Briefing) Name() domain.Capability { return domain.CapabilityClinicalBriefing }

// Run assembles whatever chart context exists, asks the model for a card, and
// validates the declared data quality against what was actually available.
func (a *Briefing) Run(ctx context.Context, in Input) *domain.AgentResult {
	patientRef := in.PatientRef
	if prior := in.PriorOutput(domain.CapabilityIntake); prior != nil && patientRef == "" {
		var intake domain.IntakeOutput
		if err := parsePayload(string(prior.Payload), &intake); err == nil {
			patientRef = intake.PatientRef
		}
	}

	contextParts := []string{"Workspace: " + in.WorkspaceID}
	if patientRef != "" {
		contextParts = append(contextParts, "Patient ref: "+patientRef)
	}
	if in.Payload.Text != "" {
		contextParts = append(contextParts, "Request: "+in.Payload.Text)
	}
	if prior := in.PriorOutput(domain.CapabilityIntake); prior != nil && prior.Notes != "" {
		contextParts = append(contextParts, "Intake notes: "+prior.Notes)
	}

	haveHistory := false
	if patientRef != "" {
		if appts, err := a.scheduler.ListPatientAppointments(ctx, in.WorkspaceID, patientRef); err != nil {
			a.log.Warn().Err(err).Msg("appointment history unavailable")
		} else if len(appts) > 0 {
			haveHistory = true
			lines := []string{"Appointment history:"}
			for _, ap := range appts {
				lines = append(lines, fmt.Sprintf("  - %s on %s (%s)",
					ap.AppointmentType, ap.StartTime.Format("2006-01-02"), ap.Status))
			}
			contextParts = append(contextParts, strings.Join(lines, "\n"))
		}
	}
	if !haveHistory {
		contextParts = append(contextParts, "No chart history is available for this patient.")
	}

	out, err := a.reason(ctx, strings.Join(contextParts, "\n"))
	if err != nil {
		a.log.Error().Err(err).Msg("briefing generation failed")
		return failedResult(domain.CapabilityClinicalBriefing, domain.BriefingOutput{
			Card:        domain.BriefingCard{PatientRef: patientRef, Summary: "Briefing unavailable."},
			DataQuality: domain.DataQualityInsufficient,
		}, "briefing failure: "+err.Error())
	}

	out.Card.PatientRef = patientRef
	if !haveHistory {
		// No source data means nothing in the card can be trusted as
		// clinical fact.
		out.DataQuality = domain.DataQualityInsufficient
	}
	switch out.DataQuality {
	case domain.DataQualityGood, domain.DataQualityPartial, domain.DataQualityInsufficient:
	default:
		out.DataQuality = domain.DataQualityInsufficient
	}

	result, rerr := okResult(domain.CapabilityClinicalBriefing, out)
	if rerr != nil {
		return failedResult(domain.CapabilityClinicalBriefing, domain.BriefingOutput{
			DataQuality: domain.DataQualityInsufficient,
		}, "briefing failure: "+rerr.Error())
	}

	a.writeAudit(ctx, in.WorkspaceID, patientRef, out)
	return result
}

func (a *Briefing) reason(ctx context.Context, promptContext string) (*domain.BriefingOutput, error) {
	resp, err := a.llm.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: a.model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: briefingSystemPrompt},
			{Role: "user", Content: "Prepare a briefing card:\n\n" + promptContext},
		},
	})
	if err != nil {
		return nil, err
	}
	var out domain.BriefingOutput
	if err := parsePayload(resp.Content(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Briefing) writeAudit(ctx context.Context, workspaceID, patientRef string, out *domain.BriefingOutput) {
	if a.sink == nil {
		return
	}
	e := domain.AuditEvent{
		WorkspaceID:  workspaceID,
		ActorType:    "agent",
		ActorID:      string(domain.CapabilityClinicalBriefing),
		Action:       "briefing_generated",
		ResourceType: "patient",
		ResourceID:   patientRef,
		Metadata: audit.Metadata(map[string]any{
			"data_quality": out.DataQuality,
			"confidence":   out.Confidence,
			"alert_count":  len(out.Card.Alerts),
		}),
	}
	if err := a.sink.Write(ctx, e); err != nil {
		a.log.Error().Err(err).Msg("audit trail gap")
	}
}
