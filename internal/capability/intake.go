package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carelane/orchestrator/internal/adapter/llm"
	"github.com/carelane/orchestrator/internal/audit"
	"github.com/carelane/orchestrator/internal/domain"
	"github.com/carelane/orchestrator/internal/identity"
	"github.com/carelane/orchestrator/internal/policy"
	"github.com/carelane/orchestrator/internal/scheduling"
)

// userFacingFailure is what the caller sees when intake itself breaks.
// Internal error text never reaches the end user.
const userFacingFailure = "I'm sorry, I'm having trouble with that right now. A team member will follow up with you shortly."

// Intake is the first point of contact for live interactions. It resolves
// patient identity before any scheduling action and consults the policy
// engine before every write.
type Intake struct {
	llm       llm.LLMClient
	model     string
	resolver  *identity.Resolver
	scheduler *scheduling.Service
	policy    *policy.Engine
	sink      audit.Sink
	log       zerolog.Logger
}

// NewIntake creates the intake capability.
func NewIntake(client llm.LLMClient, model string, resolver *identity.Resolver, scheduler *scheduling.Service, policyEngine *policy.Engine, sink audit.Sink, log zerolog.Logger) *Intake {
	return &Intake{
		llm:       client,
		model:     model,
		resolver:  resolver,
		scheduler: scheduler,
		policy:    policyEngine,
		sink:      sink,
		log:       log.With().Str("component", "intake").Logger(),
	}
}

func (a *Intake) Name() domain.Capability { return domain.CapabilityIntake }

// Run executes the intake flow: identity resolution, keyword-driven tool
// pre-fetches, the reasoning call, then rule enforcement on the output.
func (a *Intake) Run(ctx context.Context, in Input) *domain.AgentResult {
	toolResults := map[string]any{}
	contextParts := []string{"Workspace: " + in.WorkspaceID}
	if in.Intent != "" {
		contextParts = append(contextParts, "Initial intent classification: "+string(in.Intent))
	}
	if in.Payload.Text != "" {
		contextParts = append(contextParts, "Patient message: "+in.Payload.Text)
	}
	if in.Payload.Channel != "" {
		contextParts = append(contextParts, "Channel: "+in.Payload.Channel)
	}

	patientRef := in.PatientRef
	text := strings.ToLower(in.Payload.Text)

	// Identity resolution comes before any scheduling action.
	var resolution *identity.Resolution
	if in.Payload.PatientName != "" && patientRef == "" {
		res, err := a.resolver.Resolve(ctx, in.WorkspaceID, in.Payload.PatientName)
		if err != nil {
			a.log.Warn().Err(err).Msg("patient lookup failed")
			contextParts = append(contextParts, "Patient lookup unavailable.")
		} else {
			resolution = res
			toolResults["patient_lookup"] = res
			switch {
			case res.Found:
				patientRef = res.Patient.Ref
				contextParts = append(contextParts,
					fmt.Sprintf("Patient verified: %s (ref %s)", res.Patient.DisplayName, patientRef))
			case len(res.Candidates) > 0:
				names := make([]string, len(res.Candidates))
				for i, c := range res.Candidates {
					names[i] = c.DisplayName
				}
				contextParts = append(contextParts,
					fmt.Sprintf("Multiple patients match %q: %s. Ask the caller to clarify; take no scheduling action.",
						in.Payload.PatientName, strings.Join(names, ", ")))
			default:
				contextParts = append(contextParts,
					fmt.Sprintf("No patient named %q found. They may need to register first; take no scheduling action.", in.Payload.PatientName))
			}
		}
	}
	if patientRef != "" && resolution == nil {
		contextParts = append(contextParts, "Patient ref: "+patientRef)
	}

	// Upcoming appointments, when the wording points at an existing one.
	if patientRef != "" && containsAny(text, "cancel", "reschedule", "move", "change", "appointment") {
		if appts, err := a.scheduler.ListPatientAppointments(ctx, in.WorkspaceID, patientRef); err != nil {
			contextParts = append(contextParts, "Could not fetch upcoming appointments.")
		} else if len(appts) == 0 {
			contextParts = append(contextParts, "Patient has no upcoming appointments.")
			toolResults["patient_appointments"] = []any{}
		} else {
			lines := []string{"Patient's upcoming appointments:"}
			for _, ap := range appts {
				lines = append(lines, fmt.Sprintf("  - ID: %s | %s | %s at %s | Status: %s",
					ap.ID, ap.AppointmentType, ap.StartTime.Format("2006-01-02"), ap.StartTime.Format("15:04"), ap.Status))
			}
			contextParts = append(contextParts, strings.Join(lines, "\n"))
			toolResults["patient_appointments"] = appts
		}
	}

	// Availability, when the wording points at booking.
	if containsAny(text, "book", "schedule", "appointment", "available", "opening", "reschedule", "next") {
		if days, err := a.scheduler.FindNextAvailable(ctx, in.WorkspaceID, 30, 14, 3); err != nil {
			contextParts = append(contextParts, "Could not check availability.")
		} else if len(days) == 0 {
			contextParts = append(contextParts, "No available slots found in the next 14 days.")
		} else {
			lines := []string{"Next available slots (30 min):"}
			for _, d := range days {
				starts := make([]string, len(d.Slots))
				for i, sl := range d.Slots {
					starts[i] = sl.Start
				}
				lines = append(lines, fmt.Sprintf("  - %s %s: %s", d.DayName, d.Date, strings.Join(starts, ", ")))
			}
			contextParts = append(contextParts, strings.Join(lines, "\n"))
			toolResults["availability"] = days
		}
	}

	// A verified patient asking to cancel gets the cancellation executed,
	// subject to policy.
	if patientRef != "" && strings.Contains(text, "cancel") {
		contextParts = append(contextParts, a.runCancel(ctx, in.WorkspaceID, patientRef, toolResults)...)
	}

	out, runErr := a.reason(ctx, strings.Join(contextParts, "\n"))
	if runErr != nil {
		a.log.Error().Err(runErr).Msg("intake reasoning failed")
		result := failedResult(domain.CapabilityIntake, domain.IntakeOutput{
			PatientRef:    patientRef,
			RefinedIntent: in.Intent,
			Response:      userFacingFailure,
			ToolResults:   toolResults,
		}, "intake failure: "+runErr.Error())
		return result
	}

	// Rule enforcement on the model output. Identity decisions are ours,
	// not the model's.
	out.ToolResults = toolResults
	if resolution != nil && !resolution.Found {
		out.PatientIdentified = false
		out.PatientRef = ""
		out.CanHandle = false
		if out.Response == "" {
			out.Response = "I found more than one patient with that name — could you confirm your date of birth so I can pull up the right record?"
			if len(resolution.Candidates) == 0 {
				out.Response = "I couldn't find a record under that name. You may need to register as a new patient first."
			}
		}
	} else if patientRef != "" {
		out.PatientIdentified = true
		out.PatientRef = patientRef
	}
	if out.RefinedIntent == "" {
		out.RefinedIntent = in.Intent
	}
	if out.Response == "" {
		out.Response = userFacingFailure
	}

	result, err := okResult(domain.CapabilityIntake, out.IntakeOutput)
	if err != nil {
		return failedResult(domain.CapabilityIntake, domain.IntakeOutput{Response: userFacingFailure}, "intake failure: "+err.Error())
	}
	result.RefinedIntent = out.RefinedIntent
	result.Notes = out.Notes

	if out.Escalate || out.RefinedIntent == domain.IntentEmergency {
		result.Escalate = true
		result.EscalationReason = out.EscalationReason
		if result.EscalationReason == "" {
			result.EscalationReason = "Emergency reported by caller"
		}
	}

	a.writeAudit(ctx, in.WorkspaceID, patientRef, &out.IntakeOutput, toolResults)
	return result
}

// runCancel executes a policy-gated cancellation and returns context lines.
func (a *Intake) runCancel(ctx context.Context, workspaceID, patientRef string, toolResults map[string]any) []string {
	hoursUntil, err := a.scheduler.HoursUntilNext(ctx, workspaceID, patientRef)
	if err != nil {
		return []string{"Could not check the next appointment for cancellation."}
	}
	if hoursUntil < 0 {
		return nil // nothing to cancel; upcoming-appointments context covers it
	}

	decision := policy.DecisionAllow
	if a.policy != nil {
		decision, err = a.policy.Evaluate(ctx, policy.Input{
			Action:     "cancel",
			PatientRef: patientRef,
			HoursUntil: hoursUntil,
		})
		if err != nil {
			a.log.Error().Err(err).Msg("policy evaluation failed")
			decision = policy.DecisionBlock
		}
	}
	toolResults["cancel_policy"] = decision

	switch decision {
	case policy.DecisionBlock:
		return []string{"Cancellation blocked by policy: the appointment is less than 24 hours away. The patient must call the office to cancel."}
	case policy.DecisionRequireApproval:
		return []string{"Cancellation requires staff approval before it takes effect. Tell the patient the request was passed to the front desk."}
	}

	res, err := a.scheduler.Cancel(ctx, workspaceID, "", patientRef, "Patient requested cancellation via intake")
	if err != nil {
		a.log.Error().Err(err).Msg("cancellation failed")
		return []string{"Cancellation could not be completed."}
	}
	toolResults["cancellation"] = res
	if !res.Success {
		return []string{"Could not cancel: " + res.Error}
	}

	lines := []string{fmt.Sprintf("CANCELLED appointment: %s on %s at %s",
		res.Cancelled.Type, res.Cancelled.Date, res.Cancelled.Time)}
	if len(res.SuggestedReschedule) > 0 {
		lines = append(lines, "Suggested reschedule options:")
		for _, d := range res.SuggestedReschedule {
			starts := make([]string, len(d.Slots))
			for i, sl := range d.Slots {
				starts[i] = sl.Start
			}
			lines = append(lines, fmt.Sprintf("  - %s %s: %s", d.DayName, d.Date, strings.Join(starts, ", ")))
		}
	}
	return lines
}

// intakeReply is the model's declared shape: the structured payload plus the
// result-level escalation and hand-off fields.
type intakeReply struct {
	domain.IntakeOutput
	Escalate         bool   `json:"escalate"`
	EscalationReason string `json:"escalation_reason"`
	Notes            string `json:"notes"`
}

func (a *Intake) reason(ctx context.Context, promptContext string) (*intakeReply, error) {
	resp, err := a.llm.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: a.model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: intakeSystemPrompt},
			{Role: "user", Content: "Process this interaction:\n\n" + promptContext},
		},
	})
	if err != nil {
		return nil, err
	}
	var out intakeReply
	if err := parsePayload(resp.Content(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Intake) writeAudit(ctx context.Context, workspaceID, patientRef string, out *domain.IntakeOutput, toolResults map[string]any) {
	if a.sink == nil {
		return
	}
	tools := make([]string, 0, len(toolResults))
	for name := range toolResults {
		tools = append(tools, name)
	}
	e := domain.AuditEvent{
		WorkspaceID:  workspaceID,
		ActorType:    "agent",
		ActorID:      string(domain.CapabilityIntake),
		Action:       "intent_classified",
		ResourceType: "patient",
		ResourceID:   patientRef,
		Metadata: audit.Metadata(map[string]any{
			"intent":     out.RefinedIntent,
			"confidence": out.Confidence,
			"can_handle": out.CanHandle,
			"tools_used": tools,
		}),
	}
	if err := a.sink.Write(ctx, e); err != nil {
		a.log.Error().Err(err).Msg("audit trail gap")
	}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
