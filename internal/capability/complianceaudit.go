package capability

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carelane/orchestrator/internal/adapter/llm"
	"github.com/carelane/orchestrator/internal/audit"
	"github.com/carelane/orchestrator/internal/domain"
)

// Deterministic protected-information patterns. The scan runs in code so a
// model miss can never clear an interaction that leaks data.
var (
	reEmail = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	rePhone = regexp.MustCompile(`\b\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`)
	reSSN   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

// ComplianceAudit is the last checkpoint before finalize. It reviews the
// other capabilities' outputs for protected-information exposure and policy
// problems, combining a model review with a deterministic pattern scan.
type ComplianceAudit struct {
	llm   llm.LLMClient
	model string
	sink  audit.Sink
	log   zerolog.Logger
}

// NewComplianceAudit creates the compliance audit capability.
func NewComplianceAudit(client llm.LLMClient, model string, sink audit.Sink, log zerolog.Logger) *ComplianceAudit {
	return &ComplianceAudit{
		llm:   client,
		model: model,
		sink:  sink,
		log:   log.With().Str("component", "compliance").Logger(),
	}
}

func (a *ComplianceAudit) Name() domain.Capability { return domain.CapabilityComplianceAudit }

// Run audits the prior outputs. The deterministic scan can only tighten the
// verdict, never loosen it.
func (a *ComplianceAudit) Run(ctx context.Context, in Input) *domain.AgentResult {
	contextParts := []string{"Workspace: " + in.WorkspaceID}
	if in.Intent != "" {
		contextParts = append(contextParts, "Intent: "+string(in.Intent))
	}
	if in.Payload.Text != "" {
		contextParts = append(contextParts, "Original request: "+in.Payload.Text)
	}
	var scanned []string
	for _, prior := range in.Prior {
		body := string(prior.Payload)
		scanned = append(scanned, body, prior.Notes)
		contextParts = append(contextParts, fmt.Sprintf("%s output (%s):\n%s",
			prior.Capability, prior.Status, body))
	}

	out, err := a.reason(ctx, strings.Join(contextParts, "\n\n"))
	if err != nil {
		a.log.Error().Err(err).Msg("compliance review failed")
		// A broken auditor must not pass the interaction.
		return failedResult(domain.CapabilityComplianceAudit, domain.AuditOutput{
			Status:          domain.AuditFail,
			ChecksPerformed: []string{},
			Findings:        []domain.Finding{},
		}, "compliance audit failure: "+err.Error())
	}

	if hits := scanPHI(scanned); len(hits) > 0 {
		out.PHIExposureDetected = true
		out.Status = domain.AuditFail
		out.Findings = append(out.Findings, domain.Finding{
			Severity:       "critical",
			Category:       "hipaa",
			Description:    "Protected information pattern detected in agent output: " + strings.Join(hits, ", "),
			Recommendation: "Quarantine the interaction output and review redaction rules",
		})
		if out.ComplianceScore > 40 {
			out.ComplianceScore = 40
		}
	}
	out.ChecksPerformed = appendUnique(out.ChecksPerformed, "phi_pattern_scan")

	if out.ComplianceScore < 0 {
		out.ComplianceScore = 0
	}
	if out.ComplianceScore > 100 {
		out.ComplianceScore = 100
	}
	switch out.Status {
	case domain.AuditPass, domain.AuditWarning, domain.AuditFail:
	default:
		out.Status = domain.AuditWarning
	}

	result, rerr := okResult(domain.CapabilityComplianceAudit, out)
	if rerr != nil {
		return failedResult(domain.CapabilityComplianceAudit, domain.AuditOutput{
			Status: domain.AuditFail,
		}, "compliance audit failure: "+rerr.Error())
	}
	if out.Status == domain.AuditFail {
		result.Escalate = true
		result.EscalationReason = "Compliance audit failed"
	}

	a.writeAudit(ctx, in.WorkspaceID, out)
	return result
}

// scanPHI returns the pattern classes found across the given texts.
func scanPHI(texts []string) []string {
	var hits []string
	joined := strings.Join(texts, "\n")
	if reEmail.MatchString(joined) {
		hits = append(hits, "email_address")
	}
	if rePhone.MatchString(joined) {
		hits = append(hits, "phone_number")
	}
	if reSSN.MatchString(joined) {
		hits = append(hits, "ssn")
	}
	return hits
}

func appendUnique(checks []string, check string) []string {
	for _, c := range checks {
		if c == check {
			return checks
		}
	}
	return append(checks, check)
}

func (a *ComplianceAudit) reason(ctx context.Context, promptContext string) (*domain.AuditOutput, error) {
	resp, err := a.llm.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: a.model,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: auditSystemPrompt},
			{Role: "user", Content: "Audit this interaction:\n\n" + promptContext},
		},
	})
	if err != nil {
		return nil, err
	}
	var out domain.AuditOutput
	if err := parsePayload(resp.Content(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *ComplianceAudit) writeAudit(ctx context.Context, workspaceID string, out *domain.AuditOutput) {
	if a.sink == nil {
		return
	}
	e := domain.AuditEvent{
		WorkspaceID:  workspaceID,
		ActorType:    "agent",
		ActorID:      string(domain.CapabilityComplianceAudit),
		Action:       "compliance_audit",
		ResourceType: "interaction",
		Metadata: audit.Metadata(map[string]any{
			"status":           out.Status,
			"compliance_score": out.ComplianceScore,
			"phi_detected":     out.PHIExposureDetected,
			"finding_count":    len(out.Findings),
		}),
	}
	if err := a.sink.Write(ctx, e); err != nil {
		a.log.Error().Err(err).Msg("audit trail gap")
	}
}
