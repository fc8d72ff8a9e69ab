// Package orchestrator drives an interaction from trigger to summary: seed,
// classify, then a route/execute loop under hard step and wall-clock bounds,
// ending in a finalize that always produces a summary and an audit record.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelane/orchestrator/internal/audit"
	"github.com/carelane/orchestrator/internal/capability"
	"github.com/carelane/orchestrator/internal/domain"
	"github.com/carelane/orchestrator/internal/intent"
	"github.com/carelane/orchestrator/internal/router"
)

// Defaults for the loop bounds when the config leaves them unset.
const (
	DefaultMaxSteps    = 10
	DefaultMaxDuration = 60 * time.Second
)

// ErrInvalidTrigger is returned for trigger events that fail validation
// before an interaction is created.
var ErrInvalidTrigger = fmt.Errorf("invalid trigger event")

// Options bound the orchestration loop.
type Options struct {
	MaxSteps    int
	MaxDuration time.Duration

	// Now is the clock source; nil means time.Now. Injected for tests.
	Now func() time.Time
}

// Orchestrator owns the interaction state machine. One interaction is
// processed by exactly one logical thread end to end; the Orchestrator holds
// no cross-interaction state, so instances are safe for concurrent use.
type Orchestrator struct {
	registry    *capability.Registry
	sink        audit.Sink
	log         zerolog.Logger
	maxSteps    int
	maxDuration time.Duration
	now         func() time.Time
}

// New creates an orchestrator.
func New(registry *capability.Registry, sink audit.Sink, log zerolog.Logger, opts Options) *Orchestrator {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		registry:    registry,
		sink:        sink,
		log:         log.With().Str("component", "orchestrator").Logger(),
		maxSteps:    opts.MaxSteps,
		maxDuration: opts.MaxDuration,
		now:         opts.Now,
	}
}

// Handle processes one trigger event to completion and returns the terminal
// summary. Capability failures degrade the interaction; only an invalid
// trigger yields an error.
func (o *Orchestrator) Handle(ctx context.Context, event domain.TriggerEvent) (*domain.InteractionSummary, error) {
	if !event.EventType.Valid() {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidTrigger, event.EventType)
	}
	if event.WorkspaceID == "" {
		return nil, fmt.Errorf("%w: workspace_id is required", ErrInvalidTrigger)
	}

	it := &domain.Interaction{
		InteractionID: "int_" + uuid.New().String()[:8],
		WorkspaceID:   event.WorkspaceID,
		PatientRef:    event.PatientRef,
		ProviderRef:   event.ProviderRef,
		TriggerType:   event.EventType,
		Payload:       event.Payload,
		Phase:         domain.PhaseCreated,
		StartedAt:     o.now().UTC(),
	}

	log := o.log.With().
		Str("interaction_id", it.InteractionID).
		Str("workspace_id", it.WorkspaceID).
		Str("trigger", string(it.TriggerType)).
		Logger()

	it.Phase = domain.PhaseClassifying
	it.Intent = intent.Classify(it.TriggerType, it.Payload)
	it.Steps++ // classification is step one
	log.Info().Str("intent", string(it.Intent)).Msg("interaction classified")

	for {
		if o.exceeded(it) {
			it.Escalated = true
			if it.EscalationReason == "" {
				it.EscalationReason = "bounds exceeded"
			}
			log.Warn().Int("steps", it.Steps).Msg("loop bounds exceeded")
			break
		}

		it.Phase = domain.PhaseRouting
		decision := router.Next(it)
		if decision.Finalize {
			break
		}

		it.Phase = domain.PhaseExecuting
		it.Steps++
		o.execute(ctx, log, it, decision.Capability)
	}

	return o.finalize(ctx, log, it), nil
}

// RunCapability executes a single capability outside the routing loop. Used
// by the direct-run operator surface; the result is still audited and
// summarized like a one-step interaction.
func (o *Orchestrator) RunCapability(ctx context.Context, event domain.TriggerEvent, c domain.Capability) (*domain.InteractionSummary, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: unknown capability %q", ErrInvalidTrigger, c)
	}
	if event.WorkspaceID == "" {
		return nil, fmt.Errorf("%w: workspace_id is required", ErrInvalidTrigger)
	}

	it := &domain.Interaction{
		InteractionID: "int_" + uuid.New().String()[:8],
		WorkspaceID:   event.WorkspaceID,
		PatientRef:    event.PatientRef,
		ProviderRef:   event.ProviderRef,
		TriggerType:   domain.TriggerManual,
		Payload:       event.Payload,
		Phase:         domain.PhaseClassifying,
		StartedAt:     o.now().UTC(),
	}
	it.Intent = intent.Classify(it.TriggerType, it.Payload)
	it.Steps++

	log := o.log.With().
		Str("interaction_id", it.InteractionID).
		Str("capability", string(c)).
		Logger()

	it.Phase = domain.PhaseExecuting
	it.Steps++
	o.execute(ctx, log, it, c)

	return o.finalize(ctx, log, it), nil
}

// execute runs one capability and merges its result into the interaction.
func (o *Orchestrator) execute(ctx context.Context, log zerolog.Logger, it *domain.Interaction, c domain.Capability) {
	runner := o.registry.Get(c)

	var result *domain.AgentResult
	if runner == nil {
		log.Error().Str("capability", string(c)).Msg("no runner registered")
		result = &domain.AgentResult{
			Capability: c,
			Status:     domain.ResultFailed,
			Notes:      "no runner registered for capability",
			Payload:    json.RawMessage("{}"),
		}
	} else {
		result = runner.Run(ctx, capability.Input{
			WorkspaceID: it.WorkspaceID,
			PatientRef:  it.PatientRef,
			ProviderRef: it.ProviderRef,
			Intent:      it.Intent,
			Payload:     it.Payload,
			Prior:       it.Outputs,
		})
	}

	it.Outputs = append(it.Outputs, result)
	if result.RefinedIntent != "" {
		it.Intent = result.RefinedIntent
	}
	// Escalation is monotonic: once set it survives later results.
	if result.Escalate {
		it.Escalated = true
		if it.EscalationReason == "" {
			it.EscalationReason = result.EscalationReason
		}
	}

	log.Info().
		Str("capability", string(c)).
		Str("status", string(result.Status)).
		Int("step", it.Steps).
		Bool("escalated", it.Escalated).
		Msg("capability executed")
}

func (o *Orchestrator) exceeded(it *domain.Interaction) bool {
	if it.Steps >= o.maxSteps {
		return true
	}
	return o.now().UTC().Sub(it.StartedAt) > o.maxDuration
}

// finalize is absorbing: it always runs exactly once, emits the terminal
// audit record, and returns the summary. An audit write failure is surfaced
// on the summary, never raised.
func (o *Orchestrator) finalize(ctx context.Context, log zerolog.Logger, it *domain.Interaction) *domain.InteractionSummary {
	it.Phase = domain.PhaseFinalizing

	var failures []domain.Capability
	for _, r := range it.Outputs {
		if r.Failed() {
			failures = append(failures, r.Capability)
		}
	}

	summary := &domain.InteractionSummary{
		InteractionID:    it.InteractionID,
		TriggerType:      it.TriggerType,
		Intent:           it.Intent,
		CapabilitiesUsed: it.CapabilitiesUsed(),
		Outputs:          it.Outputs,
		Escalated:        it.Escalated,
		EscalationReason: it.EscalationReason,
		Failures:         failures,
		Steps:            it.Steps,
		DurationMs:       o.now().UTC().Sub(it.StartedAt).Milliseconds(),
	}

	caps := make([]string, 0, len(it.Outputs))
	for _, c := range it.CapabilitiesUsed() {
		caps = append(caps, string(c))
	}
	event := domain.AuditEvent{
		WorkspaceID:  it.WorkspaceID,
		ActorType:    "system",
		ActorID:      "orchestrator",
		Action:       "interaction_completed",
		ResourceType: "interaction",
		ResourceID:   it.InteractionID,
		Metadata: audit.Metadata(map[string]any{
			"trigger_type":      it.TriggerType,
			"intent":            it.Intent,
			"capabilities_used": caps,
			"escalated":         it.Escalated,
			"escalation_reason": it.EscalationReason,
			"steps":             it.Steps,
			"duration_ms":       summary.DurationMs,
			"failure_count":     len(failures),
		}),
	}
	if o.sink != nil {
		if err := o.sink.Write(ctx, event); err != nil {
			log.Error().Err(err).Msg("terminal audit write failed")
			summary.AuditWriteFailed = true
		}
	}

	it.Completed = true
	it.Phase = domain.PhaseCompleted
	log.Info().
		Int("steps", it.Steps).
		Int64("duration_ms", summary.DurationMs).
		Bool("escalated", it.Escalated).
		Msg("interaction completed")
	return summary
}
