// Package policy gates scheduling write actions through an OPA engine.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values returned by the policy.
const (
	DecisionAllow           = "allow"
	DecisionRequireApproval = "require_approval"
	DecisionBlock           = "block"
)

// Input describes a scheduling action for evaluation.
type Input struct {
	Action          string  `json:"action"` // book | cancel | reschedule
	AppointmentType string  `json:"appointment_type,omitempty"`
	PatientRef      string  `json:"patient_ref,omitempty"`
	HoursUntil      float64 `json:"hours_until,omitempty"`
}

// Engine is the OPA policy engine, prepared once at startup.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.scheduling_policy.decision"),
		rego.Module("scheduling_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// Evaluate returns the policy decision for a scheduling action.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionAllow, nil
}

// DefaultPolicy is the default scheduling policy.
const DefaultPolicy = `
package scheduling_policy

import rego.v1

default decision := "allow"

# Same-day cancellations go through the front desk, not an agent.
decision := "block" if {
	input.action == "cancel"
	input.hours_until < 24
}

# Long chair-time procedures need a human to confirm the booking.
decision := "require_approval" if {
	input.action == "book"
	input.appointment_type in {"crown", "root_canal", "extraction"}
}
`
