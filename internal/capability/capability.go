// Package capability implements the four agent roles behind a single
// polymorphic contract. Every run produces an AgentResult: internal faults
// are converted into degraded results with a zeroed payload of the success
// shape, never propagated to the orchestrator.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carelane/orchestrator/internal/domain"
)

// Input is the context bundle a capability receives.
type Input struct {
	WorkspaceID string
	PatientRef  string
	ProviderRef string
	Intent      domain.Intent
	Payload     domain.TriggerPayload
	// Prior holds earlier capability results in execution order.
	Prior []*domain.AgentResult
}

// PriorOutput returns the named capability's earlier result, or nil.
func (in Input) PriorOutput(c domain.Capability) *domain.AgentResult {
	for _, r := range in.Prior {
		if r.Capability == c {
			return r
		}
	}
	return nil
}

// Runner is the polymorphic capability contract.
type Runner interface {
	Name() domain.Capability
	Run(ctx context.Context, in Input) *domain.AgentResult
}

// Registry maps the closed capability enum to implementations.
type Registry struct {
	runners map[domain.Capability]Runner
}

// NewRegistry builds a registry from the given runners.
func NewRegistry(runners ...Runner) *Registry {
	reg := &Registry{runners: make(map[domain.Capability]Runner, len(runners))}
	for _, r := range runners {
		reg.runners[r.Name()] = r
	}
	return reg
}

// Get returns the runner for a capability, or nil if none is registered.
func (reg *Registry) Get(c domain.Capability) Runner {
	return reg.runners[c]
}

// extractJSON strips markdown code fences from a model response so the
// remainder can be unmarshalled.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "```json"); i >= 0 {
		content = content[i+len("```json"):]
		if j := strings.Index(content, "```"); j >= 0 {
			content = content[:j]
		}
	} else if i := strings.Index(content, "```"); i >= 0 {
		content = content[i+len("```"):]
		if j := strings.Index(content, "```"); j >= 0 {
			content = content[:j]
		}
	}
	return strings.TrimSpace(content)
}

// parsePayload decodes a model response into the capability's declared
// shape. Any mismatch is a capability-level failure for the caller.
func parsePayload(content string, v any) error {
	raw := extractJSON(content)
	if raw == "" {
		return fmt.Errorf("empty model response")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("malformed structured output: %w", err)
	}
	return nil
}

// failedResult builds the degraded result for an internal fault. The zero
// payload keeps the shape downstream consumers expect.
func failedResult(c domain.Capability, zeroPayload any, note string) *domain.AgentResult {
	payload, _ := json.Marshal(zeroPayload)
	return &domain.AgentResult{
		Capability: c,
		Status:     domain.ResultFailed,
		Notes:      note,
		Payload:    payload,
	}
}

// okResult builds a normal result around a marshalled payload.
func okResult(c domain.Capability, payload any) (*domain.AgentResult, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return &domain.AgentResult{
		Capability: c,
		Status:     domain.ResultOK,
		Payload:    b,
	}, nil
}
