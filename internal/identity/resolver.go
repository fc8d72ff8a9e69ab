// Package identity resolves caller-supplied names to patient records.
//
// Resolution is a cascade: exact full-name match, then unique partial match,
// then unique first-name match, then fuzzy similarity. Anything ambiguous is
// returned as candidates rather than a guess; downstream capabilities must
// refuse to act until the caller clarifies.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/carelane/orchestrator/internal/domain"
)

// Candidate is a patient surfaced for clarification. DisplayName is used
// only for lookup confirmation and never leaves the intake response.
type Candidate struct {
	Ref         string `json:"ref"`
	DisplayName string `json:"display_name"`
}

// Resolution is the tri-state lookup outcome.
type Resolution struct {
	Found      bool        `json:"found"`
	Patient    *Candidate  `json:"patient,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Scorer computes a similarity score in [0,1] between a query name and a
// stored name. Pluggable so the algorithm and threshold can change without
// touching callers.
type Scorer interface {
	Score(query, name string) float64
}

// PatientDirectory is the slice of the record store the resolver needs.
type PatientDirectory interface {
	ListPatients(ctx context.Context, workspaceID string) ([]domain.Patient, error)
}

// Resolver looks up patients by name within a workspace.
type Resolver struct {
	directory PatientDirectory
	scorer    Scorer
	threshold float64
}

// NewResolver creates a resolver. A nil scorer falls back to the
// Levenshtein-ratio scorer with the default 0.8 threshold.
func NewResolver(directory PatientDirectory, scorer Scorer, threshold float64) *Resolver {
	if scorer == nil {
		scorer = LevenshteinScorer{}
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}
	return &Resolver{directory: directory, scorer: scorer, threshold: threshold}
}

// Resolve runs the match cascade for name within the workspace.
func (r *Resolver) Resolve(ctx context.Context, workspaceID, name string) (*Resolution, error) {
	query := normalize(name)
	if query == "" {
		return &Resolution{}, nil
	}

	patients, err := r.directory.ListPatients(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	// Tier 1: exact full-name match.
	if res := matchTier(patients, func(p domain.Patient) bool {
		return normalize(p.FullName) == query
	}); res != nil {
		return res, nil
	}

	// Tier 2: partial match (query contained in name or vice versa).
	if res := matchTier(patients, func(p domain.Patient) bool {
		full := normalize(p.FullName)
		return strings.Contains(full, query) || strings.Contains(query, full)
	}); res != nil {
		return res, nil
	}

	// Tier 3: first-name match.
	if res := matchTier(patients, func(p domain.Patient) bool {
		return normalize(p.FirstName) == query
	}); res != nil {
		return res, nil
	}

	// Tier 4: fuzzy similarity above threshold.
	if res := matchTier(patients, func(p domain.Patient) bool {
		return r.scorer.Score(query, normalize(p.FullName)) >= r.threshold
	}); res != nil {
		return res, nil
	}

	return &Resolution{}, nil
}

// matchTier evaluates one cascade tier. A unique match resolves; multiple
// matches surface as candidates; zero matches fall through to the next tier.
func matchTier(patients []domain.Patient, match func(domain.Patient) bool) *Resolution {
	var hits []Candidate
	for _, p := range patients {
		if match(p) {
			hits = append(hits, Candidate{Ref: p.ExternalRef, DisplayName: p.FullName})
		}
	}
	switch len(hits) {
	case 0:
		return nil
	case 1:
		return &Resolution{Found: true, Patient: &hits[0]}
	default:
		return &Resolution{Candidates: hits}
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
