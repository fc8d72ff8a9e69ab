package identity

import (
	"context"
	"testing"

	"github.com/carelane/orchestrator/internal/domain"
)

type staticDirectory []domain.Patient

func (d staticDirectory) ListPatients(ctx context.Context, workspaceID string) ([]domain.Patient, error) {
	return d, nil
}

func patient(ref, full, first, last string) domain.Patient {
	return domain.Patient{ID: "pat_" + ref, ExternalRef: ref, FullName: full, FirstName: first, LastName: last}
}

func TestResolveExactMatch(t *testing.T) {
	r := NewResolver(staticDirectory{
		patient("p1", "John Smith", "John", "Smith"),
		patient("p2", "Sarah Chen", "Sarah", "Chen"),
	}, nil, 0)

	res, err := r.Resolve(context.Background(), "ws1", "Sarah Chen")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Found || res.Patient.Ref != "p2" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolveCaseAndWhitespaceInsensitive(t *testing.T) {
	r := NewResolver(staticDirectory{
		patient("p1", "John Smith", "John", "Smith"),
	}, nil, 0)

	res, err := r.Resolve(context.Background(), "ws1", "  john   SMITH ")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Found || res.Patient.Ref != "p1" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolvePartialMatch(t *testing.T) {
	r := NewResolver(staticDirectory{
		patient("p1", "Maria Garcia Lopez", "Maria", "Garcia Lopez"),
		patient("p2", "Tom Baker", "Tom", "Baker"),
	}, nil, 0)

	res, err := r.Resolve(context.Background(), "ws1", "Maria Garcia")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Found || res.Patient.Ref != "p1" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolveFirstNameMatch(t *testing.T) {
	r := NewResolver(staticDirectory{
		patient("p1", "Priya Patel", "Priya", "Patel"),
		patient("p2", "Tom Baker", "Tom", "Baker"),
	}, nil, 0)

	res, err := r.Resolve(context.Background(), "ws1", "Priya")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Found || res.Patient.Ref != "p1" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolveAmbiguousSurfacesCandidates(t *testing.T) {
	r := NewResolver(staticDirectory{
		patient("p1", "John Smith", "John", "Smith"),
		patient("p2", "Jane Smith", "Jane", "Smith"),
	}, nil, 0)

	res, err := r.Resolve(context.Background(), "ws1", "Smith")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Found {
		t.Fatalf("ambiguous name must not resolve: %+v", res)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(res.Candidates))
	}
}

func TestResolveFuzzyMatch(t *testing.T) {
	r := NewResolver(staticDirectory{
		patient("p1", "Catherine Johnson", "Catherine", "Johnson"),
	}, nil, 0)

	// One transposition; well above the 0.8 similarity threshold.
	res, err := r.Resolve(context.Background(), "ws1", "Catherine Jhonson")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Found || res.Patient.Ref != "p1" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := NewResolver(staticDirectory{
		patient("p1", "John Smith", "John", "Smith"),
	}, nil, 0)

	res, err := r.Resolve(context.Background(), "ws1", "Zebulon Quartermain")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Found || len(res.Candidates) != 0 {
		t.Fatalf("expected empty resolution, got %+v", res)
	}
}

func TestResolveEmptyQuery(t *testing.T) {
	r := NewResolver(staticDirectory{patient("p1", "John Smith", "John", "Smith")}, nil, 0)

	res, err := r.Resolve(context.Background(), "ws1", "   ")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Found || len(res.Candidates) != 0 {
		t.Fatalf("expected empty resolution, got %+v", res)
	}
}

func TestResolveExactOutranksFuzzy(t *testing.T) {
	// "Jon Smith" matches "John Smith" fuzzily, but "Jon Smith" exists
	// exactly; the cascade must stop at the exact tier.
	r := NewResolver(staticDirectory{
		patient("p1", "John Smith", "John", "Smith"),
		patient("p2", "Jon Smith", "Jon", "Smith"),
	}, nil, 0)

	res, err := r.Resolve(context.Background(), "ws1", "Jon Smith")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.Found || res.Patient.Ref != "p2" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestLevenshteinScorer(t *testing.T) {
	s := LevenshteinScorer{}

	if got := s.Score("john smith", "john smith"); got != 1 {
		t.Fatalf("identical strings should score 1, got %f", got)
	}
	if got := s.Score("john smith", "jhon smith"); got < 0.8 {
		t.Fatalf("transposition should stay above threshold, got %f", got)
	}
	if got := s.Score("john smith", "xxxxxxxxxx"); got >= 0.5 {
		t.Fatalf("unrelated strings should score low, got %f", got)
	}
	if got := s.Score("", ""); got != 1 {
		t.Fatalf("two empty strings should score 1, got %f", got)
	}
}
