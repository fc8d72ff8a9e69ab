package policy

import (
	"context"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestEvaluateDefaultAllow(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), Input{Action: "book", AppointmentType: "cleaning"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != DecisionAllow {
		t.Fatalf("expected allow, got %q", decision)
	}
}

func TestEvaluateSameDayCancelBlocked(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), Input{Action: "cancel", HoursUntil: 3})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != DecisionBlock {
		t.Fatalf("expected block, got %q", decision)
	}
}

func TestEvaluateCancelWithNoticeAllowed(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), Input{Action: "cancel", HoursUntil: 48})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != DecisionAllow {
		t.Fatalf("expected allow, got %q", decision)
	}
}

func TestEvaluateLongProceduresNeedApproval(t *testing.T) {
	e := newTestEngine(t)

	for _, typ := range []string{"crown", "root_canal", "extraction"} {
		decision, err := e.Evaluate(context.Background(), Input{Action: "book", AppointmentType: typ})
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if decision != DecisionRequireApproval {
			t.Fatalf("%s: expected require_approval, got %q", typ, decision)
		}
	}
}
