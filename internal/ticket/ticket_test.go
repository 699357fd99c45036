package ticket

import (
	"testing"
)

func newTestTicket() *Ticket {
	return New("client@example.com", "CMD-2025-12345", "MDF-CAP-TEMPLE-01",
		"Canapé d'angle TEMPLE", "Le pied est cassé", "WAR-20250420-12345")
}

func TestNewTicket(t *testing.T) {
	tk := newTestTicket()

	if tk.Status != StatusNew {
		t.Errorf("status = %s, want %s", tk.Status, StatusNew)
	}
	if tk.ValidationStatus != ValidationPending {
		t.Errorf("validation status = %s, want %s", tk.ValidationStatus, ValidationPending)
	}
	if len(tk.Actions) != 1 {
		t.Fatalf("actions = %d, want 1 creation action", len(tk.Actions))
	}
	if tk.Actions[0].Type != "ticket_created" || tk.Actions[0].Actor != ActorSystem {
		t.Errorf("creation action = %s by %s", tk.Actions[0].Type, tk.Actions[0].Actor)
	}
	if tk.ID == "" || tk.Actions[0].ID == "" {
		t.Error("ids should be generated")
	}
}

func TestAdvanceHappyPath(t *testing.T) {
	tk := newTestTicket()

	steps := []Status{
		StatusProblemAnalysis,
		StatusWarrantyCheck,
		StatusPriorityAssessment,
		StatusEvidenceCollection,
		StatusDecisionPending,
		StatusAutoResolved,
		StatusInProgress,
		StatusResolved,
		StatusClosed,
	}
	for _, next := range steps {
		if err := tk.Advance(next, ActorSystem, "step", "", nil); err != nil {
			t.Fatalf("Advance(%s) from %s: %v", next, tk.Status, err)
		}
	}

	// Creation action + one per transition.
	if len(tk.Actions) != 1+len(steps) {
		t.Errorf("actions = %d, want %d", len(tk.Actions), 1+len(steps))
	}
	if !tk.Status.Terminal() {
		t.Errorf("status %s should be terminal", tk.Status)
	}
}

func TestAdvanceRejectsInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
	}{
		{"skip a stage", StatusNew, StatusWarrantyCheck},
		{"backward", StatusDecisionPending, StatusProblemAnalysis},
		{"decision straight to resolved", StatusDecisionPending, StatusResolved},
		{"out of closed", StatusClosed, StatusInProgress},
		{"out of cancelled", StatusCancelled, StatusProblemAnalysis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := newTestTicket()
			tk.Status = tt.from
			actions := len(tk.Actions)

			if err := tk.Advance(tt.to, ActorSystem, "step", "", nil); err == nil {
				t.Fatalf("Advance(%s -> %s) succeeded, want error", tt.from, tt.to)
			}
			if tk.Status != tt.from {
				t.Errorf("status changed to %s on a rejected transition", tk.Status)
			}
			if len(tk.Actions) != actions {
				t.Error("a rejected transition appended an action")
			}
		})
	}
}

func TestCancelAllowedFromAnyNonTerminalStatus(t *testing.T) {
	nonTerminal := []Status{
		StatusNew, StatusProblemAnalysis, StatusWarrantyCheck,
		StatusPriorityAssessment, StatusEvidenceCollection, StatusDecisionPending,
		StatusAutoResolved, StatusEscalatedToHuman, StatusAwaitingTechnician,
		StatusInProgress, StatusResolved,
	}
	for _, from := range nonTerminal {
		tk := newTestTicket()
		tk.Status = from
		if err := tk.Advance(StatusCancelled, ActorCustomer, "ticket_cancelled", "", nil); err != nil {
			t.Errorf("cancel from %s: %v", from, err)
		}
	}

	for _, from := range []Status{StatusClosed, StatusCancelled} {
		tk := newTestTicket()
		tk.Status = from
		if err := tk.Advance(StatusCancelled, ActorCustomer, "ticket_cancelled", "", nil); err == nil {
			t.Errorf("cancel from terminal %s succeeded", from)
		}
	}
}

func TestDecisionBranches(t *testing.T) {
	for _, to := range []Status{StatusAutoResolved, StatusEscalatedToHuman, StatusAwaitingTechnician} {
		tk := newTestTicket()
		tk.Status = StatusDecisionPending
		if err := tk.Advance(to, ActorSystem, "decision", "", nil); err != nil {
			t.Errorf("Advance(decision_pending -> %s): %v", to, err)
		}
	}
}

func TestCloneIsolatesActions(t *testing.T) {
	tk := newTestTicket()
	cp := tk.Clone()

	tk.AppendAction(ActorHuman, "note", "original only", nil)

	if len(cp.Actions) != 1 {
		t.Errorf("clone actions = %d, want 1", len(cp.Actions))
	}
	if len(tk.Actions) != 2 {
		t.Errorf("original actions = %d, want 2", len(tk.Actions))
	}
	if cp.ID != tk.ID {
		t.Error("clone should keep the ticket id")
	}
}

func TestTicketIDUsesOrderSuffix(t *testing.T) {
	tk := newTestTicket()
	if got, want := tk.ID[len(tk.ID)-5:], "12345"; got != want {
		t.Errorf("ticket id %s should end with order suffix %s", tk.ID, want)
	}
}
