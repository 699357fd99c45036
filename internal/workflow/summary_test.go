package workflow

import (
	"strings"
	"testing"
	"time"

	"github.com/mobilierdefrance/sav-ai-platform/internal/ticket"
	"github.com/mobilierdefrance/sav-ai-platform/internal/triage"
	"github.com/mobilierdefrance/sav-ai-platform/internal/warranty"
)

func summaryTicket(status ticket.Status, autoResolved bool) *ticket.Ticket {
	t := ticket.New("CUST-001", "CMD-2025-0042", "CAN-3P", "Canapé 3 places",
		"Le mécanisme relax est bloqué depuis une semaine", "WAR-1")
	t.Status = status
	t.AutoResolved = autoResolved
	t.Classification = &triage.Classification{
		Category: triage.CategoryMechanism,
		Severity: triage.SeverityP1,
	}
	t.ToneAnalysis = &triage.ToneAnalysis{
		Tone:           triage.ToneCalm,
		Urgency:        triage.UrgencyLow,
		ResponseWithin: 24 * time.Hour,
	}
	t.WarrantyCheck = &warranty.Check{
		Covered:       true,
		DaysRemaining: 512,
		Reason:        "Couvert par la garantie mécanismes",
	}
	t.Priority = &triage.PriorityAssessment{Priority: triage.PriorityP1}
	t.ResolutionDescription = "Kit de réparation envoyé au client avec sa notice"
	return t
}

func TestBuildSummaryValidationRequired(t *testing.T) {
	tk := summaryTicket(ticket.StatusAwaitingTechnician, false)
	now := time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

	s := BuildSummary(tk, "Marie Dupont", "https://mobilierdefrance.com", now)

	if !s.ValidationRequired {
		t.Fatal("non-auto-resolved ticket must require validation")
	}
	wantLink := "https://mobilierdefrance.com/sav/validate/" + tk.ID
	if s.ValidationLink != wantLink {
		t.Errorf("link = %q, want %q", s.ValidationLink, wantLink)
	}
	if s.ResponseDeadline != "11/03/2026 à 14h30" {
		t.Errorf("deadline = %q", s.ResponseDeadline)
	}
	if !strings.Contains(s.EmailBody, wantLink) {
		t.Error("email body must carry the validation link")
	}
	if !strings.Contains(s.EmailBody, "annulée automatiquement") {
		t.Error("email body must warn about the auto-cancel window")
	}
	if !strings.Contains(s.SMSBody, "72h") {
		t.Errorf("sms = %q, want 72h warning", s.SMSBody)
	}
	if !strings.Contains(s.WarrantyStatus, "512 jours") {
		t.Errorf("warranty status = %q", s.WarrantyStatus)
	}
	if !strings.Contains(s.NextSteps, "technicien") {
		t.Errorf("next steps = %q", s.NextSteps)
	}
}

func TestBuildSummaryAutoResolved(t *testing.T) {
	tk := summaryTicket(ticket.StatusAutoResolved, true)
	now := time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

	s := BuildSummary(tk, "Marie Dupont", "https://mobilierdefrance.com/", now)

	if s.ValidationRequired {
		t.Fatal("auto-resolved ticket must not require validation")
	}
	if s.ValidationLink != "" {
		t.Errorf("link = %q, want empty", s.ValidationLink)
	}
	if strings.Contains(s.EmailBody, "annulée automatiquement") {
		t.Error("auto-resolved email must not carry the cancel warning")
	}
	if !strings.Contains(s.SMSBody, "traitée automatiquement") {
		t.Errorf("sms = %q", s.SMSBody)
	}
	if !strings.Contains(s.NextSteps, tk.ResolutionDescription) {
		t.Errorf("next steps = %q", s.NextSteps)
	}
}

func TestBuildSummaryNotCovered(t *testing.T) {
	tk := summaryTicket(ticket.StatusEscalatedToHuman, false)
	tk.WarrantyCheck = &warranty.Check{Covered: false, Reason: "La garantie a expiré"}

	s := BuildSummary(tk, "Marie Dupont", "https://mobilierdefrance.com", time.Now())
	if !strings.Contains(s.WarrantyStatus, "Non couvert") {
		t.Errorf("warranty status = %q", s.WarrantyStatus)
	}
	if !strings.Contains(s.NextSteps, "conseiller") {
		t.Errorf("next steps = %q", s.NextSteps)
	}
}

func TestFirstWords(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWords int
		maxChars int
		want     string
	}{
		{"empty", "", 10, 50, ""},
		{"short untouched", "Coussin affaissé", 10, 50, "Coussin affaissé"},
		{
			"word limit",
			"un deux trois quatre cinq six sept huit neuf dix onze",
			10, 100,
			"un deux trois quatre cinq six sept huit neuf dix...",
		},
		{
			"char limit",
			"abcdefghij klmnopqrst uvwxyzabcd efghijklmn opqrstuvwx",
			10, 20,
			"abcdefghij klmnopqrs...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstWords(tt.text, tt.maxWords, tt.maxChars); got != tt.want {
				t.Errorf("firstWords() = %q, want %q", got, tt.want)
			}
		})
	}
}
