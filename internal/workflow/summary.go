package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mobilierdefrance/sav-ai-platform/internal/ticket"
)

const (
	// validationWindow is how long a customer has to validate a ticket
	// before it is auto-cancelled from the pending store.
	validationWindow = 72 * time.Hour

	deadlineLayout = "02/01/2006 à 15h04"
)

// BuildSummary renders the customer-facing recap of a triaged ticket. It is a
// pure function of the ticket and the clock, so the same ticket always yields
// the same texts (modulo the generated summary id).
func BuildSummary(t *ticket.Ticket, clientName, baseURL string, now time.Time) *ticket.ClientSummary {
	s := &ticket.ClientSummary{
		SummaryID:          uuid.NewString(),
		TicketID:           t.ID,
		ClientName:         clientName,
		OrderNumber:        t.OrderNumber,
		ProductName:        t.ProductName,
		ProblemSummary:     problemSummary(t),
		WarrantyStatus:     warrantyStatus(t),
		Priority:           priorityLabel(t),
		NextSteps:          nextSteps(t),
		ValidationRequired: !t.AutoResolved,
	}

	deadline := now.Add(validationWindow)
	if t.ToneAnalysis != nil {
		deadline = now.Add(t.ToneAnalysis.ResponseWithin)
	}
	s.ResponseDeadline = deadline.Format(deadlineLayout)

	if s.ValidationRequired {
		s.ValidationLink = fmt.Sprintf("%s/sav/validate/%s", strings.TrimRight(baseURL, "/"), t.ID)
	}

	s.EmailBody = emailBody(s)
	s.SMSBody = smsBody(s)
	return s
}

// problemSummary is the category label plus the first words of the customer's
// own description, truncated so it fits a notification.
func problemSummary(t *ticket.Ticket) string {
	label := "Problème signalé"
	if t.Classification != nil {
		label = t.Classification.Category.Label()
	}
	detail := firstWords(t.ProblemDescription, 10, 50)
	if detail == "" {
		return label
	}
	return fmt.Sprintf("%s : %s", label, detail)
}

func warrantyStatus(t *ticket.Ticket) string {
	check := t.WarrantyCheck
	switch {
	case check == nil:
		return "Garantie en cours de vérification"
	case check.Covered:
		return fmt.Sprintf("Couvert par la garantie (%d jours restants)", check.DaysRemaining)
	default:
		return fmt.Sprintf("Non couvert : %s", check.Reason)
	}
}

func priorityLabel(t *ticket.Ticket) string {
	if t.Priority == nil {
		return "En cours d'évaluation"
	}
	return fmt.Sprintf("%s (%s)", t.Priority.Priority, t.Priority.Priority.Label())
}

func nextSteps(t *ticket.Ticket) string {
	switch t.Status {
	case ticket.StatusAutoResolved:
		return fmt.Sprintf("Votre demande a été traitée automatiquement : %s. "+
			"Vous recevrez une confirmation sous 24h.", t.ResolutionDescription)
	case ticket.StatusEscalatedToHuman:
		return "Votre dossier a été transmis à un conseiller qui vous " +
			"recontactera dans les meilleurs délais."
	case ticket.StatusAwaitingTechnician:
		return "Un technicien va prendre contact avec vous pour planifier " +
			"une intervention à domicile."
	default:
		return "Votre demande est en cours de traitement par notre service après-vente."
	}
}

func emailBody(s *ticket.ClientSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour %s,\n\n", s.ClientName)
	fmt.Fprintf(&b, "Nous avons bien reçu votre demande concernant votre commande %s (%s).\n\n",
		s.OrderNumber, s.ProductName)
	fmt.Fprintf(&b, "Référence du dossier : %s\n", s.TicketID)
	fmt.Fprintf(&b, "Problème identifié : %s\n", s.ProblemSummary)
	fmt.Fprintf(&b, "Garantie : %s\n", s.WarrantyStatus)
	fmt.Fprintf(&b, "Priorité : %s\n", s.Priority)
	fmt.Fprintf(&b, "Réponse avant le : %s\n\n", s.ResponseDeadline)
	fmt.Fprintf(&b, "%s\n", s.NextSteps)
	if s.ValidationRequired {
		fmt.Fprintf(&b, "\nMerci de confirmer votre demande sous 72 heures en cliquant sur ce lien :\n%s\n",
			s.ValidationLink)
		b.WriteString("Sans confirmation de votre part, la demande sera annulée automatiquement.\n")
	}
	b.WriteString("\nCordialement,\nLe service après-vente Mobilier de France")
	return b.String()
}

func smsBody(s *ticket.ClientSummary) string {
	if s.ValidationRequired {
		return fmt.Sprintf("Mobilier de France : votre demande %s est enregistrée (priorité %s). "+
			"Confirmez sous 72h : %s", s.TicketID, s.Priority, s.ValidationLink)
	}
	return fmt.Sprintf("Mobilier de France : votre demande %s a été traitée automatiquement. "+
		"Détails par email.", s.TicketID)
}

// firstWords truncates text to at most maxWords words and maxChars characters,
// appending an ellipsis when something was cut.
func firstWords(text string, maxWords, maxChars int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	truncated := false
	if len(words) > maxWords {
		words = words[:maxWords]
		truncated = true
	}
	out := strings.Join(words, " ")
	if len([]rune(out)) > maxChars {
		runes := []rune(out)
		out = strings.TrimSpace(string(runes[:maxChars]))
		truncated = true
	}
	if truncated {
		out += "..."
	}
	return out
}
