// Package ticket holds the claim ticket model, its forward-only lifecycle
// and the pending/durable stores.
package ticket

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mobilierdefrance/sav-ai-platform/internal/evidence"
	"github.com/mobilierdefrance/sav-ai-platform/internal/triage"
	"github.com/mobilierdefrance/sav-ai-platform/internal/warranty"
)

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusNew                Status = "new"
	StatusProblemAnalysis    Status = "problem_analysis"
	StatusWarrantyCheck      Status = "warranty_check"
	StatusPriorityAssessment Status = "priority_assessment"
	StatusEvidenceCollection Status = "evidence_collection"
	StatusDecisionPending    Status = "decision_pending"
	StatusAutoResolved       Status = "auto_resolved"
	StatusEscalatedToHuman   Status = "escalated_to_human"
	StatusAwaitingTechnician Status = "awaiting_technician"
	StatusInProgress         Status = "in_progress"
	StatusResolved           Status = "resolved"
	StatusClosed             Status = "closed"
	StatusCancelled          Status = "cancelled"
)

// transitions is the forward-only status graph. Cancellation is handled
// separately: any non-terminal status may move to cancelled.
var transitions = map[Status][]Status{
	StatusNew:                {StatusProblemAnalysis},
	StatusProblemAnalysis:    {StatusWarrantyCheck},
	StatusWarrantyCheck:      {StatusPriorityAssessment},
	StatusPriorityAssessment: {StatusEvidenceCollection},
	StatusEvidenceCollection: {StatusDecisionPending},
	StatusDecisionPending:    {StatusAutoResolved, StatusEscalatedToHuman, StatusAwaitingTechnician},
	StatusAutoResolved:       {StatusInProgress, StatusResolved},
	StatusEscalatedToHuman:   {StatusInProgress},
	StatusAwaitingTechnician: {StatusInProgress},
	StatusInProgress:         {StatusResolved},
	StatusResolved:           {StatusClosed},
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// CanTransitionTo reports whether the status graph allows moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	if next == StatusCancelled {
		return !s.Terminal()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidationStatus tracks the customer's confirmation of the triage outcome.
type ValidationStatus string

const (
	ValidationPending   ValidationStatus = "pending"
	ValidationValidated ValidationStatus = "validated"
	ValidationCancelled ValidationStatus = "cancelled"
)

// Actor identifies who performed an action on a ticket.
type Actor string

const (
	ActorSystem   Actor = "system"
	ActorHuman    Actor = "human"
	ActorCustomer Actor = "customer"
)

// ResolutionType is how a ticket was (or will be) resolved.
type ResolutionType string

const (
	ResolutionAutoReplacement    ResolutionType = "auto_replacement"
	ResolutionAutoRepair         ResolutionType = "auto_repair"
	ResolutionAutoRefund         ResolutionType = "auto_refund"
	ResolutionHumanIntervention  ResolutionType = "human_intervention"
	ResolutionTechnicianDispatch ResolutionType = "technician_dispatch"
	ResolutionSparePartsOrder    ResolutionType = "spare_parts_order"
	ResolutionCustomerEducation  ResolutionType = "customer_education"
	ResolutionNotCovered         ResolutionType = "not_covered"
)

// Action is one entry in a ticket's audit trail.
type Action struct {
	ID          string         `json:"action_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Actor       Actor          `json:"actor"`
	Type        string         `json:"action_type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ClientSummary is the customer-facing recap sent for validation.
type ClientSummary struct {
	SummaryID          string `json:"summary_id"`
	TicketID           string `json:"ticket_id"`
	ClientName         string `json:"client_name"`
	OrderNumber        string `json:"order_number"`
	ProductName        string `json:"product_name"`
	ProblemSummary     string `json:"problem_summary"`
	WarrantyStatus     string `json:"warranty_status"`
	Priority           string `json:"priority"`
	NextSteps          string `json:"next_steps"`
	ResponseDeadline   string `json:"response_deadline"`
	ValidationRequired bool   `json:"validation_required"`
	ValidationLink     string `json:"validation_link,omitempty"`
	EmailBody          string `json:"email_body,omitempty"`
	SMSBody            string `json:"sms_body,omitempty"`
}

// Ticket is a complete claim ticket with every triage sub-record.
type Ticket struct {
	ID          string `json:"ticket_id"`
	CustomerID  string `json:"customer_id"`
	OrderNumber string `json:"order_number"`
	ProductSKU  string `json:"product_sku"`
	ProductName string `json:"product_name"`

	ProblemDescription string                 `json:"problem_description"`
	Classification     *triage.Classification `json:"classification,omitempty"`
	ToneAnalysis       *triage.ToneAnalysis   `json:"tone_analysis,omitempty"`

	WarrantyID    string          `json:"warranty_id,omitempty"`
	WarrantyCheck *warranty.Check `json:"warranty_check,omitempty"`

	Priority *triage.PriorityAssessment `json:"priority,omitempty"`

	Evidence         []evidence.Analyzed         `json:"evidences,omitempty"`
	EvidenceCheck    *evidence.CompletenessCheck `json:"evidence_check,omitempty"`
	EvidenceComplete bool                        `json:"evidence_complete"`

	Status                Status           `json:"status"`
	ValidationStatus      ValidationStatus `json:"validation_status"`
	ResolutionType        ResolutionType   `json:"resolution_type,omitempty"`
	ResolutionDescription string           `json:"resolution_description,omitempty"`
	AutoResolved          bool             `json:"auto_resolved"`
	AssignedTo            string           `json:"assigned_to,omitempty"`

	Actions []Action `json:"actions"`

	Summary *ClientSummary `json:"client_summary,omitempty"`

	SLAResponseDeadline     time.Time `json:"sla_response_deadline,omitzero"`
	SLAInterventionDeadline time.Time `json:"sla_intervention_deadline,omitzero"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a ticket in the NEW status with its creation action recorded.
func New(customerID, orderNumber, productSKU, productName, problemDescription, warrantyID string) *Ticket {
	now := time.Now()
	t := &Ticket{
		ID:                 fmt.Sprintf("SAV-%s-%s", now.Format("20060102"), orderSuffix(orderNumber)),
		CustomerID:         customerID,
		OrderNumber:        orderNumber,
		ProductSKU:         productSKU,
		ProductName:        productName,
		ProblemDescription: problemDescription,
		WarrantyID:         warrantyID,
		Status:             StatusNew,
		ValidationStatus:   ValidationPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	t.AppendAction(ActorSystem, "ticket_created", "Ticket SAV créé automatiquement", nil)
	return t
}

// Advance moves the ticket to the next status, recording exactly one action.
// Backward or skipped transitions are rejected.
func (t *Ticket) Advance(to Status, actor Actor, actionType, description string, metadata map[string]any) error {
	if !t.Status.CanTransitionTo(to) {
		return fmt.Errorf("ticket: invalid transition %s -> %s for %s", t.Status, to, t.ID)
	}
	t.Status = to
	t.AppendAction(actor, actionType, description, metadata)
	return nil
}

// AppendAction adds an audit-trail entry without changing status.
func (t *Ticket) AppendAction(actor Actor, actionType, description string, metadata map[string]any) {
	now := time.Now()
	t.Actions = append(t.Actions, Action{
		ID:          uuid.NewString(),
		Timestamp:   now,
		Actor:       actor,
		Type:        actionType,
		Description: description,
		Metadata:    metadata,
	})
	t.UpdatedAt = now
}

// Clone returns a copy safe to hand out while the original keeps mutating.
// Sub-records are treated as immutable once attached; only the ticket struct
// and its slices are copied.
func (t *Ticket) Clone() *Ticket {
	cp := *t
	cp.Actions = append([]Action(nil), t.Actions...)
	cp.Evidence = append([]evidence.Analyzed(nil), t.Evidence...)
	return &cp
}

func orderSuffix(orderNumber string) string {
	if i := strings.LastIndex(orderNumber, "-"); i >= 0 && i < len(orderNumber)-1 {
		return orderNumber[i+1:]
	}
	return orderNumber
}
