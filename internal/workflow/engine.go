// Package workflow runs a claim through the full triage pipeline and owns
// the ticket lifecycle decisions: classification, warranty, priority,
// evidence, the auto-resolve/escalate/technician branch and the customer
// validation window.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/mobilierdefrance/sav-ai-platform/internal/ai"
	"github.com/mobilierdefrance/sav-ai-platform/internal/evidence"
	"github.com/mobilierdefrance/sav-ai-platform/internal/observability/metrics"
	"github.com/mobilierdefrance/sav-ai-platform/internal/ticket"
	"github.com/mobilierdefrance/sav-ai-platform/internal/triage"
	"github.com/mobilierdefrance/sav-ai-platform/internal/warranty"
	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

var engineTracer = otel.Tracer("sav/workflow-engine")

// ErrInvalidClaim marks claims rejected before the pipeline even starts.
var ErrInvalidClaim = errors.New("workflow: invalid claim")

// Claim is everything the customer (or the intake channel) supplies about a
// new after-sales problem.
type Claim struct {
	CustomerID   string              `json:"customer_id"`
	CustomerName string              `json:"customer_name"`
	CustomerTier triage.CustomerTier `json:"customer_tier"`

	OrderNumber string `json:"order_number"`
	ProductSKU  string `json:"product_sku"`
	ProductName string `json:"product_name"`

	ProblemDescription string `json:"problem_description"`

	PurchaseDate   time.Time `json:"purchase_date"`
	DeliveryDate   time.Time `json:"delivery_date"`
	PreviousClaims int       `json:"previous_claims"`
	ProductValue   float64   `json:"product_value"`

	Evidence []evidence.Item `json:"evidences,omitempty"`
}

// ToneAssessor corroborates the keyword tone analysis with a model read.
// *ai.GatedAnalyzer satisfies it.
type ToneAssessor interface {
	Assess(ctx context.Context, description string) *ai.Assessment
}

// DurableStore persists tickets once they leave the validation window.
// *ticket.PostgresStore satisfies it.
type DurableStore interface {
	Save(ctx context.Context, t *ticket.Ticket) error
	Get(ctx context.Context, id string) (*ticket.Ticket, error)
}

// WarrantyDirectory resolves the warranty attached to an order. When nil, or
// when it reports ticket.ErrNotFound, the engine falls back to the standard
// coverage matrix built from the claim's own dates.
type WarrantyDirectory interface {
	Find(ctx context.Context, orderNumber string) (*warranty.Warranty, error)
}

// Deps wires the engine. Pending is required; everything else degrades
// gracefully when absent.
type Deps struct {
	Pending    ticket.PendingStore
	Durable    DurableStore
	Warranties WarrantyDirectory
	Assessor   ToneAssessor
	Metrics    *metrics.TriageMetrics
	Logger     *logging.Logger

	PublicBaseURL string
}

// Engine drives the triage pipeline.
type Engine struct {
	classifier *triage.Classifier
	tones      *triage.ToneAnalyzer
	scorer     *triage.PriorityScorer
	warranties *warranty.Service
	collector  *evidence.Collector

	pending   ticket.PendingStore
	durable   DurableStore
	directory WarrantyDirectory
	assessor  ToneAssessor
	metrics   *metrics.TriageMetrics
	logger    *logging.Logger
	baseURL   string

	now func() time.Time
}

// NewEngine builds the engine with the built-in analyzers.
func NewEngine(deps Deps) *Engine {
	if deps.Pending == nil {
		panic("workflow: pending store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	baseURL := deps.PublicBaseURL
	if baseURL == "" {
		baseURL = "https://mobilierdefrance.com"
	}
	return &Engine{
		classifier: triage.NewClassifier(logger),
		tones:      triage.NewToneAnalyzer(logger),
		scorer:     triage.NewPriorityScorer(logger),
		warranties: warranty.NewService(logger),
		collector:  evidence.NewCollector(logger),
		pending:    deps.Pending,
		durable:    deps.Durable,
		directory:  deps.Warranties,
		assessor:   deps.Assessor,
		metrics:    deps.Metrics,
		logger:     logger,
		baseURL:    baseURL,
		now:        time.Now,
	}
}

// TriageResult is what a processed claim comes back as.
type TriageResult struct {
	Ticket             *ticket.Ticket `json:"ticket"`
	Decision           ticket.Status  `json:"decision"`
	ValidationRequired bool           `json:"validation_required"`
	Durable            bool           `json:"durable"`
}

// ProcessClaim runs a new claim through the whole pipeline: concurrent
// classification/tone/evidence analysis, then warranty, priority, evidence
// completeness and the final decision. The ticket lands in the pending store;
// auto-resolved tickets are also persisted immediately since they need no
// customer validation.
func (e *Engine) ProcessClaim(ctx context.Context, claim Claim) (*TriageResult, error) {
	ctx, span := engineTracer.Start(ctx, "workflow.process_claim")
	defer span.End()

	if claim.CustomerID == "" || claim.OrderNumber == "" || claim.ProblemDescription == "" {
		return nil, fmt.Errorf("%w: customer id, order number and problem description are required", ErrInvalidClaim)
	}

	t := ticket.New(claim.CustomerID, claim.OrderNumber, claim.ProductSKU,
		claim.ProductName, claim.ProblemDescription, "")
	span.SetAttributes(attribute.String("ticket.id", t.ID))

	var (
		cls      *triage.Classification
		tone     *triage.ToneAnalysis
		analyzed []evidence.Analyzed
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer e.stageTimer("classification")()
		cls = e.classifier.Classify(gctx, claim.ProblemDescription)
		return nil
	})
	g.Go(func() error {
		defer e.stageTimer("tone")()
		tone = e.tones.Analyze(gctx, claim.ProblemDescription)
		if e.assessor != nil {
			if a := e.assessor.Assess(gctx, claim.ProblemDescription); !a.Degraded && a.Confidence >= 0.5 {
				tone.Escalate(triage.ToneLevel(a.Tone), triage.UrgencyLevel(a.Urgency))
			}
		}
		return nil
	})
	g.Go(func() error {
		defer e.stageTimer("evidence_analysis")()
		analyzed = e.collector.AnalyzeAll(gctx, claim.Evidence)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("workflow: analysis fan-out: %w", err)
	}

	t.Classification = cls
	t.ToneAnalysis = tone
	t.Evidence = analyzed
	if err := t.Advance(ticket.StatusProblemAnalysis, ticket.ActorSystem, "problem_classified",
		fmt.Sprintf("Problème classifié : %s (%s)", cls.Category.Label(), cls.Severity),
		map[string]any{
			"category":   string(cls.Category),
			"severity":   string(cls.Severity),
			"confidence": cls.Confidence,
			"tone":       string(tone.Tone),
			"urgency":    string(tone.Urgency),
		}); err != nil {
		return nil, err
	}

	// Warranty.
	w := e.lookupWarranty(ctx, claim)
	check := e.warranties.Evaluate(ctx, w, claim.ProblemDescription, cls.Category)
	t.WarrantyID = w.ID
	t.WarrantyCheck = check
	if err := t.Advance(ticket.StatusWarrantyCheck, ticket.ActorSystem, "warranty_checked",
		check.Reason, map[string]any{
			"covered":        check.Covered,
			"component":      string(check.Component),
			"days_remaining": check.DaysRemaining,
		}); err != nil {
		return nil, err
	}

	// Priority and SLA. Tone can only tighten the response deadline.
	now := e.now()
	assessment := e.scorer.Score(ctx, triage.PriorityInput{
		Classification:  cls,
		WarrantyCovered: check.Covered,
		PurchaseDate:    claim.PurchaseDate,
		CustomerTier:    claim.CustomerTier,
		PreviousClaims:  claim.PreviousClaims,
		ProductValue:    claim.ProductValue,
		Now:             now,
	})
	t.Priority = assessment
	t.SLAResponseDeadline = tone.TightenDeadline(now.Add(assessment.FirstResponseWithin), now)
	t.SLAInterventionDeadline = now.Add(assessment.ResolutionWithin)
	if err := t.Advance(ticket.StatusPriorityAssessment, ticket.ActorSystem, "priority_assigned",
		fmt.Sprintf("Priorité %s (score %.0f)", assessment.Priority, assessment.Score),
		map[string]any{
			"priority": string(assessment.Priority),
			"score":    assessment.Score,
		}); err != nil {
		return nil, err
	}

	// Evidence completeness.
	evCheck := e.collector.CheckCompleteness(ctx, cls.Category, cls.Severity, analyzed)
	t.EvidenceCheck = evCheck
	t.EvidenceComplete = evCheck.Complete
	if err := t.Advance(ticket.StatusEvidenceCollection, ticket.ActorSystem, "evidence_checked",
		fmt.Sprintf("Preuves évaluées : %.0f/100", evCheck.Score),
		map[string]any{"complete": evCheck.Complete, "can_proceed": evCheck.CanProceed}); err != nil {
		return nil, err
	}
	if !evCheck.Complete {
		t.AppendAction(ticket.ActorSystem, "evidence_requested",
			e.collector.RequestMessage(cls.Category, assessment.Priority), nil)
	}

	if err := t.Advance(ticket.StatusDecisionPending, ticket.ActorSystem, "decision_started",
		"Décision de traitement en cours", nil); err != nil {
		return nil, err
	}
	if err := e.decide(t, assessment); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("ticket.decision", string(t.Status)))

	t.Summary = BuildSummary(t, claim.CustomerName, e.baseURL, now)
	t.AppendAction(ticket.ActorSystem, "client_summary_generated",
		"Récapitulatif envoyé au client", nil)

	if err := e.pending.Put(ctx, t); err != nil {
		return nil, fmt.Errorf("workflow: store ticket %s: %w", t.ID, err)
	}

	durable := false
	if !t.Summary.ValidationRequired && e.durable != nil {
		if err := e.persist(ctx, t); err != nil {
			e.logger.Error("auto-resolved ticket not persisted", "ticket_id", t.ID, "error", err)
		} else {
			durable = true
		}
	}

	e.metrics.ObserveClaim(string(t.Status), string(assessment.Priority))
	e.logger.Info("claim triaged",
		"ticket_id", t.ID,
		"category", cls.Category,
		"priority", assessment.Priority,
		"decision", t.Status,
		"covered", check.Covered,
	)

	return &TriageResult{
		Ticket:             t.Clone(),
		Decision:           t.Status,
		ValidationRequired: t.Summary.ValidationRequired,
		Durable:            durable,
	}, nil
}

// decide applies the decision rules: escalation wins, then auto-resolution,
// then a technician visit. Evidence never blocks auto-resolution: the scorer
// only allows it for low-stakes covered categories, and missing photos have
// already been requested.
func (e *Engine) decide(t *ticket.Ticket, assessment *triage.PriorityAssessment) error {
	switch {
	case assessment.MustEscalate:
		t.ResolutionType = ticket.ResolutionHumanIntervention
		t.ResolutionDescription = "Prise en charge par un conseiller SAV"
		return t.Advance(ticket.StatusEscalatedToHuman, ticket.ActorSystem, "escalated_to_human",
			fmt.Sprintf("Dossier transmis à un conseiller : %s",
				strings.Join(assessment.EscalationReasons, " ; ")),
			map[string]any{"reasons": assessment.EscalationReasons})

	case assessment.CanAutoResolve:
		resType, resDesc := autoResolution(t.Classification.Category)
		t.AutoResolved = true
		t.ResolutionType = resType
		t.ResolutionDescription = resDesc
		return t.Advance(ticket.StatusAutoResolved, ticket.ActorSystem, "auto_resolved",
			resDesc, map[string]any{"resolution_type": string(resType)})

	default:
		t.ResolutionType = ticket.ResolutionTechnicianDispatch
		t.ResolutionDescription = "Intervention d'un technicien à planifier"
		return t.Advance(ticket.StatusAwaitingTechnician, ticket.ActorSystem, "technician_scheduled",
			"Passage d'un technicien à planifier avec le client", nil)
	}
}

// autoResolution maps an auto-resolvable category to its resolution.
func autoResolution(category triage.Category) (ticket.ResolutionType, string) {
	switch category {
	case triage.CategoryFabric, triage.CategoryCushions:
		return ticket.ResolutionAutoReplacement,
			"Remplacement de la pièce concernée expédié sous 5 jours ouvrés"
	case triage.CategorySmell:
		return ticket.ResolutionCustomerEducation,
			"Conseils d'aération et d'entretien envoyés, odeur normale les premières semaines"
	default:
		return ticket.ResolutionAutoRepair,
			"Kit de réparation envoyé au client avec sa notice"
	}
}

// lookupWarranty resolves the order's warranty, falling back to the standard
// coverage matrix built from the claim itself.
func (e *Engine) lookupWarranty(ctx context.Context, claim Claim) *warranty.Warranty {
	if e.directory != nil {
		w, err := e.directory.Find(ctx, claim.OrderNumber)
		if err == nil {
			return w
		}
		if !errors.Is(err, ticket.ErrNotFound) {
			e.logger.Warn("warranty lookup failed, using standard matrix",
				"order_number", claim.OrderNumber, "error", err)
		}
	}
	delivery := claim.DeliveryDate
	if delivery.IsZero() {
		delivery = claim.PurchaseDate
	}
	return warranty.NewStandardWarranty(claim.OrderNumber, claim.ProductSKU,
		claim.ProductName, claim.CustomerID, claim.PurchaseDate, delivery)
}

// ValidationResult reports the outcome of a customer validate/cancel call.
// Unknown ids come back as Success=false, never as a panic.
type ValidationResult struct {
	Success          bool                    `json:"success"`
	TicketID         string                  `json:"ticket_id"`
	Status           ticket.Status           `json:"status,omitempty"`
	ValidationStatus ticket.ValidationStatus `json:"validation_status,omitempty"`
	Durable          bool                    `json:"durable"`
	Message          string                  `json:"message"`
}

// Validate confirms a pending ticket on the customer's behalf and persists
// it. On a persistence failure the ticket stays in the pending store and the
// caller is told it is not yet durable; calling Validate again retries the
// persist.
func (e *Engine) Validate(ctx context.Context, id string) *ValidationResult {
	ctx, span := engineTracer.Start(ctx, "workflow.validate")
	defer span.End()
	span.SetAttributes(attribute.String("ticket.id", id))

	t, err := e.pending.Update(ctx, id, func(t *ticket.Ticket) error {
		switch t.ValidationStatus {
		case ticket.ValidationPending:
			t.ValidationStatus = ticket.ValidationValidated
			t.AppendAction(ticket.ActorCustomer, "ticket_validated",
				"Demande confirmée par le client", nil)
		case ticket.ValidationValidated:
			// Already validated but still pending after an earlier
			// persistence failure: fall through and retry the persist.
		default:
			return fmt.Errorf("workflow: ticket %s already %s", id, t.ValidationStatus)
		}
		return nil
	})
	if errors.Is(err, ticket.ErrNotFound) {
		e.metrics.ObserveValidation("not_found")
		return &ValidationResult{TicketID: id, Message: "Ticket introuvable ou expiré"}
	}
	if err != nil {
		return &ValidationResult{TicketID: id, Message: err.Error()}
	}

	if e.durable == nil {
		// No durable store configured: the pending store is the only home.
		e.metrics.ObserveValidation("validated")
		return &ValidationResult{Success: true, TicketID: id, Status: t.Status,
			ValidationStatus: t.ValidationStatus, Message: "Demande confirmée"}
	}

	if err := e.persist(ctx, t); err != nil {
		e.logger.Error("validated ticket not persisted, kept pending",
			"ticket_id", id, "error", err)
		return &ValidationResult{Success: true, TicketID: id, Status: t.Status,
			ValidationStatus: t.ValidationStatus,
			Message:          "Demande confirmée, enregistrement définitif en attente"}
	}
	if err := e.pending.Delete(ctx, id); err != nil {
		e.logger.Warn("pending cleanup failed", "ticket_id", id, "error", err)
	}
	e.metrics.ObserveValidation("validated")
	return &ValidationResult{Success: true, TicketID: id, Status: t.Status,
		ValidationStatus: t.ValidationStatus, Durable: true, Message: "Demande confirmée"}
}

// Cancel discards a pending ticket without persisting it.
func (e *Engine) Cancel(ctx context.Context, id string) *ValidationResult {
	ctx, span := engineTracer.Start(ctx, "workflow.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("ticket.id", id))

	t, err := e.pending.Update(ctx, id, func(t *ticket.Ticket) error {
		if err := t.Advance(ticket.StatusCancelled, ticket.ActorCustomer, "ticket_cancelled",
			"Demande annulée par le client", nil); err != nil {
			return err
		}
		t.ValidationStatus = ticket.ValidationCancelled
		return nil
	})
	if errors.Is(err, ticket.ErrNotFound) {
		e.metrics.ObserveValidation("not_found")
		return &ValidationResult{TicketID: id, Message: "Ticket introuvable ou expiré"}
	}
	if err != nil {
		return &ValidationResult{TicketID: id, Message: err.Error()}
	}

	if err := e.pending.Delete(ctx, id); err != nil {
		e.logger.Warn("pending cleanup failed", "ticket_id", id, "error", err)
	}
	e.metrics.ObserveValidation("cancelled")
	return &ValidationResult{Success: true, TicketID: id, Status: t.Status,
		ValidationStatus: t.ValidationStatus, Message: "Demande annulée, aucun dossier n'a été créé"}
}

// AddEvidence analyzes new evidence for a pending ticket and re-runs the
// completeness check.
func (e *Engine) AddEvidence(ctx context.Context, id string, items []evidence.Item) (*evidence.CompletenessCheck, error) {
	var check *evidence.CompletenessCheck
	_, err := e.pending.Update(ctx, id, func(t *ticket.Ticket) error {
		analyzed := e.collector.AnalyzeAll(ctx, items)
		t.Evidence = append(t.Evidence, analyzed...)

		category, severity := triage.CategoryUnknown, triage.SeverityP3
		if t.Classification != nil {
			category, severity = t.Classification.Category, t.Classification.Severity
		}
		check = e.collector.CheckCompleteness(ctx, category, severity, t.Evidence)
		t.EvidenceCheck = check
		t.EvidenceComplete = check.Complete
		t.AppendAction(ticket.ActorCustomer, "evidence_added",
			fmt.Sprintf("%d preuve(s) ajoutée(s) au dossier", len(items)), nil)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: add evidence to %s: %w", id, err)
	}
	return check, nil
}

// Ticket returns a ticket from the pending store, falling back to the
// durable store for validated tickets.
func (e *Engine) Ticket(ctx context.Context, id string) (*ticket.Ticket, error) {
	t, err := e.pending.Get(ctx, id)
	if errors.Is(err, ticket.ErrNotFound) && e.durable != nil {
		return e.durable.Get(ctx, id)
	}
	return t, err
}

// Overview is the operator-dashboard snapshot of a ticket.
type Overview struct {
	TicketID         string                  `json:"ticket_id"`
	Status           ticket.Status           `json:"status"`
	ValidationStatus ticket.ValidationStatus `json:"validation_status"`
	Category         triage.Category         `json:"category,omitempty"`
	Priority         triage.Priority         `json:"priority,omitempty"`
	Covered          bool                    `json:"covered"`
	AutoResolved     bool                    `json:"auto_resolved"`
	ActionCount      int                     `json:"action_count"`
	ResponseDeadline time.Time               `json:"sla_response_deadline,omitzero"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// TicketSummary condenses a ticket for dashboards.
func (e *Engine) TicketSummary(ctx context.Context, id string) (*Overview, error) {
	t, err := e.Ticket(ctx, id)
	if err != nil {
		return nil, err
	}
	o := &Overview{
		TicketID:         t.ID,
		Status:           t.Status,
		ValidationStatus: t.ValidationStatus,
		AutoResolved:     t.AutoResolved,
		ActionCount:      len(t.Actions),
		ResponseDeadline: t.SLAResponseDeadline,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	if t.Classification != nil {
		o.Category = t.Classification.Category
	}
	if t.Priority != nil {
		o.Priority = t.Priority.Priority
	}
	if t.WarrantyCheck != nil {
		o.Covered = t.WarrantyCheck.Covered
	}
	return o, nil
}

// persist saves a ticket durably, retrying once on a transient failure.
func (e *Engine) persist(ctx context.Context, t *ticket.Ticket) error {
	if e.durable == nil {
		return nil
	}
	op := func() error {
		if err := e.durable.Save(ctx, t); err != nil {
			e.metrics.ObservePersistenceRetry()
			e.logger.Warn("ticket save failed", "ticket_id", t.ID, "error", err)
			return err
		}
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), 1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		e.metrics.ObservePersistenceFailure()
		return fmt.Errorf("workflow: persist ticket %s: %w", t.ID, err)
	}
	return nil
}

func (e *Engine) stageTimer(stage string) func() {
	start := time.Now()
	return func() {
		e.metrics.ObserveStage(stage, time.Since(start).Seconds())
	}
}
