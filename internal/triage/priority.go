package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

var priorityTracer = otel.Tracer("sav/priority-scorer")

// CustomerTier is the loyalty tier of the customer filing the claim.
type CustomerTier string

const (
	TierStandard CustomerTier = "standard"
	TierSilver   CustomerTier = "silver"
	TierGold     CustomerTier = "gold"
	TierVIP      CustomerTier = "vip"
)

// PriorityInput carries everything the scorer weighs for one claim.
type PriorityInput struct {
	Classification  *Classification
	WarrantyCovered bool
	PurchaseDate    time.Time
	CustomerTier    CustomerTier
	PreviousClaims  int
	ProductValue    float64 // EUR
	Now             time.Time
}

// FactorScore is one scored dimension, kept for auditability of the decision.
type FactorScore struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
	Detail string  `json:"detail"`
}

// PriorityAssessment is the scored priority of a claim plus its SLA windows.
type PriorityAssessment struct {
	Priority            Priority      `json:"priority"`
	Score               float64       `json:"score"`
	Factors             []FactorScore `json:"factors"`
	FirstResponseWithin time.Duration `json:"first_response_within"`
	ResolutionWithin    time.Duration `json:"resolution_within"`
	CanAutoResolve      bool          `json:"can_auto_resolve"`
	MustEscalate        bool          `json:"must_escalate"`
	EscalationReasons   []string      `json:"escalation_reasons,omitempty"`
}

// slaWindow is a pair of first-response and resolution durations.
type slaWindow struct {
	firstResponse time.Duration
	resolution    time.Duration
}

// PriorityScorer turns a classification plus customer and product context into
// a numeric score, a priority level and SLA deadlines. All weight tables are
// data so they can be tuned without touching the scoring logic.
type PriorityScorer struct {
	logger *logging.Logger

	categoryWeights map[Category]float64
	severityWeights map[Severity]float64
	tierWeights     map[CustomerTier]float64
	slaByPriority   map[Priority]slaWindow

	autoResolvableCategories map[Category]bool
}

// NewPriorityScorer creates a scorer with the standard weight tables.
func NewPriorityScorer(logger *logging.Logger) *PriorityScorer {
	if logger == nil {
		logger = logging.Default()
	}

	return &PriorityScorer{
		logger: logger,
		categoryWeights: map[Category]float64{
			CategoryStructural: 30,
			CategoryMechanism:  25,
			CategoryDelivery:   20,
			CategoryDimensions: 18,
			CategoryCushions:   15,
			CategoryAssembly:   15,
			CategoryFabric:     10,
			CategorySmell:      8,
			CategoryUnknown:    5,
		},
		severityWeights: map[Severity]float64{
			SeverityP0: 25,
			SeverityP1: 20,
			SeverityP2: 10,
			SeverityP3: 5,
		},
		tierWeights: map[CustomerTier]float64{
			TierVIP:      15,
			TierGold:     10,
			TierSilver:   5,
			TierStandard: 0,
		},
		slaByPriority: map[Priority]slaWindow{
			PriorityP0: {firstResponse: 4 * time.Hour, resolution: 24 * time.Hour},
			PriorityP1: {firstResponse: 24 * time.Hour, resolution: 48 * time.Hour},
			PriorityP2: {firstResponse: 120 * time.Hour, resolution: 168 * time.Hour},
			PriorityP3: {firstResponse: 168 * time.Hour, resolution: 336 * time.Hour},
		},
		autoResolvableCategories: map[Category]bool{
			CategoryFabric:   true,
			CategoryCushions: true,
			CategorySmell:    true,
			CategoryAssembly: true,
		},
	}
}

// Score computes the priority assessment for one claim.
func (s *PriorityScorer) Score(ctx context.Context, in PriorityInput) *PriorityAssessment {
	_, span := priorityTracer.Start(ctx, "priority.score")
	defer span.End()

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	var factors []FactorScore
	add := func(name string, points float64, detail string) {
		factors = append(factors, FactorScore{Name: name, Points: points, Detail: detail})
	}

	cls := in.Classification

	catPoints := s.categoryWeights[cls.Category]
	add("category", catPoints, fmt.Sprintf("catégorie %s", cls.Category.Label()))

	sevPoints := s.severityWeights[cls.Severity]
	add("severity", sevPoints, fmt.Sprintf("sévérité %s", cls.Severity))

	ageDays := int(now.Sub(in.PurchaseDate).Hours() / 24)
	agePoints := agePoints(ageDays)
	add("product_age", agePoints, fmt.Sprintf("produit acheté il y a %d jours", ageDays))

	warrantyPoints := 5.0
	warrantyDetail := "hors garantie"
	if in.WarrantyCovered {
		warrantyPoints = 15
		warrantyDetail = "sous garantie"
	}
	add("warranty", warrantyPoints, warrantyDetail)

	tierPoints := s.tierWeights[in.CustomerTier]
	add("customer_tier", tierPoints, fmt.Sprintf("client %s", in.CustomerTier))

	if cls.Severity == SeverityP0 {
		add("critical_issue", 20, "problème critique détecté")
	}

	historyPoints := claimsHistoryPoints(in.PreviousClaims)
	add("claims_history", historyPoints, fmt.Sprintf("%d réclamation(s) antérieure(s)", in.PreviousClaims))

	valuePoints := productValuePoints(in.ProductValue)
	add("product_value", valuePoints, fmt.Sprintf("valeur produit %.0f EUR", in.ProductValue))

	var score float64
	for _, f := range factors {
		score += f.Points
	}

	priority := priorityFromScore(score, cls.Severity)
	sla := s.slaByPriority[priority]

	escalationReasons := escalationReasons(priority, score, cls, in.WarrantyCovered)
	mustEscalate := len(escalationReasons) > 0

	// Escalation always wins over auto-resolution.
	canAutoResolve := !mustEscalate &&
		(priority == PriorityP2 || priority == PriorityP3) &&
		cls.Confidence >= 0.7 &&
		in.WarrantyCovered &&
		score < 70 &&
		s.autoResolvableCategories[cls.Category]

	assessment := &PriorityAssessment{
		Priority:            priority,
		Score:               score,
		Factors:             factors,
		FirstResponseWithin: sla.firstResponse,
		ResolutionWithin:    sla.resolution,
		CanAutoResolve:      canAutoResolve,
		MustEscalate:        mustEscalate,
		EscalationReasons:   escalationReasons,
	}

	span.SetAttributes(
		attribute.String("priority.level", string(priority)),
		attribute.Float64("priority.score", score),
		attribute.Bool("priority.must_escalate", mustEscalate),
		attribute.Bool("priority.can_auto_resolve", canAutoResolve),
	)

	s.logger.Info("priority scored",
		"priority", priority,
		"score", score,
		"category", cls.Category,
		"severity", cls.Severity,
		"must_escalate", mustEscalate,
		"can_auto_resolve", canAutoResolve,
	)

	return assessment
}

func agePoints(days int) float64 {
	switch {
	case days < 7:
		return 20
	case days < 30:
		return 18
	case days < 90:
		return 15
	case days < 365:
		return 10
	case days < 730:
		return 8
	default:
		return 5
	}
}

func claimsHistoryPoints(previous int) float64 {
	switch previous {
	case 0:
		return 10
	case 1:
		return 8
	case 2:
		return 5
	default:
		return 3
	}
}

func productValuePoints(value float64) float64 {
	switch {
	case value > 3000:
		return 5
	case value > 2000:
		return 4
	case value > 1000:
		return 3
	default:
		return 2
	}
}

// priorityFromScore maps a score to a priority level. A P0 severity forces a
// P0 priority regardless of the numeric score.
func priorityFromScore(score float64, severity Severity) Priority {
	switch {
	case score >= 85 || severity == SeverityP0:
		return PriorityP0
	case score >= 60:
		return PriorityP1
	case score >= 30:
		return PriorityP2
	default:
		return PriorityP3
	}
}

func escalationReasons(priority Priority, score float64, cls *Classification, covered bool) []string {
	var reasons []string
	if priority == PriorityP0 {
		reasons = append(reasons, "priorité critique")
	}
	if score >= 85 {
		reasons = append(reasons, "score de priorité très élevé")
	}
	if cls.Category == CategoryStructural {
		reasons = append(reasons, "problème structurel nécessitant une expertise")
	}
	if cls.Confidence < 0.5 {
		reasons = append(reasons, "classification incertaine")
	}
	if !covered {
		reasons = append(reasons, "hors garantie, validation commerciale requise")
	}
	return reasons
}

// Explain renders the factor breakdown as a single human-readable line.
func (a *PriorityAssessment) Explain() string {
	parts := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		parts = append(parts, fmt.Sprintf("%s: %.0f (%s)", f.Name, f.Points, f.Detail))
	}
	return fmt.Sprintf("score %.0f = %s", a.Score, strings.Join(parts, "; "))
}
