package warranty

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mobilierdefrance/sav-ai-platform/internal/triage"
	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("sav/warranty-service")

// Check is the outcome of evaluating one claim against a warranty.
type Check struct {
	WarrantyID     string    `json:"warranty_id"`
	Valid          bool      `json:"is_valid"`
	Covered        bool      `json:"is_covered"`
	Component      Component `json:"component"`
	DaysRemaining  int       `json:"days_remaining"`
	Exclusions     []string  `json:"exclusions_apply,omitempty"`
	Reason         string    `json:"reason"`
	Recommendation string    `json:"recommendation"`
}

// componentKeyword maps one description keyword to a component. Kept as an
// ordered list so evaluation is deterministic.
type componentKeyword struct {
	keyword   string
	component Component
}

// Service evaluates whether a described problem is covered by a warranty,
// in a fixed order: overall window, component window, exclusions.
type Service struct {
	logger *logging.Logger

	componentKeywords []componentKeyword
	exclusionKeywords map[string][]string

	now func() time.Time
}

// NewService creates a warranty evaluator with the built-in keyword tables.
func NewService(logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}

	return &Service{
		logger: logger,
		componentKeywords: []componentKeyword{
			{"affaissement", ComponentCushions},
			{"coussin", ComponentCushions},
			{"mousse", ComponentCushions},
			{"structure", ComponentStructure},
			{"pied", ComponentStructure},
			{"cassé", ComponentStructure},
			{"fissure", ComponentStructure},
			{"mécanisme", ComponentMechanisms},
			{"relax", ComponentMechanisms},
			{"convertible", ComponentMechanisms},
			{"tache", ComponentFabric},
			{"tissu", ComponentFabric},
			{"cuir", ComponentFabric},
			{"déchirure", ComponentFabric},
			{"décoloration", ComponentFabric},
		},
		exclusionKeywords: map[string][]string{
			"stains":       {"tache", "tâche", "sali", "sale"},
			"tears":        {"déchirure", "déchiré", "accroc", "trou"},
			"burns":        {"brûlure", "brulure", "cigarette"},
			"scratches":    {"rayure", "griffure", "érafflure"},
			"misuse":       {"mauvais usage", "usage anormal", "accident"},
			"water_damage": {"eau", "humidité", "mouillé", "inondation"},
			"pet_damage":   {"animal", "chien", "chat", "griffe"},
		},
		now: time.Now,
	}
}

// Evaluate checks one claim against a warranty. The category hint is used
// only when no component keyword matches the description.
func (s *Service) Evaluate(ctx context.Context, w *Warranty, description string, hint triage.Category) *Check {
	_, span := tracer.Start(ctx, "warranty.evaluate")
	defer span.End()

	now := s.now()
	component := s.identifyComponent(description, hint)

	span.SetAttributes(
		attribute.String("warranty.id", w.ID),
		attribute.String("warranty.component", string(component)),
	)

	var check *Check
	switch {
	case !w.Active(now):
		check = &Check{
			WarrantyID:     w.ID,
			Valid:          false,
			Covered:        false,
			Component:      component,
			DaysRemaining:  0,
			Reason:         "Garantie expirée",
			Recommendation: "Devis d'intervention payante disponible",
		}

	case !w.ComponentCovered(component, now):
		check = &Check{
			WarrantyID:    w.ID,
			Valid:         true,
			Covered:       false,
			Component:     component,
			DaysRemaining: w.RemainingDays(component, now),
			Reason: fmt.Sprintf("Composant '%s' non couvert ou garantie expirée pour ce composant",
				component),
			Recommendation: "Intervention payante possible",
		}

	default:
		exclusions := s.applicableExclusions(w, component, description)
		if len(exclusions) > 0 {
			check = &Check{
				WarrantyID:     w.ID,
				Valid:          true,
				Covered:        false,
				Component:      component,
				DaysRemaining:  w.RemainingDays(component, now),
				Exclusions:     exclusions,
				Reason:         "Exclusions applicables: " + strings.Join(exclusions, ", "),
				Recommendation: "Non éligible garantie - Intervention payante possible",
			}
		} else {
			check = &Check{
				WarrantyID:     w.ID,
				Valid:          true,
				Covered:        true,
				Component:      component,
				DaysRemaining:  w.RemainingDays(component, now),
				Reason:         "Garantie active, composant couvert, aucune exclusion",
				Recommendation: "Éligible pour réparation/remplacement gratuit sous garantie",
			}
		}
	}

	span.SetAttributes(attribute.Bool("warranty.covered", check.Covered))

	s.logger.Info("warranty evaluated",
		"warranty_id", w.ID,
		"component", component,
		"covered", check.Covered,
		"days_remaining", check.DaysRemaining,
		"exclusions", check.Exclusions,
	)

	return check
}

// identifyComponent finds the component a description refers to. Keyword
// matches win over the category hint; with neither, general applies.
func (s *Service) identifyComponent(description string, hint triage.Category) Component {
	text := strings.ToLower(description)

	for _, ck := range s.componentKeywords {
		if strings.Contains(text, ck.keyword) {
			return ck.component
		}
	}

	switch hint {
	case triage.CategoryStructural:
		return ComponentStructure
	case triage.CategoryMechanism:
		return ComponentMechanisms
	case triage.CategoryFabric:
		return ComponentFabric
	case triage.CategoryCushions:
		return ComponentCushions
	}

	s.logger.Warn("unable to identify warranty component", "hint", hint)
	return ComponentGeneral
}

// applicableExclusions returns every exclusion of the component's coverage
// whose keywords appear in the description, in coverage order.
func (s *Service) applicableExclusions(w *Warranty, component Component, description string) []string {
	cov, ok := w.Coverage[component]
	if !ok {
		return nil
	}

	text := strings.ToLower(description)
	var applicable []string
	for _, exclusion := range cov.Exclusions {
		for _, kw := range s.exclusionKeywords[exclusion] {
			if strings.Contains(text, kw) {
				applicable = append(applicable, exclusion)
				break
			}
		}
	}
	return applicable
}
