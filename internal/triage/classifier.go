package triage

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

var classifierTracer = otel.Tracer("sav/problem-classifier")

// ambiguityMargin is the confidence gap under which the top two categories
// are considered indistinguishable and clarification is requested.
const ambiguityMargin = 0.2

// categoryConfig describes the keyword vocabulary and defaults of a category.
type categoryConfig struct {
	keywords      []string
	severityRange []Severity // most severe first
}

// CategoryMatch is one candidate category with its computed confidence.
type CategoryMatch struct {
	Category        Category `json:"category"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// Classification is the result of classifying a problem description.
type Classification struct {
	Category           Category        `json:"category"`
	Confidence         float64         `json:"confidence"`
	MatchedKeywords    []string        `json:"matched_keywords"`
	Severity           Severity        `json:"severity"`
	AllCategories      []CategoryMatch `json:"all_categories,omitempty"`
	NeedsClarification bool            `json:"needs_clarification"`
	Symptoms           []string        `json:"symptoms,omitempty"`
}

// Classifier maps free-text problem descriptions to a category and severity
// via weighted keyword matching. It never fails: unmatchable input degrades
// to CategoryUnknown with zero confidence.
type Classifier struct {
	logger     *logging.Logger
	categories map[Category]categoryConfig

	criticalKeywords []string
	unusableKeywords []string
	minorKeywords    []string

	symptomPatterns map[string]*regexp.Regexp
}

// NewClassifier creates a classifier with the built-in French keyword tables.
func NewClassifier(logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}

	return &Classifier{
		logger: logger,
		categories: map[Category]categoryConfig{
			CategoryStructural: {
				keywords: []string{
					"cassé", "fissure", "effondré", "instable", "penche",
					"pied cassé", "s'effondre", "craqué", "rompu", "fendu",
					"danger", "risque", "chute", "brisé",
				},
				severityRange: []Severity{SeverityP0, SeverityP1},
			},
			CategoryMechanism: {
				keywords: []string{
					"bloqué", "grince", "dur", "ne fonctionne plus", "mécanisme",
					"relax", "convertible", "ne se déplie plus", "coincé",
					"ressort", "vérin", "ne marche plus", "en panne",
				},
				severityRange: []Severity{SeverityP1, SeverityP2},
			},
			CategoryFabric: {
				keywords: []string{
					"tache", "déchirure", "décoloration", "usure", "tissu",
					"cuir", "trou", "accroc", "pelage", "pâli", "délavé",
					"abimé", "usé",
				},
				severityRange: []Severity{SeverityP2, SeverityP3},
			},
			CategoryCushions: {
				keywords: []string{
					"affaissement", "mousse", "coussin", "s'affaisse", "creux",
					"aplati", "déformé", "mou", "confort", "s'aplatit",
				},
				severityRange: []Severity{SeverityP2},
			},
			CategoryDelivery: {
				keywords: []string{
					"livraison", "retard", "endommagé à l'arrivée", "manquant",
					"colis", "transport", "livreur", "pas reçu", "délai",
					"abimé livraison",
				},
				severityRange: []Severity{SeverityP1},
			},
			CategoryAssembly: {
				keywords: []string{
					"pièce manquante", "vis", "notice", "montage", "assemblage",
					"manque", "incomplet", "instructions", "mode d'emploi",
				},
				severityRange: []Severity{SeverityP2},
			},
			CategorySmell: {
				keywords: []string{
					"odeur", "sent", "pue", "mauvaise odeur", "chimique",
					"forte odeur",
				},
				severityRange: []Severity{SeverityP2, SeverityP3},
			},
			CategoryDimensions: {
				keywords: []string{
					"taille", "dimension", "mesure", "ne rentre pas",
					"trop grand", "trop petit", "erreur taille",
				},
				severityRange: []Severity{SeverityP2},
			},
		},
		criticalKeywords: []string{
			"danger", "blessure", "risque", "effondre", "cassé net",
			"urgent", "immédiat", "grave", "accident",
		},
		unusableKeywords: []string{
			"inutilisable", "ne fonctionne plus", "complètement",
			"totalement", "impossible", "bloqué",
		},
		minorKeywords: []string{
			"gêne", "léger", "petit", "peu", "légèrement",
			"un peu", "parfois",
		},
		symptomPatterns: map[string]*regexp.Regexp{
			"duration":  regexp.MustCompile(`(?:depuis|il y a|ça fait)\s+(\d+\s+(?:jour|semaine|mois|an)s?)`),
			"frequency": regexp.MustCompile(`(?:tout le temps|parfois|souvent|rarement|toujours)`),
			"location":  regexp.MustCompile(`(?:côté|partie|zone|endroit)\s+(?:gauche|droit|haut|bas|milieu)`),
			"intensity": regexp.MustCompile(`(?:très|assez|peu|légèrement|énormément)\s+(?:fort|faible|grave|gênant)`),
		},
	}
}

// Classify analyzes a problem description and returns the best category with
// a refined severity tier.
func (c *Classifier) Classify(ctx context.Context, description string) *Classification {
	_, span := classifierTracer.Start(ctx, "classifier.classify")
	defer span.End()

	text := strings.ToLower(strings.TrimSpace(description))

	var candidates []CategoryMatch
	for category, cfg := range c.categories {
		var matches []string
		for _, kw := range cfg.keywords {
			if strings.Contains(text, kw) {
				matches = append(matches, kw)
			}
		}
		if len(matches) == 0 {
			continue
		}
		candidates = append(candidates, CategoryMatch{
			Category:        category,
			Confidence:      c.confidence(matches, cfg.keywords, text),
			MatchedKeywords: matches,
		})
	}

	sortMatches(candidates)

	needsClarification := len(candidates) == 0 ||
		(len(candidates) > 1 && candidates[0].Confidence-candidates[1].Confidence < ambiguityMargin)

	if len(candidates) == 0 {
		c.logger.Warn("unable to classify problem", "description_prefix", prefix(description, 50))
		return &Classification{
			Category:           CategoryUnknown,
			Confidence:         0,
			Severity:           SeverityP3,
			NeedsClarification: true,
		}
	}

	primary := candidates[0]
	severity := c.classifySeverity(primary.Category, text)

	span.SetAttributes(
		attribute.String("problem.category", string(primary.Category)),
		attribute.Float64("problem.confidence", primary.Confidence),
		attribute.String("problem.severity", string(severity)),
		attribute.Bool("problem.needs_clarification", needsClarification),
	)

	c.logger.Info("problem classified",
		"category", primary.Category,
		"confidence", primary.Confidence,
		"severity", severity,
		"needs_clarification", needsClarification,
	)

	return &Classification{
		Category:           primary.Category,
		Confidence:         primary.Confidence,
		MatchedKeywords:    primary.MatchedKeywords,
		Severity:           severity,
		AllCategories:      candidates,
		NeedsClarification: needsClarification,
		Symptoms:           c.extractSymptoms(text),
	}
}

// confidence blends four signals: ratio of matched keywords to the category
// vocabulary (0.3), a saturating match count capped at 3 (0.3), average
// matched-keyword length (0.2), and position of the first match (0.2).
func (c *Classifier) confidence(matches, vocabulary []string, text string) float64 {
	keywordRatio := float64(len(matches)) / float64(len(vocabulary))

	matchCountScore := float64(len(matches)) / 3
	if matchCountScore > 1 {
		matchCountScore = 1
	}

	var totalLen int
	for _, m := range matches {
		totalLen += len(m)
	}
	lengthScore := (float64(totalLen) / float64(len(matches))) / 15
	if lengthScore > 1 {
		lengthScore = 1
	}

	textLen := len(text)
	if textLen == 0 {
		textLen = 1
	}
	positionScore := 1 - float64(strings.Index(text, matches[0]))/float64(textLen)
	if positionScore < 0 {
		positionScore = 0
	} else if positionScore > 1 {
		positionScore = 1
	}

	confidence := keywordRatio*0.3 + matchCountScore*0.3 + lengthScore*0.2 + positionScore*0.2
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// classifySeverity refines the severity tier independently of the category:
// explicit danger keywords force P0, explicit unusable keywords force P1,
// explicit minor keywords force P2, otherwise the most severe tier of the
// category's default range applies.
func (c *Classifier) classifySeverity(category Category, text string) Severity {
	for _, kw := range c.criticalKeywords {
		if strings.Contains(text, kw) {
			return SeverityP0
		}
	}
	for _, kw := range c.unusableKeywords {
		if strings.Contains(text, kw) {
			return SeverityP1
		}
	}
	for _, kw := range c.minorKeywords {
		if strings.Contains(text, kw) {
			return SeverityP2
		}
	}

	cfg, ok := c.categories[category]
	if !ok || len(cfg.severityRange) == 0 {
		return SeverityP3
	}
	return cfg.severityRange[0]
}

// extractSymptoms pulls duration/frequency/location/intensity hints out of
// the description for the technician brief.
func (c *Classifier) extractSymptoms(text string) []string {
	var symptoms []string
	for kind, pattern := range c.symptomPatterns {
		if m := pattern.FindString(text); m != "" {
			symptoms = append(symptoms, kind+": "+m)
		}
	}
	return symptoms
}

func sortMatches(matches []CategoryMatch) {
	// Insertion sort keeps ties stable; candidate lists are tiny.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Confidence > matches[j-1].Confidence; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
