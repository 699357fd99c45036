package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mobilierdefrance/sav-ai-platform/internal/resilience"
	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("sav/ai-analyzer")

const systemPrompt = `Tu es un analyste du service après-vente d'un fabricant de meubles français.
On te donne la description d'une réclamation client. Réponds UNIQUEMENT avec un objet JSON:
{"tone": "calm|concerned|frustrated|angry|urgent", "urgency": "low|medium|high|critical", "summary": "résumé en une phrase", "confidence": 0.0}
Aucun autre texte.`

// Assessment is the model's read of a claim, used to corroborate the keyword
// analyzers. It never loosens their verdicts, only tightens them.
type Assessment struct {
	Tone       string  `json:"tone"`
	Urgency    string  `json:"urgency"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
	// Degraded marks a fallback produced without the model.
	Degraded bool `json:"degraded,omitempty"`
}

// GatedAnalyzer calls the LLM through a circuit breaker and degrades to a
// neutral assessment when the model is unavailable.
type GatedAnalyzer struct {
	client  LLMClient
	breaker *resilience.Breaker
	modelID string
	logger  *logging.Logger
}

// NewGatedAnalyzer wires the analyzer. Client and breaker are required.
func NewGatedAnalyzer(client LLMClient, breaker *resilience.Breaker, modelID string, logger *logging.Logger) *GatedAnalyzer {
	if client == nil {
		panic("ai: llm client is required")
	}
	if breaker == nil {
		panic("ai: circuit breaker is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GatedAnalyzer{client: client, breaker: breaker, modelID: modelID, logger: logger}
}

// Assess asks the model for a tone/urgency read of the description. On any
// failure (open circuit, timeout, unparsable output) it returns the neutral
// fallback so the caller never blocks on the model.
func (a *GatedAnalyzer) Assess(ctx context.Context, description string) *Assessment {
	ctx, span := tracer.Start(ctx, "ai.assess")
	defer span.End()

	assessment, err := resilience.Call(ctx, a.breaker, func(ctx context.Context) (*Assessment, error) {
		resp, err := a.client.Complete(ctx, LLMRequest{
			Model:       a.modelID,
			System:      []string{systemPrompt},
			Messages:    []ChatMessage{{Role: ChatRoleUser, Content: description}},
			MaxTokens:   300,
			Temperature: 0,
		})
		if err != nil {
			return nil, err
		}
		return parseAssessment(resp.Text)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("ai.degraded", true))
		a.logger.Warn("ai assessment degraded", "error", err)
		return FallbackAssessment()
	}

	span.SetAttributes(
		attribute.String("ai.tone", assessment.Tone),
		attribute.String("ai.urgency", assessment.Urgency),
		attribute.Float64("ai.confidence", assessment.Confidence),
	)
	return assessment
}

// FallbackAssessment is the neutral verdict used when the model cannot be
// reached: it corroborates nothing and tightens nothing.
func FallbackAssessment() *Assessment {
	return &Assessment{
		Tone:       "calm",
		Urgency:    "low",
		Summary:    "Analyse automatique indisponible",
		Confidence: 0,
		Degraded:   true,
	}
}

// parseAssessment decodes the model's JSON, tolerating markdown fences.
func parseAssessment(text string) (*Assessment, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var a Assessment
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		return nil, fmt.Errorf("ai: decode assessment: %w", err)
	}
	if a.Tone == "" || a.Urgency == "" {
		return nil, fmt.Errorf("ai: assessment missing tone or urgency")
	}
	return &a, nil
}
