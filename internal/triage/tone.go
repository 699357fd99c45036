package triage

import (
	"context"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

var toneTracer = otel.Tracer("sav/tone-analyzer")

// ToneLevel is the discrete emotional tone of a customer message.
type ToneLevel string

const (
	ToneCalm       ToneLevel = "calm"
	ToneConcerned  ToneLevel = "concerned"
	ToneFrustrated ToneLevel = "frustrated"
	ToneAngry      ToneLevel = "angry"
	ToneUrgent     ToneLevel = "urgent"
)

func (t ToneLevel) rank() int {
	switch t {
	case ToneUrgent:
		return 4
	case ToneAngry:
		return 3
	case ToneFrustrated:
		return 2
	case ToneConcerned:
		return 1
	default:
		return 0
	}
}

// UrgencyLevel is the discrete urgency of a customer message.
type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

func (u UrgencyLevel) rank() int {
	switch u {
	case UrgencyCritical:
		return 3
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 1
	default:
		return 0
	}
}

// ToneAnalysis is the result of analyzing the emotional tone and urgency of a
// message, independently of its problem category.
type ToneAnalysis struct {
	Tone                 ToneLevel     `json:"tone"`
	Urgency              UrgencyLevel  `json:"urgency"`
	EmotionScore         float64       `json:"emotion_score"` // 0-100
	UrgencyScore         float64       `json:"urgency_score"` // 0-100
	DetectedKeywords     []string      `json:"detected_keywords,omitempty"`
	ResponseWithin       time.Duration `json:"response_within"`
	RequiresHumanEmpathy bool          `json:"requires_human_empathy"`
	Explanation          string        `json:"explanation"`
}

// ToneAnalyzer scores emotional intensity and urgency from free text.
type ToneAnalyzer struct {
	logger *logging.Logger

	calmKeywords       []string
	concernedKeywords  []string
	frustratedKeywords []string
	angryKeywords      []string
	urgentKeywords     []string
	timeUrgentKeywords []string
	amplifiers         []string
	emotionalPunct     []string
}

// NewToneAnalyzer creates a tone analyzer with the built-in keyword families.
func NewToneAnalyzer(logger *logging.Logger) *ToneAnalyzer {
	if logger == nil {
		logger = logging.Default()
	}

	return &ToneAnalyzer{
		logger: logger,
		calmKeywords: []string{
			"bonjour", "merci", "s'il vous plaît", "pourriez-vous",
			"j'aimerais", "question", "renseignement", "information",
		},
		concernedKeywords: []string{
			"inquiet", "préoccupé", "soucieux", "bizarre", "étrange",
			"anormal", "inhabituel", "pourquoi", "comment se fait-il",
		},
		frustratedKeywords: []string{
			"déçu", "mécontent", "problème", "encore", "toujours",
			"ça fait plusieurs fois", "ça dure depuis", "pas normal",
			"inacceptable", "inadmissible", "honte", "scandale",
		},
		angryKeywords: []string{
			"furieux", "en colère", "outré", "honteux", "arnaque",
			"escroquerie", "inadmissible", "exige", "je veux",
			"immédiatement", "tout de suite", "c'est une honte",
			"!!!", "catastrophe", "désastre",
		},
		urgentKeywords: []string{
			"urgent", "immédiat", "danger", "risque", "blessure",
			"enfant", "bébé", "cassé net", "effondré", "chute",
			"accident", "sanguin", "coupure", "éclats", "verre brisé",
			"tombé", "instable", "penche",
		},
		timeUrgentKeywords: []string{
			"aujourd'hui", "maintenant", "ce soir", "urgent",
			"au plus vite", "dès que possible", "rapidement",
		},
		amplifiers: []string{
			"vraiment", "totalement", "complètement", "absolument",
			"très", "trop", "extrêmement", "terriblement",
		},
		emotionalPunct: []string{"!!!", "!!", "???"},
	}
}

// Analyze scores the tone and urgency of a message. It never fails; an empty
// message comes back calm/low.
func (a *ToneAnalyzer) Analyze(ctx context.Context, message string) *ToneAnalysis {
	_, span := toneTracer.Start(ctx, "tone.analyze")
	defer span.End()

	text := strings.ToLower(message)

	calm := matchAll(text, a.calmKeywords)
	concerned := matchAll(text, a.concernedKeywords)
	frustrated := matchAll(text, a.frustratedKeywords)
	angry := matchAll(text, a.angryKeywords)
	urgent := matchAll(text, a.urgentKeywords)
	timeUrgent := matchAll(text, a.timeUrgentKeywords)

	hasAmplifiers := len(matchAll(text, a.amplifiers)) > 0
	hasEmotionalPunct := len(matchAll(message, a.emotionalPunct)) > 0

	var detected []string
	var emotion float64
	if len(urgent) > 0 {
		emotion += 90
		detected = append(detected, urgent...)
	}
	if len(angry) > 0 {
		emotion += 70
		detected = append(detected, angry...)
	}
	if len(frustrated) > 0 {
		emotion += 50
		detected = append(detected, frustrated...)
	}
	if len(concerned) > 0 {
		emotion += 30
		detected = append(detected, concerned...)
	}
	if len(calm) > 0 {
		emotion -= 20
		if emotion < 0 {
			emotion = 0
		}
		detected = append(detected, calm...)
	}

	if hasAmplifiers {
		emotion *= 1.2
	}
	if hasEmotionalPunct {
		emotion *= 1.3
	}
	if isShouting(message) {
		emotion *= 1.5
	}
	if emotion > 100 {
		emotion = 100
	}

	var urgency float64
	if len(urgent) > 0 {
		urgency += 80
	}
	if len(timeUrgent) > 0 {
		urgency += 40
	}
	if len(angry) > 0 {
		urgency += 30
	}
	if len(frustrated) > 0 {
		urgency += 20
	}
	if urgency > 100 {
		urgency = 100
	}

	tone := determineTone(len(urgent) > 0, len(angry) > 0, len(frustrated) > 0, len(concerned) > 0, emotion)
	urgencyLevel := determineUrgency(urgency, len(urgent) > 0)

	if len(detected) > 10 {
		detected = detected[:10]
	}

	analysis := &ToneAnalysis{
		Tone:                 tone,
		Urgency:              urgencyLevel,
		EmotionScore:         emotion,
		UrgencyScore:         urgency,
		DetectedKeywords:     detected,
		ResponseWithin:       responseWithin(urgencyLevel, tone),
		RequiresHumanEmpathy: emotion >= 60 || urgency >= 70,
	}
	analysis.Explanation = explainTone(analysis)

	span.SetAttributes(
		attribute.String("tone.level", string(tone)),
		attribute.String("tone.urgency", string(urgencyLevel)),
		attribute.Float64("tone.emotion_score", emotion),
		attribute.Float64("tone.urgency_score", urgency),
	)

	a.logger.Info("tone analyzed",
		"tone", tone,
		"urgency", urgencyLevel,
		"emotion_score", emotion,
		"urgency_score", urgency,
		"requires_empathy", analysis.RequiresHumanEmpathy,
	)

	return analysis
}

// Escalate adopts the more severe of the current and proposed tone and
// urgency, re-deriving the response window and empathy flag. It never
// softens the analysis.
func (t *ToneAnalysis) Escalate(tone ToneLevel, urgency UrgencyLevel) {
	if tone.rank() > t.Tone.rank() {
		t.Tone = tone
	}
	if urgency.rank() > t.Urgency.rank() {
		t.Urgency = urgency
	}
	t.ResponseWithin = responseWithin(t.Urgency, t.Tone)
	if t.Tone.rank() >= ToneAngry.rank() || t.Urgency.rank() >= UrgencyHigh.rank() {
		t.RequiresHumanEmpathy = true
	}
}

// TightenDeadline returns the earlier of the existing deadline and the one
// recommended by the tone analysis. It never loosens a deadline.
func (t *ToneAnalysis) TightenDeadline(existing time.Time, from time.Time) time.Time {
	recommended := from.Add(t.ResponseWithin)
	if recommended.Before(existing) {
		return recommended
	}
	return existing
}

func determineTone(urgent, angry, frustrated, concerned bool, emotion float64) ToneLevel {
	switch {
	case urgent || emotion >= 90:
		return ToneUrgent
	case angry || emotion >= 70:
		return ToneAngry
	case frustrated || emotion >= 50:
		return ToneFrustrated
	case concerned || emotion >= 30:
		return ToneConcerned
	default:
		return ToneCalm
	}
}

func determineUrgency(score float64, urgentKeywords bool) UrgencyLevel {
	switch {
	case urgentKeywords || score >= 80:
		return UrgencyCritical
	case score >= 50:
		return UrgencyHigh
	case score >= 25:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// responseWithin keys the recommended response window on the worse of the
// urgency level and the tone level.
func responseWithin(urgency UrgencyLevel, tone ToneLevel) time.Duration {
	switch {
	case urgency == UrgencyCritical || tone == ToneUrgent:
		return 4 * time.Hour
	case urgency == UrgencyHigh || tone == ToneAngry:
		return 24 * time.Hour
	case urgency == UrgencyMedium || tone == ToneFrustrated:
		return 48 * time.Hour
	default:
		return 72 * time.Hour
	}
}

func explainTone(t *ToneAnalysis) string {
	toneLabels := map[ToneLevel]string{
		ToneCalm:       "neutre et calme",
		ToneConcerned:  "préoccupé",
		ToneFrustrated: "frustré",
		ToneAngry:      "en colère",
		ToneUrgent:     "urgent et critique",
	}
	urgencyLabels := map[UrgencyLevel]string{
		UrgencyLow:      "faible",
		UrgencyMedium:   "moyenne",
		UrgencyHigh:     "haute",
		UrgencyCritical: "critique",
	}

	var sb strings.Builder
	sb.WriteString("Ton du client: ")
	sb.WriteString(toneLabels[t.Tone])
	sb.WriteString(". Urgence: ")
	sb.WriteString(urgencyLabels[t.Urgency])
	sb.WriteString(". ")

	switch {
	case t.Tone == ToneAngry || t.Tone == ToneUrgent:
		sb.WriteString("Nécessite une réponse rapide et empathique.")
	case t.Tone == ToneFrustrated:
		sb.WriteString("Nécessite une réponse professionnelle et rassurante.")
	default:
		sb.WriteString("Réponse standard appropriée.")
	}
	return sb.String()
}

func matchAll(text string, keywords []string) []string {
	var matches []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matches = append(matches, kw)
		}
	}
	return matches
}

// isShouting reports whether the message is written entirely in upper case.
// Messages without any letters do not count.
func isShouting(message string) bool {
	hasLetter := false
	for _, r := range message {
		if !unicode.IsLetter(r) {
			continue
		}
		hasLetter = true
		if unicode.IsLower(r) {
			return false
		}
	}
	return hasLetter
}
