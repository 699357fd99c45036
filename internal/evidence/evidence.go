// Package evidence scores the quality and completeness of claim evidence
// (photos, videos, documents) ahead of a triage decision.
package evidence

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mobilierdefrance/sav-ai-platform/internal/triage"
	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("sav/evidence-collector")

// Type is the kind of evidence a customer can attach to a claim.
type Type string

const (
	TypePhoto    Type = "photo"
	TypeVideo    Type = "video"
	TypeDocument Type = "document"
	TypeInvoice  Type = "invoice"
)

// Quality is the tier derived from an item's quality score.
type Quality string

const (
	QualityExcellent  Quality = "excellent"
	QualityGood       Quality = "good"
	QualityAcceptable Quality = "acceptable"
	QualityPoor       Quality = "poor"
	QualityUnusable   Quality = "unusable"
)

// Metadata carries optional capture details extracted client-side.
type Metadata struct {
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Orientation     string `json:"orientation,omitempty"`
}

// Item is one piece of evidence attached to a claim.
type Item struct {
	ID            string    `json:"evidence_id"`
	Type          Type      `json:"type"`
	FileURL       string    `json:"file_url"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	Description   string    `json:"description"`
	Metadata      *Metadata `json:"metadata,omitempty"`
}

// Analysis is the quality assessment of a single item.
type Analysis struct {
	EvidenceID      string    `json:"evidence_id"`
	Quality         Quality   `json:"quality"`
	Score           float64   `json:"quality_score"` // 0-100
	Issues          []string  `json:"issues,omitempty"`
	Strengths       []string  `json:"strengths,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
	Verified        bool      `json:"verified"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// Analyzed pairs an item with its analysis.
type Analyzed struct {
	Item     Item      `json:"item"`
	Analysis *Analysis `json:"analysis"`
}

// CompletenessCheck reports whether the evidence set is sufficient to decide.
type CompletenessCheck struct {
	Complete           bool     `json:"is_complete"`
	MissingItems       []string `json:"missing_items,omitempty"`
	Score              float64  `json:"completeness_score"` // 0-100
	AdditionalRequests []string `json:"additional_requests,omitempty"`
	CanProceed         bool     `json:"can_proceed"`
}

// requirements describes what a problem category needs as evidence.
type requirements struct {
	minPhotos      int
	minVideos      int
	requiredAngles []string
	description    string
}

// Collector analyzes evidence quality and checks per-category completeness.
type Collector struct {
	logger *logging.Logger

	byCategory map[triage.Category]requirements
	defaults   requirements
}

var extensionPattern = regexp.MustCompile(`\.[a-z0-9]+$`)

// NewCollector creates a collector with the standard per-category
// requirements.
func NewCollector(logger *logging.Logger) *Collector {
	if logger == nil {
		logger = logging.Default()
	}

	return &Collector{
		logger: logger,
		byCategory: map[triage.Category]requirements{
			triage.CategoryStructural: {
				minPhotos:      3,
				minVideos:      1,
				requiredAngles: []string{"vue_ensemble", "zoom_probleme", "contexte"},
				description:    "Photos de la structure affectée + vidéo montrant le problème",
			},
			triage.CategoryMechanism: {
				minPhotos:      2,
				minVideos:      1,
				requiredAngles: []string{"mecanisme_ferme", "mecanisme_ouvert"},
				description:    "Photos du mécanisme + vidéo démontrant le dysfonctionnement",
			},
			triage.CategoryFabric: {
				minPhotos:      3,
				minVideos:      0,
				requiredAngles: []string{"zoom_defaut", "vue_ensemble", "lumiere_naturelle"},
				description:    "Photos claires du défaut de tissu sous différents angles",
			},
			triage.CategoryCushions: {
				minPhotos:      2,
				minVideos:      0,
				requiredAngles: []string{"vue_dessus", "vue_profil"},
				description:    "Photos montrant l'affaissement et vue d'ensemble",
			},
			triage.CategoryDelivery: {
				minPhotos:      4,
				minVideos:      0,
				requiredAngles: []string{"dommage", "emballage", "etiquette", "bon_livraison"},
				description:    "Photos des dommages + emballage + documents de livraison",
			},
			triage.CategoryDimensions: {
				minPhotos:      3,
				minVideos:      0,
				requiredAngles: []string{"produit_complet", "mesure_largeur", "mesure_profondeur"},
				description:    "Photos avec mètre visible montrant les dimensions",
			},
		},
		defaults: requirements{
			minPhotos:   2,
			minVideos:   0,
			description: "Photos du problème",
		},
	}
}

// Analyze scores a single item from its size, format, description and
// metadata. Items scoring at least 60 are auto-verified.
func (c *Collector) Analyze(ctx context.Context, item Item) *Analysis {
	_, span := tracer.Start(ctx, "evidence.analyze")
	defer span.End()

	var (
		score     float64
		issues    []string
		strengths []string
	)

	switch item.Type {
	case TypePhoto:
		score, issues, strengths = c.analyzePhoto(item)
	case TypeVideo:
		score, issues, strengths = c.analyzeVideo(item)
	default:
		score, issues, strengths = c.analyzeDocument(item)
	}
	if score < 0 {
		score = 0
	}

	analysis := &Analysis{
		EvidenceID: item.ID,
		Quality:    qualityTier(score),
		Score:      score,
		Issues:     issues,
		Strengths:  strengths,
		Verified:   score >= 60,
		AnalyzedAt: time.Now(),
	}
	if score < 75 {
		analysis.Recommendations = recommendations(item.Type, issues)
	}

	span.SetAttributes(
		attribute.String("evidence.id", item.ID),
		attribute.String("evidence.quality", string(analysis.Quality)),
		attribute.Float64("evidence.score", score),
	)

	c.logger.Info("evidence analyzed",
		"evidence_id", item.ID,
		"type", item.Type,
		"quality", analysis.Quality,
		"score", score,
	)

	return analysis
}

// AnalyzeAll analyzes every item in order.
func (c *Collector) AnalyzeAll(ctx context.Context, items []Item) []Analyzed {
	analyzed := make([]Analyzed, 0, len(items))
	for _, item := range items {
		analyzed = append(analyzed, Analyzed{Item: item, Analysis: c.Analyze(ctx, item)})
	}
	return analyzed
}

// CheckCompleteness scores the evidence set against the category's
// requirements: photo count 50%, video count 30%, share of good-quality
// items 20%. Critical and high-severity claims may proceed regardless.
func (c *Collector) CheckCompleteness(ctx context.Context, category triage.Category, severity triage.Severity, evidence []Analyzed) *CompletenessCheck {
	_, span := tracer.Start(ctx, "evidence.check_completeness")
	defer span.End()

	req, ok := c.byCategory[category]
	if !ok {
		req = c.defaults
	}

	var photoCount, videoCount int
	for _, e := range evidence {
		switch e.Item.Type {
		case TypePhoto:
			photoCount++
		case TypeVideo:
			videoCount++
		}
	}

	var missing []string
	var score float64

	if photoCount < req.minPhotos {
		missing = append(missing, fmt.Sprintf("%d photo(s) supplémentaire(s)", req.minPhotos-photoCount))
		score += float64(photoCount) / float64(req.minPhotos) * 50
	} else {
		score += 50
	}

	if videoCount < req.minVideos {
		missing = append(missing, fmt.Sprintf("%d vidéo(s)", req.minVideos-videoCount))
		score += float64(videoCount) / float64(max(req.minVideos, 1)) * 30
	} else {
		score += 30
	}

	var goodQuality int
	for _, e := range evidence {
		if e.Analysis != nil && e.Analysis.Score >= 70 {
			goodQuality++
		}
	}
	score += float64(goodQuality) / float64(max(len(evidence), 1)) * 20

	check := &CompletenessCheck{
		Complete:     len(missing) == 0,
		MissingItems: missing,
		Score:        score,
		CanProceed:   score >= 70 || severity == triage.SeverityP0 || severity == triage.SeverityP1,
	}
	if !check.Complete {
		check.AdditionalRequests = additionalRequests(category, req, missing)
	}

	span.SetAttributes(
		attribute.Float64("evidence.completeness_score", score),
		attribute.Bool("evidence.can_proceed", check.CanProceed),
	)

	c.logger.Info("evidence completeness checked",
		"category", category,
		"score", score,
		"complete", check.Complete,
		"can_proceed", check.CanProceed,
	)

	return check
}

// RequestMessage renders the customer-facing evidence request for a claim.
func (c *Collector) RequestMessage(category triage.Category, priority triage.Priority) string {
	req, ok := c.byCategory[category]
	if !ok {
		req = c.defaults
	}

	var sb strings.Builder
	switch priority {
	case triage.PriorityP0:
		sb.WriteString("URGENT\n\n")
	case triage.PriorityP1:
		sb.WriteString("Important\n\n")
	}

	sb.WriteString("Preuves nécessaires pour traiter votre demande:\n\n")
	fmt.Fprintf(&sb, "- %d photo(s) minimum\n", req.minPhotos)
	if req.minVideos > 0 {
		fmt.Fprintf(&sb, "- %d vidéo(s)\n", req.minVideos)
	}

	fmt.Fprintf(&sb, "\nCe qu'il faut montrer:\n%s\n", req.description)

	if len(req.requiredAngles) > 0 {
		sb.WriteString("\nAngles recommandés:\n")
		for _, angle := range req.requiredAngles {
			fmt.Fprintf(&sb, "  - %s\n", strings.ReplaceAll(angle, "_", " "))
		}
	}

	sb.WriteString("\nConseils pour de bonnes preuves:\n")
	sb.WriteString("  - Éclairage suffisant (lumière naturelle de préférence)\n")
	sb.WriteString("  - Photos nettes et en haute résolution\n")
	sb.WriteString("  - Cadrage incluant le problème et son contexte\n")
	sb.WriteString("  - Ajoutez une brève description pour chaque fichier\n")

	return sb.String()
}

func (c *Collector) analyzePhoto(item Item) (float64, []string, []string) {
	score := 100.0
	var issues, strengths []string

	sizeKB := float64(item.FileSizeBytes) / 1024
	switch {
	case sizeKB < 50:
		score -= 30
		issues = append(issues, fmt.Sprintf("Fichier trop petit (%.0fKB) - qualité probablement insuffisante", sizeKB))
	case sizeKB > 20*1024:
		score -= 10
		issues = append(issues, fmt.Sprintf("Fichier très volumineux (%.1fMB) - compression recommandée", sizeKB/1024))
	default:
		strengths = append(strengths, "Taille de fichier appropriée")
	}

	ext := fileExtension(item.FileURL)
	if !contains([]string{".jpg", ".jpeg", ".png", ".heic"}, ext) {
		score -= 20
		issues = append(issues, fmt.Sprintf("Format %s non optimal - préférer JPG ou PNG", ext))
	} else {
		strengths = append(strengths, fmt.Sprintf("Format %s accepté", ext))
	}

	if len(item.Description) < 10 {
		score -= 15
		issues = append(issues, "Description trop courte - détaillez ce qui est visible")
	} else {
		strengths = append(strengths, "Description fournie")
	}

	if m := item.Metadata; m != nil && m.Width > 0 && m.Height > 0 {
		switch {
		case m.Width < 640 || m.Height < 480:
			score -= 25
			issues = append(issues, fmt.Sprintf("Résolution trop faible (%dx%d) - minimum 640x480", m.Width, m.Height))
		case m.Width >= 1920 && m.Height >= 1080:
			strengths = append(strengths, "Haute résolution")
		default:
			strengths = append(strengths, "Résolution acceptable")
		}
	}

	return score, issues, strengths
}

func (c *Collector) analyzeVideo(item Item) (float64, []string, []string) {
	score := 100.0
	var issues, strengths []string

	sizeMB := float64(item.FileSizeBytes) / (1024 * 1024)
	if sizeMB > 100 {
		score -= 20
		issues = append(issues, fmt.Sprintf("Vidéo très volumineuse (%.1fMB) - compression recommandée", sizeMB))
	} else {
		strengths = append(strengths, "Taille de vidéo acceptable")
	}

	ext := fileExtension(item.FileURL)
	if !contains([]string{".mp4", ".mov", ".avi"}, ext) {
		score -= 15
		issues = append(issues, fmt.Sprintf("Format %s non optimal - préférer MP4", ext))
	} else {
		strengths = append(strengths, fmt.Sprintf("Format %s accepté", ext))
	}

	if m := item.Metadata; m != nil && m.DurationSeconds > 0 {
		switch {
		case m.DurationSeconds < 5:
			score -= 20
			issues = append(issues, fmt.Sprintf("Vidéo trop courte (%ds) - minimum 5 secondes", m.DurationSeconds))
		case m.DurationSeconds > 120:
			score -= 10
			issues = append(issues, fmt.Sprintf("Vidéo trop longue (%ds) - maximum 2 minutes", m.DurationSeconds))
		default:
			strengths = append(strengths, fmt.Sprintf("Durée appropriée (%ds)", m.DurationSeconds))
		}
	}

	if len(item.Description) < 15 {
		score -= 15
		issues = append(issues, "Description insuffisante - expliquez ce que montre la vidéo")
	} else {
		strengths = append(strengths, "Description fournie")
	}

	return score, issues, strengths
}

func (c *Collector) analyzeDocument(item Item) (float64, []string, []string) {
	score := 100.0
	var issues, strengths []string

	ext := fileExtension(item.FileURL)
	if !contains([]string{".pdf", ".jpg", ".jpeg", ".png"}, ext) {
		score -= 30
		issues = append(issues, fmt.Sprintf("Format %s non accepté pour documents", ext))
	} else {
		strengths = append(strengths, fmt.Sprintf("Format %s accepté", ext))
	}

	if float64(item.FileSizeBytes)/(1024*1024) > 10 {
		score -= 10
		issues = append(issues, "Document volumineux - compression recommandée")
	} else {
		strengths = append(strengths, "Taille de document acceptable")
	}

	if len(item.Description) < 5 {
		score -= 20
		issues = append(issues, "Précisez le type de document (facture, bon de livraison, etc.)")
	} else {
		strengths = append(strengths, "Type de document précisé")
	}

	return score, issues, strengths
}

func qualityTier(score float64) Quality {
	switch {
	case score >= 90:
		return QualityExcellent
	case score >= 75:
		return QualityGood
	case score >= 60:
		return QualityAcceptable
	case score >= 40:
		return QualityPoor
	default:
		return QualityUnusable
	}
}

func recommendations(t Type, issues []string) []string {
	var recs []string
	joined := strings.ToLower(strings.Join(issues, " "))

	switch t {
	case TypePhoto:
		if strings.Contains(joined, "trop petit") {
			recs = append(recs,
				"Prenez une photo avec un appareil de meilleure qualité",
				"Assurez-vous d'avoir un bon éclairage")
		}
		if strings.Contains(joined, "résolution") {
			recs = append(recs, "Utilisez l'appareil photo de votre smartphone (mode haute résolution)")
		}
		if strings.Contains(joined, "description") {
			recs = append(recs, "Décrivez précisément ce qui est visible sur la photo")
		}
	case TypeVideo:
		if strings.Contains(joined, "trop courte") {
			recs = append(recs, "Filmez pendant au moins 10 secondes pour montrer le problème clairement")
		}
		if strings.Contains(joined, "trop longue") {
			recs = append(recs, "Concentrez-vous sur le problème (max 2 minutes)")
		}
	}
	return recs
}

func additionalRequests(category triage.Category, req requirements, missing []string) []string {
	var requests []string
	joined := strings.ToLower(strings.Join(missing, " "))

	if strings.Contains(joined, "photo") {
		if len(req.requiredAngles) > 0 {
			requests = append(requests,
				"Veuillez fournir des photos sous ces angles: "+strings.Join(req.requiredAngles, ", "))
		} else {
			requests = append(requests,
				"Veuillez fournir des photos supplémentaires montrant le problème clairement")
		}
	}

	if strings.Contains(joined, "vidéo") {
		switch category {
		case triage.CategoryMechanism:
			requests = append(requests,
				"Veuillez fournir une vidéo montrant le mécanisme en action et le problème rencontré")
		case triage.CategoryStructural:
			requests = append(requests,
				"Veuillez fournir une vidéo montrant la structure et démontrant l'instabilité")
		}
	}

	return requests
}

func fileExtension(url string) string {
	return extensionPattern.FindString(strings.ToLower(url))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
