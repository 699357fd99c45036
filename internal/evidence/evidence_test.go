package evidence

import (
	"context"
	"strings"
	"testing"

	"github.com/mobilierdefrance/sav-ai-platform/internal/triage"
)

func goodPhoto(id string) Item {
	return Item{
		ID:            id,
		Type:          TypePhoto,
		FileURL:       "https://cdn.mobilierdefrance.com/sav/" + id + ".jpg",
		FileSizeBytes: 800 * 1024,
		Description:   "Vue d'ensemble du canapé avec le défaut visible",
		Metadata:      &Metadata{Width: 1920, Height: 1080},
	}
}

func goodVideo(id string) Item {
	return Item{
		ID:            id,
		Type:          TypeVideo,
		FileURL:       "https://cdn.mobilierdefrance.com/sav/" + id + ".mp4",
		FileSizeBytes: 12 * 1024 * 1024,
		Description:   "Démonstration du mécanisme qui se bloque à mi-course",
		Metadata:      &Metadata{DurationSeconds: 25},
	}
}

func TestAnalyzePhotoQuality(t *testing.T) {
	c := NewCollector(nil)
	ctx := context.Background()

	tests := []struct {
		name        string
		item        Item
		wantQuality Quality
		wantScore   float64
	}{
		{
			name:        "high quality photo",
			item:        goodPhoto("ev-1"),
			wantQuality: QualityExcellent,
			wantScore:   100,
		},
		{
			name: "tiny file loses 30",
			item: Item{
				ID: "ev-2", Type: TypePhoto,
				FileURL:       "https://cdn.mobilierdefrance.com/sav/ev-2.jpg",
				FileSizeBytes: 10 * 1024,
				Description:   "Zoom sur la déchirure du tissu",
			},
			wantQuality: QualityAcceptable,
			wantScore:   70,
		},
		{
			name: "bad format and short description",
			item: Item{
				ID: "ev-3", Type: TypePhoto,
				FileURL:       "https://cdn.mobilierdefrance.com/sav/ev-3.bmp",
				FileSizeBytes: 500 * 1024,
				Description:   "photo",
			},
			wantQuality: QualityAcceptable,
			wantScore:   65,
		},
		{
			name: "low resolution",
			item: Item{
				ID: "ev-4", Type: TypePhoto,
				FileURL:       "https://cdn.mobilierdefrance.com/sav/ev-4.jpg",
				FileSizeBytes: 500 * 1024,
				Description:   "Photo du pied cassé en gros plan",
				Metadata:      &Metadata{Width: 320, Height: 240},
			},
			wantQuality: QualityGood,
			wantScore:   75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Analyze(ctx, tt.item)
			if got.Score != tt.wantScore {
				t.Errorf("score = %f, want %f (issues: %v)", got.Score, tt.wantScore, got.Issues)
			}
			if got.Quality != tt.wantQuality {
				t.Errorf("quality = %s, want %s", got.Quality, tt.wantQuality)
			}
			if got.Verified != (tt.wantScore >= 60) {
				t.Errorf("verified = %v for score %f", got.Verified, tt.wantScore)
			}
		})
	}
}

func TestAnalyzeVideoDuration(t *testing.T) {
	c := NewCollector(nil)
	ctx := context.Background()

	short := goodVideo("ev-5")
	short.Metadata = &Metadata{DurationSeconds: 2}
	short.Description = "vidéo"

	got := c.Analyze(ctx, short)
	// -20 short duration, -15 short description
	if got.Score != 65 {
		t.Errorf("score = %f, want 65 (issues: %v)", got.Score, got.Issues)
	}
	var hasRec bool
	for _, r := range got.Recommendations {
		if strings.Contains(r, "10 secondes") {
			hasRec = true
		}
	}
	if !hasRec {
		t.Errorf("recommendations %v missing the short-video advice", got.Recommendations)
	}
}

func TestAnalyzeScoreNeverNegative(t *testing.T) {
	c := NewCollector(nil)

	worst := Item{
		ID: "ev-6", Type: TypePhoto,
		FileURL:       "https://cdn.mobilierdefrance.com/sav/ev-6.tiff",
		FileSizeBytes: 1024,
		Description:   "?",
		Metadata:      &Metadata{Width: 100, Height: 100},
	}
	got := c.Analyze(context.Background(), worst)
	if got.Score < 0 {
		t.Errorf("score = %f, want >= 0", got.Score)
	}
	if got.Quality != QualityUnusable {
		t.Errorf("quality = %s, want %s", got.Quality, QualityUnusable)
	}
}

func TestCheckCompletenessFull(t *testing.T) {
	c := NewCollector(nil)
	ctx := context.Background()

	items := []Item{goodPhoto("p1"), goodPhoto("p2"), goodPhoto("p3"), goodVideo("v1")}
	analyzed := c.AnalyzeAll(ctx, items)

	got := c.CheckCompleteness(ctx, triage.CategoryStructural, triage.SeverityP2, analyzed)

	if !got.Complete {
		t.Errorf("Complete = false, missing %v", got.MissingItems)
	}
	if got.Score != 100 {
		t.Errorf("score = %f, want 100", got.Score)
	}
	if !got.CanProceed {
		t.Error("CanProceed = false, want true")
	}
}

func TestCheckCompletenessMissingItems(t *testing.T) {
	c := NewCollector(nil)
	ctx := context.Background()

	// Structural needs 3 photos + 1 video; provide 1 good photo.
	analyzed := c.AnalyzeAll(ctx, []Item{goodPhoto("p1")})

	got := c.CheckCompleteness(ctx, triage.CategoryStructural, triage.SeverityP2, analyzed)

	if got.Complete {
		t.Error("Complete = true, want false")
	}
	if len(got.MissingItems) != 2 {
		t.Errorf("missing items = %v, want photo and video entries", got.MissingItems)
	}
	// photos 1/3*50 + videos 0 + quality 1/1*20
	want := 50.0/3 + 20
	if diff := got.Score - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("score = %f, want %f", got.Score, want)
	}
	if got.CanProceed {
		t.Error("CanProceed = true, want false for a P2 claim below 70")
	}
	if len(got.AdditionalRequests) == 0 {
		t.Error("AdditionalRequests is empty")
	}
}

// Critical claims proceed even with incomplete evidence.
func TestCheckCompletenessSeverityOverride(t *testing.T) {
	c := NewCollector(nil)
	ctx := context.Background()

	got := c.CheckCompleteness(ctx, triage.CategoryStructural, triage.SeverityP0, nil)

	if got.Complete {
		t.Error("Complete = true, want false with no evidence")
	}
	if !got.CanProceed {
		t.Error("CanProceed = false, want true for a P0 claim")
	}
}

func TestCheckCompletenessUnknownCategoryDefaults(t *testing.T) {
	c := NewCollector(nil)
	ctx := context.Background()

	analyzed := c.AnalyzeAll(ctx, []Item{goodPhoto("p1"), goodPhoto("p2")})
	got := c.CheckCompleteness(ctx, triage.CategoryUnknown, triage.SeverityP3, analyzed)

	if !got.Complete {
		t.Errorf("Complete = false, missing %v; default requirement is 2 photos", got.MissingItems)
	}
}

func TestRequestMessage(t *testing.T) {
	c := NewCollector(nil)

	msg := c.RequestMessage(triage.CategoryMechanism, triage.PriorityP0)

	for _, want := range []string{"URGENT", "2 photo(s) minimum", "1 vidéo(s)", "mecanisme ferme"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	calm := c.RequestMessage(triage.CategoryFabric, triage.PriorityP3)
	if strings.Contains(calm, "URGENT") || strings.Contains(calm, "Important") {
		t.Errorf("P3 message should carry no urgency banner:\n%s", calm)
	}
}
