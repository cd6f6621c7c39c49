package chart

import (
	"testing"
	"time"

	"github.com/selene-app/selene/internal/domain"
)

func testChart() *domain.Chart {
	return &domain.Chart{
		ID:     "chart-1",
		Name:   "Ada",
		Zodiac: domain.ZodiacTropical,
		Houses: domain.HousesPlacidus,
		Planets: []domain.PlanetPosition{
			{Name: "Sun", Sign: "Gemini", Degree: 12.5, House: 10},
			{Name: "Moon", Sign: "Pisces", Degree: 3.2, House: 7},
		},
		Aspects: []domain.Aspect{
			{First: "Sun", Second: "Moon", Type: "square", Orb: 1.1},
		},
	}
}

func TestStore_SnapshotReflectsActiveChart(t *testing.T) {
	s := NewStore()
	s.SetActiveChart(testChart())
	s.SetPage("transits")

	app, chartCtx, _ := s.Snapshot()

	if app.Page != "transits" {
		t.Errorf("Expected page transits, got %q", app.Page)
	}
	if app.ActiveChartID != "chart-1" {
		t.Errorf("Expected active chart chart-1, got %q", app.ActiveChartID)
	}
	if len(chartCtx.Planets) != 2 || len(chartCtx.Aspects) != 1 {
		t.Errorf("Expected chart context to carry planets and aspects, got %+v", chartCtx)
	}
}

func TestStore_SnapshotWithoutChart(t *testing.T) {
	s := NewStore()

	app, chartCtx, _ := s.Snapshot()

	if app.ActiveChartID != "" {
		t.Errorf("Expected empty active chart id, got %q", app.ActiveChartID)
	}
	if chartCtx.ChartID != "" || chartCtx.Planets != nil {
		t.Errorf("Expected empty chart context, got %+v", chartCtx)
	}
}

func TestStore_SelectionClearedOnNewChart(t *testing.T) {
	s := NewStore()
	s.SetActiveChart(testChart())
	s.SelectElement("Moon")

	s.SetActiveChart(&domain.Chart{ID: "chart-2"})

	if got := s.SelectedElement(); got != "" {
		t.Errorf("Expected selection cleared on chart change, got %q", got)
	}
}

func TestStore_ToggleLayer(t *testing.T) {
	s := NewStore()

	if !s.LayerEnabled("aspects") {
		t.Fatal("Expected aspects layer enabled by default")
	}
	if enabled := s.ToggleLayer("aspects"); enabled {
		t.Error("Expected toggle to disable aspects layer")
	}
	if enabled := s.ToggleLayer("asteroids"); !enabled {
		t.Error("Expected toggle to enable an unknown layer")
	}
}

func TestStore_WatchersNotified(t *testing.T) {
	s := NewStore()

	notified := 0
	s.Watch(func() { notified++ })

	s.SetTransitDate(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC))
	s.SetPage("journal")

	if notified != 2 {
		t.Errorf("Expected 2 notifications, got %d", notified)
	}
}
