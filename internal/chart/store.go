// Package chart holds client-side chart and page state: the active chart,
// transit date, element selection, and display layers. The companion's tool
// dispatcher mutates this store through its methods; it never touches fields
// directly.
package chart

import (
	"log/slog"
	"sync"
	"time"

	"github.com/selene-app/selene/internal/domain"
)

// Store is the mutable application state the companion reads and mutates.
// All access goes through the methods; both the reactive watcher list and the
// imperative Snapshot read are facets of this one handle.
type Store struct {
	mu sync.RWMutex

	page        string
	activeChart *domain.Chart
	transitDate time.Time
	selected    string
	layers      map[string]bool
	prefs       domain.Preferences

	watchers []func()
}

// NewStore creates a store with defaults: natal page, today's transit date,
// aspect and house layers enabled.
func NewStore() *Store {
	return &Store{
		page:        "natal",
		transitDate: time.Now(),
		layers: map[string]bool{
			"aspects": true,
			"houses":  true,
		},
	}
}

// Watch registers a callback invoked after every mutation. Callbacks run
// outside the store lock.
func (s *Store) Watch(fn func()) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	watchers := make([]func(), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.RUnlock()
	for _, fn := range watchers {
		fn()
	}
}

// SetPage records the current page.
func (s *Store) SetPage(page string) {
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	s.notify()
}

// Page returns the current page.
func (s *Store) Page() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// SetActiveChart replaces the active chart.
func (s *Store) SetActiveChart(chart *domain.Chart) {
	s.mu.Lock()
	s.activeChart = chart
	s.selected = ""
	s.mu.Unlock()
	s.notify()
	if chart != nil {
		slog.Debug("Active chart changed", "chart_id", chart.ID, "name", chart.Name)
	}
}

// ActiveChart returns the active chart, or nil if none is loaded.
func (s *Store) ActiveChart() *domain.Chart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeChart
}

// SetTransitDate moves the transit view to a new date.
func (s *Store) SetTransitDate(date time.Time) {
	s.mu.Lock()
	s.transitDate = date
	s.mu.Unlock()
	s.notify()
}

// TransitDate returns the current transit date.
func (s *Store) TransitDate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transitDate
}

// SelectElement records the selected chart element (a planet, house, or
// aspect key). An empty name clears the selection.
func (s *Store) SelectElement(name string) {
	s.mu.Lock()
	s.selected = name
	s.mu.Unlock()
	s.notify()
}

// SelectedElement returns the selected chart element.
func (s *Store) SelectedElement() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// ToggleLayer flips a display layer and returns its new state.
func (s *Store) ToggleLayer(name string) bool {
	s.mu.Lock()
	s.layers[name] = !s.layers[name]
	enabled := s.layers[name]
	s.mu.Unlock()
	s.notify()
	return enabled
}

// LayerEnabled reports whether a display layer is on.
func (s *Store) LayerEnabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layers[name]
}

// SetPreferences replaces the interpretive preferences.
func (s *Store) SetPreferences(prefs domain.Preferences) {
	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()
	s.notify()
}

// Snapshot assembles the read-only context projection attached to an
// outgoing chat message. It is built fresh on every call and never persisted.
func (s *Store) Snapshot() (domain.AppContext, domain.ChartContext, domain.Preferences) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app := domain.AppContext{
		Page:        s.page,
		TransitDate: s.transitDate,
	}
	var chartCtx domain.ChartContext
	if s.activeChart != nil {
		app.ActiveChartID = s.activeChart.ID
		chartCtx = domain.ChartContext{
			ChartID: s.activeChart.ID,
			Zodiac:  s.activeChart.Zodiac,
			Houses:  s.activeChart.Houses,
			Planets: s.activeChart.Planets,
			Cusps:   s.activeChart.Cusps,
			Aspects: s.activeChart.Aspects,
		}
	}
	return app, chartCtx, s.prefs
}
