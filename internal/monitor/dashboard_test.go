package monitor

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestNewModel(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	assert.Equal(t, "http://localhost:9090", model.url)
	assert.Equal(t, 5*time.Second, model.interval)
	assert.NotNil(t, model.scraper)
	assert.False(t, model.quitting)
}

func TestModel_Init(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	assert.NotNil(t, model.Init())
}

func TestModel_Update_QuitKey(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	updatedModel, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	m := updatedModel.(Model)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestModel_Update_RefreshKey(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	updatedModel, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})

	m := updatedModel.(Model)
	assert.False(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestModel_Update_TickMsg(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	updatedModel, cmd := model.Update(tickMsg(time.Now()))

	m := updatedModel.(Model)
	assert.False(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestModel_Update_MetricsMsg(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	model := NewModel("http://localhost:9090", 5*time.Second)

	updated, cmd := model.Update(metricsMsg(Snapshot{Total: 10, ScrapedAt: t0}))
	m := updated.(Model)
	assert.Nil(t, cmd)
	assert.True(t, m.hasSnapshot)
	assert.Zero(t, m.rate)
	assert.Empty(t, m.rateHistory)

	updated, _ = m.Update(metricsMsg(Snapshot{Total: 40, ScrapedAt: t0.Add(time.Minute)}))
	m = updated.(Model)
	assert.Equal(t, 30.0, m.rate)
	assert.Equal(t, 30.0, m.ratePeak)
	assert.Equal(t, []float64{30}, m.rateHistory)
	assert.Equal(t, t0.Add(time.Minute), m.lastUpdate)
}

func TestModel_Update_ErrMsgThenRecover(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	updated, cmd := model.Update(errMsg(fmt.Errorf("connection refused")))
	m := updated.(Model)
	assert.Nil(t, cmd)
	assert.Contains(t, m.err.Error(), "connection refused")

	updated, _ = m.Update(metricsMsg(Snapshot{ScrapedAt: time.Now()}))
	assert.Nil(t, updated.(Model).err)
}

func TestAppendToHistory_Bounded(t *testing.T) {
	var h []float64
	for i := 0; i < historySize+5; i++ {
		h = appendToHistory(h, float64(i))
	}
	assert.Len(t, h, historySize)
	assert.Equal(t, float64(5), h[0])
}

func TestModel_View_WithMetrics(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	scraped := time.Date(2024, 1, 1, 12, 34, 56, 0, time.UTC)
	model.current = Snapshot{
		Total:          6,
		ByOperation:    map[string]float64{"create": 4, "delete": 2},
		ByPriority:     map[string]float64{"normal": 6},
		Goroutines:     42,
		ResidentMemory: 25690112,
		StartTime:      scraped.Add(-(2*time.Hour + 15*time.Minute)),
		ScrapedAt:      scraped,
	}
	model.hasSnapshot = true
	model.lastUpdate = scraped
	model.rate = 45.7

	view := model.View()

	assert.Contains(t, view, "reqtrace Monitor")
	assert.Contains(t, view, "12:34:56")
	assert.Contains(t, view, "2h 15m")
	assert.Contains(t, view, "Accepted Requests")
	assert.Contains(t, view, "45.7 req/min")
	assert.Contains(t, view, "create")
	assert.Contains(t, view, "delete")
	assert.Contains(t, view, "24.5 MB")
	assert.Contains(t, view, "42")
	assert.Contains(t, view, "[q]")
	assert.Contains(t, view, "[r]")
}

func TestModel_View_WithError(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	model.err = fmt.Errorf("connection refused")

	view := model.View()

	assert.Contains(t, view, "Cannot reach receiver")
	assert.Contains(t, view, "connection refused")
	assert.Contains(t, view, "http://localhost:9090")
	assert.Contains(t, view, "[q]")
}

func TestModel_View_NoData(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	view := model.View()

	assert.Contains(t, view, "reqtrace Monitor")
	assert.Contains(t, view, "none yet")
	assert.Contains(t, view, "[q]")
}
