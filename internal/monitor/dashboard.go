// Package monitor is a terminal dashboard for a running receiver.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
)

// Model represents the BubbleTea dashboard model
type Model struct {
	url        string
	interval   time.Duration
	scraper    *Scraper
	lastUpdate time.Time
	err        error
	quitting   bool

	current     Snapshot
	hasSnapshot bool
	rate        float64
	ratePeak    float64
	rateHistory []float64

	loadProgress progress.Model
}

// Lipgloss styles
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard polling the receiver at url every interval.
func NewModel(url string, interval time.Duration) Model {
	return Model{
		url:      url,
		interval: interval,
		scraper:  NewScraper(url),
		ratePeak: 1.0, // keeps the load bar finite before the first request
		loadProgress: progress.New(
			progress.WithGradient("#00ffff", "#ff00ff"),
			progress.WithWidth(40),
		),
		rateHistory: make([]float64, 0, historySize),
	}
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}

	return sparklineStyle.Render(spark.View())
}

type tickMsg time.Time
type metricsMsg Snapshot
type errMsg error

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchMetrics(m.scraper),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchMetrics(s *Scraper) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		snap, err := s.Scrape(ctx)
		if err != nil {
			return errMsg(err)
		}
		return metricsMsg(snap)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchMetrics(m.scraper)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchMetrics(m.scraper),
		)

	case metricsMsg:
		snap := Snapshot(msg)
		if m.hasSnapshot {
			m.rate = RatePerMinute(m.current, snap)
			m.rateHistory = appendToHistory(m.rateHistory, m.rate)
			if m.rate > m.ratePeak {
				m.ratePeak = m.rate
			}
		}
		m.current = snap
		m.hasSnapshot = true
		m.lastUpdate = snap.ScrapedAt
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render(" reqtrace Monitor ")

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(errorStyle.Render("⚠ Cannot reach receiver") + "\n\n")
	b.WriteString(dimStyle.Render("URL: ") + valueStyle.Render(m.url) + "\n")
	b.WriteString(dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n\n")
	b.WriteString(dimStyle.Render("Start one with: reqtrace serve") + "\n")
	b.WriteString(m.footer())

	return containerStyle.Render(header + "\n" + b.String())
}

func (m Model) renderDashboard() string {
	var b strings.Builder

	lastUpdate := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdate = m.lastUpdate.Format("3:04:05 PM")
	}
	uptime := "-"
	if !m.current.StartTime.IsZero() {
		uptime = FormatDuration(m.lastUpdate.Sub(m.current.StartTime))
	}

	b.WriteString(headerStyle.Render(" reqtrace Monitor ") + "\n")
	b.WriteString(fmt.Sprintf("%s   %s %s   %s\n",
		healthyStyle.Render("✓ UP"),
		dimStyle.Render("Uptime:"),
		valueStyle.Render(uptime),
		dimStyle.Render(lastUpdate)))

	b.WriteString("\n" + sectionStyle.Render("┃ Accepted Requests") + "\n")
	b.WriteString(labelStyle.Render("  Total: ") +
		valueStyle.Render(fmt.Sprintf("%.0f", m.current.Total)) + "\n")
	b.WriteString(labelStyle.Render("  Rate: ") +
		valueStyle.Render(FormatRate(m.rate)) +
		"   " + createSparkline(m.rateHistory) + "\n")

	load := 0.0
	if m.ratePeak > 0 {
		load = min(m.rate/m.ratePeak, 1.0)
	}
	b.WriteString(labelStyle.Render("  Load: ") +
		m.loadProgress.ViewAs(load) +
		" " + dimStyle.Render(FormatPercentage(load)) + "\n")

	b.WriteString("\n" + sectionStyle.Render("┃ By Operation") + "\n")
	b.WriteString(breakdown(m.current.ByOperation))
	b.WriteString("\n" + sectionStyle.Render("┃ By Priority") + "\n")
	b.WriteString(breakdown(m.current.ByPriority))

	b.WriteString("\n" + sectionStyle.Render("┃ System") + "\n")
	b.WriteString(labelStyle.Render("  Memory: ") +
		valueStyle.Render(FormatMemory(m.current.ResidentMemory)) + "\n")
	b.WriteString(labelStyle.Render("  Goroutines: ") +
		valueStyle.Render(fmt.Sprintf("%d", m.current.Goroutines)) + "\n")

	b.WriteString(m.footer())
	return containerStyle.Render(b.String())
}

func breakdown(counts map[string]float64) string {
	if len(counts) == 0 {
		return dimStyle.Render("  none yet") + "\n"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  %-8s ", k)) +
			valueStyle.Render(fmt.Sprintf("%.0f", counts[k])) + "\n")
	}
	return b.String()
}

func (m Model) footer() string {
	return "\n" + footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
}
