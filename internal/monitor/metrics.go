package monitor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// Metric families read from the receiver's /metrics endpoint.
const (
	MetricReceived       = "reqtrace_receiver_requests_total"
	MetricGoroutines     = "go_goroutines"
	MetricResidentMemory = "process_resident_memory_bytes"
	MetricStartTime      = "process_start_time_seconds"
)

// Snapshot is one scrape of the receiver.
type Snapshot struct {
	Total       float64
	ByOperation map[string]float64
	ByPriority  map[string]float64

	Goroutines     int
	ResidentMemory uint64
	StartTime      time.Time

	ScrapedAt time.Time
}

// Scraper reads the receiver's Prometheus endpoint.
type Scraper struct {
	baseURL string
	client  *resty.Client
	now     func() time.Time
}

// NewScraper creates a scraper for the receiver at baseURL.
func NewScraper(baseURL string) *Scraper {
	return &Scraper{
		baseURL: baseURL,
		client:  resty.New().SetBaseURL(baseURL).SetTimeout(2 * time.Second),
		now:     time.Now,
	}
}

// Scrape fetches and parses /metrics.
func (s *Scraper) Scrape(ctx context.Context) (Snapshot, error) {
	resp, err := s.client.R().SetContext(ctx).Get("/metrics")
	if err != nil {
		return Snapshot{}, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Snapshot{}, fmt.Errorf("unexpected status code %d", resp.StatusCode())
	}
	return parseSnapshot(bytes.NewReader(resp.Body()), s.now())
}

func parseSnapshot(r io.Reader, now time.Time) (Snapshot, error) {
	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse metrics: %w", err)
	}

	snap := Snapshot{
		ByOperation: map[string]float64{},
		ByPriority:  map[string]float64{},
		ScrapedAt:   now,
	}

	if mf, ok := families[MetricReceived]; ok {
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue()
			snap.Total += v
			snap.ByOperation[label(m, "operation")] += v
			snap.ByPriority[label(m, "priority")] += v
		}
	}
	if v, ok := gauge(families, MetricGoroutines); ok {
		snap.Goroutines = int(v)
	}
	if v, ok := gauge(families, MetricResidentMemory); ok {
		snap.ResidentMemory = uint64(v)
	}
	if v, ok := gauge(families, MetricStartTime); ok && v > 0 {
		sec, frac := math.Modf(v)
		snap.StartTime = time.Unix(int64(sec), int64(frac*1e9))
	}

	return snap, nil
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func gauge(families map[string]*dto.MetricFamily, name string) (float64, bool) {
	mf, ok := families[name]
	if !ok || len(mf.GetMetric()) == 0 {
		return 0, false
	}
	return mf.GetMetric()[0].GetGauge().GetValue(), true
}

// RatePerMinute is the accepted-request rate between two scrapes. A counter
// reset yields zero.
func RatePerMinute(prev, cur Snapshot) float64 {
	elapsed := cur.ScrapedAt.Sub(prev.ScrapedAt).Minutes()
	if elapsed <= 0 || cur.Total < prev.Total {
		return 0
	}
	return (cur.Total - prev.Total) / elapsed
}
