package stats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/oshokin/telemetry-monitor/internal/metrics"
)

// errUnexpectedStatus is returned for non-200 scrape responses.
var errUnexpectedStatus = errors.New("unexpected status")

// Snapshot is one scrape of the processor counters.
type Snapshot struct {
	ScrapedAt           time.Time
	MessagesReceived    float64
	MessagesIgnored     float64
	DecodeFailures      float64
	Registrations       float64
	ReadingsPersisted   float64
	PersistenceFailures float64
	TrackedSensors      float64
	SweepTicks          float64
	// AlarmsByType holds alarm counts keyed by alarm type.
	AlarmsByType map[string]float64
}

// AlarmTypes returns the alarm types in the snapshot, sorted.
func (s *Snapshot) AlarmTypes() []string {
	types := make([]string, 0, len(s.AlarmsByType))
	for alarmType := range s.AlarmsByType {
		types = append(types, alarmType)
	}

	sort.Strings(types)

	return types
}

// Fetch scrapes url and builds a snapshot.
func Fetch(ctx context.Context, client *http.Client, url string) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %d", errUnexpectedStatus, resp.StatusCode)
	}

	families, err := parseMetrics(resp.Body)
	if err != nil {
		return nil, err
	}

	return newSnapshot(families), nil
}

// parseMetrics decodes a Prometheus text exposition. A partial result is still a success.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser

	families, err := parser.TextToMetricFamilies(r)
	if err != nil && len(families) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}

	return families, nil
}

func newSnapshot(families map[string]*dto.MetricFamily) *Snapshot {
	return &Snapshot{
		ScrapedAt:           time.Now().UTC(),
		MessagesReceived:    sumFamily(families[metrics.MessagesReceivedName]),
		MessagesIgnored:     sumFamily(families[metrics.MessagesIgnoredName]),
		DecodeFailures:      sumFamily(families[metrics.DecodeFailuresName]),
		Registrations:       sumFamily(families[metrics.RegistrationsName]),
		ReadingsPersisted:   sumFamily(families[metrics.ReadingsPersistedName]),
		PersistenceFailures: sumFamily(families[metrics.PersistenceFailuresName]),
		TrackedSensors:      sumFamily(families[metrics.TrackedSensorsName]),
		SweepTicks:          sumFamily(families[metrics.SweepTicksName]),
		AlarmsByType:        byLabel(families[metrics.AlarmsEmittedName], "alarm_type"),
	}
}

// sumFamily adds up all counter, gauge or untyped values. A missing family is zero.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}

	var total float64

	for _, m := range mf.GetMetric() {
		total += value(m)
	}

	return total
}

// byLabel groups the family values by one label.
func byLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	result := make(map[string]float64)
	if mf == nil {
		return result
	}

	for _, m := range mf.GetMetric() {
		for _, pair := range m.GetLabel() {
			if pair.GetName() == label {
				result[pair.GetValue()] += value(m)
			}
		}
	}

	return result
}

func value(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetUntyped() != nil:
		return m.GetUntyped().GetValue()
	default:
		return 0
	}
}
