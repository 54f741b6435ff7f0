package stats

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/oshokin/telemetry-monitor/internal/logger"
)

const (
	// DefaultURL is the metrics endpoint of a local processor.
	DefaultURL = "http://127.0.0.1:9100/metrics"
	// DefaultInterval is the refresh period in watch mode.
	DefaultInterval = 5 * time.Second

	requestTimeout = 5 * time.Second
)

// Options controls the stats viewer.
type Options struct {
	// URL is the metrics endpoint to scrape.
	URL string
	// Interval is the refresh period; ignored with Once.
	Interval time.Duration
	// Once prints a single snapshot and exits.
	Once bool
	// Out receives the rendered snapshots; nil means stdout.
	Out io.Writer
}

// Run prints snapshots until ctx is canceled, or once.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "stats")

	url := opts.URL
	if url == "" {
		url = DefaultURL
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	client := &http.Client{Timeout: requestTimeout}

	if opts.Once {
		snapshot, err := Fetch(ctx, client, url)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}

		return Render(out, snapshot)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snapshot, err := Fetch(ctx, client, url)
		if err != nil {
			logger.WarnKV(ctx, "Scrape failed", "url", url, "error", err)
		} else if err = Render(out, snapshot); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Render writes a snapshot as an aligned table.
func Render(out io.Writer, s *Snapshot) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	rows := []struct {
		name  string
		value float64
	}{
		{"messages received", s.MessagesReceived},
		{"messages ignored", s.MessagesIgnored},
		{"decode failures", s.DecodeFailures},
		{"registrations", s.Registrations},
		{"readings persisted", s.ReadingsPersisted},
		{"persistence failures", s.PersistenceFailures},
		{"tracked sensors", s.TrackedSensors},
		{"sweep ticks", s.SweepTicks},
	}

	_, _ = fmt.Fprintf(w, "scraped at\t%s\n", s.ScrapedAt.Format(time.RFC3339))

	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%.0f\n", row.name, row.value)
	}

	for _, alarmType := range s.AlarmTypes() {
		_, _ = fmt.Fprintf(w, "alarms %s\t%.0f\n", alarmType, s.AlarmsByType[alarmType])
	}

	_, _ = fmt.Fprintln(w)

	if err := w.Flush(); err != nil {
		return fmt.Errorf("render snapshot: %w", err)
	}

	return nil
}
