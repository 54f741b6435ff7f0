package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "telemetry"

// Metric names as they appear on the endpoint.
const (
	MessagesReceivedName    = Namespace + "_messages_received_total"
	MessagesIgnoredName     = Namespace + "_messages_ignored_total"
	DecodeFailuresName      = Namespace + "_decode_failures_total"
	ReadingsPersistedName   = Namespace + "_readings_persisted_total"
	AlarmsEmittedName       = Namespace + "_alarms_emitted_total"
	PersistenceFailuresName = Namespace + "_persistence_failures_total"
	TrackedSensorsName      = Namespace + "_tracked_sensors"
	SweepTicksName          = Namespace + "_sweep_ticks_total"
	PersistLatencyName      = Namespace + "_persist_latency_seconds"
	RegistrationsName       = Namespace + "_registrations_total"
)

// Record labels used for persistence failures and latency.
const (
	RecordReading = "reading"
	RecordAlarm   = "alarm"
)

// Recorder owns the processor collectors and the registry they live in.
type Recorder struct {
	registry *prometheus.Registry

	messagesReceived    *prometheus.CounterVec
	messagesIgnored     prometheus.Counter
	decodeFailures      prometheus.Counter
	readingsPersisted   prometheus.Counter
	alarmsEmitted       *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	trackedSensors      prometheus.Gauge
	sweepTicks          prometheus.Counter
	persistLatency      *prometheus.HistogramVec
	registrations       prometheus.Counter
}

// NewRecorder creates a recorder on a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MessagesReceivedName,
			Help: "Sensor messages routed to a known sensor kind.",
		}, []string{"kind"}),
		messagesIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MessagesIgnoredName,
			Help: "Messages whose topic names no known sensor kind.",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: DecodeFailuresName,
			Help: "Messages dropped because the payload could not be decoded.",
		}),
		readingsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: ReadingsPersistedName,
			Help: "Reading records accepted by the sink.",
		}),
		alarmsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: AlarmsEmittedName,
			Help: "Alarm events accepted by the sink.",
		}, []string{"alarm_type"}),
		persistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: PersistenceFailuresName,
			Help: "Records the sink failed to store.",
		}, []string{"record"}),
		trackedSensors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: TrackedSensorsName,
			Help: "Sensors currently held in the state store.",
		}),
		sweepTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: SweepTicksName,
			Help: "Inactivity sweep ticks performed.",
		}),
		persistLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    PersistLatencyName,
			Help:    "Time spent in a single sink write.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"record"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: RegistrationsName,
			Help: "Machine manifests received on the registration topic.",
		}),
	}

	r.registry.MustRegister(
		r.messagesReceived,
		r.messagesIgnored,
		r.decodeFailures,
		r.readingsPersisted,
		r.alarmsEmitted,
		r.persistenceFailures,
		r.trackedSensors,
		r.sweepTicks,
		r.persistLatency,
		r.registrations,
	)

	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// MessageReceived counts a routed sensor message.
func (r *Recorder) MessageReceived(kind string) {
	r.messagesReceived.WithLabelValues(kind).Inc()
}

// MessageIgnored counts a message with an unroutable topic.
func (r *Recorder) MessageIgnored() {
	r.messagesIgnored.Inc()
}

// DecodeFailed counts a dropped payload.
func (r *Recorder) DecodeFailed() {
	r.decodeFailures.Inc()
}

// RegistrationReceived counts a machine manifest.
func (r *Recorder) RegistrationReceived() {
	r.registrations.Inc()
}

// ReadingPersisted counts a stored reading.
func (r *Recorder) ReadingPersisted() {
	r.readingsPersisted.Inc()
}

// AlarmEmitted counts a stored alarm event.
func (r *Recorder) AlarmEmitted(alarmType string) {
	r.alarmsEmitted.WithLabelValues(alarmType).Inc()
}

// PersistenceFailed counts a failed sink write.
func (r *Recorder) PersistenceFailed(record string) {
	r.persistenceFailures.WithLabelValues(record).Inc()
}

// ObservePersist records the duration of a sink write.
func (r *Recorder) ObservePersist(record string, elapsed time.Duration) {
	r.persistLatency.WithLabelValues(record).Observe(elapsed.Seconds())
}

// SetTrackedSensors updates the state store size.
func (r *Recorder) SetTrackedSensors(count int) {
	r.trackedSensors.Set(float64(count))
}

// SweepTicked counts an inactivity sweep.
func (r *Recorder) SweepTicked() {
	r.sweepTicks.Inc()
}
