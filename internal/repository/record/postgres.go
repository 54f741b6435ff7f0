package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"github.com/relvacode/iso8601"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
)

const (
	// DefaultReadingsTable is the default table for reading records.
	DefaultReadingsTable = "sensor_readings"
	// DefaultAlarmsTable is the default table for alarm records.
	DefaultAlarmsTable = "sensor_alarms"
)

var (
	// ErrInvalidTable is returned for table names that are not plain identifiers.
	ErrInvalidTable = errors.New("invalid table name")

	tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)
)

// ValidateTableName checks that name is a plain SQL identifier.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}

	return nil
}

// PostgresSink writes records into PostgreSQL.
type PostgresSink struct {
	db            *sql.DB
	readingsTable string
	alarmsTable   string
	insertReading string
	insertAlarm   string
}

// NewPostgresSink creates a sink writing to the given tables.
func NewPostgresSink(db *sql.DB, readingsTable, alarmsTable string) (*PostgresSink, error) {
	if err := ValidateTableName(readingsTable); err != nil {
		return nil, err
	}

	if err := ValidateTableName(alarmsTable); err != nil {
		return nil, err
	}

	readings := pq.QuoteIdentifier(readingsTable)
	alarms := pq.QuoteIdentifier(alarmsTable)

	return &PostgresSink{
		db:            db,
		readingsTable: readings,
		alarmsTable:   alarms,
		insertReading: "INSERT INTO " + readings + " (machine_id, sensor_id, value, ts) VALUES ($1,$2,$3,$4)",
		insertAlarm:   "INSERT INTO " + alarms + " (machine_id, alarm_type, ts) VALUES ($1,$2,$3)",
	}, nil
}

// Name identifies the sink in logs and metrics.
func (p *PostgresSink) Name() string { return "postgres" }

// EnsureSchema creates both tables when they do not exist.
func (p *PostgresSink) EnsureSchema(ctx context.Context) error {
	statements := []string{
		"CREATE TABLE IF NOT EXISTS " + p.readingsTable + ` (
	id BIGSERIAL PRIMARY KEY,
	machine_id TEXT NOT NULL,
	sensor_id TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		"CREATE TABLE IF NOT EXISTS " + p.alarmsTable + ` (
	id BIGSERIAL PRIMARY KEY,
	machine_id TEXT NOT NULL,
	alarm_type TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}

// WriteReading inserts one reading record.
func (p *PostgresSink) WriteReading(ctx context.Context, reading telemetry.Reading) error {
	ts, err := iso8601.ParseString(reading.Timestamp)
	if err != nil {
		return fmt.Errorf("parse reading timestamp %q: %w", reading.Timestamp, err)
	}

	if _, err = p.db.ExecContext(ctx, p.insertReading,
		reading.MachineID,
		reading.SensorID,
		reading.Value,
		ts,
	); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}

	return nil
}

// WriteAlarm inserts one alarm record.
func (p *PostgresSink) WriteAlarm(ctx context.Context, alarm telemetry.AlarmEvent) error {
	ts, err := iso8601.ParseString(alarm.Timestamp)
	if err != nil {
		return fmt.Errorf("parse alarm timestamp %q: %w", alarm.Timestamp, err)
	}

	if _, err = p.db.ExecContext(ctx, p.insertAlarm,
		alarm.MachineID,
		string(alarm.Type),
		ts,
	); err != nil {
		return fmt.Errorf("insert alarm: %w", err)
	}

	return nil
}

var _ Sink = (*PostgresSink)(nil)
