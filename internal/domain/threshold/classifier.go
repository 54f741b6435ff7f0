package threshold

import (
	"errors"
	"fmt"

	"github.com/oshokin/telemetry-monitor/internal/domain/telemetry"
)

const (
	// DefaultTemperatureLow is the lower bound of good_temperature.
	DefaultTemperatureLow = 20.0
	// DefaultTemperatureHigh is the upper bound of good_temperature.
	DefaultTemperatureHigh = 26.0
	// DefaultHumidityLow is the lower bound of good_humidity.
	DefaultHumidityLow = 40.0
	// DefaultHumidityHigh is the upper bound of good_humidity.
	DefaultHumidityHigh = 60.0
)

// errInvertedBand is returned when a band's low bound exceeds its high bound.
var errInvertedBand = errors.New("low bound is greater than high bound")

// Band is the inclusive good range for a sensor kind.
type Band struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Validate checks the band bounds are ordered.
func (b Band) Validate() error {
	if b.Low > b.High {
		return fmt.Errorf("%w: %g > %g", errInvertedBand, b.Low, b.High)
	}

	return nil
}

// Bands groups the cut-points for every supported sensor kind.
type Bands struct {
	Temperature Band `yaml:"temperature"`
	Humidity    Band `yaml:"humidity"`
}

// DefaultBands returns the stock cut-points.
func DefaultBands() Bands {
	return Bands{
		Temperature: Band{Low: DefaultTemperatureLow, High: DefaultTemperatureHigh},
		Humidity:    Band{Low: DefaultHumidityLow, High: DefaultHumidityHigh},
	}
}

// Validate checks every band.
func (b Bands) Validate() error {
	if err := b.Temperature.Validate(); err != nil {
		return fmt.Errorf("temperature band: %w", err)
	}

	if err := b.Humidity.Validate(); err != nil {
		return fmt.Errorf("humidity band: %w", err)
	}

	return nil
}

// Classifier maps a reading to its band name. It is stateless and safe for
// concurrent use.
type Classifier struct {
	bands Bands
}

// NewClassifier creates a classifier with the given cut-points.
func NewClassifier(bands Bands) *Classifier {
	return &Classifier{bands: bands}
}

// Classify returns the band name for value. Unknown kinds get an empty type.
func (c *Classifier) Classify(kind telemetry.SensorKind, value float64) telemetry.AlarmType {
	switch kind {
	case telemetry.KindTemperature:
		return pick(c.bands.Temperature, value,
			telemetry.AlarmLowTemperature, telemetry.AlarmGoodTemperature, telemetry.AlarmHighTemperature)
	case telemetry.KindHumidity:
		return pick(c.bands.Humidity, value,
			telemetry.AlarmLowHumidity, telemetry.AlarmGoodHumidity, telemetry.AlarmHighHumidity)
	default:
		return ""
	}
}

func pick(band Band, value float64, low, good, high telemetry.AlarmType) telemetry.AlarmType {
	switch {
	case value < band.Low:
		return low
	case value <= band.High:
		return good
	default:
		return high
	}
}
