package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// errUnexpectedStatus is returned for non-200 weather API responses.
var errUnexpectedStatus = errors.New("unexpected weather api status")

// errMissingMain is returned when the response lacks temperature or humidity.
var errMissingMain = errors.New("weather response lacks main.temp or main.humidity")

// Weather is the part of the current-weather response the collector uses.
type Weather struct {
	Temperature float64
	Humidity    float64
}

// weatherResponse mirrors the OpenWeatherMap current weather body.
type weatherResponse struct {
	Main struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
}

// WeatherClient fetches the current weather for one city.
type WeatherClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	city       string
	units      string
}

// NewWeatherClient creates a client for endpoint.
func NewWeatherClient(httpClient *http.Client, endpoint, apiKey, city, units string) *WeatherClient {
	return &WeatherClient{
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     apiKey,
		city:       city,
		units:      units,
	}
}

// Current returns the current temperature and humidity.
func (c *WeatherClient) Current(ctx context.Context) (Weather, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return Weather{}, fmt.Errorf("parse weather endpoint: %w", err)
	}

	query := u.Query()
	query.Set("q", c.city)
	query.Set("units", c.units)

	if c.apiKey != "" {
		query.Set("appid", c.apiKey)
	}

	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Weather{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Weather{}, fmt.Errorf("http get: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return Weather{}, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	var body weatherResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Weather{}, fmt.Errorf("decode weather: %w", err)
	}

	if body.Main.Temp == nil || body.Main.Humidity == nil {
		return Weather{}, errMissingMain
	}

	return Weather{
		Temperature: *body.Main.Temp,
		Humidity:    *body.Main.Humidity,
	}, nil
}
