package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultBaseURL = "https://api.openweathermap.org"

type owmCurrent struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
}

// OWMClient reads the current air temperature from OpenWeatherMap.
type OWMClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retries uint64
}

func NewOWMClient(key string) *OWMClient {
	return &OWMClient{
		apiKey:  key,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		retries: 2,
	}
}

// WithBaseURL points the client at another host, e.g. a local mock.
func (c *OWMClient) WithBaseURL(u string) *OWMClient {
	c.baseURL = strings.TrimRight(strings.TrimSpace(u), "/")
	return c
}

// CurrentTemperature returns the temperature in °C at lat/lon. Transport errors and 5xx
// answers are retried with exponential backoff; 4xx answers are not.
func (c *OWMClient) CurrentTemperature(ctx context.Context, lat, lon float64) (float64, error) {
	if c.apiKey == "" {
		return 0, fmt.Errorf("missing api key")
	}
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)
	endpoint := c.baseURL + "/data/2.5/weather?" + q.Encode()

	var out owmCurrent
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			err := fmt.Errorf("owm status %d: %s", resp.StatusCode, string(b))
			if resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("owm decode: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, c.retries), ctx)); err != nil {
		return 0, err
	}
	return out.Main.Temp, nil
}

// TemperatureSource is anything that can report an outside temperature.
type TemperatureSource interface {
	CurrentTemperature(ctx context.Context, lat, lon float64) (float64, error)
}

// Feed polls a TemperatureSource and pushes every reading into the simulation.
type Feed struct {
	source   TemperatureSource
	set      func(float64)
	lat, lon float64
	interval time.Duration
}

func NewFeed(source TemperatureSource, set func(float64), lat, lon float64, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Feed{source: source, set: set, lat: lat, lon: lon, interval: interval}
}

// Poll fetches once and applies the reading.
func (f *Feed) Poll(ctx context.Context) error {
	t, err := f.source.CurrentTemperature(ctx, f.lat, f.lon)
	if err != nil {
		return err
	}
	f.set(t)
	log.Printf("weather: temperature set to %.1f°C", t)
	return nil
}

// Run polls immediately and then every interval until ctx is cancelled. A failed poll
// keeps the previous temperature.
func (f *Feed) Run(ctx context.Context) {
	if err := f.Poll(ctx); err != nil {
		log.Printf("weather: poll failed: %v", err)
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.Poll(ctx); err != nil {
				log.Printf("weather: poll failed: %v", err)
			}
		}
	}
}
