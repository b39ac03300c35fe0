// Package config loads the simulator configuration: embedded defaults, an optional YAML
// scenario file, then environment overrides.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/farmsim/internal/simulation"
	"github.com/LeonardoBeccarini/farmsim/pkg/rabbitmq"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Scenario simulation.Layout `yaml:"scenario"`
	Clock    ClockConfig       `yaml:"clock"`
	HTTP     HTTPConfig        `yaml:"http"`
	GRPC     GRPCConfig        `yaml:"grpc"`
	MQTT     MQTTConfig        `yaml:"mqtt"`
	Influx   InfluxConfig      `yaml:"influx"`
	CSV      CSVConfig         `yaml:"csv"`
	Weather  WeatherConfig     `yaml:"weather"`
}

type ClockConfig struct {
	TickInterval    time.Duration `yaml:"tick_interval"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	HistorySize     int           `yaml:"history_size"`
	Autostart       bool          `yaml:"autostart"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type GRPCConfig struct {
	Port int `yaml:"port"`
}

type MQTTConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	ClientID      string        `yaml:"client_id"`
	CommandTopics []string      `yaml:"command_topics"`
	StatsTopic    string        `yaml:"stats_topic"`
	DedupTTL      time.Duration `yaml:"dedup_ttl"`
}

// Broker converts the section into the connection settings of pkg/rabbitmq.
func (m MQTTConfig) Broker() *rabbitmq.RabbitMQConfig {
	return &rabbitmq.RabbitMQConfig{
		Host:     m.Host,
		Port:     m.Port,
		User:     m.User,
		Password: m.Password,
		ClientID: m.ClientID,
	}
}

type InfluxConfig struct {
	Enabled         bool          `yaml:"enabled"`
	URL             string        `yaml:"url"`
	Token           string        `yaml:"token"`
	Org             string        `yaml:"org"`
	Bucket          string        `yaml:"bucket"`
	Measurement     string        `yaml:"measurement"`
	Timeout         time.Duration `yaml:"timeout"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerOpen     time.Duration `yaml:"breaker_open"`
	BreakerInterval time.Duration `yaml:"breaker_interval"`
}

type CSVConfig struct {
	Path string `yaml:"path"`
}

type WeatherConfig struct {
	Enabled  bool          `yaml:"enabled"`
	APIKey   string        `yaml:"api_key"`
	Lat      float64       `yaml:"lat"`
	Lon      float64       `yaml:"lon"`
	Interval time.Duration `yaml:"interval"`
}

// Load reads the embedded defaults, merges the YAML file at path (if any) over them and
// applies environment overrides. The scenario is validated before returning.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Scenario.Temperature = envFloat("SIM_TEMPERATURE", c.Scenario.Temperature)

	c.Clock.TickInterval = envDuration("SIM_TICK_INTERVAL", c.Clock.TickInterval)
	c.Clock.InitialDelay = envDuration("SIM_INITIAL_DELAY", c.Clock.InitialDelay)
	c.Clock.RefreshInterval = envDuration("SIM_REFRESH_INTERVAL", c.Clock.RefreshInterval)
	c.Clock.HistorySize = envInt("SIM_HISTORY_SIZE", c.Clock.HistorySize)
	c.Clock.Autostart = envBool("SIM_AUTOSTART", c.Clock.Autostart)

	c.HTTP.Port = envInt("HTTP_PORT", c.HTTP.Port)
	c.GRPC.Port = envInt("GRPC_PORT", c.GRPC.Port)

	c.MQTT.Enabled = envBool("MQTT_ENABLED", c.MQTT.Enabled)
	c.MQTT.Host = envStr("RABBITMQ_HOST", c.MQTT.Host)
	c.MQTT.Port = envInt("RABBITMQ_PORT", c.MQTT.Port)
	c.MQTT.User = envStr("RABBITMQ_USER", c.MQTT.User)
	c.MQTT.Password = envStr("RABBITMQ_PASSWORD", c.MQTT.Password)
	c.MQTT.ClientID = envStr("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.CommandTopics = envList("SIM_COMMAND_TOPICS", c.MQTT.CommandTopics)
	c.MQTT.StatsTopic = envStr("SIM_STATS_TOPIC", c.MQTT.StatsTopic)

	c.Influx.Enabled = envBool("INFLUX_ENABLED", c.Influx.Enabled)
	c.Influx.URL = envStr("INFLUX_URL", c.Influx.URL)
	c.Influx.Token = envStr("INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Org = envStr("INFLUX_ORG", c.Influx.Org)
	c.Influx.Bucket = envStr("INFLUX_BUCKET", c.Influx.Bucket)
	c.Influx.Measurement = envStr("MEASUREMENT", c.Influx.Measurement)

	c.CSV.Path = envStr("SIM_CSV_PATH", c.CSV.Path)

	c.Weather.Enabled = envBool("WEATHER_ENABLED", c.Weather.Enabled)
	c.Weather.APIKey = envStr("OWM_API_KEY", c.Weather.APIKey)
	c.Weather.Lat = envFloat("WEATHER_LAT", c.Weather.Lat)
	c.Weather.Lon = envFloat("WEATHER_LON", c.Weather.Lon)
	c.Weather.Interval = envDuration("WEATHER_INTERVAL", c.Weather.Interval)
}

// EngineConfig is the clock section in the form the simulation engine takes.
func (c *Config) EngineConfig() simulation.EngineConfig {
	return simulation.EngineConfig{
		TickInterval:    c.Clock.TickInterval,
		InitialDelay:    c.Clock.InitialDelay,
		RefreshInterval: c.Clock.RefreshInterval,
	}
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// envDuration accepts Go durations ("250ms") or plain milliseconds ("250").
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	return def
}

func envList(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
