// Package config loads the controller configuration.
//
// Values come from, in order of precedence: command-line flags (applied by
// the caller), environment variables, the YAML file, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/irrigation-controller/internal/gpio"
	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/mqtt"
	"github.com/sweeney/irrigation-controller/internal/telemetry"
)

// Environment overrides.
const (
	EnvBroker        = "IRRIGATION_MQTT_BROKER"
	EnvUsername      = "IRRIGATION_MQTT_USERNAME"
	EnvPassword      = "IRRIGATION_MQTT_PASSWORD"
	EnvInfluxDBToken = "IRRIGATION_INFLUXDB_TOKEN"
)

// Config is the root configuration.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Sequencer SequencerConfig `yaml:"sequencer"`
	HTTP      HTTPConfig      `yaml:"http"`
	Heartbeat time.Duration   `yaml:"heartbeat"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
}

// MQTTConfig contains broker connection settings.
type MQTTConfig struct {
	Broker        string        `yaml:"broker"`
	ClientID      string        `yaml:"client_id"`
	RandomSuffix  bool          `yaml:"random_client_suffix"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	TopicPrefix   string        `yaml:"topic_prefix"`
	QoS           int           `yaml:"qos"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	OutboxSize    int           `yaml:"outbox_size"`
}

// GPIOConfig contains output line settings (BCM numbering).
type GPIOConfig struct {
	Chip         string `yaml:"chip"`
	PumpPin      int    `yaml:"pump_pin"`
	Solenoid1Pin int    `yaml:"solenoid_1_pin"`
	Solenoid2Pin int    `yaml:"solenoid_2_pin"`
}

// SequencerConfig contains the power-on durations and tick cadence.
// Durations changed over MQTT are not written back.
type SequencerConfig struct {
	Poll              time.Duration `yaml:"poll"`
	PumpDelay         int           `yaml:"pump_delay"`
	Solenoid1Duration int           `yaml:"solenoid_1_duration"`
	Solenoid2Duration int           `yaml:"solenoid_2_duration"`
	Match             string        `yaml:"match"`
}

// HTTPConfig contains status server settings. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// InfluxDBConfig contains stage telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker:        "tcp://192.168.1.101:1883",
			ClientID:      "irrigation-controller",
			RandomSuffix:  true,
			TopicPrefix:   mqtt.DefaultTopicPrefix,
			QoS:           0,
			RetryInterval: 5 * time.Second,
			OutboxSize:    64,
		},
		GPIO: GPIOConfig{
			Chip:         gpio.DefaultChip,
			PumpPin:      gpio.DefaultPinPump,
			Solenoid1Pin: gpio.DefaultPinSolenoid1,
			Solenoid2Pin: gpio.DefaultPinSolenoid2,
		},
		Sequencer: SequencerConfig{
			Poll:              100 * time.Millisecond,
			PumpDelay:         logic.DefaultPumpDelay,
			Solenoid1Duration: logic.DefaultSolenoid1Duration,
			Solenoid2Duration: logic.DefaultSolenoid2Duration,
			Match:             string(logic.MatchExact),
		},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Heartbeat: 15 * time.Minute,
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "home",
			Bucket:        "irrigation",
			BatchSize:     20,
			FlushInterval: 10,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvBroker); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv(EnvInfluxDBToken); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required")
	} else if u, err := url.Parse(c.MQTT.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("mqtt.broker %q must be a URL like tcp://host:1883", c.MQTT.Broker))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.RetryInterval <= 0 {
		errs = append(errs, "mqtt.retry_interval must be positive")
	}

	if c.GPIO.Chip == "" {
		errs = append(errs, "gpio.chip is required")
	}
	if err := c.Pins().Validate(); err != nil {
		errs = append(errs, "gpio: "+err.Error())
	}

	if c.Sequencer.Poll <= 0 || c.Sequencer.Poll > time.Second {
		errs = append(errs, "sequencer.poll must be between 0 and 1s")
	}
	if c.Sequencer.PumpDelay <= 0 {
		errs = append(errs, "sequencer.pump_delay must be positive")
	}
	if c.Sequencer.Solenoid1Duration <= 0 {
		errs = append(errs, "sequencer.solenoid_1_duration must be positive")
	}
	if c.Sequencer.Solenoid2Duration <= 0 {
		errs = append(errs, "sequencer.solenoid_2_duration must be positive")
	}
	if _, err := logic.ParseMatchMode(c.Sequencer.Match); err != nil {
		errs = append(errs, "sequencer.match: "+err.Error())
	}

	if c.Heartbeat < 0 {
		errs = append(errs, "heartbeat must not be negative")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// Pins returns the configured output wiring.
func (c *Config) Pins() gpio.Pins {
	return gpio.Pins{
		Pump:      c.GPIO.PumpPin,
		Solenoid1: c.GPIO.Solenoid1Pin,
		Solenoid2: c.GPIO.Solenoid2Pin,
	}
}

// SequencerSettings returns the power-on sequencer settings.
// Validate must have succeeded.
func (c *Config) SequencerSettings() logic.Settings {
	match, _ := logic.ParseMatchMode(c.Sequencer.Match)
	return logic.Settings{
		PumpDelay:         c.Sequencer.PumpDelay,
		Solenoid1Duration: c.Sequencer.Solenoid1Duration,
		Solenoid2Duration: c.Sequencer.Solenoid2Duration,
		Match:             match,
	}
}

// MQTTOptions returns the broker client options.
func (c *Config) MQTTOptions() mqtt.Options {
	return mqtt.Options{
		Broker:        c.MQTT.Broker,
		ClientID:      c.MQTT.ClientID,
		RandomSuffix:  c.MQTT.RandomSuffix,
		Username:      c.MQTT.Username,
		Password:      c.MQTT.Password,
		Topics:        mqtt.NewTopics(c.MQTT.TopicPrefix),
		QoS:           byte(c.MQTT.QoS),
		RetryInterval: c.MQTT.RetryInterval,
		OutboxSize:    c.MQTT.OutboxSize,
	}
}

// TelemetryOptions returns the InfluxDB recorder options.
func (c *Config) TelemetryOptions() telemetry.Options {
	return telemetry.Options{
		Enabled:       c.InfluxDB.Enabled,
		URL:           c.InfluxDB.URL,
		Token:         c.InfluxDB.Token,
		Org:           c.InfluxDB.Org,
		Bucket:        c.InfluxDB.Bucket,
		BatchSize:     c.InfluxDB.BatchSize,
		FlushInterval: c.InfluxDB.FlushInterval,
	}
}

// Redacted returns a copy safe to print or publish.
func (c *Config) Redacted() Config {
	out := *c
	if out.MQTT.Password != "" {
		out.MQTT.Password = "REDACTED"
	}
	if out.InfluxDB.Token != "" {
		out.InfluxDB.Token = "REDACTED"
	}
	return out
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	r := c.Redacted()
	return yaml.Marshal(&r)
}
