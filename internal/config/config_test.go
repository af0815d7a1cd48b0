package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "pwd-", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 5*time.Second, cfg.MQTT.RetryInterval)
	assert.Equal(t, 1, cfg.Sequencer.PumpDelay)
	assert.Equal(t, 20, cfg.Sequencer.Solenoid1Duration)
	assert.Equal(t, 20, cfg.Sequencer.Solenoid2Duration)
	assert.Equal(t, "exact", cfg.Sequencer.Match)
	assert.False(t, cfg.InfluxDB.Enabled)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().MQTT.Broker, cfg.MQTT.Broker)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker: tcp://10.0.0.5:1883
  topic_prefix: garden/
  retry_interval: 10s
gpio:
  pump_pin: 5
  solenoid_1_pin: 6
  solenoid_2_pin: 13
sequencer:
  poll: 250ms
  solenoid_1_duration: 45
  match: at-least
heartbeat: 1h
influxdb:
  enabled: true
  bucket: garden
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://10.0.0.5:1883", cfg.MQTT.Broker)
	assert.Equal(t, "garden/", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 10*time.Second, cfg.MQTT.RetryInterval)
	assert.Equal(t, "irrigation-controller", cfg.MQTT.ClientID, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Sequencer.Poll)
	assert.Equal(t, 45, cfg.Sequencer.Solenoid1Duration)
	assert.Equal(t, 20, cfg.Sequencer.Solenoid2Duration)
	assert.Equal(t, time.Hour, cfg.Heartbeat)
	assert.True(t, cfg.InfluxDB.Enabled)
	assert.Equal(t, "garden", cfg.InfluxDB.Bucket)

	pins := cfg.Pins()
	assert.Equal(t, 5, pins.Pump)
	assert.Equal(t, 6, pins.Solenoid1)
	assert.Equal(t, 13, pins.Solenoid2)

	settings := cfg.SequencerSettings()
	assert.Equal(t, logic.MatchAtLeast, settings.Match)
	assert.Equal(t, 45, settings.Solenoid1Duration)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "mqtt: [unterminated")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvBroker, "ssl://broker.example:8883")
	t.Setenv(EnvUsername, "waterer")
	t.Setenv(EnvPassword, "hunter2")
	t.Setenv(EnvInfluxDBToken, "tok")

	path := writeConfig(t, "mqtt:\n  broker: tcp://file:1883\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ssl://broker.example:8883", cfg.MQTT.Broker)
	assert.Equal(t, "waterer", cfg.MQTT.Username)
	assert.Equal(t, "hunter2", cfg.MQTT.Password)
	assert.Equal(t, "tok", cfg.InfluxDB.Token)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Broker = "not a url"
	cfg.MQTT.QoS = 3
	cfg.GPIO.Solenoid2Pin = cfg.GPIO.PumpPin
	cfg.Sequencer.PumpDelay = 0
	cfg.Sequencer.Match = "sometimes"
	cfg.Sequencer.Poll = 2 * time.Second
	cfg.Heartbeat = -time.Second
	cfg.InfluxDB.Enabled = true
	cfg.InfluxDB.URL = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	for _, want := range []string{
		"mqtt.broker",
		"mqtt.qos",
		"gpio:",
		"sequencer.pump_delay",
		"sequencer.match",
		"sequencer.poll",
		"heartbeat",
		"influxdb.url",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestMQTTOptions(t *testing.T) {
	cfg := Default()
	cfg.MQTT.TopicPrefix = "home/"
	cfg.MQTT.QoS = 1

	opts := cfg.MQTTOptions()
	assert.Equal(t, "home/water-plants", opts.Topics.WaterPlants)
	assert.Equal(t, "home/status-output", opts.Topics.StatusOutput)
	assert.Equal(t, byte(1), opts.QoS)
	assert.True(t, opts.RandomSuffix)
	assert.Equal(t, cfg.MQTT.RetryInterval, opts.RetryInterval)
}

func TestTelemetryOptions(t *testing.T) {
	cfg := Default()
	cfg.InfluxDB.Enabled = true
	cfg.InfluxDB.Token = "tok"

	opts := cfg.TelemetryOptions()
	assert.True(t, opts.Enabled)
	assert.Equal(t, "tok", opts.Token)
	assert.Equal(t, "irrigation", opts.Bucket)
	assert.Equal(t, cfg.InfluxDB.BatchSize, opts.BatchSize)
}

func TestRedactedAndYAML(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Password = "secret"
	cfg.InfluxDB.Token = "token"

	r := cfg.Redacted()
	assert.Equal(t, "REDACTED", r.MQTT.Password)
	assert.Equal(t, "REDACTED", r.InfluxDB.Token)
	assert.Equal(t, "secret", cfg.MQTT.Password, "source config must not change")

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret")
	assert.Contains(t, string(out), "topic_prefix: pwd-")
}
