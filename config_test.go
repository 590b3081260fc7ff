package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lubosd/hass-vaillant/internal/sensor"
	"github.com/lubosd/hass-vaillant/internal/vaillant"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  url: tcp://127.0.0.1:1883
vaillant:
  username: user@example.com
  password: secret
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "vaillant", config.Mqtt.Prefix)
	assert.Equal(t, "homeassistant", config.Mqtt.DiscoveryPrefix)
	assert.Equal(t, vaillant.DefaultBaseURL, config.Vaillant.BaseURL)
	assert.Equal(t, time.Minute, config.PollInterval)
	assert.Equal(t, "info", config.Log.Level)
	assert.Empty(t, config.Metrics.Listen)
}

func TestLoadConfig_Full(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  url: tcp://broker:1883
  prefix: heating
  discoveryPrefix: ha
  clientId: heating-1
vaillant:
  username: user@example.com
  password: secret
  serial: "21223300202609620938071939N6"
  smartphoneId: phone-1
pollInterval: 2m30s
binarySensors:
  room_child_lock: false
  device_battery: true
metrics:
  listen: ":9101"
log:
  level: debug
  development: true
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "heating", config.Mqtt.Prefix)
	assert.Equal(t, "ha", config.Mqtt.DiscoveryPrefix)
	assert.Equal(t, "heating-1", config.Mqtt.ClientID)
	assert.Equal(t, 150*time.Second, config.PollInterval)
	assert.Equal(t, ":9101", config.Metrics.Listen)
	assert.True(t, config.Log.Development)

	filter := config.SensorFilter()
	assert.False(t, filter.Enabled(sensor.KindRoomChildLock))
	assert.True(t, filter.Enabled(sensor.KindDeviceBattery))
	assert.True(t, filter.Enabled(sensor.KindRoomWindow))

	clientConfig := config.Vaillant.ClientConfig()
	assert.Equal(t, "21223300202609620938071939N6", clientConfig.Serial)
	assert.Equal(t, "phone-1", clientConfig.SmartphoneID)
	assert.Equal(t, "secret", clientConfig.Password)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("VAILLANT_USERNAME", "env@example.com")
	t.Setenv("VAILLANT_PASSWORD", "env-secret")
	t.Setenv("MQTT_USERNAME", "mqtt-user")
	t.Setenv("MQTT_PASSWORD", "")

	path := writeConfig(t, `
mqtt:
  url: tcp://127.0.0.1:1883
  password: file-mqtt-secret
vaillant:
  username: file@example.com
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env@example.com", config.Vaillant.Username)
	assert.Equal(t, "env-secret", config.Vaillant.Password)
	assert.Equal(t, "mqtt-user", config.Mqtt.Username)
	assert.Equal(t, "file-mqtt-secret", config.Mqtt.Password)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		problem string
	}{
		{
			name: "missing mqtt url",
			content: `
vaillant: {username: u, password: p}
`,
			problem: "mqtt.url is required",
		},
		{
			name: "wildcard prefix",
			content: `
mqtt: {url: "tcp://b:1883", prefix: "vaillant/#"}
vaillant: {username: u, password: p}
`,
			problem: "mqtt.prefix must not contain wildcards",
		},
		{
			name: "poll interval too short",
			content: `
mqtt: {url: "tcp://b:1883"}
vaillant: {username: u, password: p}
pollInterval: 5s
`,
			problem: "pollInterval must be at least 10s",
		},
		{
			name: "unknown sensor kind",
			content: `
mqtt: {url: "tcp://b:1883"}
vaillant: {username: u, password: p}
binarySensors: {room_humidity: true}
`,
			problem: `unknown kind "room_humidity"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestLoadConfig_MissingCredentials(t *testing.T) {
	t.Setenv("VAILLANT_USERNAME", "")
	t.Setenv("VAILLANT_PASSWORD", "")

	_, err := LoadConfig(writeConfig(t, "mqtt: {url: \"tcp://b:1883\"}\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "vaillant.username and vaillant.password are required")
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "mqtt: [not, a, map]\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}
