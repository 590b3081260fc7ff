package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lubosd/hass-vaillant/internal/sensor"
	"github.com/lubosd/hass-vaillant/internal/vaillant"
)

const (
	defaultPrefix          = "vaillant"
	defaultDiscoveryPrefix = "homeassistant"
	defaultPollInterval    = time.Minute
	minPollInterval        = 10 * time.Second
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Mqtt     MqttConfig     `yaml:"mqtt"`
	Vaillant VaillantConfig `yaml:"vaillant"`

	// e.g. 1m
	PollInterval time.Duration `yaml:"pollInterval"`

	// Per kind switches, e.g. room_child_lock: false. Missing kinds are on.
	BinarySensors map[string]bool `yaml:"binarySensors"`

	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type MqttConfig struct {
	// e.g. tcp://127.0.0.1:1883
	URL string `yaml:"url"`

	// e.g. "vaillant"
	Prefix string `yaml:"prefix"`

	// Home Assistant discovery prefix, "homeassistant" unless changed there.
	DiscoveryPrefix string `yaml:"discoveryPrefix"`

	ClientID string `yaml:"clientId"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type VaillantConfig struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	SmartphoneID string `yaml:"smartphoneId"`
	Serial       string `yaml:"serial"`
	BaseURL      string `yaml:"baseUrl"`
}

type MetricsConfig struct {
	// e.g. :9101, empty disables the endpoint
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	// debug, info, warn or error
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// LoadConfig reads the YAML file, applies environment overrides for
// secrets and fills in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"VAILLANT_USERNAME": &c.Vaillant.Username,
		"VAILLANT_PASSWORD": &c.Vaillant.Password,
		"MQTT_USERNAME":     &c.Mqtt.Username,
		"MQTT_PASSWORD":     &c.Mqtt.Password,
	}
	for env, field := range overrides {
		if value, ok := os.LookupEnv(env); ok && value != "" {
			*field = value
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Mqtt.Prefix == "" {
		c.Mqtt.Prefix = defaultPrefix
	}
	if c.Mqtt.DiscoveryPrefix == "" {
		c.Mqtt.DiscoveryPrefix = defaultDiscoveryPrefix
	}
	if c.Vaillant.BaseURL == "" {
		c.Vaillant.BaseURL = vaillant.DefaultBaseURL
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	var problems []string

	if c.Mqtt.URL == "" {
		problems = append(problems, "mqtt.url is required")
	}
	if strings.ContainsAny(c.Mqtt.Prefix, "#+") {
		problems = append(problems, "mqtt.prefix must not contain wildcards")
	}
	if c.Vaillant.Username == "" || c.Vaillant.Password == "" {
		problems = append(problems, "vaillant.username and vaillant.password are required")
	}
	if c.PollInterval < minPollInterval {
		problems = append(problems, fmt.Sprintf("pollInterval must be at least %s", minPollInterval))
	}

	known := make(map[string]bool, len(sensor.Kinds))
	for _, kind := range sensor.Kinds {
		known[string(kind)] = true
	}
	for key := range c.BinarySensors {
		if !known[key] {
			problems = append(problems, fmt.Sprintf("binarySensors: unknown kind %q", key))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) SensorFilter() sensor.Filter {
	filter := make(sensor.Filter, len(c.BinarySensors))
	for key, enabled := range c.BinarySensors {
		filter[sensor.Kind(key)] = enabled
	}
	return filter
}

func (c *VaillantConfig) ClientConfig() vaillant.Config {
	return vaillant.Config{
		BaseURL:      c.BaseURL,
		Username:     c.Username,
		Password:     c.Password,
		SmartphoneID: c.SmartphoneID,
		Serial:       c.Serial,
	}
}
