package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/lubosd/hass-vaillant/internal/sensor"
	"github.com/lubosd/hass-vaillant/internal/vaillant"
)

const (
	TopicConnectionStatus = "status"

	payloadOnline  = "online"
	payloadOffline = "offline"
	payloadOn      = "ON"
	payloadOff     = "OFF"

	publishTimeout = 5 * time.Second
	pollTimeout    = time.Minute
)

var ErrPublishFailed = errors.New("mqtt publish failed")

// Hub is the vendor client as seen by the bridge.
type Hub interface {
	sensor.Hub
	UpdateSystem(ctx context.Context) error
	System() *vaillant.System
}

// MqttClient is the subset of mqtt.Client the bridge uses.
type MqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Bridge publishes the binary sensors to Home Assistant and refreshes them
// on every poll.
type Bridge struct {
	hub             Hub
	prefix          string
	discoveryPrefix string
	interval        time.Duration
	metrics         *Metrics
	logger          *zap.Logger

	mu         sync.Mutex
	sensors    []sensor.BinarySensor
	mqttClient MqttClient
}

func NewBridge(hub Hub, sensors []sensor.BinarySensor, cfg *Config, metrics *Metrics, logger *zap.Logger) *Bridge {
	if metrics != nil {
		metrics.SetSensorCount(len(sensors))
	}
	return &Bridge{
		hub:             hub,
		prefix:          cfg.Mqtt.Prefix,
		discoveryPrefix: cfg.Mqtt.DiscoveryPrefix,
		interval:        cfg.PollInterval,
		metrics:         metrics,
		logger:          logger,
		sensors:         sensors,
	}
}

func (b *Bridge) TopicNameForValue(valueName string) string {
	return b.prefix + "/" + valueName
}

func (b *Bridge) topicForSensor(s sensor.BinarySensor, valueName string) string {
	return b.TopicNameForValue(s.UniqueID() + "/" + valueName)
}

// SetupMqtt runs on every (re)connect: it announces all sensors, publishes
// their current state and listens for Home Assistant restarts.
func (b *Bridge) SetupMqtt(client MqttClient) {
	b.mu.Lock()
	b.mqttClient = client
	b.mu.Unlock()

	token := client.Subscribe(b.discoveryPrefix+"/status", 0, func(c mqtt.Client, m mqtt.Message) {
		defer m.Ack()

		if string(m.Payload()) != payloadOnline {
			return
		}
		b.logger.Info("Home Assistant came online, republishing discovery")
		if err := b.PublishDiscovery(); err != nil {
			b.logger.Error("Failed to republish discovery", zap.Error(err))
		}
	})
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		b.logger.Warn("Failed to subscribe to Home Assistant status", zap.Error(token.Error()))
	}

	if err := b.PublishDiscovery(); err != nil {
		b.logger.Error("Failed to publish discovery", zap.Error(err))
	}

	b.mu.Lock()
	err := b.publish(b.TopicNameForValue(TopicConnectionStatus), true, payloadOnline)
	b.mu.Unlock()
	if err != nil {
		b.logger.Error("Failed to publish status", zap.Error(err))
	}
}

// PublishDiscovery sends a retained discovery config per sensor followed by
// the current states.
func (b *Bridge) PublishDiscovery() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, s := range b.sensors {
		jsonBytes, err := json.Marshal(b.autoconfig(s))
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal %s: %w", s.UniqueID(), err))
			continue
		}
		topic := b.discoveryPrefix + "/binary_sensor/" + b.prefix + "/" + s.UniqueID() + "/config"
		if err := b.publish(topic, true, string(jsonBytes)); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, b.publishStatesLocked())
	return errors.Join(errs...)
}

func (b *Bridge) autoconfig(s sensor.BinarySensor) HassAutoconfig {
	facility := vaillant.Facility{}
	if system := b.hub.System(); system != nil {
		facility = system.Facility
	}

	var autoconf HassAutoconfig
	autoconf.Name = s.Name()
	autoconf.DeviceClass = s.DeviceClass()
	autoconf.StatusTopic = b.topicForSensor(s, "state")
	autoconf.UniqueID = s.UniqueID()
	autoconf.PayloadOn = payloadOn
	autoconf.PayloadOff = payloadOff
	autoconf.Availability = []HassAvailability{
		{Topic: b.TopicNameForValue(TopicConnectionStatus)},
		{Topic: b.topicForSensor(s, "availability")},
	}
	autoconf.AvailabilityMode = "all"
	if s.Kind() == sensor.KindBoilerError {
		autoconf.JSONAttributesTopic = b.topicForSensor(s, "attributes")
	}
	autoconf.Device.IDs = b.prefix + "_" + facility.Serial
	autoconf.Device.Name = facility.Name
	if autoconf.Device.Name == "" {
		autoconf.Device.Name = "Vaillant"
	}
	autoconf.Device.Manufacturer = "Vaillant"
	autoconf.Device.Model = "multiMATIC"
	autoconf.Origin = &HassAutoconfigOrigin{Name: "hass-vaillant"}
	return autoconf
}

// Poll updates the snapshot, refreshes every sensor against it and
// publishes the result. A failed update is reported but the sensors still
// resolve against the last good snapshot.
func (b *Bridge) Poll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	updateErr := b.hub.UpdateSystem(ctx)
	if b.metrics != nil {
		b.metrics.ObservePoll(updateErr, time.Now())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.sensors {
		s.Refresh(b.hub)
		if b.metrics != nil {
			b.metrics.ObserveSensor(s)
		}
	}

	publishErr := b.publishStatesLocked()
	if updateErr != nil {
		return errors.Join(fmt.Errorf("failed to update system: %w", updateErr), publishErr)
	}
	return publishErr
}

func (b *Bridge) publishStatesLocked() error {
	if b.mqttClient == nil {
		return nil
	}

	var errs []error
	for _, s := range b.sensors {
		if !s.Available() {
			errs = append(errs, b.publish(b.topicForSensor(s, "availability"), true, payloadOffline))
			continue
		}

		state := payloadOff
		if s.IsOn() {
			state = payloadOn
		}
		errs = append(errs,
			b.publish(b.topicForSensor(s, "state"), true, state),
			b.publish(b.topicForSensor(s, "availability"), true, payloadOnline))

		if attrs := s.Attributes(); attrs != nil {
			jsonBytes, err := json.Marshal(attrs)
			if err != nil {
				errs = append(errs, fmt.Errorf("marshal attributes of %s: %w", s.UniqueID(), err))
				continue
			}
			errs = append(errs, b.publish(b.topicForSensor(s, "attributes"), true, string(jsonBytes)))
		}
	}
	return errors.Join(errs...)
}

func (b *Bridge) publish(topic string, retained bool, payload string) error {
	if b.mqttClient == nil {
		return nil
	}

	token := b.mqttClient.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// Run polls right away and then on every tick until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	t := time.NewTicker(b.interval)
	defer t.Stop()

	for {
		if err := b.Poll(ctx); err != nil {
			b.logger.Error("Poll failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Shutdown marks the bridge offline. The broker would otherwise only do so
// through the will message after the keep alive expires.
func (b *Bridge) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.publish(b.TopicNameForValue(TopicConnectionStatus), true, payloadOffline)
}
