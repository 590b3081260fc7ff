package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lubosd/hass-vaillant/internal/sensor"
)

// Metrics collects poll and sensor state metrics.
type Metrics struct {
	pollSuccess prometheus.Gauge
	lastSuccess prometheus.Gauge
	sensors     prometheus.Gauge
	available   *prometheus.GaugeVec
	on          *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	labels := []string{"unique_id", "kind"}
	return &Metrics{
		pollSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaillant_poll_success",
			Help: "Last poll success (1=ok, 0=error)",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaillant_last_success_timestamp_seconds",
			Help: "Last successful poll timestamp (epoch seconds)",
		}),
		sensors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vaillant_binary_sensors",
			Help: "Number of binary sensors created at discovery",
		}),
		available: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vaillant_binary_sensor_available",
			Help: "Whether the sensor resolved against the last snapshot (1=yes, 0=no)",
		}, labels),
		on: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vaillant_binary_sensor_on",
			Help: "Sensor state of available sensors (1=on, 0=off)",
		}, labels),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.pollSuccess.Describe(ch)
	m.lastSuccess.Describe(ch)
	m.sensors.Describe(ch)
	m.available.Describe(ch)
	m.on.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.pollSuccess.Collect(ch)
	m.lastSuccess.Collect(ch)
	m.sensors.Collect(ch)
	m.available.Collect(ch)
	m.on.Collect(ch)
}

func (m *Metrics) SetSensorCount(count int) {
	m.sensors.Set(float64(count))
}

func (m *Metrics) ObservePoll(err error, now time.Time) {
	if err != nil {
		m.pollSuccess.Set(0)
		return
	}
	m.pollSuccess.Set(1)
	m.lastSuccess.Set(float64(now.Unix()))
}

// ObserveSensor records availability and, for available sensors, the
// state. The on gauge of an unavailable sensor is dropped.
func (m *Metrics) ObserveSensor(s sensor.BinarySensor) {
	labels := prometheus.Labels{"unique_id": s.UniqueID(), "kind": string(s.Kind())}

	if !s.Available() {
		m.available.With(labels).Set(0)
		m.on.Delete(labels)
		return
	}
	m.available.With(labels).Set(1)
	if s.IsOn() {
		m.on.With(labels).Set(1)
	} else {
		m.on.With(labels).Set(0)
	}
}
