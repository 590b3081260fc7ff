package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lubosd/hass-vaillant/internal/sensor"
	"github.com/lubosd/hass-vaillant/internal/vaillant"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: hass-vaillant <config.yaml>")
		os.Exit(2)
	}

	envErr := godotenv.Load()

	config, err := LoadConfig(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(&config.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	client, err := vaillant.NewClient(config.Vaillant.ClientConfig(), logger.Named("vaillant"))
	if err != nil {
		logger.Fatal("Failed to set up Vaillant client", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.UpdateSystem(ctx); err != nil {
		logger.Fatal("Failed to fetch initial system state", zap.Error(err))
	}

	sensors := sensor.Discover(client.System(), config.SensorFilter(), logger.Named("sensor"))

	metrics := NewMetrics()
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics)
	if config.Metrics.Listen != "" {
		go serveMetrics(config.Metrics.Listen, registry, logger)
	}

	bridge := NewBridge(client, sensors, config, metrics, logger.Named("bridge"))
	mqttClient := connectMqtt(&config.Mqtt, bridge, logger.Named("mqtt"))

	logger.Info("Running", zap.Duration("poll_interval", config.PollInterval), zap.Int("sensors", len(sensors)))
	bridge.Run(ctx)

	logger.Info("Shutting down")
	if err := bridge.Shutdown(); err != nil {
		logger.Warn("Failed to publish offline status", zap.Error(err))
	}
	mqttClient.Disconnect(250)

	logoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Logout(logoutCtx); err != nil {
		logger.Warn("Failed to log out", zap.Error(err))
	}
}

func newLogger(cfg *LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level
	return zapConfig.Build()
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server failed", zap.Error(err))
	}
}

func connectMqtt(cfg *MqttConfig, bridge *Bridge, logger *zap.Logger) mqtt.Client {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "vaillant-" + cfg.Prefix + "-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(30*time.Second).
		SetPingTimeout(10*time.Second).
		SetAutoReconnect(true).
		SetResumeSubs(true).
		SetOrderMatters(false).
		SetWill(bridge.TopicNameForValue(TopicConnectionStatus), payloadOffline, 0, true)

	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected", zap.String("broker", cfg.URL))
		bridge.SetupMqtt(client)
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	}

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal("Failed to connect to MQTT server", zap.Error(token.Error()))
	}

	return c
}
