// caniotd is the CANIOT home-automation controller daemon: it bridges a
// CAN bus (or the in-process emulator) to a small fleet of device
// controllers, exposing their state and actions over HTTP.
//
// Usage:
//
//	caniotd [options]
//
// Options:
//
//	-config   path to the YAML configuration file (default: "caniotd.yaml")
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucasdietrich/caniot-controller/internal/bus"
	"github.com/lucasdietrich/caniot-controller/internal/caniot"
	"github.com/lucasdietrich/caniot-controller/internal/config"
	"github.com/lucasdietrich/caniot-controller/internal/controller/alarm"
	"github.com/lucasdietrich/caniot-controller/internal/controller/garage"
	"github.com/lucasdietrich/caniot-controller/internal/controller/heaters"
	"github.com/lucasdietrich/caniot-controller/internal/core"
	"github.com/lucasdietrich/caniot-controller/internal/device"
	"github.com/lucasdietrich/caniot-controller/internal/httpapi"
	"github.com/lucasdietrich/caniot-controller/internal/logging"
	"github.com/lucasdietrich/caniot-controller/internal/metrics"
	"github.com/lucasdietrich/caniot-controller/internal/registry"
	"github.com/lucasdietrich/caniot-controller/internal/settings"
)

const (
	kindAlarm   = "outdoor_alarm"
	kindHeaters = "heaters"
	kindGarage  = "garage"
)

func main() {
	configPath := flag.String("config", "caniotd.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	loggerFactory := logging.NewFactory(logging.ParseLevel(cfg.LogLevel))
	logger := loggerFactory.NewLogger("caniotd")

	store, err := settings.Open(cfg.Settings)
	if err != nil {
		log.Fatalf("open settings store %s: %v", cfg.Settings, err)
	}
	defer store.Close()

	canBus, err := openBus(cfg)
	if err != nil {
		log.Fatalf("open bus: %v", err)
	}
	defer canBus.Close()

	policy, factories := buildPolicy(cfg, store)
	reg := registry.New(policy, factories)

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	c := core.New(canBus, reg, logger, m, 64)

	server := httpapi.NewServer(c.Inbox()).WithMetrics(metrics.Handler(promReg))
	httpServer := &http.Server{Addr: cfg.Listen, Handler: server.Router()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go c.Run()

	go func() {
		logger.Infof("listening on %s", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}

	c.Stop()
}

const shutdownTimeout = 5 * time.Second

// openBus builds the configured CAN transport: a real SocketCAN interface,
// or the in-process emulator when cfg.CAN.Emulator is set.
func openBus(cfg config.Config) (bus.Interface, error) {
	if cfg.CAN.Emulator {
		// the second endpoint of the pair stays unused when run as a
		// daemon; tests use it to act as the "device" side of the bus.
		a, _ := bus.NewEmulatorPair()
		return a, nil
	}
	if cfg.CAN.Interface == "" {
		return nil, fmt.Errorf("config: can.interface is required unless can.emulator is set")
	}
	return bus.NewSocketCAN(cfg.CAN.Interface)
}

// buildPolicy turns the configured device list into a registry.Policy and
// the per-kind factories. The garage and alarm factories load their
// persisted config from the settings store on first attach; the heaters
// factory starts from a zero Config.
func buildPolicy(cfg config.Config, store *settings.Store) (registry.Policy, map[string]registry.Factory) {
	policy := make(registry.StaticPolicy, len(cfg.Devices))
	for _, dc := range cfg.Devices {
		did, err := dc.Did()
		if err != nil {
			log.Fatalf("config: invalid device %+v: %v", dc, err)
		}
		policy[did] = dc.Kind
	}

	factories := map[string]registry.Factory{
		kindHeaters: func(did caniot.DeviceId) (device.Controller, error) {
			return heaters.New(did), nil
		},
		kindGarage: func(did caniot.DeviceId) (device.Controller, error) {
			pulseMs := settings.ReadOr(store, settingsKey(did, "pulse_duration_ms"), 4000)
			return garage.New(did, garage.Config{PulseDurationMs: pulseMs}), nil
		},
		kindAlarm: func(did caniot.DeviceId) (device.Controller, error) {
			alarmCfg := alarm.Config{
				SirenMinimumIntervalSec: settings.ReadOr(store, settingsKey(did, "siren_min_interval_s"), 30),
				AutoAlarmEnable:         settings.ReadOr(store, settingsKey(did, "auto_alarm_enable"), false),
				AutoLightsEnable:        settings.ReadOr(store, settingsKey(did, "auto_lights_enable"), false),
			}
			return alarm.New(did, alarmCfg), nil
		},
	}

	return policy, factories
}

func settingsKey(did caniot.DeviceId, field string) string {
	return fmt.Sprintf("device.%d.%s", did.ToU8(), field)
}
