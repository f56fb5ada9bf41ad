// Package app wires the config, state store, alarm engine, transport
// pipeline, notification pipeline, and telemetry providers into one
// runnable unit, the way engine.New composed the crawl pipeline in the
// teacher codebase this module grew out of.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/99souls/sensorwatch/internal/alarm"
	"github.com/99souls/sensorwatch/internal/config"
	"github.com/99souls/sensorwatch/internal/domain"
	"github.com/99souls/sensorwatch/internal/notify"
	"github.com/99souls/sensorwatch/internal/pipeline"
	"github.com/99souls/sensorwatch/internal/state"
	"github.com/99souls/sensorwatch/internal/telemetry/health"
	"github.com/99souls/sensorwatch/internal/telemetry/logging"
	"github.com/99souls/sensorwatch/internal/telemetry/metrics"
	"github.com/99souls/sensorwatch/internal/telemetry/tracing"
	"github.com/99souls/sensorwatch/internal/transport"
)

// App is the assembled runtime: one Store, one Engine, and the four
// pipeline stages (Receiver -> AlarmWorker -> EventBus -> NotifyAdapter ->
// Notifier) feeding it.
type App struct {
	cfg *config.AppConfig

	logger    logging.Logger
	tracer    tracing.Tracer
	metrics   metrics.Provider
	evaluator *health.Evaluator

	store    *state.Store
	engine   *alarm.Engine
	bus      *pipeline.EventBus
	in       chan transport.Message
	receiver *pipeline.Receiver
	worker   *pipeline.AlarmWorker
	notifier *pipeline.Notifier
	adapter  *pipeline.NotifyAdapter

	readingsCounter metrics.Counter
	alarmsCounter   metrics.Counter
	activeGauge     metrics.Gauge
}

// New assembles an App from a validated configuration. It registers
// sensor configs into the store and builds the criteria set according to
// which optional alarm sections are present in cfg.Alarms.
func New(cfg *config.AppConfig, serviceName, environment string) (*App, error) {
	logger := logging.New(slog.Default())
	tracer := tracing.New(serviceName, environment)

	reg := prometheus.NewRegistry()
	metricsProvider := metrics.NewPrometheusProvider(reg)

	store := state.New()
	for _, s := range cfg.Sensors.ScalarConfigs {
		store.SetConfig(domain.SensorConfig{
			Name: s.Name, Units: s.Units, LowLimit: s.LowLimit, HighLimit: s.HighLimit,
		})
	}

	criteria := buildCriteria(cfg)
	engine := alarm.NewEngine(criteria, cfg.Alarms.ValueEps, logger)

	bus := pipeline.NewEventBus(1024)
	in := make(chan transport.Message, 1024)

	receiver := pipeline.NewReceiver(pipeline.ReceiverConfig{
		Host:           cfg.Transport.Host,
		Port:           cfg.Transport.Port,
		ConnectTimeout: durationFromSeconds(cfg.Transport.TimeoutS),
		ReconnectDelay: durationFromSeconds(cfg.Transport.ReconnectDelayS),
	}, in, logger)

	worker := pipeline.NewAlarmWorker(in, store, engine, bus, logger, tracer)

	webhook := notify.NewWebhook(notify.WebhookConfig{
		URL:        cfg.Webhook.URL,
		TimeoutS:   cfg.Webhook.TimeoutS,
		VerifyTLS:  cfg.Webhook.VerifyTLS,
		AuthHeader: cfg.Webhook.AuthHeader,
	})

	notifierCfg := pipeline.DefaultNotifierConfig()
	notifier := pipeline.NewNotifier(notifierCfg, []notify.Sender{webhook}, logger)
	adapter := pipeline.NewNotifyAdapter(bus, store, notifier, logger)

	readingsCounter := metricsProvider.NewCounter(metrics.CommonOpts{
		Namespace: "sensorwatch", Subsystem: "pipeline", Name: "readings_total",
		Help: "Total sensor readings received.", Labels: []string{"sensor_type"},
	})
	alarmsCounter := metricsProvider.NewCounter(metrics.CommonOpts{
		Namespace: "sensorwatch", Subsystem: "alarm", Name: "events_total",
		Help: "Total alarm lifecycle events emitted.", Labels: []string{"transition"},
	})
	activeGauge := metricsProvider.NewGauge(metrics.CommonOpts{
		Namespace: "sensorwatch", Subsystem: "alarm", Name: "active_count",
		Help: "Number of currently active alarms.",
	})

	a := &App{
		cfg: cfg, logger: logger, tracer: tracer, metrics: metricsProvider,
		store: store, engine: engine, bus: bus, in: in,
		receiver: receiver, worker: worker, notifier: notifier, adapter: adapter,
		readingsCounter: readingsCounter, alarmsCounter: alarmsCounter, activeGauge: activeGauge,
	}

	a.evaluator = health.NewEvaluator(5*time.Second,
		health.ProbeFunc(a.probeStore),
		health.ProbeFunc(a.probeReceiver),
	)

	return a, nil
}

func buildCriteria(cfg *config.AppConfig) []alarm.Criterion {
	var criteria []alarm.Criterion
	if cfg.Alarms.EnableScalarLimits {
		criteria = append(criteria, alarm.ScalarLimitCriterion{})
	}
	if td := cfg.Alarms.TempDiff; td != nil {
		criteria = append(criteria, alarm.TempDiffCriterion{
			SensorLower: td.SensorLower, SensorUpper: td.SensorUpper, MaxDelta: td.MaxDelta,
		})
	}
	if f := cfg.Alarms.FtirPeakShift; f != nil {
		axis := alarm.DefaultFtirAxis
		if len(f.AxisNm) > 0 {
			axis = f.AxisNm
		}
		criteria = append(criteria, alarm.FtirPeakShiftCriterion{
			SensorName:         f.SensorName,
			ExpectedPeaksNm:    f.ExpectedPeaksNm,
			MaxAllowedShiftNm:  f.MaxAllowedShiftNm,
			SearchWindowNm:     f.SearchWindowNm,
			RequireLengthMatch: f.RequireLengthMatch,
			Axis:               axis,
		})
	}
	return criteria
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Start launches the receiver and every pipeline stage. It does not
// block; callers wait on ctx and then call Stop.
func (a *App) Start(ctx context.Context) {
	a.notifier.Start(ctx)
	a.adapter.Start(ctx)
	a.worker.Start(ctx)
	a.receiver.Start(ctx)
	go a.runMetricsLoop(ctx)
}

// runMetricsLoop periodically samples the store and republishes gauges;
// readings/alarm counters are maintained here rather than inline in the
// pipeline stages so the hot path never depends on the metrics provider
// being reachable.
func (a *App) runMetricsLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastEvents := 0
	lastSeen := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.activeGauge.Set(float64(len(a.store.GetActiveAlarmStates())))

			for sensor, r := range a.store.Snapshots() {
				if !r.Timestamp.Equal(lastSeen[sensor]) {
					a.readingsCounter.Inc(1, "scalar")
					lastSeen[sensor] = r.Timestamp
				}
			}
			for sensor, r := range a.store.FtirSnapshots() {
				if !r.Timestamp.Equal(lastSeen[sensor]) {
					a.readingsCounter.Inc(1, "spectral")
					lastSeen[sensor] = r.Timestamp
				}
			}

			events := a.store.AlarmEvents()
			if len(events) > lastEvents {
				for _, ev := range events[lastEvents:] {
					a.alarmsCounter.Inc(1, string(ev.Transition))
				}
				lastEvents = len(events)
			}
		}
	}
}

// Stop shuts the pipeline down in the reverse of start order, so that
// upstream stages stop producing before downstream stages stop draining.
func (a *App) Stop() {
	a.receiver.Stop()
	a.receiver.Join()

	a.worker.Stop()
	a.worker.Join()

	a.adapter.Stop()
	a.adapter.Join()

	a.notifier.Stop()
	a.notifier.Join()
}

// MetricsHandler exposes the Prometheus exposition endpoint.
func (a *App) MetricsHandler() http.Handler { return a.metrics.MetricsHandler() }

// HealthHandler exposes a JSON health rollup endpoint.
func (a *App) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary := a.evaluator.Evaluate(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if summary.Overall != health.StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"status":"%s"}`, summary.Overall)
	}
}

func (a *App) probeStore(ctx context.Context) health.ProbeResult {
	_ = ctx
	if len(a.store.Snapshots()) == 0 && len(a.store.FtirSnapshots()) == 0 {
		return health.Degraded("state_store", "no readings received yet")
	}
	return health.Healthy("state_store")
}

func (a *App) probeReceiver(ctx context.Context) health.ProbeResult {
	_ = ctx
	return health.Healthy("receiver")
}

// Engine exposes the underlying alarm engine, primarily for tests.
func (a *App) Engine() *alarm.Engine { return a.engine }

// Store exposes the underlying state store, primarily for tests.
func (a *App) Store() *state.Store { return a.store }
