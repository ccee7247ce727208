package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/orbitlink-sim/core"
	"github.com/signalsfoundry/orbitlink-sim/internal/config"
	"github.com/signalsfoundry/orbitlink-sim/internal/export"
	"github.com/signalsfoundry/orbitlink-sim/internal/health"
	"github.com/signalsfoundry/orbitlink-sim/internal/logging"
	"github.com/signalsfoundry/orbitlink-sim/internal/observability"
	"github.com/signalsfoundry/orbitlink-sim/internal/stream"
	"github.com/signalsfoundry/orbitlink-sim/kb"
	"github.com/signalsfoundry/orbitlink-sim/timectrl"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML/JSON/TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orbitlink-sim: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	ctx, runID := logging.NewRun(context.Background())

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(stopCtx, cfg, log); err != nil {
		log.Error(ctx, "simulator exited", logging.String("run_id", runID), logging.Err(err))
		os.Exit(1)
	}
}

// app holds the assembled components for one run.
type app struct {
	store   *kb.KnowledgeBase
	sim     *core.Simulation
	hub     *stream.Hub
	health  *health.Reporter
	metrics *observability.SimCollector
	runner  *runner
	mux     *http.ServeMux
}

// build assembles the simulation and its surfaces without starting any
// listeners.
func build(ctx context.Context, cfg config.Config, reg *prometheus.Registry, log logging.Logger) (*app, error) {
	store := kb.NewKnowledgeBase()
	sats, err := cfg.SatelliteDefinitions()
	if err != nil {
		return nil, err
	}
	for _, s := range sats {
		if err := store.AddSatellite(s); err != nil {
			return nil, fmt.Errorf("add satellite: %w", err)
		}
	}
	for _, st := range cfg.GroundStations() {
		if err := store.AddStation(st); err != nil {
			return nil, fmt.Errorf("add station: %w", err)
		}
	}
	store.Subscribe(func(e kb.Event) {
		if e.Type != kb.EventSatelliteStateChanged {
			return
		}
		log.Info(ctx, "satellite lifecycle changed",
			logging.String("satellite", e.Satellite.ID),
			logging.String("from", e.PreviousState.String()),
			logging.String("to", e.Satellite.State.String()),
		)
	})

	sim := core.NewSimulation(store, cfg.SimulationConfig(), core.WithContext(ctx), core.WithLogger(log))

	metrics, err := observability.NewSimCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("sim metrics: %w", err)
	}
	streamMetrics, err := observability.NewStreamCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("stream metrics: %w", err)
	}

	hub := stream.NewHub(stream.Options{
		CommandRate:  cfg.CommandRate,
		CommandBurst: cfg.CommandBurst,
		Metrics:      streamMetrics,
		Logger:       log,
	})
	reporter := health.NewReporter()

	r := newRunner(sim, cfg, log)
	r.commands = hub.Commands()
	r.out = hub
	r.metrics = metrics
	r.streamMetrics = streamMetrics
	r.health = reporter

	// Seed the stream and probes with the t=0 state.
	initial := sim.Snapshot()
	metrics.ObserveSnapshot(initial)
	reporter.Update(initial)
	r.publish(initial)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", health.Healthz)
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		msg := hub.Latest()
		if msg == nil {
			var err error
			if msg, err = export.MarshalJSON(sim.Snapshot()); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(msg); err != nil {
			log.Debug(ctx, "snapshot write failed", logging.Err(err))
		}
	})

	return &app{
		store:   store,
		sim:     sim,
		hub:     hub,
		health:  reporter,
		metrics: metrics,
		runner:  r,
		mux:     mux,
	}, nil
}

func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	tracingShutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), tracingShutdown, log)

	a, err := build(ctx, cfg, prometheus.NewRegistry(), log)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: a.mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http server exited", logging.String("addr", cfg.HTTPAddr), logging.Err(err))
		}
	}()
	log.Info(ctx, "serving http", logging.String("addr", cfg.HTTPAddr))

	grpcSrv := a.health.NewServer()
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error(ctx, "grpc server exited", logging.Err(err))
		}
	}()
	log.Info(ctx, "serving grpc health", logging.String("addr", cfg.GRPCAddr))

	mode := timectrl.RealTime
	if strings.EqualFold(cfg.Mode, "accelerated") {
		mode = timectrl.Accelerated
	}
	driver := timectrl.NewFrameDriver(cfg.FrameInterval, mode)
	driver.AddListener(a.runner.onFrame)

	log.Info(ctx, "simulation started",
		logging.Int("satellites", len(a.store.ListSatellites())),
		logging.Int("stations", len(a.store.ListStations())),
		logging.String("mode", mode.String()),
		logging.Float("speed", a.runner.speed),
	)
	<-driver.Start(ctx, cfg.Duration)

	log.Info(ctx, "shutting down",
		logging.Uint64("frames", driver.Frames()),
		logging.Float("t", a.sim.Time()),
	)
	a.health.Shutdown()
	a.hub.Close()
	grpcSrv.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
