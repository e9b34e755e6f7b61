// Command fsmdemo runs a world of guard entities driven by a state machine
// graph and serves Prometheus metrics while it runs.
//
// It is configured through the environment:
//
//	FSM_GRAPH        path to a graph YAML file (default: embedded guard graph)
//	FSM_ENTITIES     number of entities to spawn
//	FSM_FRAME_RATE   ticks per second
//	FSM_WORKERS      worker pool size (default: GOMAXPROCS)
//	FSM_SHARDS       shard count (default: worker count)
//	FSM_DIAGRAM      print the graph as a Mermaid diagram and exit
//	FSM_LOG_MACHINES log every state change and transition
//	FSM_TRACE        trace transitions through OpenTelemetry
//	METRICS_ADDR     address of the /metrics listener, empty to disable
//
// Logging and tracing read the LOG_* and OTEL_* variables.
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/amp-labs/amp-fsm/config"
	"github.com/amp-labs/amp-fsm/fsm"
	"github.com/amp-labs/amp-fsm/fsm/graph"
	"github.com/amp-labs/amp-fsm/fsm/visualizer"
	"github.com/amp-labs/amp-fsm/logger"
	"github.com/amp-labs/amp-fsm/shutdown"
	"github.com/amp-labs/amp-fsm/telemetry"
	"github.com/amp-labs/amp-fsm/world"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const appName = "fsmdemo"

//go:embed graphs/*.yaml
var graphs embed.FS

// Config is the demo's environment configuration.
type Config struct {
	Graph       string `env:"FSM_GRAPH"`
	Entities    int    `env:"FSM_ENTITIES"     envDefault:"100"`
	FrameRate   int    `env:"FSM_FRAME_RATE"   envDefault:"30"`
	Workers     int    `env:"FSM_WORKERS"`
	Shards      int    `env:"FSM_SHARDS"`
	Diagram     bool   `env:"FSM_DIAGRAM"      envDefault:"false"`
	LogMachines bool   `env:"FSM_LOG_MACHINES" envDefault:"false"`
	Trace       bool   `env:"FSM_TRACE"        envDefault:"false"`
	MetricsAddr string `env:"METRICS_ADDR"     envDefault:":9090"`
	Environment string `env:"ENVIRONMENT"      envDefault:"local"`
}

var errInvalidFrameRate = errors.New("frame rate must be positive")

func main() {
	if err := run(); err != nil {
		logger.Get().Error("fsmdemo failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := shutdown.SetupHandler()

	if _, err := logger.ConfigureLogging(appName); err != nil {
		return err
	}

	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}

	if cfg.FrameRate <= 0 {
		return fmt.Errorf("%w: %d", errInvalidFrameRate, cfg.FrameRate)
	}

	graphConfig, err := loadGraph(cfg.Graph)
	if err != nil {
		return err
	}

	if cfg.Diagram {
		diagram, err := visualizer.GenerateMermaid(graphConfig)
		if err != nil {
			return err
		}

		fmt.Print(diagram) //nolint:forbidigo

		return nil
	}

	telemetryConfig, err := telemetry.LoadConfigFromEnv(appName, cfg.Environment)
	if err != nil {
		return err
	}

	if err := telemetry.Initialize(ctx, telemetryConfig); err != nil {
		return err
	}

	if h := telemetry.LogHandler(appName); h != nil {
		if _, err := logger.ConfigureLogging(appName, logger.WithHandler(h)); err != nil {
			return err
		}
	}

	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryConfig.Timeout)
		defer cancel()

		if err := telemetry.Shutdown(flushCtx); err != nil {
			logger.Get(ctx).Error("Failed to flush traces", "error", err)
		}
	}()

	if cfg.MetricsAddr != "" {
		serveMetrics(ctx, cfg.MetricsAddr)
	}

	opts := []world.Option{world.WithLogger(logger.Get(ctx).With("world", graphConfig.Name))}
	if cfg.Workers > 0 {
		opts = append(opts, world.WithWorkers(cfg.Workers))
	}

	if cfg.Shards > 0 {
		opts = append(opts, world.WithShards(cfg.Shards))
	}

	w := world.New(graphConfig.Name, opts...)
	defer w.Close()

	if err := spawnEntities(ctx, w, graphConfig, cfg); err != nil {
		return err
	}

	defer despawnAll(w)

	frame := time.Second / time.Duration(cfg.FrameRate)

	return w.Run(ctx, frame)
}

// loadGraph reads the graph at path, or the embedded guard graph when path
// is empty.
func loadGraph(path string) (*graph.Config, error) {
	if path == "" {
		return graph.LoadConfigFromFS(graphs, "graphs/guard.yaml")
	}

	return graph.LoadConfig(path)
}

// spawnEntities builds one machine per entity. Each entity gets its own
// conditions so that random encounters differ between entities.
func spawnEntities(ctx context.Context, w *world.World, graphConfig *graph.Config, cfg Config) error {
	var observers []fsm.Option

	observers = append(observers, fsm.WithObserver(fsm.NewMetricsObserver()))

	if cfg.Trace {
		observers = append(observers, fsm.WithObserver(fsm.NewTracingObserver(ctx)))
	}

	for i := range cfg.Entities {
		name := graphConfig.Name + "-" + strconv.Itoa(i)

		opts := observers
		if cfg.LogMachines {
			entityCtx := logger.With(ctx, "entity", name)
			opts = append(opts[:len(opts):len(opts)], fsm.WithObserver(fsm.NewLoggingObserver(entityCtx)))
		}

		m, err := graph.Build(graphConfig, encounterConditions(rand.New(rand.NewPCG(uint64(i), 0))), opts...) //nolint:gosec
		if err != nil {
			return fmt.Errorf("failed to build entity %s: %w", name, err)
		}

		w.Spawn(name, m)
	}

	logger.Get(ctx).Info("Entities spawned", "count", cfg.Entities, "graph", graphConfig.Name)

	return nil
}

// encounterConditions returns the conditions used by the embedded graph.
// Enemies appear and leave at random; ammunition runs out after a few
// frames of firing.
func encounterConditions(rng *rand.Rand) graph.Conditions {
	const (
		spotChance = 0.02
		loseChance = 0.01
		magazine   = 5
	)

	shots := 0

	return graph.Conditions{
		"enemy_visible": func(fsm.State) bool {
			return rng.Float64() < spotChance
		},
		"enemy_gone": func(from fsm.State) bool {
			return from.Time() > 1 && rng.Float64() < loseChance
		},
		"out_of_ammo": func(fsm.State) bool {
			shots++
			if shots >= magazine {
				shots = 0

				return true
			}

			return false
		},
	}
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second, //nolint:mnd
	}

	shutdown.BeforeShutdown(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:mnd
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Get(ctx).Error("Failed to stop metrics server", "error", err)
		}
	})

	go func() {
		logger.Get(ctx).Info("Serving metrics", "addr", addr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get(ctx).Error("Metrics server failed", "error", err)
		}
	}()
}

func despawnAll(w *world.World) {
	for _, id := range w.IDs() {
		w.Despawn(id)
	}
}
