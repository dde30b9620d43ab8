package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/turtacn/KappaForge/internal/config"
	"github.com/turtacn/KappaForge/internal/domain/system"
	"github.com/turtacn/KappaForge/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KappaForge/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KappaForge/internal/interfaces/rest"
	"github.com/turtacn/KappaForge/internal/models"
	"github.com/turtacn/KappaForge/internal/random"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// statusPublishInterval is how many events pass between status snapshots.
const statusPublishInterval = 100

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the built-in models",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range models.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newRunCommand() *cobra.Command {
	var (
		configPath string
		modelName  string
		seed       int64
		maxEvents  int64
		maxTime    float64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a built-in model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			// Flags override file and environment.
			if modelName != "" {
				cfg.Simulation.Model = modelName
			}
			if seed != 0 {
				cfg.Simulation.Seed = seed
			}
			if maxEvents != 0 {
				cfg.Simulation.MaxEvents = maxEvents
			}
			if maxTime != 0 {
				cfg.Simulation.MaxTime = maxTime
			}
			return runSimulation(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "built-in model to run")
	cmd.Flags().Int64Var(&seed, "seed", 0, "PRNG seed (overrides configuration)")
	cmd.Flags().Int64Var(&maxEvents, "events", 0, "stop after this many events")
	cmd.Flags().Float64Var(&maxTime, "time", 0, "stop once the simulated clock passes this")
	return cmd
}

func runSimulation(cmd *cobra.Command, cfg *config.Config) error {
	logger, err := logging.NewLogger(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
	if err != nil {
		return err
	}
	logging.SetDefault(logger)

	opts := []system.Option{
		system.WithLogger(logger),
		system.WithRandom(random.NewSource(cfg.Simulation.Seed)),
		system.WithMonitor(),
		system.WithNullEventWarnThreshold(cfg.Simulation.NullWarnThreshold),
	}

	var metrics *prometheus.Metrics
	if cfg.Metrics.Enabled {
		metrics = prometheus.New(prometheus.Config{
			Namespace:       cfg.Metrics.Namespace,
			EnableGoMetrics: cfg.Metrics.EnableGoMetrics,
		})
		opts = append(opts, system.WithMetrics(metrics))
		go serveHTTP(logger, cfg.Metrics.Addr, metrics.Handler())
	}

	sys, err := models.Build(cfg.Simulation.Model, cfg.Simulation.Seed, opts...)
	if err != nil {
		return err
	}

	var store *rest.Store
	if cfg.API.Enabled {
		store = rest.NewStore()
		store.Set(rest.SnapshotOf(sys, cfg.Simulation.Model))
		router := rest.NewRouter(rest.RouterConfig{
			Store:  store,
			Logger: logger,
			Mode:   cfg.API.Mode,
		})
		go serveHTTP(logger, cfg.API.Addr, router)
	}

	logger.Info("starting simulation",
		logging.String("model", cfg.Simulation.Model),
		logging.Int64("seed", cfg.Simulation.Seed),
		logging.String("run_id", sys.RunID()))

	for {
		if cfg.Simulation.MaxEvents > 0 && sys.EventCount() >= cfg.Simulation.MaxEvents {
			break
		}
		if cfg.Simulation.MaxTime > 0 && sys.Time() >= cfg.Simulation.MaxTime {
			break
		}
		if err := sys.Update(); err != nil {
			if errors.IsCode(err, errors.CodeZeroReactivity) {
				logger.Info("reactivity exhausted", logging.Float64("time", sys.Time()))
				break
			}
			return err
		}
		if store != nil && sys.EventCount()%statusPublishInterval == 0 {
			store.Set(rest.SnapshotOf(sys, cfg.Simulation.Model))
		}
	}

	if store != nil {
		store.Set(rest.SnapshotOf(sys, cfg.Simulation.Model))
	}
	logger.Info("simulation finished",
		logging.Float64("time", sys.Time()),
		logging.Int64("events", sys.EventCount()))

	reportObservables(cmd, sys)
	return nil
}

// reportObservables prints the final observable values to stdout.
func reportObservables(cmd *cobra.Command, sys *system.System) {
	for _, name := range sys.ObservableNames() {
		if v, err := sys.Lookup(name); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %g\n", name, v)
		}
	}
}

// serveHTTP runs an auxiliary HTTP listener for the lifetime of the process.
func serveHTTP(logger logging.Logger, addr string, handler http.Handler) {
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Error("http listener stopped", logging.String("addr", addr), logging.Err(err))
	}
}
