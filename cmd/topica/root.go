package main

import (
	"fmt"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/topica/pkg/topica/config"
	"github.com/cognicore/topica/pkg/topica/store"
	"github.com/cognicore/topica/pkg/topica/store/memstore"
	"github.com/cognicore/topica/pkg/topica/store/sqlite"
)

// app is the state shared by every subcommand.
type app struct {
	configPath string
	dbPath     string
	logLevel   string
	dev        bool
	profile    string
	profileDir string

	cfg      config.Config
	logger   *zap.Logger
	profiler interface{ Stop() }
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "topica",
		Short:         "Topica - topic extraction for English and Spanish corpora",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "Path to topica.yaml (defaults apply when empty)")
	f.StringVar(&a.dbPath, "db", "", "Run database path, overrides store.path; \":memory\" keeps runs in memory")
	f.StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.BoolVar(&a.dev, "dev", false, "Human-readable development logging")
	f.StringVar(&a.profile, "profile", "", "Profile the command: cpu or mem")
	f.StringVar(&a.profileDir, "profile-dir", ".", "Directory for profile output")

	root.AddCommand(
		trainCmd(a),
		topicsCmd(a),
		runsCmd(a),
		preprocessCmd(a),
	)
	return root
}

func (a *app) setup() error {
	logger, err := newLogger(a.logLevel, a.dev)
	if err != nil {
		return err
	}
	a.logger = logger

	switch a.profile {
	case "":
	case "cpu":
		a.profiler = profile.Start(profile.CPUProfile, profile.ProfilePath(a.profileDir), profile.Quiet, profile.NoShutdownHook)
	case "mem":
		a.profiler = profile.Start(profile.MemProfile, profile.ProfilePath(a.profileDir), profile.Quiet, profile.NoShutdownHook)
	default:
		return fmt.Errorf("unknown profile mode %q, want cpu or mem", a.profile)
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Store.Path = a.dbPath
	}
	a.cfg = cfg
	return nil
}

func (a *app) teardown() {
	if a.profiler != nil {
		a.profiler.Stop()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// memoryPath selects the in-memory store.
const memoryPath = ":memory"

func (a *app) openStore(cmd *cobra.Command) (store.Store, error) {
	if a.cfg.Store.Path == memoryPath {
		return memstore.New(), nil
	}
	st, err := sqlite.OpenSQLite(cmd.Context(), a.cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open run store %s: %w", a.cfg.Store.Path, err)
	}
	return st, nil
}
