package main

import (
	"fmt"
	"time"

	"github.com/GriffinCanCode/executejs/backend/internal/app"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/logging"
	"github.com/spf13/cobra"
)

// exitError carries a process exit code without printing anything more;
// the command has already reported the failure.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// options are the global flags shared by every subcommand.
type options struct {
	configFile string
	verbose    bool
	cacheDir   string
	registry   string
	timeout    time.Duration
	baseDir    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "executejs",
		Short: "Run JavaScript in a sandboxed engine",
		Long: `executejs runs JavaScript, TypeScript and ES modules in a fresh sandboxed
engine per execution and prints everything the code writes to the console.

Packages are imported from the npm registry with the pkg: prefix and cached
on disk:

  import _ from 'pkg:lodash@4.17.21'
  import { nanoid } from 'pkg:nanoid'

Examples:
  executejs eval "console.log(1 + 1)"
  executejs run script.ts
  echo "console.log(1)" | executejs run -
  executejs serve --port 8000
  executejs cache list
  executejs cache prune "lodash@*"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (.toml, .yaml or .yml) overlaid on EXECUTEJS_* environment")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&opts.cacheDir, "cache-dir", "", "package cache directory")
	flags.StringVar(&opts.registry, "registry", "", "npm registry base URL")
	flags.DurationVar(&opts.timeout, "timeout", 0, "execution timeout (e.g. 10s)")
	flags.StringVar(&opts.baseDir, "base-dir", "", "directory relative imports resolve against")

	root.AddCommand(
		newEvalCmd(opts),
		newRunCmd(opts),
		newServeCmd(opts),
		newCacheCmd(opts),
	)
	return root
}

// loadConfig merges environment, config file and flags, flags winning.
func (o *options) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFile(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	if o.cacheDir != "" {
		cfg.Cache.Dir = o.cacheDir
	}
	if o.registry != "" {
		cfg.Registry.BaseURL = o.registry
	}
	if o.timeout > 0 {
		cfg.Execution.Timeout = config.Duration(o.timeout)
	}
	if o.baseDir != "" {
		cfg.Execution.BaseDir = o.baseDir
	}
	return cfg, nil
}

// quietLogging lowers the default level to warn for commands whose stderr
// belongs to the script. -v and an explicitly configured level still apply.
func (o *options) quietLogging(cfg *config.Config) {
	if !o.verbose && cfg.Logging.Level == config.Default().Logging.Level {
		cfg.Logging.Level = "warn"
	}
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Development = cfg.Logging.Development
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

// newEngine builds the execution stack for one command invocation.
func (o *options) newEngine(cfg *config.Config) (*app.Engine, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger)
}
