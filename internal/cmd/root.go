// Package cmd implements the rateguard command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vnykmshr/rateguard/internal/config"
	"github.com/vnykmshr/rateguard/internal/observability"
)

// Version info set by main package
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{"dev", "unknown", "unknown"}

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// flagKeys maps config keys to the flags that override them. Only flags
// defined on the executing command are bound.
var flagKeys = map[string]string{
	"verbose":       "verbose",
	"metrics.addr":  "metrics-addr",
	"batch.input":   "input",
	"batch.workers": "workers",
	"gate.rpm":      "rpm",
	"client.model":  "model",
	"output.kind":   "output",
	"output.path":   "output-path",
	"dry_run":       "dry-run",
	"schedule.cron": "cron",
}

type options struct {
	v       *viper.Viper
	cfgFile string
	envFile string

	cfg    *config.Config
	logger *zap.Logger
}

// load resolves configuration for the executing command.
func (o *options) load(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return err
	}

	o.v = config.New()
	flags := cmd.Flags()
	for key, name := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := o.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}

	cfg, err := config.Load(o.v, o.cfgFile)
	if err != nil {
		return err
	}
	o.cfg = cfg

	observability.InitCLILogger("rateguard", cfg.Verbose)
	o.logger = observability.CLILogger
	o.logger.Debug("Configuration loaded",
		zap.String("config_file", o.v.ConfigFileUsed()),
		zap.Float64("rpm", cfg.Gate.RPM),
		zap.Int("workers", cfg.Batch.Workers),
		zap.String("output", cfg.Output.Kind),
		zap.Bool("dry_run", cfg.DryRun))
	return nil
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "rateguard",
		Short: "Send batches of prompts to a generation API under a fixed rate limit",
		Long: `rateguard sends a batch of questions to a text generation API through a
single rate gate shared by all workers, so the configured requests per
minute are never exceeded no matter how many workers run.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (YAML)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.BoolP("verbose", "v", false, "verbose output (sets log level to debug)")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	root.AddCommand(newRunCmd(opts), newScheduleCmd(opts), newVersionCmd())
	return root
}

// addBatchFlags defines the flags shared by run and schedule.
func addBatchFlags(fs *pflag.FlagSet) {
	fs.String("input", "", "JSON file with an array of {\"Question Id\", \"Question\"} records")
	fs.Float64("rpm", 15, "maximum requests per minute across all workers")
	fs.Int("workers", 10, "number of concurrent workers")
	fs.String("model", "gemini-2.0-flash", "model name")
	fs.String("output", config.OutputFile, "where to store results: file or redis")
	fs.String("output-path", "", "output file (default generated_response_<model>.json)")
	fs.Bool("dry-run", false, "use an offline generator instead of calling the API")
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
