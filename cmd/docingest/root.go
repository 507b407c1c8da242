package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
	"github.com/fpang/doc-ingest-pipeline/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type commandContext struct {
	v          *viper.Viper
	configFlag string
	logLevel   string

	cfg *config.Config
}

func (c *commandContext) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	if err := bindFlags(cmd, c.v); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.v, strings.TrimSpace(c.configFlag))
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	c := &commandContext{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "docingest",
		Short: "Document ingestion pipeline for the vector search service",
		Long: `docingest moves a document corpus into the vector search service in four
stages: acquire (optional download from S3-compatible storage), discover,
ingest (batched uploads) and verify (store counts reconciled against the run).

Options come from defaults, an optional --config file, DOCINGEST_* environment
variables (e.g. DOCINGEST_INGEST_BATCH_SIZE) and flags, in increasing priority.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Init(c.logLevel)
			if skipConfig(cmd) {
				return nil
			}
			_, err := c.loadConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configFlag, "config", "c", os.Getenv("DOCINGEST_CONFIG"), "Configuration file (TOML, YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("artifacts-dir", "", "Directory for stage artifacts (required by the per-stage commands)")

	rootCmd.AddCommand(newRunCommand(c))
	rootCmd.AddCommand(newAcquireCommand(c))
	rootCmd.AddCommand(newDiscoverCommand(c))
	rootCmd.AddCommand(newIngestCommand(c))
	rootCmd.AddCommand(newVerifyCommand(c))
	rootCmd.AddCommand(newProbeCommand(c))

	return rootCmd
}

// skipConfig reports whether cmd only prints help and needs no configuration.
func skipConfig(cmd *cobra.Command) bool {
	if cmd == cmd.Root() {
		return true
	}
	for p := cmd; p != nil; p = p.Parent() {
		if p.Name() == "help" || p.Name() == "completion" {
			return true
		}
	}
	return false
}

// commandCtx returns the command's context, falling back to Background when
// the command was executed without one.
func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
