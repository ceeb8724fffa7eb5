package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/talgya/windfield/internal/config"
	"github.com/talgya/windfield/internal/observability"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries state shared by every subcommand.
type app struct {
	cfgFile   string
	cfg       config.Config
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "windsim",
		Short:         "Procedural wind field simulator",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg

			logger, closer := observability.NewLogger(cfg.Logging, cmd.ErrOrStderr())
			slog.SetDefault(logger)
			a.logCloser = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./windfield.yaml)")
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	root.AddCommand(newRunCmd(a), newTraceCmd(a), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the windsim version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
