// Package main is the entry point for the pluginhost CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/pluginhost/internal/action"
	"github.com/flemzord/pluginhost/internal/config"
	"github.com/flemzord/pluginhost/internal/core"
	"github.com/flemzord/pluginhost/internal/schedule"
	"github.com/flemzord/pluginhost/pkg/app"

	// Compiled-in modules.
	_ "github.com/flemzord/pluginhost/internal/cron"
	_ "github.com/flemzord/pluginhost/internal/gateway"
	_ "github.com/flemzord/pluginhost/internal/host"
	_ "github.com/flemzord/pluginhost/modules/history/sqlite"
	_ "github.com/flemzord/pluginhost/modules/telemetry/otel"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pluginhost",
		Short:         "Host for file-browser custom-action plugins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd(), pluginCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pluginhost %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.RegisteredModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	var (
		cfgPath string
		dataDir string
		debug   bool
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the plugin host with all configured modules",
		RunE: func(_ *cobra.Command, _ []string) error {
			params := app.RunParams{
				ConfigPath: cfgPath,
				DataDir:    dataDir,
				Version:    version,
				Commit:     commit,
				Date:       date,
			}
			if debug {
				level := slog.LevelDebug
				params.LogLevel = &level
			}
			return app.Run(params)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Override data_dir from the configuration")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log at debug level")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Host configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate a host configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ids := config.Resolve(cfg)
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}

func pluginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Plugin configuration tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <ca.control>",
		Short: "Parse a plugin configuration and report its actions and cron jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkPlugin(cmd.OutOrStdout(), args[0])
		},
	})
	return cmd
}

func checkPlugin(out io.Writer, path string) error {
	c, err := action.Load(path)
	if err != nil {
		return err
	}
	jobs, errs := schedule.ParseJobs(&c.CronJobs)

	fmt.Fprintf(out, "Plugin %q\n", c.PluginName)
	fmt.Fprintf(out, "\nActions (%d):\n", len(c.Actions()))
	for _, a := range c.Actions() {
		fmt.Fprintf(out, "  %s  endpoint=%s validate=%s\n", a.Name, a.Endpoint, a.Validate)
	}
	if len(jobs) > 0 {
		fmt.Fprintf(out, "\nCron jobs (%d):\n", len(jobs))
		for _, j := range jobs {
			fmt.Fprintf(out, "  %s  entries=%d start=%v\n", j.Name, len(j.Entries), j.RunOnStart)
		}
	}
	if len(errs) > 0 {
		fmt.Fprintf(out, "\nProblems (%d):\n", len(errs))
		for _, err := range errs {
			fmt.Fprintf(out, "  %v\n", err)
		}
		return fmt.Errorf("%s: %w", path, errors.Join(errs...))
	}
	return nil
}
