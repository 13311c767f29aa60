package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"typeproof/internal/config"
	"typeproof/internal/logging"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, inspect and validate configuration files",
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	cmd.AddCommand(newConfigValidateCommand(rootOpts))
	cmd.AddCommand(newConfigWatchCommand(rootOpts))
	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with the default settings",
		Long: `Write the default configuration. The format follows the file extension
(.toml, .json, .yaml or .yml); the default path is the platform config dir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return NewExitError(ExitCommandError, fmt.Sprintf("%s already exists (use --force to overwrite)", path))
			}
			if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
				return WrapExitError(ExitCommandError, "write config", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if rootOpts.json() {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}
}

func newConfigValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and list every problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig(rootOpts)
			if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
				return nil
			}

			var verrs config.ValidationErrors
			if !errors.As(err, &verrs) {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Configuration has %d problem(s):\n", len(verrs))
			for _, v := range verrs {
				fmt.Fprintf(w, "  %s: %s\n", v.Field, v.Message)
			}
			return NewExitError(ExitFailure, "invalid configuration")
		},
	}
}

func newConfigWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Report configuration changes as the file is edited",
		Long: `Watch the configuration file and print each changed setting until
interrupted. Changes are also written to the audit log when one is
configured. Invalid edits are reported and otherwise ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if path == "" {
				if path = config.FindConfigFile(); path == "" {
					path = config.ConfigPath()
				}
			}

			loader := config.NewLoader(path)
			cfg, err := loader.Load()
			if err != nil {
				return WrapExitError(ExitFailure, "load config", err)
			}
			defer loader.Close()

			audit, err := logging.NewAuditLogger(&logging.AuditLoggerConfig{FilePath: cfg.Logging.AuditPath})
			if err != nil {
				return WrapExitError(ExitCommandError, "open audit log", err)
			}
			defer audit.Close()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			loader.OnChange(func(old, new *config.Config) {
				for _, c := range config.Diff(old, new) {
					fmt.Fprintf(w, "%s: %s -> %s\n", c.Setting, c.OldValue, c.NewValue)
					_ = audit.LogConfigChange(ctx, c.Setting, c.OldValue, c.NewValue)
				}
			})
			if err := loader.Watch(); err != nil {
				return WrapExitError(ExitCommandError, "watch config", err)
			}
			fmt.Fprintf(w, "Watching %s\n", path)

			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-loader.Errors():
					fmt.Fprintf(cmd.ErrOrStderr(), "config error: %v\n", err)
				}
			}
		},
	}
}
