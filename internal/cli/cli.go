package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/chazu/ablation/pkg/config"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the ablation CLI.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	var (
		verbose    bool
		configPath string
	)

	root := &cobra.Command{
		Use:          "ablation",
		Short:        "Place ablation probes along planned trajectories and measure tumor margins",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			logger := newLogger(cmd.ErrOrStderr(), level)

			cfg, unknown, err := config.Load(configPath)
			if err != nil {
				return err
			}
			for _, k := range unknown {
				logger.Warn("ignoring unknown config key", "key", k, "file", configPath)
			}

			ctx := withLogger(cmd.Context(), logger)
			cmd.SetContext(withConfig(ctx, cfg))
			return nil
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("ablation %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "TOML configuration file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newAlignCmd())
	root.AddCommand(newRegisterCmd())

	return root
}

// defaultConfigPath is ablation.toml in the working directory, overridden
// by $ABLATION_CONFIG. A missing file means built-in defaults.
func defaultConfigPath() string {
	if p := os.Getenv("ABLATION_CONFIG"); p != "" {
		return p
	}
	return "ablation.toml"
}
