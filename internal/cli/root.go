// Package cli provides the command-line interface for the lineage scanner.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lineage-scanner/internal/config"
	"lineage-scanner/internal/logging"
	"lineage-scanner/internal/observability"
	"lineage-scanner/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies.
type App struct {
	ConfigDir string
	Config    *config.Config
	Logger    zerolog.Logger
	Store     store.DataStore
	Metrics   *observability.Metrics
}

// openStore opens the configured SQLite store once.
func (app *App) openStore() (store.DataStore, error) {
	if app.Store != nil {
		return app.Store, nil
	}
	dataStore, err := store.NewSQLiteStore(app.Config.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", app.Config.Store.Path, err)
	}
	app.Store = dataStore
	app.Logger.Debug().Str("path", app.Config.Store.Path).Msg("SQLite store initialized")
	return dataStore, nil
}

// Close releases the store if it was opened.
func (app *App) Close() error {
	if app.Store == nil {
		return nil
	}
	return app.Store.Close()
}

// skipConfig marks commands that run without a loaded configuration.
const skipConfig = "skip-config"

// NewRootCmd creates the root command for the CLI. The configuration is
// loaded lazily so that --config is honoured.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lineage",
		Short: "Lineage Scanner - sequential swing pattern extraction",
		Long: `Lineage Scanner finds ranked chains of swing points (peaks and valleys)
that satisfy a configured chain specification, tags invalidating events,
locates each chain's point of interest and filters the results.

Use 'lineage config init' to write a commented configuration template.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dir, _ := cmd.Flags().GetString("config"); dir != "" {
				app.ConfigDir = dir
			}
			if cmd.Annotations[skipConfig] != "true" && app.Config == nil {
				cfg, err := config.Load(app.ConfigDir)
				if err != nil {
					return err
				}
				app.Config = cfg
				app.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/lineage-scanner)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addDataCommands(rootCmd, app)
	addScanCommands(rootCmd, app)
	addHelpCommands(rootCmd)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Lineage Scanner v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage the scanner configuration.",
	}

	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented configuration template",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			force, _ := cmd.Flags().GetBool("force")
			dir := app.ConfigDir
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			path, err := config.WriteTemplate(dir, force)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Success("Configuration written to %s", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing configuration file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration directory path",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			dir := app.ConfigDir
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				output.JSON(map[string]string{"path": dir})
			} else {
				output.Println(dir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Chain")
	for _, l := range cfg.Chain.Links {
		if l.Rank == 1 {
			kind := l.Kind
			if kind == "" {
				kind = "any"
			}
			output.Printf("  Rank %d:  anchor (%s)\n", l.Rank, kind)
			continue
		}
		constraint := l.Constraint
		if constraint == "" {
			constraint = "none"
		}
		output.Printf("  Rank %d:  %s, %s", l.Rank, l.Relation, constraint)
		if l.CollectiveWindow > 0 {
			output.Printf(", window %d", l.CollectiveWindow)
		}
		output.Println()
	}
	output.Println()

	output.Bold("Filters")
	output.Printf("  POI Threshold Rank: %d\n", cfg.POI.ThresholdRank)
	output.Printf("  Mitigation Ranks:   %v\n", cfg.Mitigation.Ranks)
	for _, p := range cfg.Mitigation.Pairs {
		output.Printf("  Mitigation Pair:    %d -> %d\n", p.From, p.To)
	}
	if cfg.Selection.Rank > 0 {
		output.Printf("  Selection:          rank %d, %s\n", cfg.Selection.Rank, cfg.Selection.Mode)
	} else {
		output.Printf("  Selection:          disabled\n")
	}
	output.Println()

	output.Bold("Engine")
	output.Printf("  Workers:            %d\n", cfg.Engine.Workers)
	output.Printf("  Explore Alternates: %v\n", cfg.Engine.ExploreAlternatives)
	output.Printf("  Reject Intruders:   %v\n", cfg.Engine.RejectIntruders)
	output.Printf("  Reject Outlaws:     %v\n", cfg.Engine.RejectOutlaws)
	output.Printf("  Swing Widths:       %d/%d\n", cfg.Swing.Left, cfg.Swing.Right)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Store Path:         %s\n", cfg.Store.Path)
	output.Printf("  Log Level:          %s\n", cfg.Logging.Level)

	return nil
}
