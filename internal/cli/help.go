package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// addHelpCommands adds documentation commands.
func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newExamplesCmd())
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "examples",
		Short:       "Show common workflows",
		Long:        "Display example command sequences for common workflows.",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Common Workflow Examples")
			output.Println()

			examples := []struct {
				title    string
				commands []string
			}{
				{
					title: "First Run",
					commands: []string{
						"lineage config init             # Write lineage.toml",
						"lineage config show             # Review the chain",
					},
				},
				{
					title: "From Candles",
					commands: []string{
						"lineage detect eurusd.json -s EURUSD -t 1h  # Swing points + sweeps",
						"lineage scan --symbol EURUSD    # Scan one symbol",
						"lineage results --status pending # Unbroken instances",
					},
				},
				{
					title: "From Swing Points",
					commands: []string{
						"lineage import points.json      # Load partitions",
						"lineage scan --json             # Scan everything",
						"lineage scan --points points.json --no-save  # Dry run on a file",
					},
				},
				{
					title: "Monitoring",
					commands: []string{
						"lineage scan --metrics-file /var/lib/node_exporter/lineage.prom",
						"lineage results --run <id> --json",
					},
				},
			}

			for _, ex := range examples {
				output.Bold(ex.title)
				for _, c := range ex.commands {
					parts := strings.SplitN(c, "#", 2)
					if len(parts) == 2 {
						output.Printf("  %s %s\n", output.Cyan(strings.TrimSpace(parts[0])), output.DimText(strings.TrimSpace(parts[1])))
					} else {
						output.Printf("  %s\n", output.Cyan(c))
					}
				}
				output.Println()
			}

			return nil
		},
	}
}
