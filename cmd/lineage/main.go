package main

import (
	"fmt"
	"os"

	"lineage-scanner/internal/cli"
	"lineage-scanner/internal/logging"
)

func main() {
	app := &cli.App{Logger: logging.NewLogger()}
	rootCmd := cli.NewRootCmd(app)

	err := rootCmd.Execute()
	if cerr := app.Close(); cerr != nil {
		app.Logger.Warn().Err(cerr).Msg("Failed to close store")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
