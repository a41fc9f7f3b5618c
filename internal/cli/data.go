package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "lineage-scanner/internal/errors"
	"lineage-scanner/internal/lineage"
	"lineage-scanner/internal/logging"
	"lineage-scanner/internal/models"
	"lineage-scanner/internal/swing"
)

// addDataCommands adds commands that move swing data in and out of the store.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newDetectCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <points.json>",
		Short: "Import swing points into the store",
		Long: `Import a batch of swing points grouped by (symbol, timeframe).

Each partition replaces the previously stored series of the same partition.
A partition with a missing field, an unknown kind or indexes that are not
strictly increasing is rejected before anything is written.`,
		Example: `  lineage import points.json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			var batch models.PointBatch
			if err := readJSONFile(args[0], &batch); err != nil {
				return err
			}

			type parsed struct {
				partition models.Partition
				points    []models.Point
			}
			all := make([]parsed, 0, len(batch.Partitions))
			seen := make(map[string]bool, len(batch.Partitions))
			for _, rec := range batch.Partitions {
				if seen[rec.Partition().String()] {
					return apperrors.NewPartitionError(rec.Symbol, rec.Timeframe, duplicatePartitionError(rec.Partition()))
				}
				seen[rec.Partition().String()] = true
				points, err := rec.ToPoints()
				if err != nil {
					return apperrors.NewPartitionError(rec.Symbol, rec.Timeframe, err)
				}
				if _, err := lineage.NewPointStore(points); err != nil {
					return apperrors.NewPartitionError(rec.Symbol, rec.Timeframe, err)
				}
				all = append(all, parsed{partition: rec.Partition(), points: points})
			}

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}

			summary := make(map[string]int, len(all))
			for _, p := range all {
				start := time.Now()
				err := dataStore.SavePoints(ctx, p.partition, p.points)
				logging.LogStoreCall(app.Logger, "save_points", len(p.points), time.Since(start), err)
				if err != nil {
					return err
				}
				summary[p.partition.String()] = len(p.points)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"imported": summary})
			}
			for _, p := range all {
				output.Printf("  %s %d points\n", PadRight(p.partition.String(), 20), len(p.points))
			}
			output.Success("Imported %d partitions", len(all))
			return nil
		},
	}
}

func newDetectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <candles.json>",
		Short: "Detect swing points from candles",
		Long: `Detect fractal swing points from an ordered JSON array of candles,
annotate liquidity sweeps and store both the candles and the points.

A bar is a peak when its high is the highest of the surrounding window of
left and right bars, a valley when its low is the lowest.`,
		Example: `  lineage detect eurusd_1h.json --symbol EURUSD --timeframe 1h
  lineage detect btc.json -s BTCUSDT -t 4h --left 3 --right 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			symbol, _ := cmd.Flags().GetString("symbol")
			timeframe, _ := cmd.Flags().GetString("timeframe")
			left, _ := cmd.Flags().GetInt("left")
			right, _ := cmd.Flags().GetInt("right")
			if left == 0 {
				left = app.Config.Swing.Left
			}
			if right == 0 {
				right = app.Config.Swing.Right
			}
			partition := models.Partition{Symbol: strings.ToUpper(symbol), Timeframe: timeframe}

			var candles []models.Candle
			if err := readJSONFile(args[0], &candles); err != nil {
				return err
			}
			for i := 1; i < len(candles); i++ {
				if !candles[i].Timestamp.After(candles[i-1].Timestamp) {
					return apperrors.NewValidationError(fmt.Sprintf("candles[%d].timestamp", i),
						candles[i].Timestamp, "candles must be in strictly increasing time order")
				}
			}

			detector := swing.NewDetector(left, right)
			points := detector.Detect(candles)
			if points == nil {
				points = []models.Point{}
			}

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}
			start := time.Now()
			err = dataStore.SaveCandles(ctx, partition, candles)
			logging.LogStoreCall(app.Logger, "save_candles", len(candles), time.Since(start), err)
			if err != nil {
				return err
			}
			start = time.Now()
			err = dataStore.SavePoints(ctx, partition, points)
			logging.LogStoreCall(app.Logger, "save_points", len(points), time.Since(start), err)
			if err != nil {
				return err
			}

			peaks, valleys, swept := 0, 0, 0
			for _, p := range points {
				if p.Kind == models.KindPeak {
					peaks++
				} else {
					valleys++
				}
				if len(p.SweptBy) > 0 {
					swept++
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"partition": partition,
					"candles":   len(candles),
					"points":    len(points),
					"peaks":     peaks,
					"valleys":   valleys,
					"swept":     swept,
				})
			}
			output.Bold("%s", partition)
			output.Printf("  Candles: %d\n", len(candles))
			output.Printf("  Peaks:   %d\n", peaks)
			output.Printf("  Valleys: %d\n", valleys)
			output.Printf("  Swept:   %d\n", swept)
			output.Success("Stored %d swing points", len(points))
			return nil
		},
	}

	cmd.Flags().StringP("symbol", "s", "", "symbol of the candle series")
	cmd.Flags().StringP("timeframe", "t", "", "timeframe of the candle series")
	cmd.Flags().Int("left", 0, "bars before a pivot (default from config)")
	cmd.Flags().Int("right", 0, "bars after a pivot (default from config)")
	cmd.MarkFlagRequired("symbol")
	cmd.MarkFlagRequired("timeframe")

	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored swing points",
		Long:  "Write stored swing points in the same batch format accepted by import.",
		Example: `  lineage export > points.json
  lineage export --symbol EURUSD --output eurusd.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			symbol, _ := cmd.Flags().GetString("symbol")
			timeframe, _ := cmd.Flags().GetString("timeframe")
			path, _ := cmd.Flags().GetString("output")

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}
			partitions, err := selectPartitions(ctx, dataStore, symbol, timeframe)
			if err != nil {
				return err
			}

			batch := models.PointBatch{Partitions: make([]models.PartitionRecord, 0, len(partitions))}
			for _, p := range partitions {
				points, err := dataStore.GetPoints(ctx, p)
				if err != nil {
					return err
				}
				rec := models.PartitionRecord{Symbol: p.Symbol, Timeframe: p.Timeframe}
				for _, pt := range points {
					rec.Points = append(rec.Points, models.NewPointRecord(pt))
				}
				batch.Partitions = append(batch.Partitions, rec)
			}

			if path == "" {
				return NewOutput(cmd).JSON(batch)
			}
			data, err := json.MarshalIndent(batch, "", "  ")
			if err != nil {
				return err
			}
			return os.WriteFile(path, data, 0644)
		},
	}

	cmd.Flags().StringP("symbol", "s", "", "only export this symbol")
	cmd.Flags().StringP("timeframe", "t", "", "only export this timeframe")
	cmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	return cmd
}

// pointLister is the part of the store needed to enumerate partitions.
type pointLister interface {
	ListPartitions(ctx context.Context) ([]models.Partition, error)
}

// selectPartitions lists stored partitions, optionally narrowed by symbol and
// timeframe.
func selectPartitions(ctx context.Context, src pointLister, symbol, timeframe string) ([]models.Partition, error) {
	all, err := src.ListPartitions(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Partition
	for _, p := range all {
		if symbol != "" && !strings.EqualFold(p.Symbol, symbol) {
			continue
		}
		if timeframe != "" && p.Timeframe != timeframe {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// readJSONFile decodes path into v. Unknown fields are rejected.
func readJSONFile(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.NewDataError("json", path, "decode failed", fmt.Errorf("%w: %v", apperrors.ErrMalformedInput, err))
	}
	return nil
}
