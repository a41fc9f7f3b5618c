package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	apperrors "lineage-scanner/internal/errors"
	"lineage-scanner/internal/lineage"
	"lineage-scanner/internal/logging"
	"lineage-scanner/internal/models"
	"lineage-scanner/internal/observability"
	"lineage-scanner/internal/scanner"
	"lineage-scanner/internal/store"
)

// addScanCommands adds the scan and results commands.
func addScanCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newResultsCmd(app))
}

// batchSource serves partitions of an interchange batch to the scanner so
// that a malformed partition fails on its own. A partition listed more than
// once is malformed.
type batchSource struct {
	records    map[string]models.PartitionRecord
	duplicated map[string]bool
}

func newBatchSource(batch models.PointBatch) (*batchSource, []models.Partition) {
	src := &batchSource{
		records:    make(map[string]models.PartitionRecord, len(batch.Partitions)),
		duplicated: make(map[string]bool),
	}
	partitions := make([]models.Partition, 0, len(batch.Partitions))
	for _, rec := range batch.Partitions {
		p := rec.Partition()
		if _, dup := src.records[p.String()]; dup {
			src.duplicated[p.String()] = true
			continue
		}
		src.records[p.String()] = rec
		partitions = append(partitions, p)
	}
	return src, partitions
}

func (b *batchSource) GetPoints(ctx context.Context, p models.Partition) ([]models.Point, error) {
	if b.duplicated[p.String()] {
		return nil, duplicatePartitionError(p)
	}
	rec, ok := b.records[p.String()]
	if !ok {
		return nil, apperrors.ErrDataNotFound
	}
	return rec.ToPoints()
}

func duplicatePartitionError(p models.Partition) error {
	return apperrors.NewValidationError("partitions", p.String(), "partition appears more than once in the batch")
}

// partitionView is the JSON form of one partition outcome.
type partitionView struct {
	Partition models.Partition    `json:"partition"`
	Stats     lineage.Stats       `json:"stats"`
	Error     string              `json:"error,omitempty"`
	Instances []*lineage.Instance `json:"instances"`
}

// scanView is the JSON form of a scan run.
type scanView struct {
	RunID      string          `json:"run_id"`
	Duration   string          `json:"duration"`
	Survivors  int             `json:"survivors"`
	Failed     int             `json:"failed"`
	Partitions []partitionView `json:"partitions"`
}

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan swing points for configured chains",
		Long: `Run the configured chain specification over every stored partition, or
over a points file, one worker task per (symbol, timeframe) partition.

A partition that fails is reported and yields no instances; the others are
unaffected. Surviving instances are stored under a new run ID unless
--no-save is given.`,
		Example: `  lineage scan
  lineage scan --symbol EURUSD --json
  lineage scan --points points.json --no-save
  lineage scan --metrics-file /var/lib/node_exporter/lineage.prom`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			pointsFile, _ := cmd.Flags().GetString("points")
			symbol, _ := cmd.Flags().GetString("symbol")
			timeframe, _ := cmd.Flags().GetString("timeframe")
			metricsFile, _ := cmd.Flags().GetString("metrics-file")
			noSave, _ := cmd.Flags().GetBool("no-save")
			workers, _ := cmd.Flags().GetInt("workers")
			if !cmd.Flags().Changed("workers") {
				workers = app.Config.Engine.Workers
			}

			spec, err := app.Config.ChainSpec()
			if err != nil {
				return err
			}
			engine, err := lineage.NewEngine(spec, app.Config.EngineOptions())
			if err != nil {
				return err
			}

			if app.Metrics == nil {
				app.Metrics = observability.NewMetrics("")
			}
			runID := uuid.NewString()
			logger := logging.WithOperation(logging.WithRunID(app.Logger, runID), "scan")

			var (
				src        scanner.PointSource
				partitions []models.Partition
				dataStore  store.DataStore
			)
			if pointsFile != "" {
				var batch models.PointBatch
				if err := readJSONFile(pointsFile, &batch); err != nil {
					return err
				}
				bs, all := newBatchSource(batch)
				src = bs
				for _, p := range all {
					if (symbol == "" || p.Symbol == symbol) && (timeframe == "" || p.Timeframe == timeframe) {
						partitions = append(partitions, p)
					}
				}
			}
			if pointsFile == "" || !noSave {
				dataStore, err = app.openStore()
				if err != nil {
					return err
				}
			}
			if pointsFile == "" {
				src = dataStore
				partitions, err = selectPartitions(ctx, dataStore, symbol, timeframe)
				if err != nil {
					return err
				}
			}
			if len(partitions) == 0 {
				output.Warning("No partitions to scan")
				return nil
			}

			started := time.Now().UTC()
			s := scanner.New(engine, workers, app.Metrics, logger)
			report := s.ScanSource(ctx, src, partitions)
			finished := time.Now().UTC()

			failed := len(report.Failures())
			if !noSave {
				if err := persistReport(ctx, dataStore, app, runID, report); err != nil {
					return err
				}
				err := dataStore.SaveRun(ctx, store.ScanRun{
					ID:         runID,
					StartedAt:  started,
					FinishedAt: finished,
					Partitions: len(partitions),
					Failed:     failed,
					Survivors:  report.Survivors(),
				})
				if err != nil {
					return err
				}
			}
			app.Metrics.RecordRun(finished.Unix())

			if metricsFile != "" {
				if err := app.Metrics.WriteTextfile(metricsFile); err != nil {
					logger.Warn().Err(err).Str("path", metricsFile).Msg("Failed to write metrics file")
				}
			}

			view := newScanView(runID, report)
			if output.IsJSON() {
				if err := output.JSON(view); err != nil {
					return err
				}
			} else {
				displayScan(output, view, noSave)
			}

			if failed == len(partitions) {
				return fmt.Errorf("all %d partitions failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().String("points", "", "scan a points file instead of the store")
	cmd.Flags().StringP("symbol", "s", "", "only scan this symbol")
	cmd.Flags().StringP("timeframe", "t", "", "only scan this timeframe")
	cmd.Flags().Int("workers", 0, "worker count (default from config, 0 = NumCPU)")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.Flags().Bool("no-save", false, "do not persist the results")

	return cmd
}

func persistReport(ctx context.Context, dataStore store.DataStore, app *App, runID string, report *scanner.Report) error {
	for _, pr := range report.Results {
		if pr.Err != nil || len(pr.Result.Instances) == 0 {
			continue
		}
		start := time.Now()
		err := dataStore.SaveInstances(ctx, runID, pr.Partition, pr.Result.Instances)
		app.Metrics.RecordStoreCall("save_instances", time.Since(start).Seconds(), err)
		logging.LogStoreCall(app.Logger, "save_instances", len(pr.Result.Instances), time.Since(start), err)
		if err != nil {
			return err
		}
	}
	return nil
}

func newScanView(runID string, report *scanner.Report) scanView {
	view := scanView{
		RunID:      runID,
		Duration:   report.Duration.String(),
		Survivors:  report.Survivors(),
		Partitions: make([]partitionView, 0, len(report.Results)),
	}
	for _, pr := range report.Results {
		pv := partitionView{
			Partition: pr.Partition,
			Stats:     pr.Result.Stats,
			Instances: pr.Result.Instances,
		}
		if pr.Err != nil {
			pv.Error = pr.Err.Error()
			view.Failed++
		}
		view.Partitions = append(view.Partitions, pv)
	}
	return view
}

func displayScan(output *Output, view scanView, noSave bool) {
	for _, pv := range view.Partitions {
		output.Bold("%s", pv.Partition)
		if pv.Error != "" {
			output.Error("  %s", pv.Error)
			output.Println()
			continue
		}
		st := pv.Stats
		output.Dim("  points %d  anchors %d  extracted %d  mitigated %d  deselected %d",
			st.Points, st.Anchors, st.Extracted, st.Mitigated, st.Deselected)
		for _, inst := range pv.Instances {
			status := output.Green(PadRight(string(inst.POI.Status), 8))
			if inst.POI.Status == lineage.POIBroken {
				status = output.Red(PadRight(string(inst.POI.Status), 8))
			}
			output.Printf("  %s %s %s threshold %s\n",
				PadRight(FormatIndexes(inst.Indexes()), 28),
				status,
				PadRight(FormatTags(inst.Tags()), 24),
				FormatPrice(inst.POI.Threshold))
		}
		output.Println()
	}

	output.Printf("Run %s: %d instances, %d failed partitions, %s\n",
		view.RunID, view.Survivors, view.Failed, view.Duration)
	if noSave {
		output.Dim("Results not saved")
	}
}

func newResultsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "List stored scan results",
		Long:  "List instances stored by a scan run. Defaults to the latest run.",
		Example: `  lineage results
  lineage results --status broken --symbol EURUSD
  lineage results --run 2f0c... --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			filter := store.ResultFilter{}
			filter.RunID, _ = cmd.Flags().GetString("run")
			filter.Symbol, _ = cmd.Flags().GetString("symbol")
			filter.Timeframe, _ = cmd.Flags().GetString("timeframe")
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			status, _ := cmd.Flags().GetString("status")
			filter.Status = lineage.POIStatus(status)

			dataStore, err := app.openStore()
			if err != nil {
				return err
			}
			if filter.RunID == "" {
				filter.RunID, err = dataStore.LatestRunID(ctx)
				if apperrors.Is(err, apperrors.ErrDataNotFound) {
					output.Warning("No scan runs stored yet. Run 'lineage scan' first.")
					return nil
				}
				if err != nil {
					return err
				}
			}

			results, err := dataStore.GetResults(ctx, filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				instances := make([]map[string]interface{}, 0, len(results))
				for _, r := range results {
					inst, err := r.Instance()
					if err != nil {
						return apperrors.NewDataError("result", r.Partition.Symbol, "corrupt payload", err)
					}
					instances = append(instances, map[string]interface{}{
						"partition": r.Partition,
						"instance":  inst,
					})
				}
				return output.JSON(map[string]interface{}{
					"run_id":  filter.RunID,
					"results": instances,
				})
			}

			output.Bold("Run %s", filter.RunID)
			if len(results) == 0 {
				output.Dim("No results")
				return nil
			}
			output.Printf("%s %s %s %s\n",
				PadRight("PARTITION", 16), PadRight("CHAIN", 28), PadRight("STATUS", 8), "TAGS")
			for _, r := range results {
				output.Printf("%s %s %s %s\n",
					PadRight(TruncateString(r.Partition.String(), 16), 16),
					PadRight(r.InstanceID, 28),
					PadRight(string(r.POIStatus), 8),
					FormatTags(r.Tags))
			}
			output.Dim("%d results", len(results))
			return nil
		},
	}

	cmd.Flags().String("run", "", "run ID (default: latest run)")
	cmd.Flags().StringP("symbol", "s", "", "filter by symbol")
	cmd.Flags().StringP("timeframe", "t", "", "filter by timeframe")
	cmd.Flags().String("status", "", "filter by POI status (pending, broken)")
	cmd.Flags().Int("limit", 0, "maximum number of results")

	return cmd
}
