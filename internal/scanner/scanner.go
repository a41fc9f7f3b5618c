// Package scanner fans pattern scans out across (symbol, timeframe)
// partitions. Each partition is an isolated task: its failure or panic yields
// an empty result and a logged PartitionError, never a process-wide abort.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	apperrors "lineage-scanner/internal/errors"
	"lineage-scanner/internal/lineage"
	"lineage-scanner/internal/logging"
	"lineage-scanner/internal/models"
	"lineage-scanner/internal/observability"
)

// PointSource loads the swing series of a partition.
type PointSource interface {
	GetPoints(ctx context.Context, partition models.Partition) ([]models.Point, error)
}

// Task is one partition with its series already loaded.
type Task struct {
	Partition models.Partition
	Points    []models.Point
}

// PartitionResult is the outcome of one partition task. Result is never nil;
// a failed partition carries an empty result and Err.
type PartitionResult struct {
	Partition models.Partition
	Result    *lineage.Result
	Err       error
	Duration  time.Duration
}

// PartitionInstance is an instance tagged with the partition it came from.
type PartitionInstance struct {
	Partition models.Partition  `json:"partition"`
	Instance  *lineage.Instance `json:"instance"`
}

// Report aggregates a scan across partitions in input order.
type Report struct {
	Results  []PartitionResult
	Duration time.Duration
}

// Instances concatenates the surviving instances of every partition.
func (r *Report) Instances() []PartitionInstance {
	var out []PartitionInstance
	for _, pr := range r.Results {
		for _, inst := range pr.Result.Instances {
			out = append(out, PartitionInstance{Partition: pr.Partition, Instance: inst})
		}
	}
	return out
}

// Failures returns the errors of failed partitions.
func (r *Report) Failures() []error {
	var errs []error
	for _, pr := range r.Results {
		if pr.Err != nil {
			errs = append(errs, pr.Err)
		}
	}
	return errs
}

// Survivors returns the total number of surviving instances.
func (r *Report) Survivors() int {
	n := 0
	for _, pr := range r.Results {
		n += len(pr.Result.Instances)
	}
	return n
}

// Scanner runs one engine over many partitions on a worker pool.
type Scanner struct {
	engine  *lineage.Engine
	workers int
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// New creates a scanner. workers <= 0 uses runtime.NumCPU(); metrics may be nil.
func New(engine *lineage.Engine, workers int, metrics *observability.Metrics, logger zerolog.Logger) *Scanner {
	return &Scanner{
		engine:  engine,
		workers: workers,
		metrics: metrics,
		logger:  logger,
	}
}

// Scan runs every task and waits for all of them.
func (s *Scanner) Scan(ctx context.Context, tasks []Task) *Report {
	return s.run(ctx, len(tasks), func(i int) models.Partition {
		return tasks[i].Partition
	}, func(ctx context.Context, i int) ([]models.Point, error) {
		return tasks[i].Points, nil
	})
}

// ScanSource loads each partition from src inside its task, then scans it.
func (s *Scanner) ScanSource(ctx context.Context, src PointSource, partitions []models.Partition) *Report {
	return s.run(ctx, len(partitions), func(i int) models.Partition {
		return partitions[i]
	}, func(ctx context.Context, i int) ([]models.Point, error) {
		start := time.Now()
		points, err := src.GetPoints(ctx, partitions[i])
		if s.metrics != nil {
			s.metrics.RecordStoreCall("get_points", time.Since(start).Seconds(), err)
		}
		return points, err
	})
}

type loadFunc func(ctx context.Context, i int) ([]models.Point, error)

func (s *Scanner) run(ctx context.Context, n int, partition func(int) models.Partition, load loadFunc) *Report {
	start := time.Now()
	report := &Report{Results: make([]PartitionResult, n)}
	ctx = logging.WithLogger(ctx, s.logger)

	pool := NewWorkerPool(s.workers)
	pool.Start()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		report.Results[i] = PartitionResult{Partition: partition(i), Result: emptyResult()}

		wg.Add(1)
		err := pool.SubmitContext(ctx, func() {
			defer wg.Done()
			report.Results[i] = s.runPartition(ctx, partition(i), func(ctx context.Context) ([]models.Point, error) {
				return load(ctx, i)
			})
		})
		if err != nil {
			wg.Done()
			p := partition(i)
			report.Results[i].Err = apperrors.NewPartitionError(p.Symbol, p.Timeframe, err)
		}
	}

	wg.Wait()
	pool.Stop()

	report.Duration = time.Since(start)
	st := pool.Stats()
	s.logger.Debug().
		Int("workers", st.Workers).
		Uint64("tasks", st.TasksDone).
		Uint64("panics", st.Panics).
		Dur("duration", report.Duration).
		Msg("Scan pool drained")
	return report
}

func (s *Scanner) runPartition(ctx context.Context, partition models.Partition, load func(context.Context) ([]models.Point, error)) PartitionResult {
	logger := logging.WithPartition(logging.FromContext(ctx), partition.Symbol, partition.Timeframe)
	start := time.Now()
	pr := PartitionResult{Partition: partition}

	var points int
	var pc panics.Catcher
	pc.Try(func() {
		if err := ctx.Err(); err != nil {
			pr.Err = err
			return
		}
		logger.Debug().Msg("Scanning partition")

		series, err := load(ctx)
		if err != nil {
			pr.Err = err
			return
		}
		points = len(series)
		pr.Result, pr.Err = s.engine.Scan(series)
	})
	if r := pc.Recovered(); r != nil {
		pr.Err = fmt.Errorf("%w: %v", apperrors.ErrPartitionPanic, r.Value)
	}
	pr.Duration = time.Since(start)

	if pr.Err != nil {
		pr.Err = apperrors.NewPartitionError(partition.Symbol, partition.Timeframe, pr.Err)
		pr.Result = emptyResult()
		logging.LogPartitionFailure(logger, pr.Err, pr.Duration)
		if s.metrics != nil {
			s.metrics.RecordPartition("failed", points, pr.Duration.Seconds())
		}
		return pr
	}

	st := pr.Result.Stats
	logging.LogScan(logger, logging.ScanSummary{
		Points:     st.Points,
		Extracted:  st.Extracted,
		Mitigated:  st.Mitigated,
		Deselected: st.Deselected,
		Survivors:  st.Survivors,
		Duration:   pr.Duration,
	})
	if s.metrics != nil {
		s.metrics.RecordPartition("ok", st.Points, pr.Duration.Seconds())
		s.metrics.RecordStage("extracted", st.Extracted)
		s.metrics.RecordStage("rejected", st.Rejected)
		s.metrics.RecordStage("mitigated", st.Mitigated)
		s.metrics.RecordStage("deselected", st.Deselected)
		s.metrics.RecordStage("survivors", st.Survivors)
	}
	return pr
}

func emptyResult() *lineage.Result {
	return &lineage.Result{Instances: []*lineage.Instance{}}
}
