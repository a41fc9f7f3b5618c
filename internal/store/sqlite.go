package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	apperrors "lineage-scanner/internal/errors"
	"lineage-scanner/internal/lineage"
	"lineage-scanner/internal/models"
	"lineage-scanner/pkg/utils"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry utils.RetryConfig
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to open database %s", dbPath)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = 5
	retry.Retryable = isBusy
	store := &SQLiteStore{db: db, retry: retry}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "failed to initialize schema")
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles table for historical OHLCV data
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open TEXT NOT NULL,
		high TEXT NOT NULL,
		low TEXT NOT NULL,
		close TEXT NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- Swing points, one series per partition
	CREATE TABLE IF NOT EXISTS points (
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		open TEXT NOT NULL,
		high TEXT NOT NULL,
		low TEXT NOT NULL,
		close TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		swept_by TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, timeframe, seq)
	);

	-- Scan runs
	CREATE TABLE IF NOT EXISTS scan_runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		partitions INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		survivors INTEGER NOT NULL
	);

	-- Surviving pattern instances per run and partition
	CREATE TABLE IF NOT EXISTS scan_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		instance_id TEXT NOT NULL,
		poi_status TEXT NOT NULL,
		breaking_index INTEGER,
		tags TEXT,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, symbol, timeframe, instance_id)
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_tf ON candles(symbol, timeframe, timestamp);
	CREATE INDEX IF NOT EXISTS idx_results_run ON scan_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_partition ON scan_results(symbol, timeframe);
	`

	_, err := s.db.Exec(schema)
	return err
}

// isBusy reports whether err is a transient lock conflict between writers.
func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// write runs a write transaction, retrying it while the database is busy.
func (s *SQLiteStore) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return utils.Retry(ctx, s.retry, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database.
func (s *SQLiteStore) SaveCandles(ctx context.Context, partition models.Partition, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	return s.write(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, c := range candles {
			_, err := stmt.ExecContext(ctx, partition.Symbol, partition.Timeframe, c.Timestamp,
				c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(), c.Volume)
			if err != nil {
				return fmt.Errorf("failed to insert candle: %w", err)
			}
		}
		return nil
	})
}

// GetCandles retrieves candles from the database. A zero to time means no
// upper bound.
func (s *SQLiteStore) GetCandles(ctx context.Context, partition models.Partition, from, to time.Time) ([]models.Candle, error) {
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, partition.Symbol, partition.Timeframe, from, to)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to query candles for %s", partition)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// ============================================================================
// Points Methods
// ============================================================================

// SavePoints replaces the stored series of a partition.
func (s *SQLiteStore) SavePoints(ctx context.Context, partition models.Partition, points []models.Point) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM points WHERE symbol = ? AND timeframe = ?`,
			partition.Symbol, partition.Timeframe); err != nil {
			return fmt.Errorf("failed to clear points: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO points (symbol, timeframe, seq, kind, open, high, low, close, timestamp, swept_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			var swept sql.NullString
			if len(p.SweptBy) > 0 {
				data, err := json.Marshal(p.SweptBy)
				if err != nil {
					return fmt.Errorf("failed to encode sweeps: %w", err)
				}
				swept = sql.NullString{String: string(data), Valid: true}
			}
			_, err := stmt.ExecContext(ctx, partition.Symbol, partition.Timeframe, p.Index, string(p.Kind),
				p.Open.String(), p.High.String(), p.Low.String(), p.Close.String(), p.Timestamp, swept)
			if err != nil {
				return fmt.Errorf("failed to insert point %d: %w", p.Index, err)
			}
		}
		return nil
	})
}

// GetPoints retrieves the series of a partition ordered by sequence index.
func (s *SQLiteStore) GetPoints(ctx context.Context, partition models.Partition) ([]models.Point, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, open, high, low, close, timestamp, swept_by
		FROM points
		WHERE symbol = ? AND timeframe = ?
		ORDER BY seq ASC
	`, partition.Symbol, partition.Timeframe)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to query points for %s", partition)
	}
	defer rows.Close()

	var points []models.Point
	for rows.Next() {
		var (
			p     models.Point
			kind  string
			swept sql.NullString
		)
		if err := rows.Scan(&p.Index, &kind, &p.Open, &p.High, &p.Low, &p.Close, &p.Timestamp, &swept); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		p.Kind = models.PointKind(kind)
		if swept.Valid && swept.String != "" {
			if err := json.Unmarshal([]byte(swept.String), &p.SweptBy); err != nil {
				return nil, apperrors.NewDataError("points", partition.Symbol, "corrupt swept_by", err)
			}
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating points: %w", err)
	}
	return points, nil
}

// ListPartitions returns every partition with stored points.
func (s *SQLiteStore) ListPartitions(ctx context.Context) ([]models.Partition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT symbol, timeframe FROM points ORDER BY symbol, timeframe
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query partitions: %w", err)
	}
	defer rows.Close()

	var partitions []models.Partition
	for rows.Next() {
		var p models.Partition
		if err := rows.Scan(&p.Symbol, &p.Timeframe); err != nil {
			return nil, fmt.Errorf("failed to scan partition: %w", err)
		}
		partitions = append(partitions, p)
	}
	return partitions, rows.Err()
}

// ============================================================================
// Scan Results Methods
// ============================================================================

// SaveRun records a scan run summary.
func (s *SQLiteStore) SaveRun(ctx context.Context, run ScanRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO scan_runs (id, started_at, finished_at, partitions, failed, survivors)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.FinishedAt, run.Partitions, run.Failed, run.Survivors)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SaveInstances stores the surviving instances of one partition.
func (s *SQLiteStore) SaveInstances(ctx context.Context, runID string, partition models.Partition, instances []*lineage.Instance) error {
	if len(instances) == 0 {
		return nil
	}

	return s.write(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO scan_results
				(run_id, symbol, timeframe, instance_id, poi_status, breaking_index, tags, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, inst := range instances {
			payload, err := json.Marshal(inst)
			if err != nil {
				return fmt.Errorf("failed to encode instance %s: %w", inst.ID, err)
			}
			var breaking sql.NullInt64
			if inst.POI.Breaking != nil {
				breaking = sql.NullInt64{Int64: inst.POI.Breaking.Index, Valid: true}
			}
			_, err = stmt.ExecContext(ctx, runID, partition.Symbol, partition.Timeframe, inst.ID,
				string(inst.POI.Status), breaking, strings.Join(inst.Tags(), ","), string(payload))
			if err != nil {
				return fmt.Errorf("failed to insert instance %s: %w", inst.ID, err)
			}
		}
		return nil
	})
}

// GetResults retrieves stored instances matching filter.
func (s *SQLiteStore) GetResults(ctx context.Context, filter ResultFilter) ([]StoredInstance, error) {
	query := `
		SELECT run_id, symbol, timeframe, instance_id, poi_status, breaking_index, tags, payload, created_at
		FROM scan_results
		WHERE 1=1
	`
	var args []interface{}

	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Timeframe != "" {
		query += " AND timeframe = ?"
		args = append(args, filter.Timeframe)
	}
	if filter.Status != "" {
		query += " AND poi_status = ?"
		args = append(args, string(filter.Status))
	}

	query += " ORDER BY symbol, timeframe, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []StoredInstance
	for rows.Next() {
		var (
			r        StoredInstance
			status   string
			breaking sql.NullInt64
			tags     sql.NullString
			payload  string
		)
		if err := rows.Scan(&r.RunID, &r.Partition.Symbol, &r.Partition.Timeframe, &r.InstanceID,
			&status, &breaking, &tags, &payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.POIStatus = lineage.POIStatus(status)
		if breaking.Valid {
			idx := breaking.Int64
			r.BreakingIndex = &idx
		}
		if tags.Valid && tags.String != "" {
			r.Tags = strings.Split(tags.String, ",")
		}
		r.Payload = json.RawMessage(payload)
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return results, nil
}

// LatestRunID returns the most recently finished run, or ErrDataNotFound.
func (s *SQLiteStore) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM scan_runs ORDER BY finished_at DESC LIMIT 1
	`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", apperrors.ErrDataNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest run: %w", err)
	}
	return id, nil
}
