// Package pipeline persists historical candle series into a SQL database,
// one table per trading pair. It sits on top of any candle source, normally
// the KuCoin connector, and works against both PostgreSQL and SQLite through
// sqlx placeholder rebinding.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/veiloq/kucoin-connector/pkg/exchanges/interfaces"
	"github.com/veiloq/kucoin-connector/pkg/logging"
)

// Write modes for tables that already exist.
const (
	ModeAppend  = "append"
	ModeReplace = "replace"
	ModeFail    = "fail"
)

const defaultChunkSize = 500

// CandleSource fetches historical series. *kucoin.Connector satisfies it.
type CandleSource interface {
	GetCandleHistory(ctx context.Context, req interfaces.HistoryRequest) (map[string][]interfaces.Candle, error)
}

// Config drives one pipeline run.
type Config struct {
	Symbols   []string
	Interval  string
	StartTime time.Time
	EndTime   time.Time

	// Schema optionally qualifies table names, e.g. "market".
	Schema string

	// Mode decides what happens when a target table already exists: append
	// rows, drop and recreate, or fail. Empty selects append.
	Mode string

	// ChunkSize bounds rows per INSERT statement. Zero selects the default.
	ChunkSize int

	Logger logging.Logger
}

// Run fetches the configured series and writes each symbol into its own
// table. Symbols whose series is empty are skipped rather than given an
// empty table.
func Run(ctx context.Context, src CandleSource, db *sqlx.DB, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeAppend
	}
	switch mode {
	case ModeAppend, ModeReplace, ModeFail:
	default:
		return fmt.Errorf("unknown write mode %q", cfg.Mode)
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	series, err := src.GetCandleHistory(ctx, interfaces.HistoryRequest{
		Symbols:   cfg.Symbols,
		Interval:  cfg.Interval,
		StartTime: cfg.StartTime,
		EndTime:   cfg.EndTime,
	})
	if err != nil {
		return fmt.Errorf("fetching candle history: %w", err)
	}

	for symbol, candles := range series {
		if len(candles) == 0 {
			logger.Info("no rows for symbol, skipping table",
				logging.String("symbol", symbol),
			)
			continue
		}
		table := qualifiedTable(cfg.Schema, symbol)
		if err := writeSeries(ctx, db, table, mode, chunk, candles); err != nil {
			return fmt.Errorf("writing %s: %w", table, err)
		}
		logger.Info("series persisted",
			logging.String("symbol", symbol),
			logging.String("table", table),
			logging.Int("rows", len(candles)),
		)
	}
	return nil
}

// TableName converts a trading pair into its table name: BTC-USDT becomes
// btcusdt.
func TableName(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, "/", "")
}

func qualifiedTable(schema, symbol string) string {
	table := TableName(symbol)
	if schema != "" {
		return schema + "." + table
	}
	return table
}

func writeSeries(ctx context.Context, db *sqlx.DB, table, mode string, chunk int, candles []interfaces.Candle) error {
	exists, err := tableExists(ctx, db, table)
	if err != nil {
		return err
	}

	if exists {
		switch mode {
		case ModeFail:
			return fmt.Errorf("table %s already exists", table)
		case ModeReplace:
			if _, err := db.ExecContext(ctx, "DROP TABLE "+table); err != nil {
				return fmt.Errorf("dropping table: %w", err)
			}
			exists = false
		}
	}

	if !exists {
		ddl := fmt.Sprintf(`CREATE TABLE %s (
			start_time TIMESTAMP NOT NULL PRIMARY KEY,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			turnover DOUBLE PRECISION NOT NULL
		)`, table)
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	insert := db.Rebind(fmt.Sprintf(
		"INSERT INTO %s (start_time, open, high, low, close, volume, turnover) VALUES (?, ?, ?, ?, ?, ?, ?)",
		table))
	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < len(candles); i += chunk {
		end := i + chunk
		if end > len(candles) {
			end = len(candles)
		}
		for _, c := range candles[i:end] {
			if _, err := stmt.ExecContext(ctx,
				c.StartTime, c.Open, c.High, c.Low, c.Close, c.Volume, c.Turnover); err != nil {
				return fmt.Errorf("inserting row: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// tableExists asks the database catalog whether table is present. Works on
// both PostgreSQL and SQLite via information_schema emulation fallback.
func tableExists(ctx context.Context, db *sqlx.DB, table string) (bool, error) {
	name := table
	if i := strings.LastIndex(table, "."); i >= 0 {
		name = table[i+1:]
	}

	var query string
	switch db.DriverName() {
	case "sqlite", "sqlite3":
		query = db.Rebind("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?")
	default:
		query = db.Rebind("SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?")
	}

	var count int
	if err := db.GetContext(ctx, &count, query, name); err != nil {
		return false, fmt.Errorf("checking table existence: %w", err)
	}
	return count > 0, nil
}
