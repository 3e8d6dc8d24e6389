package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/veiloq/kucoin-connector/pkg/exchanges/interfaces"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// stubSource returns a canned series per symbol.
type stubSource struct {
	series map[string][]interfaces.Candle
	calls  int
	err    error
}

func (s *stubSource) GetCandleHistory(ctx context.Context, req interfaces.HistoryRequest) (map[string][]interfaces.Candle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.series, nil
}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// in-memory sqlite loses the schema when the pool opens a second
	// connection
	db.SetMaxOpenConns(1)
	return db
}

func makeCandles(symbol string, start time.Time, n int) []interfaces.Candle {
	candles := make([]interfaces.Candle, n)
	for i := range candles {
		ts := start.Add(time.Duration(i) * time.Minute)
		candles[i] = interfaces.Candle{
			Symbol:    symbol,
			StartTime: ts,
			Open:      100 + float64(i),
			High:      101 + float64(i),
			Low:       99 + float64(i),
			Close:     100.5 + float64(i),
			Volume:    10,
			Turnover:  1000,
		}
	}
	return candles
}

func TestTableName(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"BTC-USDT", "btcusdt"},
		{"eth-usdt", "ethusdt"},
		{"XBT/EUR", "xbteur"},
		{" SOL-USDC ", "solusdc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TableName(tt.symbol))
	}
}

func TestRun_WritesOneTablePerSymbol(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	src := &stubSource{series: map[string][]interfaces.Candle{
		"BTC-USDT": makeCandles("BTC-USDT", start, 5),
		"ETH-USDT": makeCandles("ETH-USDT", start, 3),
	}}

	err := Run(context.Background(), src, db, Config{
		Symbols:   []string{"BTC-USDT", "ETH-USDT"},
		Interval:  "1min",
		StartTime: start,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM btcusdt"))
	assert.Equal(t, 5, count)
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM ethusdt"))
	assert.Equal(t, 3, count)

	var open, close float64
	row := db.QueryRow("SELECT open, close FROM btcusdt ORDER BY start_time LIMIT 1")
	require.NoError(t, row.Scan(&open, &close))
	assert.Equal(t, 100.0, open)
	assert.Equal(t, 100.5, close)
}

func TestRun_SkipsEmptySeries(t *testing.T) {
	db := openTestDB(t)
	src := &stubSource{series: map[string][]interfaces.Candle{
		"BTC-USDT": {},
	}}

	err := Run(context.Background(), src, db, Config{
		Symbols:  []string{"BTC-USDT"},
		Interval: "1min",
	})
	require.NoError(t, err)

	var count int
	err = db.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'btcusdt'")
	require.NoError(t, err)
	assert.Zero(t, count, "empty series must not create a table")
}

func TestRun_ModeFail(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	src := &stubSource{series: map[string][]interfaces.Candle{
		"BTC-USDT": makeCandles("BTC-USDT", start, 2),
	}}

	cfg := Config{Symbols: []string{"BTC-USDT"}, Interval: "1min", Mode: ModeFail}
	require.NoError(t, Run(context.Background(), src, db, cfg))

	err := Run(context.Background(), src, db, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRun_ModeReplace(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

	first := &stubSource{series: map[string][]interfaces.Candle{
		"BTC-USDT": makeCandles("BTC-USDT", start, 5),
	}}
	cfg := Config{Symbols: []string{"BTC-USDT"}, Interval: "1min", Mode: ModeReplace}
	require.NoError(t, Run(context.Background(), first, db, cfg))

	second := &stubSource{series: map[string][]interfaces.Candle{
		"BTC-USDT": makeCandles("BTC-USDT", start.Add(time.Hour), 2),
	}}
	require.NoError(t, Run(context.Background(), second, db, cfg))

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM btcusdt"))
	assert.Equal(t, 2, count, "replace mode must drop the previous rows")
}

func TestRun_ModeAppend(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)

	cfg := Config{Symbols: []string{"BTC-USDT"}, Interval: "1min", Mode: ModeAppend}
	first := &stubSource{series: map[string][]interfaces.Candle{
		"BTC-USDT": makeCandles("BTC-USDT", start, 3),
	}}
	require.NoError(t, Run(context.Background(), first, db, cfg))

	second := &stubSource{series: map[string][]interfaces.Candle{
		"BTC-USDT": makeCandles("BTC-USDT", start.Add(time.Hour), 3),
	}}
	require.NoError(t, Run(context.Background(), second, db, cfg))

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM btcusdt"))
	assert.Equal(t, 6, count)
}

func TestRun_UnknownMode(t *testing.T) {
	db := openTestDB(t)
	src := &stubSource{}
	err := Run(context.Background(), src, db, Config{Mode: "upsert"})
	require.Error(t, err)
	assert.Zero(t, src.calls, "mode is validated before any fetch")
}

func TestRun_SourceErrorPropagates(t *testing.T) {
	db := openTestDB(t)
	src := &stubSource{err: assert.AnError}
	err := Run(context.Background(), src, db, Config{
		Symbols:  []string{"BTC-USDT"},
		Interval: "1min",
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRun_ChunkedInserts(t *testing.T) {
	db := openTestDB(t)
	start := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	src := &stubSource{series: map[string][]interfaces.Candle{
		"BTC-USDT": makeCandles("BTC-USDT", start, 1234),
	}}

	err := Run(context.Background(), src, db, Config{
		Symbols:   []string{"BTC-USDT"},
		Interval:  "1min",
		ChunkSize: 100,
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM btcusdt"))
	assert.Equal(t, 1234, count)
}
