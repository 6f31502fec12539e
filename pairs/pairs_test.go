package pairs

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"short_bot/config"
	"short_bot/models"
)

func TestLoad_AcceptsNumbersAndStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.json")
	body := `[
  {"symbol": "ETHUSDT", "lastPrice": 200, "volume": 1000.5, "marketCap": 200100, "maxLeverage": 50},
  {"symbol": "SOLUSDT", "lastPrice": "150.25", "volume": "10", "marketCap": "1502.5", "maxLeverage": 20},
  {"symbol": "DEADUSDT", "lastPrice": "0"}
]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].LastPrice != 200 || records[1].LastPrice != 150.25 || records[2].LastPrice != 0 {
		t.Errorf("prices = %v %v %v", records[0].LastPrice, records[1].LastPrice, records[2].LastPrice)
	}

	targets := Targets(records)
	want := []models.SymbolTarget{
		{Symbol: "ETHUSDT", ReferencePrice: 200},
		{Symbol: "SOLUSDT", ReferencePrice: 150.25},
		{Symbol: "DEADUSDT", ReferencePrice: 0},
	}
	for i, w := range want {
		if targets[i] != w {
			t.Errorf("target %d = %+v, want %+v", i, targets[i], w)
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: %v", err)
	}

	cases := map[string]string{
		"bad.json":      `{"symbol": "ETHUSDT"}`,
		"badprice.json": `[{"symbol": "ETHUSDT", "lastPrice": "abc"}]`,
		"nosymbol.json": `[{"lastPrice": 1}]`,
		"nan.json":      `[{"symbol": "BADUSDT", "lastPrice": "NaN"}]`,
		"inf.json":      `[{"symbol": "BADUSDT", "lastPrice": "Inf"}]`,
		"neginf.json":   `[{"symbol": "BADUSDT", "volume": "-Infinity"}]`,
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestSave_WritesHistoryAndLatest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "trading_pairs")
	records := []Record{
		{Symbol: "ETHUSDT", LastPrice: 200, Volume: 10, MarketCap: 2000, MaxLeverage: 50},
		{Symbol: "SOLUSDT", LastPrice: 150, Volume: 1, MarketCap: 150, MaxLeverage: 20},
	}
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	history, err := Save(dir, records, now)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if want := filepath.Join(dir, "top_2_pairs_20240309_140507.json"); history != want {
		t.Errorf("history = %s, want %s", history, want)
	}

	for _, path := range []string{history, filepath.Join(dir, LatestFile)} {
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s) failed: %v", path, err)
		}
		if len(got) != 2 || got[0] != records[0] || got[1] != records[1] {
			t.Errorf("%s round trip = %+v", path, got)
		}
	}
}

func rankingConfig() config.RankingConfig {
	return config.RankingConfig{TopN: 2, QuoteAsset: "USDT", ExcludePrefixes: []string{"BTC", "USDC"}, DefaultMaxLeverage: 20}
}

func TestSelect(t *testing.T) {
	instruments := []models.Instrument{
		{Symbol: "ETHUSDT", Status: "TRADING"},
		{Symbol: "SOLUSDT", Status: "TRADING"},
		{Symbol: "XRPUSDT", Status: "TRADING"},
		{Symbol: "BTCUSDT", Status: "TRADING"},
		{Symbol: "USDCUSDT", Status: "TRADING"},
		{Symbol: "OLDUSDT", Status: "SETTLING"},
		{Symbol: "ETHBUSD", Status: "TRADING"},
	}
	tickers := []models.Ticker{
		{Symbol: "BTCUSDT", LastPrice: 60000, Volume: 1000},
		{Symbol: "USDCUSDT", LastPrice: 1, Volume: 1e9},
		{Symbol: "OLDUSDT", LastPrice: 1, Volume: 1e12},
		{Symbol: "ETHBUSD", LastPrice: 3000, Volume: 1e6},
		{Symbol: "XRPUSDT", LastPrice: 0.512345, Volume: 1000.555},
		{Symbol: "ETHUSDT", LastPrice: 3000.123456, Volume: 100.126},
		{Symbol: "SOLUSDT", LastPrice: 150, Volume: 10},
		{Symbol: "NEWUSDT", LastPrice: 5, Volume: 1e9},
		{Symbol: "XRPUSDT", LastPrice: math.Inf(1), Volume: 1},
	}

	got := Select(instruments, tickers, rankingConfig())
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(got), got)
	}
	if got[0].Symbol != "ETHUSDT" || got[1].Symbol != "SOLUSDT" {
		t.Errorf("order = %s, %s", got[0].Symbol, got[1].Symbol)
	}
	if got[0].LastPrice != 3000.1235 || got[0].Volume != 100.13 {
		t.Errorf("rounding: lastPrice=%v volume=%v", got[0].LastPrice, got[0].Volume)
	}
	if got[0].MarketCap != 300390.36 {
		t.Errorf("marketCap = %v, want 300390.36", got[0].MarketCap)
	}
}

type fakeMarket struct {
	instruments []models.Instrument
	tickers     []models.Ticker
	leverage    map[string]int
	tickerErr   error
}

func (f *fakeMarket) InstrumentMetadata(ctx context.Context) ([]models.Instrument, error) {
	return f.instruments, nil
}

func (f *fakeMarket) Tickers(ctx context.Context) ([]models.Ticker, error) {
	return f.tickers, f.tickerErr
}

func (f *fakeMarket) MaxLeverage(ctx context.Context, symbol string) (int, error) {
	if lev, ok := f.leverage[symbol]; ok {
		return lev, nil
	}
	return 0, errors.New("no bracket")
}

func TestRank_Leverage(t *testing.T) {
	md := &fakeMarket{
		instruments: []models.Instrument{{Symbol: "ETHUSDT", Status: "TRADING"}, {Symbol: "SOLUSDT", Status: "TRADING"}},
		tickers:     []models.Ticker{{Symbol: "ETHUSDT", LastPrice: 3000, Volume: 10}, {Symbol: "SOLUSDT", LastPrice: 150, Volume: 10}},
		leverage:    map[string]int{"ETHUSDT": 100},
	}

	records, err := Rank(context.Background(), md, rankingConfig(), true)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if records[0].MaxLeverage != 100 || records[1].MaxLeverage != 20 {
		t.Errorf("leverage = %d, %d; want 100, 20", records[0].MaxLeverage, records[1].MaxLeverage)
	}

	records, err = Rank(context.Background(), md, rankingConfig(), false)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if records[0].MaxLeverage != 20 {
		t.Errorf("without credentials leverage = %d, want 20", records[0].MaxLeverage)
	}
}

func TestRank_TickerFailure(t *testing.T) {
	md := &fakeMarket{tickerErr: errors.New("timeout")}
	if _, err := Rank(context.Background(), md, rankingConfig(), false); err == nil {
		t.Fatal("expected an error")
	}
}
