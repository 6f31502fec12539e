package pairs

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"short_bot/config"
	"short_bot/interfaces"
	"short_bot/logger"
	"short_bot/models"
)

// Rank builds the basket from live market data. Max leverage is read from
// the exchange only when withLeverage is set (it needs signed credentials);
// otherwise, or when the lookup fails, cfg.DefaultMaxLeverage is used.
func Rank(ctx context.Context, md interfaces.MarketData, cfg config.RankingConfig, withLeverage bool) ([]Record, error) {
	var (
		instruments []models.Instrument
		tickers     []models.Ticker
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		instruments, err = md.InstrumentMetadata(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tickers, err = md.Tickers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := Select(instruments, tickers, cfg)
	for i := range records {
		records[i].MaxLeverage = cfg.DefaultMaxLeverage
		if !withLeverage {
			continue
		}
		lev, err := md.MaxLeverage(ctx, records[i].Symbol)
		if err != nil {
			logger.Debugf("Leverage bracket for %s unavailable, using %dx: %v", records[i].Symbol, cfg.DefaultMaxLeverage, err)
			continue
		}
		records[i].MaxLeverage = lev
	}
	logger.Infof("Ranked %d of %d tickers", len(records), len(tickers))
	return records, nil
}

// Select keeps tradable quote-asset contracts, drops excluded prefixes and
// returns the top cfg.TopN by lastPrice × volume, largest first.
func Select(instruments []models.Instrument, tickers []models.Ticker, cfg config.RankingConfig) []Record {
	tradable := make(map[string]bool, len(instruments))
	for _, inst := range instruments {
		if inst.Tradable() && strings.HasSuffix(inst.Symbol, cfg.QuoteAsset) {
			tradable[inst.Symbol] = true
		}
	}

	type candidate struct {
		ticker models.Ticker
		mcap   float64
	}
	var candidates []candidate
	for _, t := range tickers {
		if !tradable[t.Symbol] || excluded(t.Symbol, cfg.ExcludePrefixes) {
			continue
		}
		mcap := t.LastPrice * t.Volume
		if math.IsNaN(mcap) || math.IsInf(mcap, 0) {
			continue
		}
		candidates = append(candidates, candidate{ticker: t, mcap: mcap})
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(b.mcap, a.mcap)
	})
	if cfg.TopN > 0 && len(candidates) > cfg.TopN {
		candidates = candidates[:cfg.TopN]
	}

	records := make([]Record, len(candidates))
	for i, c := range candidates {
		records[i] = Record{
			Symbol:    c.ticker.Symbol,
			LastPrice: round(c.ticker.LastPrice, 4),
			Volume:    round(c.ticker.Volume, 2),
			MarketCap: round(c.mcap, 2),
		}
	}
	return records
}

func excluded(symbol string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(symbol, p) {
			return true
		}
	}
	return false
}

func round(v float64, places int32) Number {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return Number(f)
}
