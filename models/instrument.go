package models

import "math"

// InstrumentStatusTrading is the only status in which orders are accepted.
const InstrumentStatusTrading = "TRADING"

// Instrument is the exchange metadata for a single futures contract.
// Values are fetched once per run and never mutated afterwards.
type Instrument struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	Status     string
	StepSize   float64 // LOT_SIZE stepSize
	TickSize   float64 // PRICE_FILTER tickSize
}

// Tradable reports whether the exchange currently accepts orders for the instrument.
func (i Instrument) Tradable() bool {
	return i.Status == InstrumentStatusTrading
}

// SymbolTarget is one member of the basket handed to the engine.
type SymbolTarget struct {
	Symbol         string
	ReferencePrice float64
}

// Ticker is a 24h rolling window summary used when ranking the basket.
type Ticker struct {
	Symbol    string
	LastPrice float64
	Volume    float64
}

// Precision is the number of decimal places the venue accepts for a symbol.
// Fallback is set when the symbol was missing from the metadata and the
// configured defaults were used instead.
type Precision struct {
	Quantity int
	Price    int
	Fallback bool
}

// ValidPrice reports whether p is a usable price: positive and finite.
func ValidPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 1)
}
