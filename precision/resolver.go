package precision

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"short_bot/interfaces"
	"short_bot/logger"
	"short_bot/models"
)

const metadataFetchTimeout = 30 * time.Second

// Defaults apply when a symbol is missing from exchange metadata.
type Defaults struct {
	Quantity int
	Price    int
}

// Resolver caches instrument metadata and derived precision for one run.
// Metadata is fetched once, concurrent first callers share that fetch.
type Resolver struct {
	source   interfaces.InstrumentSource
	defaults Defaults

	group singleflight.Group

	mu          sync.RWMutex
	loaded      bool
	instruments map[string]models.Instrument
	precisions  map[string]models.Precision
}

func NewResolver(source interfaces.InstrumentSource, defaults Defaults) *Resolver {
	return &Resolver{
		source:      source,
		defaults:    defaults,
		instruments: make(map[string]models.Instrument),
		precisions:  make(map[string]models.Precision),
	}
}

// DecimalsFromStep converts a step or tick size to decimal places:
// round(-log10(step)), never negative.
func DecimalsFromStep(step float64) (int, bool) {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return 0, false
	}
	d := int(math.Round(-math.Log10(step)))
	if d < 0 {
		d = 0
	}
	return d, true
}

// Load fetches the metadata if it has not been fetched yet. The fetch is
// shared by every concurrent caller, so it runs detached from ctx under its
// own timeout. Cancelling the first caller does not fail the others.
func (r *Resolver) Load(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}

	_, err, _ := r.group.Do("instruments", func() (interface{}, error) {
		r.mu.RLock()
		done := r.loaded
		r.mu.RUnlock()
		if done {
			return nil, nil
		}

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metadataFetchTimeout)
		defer cancel()
		instruments, err := r.source.InstrumentMetadata(fctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load instrument metadata: %w", err)
		}

		r.mu.Lock()
		for _, inst := range instruments {
			r.instruments[inst.Symbol] = inst
		}
		r.loaded = true
		r.mu.Unlock()

		logger.Debugf("Loaded metadata for %d instruments", len(instruments))
		return nil, nil
	})
	return err
}

// Instrument returns the cached metadata for symbol.
func (r *Resolver) Instrument(ctx context.Context, symbol string) (models.Instrument, bool, error) {
	if err := r.Load(ctx); err != nil {
		return models.Instrument{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instruments[symbol]
	return inst, ok, nil
}

// Resolve returns quantity and price precision for symbol. Unknown symbols
// get the configured defaults with Fallback set.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (models.Precision, error) {
	r.mu.RLock()
	p, ok := r.precisions[symbol]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	inst, found, err := r.Instrument(ctx, symbol)
	if err != nil {
		return models.Precision{}, err
	}

	p = models.Precision{Quantity: r.defaults.Quantity, Price: r.defaults.Price, Fallback: !found}
	if found {
		q, qOK := DecimalsFromStep(inst.StepSize)
		px, pOK := DecimalsFromStep(inst.TickSize)
		if qOK {
			p.Quantity = q
		} else {
			p.Fallback = true
		}
		if pOK {
			p.Price = px
		} else {
			p.Fallback = true
		}
	}
	if p.Fallback {
		logger.Warnf("No usable precision filters for %s, using fallback quantity=%d price=%d decimals",
			symbol, p.Quantity, p.Price)
	}

	r.mu.Lock()
	r.precisions[symbol] = p
	r.mu.Unlock()
	return p, nil
}
