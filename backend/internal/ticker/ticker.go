package ticker

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceUpdate represents a single price update for a symbol.
type PriceUpdate struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Ts     int64           `json:"ts"` // Unix timestamp milliseconds
}

// MockPrices are the starting prices of the simulated market, in USD.
func MockPrices() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"BTC": decimal.NewFromInt(45000),
		"ETH": decimal.NewFromInt(3000),
		"BNB": decimal.NewFromInt(400),
		"ADA": decimal.RequireFromString("0.5"),
		"SOL": decimal.NewFromInt(100),
	}
}

// maxStep bounds a single tick's move, as a fraction of the price.
var maxStep = decimal.RequireFromString("0.005")

// Ticker simulates a market by nudging prices on a fixed interval.
type Ticker struct {
	mu      sync.RWMutex
	prices  map[string]decimal.Decimal
	symbols []string
	updates chan PriceUpdate
	rnd     *rand.Rand
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a ticker seeded with prices. Nil prices means MockPrices.
func New(prices map[string]decimal.Decimal, logger *zap.Logger) *Ticker {
	if prices == nil {
		prices = MockPrices()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	symbols := make([]string, 0, len(prices))
	current := make(map[string]decimal.Decimal, len(prices))
	for symbol, price := range prices {
		symbols = append(symbols, symbol)
		current[symbol] = price
	}
	sort.Strings(symbols)

	return &Ticker{
		prices:  current,
		symbols: symbols,
		updates: make(chan PriceUpdate, 100), // Buffered channel
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
		logger:  logger,
	}
}

// Updates is the stream of price changes. Updates are dropped when nobody keeps up.
func (t *Ticker) Updates() <-chan PriceUpdate {
	return t.updates
}

// Prices returns a copy of the current prices.
func (t *Ticker) Prices() map[string]decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(t.prices))
	for k, v := range t.prices {
		out[k] = v
	}
	return out
}

// Run ticks every interval until ctx is done.
func (t *Ticker) Run(ctx context.Context, interval time.Duration) {
	t.logger.Info("price ticker started", zap.Duration("interval", interval), zap.Strings("symbols", t.symbols))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// tick moves every price by up to ±0.5% and emits the new prices.
func (t *Ticker) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts := t.now().UnixMilli()
	for _, symbol := range t.symbols {
		old := t.prices[symbol]
		change := decimal.NewFromFloat(t.rnd.Float64()*2 - 1).Mul(maxStep)
		price := old.Mul(decimal.NewFromInt(1).Add(change)).Round(8)
		if !price.IsPositive() {
			price = old
		}
		t.prices[symbol] = price

		// Non-blocking send to avoid blocking ticker if channel is full
		select {
		case t.updates <- PriceUpdate{Symbol: symbol, Price: price, Ts: ts}:
		default:
			t.logger.Debug("price update channel full, dropping update", zap.String("symbol", symbol))
		}
	}
}
