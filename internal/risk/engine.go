package risk

import (
	"time"

	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/shopspring/decimal"
)

var bpsDenominator = decimal.NewFromInt(10000)

// Config defines simple pre-trade limits. Zero values disable a check.
type Config struct {
	Version              uint16          `json:"version"`
	KillSwitch           bool            `json:"killSwitch"`
	MaxOrderQty          schema.Quantity `json:"maxOrderQty"`
	MaxOrderNotional     decimal.Decimal `json:"maxOrderNotional"`
	OrderRateLimit       int             `json:"orderRateLimit"`
	OrderRateWindow      time.Duration   `json:"orderRateWindow"`
	MaxPriceDeviationBps int64           `json:"maxPriceDeviationBps"`
}

// Intent is the order about to be executed.
type Intent struct {
	OrderID  string
	Symbol   string
	Quantity schema.Quantity
	// LimitPrice is the order's own reference price, if it has one.
	LimitPrice decimal.NullDecimal
}

// StateView carries the market context of one evaluation.
type StateView struct {
	MarketPrice decimal.Decimal
	Now         time.Time
}

// Decision is the outcome of Evaluate.
type Decision struct {
	OrderID  string            `json:"orderId"`
	Allow    bool              `json:"allow"`
	Reason   schema.RiskReason `json:"reason"`
	Notional decimal.Decimal   `json:"notional"`
	Version  uint16            `json:"version"`
}

// Engine evaluates risk decisions. It is not safe for concurrent use; the execution
// worker calls it under the engine lock.
type Engine struct {
	cfg      Config
	registry *schema.Registry

	rateWindowStart time.Time
	rateCount       int
}

// NewEngine creates a risk engine. A non-nil registry restricts trading to its symbols.
func NewEngine(cfg Config, registry *schema.Registry) *Engine {
	return &Engine{cfg: cfg, registry: registry}
}

// Mark is the rate-limit state at one point in time.
type Mark struct {
	windowStart time.Time
	count       int
}

// Mark captures the rate-limit state so a rolled back request can give its slot back.
func (e *Engine) Mark() Mark {
	return Mark{windowStart: e.rateWindowStart, count: e.rateCount}
}

// Rewind restores the rate-limit state captured by Mark.
func (e *Engine) Rewind(m Mark) {
	e.rateWindowStart = m.windowStart
	e.rateCount = m.count
}

// Config returns the active limits.
func (e *Engine) Config() Config {
	return e.cfg
}

// Evaluate applies the configured checks to an intent.
func (e *Engine) Evaluate(intent Intent, state StateView) Decision {
	decision := Decision{
		OrderID: intent.OrderID,
		Allow:   true,
		Reason:  schema.RiskReasonNone,
		Version: e.cfg.Version,
	}
	deny := func(reason schema.RiskReason) Decision {
		decision.Allow = false
		decision.Reason = reason
		return decision
	}

	now := state.Now
	if now.IsZero() {
		now = time.Now()
	}

	if e.cfg.KillSwitch {
		return deny(schema.RiskReasonKillSwitch)
	}

	if e.registry != nil {
		if _, ok := e.registry.Symbol(intent.Symbol); !ok {
			return deny(schema.RiskReasonSymbol)
		}
	}

	if e.cfg.OrderRateLimit > 0 && e.cfg.OrderRateWindow > 0 {
		if e.rateWindowStart.IsZero() || now.Sub(e.rateWindowStart) >= e.cfg.OrderRateWindow {
			e.rateWindowStart = now
			e.rateCount = 0
		}
		e.rateCount++
		if e.rateCount > e.cfg.OrderRateLimit {
			return deny(schema.RiskReasonRateLimit)
		}
	}

	if e.cfg.MaxOrderQty > 0 && intent.Quantity > e.cfg.MaxOrderQty {
		return deny(schema.RiskReasonMaxQty)
	}

	if e.cfg.MaxPriceDeviationBps > 0 && intent.LimitPrice.Valid {
		if exceedsDeviation(intent.LimitPrice.Decimal, state.MarketPrice, e.cfg.MaxPriceDeviationBps) {
			return deny(schema.RiskReasonPriceBand)
		}
	}

	price := state.MarketPrice
	if intent.LimitPrice.Valid {
		price = intent.LimitPrice.Decimal
	}
	decision.Notional = intent.Quantity.Decimal(e.scale(intent.Symbol)).Mul(price).Abs()
	if e.cfg.MaxOrderNotional.IsPositive() && decision.Notional.GreaterThan(e.cfg.MaxOrderNotional) {
		return deny(schema.RiskReasonMaxNotional)
	}

	return decision
}

func (e *Engine) scale(symbol string) schema.Scale {
	return e.registry.Scale(symbol)
}

func exceedsDeviation(price, ref decimal.Decimal, bps int64) bool {
	if !price.IsPositive() || !ref.IsPositive() || bps <= 0 {
		return false
	}
	diff := price.Sub(ref).Abs()
	return diff.Mul(bpsDenominator).GreaterThan(ref.Mul(decimal.NewFromInt(bps)))
}
