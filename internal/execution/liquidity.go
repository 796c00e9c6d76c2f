package execution

import (
	"time"

	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Liquidity is the simulated market the worker fills against. Volume is consumed by
// executions and replenished by SetCurrentMarket.
type Liquidity struct {
	Volume    schema.Quantity `json:"volume"`
	Price     decimal.Decimal `json:"price"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// fillPrice applies slippage against the taker: buys pay more, sells receive less.
func (l Liquidity) fillPrice(action schema.Action, slippage decimal.Decimal) decimal.Decimal {
	switch action {
	case schema.ActionBuy:
		return l.Price.Mul(one.Add(slippage))
	case schema.ActionSell:
		return l.Price.Mul(one.Sub(slippage))
	default:
		return l.Price
	}
}

// fee is the transaction cost of executed units at price.
func fee(executed schema.Quantity, scale schema.Scale, price, rate decimal.Decimal) decimal.Decimal {
	return executed.Decimal(scale).Mul(price).Mul(rate)
}
