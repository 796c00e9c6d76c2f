package risk

import (
	"testing"
	"time"

	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	venue, err := reg.AddVenue("SIM")
	require.NoError(t, err)
	_, err = reg.AddSymbol("AAPL", venue, 0)
	require.NoError(t, err)
	_, err = reg.AddSymbol("BTCUSDT", venue, 3)
	require.NoError(t, err)
	return reg
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	market := StateView{MarketPrice: decimal.NewFromInt(100), Now: now}

	cases := []struct {
		name   string
		cfg    Config
		intent Intent
		reason schema.RiskReason
	}{
		{
			name:   "allow",
			cfg:    Config{MaxOrderQty: 10},
			intent: Intent{Symbol: "AAPL", Quantity: 10},
			reason: schema.RiskReasonNone,
		},
		{
			name:   "kill switch",
			cfg:    Config{KillSwitch: true},
			intent: Intent{Symbol: "AAPL", Quantity: 1},
			reason: schema.RiskReasonKillSwitch,
		},
		{
			name:   "unknown symbol",
			intent: Intent{Symbol: "TSLA", Quantity: 1},
			reason: schema.RiskReasonSymbol,
		},
		{
			name:   "max qty",
			cfg:    Config{MaxOrderQty: 10},
			intent: Intent{Symbol: "AAPL", Quantity: 11},
			reason: schema.RiskReasonMaxQty,
		},
		{
			name: "price band",
			cfg:  Config{MaxPriceDeviationBps: 500},
			intent: Intent{Symbol: "AAPL", Quantity: 1,
				LimitPrice: decimal.NewNullDecimal(decimal.NewFromInt(106))},
			reason: schema.RiskReasonPriceBand,
		},
		{
			name: "inside price band",
			cfg:  Config{MaxPriceDeviationBps: 500},
			intent: Intent{Symbol: "AAPL", Quantity: 1,
				LimitPrice: decimal.NewNullDecimal(decimal.NewFromInt(105))},
			reason: schema.RiskReasonNone,
		},
		{
			name:   "max notional at market",
			cfg:    Config{MaxOrderNotional: decimal.NewFromInt(999)},
			intent: Intent{Symbol: "AAPL", Quantity: 10},
			reason: schema.RiskReasonMaxNotional,
		},
		{
			name:   "scaled notional",
			cfg:    Config{MaxOrderNotional: decimal.NewFromInt(1000)},
			intent: Intent{Symbol: "BTCUSDT", Quantity: 10000},
			reason: schema.RiskReasonNone,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := NewEngine(c.cfg, testRegistry(t))
			d := e.Evaluate(c.intent, market)
			assert.Equal(t, c.reason, d.Reason)
			assert.Equal(t, c.reason == schema.RiskReasonNone, d.Allow)
		})
	}
}

func TestEvaluateNotional(t *testing.T) {
	e := NewEngine(Config{}, testRegistry(t))
	d := e.Evaluate(Intent{Symbol: "BTCUSDT", Quantity: 1500}, StateView{MarketPrice: decimal.NewFromInt(40000)})
	require.True(t, d.Allow)
	assert.True(t, decimal.NewFromInt(60000).Equal(d.Notional), d.Notional.String())
}

func TestEvaluateRateLimit(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEngine(Config{OrderRateLimit: 2, OrderRateWindow: time.Second}, nil)
	intent := Intent{Symbol: "ANY", Quantity: 1}

	for i := range 2 {
		d := e.Evaluate(intent, StateView{Now: start.Add(time.Duration(i) * time.Millisecond)})
		require.True(t, d.Allow, "order %d", i)
	}
	d := e.Evaluate(intent, StateView{Now: start.Add(10 * time.Millisecond)})
	assert.Equal(t, schema.RiskReasonRateLimit, d.Reason)

	d = e.Evaluate(intent, StateView{Now: start.Add(time.Second)})
	assert.True(t, d.Allow)
}

func TestRewindReturnsRateSlot(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEngine(Config{OrderRateLimit: 1, OrderRateWindow: time.Minute}, nil)
	intent := Intent{Symbol: "ANY", Quantity: 1}

	mark := e.Mark()
	require.True(t, e.Evaluate(intent, StateView{Now: now}).Allow)
	e.Rewind(mark)
	require.True(t, e.Evaluate(intent, StateView{Now: now}).Allow)

	d := e.Evaluate(intent, StateView{Now: now.Add(time.Second)})
	assert.Equal(t, schema.RiskReasonRateLimit, d.Reason)
}
