package chaos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

func TestConfigValidate(t *testing.T) {
	cases := map[string]struct {
		cfg Config
		ok  bool
	}{
		"zero":           {Config{}, true},
		"fail only":      {Config{FailRate: 0.5}, true},
		"negative fail":  {Config{FailRate: -0.1}, false},
		"panic too big":  {Config{PanicRate: 1.1}, false},
		"sum too big":    {Config{FailRate: 0.6, PanicRate: 0.6}, false},
		"negative delay": {Config{MaxDelay: -time.Second}, false},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			err := c.cfg.Validate()
			if c.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !c.ok && err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestInjectAlwaysFails(t *testing.T) {
	e, err := NewEngine(Config{Seed: 1, FailRate: 1})
	require.NoError(t, err)

	for range 10 {
		assert.True(t, errors.Is(e.Inject(), ErrInjected))
	}
	assert.Equal(t, uint64(10), e.Stats().Failures)
}

func TestInjectAlwaysPanics(t *testing.T) {
	e, err := NewEngine(Config{Seed: 1, PanicRate: 1})
	require.NoError(t, err)

	assert.PanicsWithValue(t, ErrInjected, func() { _ = e.Inject() })
	assert.Equal(t, uint64(1), e.Stats().Panics)
}

func TestInjectDelay(t *testing.T) {
	e, err := NewEngine(Config{Seed: 7, MaxDelay: time.Millisecond})
	require.NoError(t, err)

	var slept time.Duration
	e.sleep = func(d time.Duration) { slept += d }
	for range 20 {
		require.NoError(t, e.Inject())
	}
	assert.Zero(t, slept)
	assert.Zero(t, e.Stats().Delays)

	for range 20 {
		e.Delay()
	}
	assert.Positive(t, slept)
	assert.LessOrEqual(t, slept, 20*time.Millisecond)
	assert.Positive(t, e.Stats().Delays)
}

func TestNilEngine(t *testing.T) {
	var e *Engine
	assert.NoError(t, e.Inject())
	e.Delay()
	assert.Equal(t, Stats{}, e.Stats())
	assert.False(t, Config{}.Enabled())
}

func TestSeededRatesAreReproducible(t *testing.T) {
	run := func() []bool {
		e, err := NewEngine(Config{Seed: 42, FailRate: 0.3})
		require.NoError(t, err)
		out := make([]bool, 50)
		for i := range out {
			out[i] = e.Inject() != nil
		}
		return out
	}
	assert.Equal(t, run(), run())
}
