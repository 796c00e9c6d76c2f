package chaos

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/yanun0323/errors"
)

// ErrInjected is returned or panicked with by an injected fault.
var ErrInjected = errors.New("chaos: injected fault")

// Config controls fault injection into the execution worker.
type Config struct {
	Seed      int64         `json:"seed"`
	FailRate  float64       `json:"failRate"`
	PanicRate float64       `json:"panicRate"`
	MaxDelay  time.Duration `json:"maxDelay"`
}

// Stats counts injected faults.
type Stats struct {
	Failures uint64 `json:"failures"`
	Panics   uint64 `json:"panics"`
	Delays   uint64 `json:"delays"`
}

// Engine decides, per applied request, whether to inject a fault. It is not safe for
// concurrent use; the execution worker calls it under the engine lock.
type Engine struct {
	cfg   Config
	rng   *rand.Rand
	stats Stats
	sleep func(time.Duration)
}

// NewEngine creates a chaos engine with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		sleep: time.Sleep,
	}, nil
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.FailRate < 0 || c.FailRate > 1 {
		return fmt.Errorf("failRate must be between 0 and 1")
	}
	if c.PanicRate < 0 || c.PanicRate > 1 {
		return fmt.Errorf("panicRate must be between 0 and 1")
	}
	if c.FailRate+c.PanicRate > 1 {
		return fmt.Errorf("failRate + panicRate must be <= 1")
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("maxDelay must be >= 0")
	}
	return nil
}

// Enabled reports whether the config injects anything.
func (c Config) Enabled() bool {
	return c.FailRate > 0 || c.PanicRate > 0 || c.MaxDelay > 0
}

// Inject returns ErrInjected or panics with it, according to the configured rates. It
// never sleeps; see Delay.
func (e *Engine) Inject() error {
	if e == nil {
		return nil
	}
	if e.cfg.FailRate <= 0 && e.cfg.PanicRate <= 0 {
		return nil
	}
	roll := e.rng.Float64()
	switch {
	case roll < e.cfg.PanicRate:
		e.stats.Panics++
		panic(ErrInjected)
	case roll < e.cfg.PanicRate+e.cfg.FailRate:
		e.stats.Failures++
		return ErrInjected
	default:
		return nil
	}
}

// Stats returns the injected fault counters.
func (e *Engine) Stats() Stats {
	if e == nil {
		return Stats{}
	}
	return e.stats
}

// Delay sleeps for a random duration up to MaxDelay. The execution worker calls it before
// taking the engine lock.
func (e *Engine) Delay() {
	if e == nil || e.cfg.MaxDelay <= 0 {
		return
	}
	delay := time.Duration(e.rng.Int63n(e.cfg.MaxDelay.Nanoseconds() + 1))
	if delay == 0 {
		return
	}
	e.stats.Delays++
	e.sleep(delay)
}
