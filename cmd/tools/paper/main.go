package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/osdajiba/autotrade/internal/chaos"
	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/osdajiba/autotrade/internal/journal"
	"github.com/osdajiba/autotrade/internal/notify"
	"github.com/osdajiba/autotrade/internal/obs"
	"github.com/osdajiba/autotrade/internal/ops"
	"github.com/osdajiba/autotrade/internal/order"
	"github.com/osdajiba/autotrade/internal/risk"
	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/shopspring/decimal"
)

type params struct {
	symbols   []string
	producers int
	perRound  int
	maxQty    int64
	volume    int64
	price     decimal.Decimal
	limitRate float64
	timeout   time.Duration
}

type tally struct {
	supplied schema.Quantity
	executed schema.Quantity
	leftover schema.Quantity
	outcomes int
}

func main() {
	configPath := flag.String("config", "", "Path to JSON or YAML config (settings, risk, registry)")
	rounds := flag.Int("rounds", 10, "Number of liquidity rounds")
	producers := flag.Int("producers", 8, "Concurrent producers per round")
	perRound := flag.Int("orders", 20, "Orders per producer per round")
	maxQty := flag.Int64("max-qty", 10, "Maximum order quantity")
	volume := flag.Int64("volume", 500, "Liquidity volume offered each round")
	price := flag.String("price", "100", "Starting market price")
	limitRate := flag.Float64("limit-rate", 0.3, "Share of LIMIT orders [0-1]")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	failRate := flag.Float64("fail-rate", 0, "Injected failure probability per request [0-1]")
	panicRate := flag.Float64("panic-rate", 0, "Injected panic probability per request [0-1]")
	maxDelay := flag.Duration("max-delay", 0, "Max injected delay per request")
	journalDir := flag.String("journal-dir", "", "Write outcomes to this journal directory")
	timeout := flag.Duration("timeout", 10*time.Second, "Max wait for the outcomes of one round")
	flag.Parse()

	if *rounds <= 0 || *producers <= 0 || *perRound <= 0 || *maxQty <= 0 || *volume < 0 {
		log.Fatalf("rounds, producers, orders and max-qty must be > 0, volume >= 0")
	}
	startPrice, err := decimal.NewFromString(*price)
	if err != nil || !startPrice.IsPositive() {
		log.Fatalf("price must be a positive decimal: %q", *price)
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	metrics := obs.NewMetrics()
	outcomes := make(chan execution.Outcome, *producers**perRound*2)
	sinks := notify.Multi{notify.OutcomeFunc(func(out execution.Outcome) { outcomes <- out })}

	var writer *journal.Writer
	if *journalDir != "" {
		writer, err = journal.NewWriter(journal.DefaultConfig(*journalDir))
		if err != nil {
			log.Fatalf("journal init failed: %v", err)
		}
		if err := writer.Start(context.Background()); err != nil {
			log.Fatalf("journal start failed: %v", err)
		}
		sinks = append(sinks, writer)
	}

	opts := []execution.Option{
		execution.WithSink(sinks),
		execution.WithMetrics(metrics),
		execution.WithRegistry(loaded.Registry),
	}
	if loaded.RiskEnabled {
		opts = append(opts, execution.WithRisk(risk.NewEngine(loaded.Risk, loaded.Registry)))
	}
	faultCfg := chaos.Config{Seed: *seed, FailRate: *failRate, PanicRate: *panicRate, MaxDelay: *maxDelay}
	var faults *chaos.Engine
	if faultCfg.Enabled() {
		faults, err = chaos.NewEngine(faultCfg)
		if err != nil {
			log.Fatalf("chaos config invalid: %v", err)
		}
		opts = append(opts, execution.WithFaults(faults))
	}

	system := execution.New(loaded.Execution, opts...)
	if err := system.Run(); err != nil {
		log.Fatalf("execution system start failed: %v", err)
	}

	p := params{
		symbols:   symbols(loaded.Registry),
		producers: *producers,
		perRound:  *perRound,
		maxQty:    *maxQty,
		volume:    *volume,
		price:     startPrice,
		limitRate: *limitRate,
		timeout:   *timeout,
	}
	rng := rand.New(rand.NewSource(*seed))

	var total tally
	for r := 1; r <= *rounds; r++ {
		t, err := runRound(system, outcomes, p, rng.Int63())
		if err != nil {
			log.Fatalf("round %d failed: %v", r, err)
		}
		conserved := t.supplied == t.leftover+t.executed
		fmt.Printf("round %03d price=%s supplied=%d executed=%d leftover=%d outcomes=%d conserved=%v\n",
			r, p.price, t.supplied, t.executed, t.leftover, t.outcomes, conserved)
		if !conserved {
			log.Fatalf("liquidity not conserved in round %d", r)
		}
		total.supplied += t.supplied
		total.executed += t.executed
		total.leftover += t.leftover
		total.outcomes += t.outcomes

		p.price = walk(rng, p.price)
	}

	system.Stop()
	if writer != nil {
		if err := writer.Close(); err != nil {
			log.Printf("journal close failed: %v", err)
		}
	}

	fmt.Printf("total supplied=%d executed=%d leftover=%d outcomes=%d open=%d\n",
		total.supplied, total.executed, total.leftover, total.outcomes, len(system.Waitlist()))
	if faults != nil {
		stats := faults.Stats()
		fmt.Printf("faults failures=%d panics=%d delays=%d\n", stats.Failures, stats.Panics, stats.Delays)
	}
	snapshot, err := sonic.ConfigStd.MarshalIndent(metrics.Snapshot(), "", "  ")
	if err != nil {
		log.Fatalf("marshal metrics failed: %v", err)
	}
	fmt.Println(string(snapshot))
}

// runRound offers fresh liquidity, lets every producer submit concurrently and waits for
// all outcomes. Open orders from the round are cancelled so the next round starts clean.
func runRound(system *execution.System, outcomes <-chan execution.Outcome, p params, seed int64) (tally, error) {
	if err := system.SetCurrentMarket(schema.Quantity(p.volume), p.price); err != nil {
		return tally{}, err
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		submitted int
		errs      []error
	)
	for i := 0; i < p.producers; i++ {
		wg.Add(1)
		go func(rng *rand.Rand) {
			defer wg.Done()
			for j := 0; j < p.perRound; j++ {
				o, err := system.NewOrder(randomParams(rng, p))
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					continue
				}
				if _, err := system.Submit(o, execution.RequestExecute, nil); err != nil {
					_ = system.Discard(o)
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					continue
				}
				mu.Lock()
				submitted++
				mu.Unlock()
			}
		}(rand.New(rand.NewSource(seed + int64(i))))
	}
	wg.Wait()
	if len(errs) > 0 {
		return tally{}, fmt.Errorf("%d producer errors, first: %w", len(errs), errs[0])
	}

	t := tally{supplied: schema.Quantity(p.volume)}
	if err := collect(outcomes, submitted, p.timeout, &t); err != nil {
		return tally{}, err
	}
	t.leftover = system.Liquidity().Volume

	open := system.Waitlist()
	cancelled := 0
	for _, id := range open {
		if _, err := system.SubmitByID(id, execution.RequestCancel, nil); err == nil {
			cancelled++
		}
	}
	var drain tally
	if err := collect(outcomes, cancelled, p.timeout, &drain); err != nil {
		return tally{}, err
	}
	return t, nil
}

func collect(outcomes <-chan execution.Outcome, n int, timeout time.Duration, t *tally) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for i := 0; i < n; i++ {
		select {
		case out := <-outcomes:
			t.outcomes++
			t.executed += out.ExecutedQuantity
		case <-deadline.C:
			return fmt.Errorf("timed out after %d of %d outcomes", i, n)
		}
	}
	return nil
}

func randomParams(rng *rand.Rand, p params) order.Params {
	op := order.Params{
		Symbol:         p.symbols[rng.Intn(len(p.symbols))],
		Quantity:       schema.Quantity(rng.Int63n(p.maxQty) + 1),
		Action:         schema.ActionBuy,
		Kind:           order.Market(),
		PositionEffect: schema.PositionEffectOpen,
	}
	if rng.Intn(2) == 1 {
		op.Action = schema.ActionSell
		op.PositionEffect = schema.PositionEffectClose
	}
	if rng.Float64() < p.limitRate {
		offset := decimal.NewFromFloat(0.95 + rng.Float64()*0.1)
		op.Kind = order.Limit(p.price.Mul(offset).Round(2))
	}
	return op
}

func walk(rng *rand.Rand, price decimal.Decimal) decimal.Decimal {
	step := decimal.NewFromFloat(0.98 + rng.Float64()*0.04)
	next := price.Mul(step).Round(2)
	if !next.IsPositive() {
		return price
	}
	return next
}

func symbols(reg *schema.Registry) []string {
	if reg == nil || reg.SymbolCount() == 0 {
		return []string{"PAPER"}
	}
	return reg.SymbolNames()
}
