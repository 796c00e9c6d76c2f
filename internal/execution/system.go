package execution

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/osdajiba/autotrade/internal/bus"
	"github.com/osdajiba/autotrade/internal/chaos"
	"github.com/osdajiba/autotrade/internal/obs"
	"github.com/osdajiba/autotrade/internal/order"
	"github.com/osdajiba/autotrade/internal/risk"
	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/osdajiba/autotrade/pkg/exception"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const defaultPollInterval = time.Second

// Config tunes the execution system.
type Config struct {
	// QueueCapacity bounds the request queue; <= 0 means unbounded.
	QueueCapacity int `json:"queueCapacity"`
	// PollInterval is how long the worker waits for a request before re-checking for stop.
	PollInterval time.Duration `json:"pollInterval"`
	// Settings are copied into every order built through NewOrder.
	Settings order.ExecSettings `json:"settings"`
}

type lifecycle uint8

const (
	lifecycleIdle lifecycle = iota
	lifecycleRunning
	lifecycleStopping
	lifecycleStopped
)

// Option customizes a System.
type Option func(*System)

func WithSink(sink Sink) Option {
	return func(s *System) { s.sink = sink }
}

func WithRisk(engine *risk.Engine) Option {
	return func(s *System) { s.risk = engine }
}

func WithMetrics(m *obs.Metrics) Option {
	return func(s *System) { s.metrics = m }
}

// WithFaults injects faults after each transition, before it is committed. Injected
// delays run before the engine lock is taken.
func WithFaults(engine *chaos.Engine) Option {
	return func(s *System) { s.faults = engine }
}

// WithRegistry supplies quantity scales for fill price and fee arithmetic.
func WithRegistry(reg *schema.Registry) Option {
	return func(s *System) { s.registry = reg }
}

func WithClock(clock func() time.Time) Option {
	return func(s *System) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// System accepts EXECUTE, MODIFY and CANCEL requests from any number of producers and
// applies them one at a time on a single worker goroutine against a shared simulated
// liquidity pool.
//
// Liquidity, the waitlist and the order registry are guarded by one mutex. Orders are
// only mutated under it, so a registered order must not be touched directly by callers.
type System struct {
	cfg      Config
	sink     Sink
	risk     *risk.Engine
	faults   *chaos.Engine
	metrics  *obs.Metrics
	registry *schema.Registry
	clock    func() time.Time
	seq      *obs.Sequence
	queue    *bus.Queue[Request]

	mu        sync.Mutex
	liquidity Liquidity
	waitlist  *Waitlist
	orders    map[string]*order.Order
	submitted map[string]struct{}
	cleared   map[string]struct{}

	life   sync.RWMutex
	state  lifecycle
	on     bool
	cancel context.CancelFunc
	wg     sync.WaitGroup

	fatal atomic.Value
}

// New builds a System that is switched on but not yet running.
func New(cfg Config, opts ...Option) *System {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	s := &System{
		cfg:       cfg,
		clock:     time.Now,
		seq:       obs.NewSequence(0),
		queue:     bus.NewQueue[Request](cfg.QueueCapacity),
		waitlist:  NewWaitlist(),
		orders:    make(map[string]*order.Order),
		submitted: make(map[string]struct{}),
		cleared:   make(map[string]struct{}),
		on:        true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the worker. It is a no-op when already running and fails with
// ErrSystemOff when the system is switched off.
func (s *System) Run() error {
	s.life.Lock()
	defer s.life.Unlock()

	if !s.on {
		logs.Errorf("cannot start execution system: system status is off")
		return exception.ErrSystemOff
	}
	switch s.state {
	case lifecycleRunning:
		logs.Warn("execution worker is already running")
		return nil
	case lifecycleStopping:
		return exception.ErrShutdownInProgress
	}
	if err := s.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = lifecycleRunning
	s.wg.Add(1)
	go s.work(ctx)
	logs.Info("execution worker started")
	return nil
}

// Stop signals the worker, waits for the in-flight request and reports every request
// still queued as a shutdown outcome. It is a no-op when the worker is not running.
func (s *System) Stop() {
	s.life.Lock()
	if s.state != lifecycleRunning {
		s.life.Unlock()
		logs.Warn("no active execution worker to stop")
		return
	}
	s.state = lifecycleStopping
	cancel := s.cancel
	s.life.Unlock()

	cancel()
	s.wg.Wait()

	pending := s.queue.Drain()
	for _, req := range pending {
		s.dispatch(s.shutdownOutcome(req))
	}

	s.life.Lock()
	s.state = lifecycleStopped
	s.cancel = nil
	s.life.Unlock()
	logs.Infof("execution worker stopped, %d queued requests dropped", len(pending))
}

// SetStatus switches the system on or off. It only affects future calls to Run.
func (s *System) SetStatus(on bool) {
	s.life.Lock()
	defer s.life.Unlock()
	s.on = on
}

// Status reports whether the system is switched on.
func (s *System) Status() bool {
	s.life.RLock()
	defer s.life.RUnlock()
	return s.on
}

// Running reports whether the worker is running.
func (s *System) Running() bool {
	s.life.RLock()
	defer s.life.RUnlock()
	return s.state == lifecycleRunning
}

// Err returns the latched invariant violation, if any. Once set the worker stops and
// every Submit fails with it.
func (s *System) Err() error {
	if v, ok := s.fatal.Load().(latched); ok {
		return v.err
	}
	return nil
}

type latched struct{ err error }

func (s *System) latch(err error) {
	s.fatal.CompareAndSwap(nil, latched{err: err})
}

// SetCurrentMarket replaces the simulated liquidity. Negative volume or a non-positive
// price is refused.
func (s *System) SetCurrentMarket(volume schema.Quantity, price decimal.Decimal) error {
	if volume < 0 || !price.IsPositive() {
		logs.Warnf("invalid parameters provided for updating current market parameters, volume: %d, price: %s", volume, price)
		return errors.Wrapf(exception.ErrInvalidMarket, "volume %d, price %s", volume, price)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.liquidity = Liquidity{Volume: volume, Price: price, UpdatedAt: s.clock()}
	return nil
}

// Liquidity returns a copy of the current liquidity.
func (s *System) Liquidity() Liquidity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liquidity
}

// NewOrder builds a PENDING order with the system's execution settings, registers it
// and adds it to the waitlist. The caller must follow up with Submit or Discard.
func (s *System) NewOrder(p order.Params, opts ...order.Option) (*order.Order, error) {
	return s.NewOrderWithSettings(p, s.cfg.Settings, opts...)
}

// NewOrderWithSettings is NewOrder with explicit execution settings.
func (s *System) NewOrderWithSettings(p order.Params, settings order.ExecSettings, opts ...order.Option) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := []order.Option{order.WithClock(s.clock), order.WithUniqueness(s.taken)}
	o, err := order.New(p, settings, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	s.registerLocked(o)
	return o, nil
}

// Register adds an order built with order.New. It fails if any id of the order family
// is already known.
func (s *System) Register(o *order.Order) error {
	if o == nil {
		return exception.ErrNilOrder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, member := range o.Family() {
		if s.taken(member.ID()) {
			return errors.Wrapf(exception.ErrDuplicateOrder, "order %s", member.ID())
		}
	}
	if o.Status().IsTerminal() {
		return errors.Wrapf(exception.ErrInvalidTransition, "register order %s in status %s", o.ID(), o.Status())
	}
	s.registerLocked(o)
	return nil
}

func (s *System) taken(id string) bool {
	_, ok := s.orders[id]
	return ok
}

func (s *System) registerLocked(o *order.Order) {
	for _, member := range o.Family() {
		s.orders[member.ID()] = member
	}
	s.syncWaitlist(o.Family())
}

func (s *System) syncWaitlist(family []*order.Order) {
	for _, o := range family {
		if o.Status().IsOpen() {
			s.waitlist.Add(o.ID())
		} else {
			s.waitlist.Remove(o.ID())
			delete(s.cleared, o.ID())
		}
	}
}

// Discard cancels a registered order that was never submitted and removes it from the
// waitlist.
func (s *System) Discard(o *order.Order) error {
	if o == nil {
		return exception.ErrNilOrder
	}
	return s.discard(o.ID(), o)
}

// DiscardByID is Discard for callers that only hold the order id.
func (s *System) DiscardByID(id string) error {
	return s.discard(id, nil)
}

func (s *System) discard(id string, want *order.Order) error {
	s.mu.Lock()
	o, ok := s.orders[id]
	if !ok || (want != nil && want != o) {
		s.mu.Unlock()
		return errors.Wrapf(exception.ErrUnknownOrder, "order %s", id)
	}
	for _, member := range o.Family() {
		if _, sent := s.submitted[member.ID()]; sent {
			s.mu.Unlock()
			return errors.Wrapf(exception.ErrOrderAlreadySubmitted, "order %s", member.ID())
		}
	}
	now := s.clock()
	if !o.Cancel(now) {
		s.mu.Unlock()
		return errors.Wrapf(exception.ErrInvalidTransition, "discard order %s in status %s", o.ID(), o.Status())
	}
	linked := o.Propagate(now)
	s.syncWaitlist(o.Family())
	out := Outcome{
		RequestID: uuid.NewString(),
		Seq:       s.seq.Next(),
		Kind:      RequestCancel,
		Result:    schema.ResultCancelled,
		OrderID:   o.ID(),
		Status:    o.Status(),
		Message:   "Order " + o.ID() + " discarded before submission.",
		At:        now,
		Order:     o.View(),
		Linked:    views(linked),
	}
	s.mu.Unlock()

	s.dispatch(out)
	return nil
}

// Submit validates and enqueues a request for a registered order and returns the
// request id. The result is reported to the sink once the worker has applied it.
func (s *System) Submit(o *order.Order, kind RequestKind, mod *order.Modification) (string, error) {
	if o == nil {
		return "", exception.ErrNilOrder
	}
	return s.submit(o.ID(), o, kind, mod)
}

// SubmitByID is Submit for callers that only hold the order id.
func (s *System) SubmitByID(id string, kind RequestKind, mod *order.Modification) (string, error) {
	return s.submit(id, nil, kind, mod)
}

func (s *System) submit(id string, want *order.Order, kind RequestKind, mod *order.Modification) (string, error) {
	if err := s.Err(); err != nil {
		return "", err
	}
	if !kind.IsAvailable() {
		return "", errors.Wrapf(exception.ErrInvalidRequest, "unknown request kind %d", kind)
	}

	s.life.RLock()
	defer s.life.RUnlock()
	if s.state == lifecycleStopping || s.state == lifecycleStopped {
		return "", exception.ErrShutdownInProgress
	}

	req := Request{
		ID:           uuid.NewString(),
		Kind:         kind,
		OrderID:      id,
		Modification: copyModification(mod),
	}

	s.mu.Lock()
	o, ok := s.orders[id]
	if !ok || (want != nil && want != o) {
		s.mu.Unlock()
		return "", errors.Wrapf(exception.ErrUnknownOrder, "order %s", id)
	}
	if err := validateRequest(o, req); err != nil {
		s.mu.Unlock()
		return "", err
	}
	req.Seq = s.seq.Next()
	req.SubmittedAt = s.clock()
	if err := s.queue.TryPublish(req); err != nil {
		s.mu.Unlock()
		if errors.Is(err, bus.ErrQueueFull) {
			s.metrics.IncQueueDrop()
			return "", exception.ErrQueueFull
		}
		s.metrics.IncQueueClosed()
		return "", exception.ErrShutdownInProgress
	}
	s.submitted[id] = struct{}{}
	s.mu.Unlock()

	s.metrics.IncSubmitted()
	return req.ID, nil
}

func validateRequest(o *order.Order, req Request) error {
	if o.Status().IsTerminal() {
		return errors.Wrapf(exception.ErrInvalidTransition, "%s order %s in status %s", req.Kind, o.ID(), o.Status())
	}
	if req.Kind != RequestModify {
		return nil
	}
	if o.Status() != order.StatusPending {
		return errors.Wrapf(exception.ErrInvalidTransition, "modify order %s in status %s", o.ID(), o.Status())
	}
	if req.Modification == nil || req.Modification.IsEmpty() {
		return errors.Wrapf(exception.ErrInvalidRequest, "modify order %s without payload", o.ID())
	}
	return nil
}

// Lookup returns a copy of a registered order.
func (s *System) Lookup(id string) (order.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return order.View{}, false
	}
	return o.View(), true
}

// Orders returns copies of every registered order, sorted by id.
func (s *System) Orders() []order.View {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]order.View, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.View())
	}
	sortViews(out)
	return out
}

// Waitlist returns the ids of every open order.
func (s *System) Waitlist() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitlist.IDs()
}

// Pending returns the number of queued requests.
func (s *System) Pending() int {
	return s.queue.Len()
}

// Metrics returns the metrics container, which may be nil.
func (s *System) Metrics() *obs.Metrics {
	return s.metrics
}
