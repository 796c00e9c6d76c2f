package order

import (
	"time"

	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/osdajiba/autotrade/pkg/exception"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// ExecSettings carries per-order cost parameters. They are copied into the order at
// construction and never change afterwards.
type ExecSettings struct {
	TransactionFee decimal.Decimal `json:"transactionFee"`
	Slippage       decimal.Decimal `json:"slippage"`
}

// Params are the static order parameters supplied by a producer.
type Params struct {
	Symbol         string
	Quantity       schema.Quantity
	Action         schema.Action
	Kind           Kind
	Price          decimal.NullDecimal
	PositionEffect schema.PositionEffect
}

// Validate checks the parameters before an order is built.
func (p Params) Validate() error {
	if p.Symbol == "" {
		return exception.ErrEmptySymbol
	}
	if p.Quantity <= 0 {
		return exception.ErrInvalidQuantity
	}
	if !p.Action.IsAvailable() {
		return exception.ErrInvalidAction
	}
	if p.Price.Valid && !p.Price.Decimal.IsPositive() {
		return errors.Wrap(exception.ErrInvalidKind, "price must be > 0 when set")
	}
	return p.Kind.Validate(p.Quantity)
}

// Order is a single order and its execution state. Fields are only reachable through
// accessors; state changes go through Execute, Modify, Cancel and Reject.
//
// An Order is not safe for concurrent use. Once submitted it must only be touched by the
// execution worker; other goroutines read it through execution.System.Lookup.
type Order struct {
	id     string
	symbol string
	action schema.Action
	kind   Kind
	effect schema.PositionEffect
	price  decimal.NullDecimal

	quantity  schema.Quantity
	filled    schema.Quantity
	remaining schema.Quantity
	status    Status

	createdAt   time.Time
	executedAt  time.Time
	cancelledAt time.Time
	modifiedAt  time.Time
	reason      string

	fee      decimal.Decimal
	slippage decimal.Decimal

	parent *Order
	legs   *legs
}

// New builds a PENDING order, assigning its id and creation time. OCO kinds also get
// their limit and stop legs, reachable through Legs.
func New(p Params, settings ExecSettings, opts ...Option) (*Order, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	now := o.clock()

	parent := build(p, settings, now)
	if err := o.assignID(parent, nil); err != nil {
		return nil, err
	}
	if p.Kind.Tag != KindOCO {
		return parent, nil
	}

	limitParams := p
	limitParams.Kind = Limit(p.Kind.LimitPrice)
	limitParams.Price = decimal.NewNullDecimal(p.Kind.LimitPrice)
	stopParams := p
	stopParams.Kind = Stop(p.Kind.StopPrice)
	stopParams.Price = decimal.NewNullDecimal(p.Kind.StopPrice)

	limit := build(limitParams, settings, now)
	stop := build(stopParams, settings, now)
	taken := map[string]struct{}{parent.id: {}}
	if err := o.assignID(limit, taken); err != nil {
		return nil, err
	}
	taken[limit.id] = struct{}{}
	if err := o.assignID(stop, taken); err != nil {
		return nil, err
	}
	limit.parent, stop.parent = parent, parent
	parent.legs = &legs{limit: limit, stop: stop}
	return parent, nil
}

func build(p Params, settings ExecSettings, now time.Time) *Order {
	return &Order{
		symbol:    p.Symbol,
		action:    p.Action,
		kind:      p.Kind,
		effect:    p.PositionEffect,
		price:     p.Price,
		quantity:  p.Quantity,
		remaining: p.Quantity,
		status:    StatusPending,
		createdAt: now,
		fee:       settings.TransactionFee,
		slippage:  settings.Slippage,
	}
}

func (o *Order) ID() string                            { return o.id }
func (o *Order) Symbol() string                        { return o.symbol }
func (o *Order) Action() schema.Action                 { return o.action }
func (o *Order) Kind() Kind                            { return o.kind }
func (o *Order) PositionEffect() schema.PositionEffect { return o.effect }
func (o *Order) Price() decimal.NullDecimal            { return o.price }
func (o *Order) Quantity() schema.Quantity             { return o.quantity }
func (o *Order) FilledQuantity() schema.Quantity       { return o.filled }
func (o *Order) RemainingQuantity() schema.Quantity    { return o.remaining }
func (o *Order) Status() Status                        { return o.status }
func (o *Order) CreationTime() time.Time               { return o.createdAt }
func (o *Order) ExecutionTime() time.Time              { return o.executedAt }
func (o *Order) CancellationTime() time.Time           { return o.cancelledAt }
func (o *Order) ModificationTime() time.Time           { return o.modifiedAt }
func (o *Order) RejectReason() string                  { return o.reason }
func (o *Order) TransactionFee() decimal.Decimal       { return o.fee }
func (o *Order) Slippage() decimal.Decimal             { return o.slippage }

// Execute records a fill of qty units.
//
// A fill equal to the remaining quantity moves the order to FILLED, a smaller positive fill
// moves it to PARTIAL and a zero fill changes nothing. Fills on OCO parents are rejected;
// execute one of the legs instead.
func (o *Order) Execute(qty schema.Quantity, at time.Time) error {
	if o.status.IsTerminal() {
		return errors.Wrapf(exception.ErrInvalidTransition, "execute order %s in status %s", o.id, o.status)
	}
	if o.legs != nil {
		return errors.Wrapf(exception.ErrInvalidKind, "execute OCO order %s directly", o.id)
	}
	if qty < 0 || qty > o.remaining {
		return errors.Wrapf(exception.ErrInvalidFill, "fill %d for order %s with remaining %d", qty, o.id, o.remaining)
	}
	if qty == 0 {
		return nil
	}

	o.filled += qty
	o.remaining -= qty
	o.executedAt = at
	if o.remaining == 0 {
		o.status = StatusFilled
	} else {
		o.status = StatusPartial
	}
	return nil
}

// Modify applies new parameters to a PENDING order. The order stays PENDING.
func (o *Order) Modify(m Modification, at time.Time) error {
	if o.status != StatusPending {
		return errors.Wrapf(exception.ErrInvalidTransition, "modify order %s in status %s", o.id, o.status)
	}
	if err := m.validate(o); err != nil {
		return err
	}

	if m.Quantity > 0 {
		o.quantity = m.Quantity
		o.remaining = m.Quantity - o.filled
	}
	if m.Price.Valid {
		o.price = m.Price
	}
	if m.Kind != nil {
		o.kind = *m.Kind
	}
	if m.Action.IsAvailable() {
		o.action = m.Action
	}
	if m.PositionEffect.IsAvailable() {
		o.effect = m.PositionEffect
	}
	o.modifiedAt = at
	return nil
}

// Cancel moves an open order to CANCELLED. Cancelling a terminal order is a no-op and
// reports false.
func (o *Order) Cancel(at time.Time) bool {
	if o.status.IsTerminal() {
		return false
	}
	o.status = StatusCancelled
	o.cancelledAt = at
	return true
}

// Reject moves a PENDING order to REJECTED.
func (o *Order) Reject(reason string, at time.Time) error {
	if o.status != StatusPending {
		return errors.Wrapf(exception.ErrInvalidTransition, "reject order %s in status %s", o.id, o.status)
	}
	o.status = StatusRejected
	o.reason = reason
	o.cancelledAt = at
	return nil
}

// Consistent reports whether the quantity invariant holds.
func (o *Order) Consistent() bool {
	return o.filled >= 0 && o.remaining >= 0 && o.filled+o.remaining == o.quantity
}

// Modification is the MODIFY payload. Zero values leave the field unchanged.
type Modification struct {
	Quantity       schema.Quantity       `json:"quantity"`
	Price          decimal.NullDecimal   `json:"price"`
	Kind           *Kind                 `json:"kind,omitempty"`
	Action         schema.Action         `json:"action"`
	PositionEffect schema.PositionEffect `json:"positionEffect"`
}

// IsEmpty reports whether the modification changes nothing.
func (m Modification) IsEmpty() bool {
	return m.Quantity == 0 && !m.Price.Valid && m.Kind == nil &&
		!m.Action.IsAvailable() && !m.PositionEffect.IsAvailable()
}

func (m Modification) validate(o *Order) error {
	if m.IsEmpty() {
		return errors.Wrap(exception.ErrInvalidRequest, "empty modification")
	}
	if m.Quantity < 0 {
		return exception.ErrInvalidQuantity
	}
	if m.Price.Valid && !m.Price.Decimal.IsPositive() {
		return errors.Wrap(exception.ErrInvalidKind, "price must be > 0 when set")
	}
	if o.legs != nil {
		return errors.Wrapf(exception.ErrInvalidKind, "modify OCO order %s directly", o.id)
	}
	if o.parent != nil && m.Quantity > 0 {
		return errors.Wrapf(exception.ErrInvalidRequest, "OCO leg %s shares its parent quantity", o.id)
	}
	if m.Kind != nil && (m.Kind.Tag == KindOCO || o.parent != nil) {
		return errors.Wrap(exception.ErrInvalidKind, "OCO kind cannot be changed by modification")
	}

	kind := o.kind
	if m.Kind != nil {
		kind = *m.Kind
	}
	qty := o.quantity
	if m.Quantity > 0 {
		qty = m.Quantity
	}
	return kind.Validate(qty)
}
