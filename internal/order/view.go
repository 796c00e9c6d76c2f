package order

import (
	"time"

	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/shopspring/decimal"
)

// View is an immutable copy of an order, safe to hand to other goroutines.
type View struct {
	ID                string                `json:"orderId"`
	Symbol            string                `json:"symbol"`
	Action            schema.Action         `json:"action"`
	Kind              Kind                  `json:"kind"`
	PositionEffect    schema.PositionEffect `json:"positionEffect"`
	Price             decimal.NullDecimal   `json:"price"`
	Quantity          schema.Quantity       `json:"quantity"`
	FilledQuantity    schema.Quantity       `json:"filledQuantity"`
	RemainingQuantity schema.Quantity       `json:"remainingQuantity"`
	Status            Status                `json:"status"`
	CreationTime      time.Time             `json:"creationTime"`
	ExecutionTime     time.Time             `json:"executionTime"`
	CancellationTime  time.Time             `json:"cancellationTime"`
	ModificationTime  time.Time             `json:"modificationTime"`
	RejectReason      string                `json:"rejectReason,omitempty"`
	TransactionFee    decimal.Decimal       `json:"transactionFee"`
	Slippage          decimal.Decimal       `json:"slippage"`
	ParentID          string                `json:"parentId,omitempty"`
	LegIDs            []string              `json:"legIds,omitempty"`
}

// View copies the current order state.
func (o *Order) View() View {
	v := View{
		ID:                o.id,
		Symbol:            o.symbol,
		Action:            o.action,
		Kind:              o.kind,
		PositionEffect:    o.effect,
		Price:             o.price,
		Quantity:          o.quantity,
		FilledQuantity:    o.filled,
		RemainingQuantity: o.remaining,
		Status:            o.status,
		CreationTime:      o.createdAt,
		ExecutionTime:     o.executedAt,
		CancellationTime:  o.cancelledAt,
		ModificationTime:  o.modifiedAt,
		RejectReason:      o.reason,
		TransactionFee:    o.fee,
		Slippage:          o.slippage,
	}
	if o.parent != nil {
		v.ParentID = o.parent.id
	}
	if o.legs != nil {
		v.LegIDs = []string{o.legs.limit.id, o.legs.stop.id}
	}
	return v
}

// Snapshot captures the mutable part of an order so a failed transition can be undone.
type Snapshot struct {
	order       *Order
	action      schema.Action
	kind        Kind
	effect      schema.PositionEffect
	price       decimal.NullDecimal
	quantity    schema.Quantity
	filled      schema.Quantity
	remaining   schema.Quantity
	status      Status
	executedAt  time.Time
	cancelledAt time.Time
	modifiedAt  time.Time
	reason      string
}

// Snapshot records the current mutable state.
func (o *Order) Snapshot() Snapshot {
	return Snapshot{
		order:       o,
		action:      o.action,
		kind:        o.kind,
		effect:      o.effect,
		price:       o.price,
		quantity:    o.quantity,
		filled:      o.filled,
		remaining:   o.remaining,
		status:      o.status,
		executedAt:  o.executedAt,
		cancelledAt: o.cancelledAt,
		modifiedAt:  o.modifiedAt,
		reason:      o.reason,
	}
}

// Restore puts the order back into the recorded state.
func (s Snapshot) Restore() {
	o := s.order
	if o == nil {
		return
	}
	o.action = s.action
	o.kind = s.kind
	o.effect = s.effect
	o.price = s.price
	o.quantity = s.quantity
	o.filled = s.filled
	o.remaining = s.remaining
	o.status = s.status
	o.executedAt = s.executedAt
	o.cancelledAt = s.cancelledAt
	o.modifiedAt = s.modifiedAt
	o.reason = s.reason
}
