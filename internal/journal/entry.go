package journal

import (
	"time"

	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/osdajiba/autotrade/internal/order"
	"github.com/osdajiba/autotrade/internal/schema"
)

// Entry is one journaled notification. Plain notifications only carry Title and Message.
type Entry struct {
	Seq        uint64                `json:"seq"`
	At         time.Time             `json:"at"`
	Title      string                `json:"title"`
	Message    string                `json:"message"`
	RequestID  string                `json:"requestId,omitempty"`
	Kind       execution.RequestKind `json:"kind,omitempty"`
	Result     schema.Result         `json:"result,omitempty"`
	OrderID    string                `json:"orderId,omitempty"`
	RiskReason schema.RiskReason     `json:"riskReason,omitempty"`
	Error      string                `json:"error,omitempty"`
	Orders     []order.View          `json:"orders,omitempty"`
}

// FromOutcome flattens an outcome and the order family it touched.
func FromOutcome(out execution.Outcome) Entry {
	e := Entry{
		At:         out.At,
		Title:      out.Title(),
		Message:    out.Text(),
		RequestID:  out.RequestID,
		Kind:       out.Kind,
		Result:     out.Result,
		OrderID:    out.OrderID,
		RiskReason: out.RiskReason,
		Error:      out.Error,
	}
	if out.Order.ID != "" {
		e.Orders = append(e.Orders, out.Order)
	}
	for _, v := range out.Linked {
		if v.ID != "" {
			e.Orders = append(e.Orders, v)
		}
	}
	return e
}

// Fold replays entries in order and returns the last known state of every order.
func Fold(entries []Entry) map[string]order.View {
	latest := make(map[string]order.View)
	for _, e := range entries {
		for _, v := range e.Orders {
			latest[v.ID] = v
		}
	}
	return latest
}

// Tally counts entries per result. Plain notifications are not counted.
func Tally(entries []Entry) map[schema.Result]int {
	counts := make(map[schema.Result]int)
	for _, e := range entries {
		if e.Result.IsAvailable() {
			counts[e.Result]++
		}
	}
	return counts
}
