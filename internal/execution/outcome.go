package execution

import (
	"time"

	"github.com/osdajiba/autotrade/internal/order"
	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/shopspring/decimal"
)

// Outcome reports what happened to one request. It is built under the engine lock and
// handed to the sink after the lock is released.
type Outcome struct {
	RequestID        string            `json:"requestId"`
	Seq              uint64            `json:"seq"`
	Kind             RequestKind       `json:"kind"`
	Result           schema.Result     `json:"result"`
	OrderID          string            `json:"orderId"`
	Status           order.Status      `json:"status"`
	ExecutedQuantity schema.Quantity   `json:"executedQuantity"`
	FillPrice        decimal.Decimal   `json:"fillPrice"`
	Fee              decimal.Decimal   `json:"fee"`
	RiskReason       schema.RiskReason `json:"riskReason,omitempty"`
	Message          string            `json:"message"`
	Error            string            `json:"error,omitempty"`
	At               time.Time         `json:"at"`
	Order            order.View        `json:"order"`
	Linked           []order.View      `json:"linked,omitempty"`

	Err error `json:"-"`
}

// Title is the short notification heading for the outcome.
func (o Outcome) Title() string {
	switch o.Result {
	case schema.ResultFilled:
		return "Order Executed"
	case schema.ResultPartial:
		return "Order Partially Executed"
	case schema.ResultNoLiquidity:
		return "Order Pending"
	case schema.ResultModified:
		return "Order Modified"
	case schema.ResultCancelled:
		return "Order Canceled"
	case schema.ResultRejected:
		return "Order Rejected"
	case schema.ResultShutdown:
		return "Execution System Shutdown"
	case schema.ResultInvariantViolation:
		return "Execution System Invariant Violation"
	case schema.ResultInvalid:
		switch o.Kind {
		case RequestModify:
			return "Order Modification Failed"
		case RequestCancel:
			return "Order Cancellation Failed"
		default:
			return "Order Execution Failed"
		}
	case schema.ResultFailure:
		switch o.Kind {
		case RequestModify:
			return "Order Modification Error"
		case RequestCancel:
			return "Order Cancellation Error"
		default:
			return "Order Execution Error"
		}
	default:
		return "Execution Outcome"
	}
}

// Text is the notification body.
func (o Outcome) Text() string {
	return o.Message
}

// Success reports whether the request was applied.
func (o Outcome) Success() bool {
	return o.Result.Success()
}
