package order

import "fmt"

// Status tracks the lifecycle of an order.
type Status uint8

const (
	StatusPending Status = iota
	StatusPartial
	StatusFilled
	StatusCancelled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusPartial:
		return "PARTIAL"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// IsTerminal reports whether no further transition is legal.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the order still belongs in the waitlist.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusPartial
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "PENDING":
		*s = StatusPending
	case "PARTIAL":
		*s = StatusPartial
	case "FILLED":
		*s = StatusFilled
	case "CANCELLED":
		*s = StatusCancelled
	case "REJECTED":
		*s = StatusRejected
	default:
		return fmt.Errorf("unknown order status: %q", text)
	}
	return nil
}
