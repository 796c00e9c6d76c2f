package execution

import (
	"fmt"
	"strings"
	"time"

	"github.com/osdajiba/autotrade/internal/order"
)

// RequestKind selects the transition a request asks for.
type RequestKind uint8

const (
	_request_kind_beg RequestKind = iota
	RequestExecute
	RequestModify
	RequestCancel
	_request_kind_end
)

func (k RequestKind) IsAvailable() bool {
	return k > _request_kind_beg && k < _request_kind_end
}

func (k RequestKind) String() string {
	switch k {
	case RequestExecute:
		return "EXECUTE"
	case RequestModify:
		return "MODIFY"
	case RequestCancel:
		return "CANCEL"
	default:
		return "UNKNOWN"
	}
}

func ParseRequestKind(s string) (RequestKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EXECUTE":
		return RequestExecute, nil
	case "MODIFY":
		return RequestModify, nil
	case "CANCEL":
		return RequestCancel, nil
	default:
		return _request_kind_beg, fmt.Errorf("unknown request kind: %q", s)
	}
}

func (k RequestKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *RequestKind) UnmarshalText(text []byte) error {
	v, err := ParseRequestKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Request is one queued transition. It is a value and never changes once enqueued.
type Request struct {
	ID           string              `json:"requestId"`
	Seq          uint64              `json:"seq"`
	Kind         RequestKind         `json:"kind"`
	OrderID      string              `json:"orderId"`
	Modification *order.Modification `json:"modification,omitempty"`
	SubmittedAt  time.Time           `json:"submittedAt"`
}

func copyModification(m *order.Modification) *order.Modification {
	if m == nil {
		return nil
	}
	c := *m
	if m.Kind != nil {
		k := *m.Kind
		c.Kind = &k
	}
	return &c
}
