package order

import (
	"fmt"
	"strings"

	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/osdajiba/autotrade/pkg/exception"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// KindTag selects the active variant of a Kind.
type KindTag uint8

const (
	_kind_tag_beg KindTag = iota
	KindMarket
	KindLimit
	KindStop
	KindTakeProfit
	KindStopLoss
	KindIceberg
	KindTrailingStop
	KindOCO
	_kind_tag_end
)

func (t KindTag) IsAvailable() bool {
	return t > _kind_tag_beg && t < _kind_tag_end
}

func (t KindTag) String() string {
	switch t {
	case KindMarket:
		return "MARKET"
	case KindLimit:
		return "LIMIT"
	case KindStop:
		return "STOP"
	case KindTakeProfit:
		return "TAKE_PROFIT"
	case KindStopLoss:
		return "STOP_LOSS"
	case KindIceberg:
		return "ICEBERG"
	case KindTrailingStop:
		return "TRAILING_STOP"
	case KindOCO:
		return "OCO"
	default:
		return "UNKNOWN"
	}
}

// ParseKindTag accepts the names produced by KindTag.String in any case.
func ParseKindTag(s string) (KindTag, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for t := _kind_tag_beg + 1; t < _kind_tag_end; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return _kind_tag_beg, fmt.Errorf("unknown order kind: %q", s)
}

func (t KindTag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *KindTag) UnmarshalText(text []byte) error {
	v, err := ParseKindTag(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Kind is the tagged order-type variant. Only the fields of the active tag are meaningful:
//
//	Market
//	Limit        LimitPrice
//	Stop         StopPrice
//	TakeProfit   TriggerPrice
//	StopLoss     TriggerPrice
//	Iceberg      LimitPrice, DisplayQuantity
//	TrailingStop StopPercent
//	OCO          LimitPrice (limit leg), StopPrice (stop leg)
type Kind struct {
	Tag             KindTag         `json:"tag"`
	LimitPrice      decimal.Decimal `json:"limitPrice"`
	StopPrice       decimal.Decimal `json:"stopPrice"`
	TriggerPrice    decimal.Decimal `json:"triggerPrice"`
	DisplayQuantity schema.Quantity `json:"displayQuantity"`
	StopPercent     decimal.Decimal `json:"stopPercent"`
}

func Market() Kind {
	return Kind{Tag: KindMarket}
}

func Limit(limitPrice decimal.Decimal) Kind {
	return Kind{Tag: KindLimit, LimitPrice: limitPrice}
}

func Stop(stopPrice decimal.Decimal) Kind {
	return Kind{Tag: KindStop, StopPrice: stopPrice}
}

func TakeProfit(price decimal.Decimal) Kind {
	return Kind{Tag: KindTakeProfit, TriggerPrice: price}
}

func StopLoss(price decimal.Decimal) Kind {
	return Kind{Tag: KindStopLoss, TriggerPrice: price}
}

func Iceberg(limitPrice decimal.Decimal, display schema.Quantity) Kind {
	return Kind{Tag: KindIceberg, LimitPrice: limitPrice, DisplayQuantity: display}
}

// TrailingStop trails the market by stopPercent (0.05 = 5%).
func TrailingStop(stopPercent decimal.Decimal) Kind {
	return Kind{Tag: KindTrailingStop, StopPercent: stopPercent}
}

// OCO pairs a limit leg and a stop leg; the legs are created together with the parent order.
func OCO(limitPrice, stopPrice decimal.Decimal) Kind {
	return Kind{Tag: KindOCO, LimitPrice: limitPrice, StopPrice: stopPrice}
}

func (k Kind) String() string {
	return k.Tag.String()
}

// ReferencePrice is the price the kind is anchored to, if any.
func (k Kind) ReferencePrice() (decimal.Decimal, bool) {
	switch k.Tag {
	case KindLimit, KindIceberg:
		return k.LimitPrice, true
	case KindStop:
		return k.StopPrice, true
	case KindTakeProfit, KindStopLoss:
		return k.TriggerPrice, true
	default:
		return decimal.Zero, false
	}
}

// Validate checks the kind-specific fields against the order quantity.
func (k Kind) Validate(quantity schema.Quantity) error {
	switch k.Tag {
	case KindMarket:
		return nil
	case KindLimit, KindStop, KindTakeProfit, KindStopLoss:
		if price, _ := k.ReferencePrice(); !price.IsPositive() {
			return errors.Wrapf(exception.ErrInvalidKind, "%s price must be > 0", k.Tag)
		}
		return nil
	case KindIceberg:
		if !k.LimitPrice.IsPositive() {
			return errors.Wrap(exception.ErrInvalidKind, "ICEBERG limit price must be > 0")
		}
		if k.DisplayQuantity <= 0 || k.DisplayQuantity > quantity {
			return errors.Wrapf(exception.ErrInvalidKind, "ICEBERG display quantity must be in (0, %d]", quantity)
		}
		return nil
	case KindTrailingStop:
		if !k.StopPercent.IsPositive() || k.StopPercent.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return errors.Wrap(exception.ErrInvalidKind, "TRAILING_STOP percent must be in (0, 1)")
		}
		return nil
	case KindOCO:
		if !k.LimitPrice.IsPositive() || !k.StopPrice.IsPositive() {
			return errors.Wrap(exception.ErrInvalidKind, "OCO limit and stop prices must be > 0")
		}
		return nil
	default:
		return errors.Wrapf(exception.ErrInvalidKind, "unknown tag %d", k.Tag)
	}
}
