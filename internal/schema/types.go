package schema

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity is a scaled integer. The scale is defined per symbol by configuration.
type Quantity int64

// Decimal converts the scaled quantity into a decimal with the given scale.
func (q Quantity) Decimal(scale Scale) decimal.Decimal {
	return decimal.New(int64(q), -int32(scale))
}

// MinQuantity returns the smaller of two quantities.
func MinQuantity(a, b Quantity) Quantity {
	if a < b {
		return a
	}
	return b
}

// Action describes order direction.
type Action uint8

const (
	_action_beg Action = iota
	ActionBuy
	ActionSell
	_action_end
)

func (a Action) IsAvailable() bool {
	return a > _action_beg && a < _action_end
}

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseAction accepts BUY/SELL in any case.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return ActionBuy, nil
	case "SELL":
		return ActionSell, nil
	default:
		return _action_beg, fmt.Errorf("unknown action: %q", s)
	}
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	v, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// PositionEffect describes whether an order opens or closes a position.
type PositionEffect uint8

const (
	_position_effect_beg PositionEffect = iota
	PositionEffectOpen
	PositionEffectClose
	_position_effect_end
)

func (p PositionEffect) IsAvailable() bool {
	return p > _position_effect_beg && p < _position_effect_end
}

func (p PositionEffect) String() string {
	switch p {
	case PositionEffectOpen:
		return "OPEN"
	case PositionEffectClose:
		return "CLOSE"
	default:
		return "NONE"
	}
}

// ParsePositionEffect accepts OPEN/CLOSE in any case. An empty string yields the zero value.
func ParsePositionEffect(s string) (PositionEffect, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return _position_effect_beg, nil
	case "OPEN":
		return PositionEffectOpen, nil
	case "CLOSE":
		return PositionEffectClose, nil
	default:
		return _position_effect_beg, fmt.Errorf("unknown position effect: %q", s)
	}
}

func (p PositionEffect) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PositionEffect) UnmarshalText(text []byte) error {
	v, err := ParsePositionEffect(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
