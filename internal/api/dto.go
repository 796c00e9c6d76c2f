package api

import (
	"strings"

	"github.com/osdajiba/autotrade/internal/order"
	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/osdajiba/autotrade/pkg/exception"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

type kindReq struct {
	Type            string          `json:"type"`
	LimitPrice      decimal.Decimal `json:"limitPrice"`
	StopPrice       decimal.Decimal `json:"stopPrice"`
	TriggerPrice    decimal.Decimal `json:"triggerPrice"`
	DisplayQuantity int64           `json:"displayQuantity"`
	StopPercent     decimal.Decimal `json:"stopPercent"`
}

func (k kindReq) kind() (order.Kind, error) {
	if strings.TrimSpace(k.Type) == "" {
		return order.Market(), nil
	}
	tag, err := order.ParseKindTag(k.Type)
	if err != nil {
		return order.Kind{}, errors.Wrap(exception.ErrInvalidKind, err.Error())
	}
	return order.Kind{
		Tag:             tag,
		LimitPrice:      k.LimitPrice,
		StopPrice:       k.StopPrice,
		TriggerPrice:    k.TriggerPrice,
		DisplayQuantity: schema.Quantity(k.DisplayQuantity),
		StopPercent:     k.StopPercent,
	}, nil
}

type placeOrderReq struct {
	Symbol         string              `json:"symbol" binding:"required"`
	Quantity       int64               `json:"quantity" binding:"required"`
	Action         string              `json:"action" binding:"required"`
	Kind           kindReq             `json:"kind"`
	Price          decimal.NullDecimal `json:"price"`
	PositionEffect string              `json:"positionEffect"`
	TransactionFee decimal.NullDecimal `json:"transactionFee"`
	Slippage       decimal.NullDecimal `json:"slippage"`
	// Submit enqueues an EXECUTE request right after the order is created.
	Submit bool `json:"submit"`
}

func (r placeOrderReq) params() (order.Params, error) {
	action, err := schema.ParseAction(r.Action)
	if err != nil {
		return order.Params{}, errors.Wrap(exception.ErrInvalidAction, err.Error())
	}
	effect, err := schema.ParsePositionEffect(r.PositionEffect)
	if err != nil {
		return order.Params{}, errors.Wrap(exception.ErrInvalidRequest, err.Error())
	}
	kind, err := r.Kind.kind()
	if err != nil {
		return order.Params{}, err
	}
	return order.Params{
		Symbol:         r.Symbol,
		Quantity:       schema.Quantity(r.Quantity),
		Action:         action,
		Kind:           kind,
		Price:          r.Price,
		PositionEffect: effect,
	}, nil
}

func (r placeOrderReq) settings(defaults order.ExecSettings) (order.ExecSettings, bool) {
	if !r.TransactionFee.Valid && !r.Slippage.Valid {
		return defaults, false
	}
	if r.TransactionFee.Valid {
		defaults.TransactionFee = r.TransactionFee.Decimal
	}
	if r.Slippage.Valid {
		defaults.Slippage = r.Slippage.Decimal
	}
	return defaults, true
}

type modifyOrderReq struct {
	Quantity       int64               `json:"quantity"`
	Price          decimal.NullDecimal `json:"price"`
	Kind           *kindReq            `json:"kind"`
	Action         string              `json:"action"`
	PositionEffect string              `json:"positionEffect"`
}

func (r modifyOrderReq) modification() (*order.Modification, error) {
	m := &order.Modification{
		Quantity: schema.Quantity(r.Quantity),
		Price:    r.Price,
	}
	if r.Kind != nil {
		kind, err := r.Kind.kind()
		if err != nil {
			return nil, err
		}
		m.Kind = &kind
	}
	if r.Action != "" {
		action, err := schema.ParseAction(r.Action)
		if err != nil {
			return nil, errors.Wrap(exception.ErrInvalidAction, err.Error())
		}
		m.Action = action
	}
	if r.PositionEffect != "" {
		effect, err := schema.ParsePositionEffect(r.PositionEffect)
		if err != nil {
			return nil, errors.Wrap(exception.ErrInvalidRequest, err.Error())
		}
		m.PositionEffect = effect
	}
	return m, nil
}

type marketReq struct {
	Volume int64           `json:"volume"`
	Price  decimal.Decimal `json:"price"`
}

type statusReq struct {
	On bool `json:"on"`
}
