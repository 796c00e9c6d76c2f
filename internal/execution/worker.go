package execution

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/osdajiba/autotrade/internal/bus"
	"github.com/osdajiba/autotrade/internal/order"
	"github.com/osdajiba/autotrade/internal/risk"
	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/osdajiba/autotrade/pkg/exception"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func (s *System) work(ctx context.Context) {
	defer s.wg.Done()

	for {
		req, err := s.queue.Dequeue(ctx, s.cfg.PollInterval)
		if err != nil {
			if errors.Is(err, bus.ErrQueueEmpty) {
				continue
			}
			return
		}
		if ctx.Err() != nil {
			s.dispatch(s.shutdownOutcome(req))
			return
		}

		s.process(req)
		if err := s.Err(); err != nil {
			logs.Errorf("execution worker halted, err: %+v", err)
			return
		}
	}
}

func (s *System) process(req Request) {
	start := s.clock()
	if !req.SubmittedAt.IsZero() {
		s.metrics.ObserveQueueWait(start.Sub(req.SubmittedAt))
	}

	s.faults.Delay()

	s.mu.Lock()
	outs := s.apply(req)
	s.mu.Unlock()

	s.metrics.ObserveApply(s.clock().Sub(start))
	s.dispatch(outs...)
}

// apply runs one request under the engine lock. Any error or panic restores the order
// family and liquidity to their state before the request.
func (s *System) apply(req Request) (outs []Outcome) {
	now := s.clock()
	o, ok := s.orders[req.OrderID]
	if !ok {
		err := errors.Wrapf(exception.ErrUnknownOrder, "order %s", req.OrderID)
		return []Outcome{s.invalidOutcome(req, nil, err, now)}
	}

	family := o.Family()
	snaps := make([]order.Snapshot, len(family))
	before := make([]order.Status, len(family))
	for i, member := range family {
		snaps[i] = member.Snapshot()
		before[i] = member.Status()
	}
	liquidity := s.liquidity
	_, cleared := s.cleared[o.ID()]
	var mark risk.Mark
	if s.risk != nil {
		mark = s.risk.Mark()
	}

	rollback := func() {
		for _, snap := range snaps {
			snap.Restore()
		}
		s.liquidity = liquidity
		s.syncWaitlist(family)
		if s.risk != nil {
			s.risk.Rewind(mark)
		}
		if cleared {
			s.cleared[o.ID()] = struct{}{}
		} else {
			delete(s.cleared, o.ID())
		}
	}

	defer func() {
		if r := recover(); r != nil {
			rollback()
			err := errors.Wrapf(exception.ErrExecutionFailure, "panic: %v", r)
			logs.Errorf("recovered while applying request %s for order %s, err: %+v", req.ID, req.OrderID, err)
			outs = []Outcome{s.failureOutcome(req, o, err, now)}
		}
		if err := s.verify(family, before); err != nil {
			s.latch(err)
			logs.Errorf("invariant violated after request %s for order %s, err: %+v", req.ID, req.OrderID, err)
			outs = append(outs, s.violationOutcome(req, o, err, now))
		}
	}()

	var (
		out Outcome
		err error
	)
	switch req.Kind {
	case RequestExecute:
		out, err = s.executeLocked(req, o, now)
	case RequestModify:
		out, err = s.modifyLocked(req, o, now)
	case RequestCancel:
		out, err = s.cancelLocked(req, o, now)
	default:
		err = errors.Wrapf(exception.ErrInvalidRequest, "unknown request kind %d", req.Kind)
	}
	if err == nil && s.faults != nil {
		err = s.faults.Inject()
	}
	if err != nil {
		rollback()
		if isInvalid(err) {
			return []Outcome{s.invalidOutcome(req, o, err, now)}
		}
		err = errors.Wrap(exception.ErrExecutionFailure, err.Error())
		logs.Errorf("failed to apply request %s for order %s, err: %+v", req.ID, req.OrderID, err)
		return []Outcome{s.failureOutcome(req, o, err, now)}
	}
	return []Outcome{out}
}

func isInvalid(err error) bool {
	for _, target := range []error{
		exception.ErrInvalidTransition,
		exception.ErrInvalidRequest,
		exception.ErrInvalidKind,
		exception.ErrInvalidQuantity,
		exception.ErrInvalidAction,
		exception.ErrUnknownOrder,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *System) requireWaitlisted(o *order.Order) error {
	if !s.waitlist.Has(o.ID()) {
		return errors.Wrapf(exception.ErrInvalidTransition, "order %s is not in the waitlist, status %s", o.ID(), o.Status())
	}
	return nil
}

func (s *System) executeLocked(req Request, o *order.Order, now time.Time) (Outcome, error) {
	if err := s.requireWaitlisted(o); err != nil {
		return Outcome{}, err
	}
	if o.Kind().Tag == order.KindOCO {
		return Outcome{}, errors.Wrapf(exception.ErrInvalidKind, "execute OCO order %s through one of its legs", o.ID())
	}

	// Pre-trade checks run once per order; retries of a cleared order skip them.
	if _, ok := s.cleared[o.ID()]; !ok && s.risk != nil {
		if out, denied, err := s.checkRisk(req, o, now); denied || err != nil {
			return out, err
		}
		s.cleared[o.ID()] = struct{}{}
	}

	if s.liquidity.Volume <= 0 {
		out := s.baseOutcome(req, o, now)
		out.Result = schema.ResultNoLiquidity
		out.Err = exception.ErrLiquidityExhausted
		out.Error = exception.ErrLiquidityExhausted.Error()
		out.Message = fmt.Sprintf("Order %s pending: current volume is zero or negative, simulated execution failed.", o.ID())
		return out, nil
	}

	executed := schema.MinQuantity(s.liquidity.Volume, o.RemainingQuantity())
	if err := o.Execute(executed, now); err != nil {
		return Outcome{}, err
	}
	s.liquidity.Volume -= executed
	linked := o.Propagate(now)
	s.syncWaitlist(o.Family())

	price := s.liquidity.fillPrice(o.Action(), o.Slippage())
	out := s.baseOutcome(req, o, now)
	out.ExecutedQuantity = executed
	out.FillPrice = price
	out.Fee = fee(executed, s.registry.Scale(o.Symbol()), price, o.TransactionFee())
	out.Linked = views(linked)
	if o.Status() == order.StatusFilled {
		out.Result = schema.ResultFilled
		out.Message = fmt.Sprintf("Order %s executed successfully.", o.ID())
	} else {
		out.Result = schema.ResultPartial
		out.Message = fmt.Sprintf("Order %s partially executed, %d of %d remaining.", o.ID(), o.RemainingQuantity(), o.Quantity())
	}
	return out, nil
}

func (s *System) checkRisk(req Request, o *order.Order, now time.Time) (Outcome, bool, error) {
	intent := risk.Intent{
		OrderID:  o.ID(),
		Symbol:   o.Symbol(),
		Quantity: o.Quantity(),
	}
	if price, ok := o.Kind().ReferencePrice(); ok {
		intent.LimitPrice = decimal.NewNullDecimal(price)
	} else if o.Price().Valid {
		intent.LimitPrice = o.Price()
	}

	start := time.Now()
	decision := s.risk.Evaluate(intent, risk.StateView{MarketPrice: s.liquidity.Price, Now: now})
	s.metrics.ObserveRiskEval(time.Since(start))
	if decision.Allow {
		return Outcome{}, false, nil
	}

	s.metrics.IncRiskReason(decision.Reason)
	if err := o.Reject(decision.Reason.String(), now); err != nil {
		return Outcome{}, true, err
	}
	linked := o.Propagate(now)
	s.syncWaitlist(o.Family())

	out := s.baseOutcome(req, o, now)
	out.Result = schema.ResultRejected
	out.RiskReason = decision.Reason
	out.Linked = views(linked)
	out.Message = fmt.Sprintf("Order %s rejected by pre-trade check: %s.", o.ID(), decision.Reason)
	return out, true, nil
}

func (s *System) modifyLocked(req Request, o *order.Order, now time.Time) (Outcome, error) {
	if err := s.requireWaitlisted(o); err != nil {
		return Outcome{}, err
	}
	if req.Modification == nil {
		return Outcome{}, errors.Wrapf(exception.ErrInvalidRequest, "modify order %s without payload", o.ID())
	}
	if err := o.Modify(*req.Modification, now); err != nil {
		return Outcome{}, err
	}
	s.syncWaitlist(o.Family())

	out := s.baseOutcome(req, o, now)
	out.Result = schema.ResultModified
	out.Message = fmt.Sprintf("Order %s modified successfully.", o.ID())
	return out, nil
}

func (s *System) cancelLocked(req Request, o *order.Order, now time.Time) (Outcome, error) {
	if err := s.requireWaitlisted(o); err != nil {
		return Outcome{}, err
	}
	if !o.Cancel(now) {
		return Outcome{}, errors.Wrapf(exception.ErrInvalidTransition, "cancel order %s in status %s", o.ID(), o.Status())
	}
	linked := o.Propagate(now)
	s.syncWaitlist(o.Family())

	out := s.baseOutcome(req, o, now)
	out.Result = schema.ResultCancelled
	out.Linked = views(linked)
	out.Message = fmt.Sprintf("Order %s canceled successfully.", o.ID())
	return out, nil
}

// verify checks the invariants of the order family touched by a request.
func (s *System) verify(family []*order.Order, before []order.Status) error {
	var broken []string
	for i, o := range family {
		if !o.Consistent() {
			broken = append(broken, fmt.Sprintf("order %s: filled %d + remaining %d != quantity %d",
				o.ID(), o.FilledQuantity(), o.RemainingQuantity(), o.Quantity()))
		}
		if before[i].IsTerminal() && o.Status() != before[i] {
			broken = append(broken, fmt.Sprintf("order %s: terminal status %s changed to %s", o.ID(), before[i], o.Status()))
		}
		if s.waitlist.Has(o.ID()) != o.Status().IsOpen() {
			broken = append(broken, fmt.Sprintf("order %s: waitlist membership disagrees with status %s", o.ID(), o.Status()))
		}
	}
	if s.liquidity.Volume < 0 {
		broken = append(broken, fmt.Sprintf("liquidity volume %d is negative", s.liquidity.Volume))
	}
	if len(broken) == 0 {
		return nil
	}
	return errors.Wrap(exception.ErrConcurrencyInvariantViolation, strings.Join(broken, "; "))
}

func (s *System) baseOutcome(req Request, o *order.Order, now time.Time) Outcome {
	out := Outcome{
		RequestID: req.ID,
		Seq:       req.Seq,
		Kind:      req.Kind,
		OrderID:   req.OrderID,
		At:        now,
	}
	if o != nil {
		out.Status = o.Status()
		out.Order = o.View()
	}
	return out
}

func (s *System) invalidOutcome(req Request, o *order.Order, err error, now time.Time) Outcome {
	logs.Warnf("request %s for order %s ignored, err: %+v", req.ID, req.OrderID, err)
	out := s.baseOutcome(req, o, now)
	out.Result = schema.ResultInvalid
	out.Err = err
	out.Error = err.Error()
	switch req.Kind {
	case RequestModify:
		out.Message = fmt.Sprintf("Error modifying order %s: %v", req.OrderID, err)
	case RequestCancel:
		out.Message = fmt.Sprintf("Error canceling order %s: %v", req.OrderID, err)
	default:
		out.Message = fmt.Sprintf("Error executing order %s: %v", req.OrderID, err)
	}
	return out
}

func (s *System) failureOutcome(req Request, o *order.Order, err error, now time.Time) Outcome {
	out := s.baseOutcome(req, o, now)
	out.Result = schema.ResultFailure
	out.Err = err
	out.Error = err.Error()
	switch req.Kind {
	case RequestModify:
		out.Message = fmt.Sprintf("Exception during order modification %s: %v", req.OrderID, err)
	case RequestCancel:
		out.Message = fmt.Sprintf("Exception during order cancellation %s: %v", req.OrderID, err)
	default:
		out.Message = fmt.Sprintf("Exception during order execution %s: %v", req.OrderID, err)
	}
	return out
}

func (s *System) violationOutcome(req Request, o *order.Order, err error, now time.Time) Outcome {
	out := s.baseOutcome(req, o, now)
	out.Result = schema.ResultInvariantViolation
	out.Err = err
	out.Error = err.Error()
	out.Message = fmt.Sprintf("Execution system halted after request %s for order %s: %v", req.ID, req.OrderID, err)
	return out
}

func (s *System) shutdownOutcome(req Request) Outcome {
	out := Outcome{
		RequestID: req.ID,
		Seq:       req.Seq,
		Kind:      req.Kind,
		Result:    schema.ResultShutdown,
		OrderID:   req.OrderID,
		Err:       exception.ErrShutdownInProgress,
		Error:     exception.ErrShutdownInProgress.Error(),
		Message:   fmt.Sprintf("Request %s for order %s was not processed: execution system is shutting down.", req.ID, req.OrderID),
		At:        s.clock(),
	}
	s.mu.Lock()
	if o, ok := s.orders[req.OrderID]; ok {
		out.Status = o.Status()
		out.Order = o.View()
	}
	s.mu.Unlock()
	return out
}

func views(orders []*order.Order) []order.View {
	if len(orders) == 0 {
		return nil
	}
	out := make([]order.View, len(orders))
	for i, o := range orders {
		out[i] = o.View()
	}
	return out
}

func sortViews(vs []order.View) {
	slices.SortFunc(vs, func(a, b order.View) int {
		return strings.Compare(a.ID, b.ID)
	})
}
