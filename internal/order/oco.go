package order

import "time"

type legs struct {
	limit *Order
	stop  *Order
}

// Legs returns the limit and stop legs of an OCO order, or nils for any other order.
func (o *Order) Legs() (limit, stop *Order) {
	if o.legs == nil {
		return nil, nil
	}
	return o.legs.limit, o.legs.stop
}

// Parent returns the OCO order owning this leg, if any.
func (o *Order) Parent() *Order {
	return o.parent
}

// Sibling returns the other leg of the same OCO order, if any.
func (o *Order) Sibling() *Order {
	if o.parent == nil {
		return nil
	}
	if o.parent.legs.limit == o {
		return o.parent.legs.stop
	}
	return o.parent.legs.limit
}

// Family returns the order followed by every order linked to it through OCO coupling.
func (o *Order) Family() []*Order {
	switch {
	case o.legs != nil:
		return []*Order{o, o.legs.limit, o.legs.stop}
	case o.parent != nil:
		return []*Order{o, o.Sibling(), o.parent}
	default:
		return []*Order{o}
	}
}

// Propagate applies one-cancels-the-other coupling after o changed. Any execution,
// cancellation or rejection of a leg cancels its sibling and is mirrored onto the parent;
// cancelling the parent cancels both legs. It returns every linked order whose status changed.
func (o *Order) Propagate(at time.Time) []*Order {
	var changed []*Order
	switch {
	case o.legs != nil:
		if o.status != StatusCancelled {
			return nil
		}
		for _, leg := range []*Order{o.legs.limit, o.legs.stop} {
			if leg.Cancel(at) {
				changed = append(changed, leg)
			}
		}
	case o.parent != nil:
		if o.filled == 0 && o.status != StatusCancelled && o.status != StatusRejected {
			return nil
		}
		if sib := o.Sibling(); sib.Cancel(at) {
			changed = append(changed, sib)
		}
		if o.parent.mirror(o, at) {
			changed = append(changed, o.parent)
		}
	}
	return changed
}

// mirror copies the active leg's execution state onto the parent.
func (o *Order) mirror(leg *Order, at time.Time) bool {
	if o.status.IsTerminal() {
		return false
	}
	prev := o.status
	o.filled = leg.filled
	o.remaining = leg.remaining
	switch leg.status {
	case StatusCancelled:
		o.status = StatusCancelled
		o.cancelledAt = at
	case StatusRejected:
		o.status = StatusRejected
		o.reason = leg.reason
		o.cancelledAt = at
	case StatusPartial, StatusFilled:
		o.status = leg.status
		o.executedAt = leg.executedAt
	}
	return o.status != prev
}
