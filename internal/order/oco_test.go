package order

import (
	"testing"
	"time"

	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/osdajiba/autotrade/pkg/exception"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

func newOCO(t *testing.T) (parent, limit, stop *Order) {
	t.Helper()
	p := marketParams(10)
	p.Kind = OCO(decimal.NewFromInt(160), decimal.NewFromInt(140))
	parent = newTestOrder(t, p)
	limit, stop = parent.Legs()
	require.NotNil(t, limit)
	require.NotNil(t, stop)
	return parent, limit, stop
}

func TestOCOLegsShareParams(t *testing.T) {
	parent, limit, stop := newOCO(t)

	ids := map[string]struct{}{parent.ID(): {}, limit.ID(): {}, stop.ID(): {}}
	assert.Len(t, ids, 3)

	for _, leg := range []*Order{limit, stop} {
		assert.Equal(t, parent, leg.Parent())
		assert.Equal(t, parent.Symbol(), leg.Symbol())
		assert.Equal(t, parent.Quantity(), leg.Quantity())
		assert.Equal(t, parent.Action(), leg.Action())
	}
	assert.Equal(t, KindLimit, limit.Kind().Tag)
	assert.Equal(t, KindStop, stop.Kind().Tag)
	assert.Equal(t, stop, limit.Sibling())
	assert.Equal(t, limit, stop.Sibling())
	assert.Len(t, parent.Family(), 3)
	assert.Equal(t, []string{limit.ID(), stop.ID()}, parent.View().LegIDs)
	assert.Equal(t, parent.ID(), limit.View().ParentID)
}

func TestOCOParentCannotExecuteOrModify(t *testing.T) {
	parent, _, _ := newOCO(t)

	err := parent.Execute(1, testNow)
	assert.True(t, errors.Is(err, exception.ErrInvalidKind))
	err = parent.Modify(Modification{Quantity: 3}, testNow)
	assert.True(t, errors.Is(err, exception.ErrInvalidKind))
}

func TestOCOLegModifyRestrictions(t *testing.T) {
	_, limit, _ := newOCO(t)

	err := limit.Modify(Modification{Quantity: 3}, testNow)
	assert.True(t, errors.Is(err, exception.ErrInvalidRequest))

	market := Market()
	err = limit.Modify(Modification{Kind: &market}, testNow)
	assert.True(t, errors.Is(err, exception.ErrInvalidKind))

	require.NoError(t, limit.Modify(Modification{Price: decimal.NewNullDecimal(decimal.NewFromInt(161))}, testNow))
}

func TestOCOPartialFillCancelsSibling(t *testing.T) {
	parent, limit, stop := newOCO(t)
	at := testNow.Add(time.Second)

	require.NoError(t, limit.Execute(4, at))
	changed := limit.Propagate(at)

	assert.ElementsMatch(t, []*Order{stop, parent}, changed)
	assert.Equal(t, StatusCancelled, stop.Status())
	assert.Equal(t, StatusPartial, parent.Status())
	assert.Equal(t, schema.Quantity(4), parent.FilledQuantity())
	assert.Equal(t, schema.Quantity(6), parent.RemainingQuantity())
	requireConsistent(t, parent)

	require.NoError(t, limit.Execute(6, at))
	changed = limit.Propagate(at)
	assert.Equal(t, []*Order{parent}, changed)
	assert.Equal(t, StatusFilled, parent.Status())
	requireConsistent(t, parent)
}

func TestOCOLegCancelCancelsFamily(t *testing.T) {
	parent, limit, stop := newOCO(t)

	require.True(t, stop.Cancel(testNow))
	changed := stop.Propagate(testNow)

	assert.ElementsMatch(t, []*Order{limit, parent}, changed)
	assert.Equal(t, StatusCancelled, limit.Status())
	assert.Equal(t, StatusCancelled, parent.Status())
}

func TestOCOParentCancelCancelsLegs(t *testing.T) {
	parent, limit, stop := newOCO(t)

	require.True(t, parent.Cancel(testNow))
	changed := parent.Propagate(testNow)

	assert.ElementsMatch(t, []*Order{limit, stop}, changed)
	assert.Equal(t, StatusCancelled, limit.Status())
	assert.Equal(t, StatusCancelled, stop.Status())
}

func TestPropagateZeroFillIsNoop(t *testing.T) {
	parent, limit, stop := newOCO(t)

	require.NoError(t, limit.Execute(0, testNow))
	assert.Empty(t, limit.Propagate(testNow))
	assert.Equal(t, StatusPending, stop.Status())
	assert.Equal(t, StatusPending, parent.Status())

	plain := newTestOrder(t, marketParams(5))
	require.NoError(t, plain.Execute(5, testNow))
	assert.Empty(t, plain.Propagate(testNow))
}

func TestOCOLegRejectRejectsParent(t *testing.T) {
	parent, limit, stop := newOCO(t)

	require.NoError(t, limit.Reject("price band", testNow))
	changed := limit.Propagate(testNow)

	assert.ElementsMatch(t, []*Order{stop, parent}, changed)
	assert.Equal(t, StatusCancelled, stop.Status())
	assert.Equal(t, StatusRejected, parent.Status())
	assert.Equal(t, "price band", parent.RejectReason())
}
