package store

import (
	"context"
	"time"

	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/osdajiba/autotrade/internal/order"
	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

const defaultTimeout = 3 * time.Second

// OrderEvent is one row per order touched by an outcome. The order a request targeted
// has Primary set; OCO relatives carried along in the same outcome do not.
type OrderEvent struct {
	ID                uint            `gorm:"primaryKey"`
	RequestID         string          `gorm:"column:request_id;type:varchar(64);index"`
	Seq               uint64          `gorm:"column:seq"`
	OrderID           string          `gorm:"column:order_id;type:varchar(64);index;not null"`
	Primary           bool            `gorm:"column:is_primary;not null"`
	Kind              string          `gorm:"column:kind;type:varchar(16)"`
	Result            string          `gorm:"column:result;type:varchar(32);index"`
	Status            string          `gorm:"column:status;type:varchar(16)"`
	Symbol            string          `gorm:"column:symbol;type:varchar(32)"`
	Action            string          `gorm:"column:action;type:varchar(8)"`
	ExecutedQuantity  int64           `gorm:"column:executed_quantity"`
	FilledQuantity    int64           `gorm:"column:filled_quantity"`
	RemainingQuantity int64           `gorm:"column:remaining_quantity"`
	FillPrice         decimal.Decimal `gorm:"column:fill_price;type:decimal(32,16)"`
	Fee               decimal.Decimal `gorm:"column:fee;type:decimal(32,16)"`
	RiskReason        string          `gorm:"column:risk_reason;type:varchar(32)"`
	Message           string          `gorm:"column:message;type:text"`
	Error             string          `gorm:"column:error;type:text"`
	OccurredAt        time.Time       `gorm:"column:occurred_at;index"`
	CreatedAt         time.Time
}

func (OrderEvent) TableName() string { return "order_events" }

// Events flattens an outcome into rows. Outcomes without an order produce none.
func Events(out execution.Outcome) []OrderEvent {
	if out.Order.ID == "" {
		return nil
	}
	events := make([]OrderEvent, 0, 1+len(out.Linked))
	events = append(events, event(out, out.Order, true))
	for _, v := range out.Linked {
		if v.ID != "" {
			events = append(events, event(out, v, false))
		}
	}
	return events
}

func event(out execution.Outcome, v order.View, primary bool) OrderEvent {
	e := OrderEvent{
		RequestID:         out.RequestID,
		Seq:               out.Seq,
		OrderID:           v.ID,
		Primary:           primary,
		Kind:              out.Kind.String(),
		Result:            out.Result.String(),
		Status:            v.Status.String(),
		Symbol:            v.Symbol,
		Action:            v.Action.String(),
		FilledQuantity:    int64(v.FilledQuantity),
		RemainingQuantity: int64(v.RemainingQuantity),
		Message:           out.Message,
		Error:             out.Error,
		OccurredAt:        out.At,
	}
	if primary {
		e.ExecutedQuantity = int64(out.ExecutedQuantity)
		e.FillPrice = out.FillPrice
		e.Fee = out.Fee
		if out.RiskReason != schema.RiskReasonNone {
			e.RiskReason = out.RiskReason.String()
		}
	}
	return e
}

// Store persists outcomes for audit queries. It implements execution.OutcomeSink.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

func New(db *gorm.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{db: db, timeout: timeout}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&OrderEvent{}); err != nil {
		return errors.Wrap(err, "migrate order events")
	}
	return nil
}

func (s *Store) Save(ctx context.Context, out execution.Outcome) error {
	events := Events(out)
	if len(events) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&events).Error; err != nil {
		return errors.Wrapf(err, "save outcome %s", out.RequestID)
	}
	return nil
}

// History returns every stored event of an order, oldest first.
func (s *Store) History(ctx context.Context, orderID string) ([]OrderEvent, error) {
	var events []OrderEvent
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("occurred_at ASC").
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, errors.Wrapf(err, "query history of %s", orderID)
	}
	return events, nil
}

// Notify ignores plain notifications; only outcomes are stored.
func (s *Store) Notify(string, string) {}

func (s *Store) NotifyOutcome(out execution.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Save(ctx, out); err != nil {
		logs.Errorf("store outcome, err: %+v", err)
	}
}
