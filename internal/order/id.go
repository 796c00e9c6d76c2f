package order

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/osdajiba/autotrade/pkg/exception"
)

const maxIDAttempts = 16

// Option customizes order construction.
type Option func(*options)

type options struct {
	clock  func() time.Time
	exists func(id string) bool
	salt   func() int
}

// WithClock overrides the creation-time source.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithUniqueness makes id generation retry with fresh salts while exists reports a collision.
func WithUniqueness(exists func(id string) bool) Option {
	return func(o *options) {
		o.exists = exists
	}
}

func withSalt(salt func() int) Option {
	return func(o *options) {
		o.salt = salt
	}
}

func newOptions(opts []Option) options {
	o := options{
		clock: time.Now,
		salt:  randomSalt,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) assignID(ord *Order, taken map[string]struct{}) error {
	for range maxIDAttempts {
		id := generateID(ord, o.salt(), o.salt())
		if _, dup := taken[id]; dup {
			continue
		}
		if o.exists != nil && o.exists(id) {
			continue
		}
		ord.id = id
		return nil
	}
	return exception.ErrIDExhausted
}

// generateID builds "{creation unix nanos}-{hash12}". The hash covers the canonical order
// parameters framed by two salts.
func generateID(o *Order, salt1, salt2 int) string {
	price := "none"
	if o.price.Valid {
		price = o.price.Decimal.String()
	}
	canonical := fmt.Sprintf("%d-%s-%s-%d-%s-%s-%s-%d",
		salt1, o.kind.Tag, o.symbol, o.quantity, o.action, price, o.effect, salt2)
	sum := sha256.Sum256([]byte(canonical))
	return fmt.Sprintf("%d-%s", o.createdAt.UnixNano(), hex.EncodeToString(sum[:])[:12])
}

// randomSalt returns a two-digit salt in [10, 99].
func randomSalt() int {
	n, err := rand.Int(rand.Reader, big.NewInt(90))
	if err != nil {
		return int(time.Now().UnixNano()%90) + 10
	}
	return int(n.Int64()) + 10
}
