package exception

import "github.com/yanun0323/errors"

var (
	ErrNilOrder              = errors.New("order: nil order")
	ErrUnknownOrder          = errors.New("order: order not found")
	ErrDuplicateOrder        = errors.New("order: order already exists")
	ErrInvalidTransition     = errors.New("order: invalid status transition")
	ErrInvalidFill           = errors.New("order: invalid fill quantity")
	ErrInvalidQuantity       = errors.New("order: quantity must be > 0")
	ErrInvalidAction         = errors.New("order: unknown action")
	ErrInvalidKind           = errors.New("order: invalid order kind")
	ErrEmptySymbol           = errors.New("order: symbol is empty")
	ErrOrderAlreadySubmitted = errors.New("order: order already submitted")
	ErrIDExhausted           = errors.New("order: unable to generate unique id")
)
