package exception

import "github.com/yanun0323/errors"

// Execution errors
var (
	// ErrLiquidityExhausted tags an execute attempt that found no volume. It is never returned
	// as a failure; the order simply stays open.
	ErrLiquidityExhausted = errors.New("execution: liquidity exhausted")

	ErrExecutionFailure              = errors.New("execution: failure while applying request")
	ErrShutdownInProgress            = errors.New("execution: shutdown in progress")
	ErrConcurrencyInvariantViolation = errors.New("execution: concurrency invariant violated")
	ErrSystemOff                     = errors.New("execution: system status is off")
	ErrInvalidRequest                = errors.New("execution: invalid request")
	ErrInvalidMarket                 = errors.New("execution: invalid market parameters")
	ErrQueueFull                     = errors.New("execution: request queue full")
)
