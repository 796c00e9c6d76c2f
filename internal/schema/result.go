package schema

import (
	"fmt"
	"strings"
)

// Result classifies the outcome of one execution request.
type Result uint8

const (
	_result_beg Result = iota
	ResultFilled
	ResultPartial
	ResultNoLiquidity
	ResultModified
	ResultCancelled
	ResultRejected
	ResultInvalid
	ResultFailure
	ResultShutdown
	ResultInvariantViolation
	_result_end
)

// MaxResult is the largest defined Result, for fixed-size counters.
const MaxResult = _result_end - 1

func (r Result) IsAvailable() bool {
	return r > _result_beg && r < _result_end
}

func (r Result) String() string {
	switch r {
	case ResultFilled:
		return "FILLED"
	case ResultPartial:
		return "PARTIAL"
	case ResultNoLiquidity:
		return "NO_LIQUIDITY"
	case ResultModified:
		return "MODIFIED"
	case ResultCancelled:
		return "CANCELLED"
	case ResultRejected:
		return "REJECTED"
	case ResultInvalid:
		return "INVALID"
	case ResultFailure:
		return "FAILURE"
	case ResultShutdown:
		return "SHUTDOWN"
	case ResultInvariantViolation:
		return "INVARIANT_VIOLATION"
	default:
		return "UNKNOWN"
	}
}

// Success reports whether the request was applied.
func (r Result) Success() bool {
	switch r {
	case ResultFilled, ResultPartial, ResultModified, ResultCancelled:
		return true
	default:
		return false
	}
}

func ParseResult(s string) (Result, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for r := _result_beg + 1; r < _result_end; r++ {
		if r.String() == s {
			return r, nil
		}
	}
	return _result_beg, fmt.Errorf("unknown result: %q", s)
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Result) UnmarshalText(text []byte) error {
	v, err := ParseResult(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// RiskReason explains a pre-trade denial.
type RiskReason uint8

const (
	RiskReasonNone RiskReason = iota
	RiskReasonKillSwitch
	RiskReasonRateLimit
	RiskReasonMaxQty
	RiskReasonPriceBand
	RiskReasonMaxNotional
	RiskReasonSymbol
)

// MaxRiskReason is the largest defined RiskReason.
const MaxRiskReason = RiskReasonSymbol

func (r RiskReason) String() string {
	switch r {
	case RiskReasonNone:
		return "NONE"
	case RiskReasonKillSwitch:
		return "KILL_SWITCH"
	case RiskReasonRateLimit:
		return "RATE_LIMIT"
	case RiskReasonMaxQty:
		return "MAX_QTY"
	case RiskReasonPriceBand:
		return "PRICE_BAND"
	case RiskReasonMaxNotional:
		return "MAX_NOTIONAL"
	case RiskReasonSymbol:
		return "SYMBOL"
	default:
		return "UNKNOWN"
	}
}

func (r RiskReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RiskReason) UnmarshalText(text []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	for v := RiskReasonNone; v <= MaxRiskReason; v++ {
		if v.String() == s {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown risk reason: %q", text)
}
