package obs

import "sync/atomic"

// Sequence hands out monotonically increasing numbers, starting after seed.
type Sequence struct {
	next uint64
}

// NewSequence returns a sequence whose first value is seed+1.
func NewSequence(seed uint64) *Sequence {
	return &Sequence{next: seed}
}

// Next returns the next number.
func (s *Sequence) Next() uint64 {
	if s == nil {
		return 0
	}
	return atomic.AddUint64(&s.next, 1)
}

// Current returns the last number handed out.
func (s *Sequence) Current() uint64 {
	if s == nil {
		return 0
	}
	return atomic.LoadUint64(&s.next)
}
