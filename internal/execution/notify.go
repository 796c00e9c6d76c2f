package execution

import "github.com/yanun0323/logs"

// Sink receives user-facing notifications. It is called from the worker goroutine
// outside the engine lock, so a slow sink delays the next request but never blocks
// producers or readers.
type Sink interface {
	Notify(title, message string)
}

// OutcomeSink is implemented by sinks that want the structured outcome instead of the
// rendered title and message.
type OutcomeSink interface {
	Sink
	NotifyOutcome(out Outcome)
}

func (s *System) dispatch(outs ...Outcome) {
	for _, out := range outs {
		s.metrics.IncResult(out.Result)
		if s.sink != nil {
			deliver(s.sink, out)
		}
	}
}

func deliver(sink Sink, out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("notification sink panic, request: %s, order: %s, err: %v", out.RequestID, out.OrderID, r)
		}
	}()

	if os, ok := sink.(OutcomeSink); ok {
		os.NotifyOutcome(out)
		return
	}
	sink.Notify(out.Title(), out.Text())
}
