package notify

import (
	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/yanun0323/logs"
)

// Message is the wire form of a plain title/message notification.
type Message struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Log writes every notification to the process log.
type Log struct{}

func (Log) Notify(title, message string) {
	logs.Infof("Notification - Title: %s, Message: %s", title, message)
}

func (Log) NotifyOutcome(out execution.Outcome) {
	switch out.Result {
	case schema.ResultInvalid, schema.ResultFailure, schema.ResultInvariantViolation:
		logs.Errorf("Notification - Title: %s, Message: %s", out.Title(), out.Text())
	case schema.ResultShutdown, schema.ResultRejected:
		logs.Warnf("Notification - Title: %s, Message: %s", out.Title(), out.Text())
	default:
		logs.Infof("Notification - Title: %s, Message: %s", out.Title(), out.Text())
	}
}

// Func adapts a function to execution.Sink.
type Func func(title, message string)

func (f Func) Notify(title, message string) {
	f(title, message)
}

// OutcomeFunc adapts a function to execution.OutcomeSink.
type OutcomeFunc func(out execution.Outcome)

func (f OutcomeFunc) Notify(string, string) {}

func (f OutcomeFunc) NotifyOutcome(out execution.Outcome) {
	f(out)
}

// Multi fans every notification out to each sink in order.
type Multi []execution.Sink

func (m Multi) Notify(title, message string) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(title, message)
		}
	}
}

func (m Multi) NotifyOutcome(out execution.Outcome) {
	for _, sink := range m {
		if sink != nil {
			deliver(sink, out)
		}
	}
}

func deliver(sink execution.Sink, out execution.Outcome) {
	if os, ok := sink.(execution.OutcomeSink); ok {
		os.NotifyOutcome(out)
		return
	}
	sink.Notify(out.Title(), out.Text())
}
