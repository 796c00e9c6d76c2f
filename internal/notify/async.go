package notify

import (
	"context"

	"github.com/osdajiba/autotrade/internal/bus"
	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/osdajiba/autotrade/internal/obs"
	"github.com/yanun0323/logs"
)

type item struct {
	outcome *execution.Outcome
	msg     Message
}

// Async decouples a slow sink from the execution worker. Notifications are queued and
// delivered on a background goroutine; when the queue is full they are dropped and
// counted.
type Async struct {
	sink    execution.Sink
	queue   *bus.Queue[item]
	metrics *obs.Metrics
	done    chan struct{}
}

// NewAsync starts delivering to sink. capacity <= 0 means unbounded.
func NewAsync(sink execution.Sink, capacity int, metrics *obs.Metrics) *Async {
	a := &Async{
		sink:    sink,
		queue:   bus.NewQueue[item](capacity),
		metrics: metrics,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(a.done)
		a.queue.Run(context.Background(), a.deliver)
	}()
	return a
}

func (a *Async) Notify(title, message string) {
	a.enqueue(item{msg: Message{Title: title, Message: message}})
}

func (a *Async) NotifyOutcome(out execution.Outcome) {
	a.enqueue(item{outcome: &out})
}

func (a *Async) enqueue(it item) {
	if err := a.queue.TryPublish(it); err != nil {
		a.metrics.IncSinkDrop()
		logs.Warnf("notification dropped, err: %+v", err)
	}
}

func (a *Async) deliver(it item) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("async sink panic, err: %v", r)
		}
	}()

	if it.outcome != nil {
		deliver(a.sink, *it.outcome)
		return
	}
	a.sink.Notify(it.msg.Title, it.msg.Message)
}

// Close stops accepting notifications and waits until the queued ones are delivered.
func (a *Async) Close() {
	a.queue.Close()
	<-a.done
}
