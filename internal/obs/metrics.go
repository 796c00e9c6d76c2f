package obs

import (
	"sync/atomic"
	"time"

	"github.com/osdajiba/autotrade/internal/schema"
)

// Metrics collects lightweight counters and latency stats for the execution pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	resultCounts     [schema.MaxResult + 1]uint64
	riskReasonCounts [schema.MaxRiskReason + 1]uint64
	submitted        uint64
	queueDrops       uint64
	queueClosed      uint64
	sinkDrops        uint64

	queueWaitLatency LatencyStats
	applyLatency     LatencyStats
	riskEvalLatency  LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64        `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	ResultCounts     map[schema.Result]uint64     `json:"resultCounts"`
	RiskReasonCounts map[schema.RiskReason]uint64 `json:"riskReasonCounts"`
	Submitted        uint64                       `json:"submitted"`
	QueueDrops       uint64                       `json:"queueDrops"`
	QueueClosed      uint64                       `json:"queueClosed"`
	SinkDrops        uint64                       `json:"sinkDrops"`
	QueueWaitLatency LatencySnapshot              `json:"queueWaitLatency"`
	ApplyLatency     LatencySnapshot              `json:"applyLatency"`
	RiskEvalLatency  LatencySnapshot              `json:"riskEvalLatency"`
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncSubmitted records an accepted request.
func (m *Metrics) IncSubmitted() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.submitted, 1)
}

// IncResult increments the counter of one outcome result.
func (m *Metrics) IncResult(r schema.Result) {
	if m == nil {
		return
	}
	idx := int(r)
	if idx >= 0 && idx < len(m.resultCounts) {
		atomic.AddUint64(&m.resultCounts[idx], 1)
	}
}

// IncRiskReason increments the risk reason counter.
func (m *Metrics) IncRiskReason(reason schema.RiskReason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.riskReasonCounts) {
		atomic.AddUint64(&m.riskReasonCounts[idx], 1)
	}
}

// IncQueueDrop records a request refused by a full queue.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// IncSinkDrop records a notification dropped by an asynchronous sink.
func (m *Metrics) IncSinkDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.sinkDrops, 1)
}

// ObserveQueueWait measures the time a request spent queued.
func (m *Metrics) ObserveQueueWait(d time.Duration) {
	if m == nil {
		return
	}
	m.queueWaitLatency.Observe(d)
}

// ObserveApply measures the time spent applying a request under the engine lock.
func (m *Metrics) ObserveApply(d time.Duration) {
	if m == nil {
		return
	}
	m.applyLatency.Observe(d)
}

// ObserveRiskEval measures risk evaluation latency.
func (m *Metrics) ObserveRiskEval(d time.Duration) {
	if m == nil {
		return
	}
	m.riskEvalLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	results := make(map[schema.Result]uint64)
	for i := range m.resultCounts {
		if v := atomic.LoadUint64(&m.resultCounts[i]); v > 0 {
			results[schema.Result(i)] = v
		}
	}
	riskCounts := make(map[schema.RiskReason]uint64)
	for i := range m.riskReasonCounts {
		if v := atomic.LoadUint64(&m.riskReasonCounts[i]); v > 0 {
			riskCounts[schema.RiskReason(i)] = v
		}
	}
	return Snapshot{
		ResultCounts:     results,
		RiskReasonCounts: riskCounts,
		Submitted:        atomic.LoadUint64(&m.submitted),
		QueueDrops:       atomic.LoadUint64(&m.queueDrops),
		QueueClosed:      atomic.LoadUint64(&m.queueClosed),
		SinkDrops:        atomic.LoadUint64(&m.sinkDrops),
		QueueWaitLatency: m.queueWaitLatency.Snapshot(),
		ApplyLatency:     m.applyLatency.Snapshot(),
		RiskEvalLatency:  m.riskEvalLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		cur := atomic.LoadUint64(&l.min)
		if cur != 0 && nanos >= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, cur, nanos) {
			break
		}
	}

	for {
		cur := atomic.LoadUint64(&l.max)
		if nanos <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, cur, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(sum / count),
	}
}
