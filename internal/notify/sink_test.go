package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/osdajiba/autotrade/internal/obs"
	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOutcome(id string) execution.Outcome {
	return execution.Outcome{
		RequestID: id,
		Kind:      execution.RequestExecute,
		Result:    schema.ResultFilled,
		OrderID:   "1-abcdef012345",
		Message:   "Order 1-abcdef012345 executed successfully.",
		At:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

type capture struct {
	mu     sync.Mutex
	titles []string
}

func (c *capture) Notify(title, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
}

func (c *capture) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.titles...)
}

func TestMultiFansOut(t *testing.T) {
	plain := &capture{}
	var got []string
	rich := OutcomeFunc(func(out execution.Outcome) { got = append(got, out.RequestID) })

	m := Multi{plain, nil, rich, Log{}}
	m.NotifyOutcome(sampleOutcome("r1"))
	m.Notify("Custom", "body")

	assert.Equal(t, []string{"Order Executed", "Custom"}, plain.snapshot())
	assert.Equal(t, []string{"r1"}, got)
}

func TestFunc(t *testing.T) {
	var title, message string
	Func(func(t, m string) { title, message = t, m }).Notify("a", "b")
	assert.Equal(t, "a", title)
	assert.Equal(t, "b", message)
}

func TestAsyncDeliversInOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		ids []string
	)
	sink := OutcomeFunc(func(out execution.Outcome) {
		mu.Lock()
		ids = append(ids, out.RequestID)
		mu.Unlock()
	})
	a := NewAsync(sink, 0, nil)
	for _, id := range []string{"a", "b", "c"} {
		a.NotifyOutcome(sampleOutcome(id))
	}
	a.Close()

	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

type blockingSink struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSink) Notify(string, string) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
}

func TestAsyncDropsWhenFull(t *testing.T) {
	metrics := obs.NewMetrics()
	sink := &blockingSink{entered: make(chan struct{}), release: make(chan struct{})}
	a := NewAsync(sink, 1, metrics)

	a.Notify("first", "")
	select {
	case <-sink.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("sink not called")
	}
	a.Notify("second", "")
	a.Notify("third", "")

	assert.Equal(t, uint64(1), metrics.Snapshot().SinkDrops)
	close(sink.release)
	a.Close()

	a.Notify("after close", "")
	assert.Equal(t, uint64(2), metrics.Snapshot().SinkDrops)
}

type fakePublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, message.([]byte))
	return redis.NewIntResult(1, f.err)
}

func TestRedisPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRedis(pub, "outcomes", 0)

	r.NotifyOutcome(sampleOutcome("r1"))
	r.Notify("Execution System Shutdown", "bye")

	require.Len(t, pub.payloads, 2)
	assert.Equal(t, []string{"outcomes", "outcomes"}, pub.channels)

	var got struct {
		RequestID string `json:"requestId"`
		Result    string `json:"result"`
		Kind      string `json:"kind"`
	}
	require.NoError(t, sonic.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, "r1", got.RequestID)
	assert.Equal(t, "FILLED", got.Result)
	assert.Equal(t, "EXECUTE", got.Kind)

	var msg Message
	require.NoError(t, sonic.Unmarshal(pub.payloads[1], &msg))
	assert.Equal(t, Message{Title: "Execution System Shutdown", Message: "bye"}, msg)
}

func TestHubStreamsOutcomes(t *testing.T) {
	hub := NewHub(4, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Serve(w, r); err != nil {
			t.Errorf("serve: %v", err)
		}
	}))
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 5*time.Millisecond)
	hub.NotifyOutcome(sampleOutcome("r9"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		RequestID string `json:"requestId"`
		Result    string `json:"result"`
	}
	require.NoError(t, sonic.Unmarshal(data, &got))
	assert.Equal(t, "r9", got.RequestID)
	assert.Equal(t, "FILLED", got.Result)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, 5*time.Millisecond)
}
