package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/osdajiba/autotrade/internal/notify"
	"github.com/osdajiba/autotrade/internal/obs"
	"github.com/osdajiba/autotrade/internal/order"
	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	sys      *execution.System
	hub      *notify.Hub
	router   *gin.Engine
	outcomes chan execution.Outcome
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		hub:      notify.NewHub(16, nil),
		outcomes: make(chan execution.Outcome, 64),
	}
	settings := order.ExecSettings{
		TransactionFee: decimal.RequireFromString("0.00002"),
		Slippage:       decimal.RequireFromString("0.01"),
	}
	sink := notify.Multi{f.hub, notify.OutcomeFunc(func(out execution.Outcome) { f.outcomes <- out })}
	f.sys = execution.New(
		execution.Config{PollInterval: 10 * time.Millisecond, Settings: settings},
		execution.WithSink(sink),
		execution.WithMetrics(obs.NewMetrics()),
	)
	f.router = NewRouter(NewHandler(f.sys, f.hub, settings))
	t.Cleanup(func() {
		if f.sys.Running() {
			f.sys.Stop()
		}
		f.hub.Close()
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) wait(t *testing.T) execution.Outcome {
	t.Helper()
	select {
	case out := <-f.outcomes:
		return out
	case <-time.After(5 * time.Second):
		t.Fatalf("no outcome")
		return execution.Outcome{}
	}
}

type placed struct {
	Order     order.View `json:"order"`
	RequestID string     `json:"requestId"`
}

func (f *fixture) place(t *testing.T, body string) placed {
	t.Helper()
	w := f.do(t, http.MethodPost, "/orders", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p placed
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestPlaceAndGetOrder(t *testing.T) {
	f := newFixture(t)
	p := f.place(t, `{"symbol":"AAPL","quantity":10,"action":"buy","kind":{"type":"limit","limitPrice":"150"}}`)

	assert.NotEmpty(t, p.Order.ID)
	assert.Empty(t, p.RequestID)
	assert.Equal(t, order.KindLimit, p.Order.Kind.Tag)
	assert.Equal(t, order.StatusPending, p.Order.Status)

	w := f.do(t, http.MethodGet, "/orders/"+p.Order.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var v order.View
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, p.Order.ID, v.ID)
	assert.Equal(t, schema.Quantity(10), v.RemainingQuantity)

	w = f.do(t, http.MethodGet, "/waitlist", "")
	assert.Contains(t, w.Body.String(), p.Order.ID)
}

func TestPlaceAndExecute(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/market", `{"volume":100,"price":"150"}`).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/system/run", "").Code)

	p := f.place(t, `{"symbol":"AAPL","quantity":10,"action":"BUY","submit":true}`)
	require.NotEmpty(t, p.RequestID)

	out := f.wait(t)
	assert.Equal(t, p.RequestID, out.RequestID)
	assert.Equal(t, schema.ResultFilled, out.Result)
	assert.True(t, decimal.RequireFromString("151.5").Equal(out.FillPrice))

	w := f.do(t, http.MethodGet, "/market", "")
	var liq execution.Liquidity
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &liq))
	assert.Equal(t, schema.Quantity(90), liq.Volume)

	w = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap obs.Snapshot
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, uint64(1), snap.Submitted)
}

func TestModifyAndCancel(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/system/run", "").Code)
	p := f.place(t, `{"symbol":"AAPL","quantity":10,"action":"SELL"}`)

	w := f.do(t, http.MethodPatch, "/orders/"+p.Order.ID, `{"quantity":20}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	out := f.wait(t)
	assert.Equal(t, schema.ResultModified, out.Result)
	assert.Equal(t, schema.Quantity(20), out.Order.Quantity)

	w = f.do(t, http.MethodDelete, "/orders/"+p.Order.ID, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	out = f.wait(t)
	assert.Equal(t, schema.ResultCancelled, out.Result)

	w = f.do(t, http.MethodPost, "/orders/"+p.Order.ID+"/execute", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDiscard(t *testing.T) {
	f := newFixture(t)
	p := f.place(t, `{"symbol":"AAPL","quantity":5,"action":"BUY"}`)

	w := f.do(t, http.MethodPost, "/orders/"+p.Order.ID+"/discard", "")
	require.Equal(t, http.StatusOK, w.Code)
	var v order.View
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, order.StatusCancelled, v.Status)
	assert.Equal(t, schema.ResultCancelled, f.wait(t).Result)

	w = f.do(t, http.MethodPost, "/orders/"+p.Order.ID+"/discard", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestErrorStatus(t *testing.T) {
	f := newFixture(t)
	p := f.place(t, `{"symbol":"AAPL","quantity":5,"action":"BUY"}`)

	testCases := map[string]struct {
		method, path, body string
		want               int
	}{
		"unknown order":     {http.MethodGet, "/orders/missing", "", http.StatusNotFound},
		"execute unknown":   {http.MethodPost, "/orders/missing/execute", "", http.StatusNotFound},
		"malformed body":    {http.MethodPost, "/orders", `{`, http.StatusBadRequest},
		"missing quantity":  {http.MethodPost, "/orders", `{"symbol":"AAPL","action":"BUY"}`, http.StatusBadRequest},
		"bad action":        {http.MethodPost, "/orders", `{"symbol":"AAPL","quantity":1,"action":"HOLD"}`, http.StatusBadRequest},
		"bad kind":          {http.MethodPost, "/orders", `{"symbol":"AAPL","quantity":1,"action":"BUY","kind":{"type":"FOK"}}`, http.StatusBadRequest},
		"limit no price":    {http.MethodPost, "/orders", `{"symbol":"AAPL","quantity":1,"action":"BUY","kind":{"type":"LIMIT"}}`, http.StatusBadRequest},
		"empty modify":      {http.MethodPatch, "/orders/" + p.Order.ID, `{}`, http.StatusBadRequest},
		"negative volume":   {http.MethodPut, "/market", `{"volume":-1,"price":"10"}`, http.StatusBadRequest},
		"zero price":        {http.MethodPut, "/market", `{"volume":1,"price":"0"}`, http.StatusBadRequest},
		"bad status body":   {http.MethodPut, "/system/status", `[]`, http.StatusBadRequest},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			w := f.do(t, tc.method, tc.path, tc.body)
			if w.Code != tc.want {
				t.Fatalf("%s %s: got %d, want %d, body %s", tc.method, tc.path, w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestSystemEndpoints(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/system/status", `{"on":false}`).Code)
	assert.False(t, f.sys.Status())
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/system/run", "").Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/system/status", `{"on":true}`).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/system/run", "").Code)
	assert.True(t, f.sys.Running())

	w := f.do(t, http.MethodGet, "/system", "")
	var state struct {
		On      bool `json:"on"`
		Running bool `json:"running"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &state))
	assert.True(t, state.On)
	assert.True(t, state.Running)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/system/stop", "").Code)
	assert.False(t, f.sys.Running())

	p := f.place(t, `{"symbol":"AAPL","quantity":5,"action":"BUY"}`)
	w = f.do(t, http.MethodPost, "/orders/"+p.Order.ID+"/execute", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPlaceAndSubmitAfterStopDiscards(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/system/run", "").Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/system/stop", "").Code)

	w := f.do(t, http.MethodPost, "/orders", `{"symbol":"AAPL","quantity":5,"action":"BUY","submit":true}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	out := f.wait(t)
	assert.Equal(t, schema.ResultCancelled, out.Result)
	assert.Equal(t, order.StatusCancelled, out.Status)

	w = f.do(t, http.MethodGet, "/waitlist", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Orders []string `json:"orders"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Orders)

	v, ok := f.sys.Lookup(out.OrderID)
	require.True(t, ok)
	assert.Equal(t, order.StatusCancelled, v.Status)
}

func TestOutcomeStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/outcomes", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, 5*time.Second, 5*time.Millisecond)

	p := f.place(t, `{"symbol":"AAPL","quantity":5,"action":"BUY"}`)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/orders/"+p.Order.ID+"/discard", "").Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		OrderID string `json:"orderId"`
		Result  string `json:"result"`
	}
	require.NoError(t, sonic.Unmarshal(data, &got))
	assert.Equal(t, p.Order.ID, got.OrderID)
	assert.Equal(t, "CANCELLED", got.Result)
}
