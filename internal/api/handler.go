package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/osdajiba/autotrade/internal/execution"
	"github.com/osdajiba/autotrade/internal/notify"
	"github.com/osdajiba/autotrade/internal/order"
	"github.com/osdajiba/autotrade/internal/schema"
	"github.com/osdajiba/autotrade/pkg/exception"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Handler exposes an execution.System over HTTP. It is a thin shim: every request maps
// onto one System call and outcomes are streamed through the hub.
type Handler struct {
	sys      *execution.System
	hub      *notify.Hub
	settings order.ExecSettings
}

// NewHandler wires the shim. hub may be nil, in which case /ws/outcomes is not served.
func NewHandler(sys *execution.System, hub *notify.Hub, settings order.ExecSettings) *Handler {
	return &Handler{sys: sys, hub: hub, settings: settings}
}

// NewRouter returns a gin engine with every route registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	orders := r.Group("/orders")
	{
		orders.POST("", h.PlaceOrder)
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrder)
		orders.POST("/:id/execute", h.ExecuteOrder)
		orders.PATCH("/:id", h.ModifyOrder)
		orders.DELETE("/:id", h.CancelOrder)
		orders.POST("/:id/discard", h.DiscardOrder)
	}

	r.GET("/waitlist", h.Waitlist)
	r.GET("/market", h.GetMarket)
	r.PUT("/market", h.SetMarket)

	system := r.Group("/system")
	{
		system.GET("", h.SystemStatus)
		system.PUT("/status", h.SetStatus)
		system.POST("/run", h.Run)
		system.POST("/stop", h.Stop)
	}

	r.GET("/metrics", h.Metrics)
	if h.hub != nil {
		r.GET("/ws/outcomes", h.StreamOutcomes)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, exception.ErrUnknownOrder):
		return http.StatusNotFound
	case errors.Is(err, exception.ErrInvalidTransition),
		errors.Is(err, exception.ErrOrderAlreadySubmitted),
		errors.Is(err, exception.ErrDuplicateOrder):
		return http.StatusConflict
	case errors.Is(err, exception.ErrInvalidRequest),
		errors.Is(err, exception.ErrInvalidQuantity),
		errors.Is(err, exception.ErrInvalidAction),
		errors.Is(err, exception.ErrInvalidKind),
		errors.Is(err, exception.ErrEmptySymbol),
		errors.Is(err, exception.ErrInvalidMarket),
		errors.Is(err, exception.ErrNilOrder):
		return http.StatusBadRequest
	case errors.Is(err, exception.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, exception.ErrShutdownInProgress),
		errors.Is(err, exception.ErrSystemOff),
		errors.Is(err, exception.ErrConcurrencyInvariantViolation):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		logs.Errorf("http %s %s, err: %+v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (h *Handler) PlaceOrder(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params, err := req.params()
	if err != nil {
		fail(c, err)
		return
	}

	var o *order.Order
	if settings, custom := req.settings(h.settings); custom {
		o, err = h.sys.NewOrderWithSettings(params, settings)
	} else {
		o, err = h.sys.NewOrder(params)
	}
	if err != nil {
		fail(c, err)
		return
	}

	resp := gin.H{}
	if req.Submit {
		requestID, err := h.sys.Submit(o, execution.RequestExecute, nil)
		if err != nil {
			// The caller never learns the id, so the order must not stay open.
			if derr := h.sys.Discard(o); derr != nil {
				logs.Errorf("discard order %s after failed submit, err: %+v", o.ID(), derr)
			}
			fail(c, err)
			return
		}
		resp["requestId"] = requestID
	}
	view, _ := h.sys.Lookup(o.ID())
	resp["order"] = view
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListOrders(c *gin.Context) {
	c.JSON(http.StatusOK, h.sys.Orders())
}

func (h *Handler) GetOrder(c *gin.Context) {
	view, ok := h.sys.Lookup(c.Param("id"))
	if !ok {
		fail(c, errors.Wrapf(exception.ErrUnknownOrder, "order %s", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) submit(c *gin.Context, kind execution.RequestKind, mod *order.Modification) {
	requestID, err := h.sys.SubmitByID(c.Param("id"), kind, mod)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"requestId": requestID, "kind": kind})
}

func (h *Handler) ExecuteOrder(c *gin.Context) {
	h.submit(c, execution.RequestExecute, nil)
}

func (h *Handler) ModifyOrder(c *gin.Context) {
	var req modifyOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mod, err := req.modification()
	if err != nil {
		fail(c, err)
		return
	}
	h.submit(c, execution.RequestModify, mod)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	h.submit(c, execution.RequestCancel, nil)
}

func (h *Handler) DiscardOrder(c *gin.Context) {
	if err := h.sys.DiscardByID(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	view, _ := h.sys.Lookup(c.Param("id"))
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Waitlist(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": h.sys.Waitlist()})
}

func (h *Handler) GetMarket(c *gin.Context) {
	c.JSON(http.StatusOK, h.sys.Liquidity())
}

func (h *Handler) SetMarket(c *gin.Context) {
	var req marketReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.sys.SetCurrentMarket(schema.Quantity(req.Volume), req.Price); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sys.Liquidity())
}

func (h *Handler) systemState() gin.H {
	state := gin.H{
		"on":      h.sys.Status(),
		"running": h.sys.Running(),
		"pending": h.sys.Pending(),
	}
	if err := h.sys.Err(); err != nil {
		state["error"] = err.Error()
	}
	return state
}

func (h *Handler) SystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.systemState())
}

func (h *Handler) SetStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.sys.SetStatus(req.On)
	c.JSON(http.StatusOK, h.systemState())
}

func (h *Handler) Run(c *gin.Context) {
	if err := h.sys.Run(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.systemState())
}

func (h *Handler) Stop(c *gin.Context) {
	h.sys.Stop()
	c.JSON(http.StatusOK, h.systemState())
}

func (h *Handler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.sys.Metrics().Snapshot())
}

func (h *Handler) StreamOutcomes(c *gin.Context) {
	if err := h.hub.Serve(c.Writer, c.Request); err != nil {
		logs.Warnf("websocket subscribe failed, err: %+v", err)
	}
}
