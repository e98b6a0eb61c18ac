package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/service"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/response"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

// OrderHandler order intake gateway HTTP handler
type OrderHandler struct {
	orderSvc service.OrderService
}

// NewOrderHandler creates an OrderHandler
func NewOrderHandler(orderSvc service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// CreateOrder places an order. A repeated Idempotency-Key returns the
// original order with 200 instead of 201.
// POST /api/v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 23001, "invalid order payload")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	order, replayed, err := h.orderSvc.CreateOrder(c.Request.Context(), userID, c.GetHeader(headerIdempotencyKey), &req)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	if replayed {
		c.Header(headerReplayed, "true")
		response.OK(c, order)
		return
	}
	response.Created(c, order)
}

// ListMyOrders local and storefront orders of the caller, newest first
// GET /api/v1/orders
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	orders, err := h.orderSvc.GetOrdersForUser(c.Request.Context(), userID)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	response.OK(c, gin.H{"list": orders})
}

// EstimateTotals
// POST /api/v1/orders/estimate
func (h *OrderHandler) EstimateTotals(c *gin.Context) {
	var req dto.EstimateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 23001, "invalid order payload")
		return
	}

	estimate, err := h.orderSvc.EstimateOrderTotals(&req)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	response.OK(c, estimate)
}

// CancelOrder
// POST /api/v1/orders/:orderId/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, ok := MustGetUUIDParam(c, "orderId")
	if !ok {
		return
	}

	var req dto.CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "invalid request body")
			return
		}
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	order, err := h.orderSvc.CancelOrder(c.Request.Context(), userID, orderID, &req)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	response.OK(c, order)
}

// ListSalesRepOrders orders of the doctors attributed to a rep
// GET /api/v1/orders/sales-rep?scope=mine|all&salesRepId=
func (h *OrderHandler) ListSalesRepOrders(c *gin.Context) {
	var q dto.SalesRepOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "invalid query parameters")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	orders, err := h.orderSvc.GetOrdersForSalesRep(c.Request.Context(), actor, &q)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	response.OK(c, gin.H{"list": orders})
}

// GetSalesRepOrder one order, checked against the rep's doctors
// GET /api/v1/orders/sales-rep/:orderId?doctorEmail=
func (h *OrderHandler) GetSalesRepOrder(c *gin.Context) {
	orderID, ok := MustGetUUIDParam(c, "orderId")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	order, err := h.orderSvc.GetOrderForSalesRep(c.Request.Context(), actor, orderID, c.Query("doctorEmail"))
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	response.OK(c, order)
}

// SalesByRep revenue grouped by attributed rep
// GET /api/v1/sales-by-rep
func (h *OrderHandler) SalesByRep(c *gin.Context) {
	var q dto.SalesByRepQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 23008, service.ErrInvalidPeriod.Error())
		return
	}

	result, err := h.orderSvc.GetSalesByRep(c.Request.Context(), &q)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *OrderHandler) handleOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidOrderItems):
		response.BadRequest(c, 23001, err.Error())
	case errors.Is(err, service.ErrCertificationRequired):
		response.BadRequest(c, 23002, err.Error())
	case errors.Is(err, service.ErrTotalMismatch):
		response.BadRequest(c, 23003, err.Error())
	case errors.Is(err, service.ErrOrderNotFound):
		response.NotFound(c, 23004, err.Error())
	case errors.Is(err, service.ErrOrderForbidden):
		response.Forbidden(c, 23005, err.Error())
	case errors.Is(err, service.ErrOrderAlreadyCanceled):
		response.Conflict(c, 23006, err.Error())
	case errors.Is(err, service.ErrInvalidTimeZone):
		response.BadRequest(c, 23007, err.Error())
	case errors.Is(err, service.ErrInvalidPeriod):
		response.BadRequest(c, 23008, err.Error())
	case errors.Is(err, service.ErrOrdersUpstream):
		response.Error(c, http.StatusBadGateway, 23009, err.Error())
	case errors.Is(err, service.ErrInvalidIdempotencyKey):
		response.BadRequest(c, 23010, err.Error())
	case errors.Is(err, service.ErrInvalidOrderAmounts):
		response.BadRequest(c, 23011, err.Error())
	default:
		response.FromError(c, err)
	}
}
