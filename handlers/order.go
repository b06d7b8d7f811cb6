package handlers

import (
	"context"
	"net/http"

	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/workflow"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderReader interface {
	GetOrder(ctx context.Context, id int) (*models.Order, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error)
	DeleteOrder(ctx context.Context, id int) error
}

type OrderHandler struct {
	wf     *workflow.Workflow
	orders OrderReader
	logger *zap.Logger
}

func NewOrderHandler(wf *workflow.Workflow, orders OrderReader, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		wf:     wf,
		orders: orders,
		logger: logger,
	}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	userID, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.Int("user.id", *userID))

	order, err := h.wf.CreateOrder(ctx, workflow.CreateOrderInput{
		Items:           req.Items,
		UserID:          userID,
		Email:           middleware.CallerEmail(c),
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) CreateGuestOrder(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "CreateGuestOrder")
	defer span.End()

	var req models.CreateGuestOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.GuestInfo == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "guest_info with an email is required"})
		return
	}

	order, err := h.wf.CreateOrder(ctx, workflow.CreateOrderInput{
		Items:           req.Items,
		Guest:           req.GuestInfo,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetOrder serves the order to its owner or an admin. Anyone else gets a 404.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	id, ok := idParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("order.id", id))

	order, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	caller, _ := middleware.Caller(c)
	if !middleware.IsAdmin(c) && (order.UserID == nil || caller == nil || *order.UserID != *caller) {
		respondError(c, h.logger, models.ErrOrderNotFound)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) MyOrders(c *gin.Context) {
	userID, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	limit, offset := pagination(c)
	orders, err := h.orders.ListOrders(c.Request.Context(), models.OrderFilter{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	status := models.OrderStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown order status"})
		return
	}
	limit, offset := pagination(c)
	orders, err := h.orders.ListOrders(c.Request.Context(), models.OrderFilter{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "UpdateOrderStatus")
	defer span.End()

	id, ok := idParam(c)
	if !ok {
		return
	}
	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.wf.UpdateOrderStatus(ctx, id, req.Status)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("Order deleted",
		zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
		zap.Int("order_id", id),
	)
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted successfully"})
}
