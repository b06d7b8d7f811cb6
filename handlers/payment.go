package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/paystack"
	"shop-svc/workflow"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type PaymentReader interface {
	GetPaymentByID(ctx context.Context, id int) (*models.Payment, error)
	ListPayments(ctx context.Context, f models.PaymentFilter) ([]models.Payment, int, error)
}

type PaymentHandler struct {
	wf            *workflow.Workflow
	payments      PaymentReader
	webhookSecret string
	logger        *zap.Logger
}

func NewPaymentHandler(wf *workflow.Workflow, payments PaymentReader, webhookSecret string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		wf:            wf,
		payments:      payments,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Initialize works for guests and signed-in users alike; OptionalAuth
// supplies the caller when there is one.
func (h *PaymentHandler) Initialize(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "InitializePayment")
	defer span.End()

	var req models.InitializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.Int("order.id", req.OrderID))

	userID, _ := middleware.Caller(c)
	session, err := h.wf.InitializePayment(ctx, workflow.InitializePaymentInput{
		OrderID: req.OrderID,
		Email:   req.Email,
		UserID:  userID,
		IsAdmin: middleware.IsAdmin(c),
	})
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": session})
}

// Callback is where the gateway redirects the customer after checkout.
func (h *PaymentHandler) Callback(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		reference = c.Query("trxref")
	}
	h.reconcile(c, reference)
}

func (h *PaymentHandler) Verify(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.reconcile(c, req.Reference)
}

func (h *PaymentHandler) VerifyByReference(c *gin.Context) {
	h.reconcile(c, c.Param("reference"))
}

func (h *PaymentHandler) reconcile(c *gin.Context, reference string) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "VerifyPayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.reference", reference))

	result, err := h.wf.ReconcilePayment(ctx, reference)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": result})
}

// Webhook accepts signed server-to-server notifications. Only charge.success
// triggers reconciliation; other events are acknowledged and ignored.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "PaymentWebhook")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}
	if !paystack.ValidSignature(h.webhookSecret, body, c.GetHeader(paystack.SignatureHeader)) {
		h.logger.Warn("Rejected webhook with invalid signature", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	event, err := paystack.ParseWebhook(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.String("webhook.event", event.Event))

	if event.Event != "charge.success" || strings.TrimSpace(event.Data.Reference) == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	result, err := h.wf.ReconcilePayment(ctx, event.Data.Reference)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": result})
	case errors.Is(err, workflow.ErrPaymentFailed), errors.Is(err, workflow.ErrPaymentPending):
		// Nothing for the gateway to retry.
		c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
	default:
		respondError(c, h.logger, err)
	}
}

func (h *PaymentHandler) MyPayments(c *gin.Context) {
	userID, ok := middleware.Caller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	h.list(c, userID)
}

func (h *PaymentHandler) ListPayments(c *gin.Context) {
	h.list(c, nil)
}

// GetPayment serves one attempt to the user who made it or an admin.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	payment, err := h.payments.GetPaymentByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	caller, _ := middleware.Caller(c)
	if !middleware.IsAdmin(c) && (payment.UserID == nil || caller == nil || *payment.UserID != *caller) {
		respondError(c, h.logger, models.ErrPaymentNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payment})
}

func (h *PaymentHandler) list(c *gin.Context, userID *int) {
	limit, offset := pagination(c)
	payments, total, err := h.payments.ListPayments(c.Request.Context(), models.PaymentFilter{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   payments,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
