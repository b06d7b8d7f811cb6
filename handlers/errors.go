package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes the status that matches err's place in the error
// taxonomy. Anything unrecognised is logged and reported as a 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var stockErr *workflow.InsufficientStockError
	var failedErr *workflow.PaymentFailedError

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Insufficient stock",
			"product_id": stockErr.ProductID,
			"product":    stockErr.ProductName,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
	case errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrPaymentNotFound),
		errors.Is(err, models.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrBadRequest),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrOrderNotPayable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrPaymentReferenceSet),
		errors.Is(err, models.ErrEmailTaken),
		errors.Is(err, models.ErrAlreadySubscribed),
		errors.Is(err, models.ErrNotSubscribed),
		errors.Is(err, models.ErrAlreadyUnsubscribed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "Payment gateway temporarily unavailable",
			"retryable": true,
		})
	case errors.As(err, &failedErr):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     "Payment was not successful",
			"reference": failedErr.Reference,
			"status":    failedErr.Status,
		})
	case errors.Is(err, workflow.ErrPaymentPending):
		c.JSON(http.StatusAccepted, gin.H{
			"status":  "pending",
			"message": "Payment has not completed yet",
		})
	default:
		logger.Error("Request failed",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
	_ = c.Error(err)
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
