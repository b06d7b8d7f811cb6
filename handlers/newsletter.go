package handlers

import (
	"context"
	"net/http"
	"strings"

	"shop-svc/middleware"
	"shop-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NewsletterStore interface {
	Subscribe(ctx context.Context, email string) (*models.Subscriber, bool, error)
	Unsubscribe(ctx context.Context, email string) (*models.Subscriber, error)
	ListSubscribers(ctx context.Context, limit, offset int) ([]models.Subscriber, int, error)
}

type NewsletterHandler struct {
	store  NewsletterStore
	logger *zap.Logger
}

func NewNewsletterHandler(store NewsletterStore, logger *zap.Logger) *NewsletterHandler {
	return &NewsletterHandler{store: store, logger: logger}
}

func bindNewsletterEmail(c *gin.Context) (string, bool) {
	var req models.NewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(req.Email)), true
}

func (h *NewsletterHandler) Subscribe(c *gin.Context) {
	email, ok := bindNewsletterEmail(c)
	if !ok {
		return
	}

	sub, resubscribed, err := h.store.Subscribe(c.Request.Context(), email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	message := "Successfully subscribed to newsletter"
	if resubscribed {
		message = "Successfully resubscribed to newsletter"
	}
	h.logger.Info("Newsletter subscription",
		zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
		zap.Int("subscriber_id", sub.ID),
		zap.Bool("resubscribed", resubscribed),
	)
	c.JSON(http.StatusOK, gin.H{"message": message, "data": sub})
}

func (h *NewsletterHandler) Unsubscribe(c *gin.Context) {
	email, ok := bindNewsletterEmail(c)
	if !ok {
		return
	}

	sub, err := h.store.Unsubscribe(c.Request.Context(), email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("Newsletter unsubscription", zap.Int("subscriber_id", sub.ID))
	c.JSON(http.StatusOK, gin.H{"message": "Successfully unsubscribed from newsletter"})
}

func (h *NewsletterHandler) Subscribers(c *gin.Context) {
	limit, offset := pagination(c)
	subs, total, err := h.store.ListSubscribers(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   subs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
