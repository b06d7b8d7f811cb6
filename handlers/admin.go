package handlers

import (
	"context"
	"net/http"

	"shop-svc/middleware"
	"shop-svc/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type UserAdminStore interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]models.User, int, error)
	DeleteUser(ctx context.Context, id int) (*models.User, error)
}

// AdminHandler serves account management. Every route sits behind the admin
// role.
type AdminHandler struct {
	users  UserAdminStore
	orders OrderReader
	logger *zap.Logger
}

func NewAdminHandler(users UserAdminStore, orders OrderReader, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		users:  users,
		orders: orders,
		logger: logger,
	}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := pagination(c)
	users, total, err := h.users.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "AdminGetUser")
	defer span.End()

	id, ok := idParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("user.id", id))

	user, err := h.users.GetUserByID(ctx, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	orders, err := h.orders.ListOrders(ctx, models.OrderFilter{UserID: &id})
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.NewUserDetail(*user, orders))
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	user, err := h.users.DeleteUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("User deleted",
		zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
		zap.Int("user_id", id),
	)
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully", "user": user})
}
