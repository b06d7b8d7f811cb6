package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"shop-svc/cache"
	"shop-svc/middleware"
	"shop-svc/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ProductStore interface {
	ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
	GetProduct(ctx context.Context, id int) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int, u models.ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int) error
}

type ProductHandler struct {
	store  ProductStore
	cache  *cache.ProductCache
	logger *zap.Logger
}

// NewProductHandler accepts a nil cache.
func NewProductHandler(store ProductStore, productCache *cache.ProductCache, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		store:  store,
		cache:  productCache,
		logger: logger,
	}
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "GetProducts")
	defer span.End()

	limit, offset := pagination(c)
	filter := models.ProductFilter{
		Category:    models.Category(strings.ToLower(c.Query("category"))),
		Subcategory: strings.ToLower(c.Query("subcategory")),
		Search:      strings.TrimSpace(c.Query("search")),
		Limit:       limit,
		Offset:      offset,
	}
	if filter.Category != "" && !filter.Category.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category must be men or women"})
		return
	}

	products, err := h.store.ListProducts(ctx, filter)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}

	span.SetAttributes(attribute.Int("products.count", len(products)))
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id, ok := idParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	// Try to get from cache first
	cached, err := h.cache.Get(ctx, id)
	if err != nil {
		h.logger.Warn("Product cache read failed", zap.Int("product_id", id), zap.Error(err))
	}
	if cached != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		c.JSON(http.StatusOK, cached)
		return
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	product, err := h.store.GetProduct(ctx, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.cache.Set(ctx, product); err != nil {
		h.logger.Warn("Failed to cache product", zap.Int("product_id", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, product)
}

func validateCategory(category models.Category, subcategory string) error {
	if !category.Valid() {
		return fmt.Errorf("category must be men or women")
	}
	if !models.ValidSubcategory(category, subcategory) {
		return fmt.Errorf("subcategory %q is not valid for category %s", subcategory, category)
	}
	return nil
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Category = models.Category(strings.ToLower(string(req.Category)))
	req.Subcategory = strings.ToLower(strings.TrimSpace(req.Subcategory))
	if err := validateCategory(req.Category, req.Subcategory); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price must not be negative"})
		return
	}

	product, err := h.store.CreateProduct(ctx, &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Brand:       req.Brand,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}

	span.SetAttributes(attribute.Int("product.id", product.ID))
	h.logger.Info("Product created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("product_id", product.ID),
	)
	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "UpdateProduct")
	defer span.End()

	id, ok := idParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	var req models.ProductUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Price != nil && req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price must not be negative"})
		return
	}

	// The category pair is validated as it will stand after the update.
	if req.Category != nil || req.Subcategory != nil {
		current, err := h.store.GetProduct(ctx, id)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		category, subcategory := current.Category, current.Subcategory
		if req.Category != nil {
			category = models.Category(strings.ToLower(string(*req.Category)))
			req.Category = &category
		}
		if req.Subcategory != nil {
			subcategory = strings.ToLower(strings.TrimSpace(*req.Subcategory))
			req.Subcategory = &subcategory
		}
		if err := validateCategory(category, subcategory); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	product, err := h.store.UpdateProduct(ctx, id, req)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}

	// Invalidate cache
	h.cache.Invalidate(ctx, id)

	h.logger.Info("Product updated", zap.Int("product_id", id))
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx, span := otel.Tracer("shop-service").Start(c.Request.Context(), "DeleteProduct")
	defer span.End()

	id, ok := idParam(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	if err := h.store.DeleteProduct(ctx, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	// Invalidate cache
	h.cache.Invalidate(ctx, id)

	h.logger.Info("Product deleted", zap.Int("product_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
