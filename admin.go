package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shop-svc/config"
	"shop-svc/database"
	"shop-svc/models"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations",
		Action: func(c *cli.Context) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.InitDB(cfg.DB, logger)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Migrate(db, logger)
		},
	}
}

func createAdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-admin",
		Usage: "create an administrator account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ADMIN_PASSWORD"}},
			&cli.StringFlag{Name: "name", Value: "Administrator"},
		},
		Action: withPostgres(func(c *cli.Context, st *stores, _ *config.Config, logger *zap.Logger) error {
			user, err := createAdmin(c.Context, st.users, c.String("name"), c.String("email"), c.String("password"))
			if err != nil {
				return err
			}
			logger.Info("Admin created", zap.Int("user_id", user.ID), zap.String("email", user.Email))
			return nil
		}),
	}
}

func seedProductsCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed-products",
		Usage: "insert the sample catalog",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clear", Usage: "remove existing products first"},
		},
		Action: withPostgres(func(c *cli.Context, st *stores, cfg *config.Config, logger *zap.Logger) error {
			if c.Bool("clear") {
				if _, err := st.catalog.DeleteAllProducts(c.Context); err != nil {
					return err
				}
			}
			n, err := seedProducts(c.Context, st.catalog)
			if err != nil {
				return err
			}
			flushProductCache(c.Context, cfg.Redis, logger)
			logger.Info("Products seeded", zap.Int("count", n))
			return nil
		}),
	}
}

func clearProductsCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear-products",
		Usage: "delete every product",
		Action: withPostgres(func(c *cli.Context, st *stores, cfg *config.Config, logger *zap.Logger) error {
			n, err := st.catalog.DeleteAllProducts(c.Context)
			if err != nil {
				return err
			}
			flushProductCache(c.Context, cfg.Redis, logger)
			logger.Info("Products cleared", zap.Int64("count", n))
			return nil
		}),
	}
}

type adminAction func(c *cli.Context, st *stores, cfg *config.Config, logger *zap.Logger) error

// withPostgres runs action against the database regardless of STORE.
func withPostgres(action adminAction) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		st, err := postgresStores(cfg.DB, true, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		return action(c, st, cfg, logger)
	}
}

type userCreator interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
}

func createAdmin(ctx context.Context, users userCreator, name, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("email is required")
	}
	if len(password) < 6 {
		return nil, errors.New("password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := users.CreateUser(ctx, &models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create admin %s: %w", email, err)
	}
	return user, nil
}

type productCreator interface {
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
}

var sampleProducts = []models.Product{
	{Name: "Oxford Shirt", Brand: "BeBrand", Price: decimal.RequireFromString("45.00"), Stock: 40, Category: models.CategoryMen, Subcategory: "shirts"},
	{Name: "Slim Chinos", Brand: "BeBrand", Price: decimal.RequireFromString("55.50"), Stock: 35, Category: models.CategoryMen, Subcategory: "pants"},
	{Name: "Leather Belt", Brand: "Atelier", Price: decimal.RequireFromString("19.99"), Stock: 60, Category: models.CategoryMen, Subcategory: "accessories"},
	{Name: "Suede Loafers", Brand: "Atelier", Price: decimal.RequireFromString("89.00"), Stock: 15, Category: models.CategoryMen, Subcategory: "shoes"},
	{Name: "Wool Overcoat", Brand: "Northline", Price: decimal.RequireFromString("180.00"), Stock: 8, Category: models.CategoryMen, Subcategory: "outerwear"},
	{Name: "Training Joggers", Brand: "Stride", Price: decimal.RequireFromString("32.00"), Stock: 50, Category: models.CategoryMen, Subcategory: "sportswear"},
	{Name: "Wrap Dress", Brand: "BeBrand", Price: decimal.RequireFromString("72.00"), Stock: 25, Category: models.CategoryWomen, Subcategory: "dresses"},
	{Name: "Silk Blouse", Brand: "Maison Ivy", Price: decimal.RequireFromString("64.25"), Stock: 30, Category: models.CategoryWomen, Subcategory: "tops"},
	{Name: "Pleated Skirt", Brand: "Maison Ivy", Price: decimal.RequireFromString("48.00"), Stock: 20, Category: models.CategoryWomen, Subcategory: "bottoms"},
	{Name: "Block Heel Sandals", Brand: "Atelier", Price: decimal.RequireFromString("75.00"), Stock: 18, Category: models.CategoryWomen, Subcategory: "shoes"},
	{Name: "Canvas Tote", Brand: "Northline", Price: decimal.RequireFromString("24.99"), Stock: 45, Category: models.CategoryWomen, Subcategory: "life accessories"},
	{Name: "Trench Coat", Brand: "Northline", Price: decimal.RequireFromString("150.00"), Stock: 10, Category: models.CategoryWomen, Subcategory: "outerwear"},
}

func seedProducts(ctx context.Context, store productCreator) (int, error) {
	for i, p := range sampleProducts {
		p.Description = fmt.Sprintf("%s by %s", p.Name, p.Brand)
		if _, err := store.CreateProduct(ctx, &p); err != nil {
			return i, fmt.Errorf("failed to seed %q: %w", p.Name, err)
		}
	}
	return len(sampleProducts), nil
}

func flushProductCache(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) {
	productCache, closeCache := setupCache(cfg, logger)
	defer closeCache()
	if productCache == nil {
		return
	}
	if err := productCache.Flush(ctx); err != nil {
		logger.Warn("Failed to flush product cache", zap.Error(err))
	}
}
