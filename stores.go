package main

import (
	"context"
	"database/sql"

	"shop-svc/config"
	"shop-svc/database"
	"shop-svc/handlers"
	"shop-svc/memstore"
	"shop-svc/repository"
	"shop-svc/workflow"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type catalogStore interface {
	handlers.ProductStore
	workflow.CatalogStore
	DeleteAllProducts(ctx context.Context) (int64, error)
}

type orderStore interface {
	workflow.OrderStore
	handlers.OrderReader
}

type paymentStore interface {
	workflow.PaymentStore
	handlers.PaymentReader
}

type userStore interface {
	handlers.UserStore
	handlers.UserAdminStore
}

// stores is one backend seen through every interface the app consumes.
// db is nil for the in-memory backend.
type stores struct {
	tx         workflow.Transactor
	catalog    catalogStore
	orders     orderStore
	payments   paymentStore
	users      userStore
	newsletter handlers.NewsletterStore
	db         *sql.DB
}

func (s *stores) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// pinger returns nil for the in-memory backend so health checks skip it.
func (s *stores) pinger() handlers.Pinger {
	if s.db == nil {
		return nil
	}
	return s.db
}

func memoryStores() *stores {
	s := memstore.New()
	return &stores{tx: s, catalog: s, orders: s, payments: s, users: s, newsletter: s}
}

// postgresStores connects and, when migrate is set, brings the schema up
// to date before returning.
func postgresStores(cfg config.DBConfig, migrate bool, logger *zap.Logger) (*stores, error) {
	sqlDB, err := database.InitDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(sqlDB, logger); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	db := sqlx.NewDb(sqlDB, "postgres")
	return &stores{
		tx:         repository.NewTransactor(db),
		catalog:    repository.NewProductRepository(db),
		orders:     repository.NewOrderRepository(db),
		payments:   repository.NewPaymentRepository(db),
		users:      repository.NewUserRepository(db),
		newsletter: repository.NewNewsletterRepository(db),
		db:         sqlDB,
	}, nil
}

func openStores(cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return memoryStores(), nil
	}
	return postgresStores(cfg.DB, true, logger)
}
