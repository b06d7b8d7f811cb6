package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-svc/cache"
	"shop-svc/config"
	"shop-svc/email"
	shopgrpc "shop-svc/grpc"
	"shop-svc/handlers"
	"shop-svc/kafka"
	"shop-svc/middleware"
	"shop-svc/paystack"
	"shop-svc/rabbitmq"
	"shop-svc/workflow"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API, the gRPC health service and notification workers",
		Action: func(c *cli.Context) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

// worker is a background loop that returns once ctx is done.
type worker func(ctx context.Context) error

// messaging holds the notification transport and its background workers.
type messaging struct {
	notifier workflow.Notifier
	events   workflow.EventPublisher
	workers  []worker
	closers  []func() error
}

func (m *messaging) Close(logger *zap.Logger) {
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			logger.Warn("Failed to close messaging resource", zap.Error(err))
		}
	}
}

func setupMessaging(cfg *config.Config, mailer *email.Client, logger *zap.Logger) (*messaging, error) {
	m := &messaging{}

	var producer sarama.SyncProducer
	kafkaProducer := func() (sarama.SyncProducer, error) {
		if producer != nil {
			return producer, nil
		}
		p, err := kafka.InitProducer(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		producer = p
		m.closers = append(m.closers, p.Close)
		return p, nil
	}

	switch cfg.Notifier {
	case config.NotifierDirect:
		m.notifier = mailer
	case config.NotifierKafka:
		p, err := kafkaProducer()
		if err != nil {
			return nil, err
		}
		m.notifier = kafka.NewNotifier(p, cfg.Kafka.NotificationTopic, logger)
		m.workers = append(m.workers, kafka.NewNotificationWorker(cfg.Kafka, mailer, logger).Run)
	case config.NotifierRabbitMQ:
		conn, ch, err := rabbitmq.SetupConn(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, logger)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, conn.Close, ch.Close)

		consumeCh, err := conn.Channel()
		if err != nil {
			m.Close(logger)
			return nil, fmt.Errorf("could not open consumer channel: %w", err)
		}
		m.closers = append(m.closers, consumeCh.Close)

		m.notifier = rabbitmq.NewNotifier(ch, cfg.RabbitMQ.Queue)
		m.workers = append(m.workers, rabbitmq.NewWorker(consumeCh, cfg.RabbitMQ.Queue, mailer, logger).Run)
	case config.NotifierNone:
		logger.Warn("Notifications disabled")
	}

	if cfg.Kafka.PublishOrderEvents {
		p, err := kafkaProducer()
		if err != nil {
			m.Close(logger)
			return nil, err
		}
		m.events = kafka.NewProducer(p, cfg.Kafka.OrderTopic, logger)
	}

	return m, nil
}

func setupCache(cfg config.RedisConfig, logger *zap.Logger) (*cache.ProductCache, func()) {
	if cfg.Disabled {
		return nil, func() {}
	}
	rdb, err := cache.InitRedis(cfg, logger)
	if err != nil {
		logger.Warn("Redis unavailable, product cache disabled", zap.Error(err))
		return nil, func() {}
	}
	return cache.NewProductCache(rdb, cfg.ProductTTL, logger), func() { rdb.Close() }
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	shutdownTracing, err := middleware.InitTracing(cfg.ServiceName, cfg.Tracing)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	st, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	productCache, closeCache := setupCache(cfg.Redis, logger)
	defer closeCache()

	mailer := email.NewClient(cfg.Brevo, logger)
	msg, err := setupMessaging(cfg, mailer, logger)
	if err != nil {
		return err
	}
	defer msg.Close(logger)

	gateway := paystack.NewClient(cfg.Paystack, logger)

	deps := workflow.Deps{
		Tx:               st.tx,
		Catalog:          st.catalog,
		Orders:           st.orders,
		Payments:         st.payments,
		Gateway:          gateway,
		Notifier:         msg.notifier,
		Events:           msg.events,
		ReconcileTimeout: cfg.ReconcileTimeout,
	}
	if productCache != nil {
		deps.Cache = productCache
	}
	wf := workflow.New(deps, logger)

	issuer := middleware.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL)

	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/metrics", middleware.PrometheusHandler())

	handlers.Routes{
		Health:     handlers.NewHealthHandler(cfg.ServiceName, st.pinger()),
		Auth:       handlers.NewAuthHandler(st.users, issuer, wf, logger),
		Products:   handlers.NewProductHandler(st.catalog, productCache, logger),
		Orders:     handlers.NewOrderHandler(wf, st.orders, logger),
		Payments:   handlers.NewPaymentHandler(wf, st.payments, gateway.SecretKey(), logger),
		Newsletter: handlers.NewNewsletterHandler(st.newsletter, logger),
		Admin:      handlers.NewAdminHandler(st.users, st.orders, logger),
		Issuer:     issuer,
	}.Register(router)

	restSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	healthServer := shopgrpc.NewHealthServer(st.pinger(), 0, logger)
	grpcServer := shopgrpc.NewServer(healthServer)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("REST API started", zap.String("addr", cfg.HTTPAddr))
		if err := restSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("REST server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := restSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("REST server forced to shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("gRPC health service started", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		grpcServer.GracefulStop()
		return nil
	})
	g.Go(func() error {
		return healthServer.Run(gctx)
	})

	for _, run := range msg.workers {
		g.Go(func() error {
			return run(gctx)
		})
	}

	err = g.Wait()
	logger.Info("Servers exited")
	return err
}
