package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/evercart/checkout/internal/cart"
	"github.com/evercart/checkout/internal/catalog"
	"github.com/evercart/checkout/internal/config"
	"github.com/evercart/checkout/internal/httpx"
	kafkax "github.com/evercart/checkout/internal/kafka"
	"github.com/evercart/checkout/internal/logging"
	"github.com/evercart/checkout/internal/metrics"
	"github.com/evercart/checkout/internal/notify"
	"github.com/evercart/checkout/internal/orders"
	"github.com/evercart/checkout/internal/payments"
	"github.com/evercart/checkout/internal/postgres"
	"github.com/evercart/checkout/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.MustRegister()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConn)
	if err != nil {
		log.Fatal("db_connect_failed", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatal("schema_apply_failed", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for notification dispatch
	prod := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicEmail, 1024, log)
	prod.Start(ctx)
	dispatcher := &notify.KafkaDispatcher{Producer: prod, Service: cfg.ServiceName}

	// Repos & services
	catalogRepo := &catalog.Repo{DB: db}
	cartSvc := &cart.Service{
		Store:    &cart.Repo{DB: db},
		Products: catalogRepo,
	}
	orderSvc := &orders.Service{
		Store:  &orders.Repo{DB: db},
		Notify: dispatcher,
		Log:    log,
	}
	paymentRepo := &payments.Repo{DB: db}
	paymentSvc := &payments.Service{
		Gateway: payments.NewHTTPGateway(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayTimeout, log),
		Store:   paymentRepo,
		Orders:  orderSvc.Store,
		Log:     log,
	}
	reconciler := &payments.Reconciler{
		Store:       paymentRepo,
		Redis:       rdb,
		Notify:      dispatcher,
		Log:         log,
		RetryWindow: cfg.PaymentRetryWindow,
	}

	// Router
	router := httpx.NewRouter()
	(&httpx.CartHandler{Svc: cartSvc, Products: catalogRepo}).Register(router)
	(&httpx.OrdersHandler{Svc: orderSvc, Redis: rdb, AdminToken: cfg.AdminToken}).Register(router)
	(&httpx.PaymentsHandler{Svc: paymentSvc}).Register(router)
	(&httpx.WebhookHandler{
		Reconciler: reconciler,
		Secret:     cfg.WebhookSecret,
		Tolerance:  cfg.WebhookTolerance,
		Log:        log,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http_listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http_listen_failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting_down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // close inbox -> flush & close writer
	cancel()
	prod.WaitClosed()
}
