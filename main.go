package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commerce-core/config"
	"commerce-core/controllers"
	"commerce-core/database"
	"commerce-core/kafka"
	"commerce-core/logger"
	"commerce-core/middleware"
	"commerce-core/models"
	"commerce-core/payment"
	"commerce-core/repository"
	"commerce-core/routes"
	"commerce-core/services"
	"commerce-core/websocket"
	"commerce-core/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger.Initialize(cfg.Env)
	defer logger.Log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	pg, err := database.ConnectPostgres(cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("postgres error: %v", err)
	}
	if err := pg.AutoMigrate(&models.Order{}, &models.OrderItem{}); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	mongoClient, mongoDB, err := database.ConnectMongo(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("mongo error: %v", err)
	}
	defer database.CloseMongo(mongoClient)

	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis error: %v", err)
	}

	// Repositories
	catalogRepo := repository.NewMongoCatalogRepository(mongoDB)
	orderRepo := repository.NewGormOrderRepository(pg)
	cartRepo := repository.NewRedisCartRepository(redisClient, cfg.CartTTL)

	// Event stream + gateway + status feed
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic)
	defer producer.Close()

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookKey)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Services
	reservationSvc := services.NewReservationService(catalogRepo)
	catalogSvc := services.NewCatalogService(catalogRepo)
	cartSvc := services.NewCartService(cartRepo, catalogRepo)
	orderSvc := services.NewOrderService(orderRepo, cartRepo, reservationSvc, gateway, producer, hub)

	// Background consumers and the pending-order backstop
	paymentConsumer := services.NewPaymentConsumer(cfg.KafkaBrokers, cfg.PaymentTopic, cfg.PaymentGroupID, orderSvc)
	go paymentConsumer.Start(ctx)
	defer paymentConsumer.Close()

	reconciler := worker.NewReconciliationWorker(orderSvc, cfg.ReconcileInterval, cfg.PendingOrderMaxAge)
	go reconciler.Run(ctx)

	// HTTP
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(logger.RequestLogger())
	router.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitBurst))

	routes.Register(router, cfg.JWTSecret,
		controllers.NewCatalogController(catalogSvc),
		controllers.NewCartController(cartSvc),
		controllers.NewOrderController(orderSvc),
		controllers.NewPaymentWebhookController(gateway, orderSvc, logger.Log),
		websocket.NewHandler(hub, orderSvc),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("commerce-core is running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server shutdown complete.")
}
