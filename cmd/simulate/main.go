// Command simulate boots throwaway Postgres, Mongo and Redis containers,
// seeds one product variant with a small stock, then fires concurrent
// checkouts for the same variant to demonstrate that committed quantity
// never exceeds stock.
package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"commerce-core/database"
	"commerce-core/models"
	"commerce-core/repository"
	"commerce-core/services"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	stock     = 5
	attempts  = 20
	perOrder  = 1
	variant   = "M"
	productID = "sim-product"
)

// undecidedGateway stands in for the payment adapter; COD checkouts never
// reach it.
type undecidedGateway struct{}

func (undecidedGateway) Confirm(ctx context.Context, orderID, ref string) (bool, error) {
	return false, fmt.Errorf("simulation gateway has no answer")
}

func main() {
	ctx := context.Background()

	pgDSN, mongoURI, redisURL, terminate := startContainers(ctx)
	defer terminate()

	pg, err := database.ConnectPostgres(pgDSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	if err := pg.AutoMigrate(&models.Order{}, &models.OrderItem{}); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	mongoClient, mongoDB, err := database.ConnectMongo(mongoURI, "simulate")
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	defer database.CloseMongo(mongoClient)

	redisClient, err := database.NewRedisClient(redisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	catalogRepo := repository.NewMongoCatalogRepository(mongoDB)
	orderRepo := repository.NewGormOrderRepository(pg)
	cartRepo := repository.NewRedisCartRepository(redisClient, time.Hour)

	reservationSvc := services.NewReservationService(catalogRepo)
	cartSvc := services.NewCartService(cartRepo, catalogRepo)
	orderSvc := services.NewOrderService(orderRepo, cartRepo, reservationSvc, undecidedGateway{}, nil, nil)

	if err := catalogRepo.Upsert(ctx, &models.Product{
		ID:       productID,
		Title:    "Simulated Tee",
		Price:    1999,
		Variants: []models.Variant{{Size: variant, Stock: stock}},
	}); err != nil {
		log.Fatalf("seed: %v", err)
	}

	fmt.Printf("--- STARTING SIMULATION (%d CONCURRENT CHECKOUTS, STOCK=%d) ---\n", attempts, stock)

	var succeeded, rejected int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := uuid.NewString()

			if _, err := cartSvc.AddLine(ctx, userID, productID, variant, perOrder); err != nil {
				fmt.Printf("[%02d] add to cart failed: %v\n", n, err)
				return
			}

			order, err := orderSvc.CreateOrder(ctx, userID, &services.CreateOrderRequest{
				PaymentMode: models.PaymentModeCOD,
				ShipAddress: "1 Simulation Way",
			})
			if err != nil {
				atomic.AddInt64(&rejected, 1)
				fmt.Printf("[%02d] REJECTED: %v\n", n, err)
				return
			}
			atomic.AddInt64(&succeeded, 1)
			fmt.Printf("[%02d] SUCCESS: order=%s status=%s\n", n, order.OrderNumber, order.Status)
		}(i + 1)
	}
	wg.Wait()

	product, err := catalogRepo.Get(ctx, productID)
	if err != nil {
		log.Fatalf("final stock read: %v", err)
	}
	final, _ := product.VariantStock(variant)

	fmt.Println("---------------------------------------------------")
	fmt.Printf("succeeded=%d rejected=%d final_stock=%d\n", succeeded, rejected, final)

	if final < 0 {
		log.Fatalf("OVERSOLD: final stock %d is negative", final)
	}
	if int(succeeded)*perOrder != stock-final {
		log.Fatalf("LEDGER MISMATCH: %d committed but stock moved %d", succeeded*perOrder, stock-final)
	}
	fmt.Println("no oversell: committed quantity matches stock movement")
}

// startContainers brings up the three stores and returns their connection
// strings plus a combined terminate func.
func startContainers(ctx context.Context) (pgDSN, mongoURI, redisURL string, terminate func()) {
	pgC, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("simulate"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		log.Fatalf("postgres container: %v", err)
	}

	pgDSN, err = pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("postgres dsn: %v", err)
	}

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("mongo container: %v", err)
	}
	mongoHost, _ := mongoC.Host(ctx)
	mongoPort, _ := mongoC.MappedPort(ctx, "27017")
	mongoURI = fmt.Sprintf("mongodb://%s:%s", mongoHost, mongoPort.Port())

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("redis container: %v", err)
	}
	redisHost, _ := redisC.Host(ctx)
	redisPort, _ := redisC.MappedPort(ctx, "6379")
	redisURL = fmt.Sprintf("redis://%s:%s", redisHost, redisPort.Port())

	terminate = func() {
		_ = redisC.Terminate(ctx)
		_ = mongoC.Terminate(ctx)
		_ = pgC.Terminate(ctx)
	}
	return pgDSN, mongoURI, redisURL, terminate
}
