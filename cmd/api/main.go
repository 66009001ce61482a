package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/memorialqr/orderflow/internal/aws"
	"github.com/memorialqr/orderflow/internal/email"
	"github.com/memorialqr/orderflow/internal/handlers"
	"github.com/memorialqr/orderflow/internal/payments"
)

func setupRouter(cfg handlers.HandlerConfig, pay handlers.PaymentsConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterOrdersRoutes(r, cfg)
	handlers.RegisterPaymentsRoutes(r, pay)

	return r
}

func main() {
	clients, err := aws.NewAWSClients(context.Background())

	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	svc, err := aws.ServiceConfigFromEnv()
	if err != nil {
		log.Fatalf("service config: %v", err)
	}

	cfg := handlers.HandlerConfig{
		DynamoDBClient:   clients.DynamoDB,
		SQSClient:        clients.SQS,
		Metrics:          aws.NewMetrics(clients.CloudWatch, "MemorialQR/Orders"),
		IdempotencyTable: svc.IdempotencyTable,
		OrdersTable:      svc.OrdersTable,
		QueueURL:         svc.FulfillmentQueueURL,
		TTLWindow:        48 * time.Hour,
	}

	squareCfg, err := payments.SquareConfigFromEnv()
	if err != nil {
		log.Fatalf("square config: %v", err)
	}
	stripeCfg, err := payments.StripeConfigFromEnv()
	if err != nil {
		log.Fatalf("stripe config: %v", err)
	}
	// email config is only consumed by the worker, but fail fast here too so
	// misconfiguration surfaces at deploy time rather than on the first order
	if _, err := email.ResendConfigFromEnv(); err != nil {
		log.Printf("warning: %v", err)
	}

	pay := handlers.PaymentsConfig{
		Square: payments.NewSquareClient(squareCfg, nil),
		Stripe: payments.NewStripeClient(stripeCfg, nil),
	}

	r := setupRouter(cfg, pay)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		// the adapter handles proxying; use adapter.ProxyWithContext for proper context propagation
		return adapter.ProxyWithContext(ctx, req)
	})
}
