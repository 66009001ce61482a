package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// ServiceConfig names the resources the order service operates on: the two
// DynamoDB tables and the fulfillment queue.
type ServiceConfig struct {
	IdempotencyTable    string
	OrdersTable         string
	FulfillmentQueueURL string
}

// ServiceConfigFromEnv reads IDEMPOTENCY_TABLE, ORDERS_TABLE and
// FULFILLMENT_QUEUE_URL. All three are required; a missing one is a
// deployment error, not something to discover on the first request.
func ServiceConfigFromEnv() (ServiceConfig, error) {
	cfg := ServiceConfig{
		IdempotencyTable:    os.Getenv("IDEMPOTENCY_TABLE"),
		OrdersTable:         os.Getenv("ORDERS_TABLE"),
		FulfillmentQueueURL: os.Getenv("FULFILLMENT_QUEUE_URL"),
	}
	if cfg.IdempotencyTable == "" {
		return ServiceConfig{}, fmt.Errorf("service configuration missing: IDEMPOTENCY_TABLE not set")
	}
	if cfg.OrdersTable == "" {
		return ServiceConfig{}, fmt.Errorf("service configuration missing: ORDERS_TABLE not set")
	}
	if cfg.FulfillmentQueueURL == "" {
		return ServiceConfig{}, fmt.Errorf("service configuration missing: FULFILLMENT_QUEUE_URL not set")
	}
	return cfg, nil
}

func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1" // default fallback
	}

	var cfg sdkaws.Config
	var err error

	cfg, err = config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)

	if err != nil {
		return cfg, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return cfg, nil
}
