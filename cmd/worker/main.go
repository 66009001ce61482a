package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/memorialqr/orderflow/internal/aws"
	"github.com/memorialqr/orderflow/internal/email"
)

func main() {
	ctx := context.Background()

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	svc, err := aws.ServiceConfigFromEnv()
	if err != nil {
		log.Fatalf("service config: %v", err)
	}

	resendCfg, err := email.ResendConfigFromEnv()
	if err != nil {
		log.Fatalf("resend config: %v", err)
	}

	processor := NewProcessor(
		clients.DynamoDB,
		svc.IdempotencyTable,
		svc.OrdersTable,
		email.NewResendClient(resendCfg, nil),
		aws.NewMetrics(clients.CloudWatch, "MemorialQR/Fulfillment"),
	)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"order_number":"MQ-1001","order_id":"local-order-1","idempotency_key":"local-key-1"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{
					Body: testBody,
				},
			},
		}
		if err := processor.Handle(ctx, event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(processor.Handle)
}
