package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/memorialqr/orderflow/internal/aws"
	"github.com/memorialqr/orderflow/internal/catalog"
	"github.com/memorialqr/orderflow/internal/idempotency"
	"github.com/memorialqr/orderflow/internal/orders"
	"github.com/memorialqr/orderflow/internal/validation"
)

// HandlerConfig groups dependencies for the orders handlers.
type HandlerConfig struct {
	DynamoDBClient   aws.DynamoDBAPI
	SQSClient        aws.SQSAPI
	Metrics          *aws.Metrics
	IdempotencyTable string
	OrdersTable      string
	QueueURL         string
	TTLWindow        time.Duration
}

// RegisterOrdersRoutes registers the checkout and order routes.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	idempStore := idempotency.NewStore(cfg.DynamoDBClient, cfg.IdempotencyTable, cfg.TTLWindow)
	ordersStore := orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable)
	allocator := orders.NewNumberAllocator(cfg.DynamoDBClient, cfg.OrdersTable)
	publisher := aws.NewPublisher(cfg.SQSClient, cfg.QueueURL)

	r.POST("/api/checkout/process", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CheckoutRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		// Require idempotency key header: one key per checkout attempt,
		// so a resubmission after a slow response cannot double-charge.
		idempKey := c.GetHeader("Idempotency-Key")
		if idempKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing_idempotency_key"})
			return
		}

		orderNumber, err := allocator.Next(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "order_number_allocation_failed", "detail": err.Error()})
			return
		}
		orderID := uuid.NewString()

		now := time.Now().UTC()
		idempItem := map[string]interface{}{
			"idempotency_key": idempKey,
			"status":          idempotency.StatusInProgress,
			"created_at":      now.Format(time.RFC3339),
			"updated_at":      now.Format(time.RFC3339),
			"order_number":    orderNumber,
		}

		order := orders.Order{
			OrderNumber:        orderNumber,
			OrderID:            orderID,
			PlanType:           req.PlanType,
			PlaqueColor:        req.PlaqueColor,
			BoxPersonalization: req.BoxPersonalization,
			Addons:             req.Addons,
			StoneEngravingText: req.StoneEngravingText,
			PicturePlaqueURL:   req.PicturePlaqueURL,
			CustomerName:       req.FirstName + " " + req.LastName,
			CustomerEmail:      req.CustomerEmail,
			CustomerPhone:      req.CustomerPhone,
			Shipping: orders.Address{
				Line1: req.AddressLine1,
				Line2: req.AddressLine2,
				City:  req.City,
				State: req.State,
				Zip:   req.Zip,
			},
			PaymentID:    req.PaymentID,
			AmountCents:  req.AmountCents,
			MonthlyCents: req.MonthlyCents,
			Status:       orders.StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		// Attempt the transact write to create idempotency + order atomically
		err = ordersStore.CreateWithIdempotencyTransaction(ctx, cfg.IdempotencyTable, idempItem, order, cfg.TTLWindow)
		if err != nil {
			// Transaction canceled usually means the idempotency key exists:
			// fetch the record and replay the stored outcome.
			rec, getErr := idempStore.Get(ctx, idempKey)
			if getErr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "idempotency_check_failed", "detail": getErr.Error()})
				return
			}
			if rec == nil {
				// Unexpected: transaction failed but no record found
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "transaction_failed_no_idempotency_record", "detail": err.Error()})
				return
			}
			cfg.Metrics.Count(ctx, aws.MetricDuplicateSubmits, 1, nil)
			switch rec.Status {
			case idempotency.StatusDone:
				if rec.ResponseBody != "" {
					var body interface{}
					if derr := json.Unmarshal([]byte(rec.ResponseBody), &body); derr == nil {
						c.Data(rec.ResponseStatus, "application/json", []byte(rec.ResponseBody))
						return
					}
					c.JSON(rec.ResponseStatus, gin.H{"response": rec.ResponseBody})
					return
				}
				c.JSON(http.StatusOK, gin.H{"success": true, "order": gin.H{"orderNumber": rec.OrderNumber}})
				return
			case idempotency.StatusInProgress:
				c.JSON(http.StatusAccepted, gin.H{"success": false, "error": "request_in_progress", "orderNumber": rec.OrderNumber})
				return
			case idempotency.StatusFailed:
				// let client retry with a fresh key and token
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "previous_attempt_failed", "orderNumber": rec.OrderNumber})
				return
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "unknown_idempotency_status"})
				return
			}
		}

		// Records created atomically; hand the order to the fulfillment
		// worker. If the enqueue fails we mark idempotency FAILED so the
		// client may retry.
		msgPayload := map[string]string{
			"order_number":    orderNumber,
			"order_id":        orderID,
			"idempotency_key": idempKey,
			"customer_email":  req.CustomerEmail,
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		attrs := map[string]string{
			"idempotency_key": idempKey,
			"order_number":    orderNumber,
			"correlation_id":  c.GetHeader("X-Request-Id"),
		}

		if err := publisher.SendFulfillmentMessage(ctx, string(payloadBytes), attrs); err != nil {
			_ = idempStore.MarkFailed(ctx, idempKey, fmt.Sprintf("sqs_send_failed: %v", err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "enqueue_failed", "detail": err.Error()})
			return
		}

		cfg.Metrics.Count(ctx, aws.MetricOrdersCreated, 1, map[string]string{"Plan": req.PlanType})

		// Store the response so duplicate keys replay it verbatim.
		responseBody, _ := json.Marshal(gin.H{"success": true, "order": gin.H{"id": orderID, "orderNumber": orderNumber}})
		_ = idempStore.MarkDone(ctx, idempKey, string(responseBody), http.StatusCreated)

		c.Header("Location", fmt.Sprintf("/api/orders/%s", orderNumber))
		c.Data(http.StatusCreated, "application/json", responseBody)
	})

	r.GET("/api/orders/:orderNumber", func(c *gin.Context) {
		ctx := c.Request.Context()
		orderNumber := c.Param("orderNumber")

		o, err := ordersStore.Get(ctx, orderNumber)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "order_lookup_failed", "detail": err.Error()})
			return
		}
		if o == nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "order_not_found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "order": o})
	})

	r.PATCH("/api/orders/:orderNumber/customize", func(c *gin.Context) {
		ctx := c.Request.Context()
		orderNumber := c.Param("orderNumber")

		var req validation.CustomizeRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		o, err := ordersStore.Get(ctx, orderNumber)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "order_lookup_failed", "detail": err.Error()})
			return
		}
		if o == nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "order_not_found"})
			return
		}

		amount := catalog.TotalCents(o.PlanType, req.Addons)
		err = ordersStore.UpdateCustomization(ctx, orderNumber, req.PlaqueColor, req.BoxPersonalization, req.Addons, amount)
		if errors.Is(err, orders.ErrCustomizeClosed) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "customization_closed"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "customize_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	r.POST("/api/orders/:orderNumber/memorial", func(c *gin.Context) {
		ctx := c.Request.Context()
		orderNumber := c.Param("orderNumber")

		var req validation.LinkMemorialRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		err := ordersStore.LinkMemorial(ctx, orderNumber, req.MemorialID)
		if errors.Is(err, orders.ErrMemorialLinked) {
			// conditional failure covers both "no such order" and "already
			// linked"; a read tells them apart
			o, getErr := ordersStore.Get(ctx, orderNumber)
			if getErr == nil && o == nil {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "order_not_found"})
				return
			}
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "memorial_already_linked"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "memorial_link_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "memorialId": req.MemorialID})
	})
}
