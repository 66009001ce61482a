package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/orderflow/internal/payments"
	"github.com/memorialqr/orderflow/internal/validation"
)

// SquareCustomers is the slice of the Square client the handler needs.
type SquareCustomers interface {
	CreateCustomer(ctx context.Context, email, givenName, familyName, phoneNumber string) (*payments.Customer, error)
}

// CheckoutSessions is the slice of the Stripe client the handler needs.
type CheckoutSessions interface {
	CreateCheckoutSession(ctx context.Context, items []payments.SessionItem) (string, error)
}

// PaymentsConfig groups the payment processor clients.
type PaymentsConfig struct {
	Square SquareCustomers
	Stripe CheckoutSessions
}

// RegisterPaymentsRoutes registers the payment processor proxy routes.
func RegisterPaymentsRoutes(r *gin.Engine, cfg PaymentsConfig) {
	v := validation.New()

	r.POST("/api/square/create-customer", func(c *gin.Context) {
		var req validation.CreateCustomerRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		cust, err := cfg.Square.CreateCustomer(c.Request.Context(), req.Email, req.GivenName, req.FamilyName, req.PhoneNumber)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "square_customer_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "customer": gin.H{"id": cust.ID}})
	})

	r.POST("/api/stripe/create-checkout", func(c *gin.Context) {
		var req validation.CreateCheckoutSessionRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		items := make([]payments.SessionItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, payments.SessionItem{ProductID: it.ProductID, Quantity: it.Quantity})
		}

		url, err := cfg.Stripe.CreateCheckoutSession(c.Request.Context(), items)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "checkout_session_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url})
	})
}
