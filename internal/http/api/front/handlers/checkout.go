package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/repspheres/repcore/internal/billing"
	log "github.com/sirupsen/logrus"
)

// CheckoutHandler manages Stripe checkout and webhook endpoints.
type CheckoutHandler struct {
	checkout *billing.Checkout // Stripe integration.
}

// NewCheckoutHandler constructs a checkout handler.
func NewCheckoutHandler(checkout *billing.Checkout) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// checkoutRequest names the tier and billing cycle to purchase.
type checkoutRequest struct {
	Tier         string `json:"tier"`          // Tier slug.
	BillingCycle string `json:"billing_cycle"` // "monthly" or "annual".
}

// Create starts a Stripe checkout session for the signed-in rep.
func (h *CheckoutHandler) Create(c *gin.Context) {
	repID := currentRepID(c)
	if repID == 0 {
		return
	}
	var body checkoutRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	tierSlug := strings.ToLower(strings.TrimSpace(body.Tier))
	if tierSlug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tier is required"})
		return
	}

	url, errCreate := h.checkout.CreateSession(c.Request.Context(), repID, tierSlug, body.BillingCycle)
	if errCreate != nil {
		switch {
		case errors.Is(errCreate, billing.ErrNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "billing not configured"})
		case errors.Is(errCreate, billing.ErrInvalidCycle):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid billing cycle"})
		case errors.Is(errCreate, billing.ErrTierNotPurchasable):
			c.JSON(http.StatusBadRequest, gin.H{"error": "tier cannot be purchased"})
		default:
			log.WithError(errCreate).Warn("checkout session create failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Webhook applies Stripe subscription events. Authentication is the Stripe
// signature, not a rep token.
func (h *CheckoutHandler) Webhook(c *gin.Context) {
	payload, errRead := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}

	if errHandle := h.checkout.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); errHandle != nil {
		log.WithError(errHandle).Warn("stripe webhook rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "webhook rejected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
