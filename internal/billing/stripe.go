package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/repspheres/repcore/internal/config"
	"github.com/repspheres/repcore/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/customer"
	"github.com/stripe/stripe-go/v72/webhook"
	"gorm.io/gorm"
)

// Billing cycle identifiers accepted by checkout.
const (
	CycleMonthly = "monthly"
	CycleAnnual  = "annual"
)

// ErrNotConfigured indicates Stripe settings are missing.
var ErrNotConfigured = errors.New("billing: stripe not configured")

// ErrInvalidCycle indicates an unsupported billing cycle.
var ErrInvalidCycle = errors.New("billing: invalid billing cycle")

// ErrTierNotPurchasable indicates the tier has no Stripe price for the cycle.
var ErrTierNotPurchasable = errors.New("billing: tier has no price for that cycle")

// Checkout creates Stripe Checkout sessions for tier subscriptions.
type Checkout struct {
	db  *gorm.DB
	cfg config.StripeConfig
}

// NewCheckout constructs a Checkout service and wires the Stripe API key.
func NewCheckout(db *gorm.DB, cfg config.StripeConfig) *Checkout {
	if cfg.SecretKey != "" {
		stripe.Key = cfg.SecretKey
	}
	return &Checkout{db: db, cfg: cfg}
}

// Configured reports whether checkout can be used.
func (c *Checkout) Configured() bool {
	return c != nil && c.cfg.SecretKey != "" && c.cfg.FrontendURL != ""
}

// priceFor picks the Stripe price ID for a tier and cycle.
func priceFor(tier *models.Tier, cycle string) (string, error) {
	switch cycle {
	case CycleMonthly:
		if tier.StripeMonthlyPriceID == "" {
			return "", ErrTierNotPurchasable
		}
		return tier.StripeMonthlyPriceID, nil
	case CycleAnnual:
		if tier.StripeAnnualPriceID == "" {
			return "", ErrTierNotPurchasable
		}
		return tier.StripeAnnualPriceID, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidCycle, cycle)
	}
}

// CreateSession starts a subscription checkout for the rep and returns the
// hosted checkout URL.
func (c *Checkout) CreateSession(ctx context.Context, repID uint64, tierSlug, cycle string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	cycle = strings.ToLower(strings.TrimSpace(cycle))

	var rep models.Rep
	if errFind := c.db.WithContext(ctx).Take(&rep, repID).Error; errFind != nil {
		return "", errFind
	}
	var tier models.Tier
	if errFind := c.db.WithContext(ctx).
		Where("slug = ? AND is_enabled = ?", strings.TrimSpace(tierSlug), true).
		Take(&tier).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("billing: unknown tier: %s", tierSlug)
		}
		return "", errFind
	}
	priceID, errPrice := priceFor(&tier, cycle)
	if errPrice != nil {
		return "", errPrice
	}

	customerID, errCustomer := c.ensureCustomer(ctx, &rep)
	if errCustomer != nil {
		return "", errCustomer
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.cfg.FrontendURL + "/billing/success"),
		CancelURL:  stripe.String(c.cfg.FrontendURL + "/billing/cancel"),
	}
	params.AddMetadata("rep_id", fmt.Sprintf("%d", rep.ID))
	params.AddMetadata("tier_slug", tier.Slug)

	sess, errSession := session.New(params)
	if errSession != nil {
		return "", fmt.Errorf("billing: create checkout session: %w", errSession)
	}
	return sess.URL, nil
}

// ensureCustomer finds or creates the rep's Stripe customer and stores its ID.
func (c *Checkout) ensureCustomer(ctx context.Context, rep *models.Rep) (string, error) {
	if rep.StripeCustomerID != "" {
		return rep.StripeCustomerID, nil
	}
	params := &stripe.CustomerParams{
		Email: stripe.String(rep.Email),
		Name:  stripe.String(rep.DisplayName),
	}
	params.AddMetadata("rep_id", fmt.Sprintf("%d", rep.ID))
	cust, errCreate := customer.New(params)
	if errCreate != nil {
		return "", fmt.Errorf("billing: create customer: %w", errCreate)
	}
	if errUpdate := c.db.WithContext(ctx).Model(&models.Rep{}).
		Where("id = ?", rep.ID).
		Updates(map[string]any{
			"stripe_customer_id": cust.ID,
			"updated_at":         time.Now().UTC(),
		}).Error; errUpdate != nil {
		return "", errUpdate
	}
	rep.StripeCustomerID = cust.ID
	return cust.ID, nil
}

// HandleWebhook verifies and applies one Stripe webhook event. Completed
// checkouts assign the purchased tier and deleted subscriptions clear it.
func (c *Checkout) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if c.cfg.WebhookSecret == "" {
		return ErrNotConfigured
	}
	event, errVerify := webhook.ConstructEvent(payload, signature, c.cfg.WebhookSecret)
	if errVerify != nil {
		return fmt.Errorf("billing: webhook signature: %w", errVerify)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &sess); errUnmarshal != nil {
			return fmt.Errorf("billing: webhook payload: %w", errUnmarshal)
		}
		return c.applyCheckoutCompleted(ctx, &sess)
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if errUnmarshal := json.Unmarshal(event.Data.Raw, &sub); errUnmarshal != nil {
			return fmt.Errorf("billing: webhook payload: %w", errUnmarshal)
		}
		return c.applySubscriptionDeleted(ctx, &sub)
	default:
		log.WithField("type", event.Type).Debug("ignoring stripe webhook event")
		return nil
	}
}

func (c *Checkout) applyCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	slug := strings.TrimSpace(sess.Metadata["tier_slug"])
	if slug == "" || sess.Customer == nil || sess.Customer.ID == "" {
		return errors.New("billing: checkout session missing tier or customer")
	}
	var tier models.Tier
	if errFind := c.db.WithContext(ctx).Where("slug = ?", slug).Take(&tier).Error; errFind != nil {
		return errFind
	}
	return c.db.WithContext(ctx).Model(&models.Rep{}).
		Where("stripe_customer_id = ?", sess.Customer.ID).
		Updates(map[string]any{
			"tier_id":    tier.ID,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (c *Checkout) applySubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	if sub.Customer == nil || sub.Customer.ID == "" {
		return errors.New("billing: subscription missing customer")
	}
	return c.db.WithContext(ctx).Model(&models.Rep{}).
		Where("stripe_customer_id = ?", sub.Customer.ID).
		Updates(map[string]any{
			"tier_id":    nil,
			"updated_at": time.Now().UTC(),
		}).Error
}
