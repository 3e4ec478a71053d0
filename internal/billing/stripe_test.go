package billing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/repspheres/repcore/internal/config"
	"github.com/repspheres/repcore/internal/db"
	"github.com/repspheres/repcore/internal/models"
)

func TestPriceFor(t *testing.T) {
	tier := &models.Tier{StripeMonthlyPriceID: "price_month", StripeAnnualPriceID: "price_year"}

	price, errPrice := priceFor(tier, CycleMonthly)
	if errPrice != nil {
		t.Fatalf("monthly: %v", errPrice)
	}
	if price != "price_month" {
		t.Fatalf("unexpected price: %s", price)
	}

	price, errPrice = priceFor(tier, CycleAnnual)
	if errPrice != nil {
		t.Fatalf("annual: %v", errPrice)
	}
	if price != "price_year" {
		t.Fatalf("unexpected price: %s", price)
	}

	if _, errPrice = priceFor(tier, "weekly"); !errors.Is(errPrice, ErrInvalidCycle) {
		t.Fatalf("expected ErrInvalidCycle, got %v", errPrice)
	}
	if _, errPrice = priceFor(&models.Tier{}, CycleMonthly); !errors.Is(errPrice, ErrTierNotPurchasable) {
		t.Fatalf("expected ErrTierNotPurchasable, got %v", errPrice)
	}
}

func TestCreateSessionRequiresConfiguration(t *testing.T) {
	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "billing.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	checkout := NewCheckout(conn, config.StripeConfig{})
	if checkout.Configured() {
		t.Fatal("empty config must not report configured")
	}
	if _, errCreate := checkout.CreateSession(context.Background(), 1, "repx2", CycleMonthly); !errors.Is(errCreate, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", errCreate)
	}
}

func TestHandleWebhookRequiresSecret(t *testing.T) {
	checkout := NewCheckout(nil, config.StripeConfig{SecretKey: "sk_test", FrontendURL: "https://app.example.com"})
	if errWebhook := checkout.HandleWebhook(context.Background(), []byte("{}"), "sig"); !errors.Is(errWebhook, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", errWebhook)
	}
}
