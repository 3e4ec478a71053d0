package access

import (
	"errors"
	"strings"
	"testing"

	"github.com/repspheres/repcore/internal/models"
)

func basicTier() *models.Tier {
	return &models.Tier{
		Slug:              "repx2",
		Name:              "RepX Basic",
		Rank:              2,
		IsEnabled:         true,
		ContactsLimit:     1000,
		CallsPerMonth:     200,
		EmailsPerDay:      50,
		AutomationsLimit:  3,
		CanvasScansPerDay: 10,
		AIPromptsPerDay:   10,
		PhoneAccess:       true,
		EmailAccess:       true,
	}
}

func unlimitedTier() *models.Tier {
	return &models.Tier{
		Slug:              "repx5",
		Name:              "RepX Elite",
		Rank:              5,
		IsEnabled:         true,
		ContactsLimit:     models.UnlimitedLimit,
		CallsPerMonth:     models.UnlimitedLimit,
		EmailsPerDay:      models.UnlimitedLimit,
		AutomationsLimit:  models.UnlimitedLimit,
		CanvasScansPerDay: models.UnlimitedLimit,
		AIPromptsPerDay:   models.UnlimitedLimit,
		PhoneAccess:       true,
		EmailAccess:       true,
		GmailIntegration:  true,
		WhiteLabel:        true,
	}
}

func TestResolveDailyEmailLimitReached(t *testing.T) {
	d, err := Resolve(basicTier(), FeatureEmails, 50)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d.HasAccess {
		t.Fatal("expected denial at the limit")
	}
	if d.Reason != "Daily email limit of 50 reached" {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}
	if d.Limit != 50 {
		t.Fatalf("unexpected limit: %d", d.Limit)
	}
}

func TestResolveUnderLimitAllows(t *testing.T) {
	d, err := Resolve(basicTier(), FeatureEmails, 49)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !d.HasAccess {
		t.Fatalf("expected access, got reason %q", d.Reason)
	}
	if d.Reason != "" {
		t.Fatalf("expected empty reason, got %q", d.Reason)
	}
}

func TestResolveUnlimitedAlwaysAllows(t *testing.T) {
	d, err := Resolve(unlimitedTier(), FeatureEmails, 999999)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !d.HasAccess {
		t.Fatalf("expected access, got reason %q", d.Reason)
	}
	if !d.Unlimited || d.Limit != models.UnlimitedLimit {
		t.Fatalf("expected unlimited decision, got %+v", d)
	}
}

func TestResolveZeroLimitNotAvailable(t *testing.T) {
	tier := basicTier()
	tier.CanvasScansPerDay = 0
	d, err := Resolve(tier, FeatureCanvasScans, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d.HasAccess {
		t.Fatal("expected denial for zero limit")
	}
	if d.Reason != "Canvas scanning not available in this tier" {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}
	if strings.Contains(d.Reason, "reached") {
		t.Fatalf("zero limit must not read as limit reached: %q", d.Reason)
	}
}

func TestResolveLimitBoundary(t *testing.T) {
	tier := basicTier()
	for usage := int64(0); usage <= 52; usage++ {
		d, err := Resolve(tier, FeatureEmails, usage)
		if err != nil {
			t.Fatalf("resolve(%d): %v", usage, err)
		}
		want := usage < tier.EmailsPerDay
		if d.HasAccess != want {
			t.Fatalf("usage %d: hasAccess = %v, want %v", usage, d.HasAccess, want)
		}
		if !want && !strings.Contains(d.Reason, "50") {
			t.Fatalf("usage %d: reason %q missing limit numeral", usage, d.Reason)
		}
	}
}

func TestResolveCapabilityFlags(t *testing.T) {
	tier := basicTier()
	d, err := Resolve(tier, FeatureGmailIntegration, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d.HasAccess {
		t.Fatal("gmail integration should be denied for the basic tier")
	}
	if d.Reason != "Gmail integration not available in this tier" {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}

	d, err = Resolve(tier, FeaturePhoneAccess, 12345)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !d.HasAccess {
		t.Fatalf("phone access should ignore usage, got reason %q", d.Reason)
	}
}

func TestResolveUnknownFeature(t *testing.T) {
	if _, err := Resolve(basicTier(), Feature("teleportation"), 0); !errors.Is(err, ErrUnknownFeature) {
		t.Fatalf("expected ErrUnknownFeature, got %v", err)
	}
}

func TestResolveNilTier(t *testing.T) {
	if _, err := Resolve(nil, FeatureEmails, 0); !errors.Is(err, ErrNilTier) {
		t.Fatalf("expected ErrNilTier, got %v", err)
	}
}

func TestKnownAndCounted(t *testing.T) {
	if !Known(FeatureEmails) || !Known(FeatureWhiteLabel) {
		t.Fatal("expected both counted and flag features to be known")
	}
	if Known(Feature("nope")) {
		t.Fatal("unexpected feature reported known")
	}
	if !Counted(FeatureCalls) || Counted(FeaturePhoneAccess) {
		t.Fatal("counted classification wrong")
	}
}

func TestValidateTierOrder(t *testing.T) {
	basic, elite := basicTier(), unlimitedTier()
	if err := ValidateTierOrder([]models.Tier{*elite, *basic}); err != nil {
		t.Fatalf("valid ladder rejected: %v", err)
	}

	shrunk := unlimitedTier()
	shrunk.EmailsPerDay = 10
	err := ValidateTierOrder([]models.Tier{*basic, *shrunk})
	if err == nil {
		t.Fatal("expected shrinking email limit to fail validation")
	}
	if !strings.Contains(err.Error(), "repx5") {
		t.Fatalf("error should name the offending tier: %v", err)
	}

	dropped := unlimitedTier()
	dropped.PhoneAccess = false
	if err := ValidateTierOrder([]models.Tier{*basic, *dropped}); err == nil {
		t.Fatal("expected dropped capability flag to fail validation")
	}

	disabled := unlimitedTier()
	disabled.EmailsPerDay = 10
	disabled.IsEnabled = false
	if err := ValidateTierOrder([]models.Tier{*basic, *disabled}); err != nil {
		t.Fatalf("disabled tiers must be ignored: %v", err)
	}
}
