package access

import (
	"errors"
	"fmt"

	"github.com/repspheres/repcore/internal/models"
)

// Feature identifies a gated capability or counted action.
type Feature string

// Feature constants define the gated feature set.
const (
	// FeatureContacts caps stored CRM contacts.
	FeatureContacts Feature = "contacts"
	// FeatureCalls caps calls placed per month.
	FeatureCalls Feature = "calls"
	// FeatureEmails caps emails sent per day.
	FeatureEmails Feature = "emails"
	// FeatureAutomations caps concurrent workflow automations.
	FeatureAutomations Feature = "automations"
	// FeatureCanvasScans caps Canvas practice scans per day.
	FeatureCanvasScans Feature = "canvas_scans"
	// FeatureAIPrompts caps AI prompt uses per day.
	FeatureAIPrompts Feature = "ai_prompts"
	// FeaturePhoneAccess gates the professional phone line.
	FeaturePhoneAccess Feature = "phone_access"
	// FeatureEmailAccess gates outbound email entirely.
	FeatureEmailAccess Feature = "email_access"
	// FeatureGmailIntegration gates Gmail mailbox sync.
	FeatureGmailIntegration Feature = "gmail_integration"
	// FeatureWhiteLabel gates white-label branding.
	FeatureWhiteLabel Feature = "white_label"
)

// ErrUnknownFeature indicates a feature name outside the gated set.
var ErrUnknownFeature = errors.New("access: unknown feature")

// ErrNilTier indicates a resolve call without a tier record.
var ErrNilTier = errors.New("access: nil tier")

// Decision reports whether an action is permitted and why not.
type Decision struct {
	HasAccess bool   `json:"has_access"`          // Whether the action is permitted.
	Reason    string `json:"reason,omitempty"`    // Human-readable denial reason.
	Limit     int64  `json:"limit"`               // Raw tier limit, models.UnlimitedLimit for no cap.
	Unlimited bool   `json:"unlimited,omitempty"` // Convenience flag for the unlimited sentinel.
}

// featureRule holds the denial wording for one counted feature.
type featureRule struct {
	limit        func(*models.Tier) int64
	notAvailable string
	limitReached string // fmt verb %d receives the tier limit.
}

var countedRules = map[Feature]featureRule{
	FeatureContacts: {
		limit:        func(t *models.Tier) int64 { return t.ContactsLimit },
		notAvailable: "Contacts not available in this tier",
		limitReached: "Contact limit of %d reached",
	},
	FeatureCalls: {
		limit:        func(t *models.Tier) int64 { return t.CallsPerMonth },
		notAvailable: "Calling not available in this tier",
		limitReached: "Monthly call limit of %d reached",
	},
	FeatureEmails: {
		limit:        func(t *models.Tier) int64 { return t.EmailsPerDay },
		notAvailable: "Email feature not available in this tier",
		limitReached: "Daily email limit of %d reached",
	},
	FeatureAutomations: {
		limit:        func(t *models.Tier) int64 { return t.AutomationsLimit },
		notAvailable: "Workflow automation not available in this tier",
		limitReached: "Automation limit of %d reached",
	},
	FeatureCanvasScans: {
		limit:        func(t *models.Tier) int64 { return t.CanvasScansPerDay },
		notAvailable: "Canvas scanning not available in this tier",
		limitReached: "Daily Canvas scan limit of %d reached",
	},
	FeatureAIPrompts: {
		limit:        func(t *models.Tier) int64 { return t.AIPromptsPerDay },
		notAvailable: "AI prompts not available in this tier",
		limitReached: "Daily AI prompt limit of %d reached",
	},
}

var capabilityRules = map[Feature]struct {
	flag         func(*models.Tier) bool
	notAvailable string
}{
	FeaturePhoneAccess:      {func(t *models.Tier) bool { return t.PhoneAccess }, "Phone access not available in this tier"},
	FeatureEmailAccess:      {func(t *models.Tier) bool { return t.EmailAccess }, "Email access not available in this tier"},
	FeatureGmailIntegration: {func(t *models.Tier) bool { return t.GmailIntegration }, "Gmail integration not available in this tier"},
	FeatureWhiteLabel:       {func(t *models.Tier) bool { return t.WhiteLabel }, "White-label branding not available in this tier"},
}

// Known reports whether the feature name is part of the gated set.
func Known(feature Feature) bool {
	if _, ok := countedRules[feature]; ok {
		return true
	}
	_, ok := capabilityRules[feature]
	return ok
}

// Counted reports whether the feature is tracked by a usage counter.
func Counted(feature Feature) bool {
	_, ok := countedRules[feature]
	return ok
}

// Resolve decides whether a rep at the given tier may perform the feature
// action, given the current usage count. It is a pure function of its inputs.
func Resolve(tier *models.Tier, feature Feature, usage int64) (Decision, error) {
	if tier == nil {
		return Decision{}, ErrNilTier
	}

	if rule, ok := capabilityRules[feature]; ok {
		if rule.flag(tier) {
			return Decision{HasAccess: true, Limit: 1}, nil
		}
		return Decision{HasAccess: false, Reason: rule.notAvailable, Limit: 0}, nil
	}

	rule, ok := countedRules[feature]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}

	limit := rule.limit(tier)
	switch {
	case limit == 0:
		return Decision{HasAccess: false, Reason: rule.notAvailable, Limit: 0}, nil
	case limit == models.UnlimitedLimit:
		return Decision{HasAccess: true, Limit: models.UnlimitedLimit, Unlimited: true}, nil
	case usage >= limit:
		return Decision{
			HasAccess: false,
			Reason:    fmt.Sprintf(rule.limitReached, limit),
			Limit:     limit,
		}, nil
	default:
		return Decision{HasAccess: true, Limit: limit}, nil
	}
}
