package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/repspheres/repcore/internal/config"
	"github.com/repspheres/repcore/internal/mailer"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// ErrNoSilentGrant indicates no prior grant exists to refresh in the background.
var ErrNoSilentGrant = errors.New("onboarding: no silent grant available")

// Grant is a minted OAuth credential usable for SMTP XOAUTH2 auth.
type Grant struct {
	AccessToken  string    // Bearer token for XOAUTH2.
	RefreshToken string    // Long-lived token sealed into the account record.
	Expiry       time.Time // Access token expiry.
}

// TokenBroker attempts to mint an OAuth grant without user interaction.
type TokenBroker interface {
	// Silent exchanges a previously stored refresh token for a fresh grant.
	Silent(ctx context.Context, provider mailer.Provider, email, refreshToken string) (*Grant, error)
}

// OAuth2Broker mints grants against Google and Microsoft token endpoints.
type OAuth2Broker struct {
	cfg config.OAuthConfig
}

// NewOAuth2Broker constructs an OAuth2Broker from provider client credentials.
func NewOAuth2Broker(cfg config.OAuthConfig) *OAuth2Broker {
	return &OAuth2Broker{cfg: cfg}
}

func (b *OAuth2Broker) endpointFor(provider mailer.Provider) (*oauth2.Config, error) {
	switch provider {
	case mailer.ProviderGmail:
		if b.cfg.Google.ClientID == "" {
			return nil, errors.New("onboarding: google oauth client not configured")
		}
		return &oauth2.Config{
			ClientID:     b.cfg.Google.ClientID,
			ClientSecret: b.cfg.Google.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"https://mail.google.com/"},
		}, nil
	case mailer.ProviderOutlook, mailer.ProviderOffice365:
		if b.cfg.Microsoft.ClientID == "" {
			return nil, errors.New("onboarding: microsoft oauth client not configured")
		}
		return &oauth2.Config{
			ClientID:     b.cfg.Microsoft.ClientID,
			ClientSecret: b.cfg.Microsoft.ClientSecret,
			Endpoint:     microsoft.AzureADEndpoint("common"),
			Scopes:       []string{"https://outlook.office.com/SMTP.Send", "offline_access"},
		}, nil
	default:
		return nil, fmt.Errorf("onboarding: provider %s has no oauth endpoint", provider)
	}
}

// Silent refreshes a stored grant without any user interaction. Callers bound
// the attempt with a context deadline.
func (b *OAuth2Broker) Silent(ctx context.Context, provider mailer.Provider, email, refreshToken string) (*Grant, error) {
	if refreshToken == "" {
		return nil, ErrNoSilentGrant
	}
	conf, errEndpoint := b.endpointFor(provider)
	if errEndpoint != nil {
		return nil, errEndpoint
	}

	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, errToken := source.Token()
	if errToken != nil {
		return nil, fmt.Errorf("onboarding: silent refresh for %s failed: %w", email, errToken)
	}

	grant := &Grant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if grant.RefreshToken == "" {
		grant.RefreshToken = refreshToken
	}
	return grant, nil
}

// Ensure OAuth2Broker implements TokenBroker.
var _ TokenBroker = (*OAuth2Broker)(nil)
