package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/repspheres/repcore/internal/db"
	"github.com/repspheres/repcore/internal/mailer"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/security"
	internalsettings "github.com/repspheres/repcore/internal/settings"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrConnectionTestFailed wraps a failed SMTP credential check.
var ErrConnectionTestFailed = errors.New("onboarding: connection test failed")

// Selector walks reps through connecting a work email account. It prefers a
// silent OAuth grant and falls back to guided SMTP setup.
type Selector struct {
	db        *gorm.DB
	sealer    *security.Sealer
	transport mailer.Transport
	broker    TokenBroker
	nowFn     func() time.Time
}

// NewSelector constructs a Selector.
func NewSelector(db *gorm.DB, sealer *security.Sealer, transport mailer.Transport, broker TokenBroker) *Selector {
	return &Selector{
		db:        db,
		sealer:    sealer,
		transport: transport,
		broker:    broker,
		nowFn:     time.Now,
	}
}

// BeginResult reports the outcome of the silent OAuth attempt.
type BeginResult struct {
	Session *Session                 `json:"session"`           // Flow state after the attempt.
	Account *models.WorkEmailAccount `json:"account,omitempty"` // Connected account when the attempt succeeded.
	Guide   *mailer.SetupGuide       `json:"guide,omitempty"`   // SMTP setup guide when it did not.
}

// silentTimeout reads the silent OAuth deadline from DB settings.
func silentTimeout() time.Duration {
	seconds := internalsettings.DefaultSilentOAuthTimeoutSeconds
	if raw, ok := internalsettings.DBConfigValue(internalsettings.SilentOAuthTimeoutSecondsKey); ok {
		var parsed int
		if errUnmarshal := json.Unmarshal(raw, &parsed); errUnmarshal == nil && parsed > 0 {
			seconds = parsed
		}
	}
	return time.Duration(seconds) * time.Second
}

// Begin starts the connection flow for an email address. It attempts a silent
// OAuth grant bounded by the configured timeout. On success the account is
// persisted verified; on failure the result carries the guided SMTP setup
// guide and nothing is persisted.
func (s *Selector) Begin(ctx context.Context, repID uint64, email, displayName, refreshToken string) (*BeginResult, error) {
	email = strings.TrimSpace(email)
	if !mailer.ValidAddress(email) {
		return nil, fmt.Errorf("invalid email address: %s", email)
	}

	session := NewSession()
	if errAdvance := session.Advance(StateTryingSilentOAuth); errAdvance != nil {
		return nil, errAdvance
	}

	provider := mailer.DetectProvider(email)
	ctxOAuth, cancel := context.WithTimeout(ctx, silentTimeout())
	grant, errSilent := s.broker.Silent(ctxOAuth, provider, email, refreshToken)
	cancel()

	if errSilent != nil || grant == nil {
		if errSilent != nil && !errors.Is(errSilent, ErrNoSilentGrant) {
			log.WithError(errSilent).WithField("email", email).Debug("silent oauth attempt failed")
		}
		if errAdvance := session.Advance(StateSilentOAuthFailed); errAdvance != nil {
			return nil, errAdvance
		}
		if errAdvance := session.Advance(StateGuidedSMTPPending); errAdvance != nil {
			return nil, errAdvance
		}
		guide := mailer.GuideFor(email)
		return &BeginResult{Session: session, Guide: &guide}, nil
	}

	sealed, errSeal := s.sealer.Seal([]byte(grant.RefreshToken))
	if errSeal != nil {
		return nil, errSeal
	}
	defaults, _ := mailer.DefaultsFor(provider)
	account := &models.WorkEmailAccount{
		RepID:        repID,
		EmailAddress: email,
		DisplayName:  strings.TrimSpace(displayName),
		Provider:     string(provider),
		SMTPHost:     defaults.Host,
		SMTPPort:     defaults.Port,
		SMTPSecure:   defaults.Secure,
		Credential:   sealed,
		SetupMethod:  models.SetupMethodOAuth,
		IsVerified:   true,
	}
	if errPersist := s.persistAccount(ctx, account); errPersist != nil {
		return nil, errPersist
	}
	if errAdvance := session.Advance(StateVerified); errAdvance != nil {
		return nil, errAdvance
	}
	return &BeginResult{Session: session, Account: account}, nil
}

// SMTPParams carries the guided SMTP setup form.
type SMTPParams struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Secure      bool   `json:"secure"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// CompleteSMTP tests the supplied SMTP credentials and persists the account
// only when the test passes. Nothing is stored for failed credentials.
func (s *Selector) CompleteSMTP(ctx context.Context, repID uint64, session *Session, params SMTPParams) (*models.WorkEmailAccount, error) {
	params.Email = strings.TrimSpace(params.Email)
	params.Host = strings.TrimSpace(params.Host)
	params.Username = strings.TrimSpace(params.Username)
	if !mailer.ValidAddress(params.Email) {
		return nil, fmt.Errorf("invalid email address: %s", params.Email)
	}
	if params.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if params.Port <= 0 || params.Port > 65535 {
		return nil, fmt.Errorf("invalid smtp port: %d", params.Port)
	}
	if params.Username == "" {
		params.Username = params.Email
	}
	if params.Password == "" {
		return nil, errors.New("password is required")
	}

	if errAdvance := session.Advance(StateCredentialsTested); errAdvance != nil {
		return nil, errAdvance
	}

	acct := mailer.Account{
		Host:     params.Host,
		Port:     params.Port,
		Secure:   params.Secure,
		Username: params.Username,
		Password: params.Password,
	}
	if errTest := s.transport.Test(ctx, acct); errTest != nil {
		if errBack := session.Advance(StateGuidedSMTPPending); errBack != nil {
			return nil, errBack
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectionTestFailed, errTest)
	}

	sealed, errSeal := s.sealer.Seal([]byte(params.Password))
	if errSeal != nil {
		return nil, errSeal
	}
	account := &models.WorkEmailAccount{
		RepID:        repID,
		EmailAddress: params.Email,
		DisplayName:  strings.TrimSpace(params.DisplayName),
		Provider:     string(mailer.DetectProvider(params.Email)),
		SMTPHost:     params.Host,
		SMTPPort:     params.Port,
		SMTPSecure:   params.Secure,
		Credential:   sealed,
		SetupMethod:  models.SetupMethodSMTP,
		IsVerified:   true,
	}
	if errPersist := s.persistAccount(ctx, account); errPersist != nil {
		return nil, errPersist
	}
	if errAdvance := session.Advance(StateVerified); errAdvance != nil {
		return nil, errAdvance
	}
	return account, nil
}

// ManualFallback records that the rep abandoned automated setup.
func (s *Selector) ManualFallback(session *Session) error {
	return session.Advance(StateManualFallback)
}

// persistAccount stores the account, marking it primary when it is the rep's
// first. The rep row lock serializes concurrent onboarding for one rep.
func (s *Selector) persistAccount(ctx context.Context, account *models.WorkEmailAccount) error {
	now := s.nowFn().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rep models.Rep
		if errFind := db.LockForUpdate(tx).
			Take(&rep, account.RepID).Error; errFind != nil {
			return errFind
		}
		var count int64
		if errCount := tx.Model(&models.WorkEmailAccount{}).
			Where("rep_id = ?", account.RepID).
			Count(&count).Error; errCount != nil {
			return errCount
		}
		account.IsPrimary = count == 0
		return tx.Create(account).Error
	})
}
