package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/repspheres/repcore/internal/access"
	"github.com/repspheres/repcore/internal/mailer"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/onboarding"
	"github.com/repspheres/repcore/internal/ratelimit"
	"github.com/repspheres/repcore/internal/security"
	"github.com/repspheres/repcore/internal/usage"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNoVerifiedAccount indicates the rep has no usable sending account.
var ErrNoVerifiedAccount = errors.New("sender: no verified sending account")

// ErrRateLimited indicates the per-rep send rate limit was hit.
var ErrRateLimited = errors.New("sender: send rate limit exceeded")

// AccessError carries the tier gate denial for a send attempt.
type AccessError struct {
	Reason string
	Limit  int64
}

func (e *AccessError) Error() string { return e.Reason }

const bodyPreviewLength = 200

// Request is one outbound send on behalf of a rep.
type Request struct {
	AccountID uint64   `json:"account_id"` // Optional explicit sending account.
	To        []string `json:"to"`
	Cc        []string `json:"cc"`
	Bcc       []string `json:"bcc"`
	Subject   string   `json:"subject"`
	HTMLBody  string   `json:"html_body"`
	TextBody  string   `json:"text_body"`
}

// Service delivers rep email through their connected accounts, enforcing tier
// gates, usage counters, and send rate limits.
type Service struct {
	db        *gorm.DB
	sealer    *security.Sealer
	transport mailer.Transport
	broker    onboarding.TokenBroker
	recorder  *usage.GormRecorder
	limiter   *ratelimit.Manager
	nowFn     func() time.Time
}

// NewService constructs a sender Service.
func NewService(db *gorm.DB, sealer *security.Sealer, transport mailer.Transport, broker onboarding.TokenBroker, recorder *usage.GormRecorder, limiter *ratelimit.Manager) *Service {
	return &Service{
		db:        db,
		sealer:    sealer,
		transport: transport,
		broker:    broker,
		recorder:  recorder,
		limiter:   limiter,
		nowFn:     time.Now,
	}
}

// Send validates, gates, and delivers one message. Recipient validation runs
// before any account lookup or network activity. Failed transport attempts
// are logged and surfaced without retry.
func (s *Service) Send(ctx context.Context, repID uint64, req Request) (*models.EmailSendLog, error) {
	if errRecipients := mailer.ValidateRecipients(req.To); errRecipients != nil {
		return nil, errRecipients
	}
	for _, extra := range [][]string{req.Cc, req.Bcc} {
		for _, addr := range extra {
			if !mailer.ValidAddress(addr) {
				return nil, fmt.Errorf("invalid recipient address: %s", strings.TrimSpace(addr))
			}
		}
	}

	var rep models.Rep
	if errFind := s.db.WithContext(ctx).Preload("Tier").Take(&rep, repID).Error; errFind != nil {
		return nil, errFind
	}
	if rep.Disabled || !rep.Active {
		return nil, errors.New("sender: rep is disabled")
	}
	if rep.Tier == nil {
		return nil, &AccessError{Reason: "No subscription tier assigned"}
	}

	now := s.nowFn().UTC()
	if errGate := s.checkAccess(ctx, &rep, now); errGate != nil {
		return nil, errGate
	}
	if errLimit := s.checkRateLimit(ctx, repID); errLimit != nil {
		return nil, errLimit
	}

	account, errAccount := s.pickAccount(ctx, repID, req.AccountID)
	if errAccount != nil {
		return nil, errAccount
	}
	acct, errCreds := s.transportAccount(ctx, account)
	if errCreds != nil {
		return nil, errCreds
	}

	fromName := account.DisplayName
	if fromName == "" {
		fromName = rep.DisplayName
	}
	msg := mailer.Message{
		From:     account.EmailAddress,
		FromName: fromName,
		To:       req.To,
		Cc:       req.Cc,
		Bcc:      req.Bcc,
		Subject:  req.Subject,
		HTMLBody: req.HTMLBody,
		TextBody: req.TextBody,
	}

	messageID, errSend := s.transport.Send(ctx, acct, msg)
	entry := s.buildLog(repID, account, req, now)
	if errSend != nil {
		entry.Status = models.SendStatusFailed
		entry.ErrorText = errSend.Error()
		s.record(ctx, entry, account, false, now)
		return entry, errSend
	}

	entry.Status = models.SendStatusSent
	entry.ProviderMessageID = messageID
	s.record(ctx, entry, account, true, now)

	if errCount := s.recorder.Increment(ctx, repID, access.FeatureEmails, 1, now); errCount != nil {
		log.WithError(errCount).WithField("rep_id", repID).Warn("failed to increment email usage counter")
	}
	return entry, nil
}

func (s *Service) checkAccess(ctx context.Context, rep *models.Rep, now time.Time) error {
	gate, errGate := access.Resolve(rep.Tier, access.FeatureEmailAccess, 0)
	if errGate != nil {
		return errGate
	}
	if !gate.HasAccess {
		return &AccessError{Reason: gate.Reason, Limit: gate.Limit}
	}

	used, errUsed := s.recorder.CurrentCount(ctx, rep.ID, access.FeatureEmails, now)
	if errUsed != nil {
		return errUsed
	}
	decision, errDecide := access.Resolve(rep.Tier, access.FeatureEmails, used)
	if errDecide != nil {
		return errDecide
	}
	if !decision.HasAccess {
		return &AccessError{Reason: decision.Reason, Limit: decision.Limit}
	}
	return nil
}

func (s *Service) checkRateLimit(ctx context.Context, repID uint64) error {
	if s.limiter == nil {
		return nil
	}
	decision, errResolve := ratelimit.ResolveSendLimit(ctx, s.db, repID)
	if errResolve != nil {
		return errResolve
	}
	key := ratelimit.KeyForDecision(repID, decision)
	result, errAllow := s.limiter.Allow(ctx, key, decision.Limit)
	if errAllow != nil {
		return errAllow
	}
	if !result.Allowed {
		return ErrRateLimited
	}
	return nil
}

// pickAccount chooses the sending account: an explicit account when asked for,
// otherwise the primary, otherwise the least recently used verified account.
func (s *Service) pickAccount(ctx context.Context, repID, accountID uint64) (*models.WorkEmailAccount, error) {
	query := s.db.WithContext(ctx).Where("rep_id = ? AND is_verified = ?", repID, true)
	var account models.WorkEmailAccount
	if accountID != 0 {
		if errFind := query.Where("id = ?", accountID).Take(&account).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil, ErrNoVerifiedAccount
			}
			return nil, errFind
		}
		return &account, nil
	}
	errFind := query.
		Order("is_primary DESC, last_used_at ASC NULLS FIRST, id ASC").
		Take(&account).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNoVerifiedAccount
		}
		return nil, errFind
	}
	return &account, nil
}

// transportAccount unseals the stored credential. OAuth accounts exchange the
// sealed refresh token for a fresh access token.
func (s *Service) transportAccount(ctx context.Context, account *models.WorkEmailAccount) (mailer.Account, error) {
	plain, errUnseal := s.sealer.Unseal(account.Credential)
	if errUnseal != nil {
		return mailer.Account{}, errUnseal
	}
	acct := mailer.Account{
		Host:     account.SMTPHost,
		Port:     account.SMTPPort,
		Secure:   account.SMTPSecure,
		Username: account.EmailAddress,
	}
	if account.SetupMethod == models.SetupMethodOAuth {
		grant, errGrant := s.broker.Silent(ctx, mailer.Provider(account.Provider), account.EmailAddress, string(plain))
		if errGrant != nil {
			return mailer.Account{}, fmt.Errorf("sender: oauth token refresh failed: %w", errGrant)
		}
		acct.OAuth = true
		acct.Password = grant.AccessToken
		return acct, nil
	}
	acct.Password = string(plain)
	return acct, nil
}

func (s *Service) buildLog(repID uint64, account *models.WorkEmailAccount, req Request, now time.Time) *models.EmailSendLog {
	body := req.TextBody
	if req.HTMLBody != "" {
		body = req.HTMLBody
	}
	preview := body
	if len(preview) > bodyPreviewLength {
		runes := []rune(preview)
		if len(runes) > bodyPreviewLength {
			runes = runes[:bodyPreviewLength]
		}
		preview = string(runes)
	}
	return &models.EmailSendLog{
		RepID:        repID,
		AccountID:    account.ID,
		FromEmail:    account.EmailAddress,
		ToAddresses:  mustJSONAddresses(req.To),
		CcAddresses:  mustJSONAddresses(req.Cc),
		BccAddresses: mustJSONAddresses(req.Bcc),
		Subject:      req.Subject,
		BodyPreview:  preview,
		SentAt:       now,
		CreatedAt:    now,
	}
}

// record persists the send log and bumps last_used_at. Both are best effort
// and never fail the send itself.
func (s *Service) record(ctx context.Context, entry *models.EmailSendLog, account *models.WorkEmailAccount, delivered bool, now time.Time) {
	if errCreate := s.db.WithContext(ctx).Create(entry).Error; errCreate != nil {
		log.WithError(errCreate).WithField("rep_id", entry.RepID).Warn("failed to record email send log")
	}
	if !delivered {
		return
	}
	if errTouch := s.db.WithContext(ctx).Model(&models.WorkEmailAccount{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{"last_used_at": now, "updated_at": now}).Error; errTouch != nil {
		log.WithError(errTouch).WithField("account_id", account.ID).Warn("failed to update account last used time")
	}
}

func mustJSONAddresses(addrs []string) datatypes.JSON {
	if addrs == nil {
		addrs = []string{}
	}
	raw, errMarshal := json.Marshal(addrs)
	if errMarshal != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}
