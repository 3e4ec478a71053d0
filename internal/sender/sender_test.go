package sender

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/repspheres/repcore/internal/access"
	"github.com/repspheres/repcore/internal/db"
	"github.com/repspheres/repcore/internal/mailer"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/onboarding"
	"github.com/repspheres/repcore/internal/security"
	"github.com/repspheres/repcore/internal/usage"

	"gorm.io/gorm"
)

type fakeTransport struct {
	sendErr   error
	sendCalls int
	lastAcct  mailer.Account
	lastMsg   mailer.Message
}

func (f *fakeTransport) Test(_ context.Context, _ mailer.Account) error { return nil }

func (f *fakeTransport) Send(_ context.Context, acct mailer.Account, msg mailer.Message) (string, error) {
	f.sendCalls++
	f.lastAcct = acct
	f.lastMsg = msg
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "<msg-1@test>", nil
}

type fakeBroker struct {
	grant *onboarding.Grant
	err   error
}

func (f *fakeBroker) Silent(_ context.Context, _ mailer.Provider, _, _ string) (*onboarding.Grant, error) {
	return f.grant, f.err
}

type fixture struct {
	conn      *gorm.DB
	sealer    *security.Sealer
	transport *fakeTransport
	broker    *fakeBroker
	service   *Service
	recorder  *usage.GormRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "sender.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	sealer, errSealer := security.NewSealer("test-credential-key")
	if errSealer != nil {
		t.Fatalf("sealer: %v", errSealer)
	}
	transport := &fakeTransport{}
	broker := &fakeBroker{}
	recorder := usage.NewGormRecorder(conn)
	return &fixture{
		conn:      conn,
		sealer:    sealer,
		transport: transport,
		broker:    broker,
		service:   NewService(conn, sealer, transport, broker, recorder, nil),
		recorder:  recorder,
	}
}

func (f *fixture) tier(t *testing.T, slug string) *models.Tier {
	t.Helper()
	var tier models.Tier
	if errFind := f.conn.Where("slug = ?", slug).Take(&tier).Error; errFind != nil {
		t.Fatalf("find tier %s: %v", slug, errFind)
	}
	return &tier
}

func (f *fixture) createRep(t *testing.T, tierSlug string) *models.Rep {
	t.Helper()
	tier := f.tier(t, tierSlug)
	rep := &models.Rep{Email: "sarah@chendental.com", DisplayName: "Sarah Chen", Password: "x", TierID: &tier.ID, Active: true}
	if errCreate := f.conn.Create(rep).Error; errCreate != nil {
		t.Fatalf("create rep: %v", errCreate)
	}
	return rep
}

func (f *fixture) seedAccount(t *testing.T, repID uint64, email, password string, primary bool) *models.WorkEmailAccount {
	t.Helper()
	sealed, errSeal := f.sealer.Seal([]byte(password))
	if errSeal != nil {
		t.Fatalf("seal: %v", errSeal)
	}
	account := &models.WorkEmailAccount{
		RepID:        repID,
		EmailAddress: email,
		Provider:     string(mailer.DetectProvider(email)),
		SMTPHost:     "smtp.gmail.com",
		SMTPPort:     587,
		Credential:   sealed,
		SetupMethod:  models.SetupMethodSMTP,
		IsPrimary:    primary,
		IsVerified:   true,
	}
	if errCreate := f.conn.Create(account).Error; errCreate != nil {
		t.Fatalf("seed account: %v", errCreate)
	}
	return account
}

func TestSendRejectsInvalidRecipientBeforeTransport(t *testing.T) {
	f := newFixture(t)
	rep := f.createRep(t, "repx2")
	f.seedAccount(t, rep.ID, "sarah.chen@gmail.com", "app-password", true)

	_, errSend := f.service.Send(context.Background(), rep.ID, Request{
		To:       []string{"a@b.com", "bad-address"},
		Subject:  "Hi",
		TextBody: "hello",
	})
	if errSend == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(errSend.Error(), "bad-address") {
		t.Fatalf("error should name the invalid address: %v", errSend)
	}
	if f.transport.sendCalls != 0 {
		t.Fatal("transport must not be touched for invalid recipients")
	}
	var logCount int64
	if errCount := f.conn.Model(&models.EmailSendLog{}).Count(&logCount).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if logCount != 0 {
		t.Fatal("nothing should be logged for rejected input")
	}
}

func TestSendSuccessLogsAndCounts(t *testing.T) {
	f := newFixture(t)
	rep := f.createRep(t, "repx2")
	account := f.seedAccount(t, rep.ID, "sarah.chen@gmail.com", "app-password", true)

	entry, errSend := f.service.Send(context.Background(), rep.ID, Request{
		To:       []string{"dr.jones@clinic.com"},
		Subject:  "Follow up",
		TextBody: "Thanks for your time today.",
	})
	if errSend != nil {
		t.Fatalf("send: %v", errSend)
	}
	if entry.Status != models.SendStatusSent {
		t.Fatalf("unexpected status: %s", entry.Status)
	}
	if entry.ProviderMessageID == "" {
		t.Fatal("expected a provider message id")
	}
	if f.transport.lastAcct.Password != "app-password" {
		t.Fatal("transport should receive the unsealed password")
	}
	if f.transport.lastMsg.From != account.EmailAddress {
		t.Fatalf("unexpected from: %s", f.transport.lastMsg.From)
	}

	used, errUsed := f.recorder.CurrentCount(context.Background(), rep.ID, access.FeatureEmails, time.Now())
	if errUsed != nil {
		t.Fatalf("current count: %v", errUsed)
	}
	if used != 1 {
		t.Fatalf("expected usage 1, got %d", used)
	}

	var refreshed models.WorkEmailAccount
	if errFind := f.conn.Take(&refreshed, account.ID).Error; errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if refreshed.LastUsedAt == nil {
		t.Fatal("last_used_at should be stamped after a delivery")
	}
}

func TestSendDeniedAtDailyLimit(t *testing.T) {
	f := newFixture(t)
	rep := f.createRep(t, "repx2")
	f.seedAccount(t, rep.ID, "sarah.chen@gmail.com", "app-password", true)
	if errInc := f.recorder.Increment(context.Background(), rep.ID, access.FeatureEmails, 50, time.Now()); errInc != nil {
		t.Fatalf("increment: %v", errInc)
	}

	_, errSend := f.service.Send(context.Background(), rep.ID, Request{
		To: []string{"dr.jones@clinic.com"}, Subject: "Hi", TextBody: "x",
	})
	var accessErr *AccessError
	if !errors.As(errSend, &accessErr) {
		t.Fatalf("expected AccessError, got %v", errSend)
	}
	if accessErr.Reason != "Daily email limit of 50 reached" {
		t.Fatalf("unexpected reason: %q", accessErr.Reason)
	}
	if f.transport.sendCalls != 0 {
		t.Fatal("denied sends must not reach the transport")
	}
}

func TestSendDeniedWithoutEmailAccess(t *testing.T) {
	f := newFixture(t)
	rep := f.createRep(t, "repx1")
	f.seedAccount(t, rep.ID, "sarah.chen@gmail.com", "app-password", true)

	_, errSend := f.service.Send(context.Background(), rep.ID, Request{
		To: []string{"dr.jones@clinic.com"}, Subject: "Hi", TextBody: "x",
	})
	var accessErr *AccessError
	if !errors.As(errSend, &accessErr) {
		t.Fatalf("expected AccessError, got %v", errSend)
	}
	if !strings.Contains(accessErr.Reason, "not available in this tier") {
		t.Fatalf("unexpected reason: %q", accessErr.Reason)
	}
}

func TestSendTransportFailureLoggedWithoutRetry(t *testing.T) {
	f := newFixture(t)
	rep := f.createRep(t, "repx2")
	f.seedAccount(t, rep.ID, "sarah.chen@gmail.com", "app-password", true)
	f.transport.sendErr = errors.New("451 temporary failure")

	entry, errSend := f.service.Send(context.Background(), rep.ID, Request{
		To: []string{"dr.jones@clinic.com"}, Subject: "Hi", TextBody: "x",
	})
	if errSend == nil {
		t.Fatal("expected transport error")
	}
	if f.transport.sendCalls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", f.transport.sendCalls)
	}
	if entry == nil || entry.Status != models.SendStatusFailed {
		t.Fatalf("expected a failed log entry, got %+v", entry)
	}
	if !strings.Contains(entry.ErrorText, "451") {
		t.Fatalf("log should carry the transport error: %q", entry.ErrorText)
	}

	used, errUsed := f.recorder.CurrentCount(context.Background(), rep.ID, access.FeatureEmails, time.Now())
	if errUsed != nil {
		t.Fatalf("current count: %v", errUsed)
	}
	if used != 0 {
		t.Fatalf("failed sends must not consume quota, got %d", used)
	}
}

func TestSendWithoutVerifiedAccount(t *testing.T) {
	f := newFixture(t)
	rep := f.createRep(t, "repx2")

	_, errSend := f.service.Send(context.Background(), rep.ID, Request{
		To: []string{"dr.jones@clinic.com"}, Subject: "Hi", TextBody: "x",
	})
	if !errors.Is(errSend, ErrNoVerifiedAccount) {
		t.Fatalf("expected ErrNoVerifiedAccount, got %v", errSend)
	}
}

func TestSendPrefersPrimaryAccount(t *testing.T) {
	f := newFixture(t)
	rep := f.createRep(t, "repx2")
	f.seedAccount(t, rep.ID, "backup@yahoo.com", "backup-pass", false)
	primary := f.seedAccount(t, rep.ID, "sarah.chen@gmail.com", "primary-pass", true)

	_, errSend := f.service.Send(context.Background(), rep.ID, Request{
		To: []string{"dr.jones@clinic.com"}, Subject: "Hi", TextBody: "x",
	})
	if errSend != nil {
		t.Fatalf("send: %v", errSend)
	}
	if f.transport.lastMsg.From != primary.EmailAddress {
		t.Fatalf("expected primary account, sent from %s", f.transport.lastMsg.From)
	}
}

func TestSendFromOAuthAccountUsesFreshToken(t *testing.T) {
	f := newFixture(t)
	rep := f.createRep(t, "repx2")
	sealed, errSeal := f.sealer.Seal([]byte("refresh-token"))
	if errSeal != nil {
		t.Fatalf("seal: %v", errSeal)
	}
	account := &models.WorkEmailAccount{
		RepID:        rep.ID,
		EmailAddress: "sarah.chen@gmail.com",
		Provider:     string(mailer.ProviderGmail),
		SMTPHost:     "smtp.gmail.com",
		SMTPPort:     587,
		Credential:   sealed,
		SetupMethod:  models.SetupMethodOAuth,
		IsPrimary:    true,
		IsVerified:   true,
	}
	if errCreate := f.conn.Create(account).Error; errCreate != nil {
		t.Fatalf("create account: %v", errCreate)
	}
	f.broker.grant = &onboarding.Grant{AccessToken: "fresh-access-token"}

	_, errSend := f.service.Send(context.Background(), rep.ID, Request{
		To: []string{"dr.jones@clinic.com"}, Subject: "Hi", TextBody: "x",
	})
	if errSend != nil {
		t.Fatalf("send: %v", errSend)
	}
	if !f.transport.lastAcct.OAuth {
		t.Fatal("oauth account should authenticate with XOAUTH2")
	}
	if f.transport.lastAcct.Password != "fresh-access-token" {
		t.Fatalf("expected fresh access token, got %q", f.transport.lastAcct.Password)
	}
}

func TestSendBodyPreviewKeepsRuneBoundary(t *testing.T) {
	f := newFixture(t)
	rep := f.createRep(t, "repx2")
	f.seedAccount(t, rep.ID, "sarah.chen@gmail.com", "app-password", true)

	body := strings.Repeat("a", bodyPreviewLength-1) + "é…"
	entry, errSend := f.service.Send(context.Background(), rep.ID, Request{
		To:       []string{"dr.jones@clinic.com"},
		Subject:  "Long body",
		TextBody: body,
	})
	if errSend != nil {
		t.Fatalf("send: %v", errSend)
	}
	if !utf8.ValidString(entry.BodyPreview) {
		t.Fatal("preview must stay valid UTF-8")
	}
	if got := len([]rune(entry.BodyPreview)); got != bodyPreviewLength {
		t.Fatalf("expected %d characters, got %d", bodyPreviewLength, got)
	}
	if !strings.HasSuffix(entry.BodyPreview, "é") {
		t.Fatalf("preview should end with the whole rune at the cut: %q", entry.BodyPreview[len(entry.BodyPreview)-4:])
	}

	var stored models.EmailSendLog
	if errFind := f.conn.Take(&stored, entry.ID).Error; errFind != nil {
		t.Fatalf("find log: %v", errFind)
	}
	if stored.BodyPreview != entry.BodyPreview {
		t.Fatal("stored preview should match the returned entry")
	}
}
