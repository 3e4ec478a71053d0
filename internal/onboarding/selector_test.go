package onboarding

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/repspheres/repcore/internal/db"
	"github.com/repspheres/repcore/internal/mailer"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/security"

	"gorm.io/gorm"
)

type fakeBroker struct {
	grant *Grant
	err   error
}

func (f *fakeBroker) Silent(_ context.Context, _ mailer.Provider, _, _ string) (*Grant, error) {
	return f.grant, f.err
}

type fakeTransport struct {
	testErr   error
	sendErr   error
	testCalls int
	sent      []mailer.Message
}

func (f *fakeTransport) Test(_ context.Context, _ mailer.Account) error {
	f.testCalls++
	return f.testErr
}

func (f *fakeTransport) Send(_ context.Context, _ mailer.Account, msg mailer.Message) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, msg)
	return "<test-message-id>", nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "onboarding.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func createRep(t *testing.T, conn *gorm.DB, email string) *models.Rep {
	t.Helper()
	rep := &models.Rep{Email: email, DisplayName: "Test Rep", Password: "x", Active: true}
	if errCreate := conn.Create(rep).Error; errCreate != nil {
		t.Fatalf("create rep: %v", errCreate)
	}
	return rep
}

func newTestSealer(t *testing.T) *security.Sealer {
	t.Helper()
	sealer, errSealer := security.NewSealer("test-credential-key")
	if errSealer != nil {
		t.Fatalf("sealer: %v", errSealer)
	}
	return sealer
}

func TestBeginFallsBackToGuidedSMTP(t *testing.T) {
	conn := openTestDB(t)
	rep := createRep(t, conn, "sarah@chendental.com")
	selector := NewSelector(conn, newTestSealer(t), &fakeTransport{}, &fakeBroker{err: ErrNoSilentGrant})

	result, errBegin := selector.Begin(context.Background(), rep.ID, "sarah.chen@gmail.com", "Sarah Chen", "")
	if errBegin != nil {
		t.Fatalf("begin: %v", errBegin)
	}
	if result.Session.Current != StateGuidedSMTPPending {
		t.Fatalf("expected guided smtp state, got %s", result.Session.Current)
	}
	if result.Account != nil {
		t.Fatal("nothing should be persisted on a failed silent attempt")
	}
	if result.Guide == nil || result.Guide.Provider != mailer.ProviderGmail {
		t.Fatalf("expected gmail setup guide, got %+v", result.Guide)
	}
	if result.Guide.Defaults.Host != "smtp.gmail.com" {
		t.Fatalf("guide should prefill gmail defaults: %+v", result.Guide.Defaults)
	}

	var count int64
	if errCount := conn.Model(&models.WorkEmailAccount{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected no persisted accounts, got %d", count)
	}
}

func TestBeginSilentOAuthSuccess(t *testing.T) {
	conn := openTestDB(t)
	rep := createRep(t, conn, "sarah@chendental.com")
	sealer := newTestSealer(t)
	broker := &fakeBroker{grant: &Grant{AccessToken: "at", RefreshToken: "rt-123"}}
	selector := NewSelector(conn, sealer, &fakeTransport{}, broker)

	result, errBegin := selector.Begin(context.Background(), rep.ID, "sarah.chen@gmail.com", "Sarah Chen", "rt-old")
	if errBegin != nil {
		t.Fatalf("begin: %v", errBegin)
	}
	if result.Session.Current != StateVerified {
		t.Fatalf("expected verified state, got %s", result.Session.Current)
	}
	if result.Account == nil {
		t.Fatal("expected a persisted account")
	}
	if !result.Account.IsPrimary {
		t.Fatal("first account must become primary")
	}
	if !result.Account.IsVerified {
		t.Fatal("oauth account must be verified")
	}
	if result.Account.SetupMethod != models.SetupMethodOAuth {
		t.Fatalf("unexpected setup method: %s", result.Account.SetupMethod)
	}

	plain, errUnseal := sealer.Unseal(result.Account.Credential)
	if errUnseal != nil {
		t.Fatalf("unseal: %v", errUnseal)
	}
	if string(plain) != "rt-123" {
		t.Fatalf("sealed credential should hold the refresh token, got %q", plain)
	}
}

func TestBeginRejectsInvalidEmail(t *testing.T) {
	conn := openTestDB(t)
	selector := NewSelector(conn, newTestSealer(t), &fakeTransport{}, &fakeBroker{})
	if _, errBegin := selector.Begin(context.Background(), 1, "not-an-email", "", ""); errBegin == nil {
		t.Fatal("expected invalid address error")
	}
}

func TestCompleteSMTPFailedTestPersistsNothing(t *testing.T) {
	conn := openTestDB(t)
	rep := createRep(t, conn, "sarah@chendental.com")
	transport := &fakeTransport{testErr: errors.New("535 authentication failed")}
	selector := NewSelector(conn, newTestSealer(t), transport, &fakeBroker{err: ErrNoSilentGrant})

	session := NewSession()
	for _, next := range []State{StateTryingSilentOAuth, StateSilentOAuthFailed, StateGuidedSMTPPending} {
		if errAdvance := session.Advance(next); errAdvance != nil {
			t.Fatalf("advance: %v", errAdvance)
		}
	}

	_, errComplete := selector.CompleteSMTP(context.Background(), rep.ID, session, SMTPParams{
		Email: "sarah.chen@gmail.com", Host: "smtp.gmail.com", Port: 587, Password: "wrong",
	})
	if !errors.Is(errComplete, ErrConnectionTestFailed) {
		t.Fatalf("expected ErrConnectionTestFailed, got %v", errComplete)
	}
	if session.Current != StateGuidedSMTPPending {
		t.Fatalf("failed test should return to guided smtp, got %s", session.Current)
	}

	var count int64
	if errCount := conn.Model(&models.WorkEmailAccount{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("failed credentials must not be stored, got %d rows", count)
	}
}

func TestCompleteSMTPFirstAccountPrimary(t *testing.T) {
	conn := openTestDB(t)
	rep := createRep(t, conn, "sarah@chendental.com")
	sealer := newTestSealer(t)
	selector := NewSelector(conn, sealer, &fakeTransport{}, &fakeBroker{err: ErrNoSilentGrant})

	addAccount := func(email string) *models.WorkEmailAccount {
		session := NewSession()
		for _, next := range []State{StateTryingSilentOAuth, StateSilentOAuthFailed, StateGuidedSMTPPending} {
			if errAdvance := session.Advance(next); errAdvance != nil {
				t.Fatalf("advance: %v", errAdvance)
			}
		}
		account, errComplete := selector.CompleteSMTP(context.Background(), rep.ID, session, SMTPParams{
			Email: email, Host: "smtp.gmail.com", Port: 587, Password: "app-password",
		})
		if errComplete != nil {
			t.Fatalf("complete smtp: %v", errComplete)
		}
		if session.Current != StateVerified {
			t.Fatalf("expected verified, got %s", session.Current)
		}
		return account
	}

	first := addAccount("sarah.chen@gmail.com")
	second := addAccount("s.chen@yahoo.com")
	if !first.IsPrimary {
		t.Fatal("first account must be primary")
	}
	if second.IsPrimary {
		t.Fatal("second account must not steal the primary flag")
	}

	plain, errUnseal := sealer.Unseal(first.Credential)
	if errUnseal != nil {
		t.Fatalf("unseal: %v", errUnseal)
	}
	if string(plain) != "app-password" {
		t.Fatalf("sealed credential mismatch: %q", plain)
	}
}

func TestManualFallback(t *testing.T) {
	selector := NewSelector(nil, nil, nil, nil)
	session := NewSession()
	if errFallback := selector.ManualFallback(session); errFallback != nil {
		t.Fatalf("manual fallback: %v", errFallback)
	}
	if session.Current != StateManualFallback {
		t.Fatalf("unexpected state: %s", session.Current)
	}
}

func TestManualFallbackMidFlow(t *testing.T) {
	selector := NewSelector(nil, nil, nil, nil)
	for _, walk := range [][]State{
		{StateTryingSilentOAuth},
		{StateTryingSilentOAuth, StateSilentOAuthFailed, StateGuidedSMTPPending, StateCredentialsTested},
	} {
		session := NewSession()
		for _, state := range walk {
			if errAdvance := session.Advance(state); errAdvance != nil {
				t.Fatalf("advance %s: %v", state, errAdvance)
			}
		}
		if errFallback := selector.ManualFallback(session); errFallback != nil {
			t.Fatalf("manual fallback from %s: %v", walk[len(walk)-1], errFallback)
		}
		if session.Current != StateManualFallback {
			t.Fatalf("unexpected state: %s", session.Current)
		}
	}
}

func TestStateTransitions(t *testing.T) {
	if CanTransition(StateNotStarted, StateVerified) {
		t.Fatal("must not jump straight to verified")
	}
	if CanTransition(StateVerified, StateGuidedSMTPPending) {
		t.Fatal("verified is terminal")
	}
	if !CanTransition(StateCredentialsTested, StateGuidedSMTPPending) {
		t.Fatal("failed test must loop back to guided smtp")
	}
	for _, from := range []State{
		StateNotStarted,
		StateTryingSilentOAuth,
		StateSilentOAuthFailed,
		StateGuidedSMTPPending,
		StateCredentialsTested,
	} {
		if !CanTransition(from, StateManualFallback) {
			t.Fatalf("%s must allow giving up", from)
		}
	}
	if CanTransition(StateVerified, StateManualFallback) {
		t.Fatal("verified is terminal")
	}

	session := NewSession()
	if errAdvance := session.Advance(StateGuidedSMTPPending); errAdvance == nil {
		t.Fatal("expected illegal transition error")
	}
	if session.Current != StateNotStarted {
		t.Fatalf("rejected transition must not move the session: %s", session.Current)
	}
}
