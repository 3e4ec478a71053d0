package onboarding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/repspheres/repcore/internal/models"

	"gorm.io/gorm"
)

func seedAccount(t *testing.T, conn *gorm.DB, repID uint64, email string, primary bool) *models.WorkEmailAccount {
	t.Helper()
	account := &models.WorkEmailAccount{
		RepID:        repID,
		EmailAddress: email,
		Provider:     "gmail",
		SMTPHost:     "smtp.gmail.com",
		SMTPPort:     587,
		Credential:   []byte("sealed"),
		SetupMethod:  models.SetupMethodSMTP,
		IsPrimary:    primary,
		IsVerified:   true,
	}
	if errCreate := conn.Create(account).Error; errCreate != nil {
		t.Fatalf("seed account: %v", errCreate)
	}
	return account
}

func TestSetPrimaryTransfersFlag(t *testing.T) {
	conn := openTestDB(t)
	rep := createRep(t, conn, "sarah@chendental.com")
	first := seedAccount(t, conn, rep.ID, "sarah.chen@gmail.com", true)
	second := seedAccount(t, conn, rep.ID, "s.chen@yahoo.com", false)
	accounts := NewAccounts(conn, newTestSealer(t), &fakeTransport{})

	if errSet := accounts.SetPrimary(context.Background(), rep.ID, second.ID); errSet != nil {
		t.Fatalf("set primary: %v", errSet)
	}

	var primaries []models.WorkEmailAccount
	if errFind := conn.Where("rep_id = ? AND is_primary = ?", rep.ID, true).Find(&primaries).Error; errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if len(primaries) != 1 {
		t.Fatalf("expected exactly one primary, got %d", len(primaries))
	}
	if primaries[0].ID != second.ID {
		t.Fatalf("primary should be account %d, got %d", second.ID, primaries[0].ID)
	}
	_ = first
}

func TestSetPrimaryRejectsForeignAccount(t *testing.T) {
	conn := openTestDB(t)
	rep := createRep(t, conn, "sarah@chendental.com")
	other := createRep(t, conn, "mike@weststreet.com")
	account := seedAccount(t, conn, other.ID, "mike@gmail.com", true)
	accounts := NewAccounts(conn, newTestSealer(t), &fakeTransport{})

	if errSet := accounts.SetPrimary(context.Background(), rep.ID, account.ID); !errors.Is(errSet, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", errSet)
	}
}

func TestRotatePasswordTestsBeforeStoring(t *testing.T) {
	conn := openTestDB(t)
	rep := createRep(t, conn, "sarah@chendental.com")
	account := seedAccount(t, conn, rep.ID, "sarah.chen@gmail.com", true)
	sealer := newTestSealer(t)

	failing := NewAccounts(conn, sealer, &fakeTransport{testErr: errors.New("535 bad credentials")})
	if errRotate := failing.RotatePassword(context.Background(), rep.ID, account.ID, "bad-pass"); !errors.Is(errRotate, ErrConnectionTestFailed) {
		t.Fatalf("expected ErrConnectionTestFailed, got %v", errRotate)
	}
	var unchanged models.WorkEmailAccount
	if errFind := conn.Take(&unchanged, account.ID).Error; errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if string(unchanged.Credential) != "sealed" {
		t.Fatal("failed rotation must keep the old credential")
	}

	passing := NewAccounts(conn, sealer, &fakeTransport{})
	if errRotate := passing.RotatePassword(context.Background(), rep.ID, account.ID, "new-app-password"); errRotate != nil {
		t.Fatalf("rotate: %v", errRotate)
	}
	var rotated models.WorkEmailAccount
	if errFind := conn.Take(&rotated, account.ID).Error; errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	plain, errUnseal := sealer.Unseal(rotated.Credential)
	if errUnseal != nil {
		t.Fatalf("unseal: %v", errUnseal)
	}
	if string(plain) != "new-app-password" {
		t.Fatalf("unexpected rotated credential: %q", plain)
	}
}

func TestDeletePrimaryPromotesAnother(t *testing.T) {
	conn := openTestDB(t)
	rep := createRep(t, conn, "sarah@chendental.com")
	primary := seedAccount(t, conn, rep.ID, "sarah.chen@gmail.com", true)
	backup := seedAccount(t, conn, rep.ID, "s.chen@yahoo.com", false)
	used := time.Now().UTC().Add(-time.Hour)
	if errUpdate := conn.Model(&models.WorkEmailAccount{}).Where("id = ?", backup.ID).Update("last_used_at", used).Error; errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	accounts := NewAccounts(conn, newTestSealer(t), &fakeTransport{})

	if errDelete := accounts.Delete(context.Background(), rep.ID, primary.ID); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}

	var promoted models.WorkEmailAccount
	if errFind := conn.Take(&promoted, backup.ID).Error; errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if !promoted.IsPrimary {
		t.Fatal("remaining verified account should be promoted to primary")
	}
}

func TestDeleteLastAccountLeavesNoPrimary(t *testing.T) {
	conn := openTestDB(t)
	rep := createRep(t, conn, "sarah@chendental.com")
	only := seedAccount(t, conn, rep.ID, "sarah.chen@gmail.com", true)
	accounts := NewAccounts(conn, newTestSealer(t), &fakeTransport{})

	if errDelete := accounts.Delete(context.Background(), rep.ID, only.ID); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}
	var count int64
	if errCount := conn.Model(&models.WorkEmailAccount{}).Where("rep_id = ?", rep.ID).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected no accounts left, got %d", count)
	}
}

func TestListOrdersPrimaryFirst(t *testing.T) {
	conn := openTestDB(t)
	rep := createRep(t, conn, "sarah@chendental.com")
	seedAccount(t, conn, rep.ID, "secondary@gmail.com", false)
	primary := seedAccount(t, conn, rep.ID, "primary@gmail.com", true)
	accounts := NewAccounts(conn, newTestSealer(t), &fakeTransport{})

	list, errList := accounts.List(context.Background(), rep.ID)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(list))
	}
	if list[0].ID != primary.ID {
		t.Fatal("primary account should sort first")
	}
}
