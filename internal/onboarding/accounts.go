package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/repspheres/repcore/internal/db"
	"github.com/repspheres/repcore/internal/mailer"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/security"

	"gorm.io/gorm"
)

// ErrAccountNotFound indicates the account does not exist or belongs to
// another rep.
var ErrAccountNotFound = errors.New("onboarding: account not found")

// Accounts manages a rep's connected work email accounts.
type Accounts struct {
	db        *gorm.DB
	sealer    *security.Sealer
	transport mailer.Transport
}

// NewAccounts constructs an Accounts service.
func NewAccounts(db *gorm.DB, sealer *security.Sealer, transport mailer.Transport) *Accounts {
	return &Accounts{db: db, sealer: sealer, transport: transport}
}

// List returns the rep's accounts, primary first.
func (a *Accounts) List(ctx context.Context, repID uint64) ([]models.WorkEmailAccount, error) {
	var accounts []models.WorkEmailAccount
	errFind := a.db.WithContext(ctx).
		Where("rep_id = ?", repID).
		Order("is_primary DESC, created_at ASC, id ASC").
		Find(&accounts).Error
	if errFind != nil {
		return nil, errFind
	}
	return accounts, nil
}

// SetPrimary moves the primary flag to the given account. The old and new
// primary change within one transaction so no moment has zero or two
// primaries.
func (a *Accounts) SetPrimary(ctx context.Context, repID, accountID uint64) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rep models.Rep
		if errFind := db.LockForUpdate(tx).
			Take(&rep, repID).Error; errFind != nil {
			return errFind
		}
		var account models.WorkEmailAccount
		if errFind := tx.Where("id = ? AND rep_id = ?", accountID, repID).
			Take(&account).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return errFind
		}
		if !account.IsVerified {
			return errors.New("onboarding: cannot make an unverified account primary")
		}
		now := time.Now().UTC()
		if errClear := tx.Model(&models.WorkEmailAccount{}).
			Where("rep_id = ? AND is_primary = ?", repID, true).
			Updates(map[string]any{"is_primary": false, "updated_at": now}).Error; errClear != nil {
			return errClear
		}
		return tx.Model(&models.WorkEmailAccount{}).
			Where("id = ?", accountID).
			Updates(map[string]any{"is_primary": true, "updated_at": now}).Error
	})
}

// RotatePassword replaces the account's sealed credential after testing the
// new password against the stored SMTP settings. A failed test leaves the old
// credential in place.
func (a *Accounts) RotatePassword(ctx context.Context, repID, accountID uint64, password string) error {
	if password == "" {
		return errors.New("password is required")
	}
	var account models.WorkEmailAccount
	if errFind := a.db.WithContext(ctx).
		Where("id = ? AND rep_id = ?", accountID, repID).
		Take(&account).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return errFind
	}
	if account.SetupMethod != models.SetupMethodSMTP {
		return errors.New("onboarding: only smtp accounts carry a password")
	}

	acct := mailer.Account{
		Host:     account.SMTPHost,
		Port:     account.SMTPPort,
		Secure:   account.SMTPSecure,
		Username: account.EmailAddress,
		Password: password,
	}
	if errTest := a.transport.Test(ctx, acct); errTest != nil {
		return fmt.Errorf("%w: %v", ErrConnectionTestFailed, errTest)
	}

	sealed, errSeal := a.sealer.Seal([]byte(password))
	if errSeal != nil {
		return errSeal
	}
	return a.db.WithContext(ctx).Model(&models.WorkEmailAccount{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{
			"credential":  sealed,
			"is_verified": true,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// Delete removes the account. When the primary is deleted another verified
// account is promoted in the same transaction.
func (a *Accounts) Delete(ctx context.Context, repID, accountID uint64) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rep models.Rep
		if errFind := db.LockForUpdate(tx).
			Take(&rep, repID).Error; errFind != nil {
			return errFind
		}
		var account models.WorkEmailAccount
		if errFind := tx.Where("id = ? AND rep_id = ?", accountID, repID).
			Take(&account).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return errFind
		}
		if errDelete := tx.Delete(&account).Error; errDelete != nil {
			return errDelete
		}
		if !account.IsPrimary {
			return nil
		}
		var next models.WorkEmailAccount
		errNext := tx.Where("rep_id = ? AND is_verified = ?", repID, true).
			Order("last_used_at DESC NULLS LAST, created_at ASC, id ASC").
			Take(&next).Error
		if errNext != nil {
			if errors.Is(errNext, gorm.ErrRecordNotFound) {
				return nil
			}
			return errNext
		}
		return tx.Model(&models.WorkEmailAccount{}).
			Where("id = ?", next.ID).
			Updates(map[string]any{"is_primary": true, "updated_at": time.Now().UTC()}).Error
	})
}
