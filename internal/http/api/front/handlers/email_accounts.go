package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/repspheres/repcore/internal/mailer"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/onboarding"
)

// EmailAccountHandler manages a rep's connected sending mailboxes.
type EmailAccountHandler struct {
	selector *onboarding.Selector // Connection flow driver.
	accounts *onboarding.Accounts // Account management operations.
}

// NewEmailAccountHandler constructs an email account handler.
func NewEmailAccountHandler(selector *onboarding.Selector, accounts *onboarding.Accounts) *EmailAccountHandler {
	return &EmailAccountHandler{selector: selector, accounts: accounts}
}

// onboardRequest starts the connection flow for an address.
type onboardRequest struct {
	Email        string `json:"email"`         // Address to connect.
	DisplayName  string `json:"display_name"`  // From header display name.
	RefreshToken string `json:"refresh_token"` // Prior OAuth grant, if the client holds one.
}

// Onboard attempts silent OAuth for the address and falls back to the guided
// SMTP setup guide when no grant is available.
func (h *EmailAccountHandler) Onboard(c *gin.Context) {
	repID := currentRepID(c)
	if repID == 0 {
		return
	}
	var body onboardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	result, errBegin := h.selector.Begin(c.Request.Context(), repID, body.Email, body.DisplayName, body.RefreshToken)
	if errBegin != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBegin.Error()})
		return
	}

	out := gin.H{"session": result.Session}
	if result.Account != nil {
		out["account"] = formatAccount(result.Account)
	}
	if result.Guide != nil {
		out["guide"] = result.Guide
	}
	c.JSON(http.StatusOK, out)
}

// Instructions returns the provider-specific SMTP setup guide for an address.
func (h *EmailAccountHandler) Instructions(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if !mailer.ValidAddress(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}
	c.JSON(http.StatusOK, mailer.GuideFor(email))
}

// CompleteSMTP tests guided SMTP credentials and persists the account when
// the connection test passes.
func (h *EmailAccountHandler) CompleteSMTP(c *gin.Context) {
	repID := currentRepID(c)
	if repID == 0 {
		return
	}
	var params onboarding.SMTPParams
	if errBind := c.ShouldBindJSON(&params); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	session := guidedSession()
	account, errComplete := h.selector.CompleteSMTP(c.Request.Context(), repID, session, params)
	if errComplete != nil {
		if errors.Is(errComplete, onboarding.ErrConnectionTestFailed) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   errComplete.Error(),
				"session": session,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errComplete.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"account": formatAccount(account),
	})
}

// fallbackRequest names the step the rep abandoned the flow from.
type fallbackRequest struct {
	From string `json:"from"` // Step the client was on; defaults to not_started.
}

// Fallback records that the rep gave up on automated setup from any step of
// the flow short of a verified account.
func (h *EmailAccountHandler) Fallback(c *gin.Context) {
	repID := currentRepID(c)
	if repID == 0 {
		return
	}
	var body fallbackRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	from := onboarding.StateNotStarted
	if s := strings.TrimSpace(body.From); s != "" {
		from = onboarding.State(s)
	}
	session, ok := sessionAt(from)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown state"})
		return
	}
	if errFallback := h.selector.ManualFallback(session); errFallback != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errFallback.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// List returns the rep's connected accounts, primary first.
func (h *EmailAccountHandler) List(c *gin.Context) {
	repID := currentRepID(c)
	if repID == 0 {
		return
	}
	rows, errList := h.accounts.List(c.Request.Context(), repID)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list accounts failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatAccount(&row))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

// SetPrimary moves the default sending identity to another account.
func (h *EmailAccountHandler) SetPrimary(c *gin.Context) {
	repID := currentRepID(c)
	if repID == 0 {
		return
	}
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}
	if errSet := h.accounts.SetPrimary(c.Request.Context(), repID, accountID); errSet != nil {
		if errors.Is(errSet, onboarding.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errSet.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// rotatePasswordRequest carries a replacement SMTP password.
type rotatePasswordRequest struct {
	Password string `json:"password"` // New SMTP password or app password.
}

// RotatePassword replaces stored SMTP credentials after a fresh connection test.
func (h *EmailAccountHandler) RotatePassword(c *gin.Context) {
	repID := currentRepID(c)
	if repID == 0 {
		return
	}
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}
	var body rotatePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	if errRotate := h.accounts.RotatePassword(c.Request.Context(), repID, accountID, body.Password); errRotate != nil {
		switch {
		case errors.Is(errRotate, onboarding.ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errRotate, onboarding.ErrConnectionTestFailed):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": errRotate.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": errRotate.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete disconnects an account, promoting a replacement primary when needed.
func (h *EmailAccountHandler) Delete(c *gin.Context) {
	repID := currentRepID(c)
	if repID == 0 {
		return
	}
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}
	if errDelete := h.accounts.Delete(c.Request.Context(), repID, accountID); errDelete != nil {
		if errors.Is(errDelete, onboarding.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// flowOrder is the silent-then-guided walk through the connection steps.
var flowOrder = []onboarding.State{
	onboarding.StateNotStarted,
	onboarding.StateTryingSilentOAuth,
	onboarding.StateSilentOAuthFailed,
	onboarding.StateGuidedSMTPPending,
	onboarding.StateCredentialsTested,
}

// sessionAt rebuilds a session positioned at the named step. The flow is
// stateless over HTTP, so the server reconstructs the walk the client took.
func sessionAt(at onboarding.State) (*onboarding.Session, bool) {
	session := onboarding.NewSession()
	if at == onboarding.StateNotStarted {
		return session, true
	}
	for _, state := range flowOrder[1:] {
		if errAdvance := session.Advance(state); errAdvance != nil {
			return nil, false
		}
		if state == at {
			return session, true
		}
	}
	return nil, false
}

// guidedSession builds a session already positioned at the guided SMTP step.
func guidedSession() *onboarding.Session {
	session, _ := sessionAt(onboarding.StateGuidedSMTPPending)
	return session
}

// parseAccountID reads the :id path parameter.
func parseAccountID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// formatAccount converts an account model into a response payload. Sealed
// credentials never leave the server.
func formatAccount(a *models.WorkEmailAccount) gin.H {
	return gin.H{
		"id":            a.ID,
		"email_address": a.EmailAddress,
		"display_name":  a.DisplayName,
		"provider":      a.Provider,
		"smtp_host":     a.SMTPHost,
		"smtp_port":     a.SMTPPort,
		"smtp_secure":   a.SMTPSecure,
		"setup_method":  a.SetupMethod,
		"is_primary":    a.IsPrimary,
		"is_verified":   a.IsVerified,
		"last_used_at":  a.LastUsedAt,
		"created_at":    a.CreatedAt,
	}
}
