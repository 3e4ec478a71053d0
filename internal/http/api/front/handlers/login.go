package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/repspheres/repcore/internal/config"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/security"
	"gorm.io/gorm"
)

// LoginHandler manages rep login.
type LoginHandler struct {
	db     *gorm.DB         // Database handle for rep records.
	jwtCfg config.JWTConfig // Token signing configuration.
}

// NewLoginHandler constructs a login handler.
func NewLoginHandler(db *gorm.DB, jwtCfg config.JWTConfig) *LoginHandler {
	return &LoginHandler{db: db, jwtCfg: jwtCfg}
}

// repLoginRequest captures rep credentials.
type repLoginRequest struct {
	Email    string `json:"email"`    // Login email.
	Password string `json:"password"` // Password.
	Code     string `json:"code"`     // TOTP code when MFA is enrolled.
}

// findRep loads and verifies the rep behind a credential pair.
func (h *LoginHandler) findRep(c *gin.Context, email, password string) (*models.Rep, bool) {
	var rep models.Rep
	if errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).Take(&rep).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return nil, false
	}
	if rep.Disabled || !rep.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "account disabled"})
		return nil, false
	}
	if !security.CheckPassword(rep.Password, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return nil, false
	}
	return &rep, true
}

// Login checks rep credentials and issues a token, or asks for a TOTP code
// when MFA is enrolled.
func (h *LoginHandler) Login(c *gin.Context) {
	var body repLoginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	rep, ok := h.findRep(c, email, body.Password)
	if !ok {
		return
	}
	if rep.TOTPSecret != "" {
		c.JSON(http.StatusOK, gin.H{"totp_required": true})
		return
	}
	h.issueToken(c, rep)
}

// LoginTOTP checks credentials plus a TOTP code and issues a token.
func (h *LoginHandler) LoginTOTP(c *gin.Context) {
	var body repLoginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	code := strings.TrimSpace(body.Code)
	if email == "" || body.Password == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email, password, and code are required"})
		return
	}

	rep, ok := h.findRep(c, email, body.Password)
	if !ok {
		return
	}
	if rep.TOTPSecret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp not enrolled"})
		return
	}
	if !totp.Validate(code, rep.TOTPSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}
	h.issueToken(c, rep)
}

func (h *LoginHandler) issueToken(c *gin.Context, rep *models.Rep) {
	token, errIssue := security.IssueRepToken(h.jwtCfg.Secret, rep.ID, rep.Email, h.jwtCfg.Expiry)
	if errIssue != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":  token,
		"rep_id": rep.ID,
		"email":  rep.Email,
	})
}
