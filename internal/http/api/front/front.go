// Package front wires the rep-facing API onto a gin engine.
package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/repspheres/repcore/internal/billing"
	"github.com/repspheres/repcore/internal/config"
	"github.com/repspheres/repcore/internal/http/api/front/handlers"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/onboarding"
	"github.com/repspheres/repcore/internal/security"
	"github.com/repspheres/repcore/internal/sender"
	"github.com/repspheres/repcore/internal/usage"
	"gorm.io/gorm"
)

// Deps bundles the services the rep-facing API needs.
type Deps struct {
	DB       *gorm.DB             // Database handle.
	JWT      config.JWTConfig     // Token signing configuration.
	Selector *onboarding.Selector // Email connection flow driver.
	Accounts *onboarding.Accounts // Account management operations.
	Sender   *sender.Service      // Delivery pipeline.
	Recorder *usage.GormRecorder  // Usage counter reader.
	Checkout *billing.Checkout    // Stripe integration.
}

// RegisterRoutes mounts public, webhook, and authenticated rep endpoints.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	login := handlers.NewLoginHandler(deps.DB, deps.JWT)
	r.POST("/v0/login", login.Login)
	r.POST("/v0/login/totp", login.LoginTOTP)

	tiers := handlers.NewPublicTierHandler(deps.DB)
	r.GET("/v0/tiers", tiers.List)
	r.GET("/v0/tiers/:slug/features", tiers.Features)

	checkout := handlers.NewCheckoutHandler(deps.Checkout)
	r.POST("/v0/webhooks/stripe", checkout.Webhook)

	authed := r.Group("/v0")
	authed.Use(authMiddleware(deps.DB, deps.JWT))

	accessH := handlers.NewAccessHandler(deps.DB, deps.Recorder)
	authed.POST("/validate-access", accessH.Validate)

	accounts := handlers.NewEmailAccountHandler(deps.Selector, deps.Accounts)
	authed.POST("/email-accounts/onboard", accounts.Onboard)
	authed.GET("/email-accounts/instructions", accounts.Instructions)
	authed.POST("/email-accounts/fallback", accounts.Fallback)
	authed.POST("/email-accounts", accounts.CompleteSMTP)
	authed.GET("/email-accounts", accounts.List)
	authed.POST("/email-accounts/:id/primary", accounts.SetPrimary)
	authed.PUT("/email-accounts/:id/password", accounts.RotatePassword)
	authed.DELETE("/email-accounts/:id", accounts.Delete)

	send := handlers.NewSendHandler(deps.DB, deps.Sender)
	authed.POST("/emails/send", send.Send)
	authed.GET("/emails/logs", send.Logs)

	authed.POST("/checkout", checkout.Create)
}

// authMiddleware validates the bearer token and loads the matching rep.
func authMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errParse := security.ParseRepToken(jwtCfg.Secret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var rep models.Rep
		if errFind := db.WithContext(c.Request.Context()).Take(&rep, claims.RepID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "rep not found"})
			return
		}
		if rep.Disabled || !rep.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		c.Set("repID", rep.ID)
		c.Set("repEmail", rep.Email)
		c.Next()
	}
}
