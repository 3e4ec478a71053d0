// Package admin wires the admin management API onto a gin engine.
package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/repspheres/repcore/internal/config"
	"github.com/repspheres/repcore/internal/http/api/admin/handlers"
	"github.com/repspheres/repcore/internal/models"
	"github.com/repspheres/repcore/internal/security"
	"gorm.io/gorm"
)

// RegisterRoutes mounts health, login, and authenticated admin endpoints.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig) {
	health := handlers.NewHealthHandler(db)
	r.GET("/healthz", health.Healthz)

	auth := handlers.NewAuthHandler(db, jwtCfg)
	r.POST("/v0/admin/login", auth.Login)
	r.POST("/v0/admin/login/totp", auth.LoginTOTP)

	authed := r.Group("/v0/admin")
	authed.Use(authMiddleware(db, jwtCfg))

	mfa := handlers.NewMFAHandler(db)
	authed.GET("/mfa", mfa.Status)
	authed.POST("/mfa/totp/prepare", mfa.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfa.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfa.DisableTOTP)

	tiers := handlers.NewTierHandler(db)
	authed.POST("/tiers", tiers.Create)
	authed.GET("/tiers", tiers.List)
	authed.GET("/tiers/:id", tiers.Get)
	authed.PUT("/tiers/:id", tiers.Update)
	authed.DELETE("/tiers/:id", tiers.Delete)
	authed.POST("/tiers/:id/enable", tiers.Enable)
	authed.POST("/tiers/:id/disable", tiers.Disable)

	reps := handlers.NewRepHandler(db)
	authed.POST("/reps", reps.Create)
	authed.GET("/reps", reps.List)
	authed.GET("/reps/:id", reps.Get)
	authed.PUT("/reps/:id", reps.Update)
	authed.DELETE("/reps/:id", reps.Delete)
	authed.POST("/reps/:id/enable", reps.Enable)
	authed.POST("/reps/:id/disable", reps.Disable)
	authed.PUT("/reps/:id/password", reps.ChangePassword)

	settings := handlers.NewSettingHandler(db)
	authed.GET("/settings", settings.List)
	authed.GET("/settings/:key", settings.Get)
	authed.PUT("/settings/:key", settings.Upsert)
	authed.DELETE("/settings/:key", settings.Delete)

	sendLogs := handlers.NewSendLogHandler(db)
	authed.GET("/send-logs", sendLogs.List)
	authed.GET("/send-logs/stats", sendLogs.Stats)
}

// authMiddleware validates the bearer token and loads the matching admin.
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

		claims, errParse := security.ParseAdminToken(jwtCfg.Secret, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).Take(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Set("adminUsername", admin.Username)
		c.Next()
	}
}
