package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/repspheres/repcore/internal/billing"
	"github.com/repspheres/repcore/internal/config"
	"github.com/repspheres/repcore/internal/db"
	adminapi "github.com/repspheres/repcore/internal/http/api/admin"
	"github.com/repspheres/repcore/internal/http/api/front"
	"github.com/repspheres/repcore/internal/mailer"
	"github.com/repspheres/repcore/internal/onboarding"
	"github.com/repspheres/repcore/internal/ratelimit"
	"github.com/repspheres/repcore/internal/security"
	"github.com/repspheres/repcore/internal/sender"
	internalsettings "github.com/repspheres/repcore/internal/settings"
	internalusage "github.com/repspheres/repcore/internal/usage"
	log "github.com/sirupsen/logrus"
)

// smtpDialTimeout bounds SMTP connection tests and sends.
const smtpDialTimeout = 15 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the API server with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	internalsettings.Bind(conn)

	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return errInit
	}
	var initState atomic.Bool
	initState.Store(initialized)

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	if strings.TrimSpace(jwtConfig.Secret) == "" {
		return fmt.Errorf("missing jwt secret (set `jwt.secret` in config file or %s)", config.EnvJWTSecret)
	}

	credentialKey, errKey := config.LoadCredentialKey(configPath)
	if errKey != nil {
		return errKey
	}
	sealer, errSealer := security.NewSealer(credentialKey)
	if errSealer != nil {
		return errSealer
	}

	oauthCfg, _ := config.LoadOAuthConfig(configPath)
	broker := onboarding.NewOAuth2Broker(oauthCfg)
	transport := mailer.NewSMTPTransport(smtpDialTimeout)
	recorder := internalusage.NewGormRecorder(conn)
	limiter := ratelimit.NewManager(nil, nil, nil)

	selector := onboarding.NewSelector(conn, sealer, transport, broker)
	accounts := onboarding.NewAccounts(conn, sealer, transport)
	sendService := sender.NewService(conn, sealer, transport, broker, recorder, limiter)

	stripeCfg := config.LoadStripeConfig(configPath)
	checkout := billing.NewCheckout(conn, stripeCfg)
	if !checkout.Configured() {
		log.Warn("stripe not configured, checkout endpoints disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	adminapi.RegisterRoutes(engine, conn, jwtConfig)
	front.RegisterRoutes(engine, front.Deps{
		DB:       conn,
		JWT:      jwtConfig,
		Selector: selector,
		Accounts: accounts,
		Sender:   sendService,
		Recorder: recorder,
		Checkout: checkout,
	})

	engine.GET("/v0/init/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, InitStatusResponse{Initialized: initState.Load()})
	})
	engine.POST("/v0/init/setup", func(c *gin.Context) {
		if ok, errCheck := HasAdminInitialized(conn); errCheck != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "check admin status failed"})
			return
		} else if ok {
			initState.Store(true)
			c.JSON(http.StatusBadRequest, gin.H{"error": "System already initialized"})
			return
		}

		var req InitRequest
		if errBind := c.ShouldBindJSON(&req); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errBind.Error()})
			return
		}

		req.SiteName = strings.TrimSpace(req.SiteName)
		if req.SiteName == "" {
			req.SiteName = internalsettings.DefaultSiteName
		}
		req.AdminUsername = strings.TrimSpace(req.AdminUsername)
		if req.AdminUsername == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Admin username is required"})
			return
		}
		if strings.TrimSpace(req.AdminPassword) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Admin password is required"})
			return
		}
		if len(req.AdminPassword) < 6 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 6 characters"})
			return
		}

		if errAdmin := CreateAdminUserWithConn(conn, req.AdminUsername, req.AdminPassword, req.SiteName); errAdmin != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create admin: %v", errAdmin)})
			return
		}
		initState.Store(true)
		c.JSON(http.StatusOK, gin.H{"message": "Initialization successful"})
	})

	if port <= 0 {
		port = 8318
	}
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting server on %s", addr)
	if errListen := srv.ListenAndServe(); errListen != nil && errListen != http.ErrServerClosed {
		return errListen
	}
	return nil
}
