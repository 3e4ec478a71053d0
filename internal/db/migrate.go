package db

import (
	"encoding/json"
	"fmt"

	"github.com/repspheres/repcore/internal/models"
	internalsettings "github.com/repspheres/repcore/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
		if errAutoMigrate := conn.AutoMigrate(
			&models.Admin{},
			&models.Tier{},
			&models.Rep{},
			&models.WorkEmailAccount{},
			&models.UsageRecord{},
			&models.EmailSendLog{},
			&models.Setting{},
		); errAutoMigrate != nil {
			return fmt.Errorf("db: migrate: %w", errAutoMigrate)
		}
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errSeed := ensureDefaultTiers(conn); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureDefaultSettings(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// defaultTiers returns the seed tier ladder from lowest to highest.
func defaultTiers() []models.Tier {
	unlimited := models.UnlimitedLimit
	return []models.Tier{
		{
			Slug: "repx1", Name: "RepX1 Professional Business Line", Rank: 1,
			MonthPrice: 39, AnnualPrice: 390,
			FeatureLines: mustJSONLines(
				"Your professional business line for life",
				"AI transcription of every sales call",
				"100 calls per month",
			),
			ContactsLimit: 250, CallsPerMonth: 100,
			PhoneAccess: true,
			SortOrder:   1, IsEnabled: true,
		},
		{
			Slug: "repx2", Name: "RepX2 Market Intelligence", Rank: 2,
			MonthPrice: 97, AnnualPrice: 970,
			FeatureLines: mustJSONLines(
				"Everything in RepX1, plus:",
				"Work email integration (no IT approval needed)",
				"50 emails per day",
				"10 Canvas practice scans per day",
			),
			ContactsLimit: 1000, CallsPerMonth: 200, EmailsPerDay: 50,
			AutomationsLimit: 3, CanvasScansPerDay: 10, AIPromptsPerDay: 10,
			PhoneAccess: true, EmailAccess: true,
			SortOrder: 2, IsEnabled: true,
		},
		{
			Slug: "repx3", Name: "RepX3 Territory Command", Rank: 3,
			MonthPrice: 197, AnnualPrice: 1970,
			FeatureLines: mustJSONLines(
				"Everything in RepX2, plus:",
				"Full Canvas practice intelligence platform",
				"100 emails per day",
				"25 Canvas practice scans per day",
			),
			ContactsLimit: 5000, CallsPerMonth: 400, EmailsPerDay: 100,
			AutomationsLimit: 10, CanvasScansPerDay: 25, AIPromptsPerDay: 50,
			PhoneAccess: true, EmailAccess: true, GmailIntegration: true,
			SortOrder: 3, IsEnabled: true,
		},
		{
			Slug: "repx4", Name: "RepX4 Executive Operations", Rank: 4,
			MonthPrice: 397, AnnualPrice: 3970,
			FeatureLines: mustJSONLines(
				"Everything in RepX3, plus:",
				"AI coaching insights and recommendations",
				"Workflow automation",
				"200 emails per day",
			),
			ContactsLimit: 20000, CallsPerMonth: 800, EmailsPerDay: 200,
			AutomationsLimit: 25, CanvasScansPerDay: 50, AIPromptsPerDay: 200,
			PhoneAccess: true, EmailAccess: true, GmailIntegration: true,
			SortOrder: 4, IsEnabled: true,
		},
		{
			Slug: "repx5", Name: "RepX5 Elite Global", Rank: 5,
			MonthPrice: 797, AnnualPrice: 7970,
			FeatureLines: mustJSONLines(
				"Everything in RepX4, plus:",
				"Real-time AI whisper coaching during live calls",
				"Unlimited calls, emails, and Canvas scans",
				"Dedicated success manager",
			),
			ContactsLimit: unlimited, CallsPerMonth: unlimited, EmailsPerDay: unlimited,
			AutomationsLimit: unlimited, CanvasScansPerDay: unlimited, AIPromptsPerDay: unlimited,
			PhoneAccess: true, EmailAccess: true, GmailIntegration: true, WhiteLabel: true,
			SortOrder: 5, IsEnabled: true,
		},
	}
}

// ensureDefaultTiers seeds the tier ladder when the table is empty.
func ensureDefaultTiers(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.Tier{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: count tiers: %w", errCount)
	}
	if count > 0 {
		return nil
	}
	tiers := defaultTiers()
	if errCreate := conn.Create(&tiers).Error; errCreate != nil {
		return fmt.Errorf("db: seed tiers: %w", errCreate)
	}
	return nil
}

// ensureDefaultSettings seeds settings rows that are missing.
func ensureDefaultSettings(conn *gorm.DB) error {
	defaults := map[string]any{
		internalsettings.SiteNameKey:                  internalsettings.DefaultSiteName,
		internalsettings.SendRateLimitKey:             internalsettings.DefaultSendRateLimit,
		internalsettings.SilentOAuthTimeoutSecondsKey: internalsettings.DefaultSilentOAuthTimeoutSeconds,
	}
	for key, value := range defaults {
		var count int64
		if errCount := conn.Model(&models.Setting{}).Where("key = ?", key).Count(&count).Error; errCount != nil {
			return fmt.Errorf("db: count setting %s: %w", key, errCount)
		}
		if count > 0 {
			continue
		}
		raw, errMarshal := json.Marshal(value)
		if errMarshal != nil {
			return fmt.Errorf("db: marshal setting %s: %w", key, errMarshal)
		}
		row := models.Setting{Key: key, Value: datatypes.JSON(raw)}
		if errCreate := conn.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("db: seed setting %s: %w", key, errCreate)
		}
	}
	return nil
}

// mustJSONLines marshals marketing bullet lines into a JSON column value.
func mustJSONLines(lines ...string) datatypes.JSON {
	raw, err := json.Marshal(lines)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}
