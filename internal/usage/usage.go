package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/repspheres/repcore/internal/access"
	"github.com/repspheres/repcore/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUntrackedFeature indicates a feature with no usage counter.
var ErrUntrackedFeature = errors.New("usage: feature has no counter")

// featurePeriods maps counted features to their reset cadence. Contacts and
// automations are entity counts, not action counters, so they are absent.
var featurePeriods = map[access.Feature]models.UsagePeriod{
	access.FeatureCalls:       models.UsagePeriodMonthly,
	access.FeatureEmails:      models.UsagePeriodDaily,
	access.FeatureCanvasScans: models.UsagePeriodDaily,
	access.FeatureAIPrompts:   models.UsagePeriodDaily,
}

// PeriodFor returns the reset cadence of a tracked feature.
func PeriodFor(feature access.Feature) (models.UsagePeriod, error) {
	period, ok := featurePeriods[feature]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUntrackedFeature, feature)
	}
	return period, nil
}

// PeriodStart returns the UTC start of the period containing now.
func PeriodStart(period models.UsagePeriod, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case models.UsagePeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// GormRecorder persists per-rep usage counters.
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder constructs a GormRecorder backed by GORM.
func NewGormRecorder(db *gorm.DB) *GormRecorder { return &GormRecorder{db: db} }

// CurrentCount returns the rep's counter for the feature's current period.
// A missing row reads as zero.
func (r *GormRecorder) CurrentCount(ctx context.Context, repID uint64, feature access.Feature, now time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("usage: nil recorder")
	}
	period, errPeriod := PeriodFor(feature)
	if errPeriod != nil {
		return 0, errPeriod
	}

	var row models.UsageRecord
	errFind := r.db.WithContext(ctx).
		Where("rep_id = ? AND feature = ? AND period_start = ?", repID, string(feature), PeriodStart(period, now)).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, errFind
	}
	return row.Count, nil
}

// Increment adds delta to the rep's counter for the feature's current period,
// creating the row on first use. The upsert keeps concurrent increments from
// losing updates.
func (r *GormRecorder) Increment(ctx context.Context, repID uint64, feature access.Feature, delta int64, now time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("usage: nil recorder")
	}
	if delta <= 0 {
		return nil
	}
	period, errPeriod := PeriodFor(feature)
	if errPeriod != nil {
		return errPeriod
	}

	nowUTC := now.UTC()
	row := models.UsageRecord{
		RepID:       repID,
		Feature:     string(feature),
		Period:      period,
		PeriodStart: PeriodStart(period, now),
		Count:       delta,
		CreatedAt:   nowUTC,
		UpdatedAt:   nowUTC,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "rep_id"}, {Name: "feature"}, {Name: "period_start"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count":      gorm.Expr("count + ?", delta),
				"updated_at": nowUTC,
			}),
		}).
		Create(&row).Error
}
