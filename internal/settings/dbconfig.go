package settings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/repspheres/repcore/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// cacheTTL bounds how stale a settings snapshot may be.
const cacheTTL = 10 * time.Second

var (
	mu        sync.RWMutex
	conn      *gorm.DB
	snapshot  map[string]json.RawMessage
	refreshed time.Time
)

// Bind registers the database connection used to read settings.
func Bind(db *gorm.DB) {
	mu.Lock()
	conn = db
	snapshot = nil
	refreshed = time.Time{}
	mu.Unlock()
}

// Invalidate drops the cached snapshot so the next read hits the database.
func Invalidate() {
	mu.Lock()
	snapshot = nil
	refreshed = time.Time{}
	mu.Unlock()
}

// DBConfigValue returns the raw JSON value for a settings key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	mu.RLock()
	db := conn
	current := snapshot
	fresh := time.Since(refreshed) < cacheTTL
	mu.RUnlock()

	if db == nil {
		return nil, false
	}
	if current == nil || !fresh {
		current = reload(db)
	}
	value, ok := current[key]
	return value, ok
}

// reload reads all settings rows and replaces the cached snapshot.
func reload(db *gorm.DB) map[string]json.RawMessage {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var rows []models.Setting
	if errFind := db.WithContext(ctx).Find(&rows).Error; errFind != nil {
		log.WithError(errFind).Warn("settings: reload failed, keeping stale snapshot")
		mu.RLock()
		stale := snapshot
		mu.RUnlock()
		if stale != nil {
			return stale
		}
		return map[string]json.RawMessage{}
	}

	next := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		if len(row.Value) == 0 {
			continue
		}
		next[row.Key] = json.RawMessage(row.Value)
	}

	mu.Lock()
	snapshot = next
	refreshed = time.Now()
	mu.Unlock()
	return next
}
