package models

import (
	"context"
	"strings"
	"time"

	"github.com/maisoong/exchange_backend/config"
	"github.com/maisoong/exchange_backend/utils"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SettingBusinessName = "business_name"
	settingsCacheKey    = "settings:all"
)

type Setting struct {
	SettingKey   string    `gorm:"primaryKey;size:100" json:"setting_key"`
	SettingValue string    `gorm:"type:text" json:"setting_value"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const settingsCacheTTL = 5 * time.Minute

// GetSettings returns all key/value pairs. With a Redis cache every instance
// reads the same copy; otherwise the in-process cache serves it.
func (l *Ledger) GetSettings(ctx context.Context) (map[string]string, error) {
	if cached, ok := l.cachedSettings(ctx); ok {
		return copySettings(cached), nil
	}

	var rows []Setting
	if err := l.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	settings := make(map[string]string, len(rows))
	for _, r := range rows {
		settings[r.SettingKey] = r.SettingValue
	}
	l.cacheSettings(ctx, settings)
	return copySettings(settings), nil
}

func (l *Ledger) cachedSettings(ctx context.Context) (map[string]string, bool) {
	if l.shared == nil {
		cached, ok := l.settings.Get(settingsCacheKey)
		if !ok {
			return nil, false
		}
		return cached.(map[string]string), true
	}
	var settings map[string]string
	found, err := config.GetRedisObject(ctx, l.shared, settingsCacheKey, &settings)
	if err != nil {
		config.LogWarn(l.logger, "models", "cachedSettings", "reading settings from the database", settingsCacheKey, err)
		return nil, false
	}
	return settings, found
}

func (l *Ledger) cacheSettings(ctx context.Context, settings map[string]string) {
	if l.shared == nil {
		l.settings.Set(settingsCacheKey, settings, cache.DefaultExpiration)
		return
	}
	if err := config.SetRedisObject(ctx, l.shared, settingsCacheKey, settings, settingsCacheTTL); err != nil {
		config.LogWarn(l.logger, "models", "cacheSettings", "settings not cached", settingsCacheKey, err)
	}
}

func (l *Ledger) dropCachedSettings(ctx context.Context) error {
	l.settings.Delete(settingsCacheKey)
	return config.RemoveRedisKey(ctx, l.shared, settingsCacheKey)
}

func (l *Ledger) GetSetting(ctx context.Context, key string, fallback string) (string, error) {
	settings, err := l.GetSettings(ctx)
	if err != nil {
		return "", err
	}
	if v, ok := settings[key]; ok && strings.TrimSpace(v) != "" {
		return v, nil
	}
	return fallback, nil
}

// UpdateSettings upserts every pair and drops the cached copy.
func (l *Ledger) UpdateSettings(ctx context.Context, input map[string]string) (map[string]string, error) {
	if len(input) == 0 {
		return nil, utils.NewValidationError("settings are required")
	}
	rows := make([]Setting, 0, len(input))
	for k, v := range input {
		k = strings.TrimSpace(k)
		if k == "" || len(k) > 100 {
			return nil, utils.NewValidationError("invalid setting key %q", k)
		}
		rows = append(rows, Setting{SettingKey: k, SettingValue: v})
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	if err := l.dropCachedSettings(ctx); err != nil {
		config.LogError(l.logger, "models", "UpdateSettings", "settings cache not dropped", settingsCacheKey, err)
	}
	return l.GetSettings(ctx)
}

func copySettings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
