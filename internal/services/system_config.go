package services

import (
	"errors"
	"strconv"

	"github.com/patchpilot/patchpilot/internal/models"
	"gorm.io/gorm"
)

// SystemConfigService reads and writes runtime-tunable settings stored as
// key/value rows, such as token lifetimes.
type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where("`key` = ?", key).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, fallback string) string {
	value, err := s.Get(key)
	if err != nil {
		return fallback
	}
	return value
}

// GetInt returns the setting parsed as an integer, or fallback when the key
// is absent or not numeric.
func (s *SystemConfigService) GetInt(key string, fallback int) int {
	value, err := s.Get(key)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

// Set upserts a single setting.
func (s *SystemConfigService) Set(key, value string) error {
	var cfg models.SystemConfig
	err := s.db.Where("`key` = ?", key).First(&cfg).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.db.Create(&models.SystemConfig{Key: key, Value: value}).Error
	case err != nil:
		return err
	default:
		return s.db.Model(&cfg).Update("value", value).Error
	}
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	err := s.db.Where("`group` = ?", group).Find(&configs).Error
	return configs, err
}
