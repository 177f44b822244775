package services

import (
	"errors"
	"fmt"

	"github.com/patchpilot/patchpilot/internal/models"
	"gorm.io/gorm"
)

// Providers the review client can dispatch to.
var supportedProviders = map[string]bool{
	"openai":    true,
	"azure":     true,
	"anthropic": true,
	"gemini":    true,
	"ollama":    true,
}

type LLMConfigService struct {
	db *gorm.DB
}

func NewLLMConfigService(db *gorm.DB) *LLMConfigService {
	return &LLMConfigService{db: db}
}

type LLMConfigListRequest struct {
	Page     int    `form:"page" binding:"min=1"`
	PageSize int    `form:"page_size" binding:"min=1,max=100"`
	Name     string `form:"name"`
	Provider string `form:"provider"`
	IsActive *bool  `form:"is_active"`
}

type LLMConfigListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.LLMConfig `json:"items"`
}

type CreateLLMConfigRequest struct {
	Name        string  `json:"name" binding:"required"`
	Provider    string  `json:"provider"`
	BaseURL     string  `json:"base_url"`
	APIKey      string  `json:"api_key" binding:"required"`
	Model       string  `json:"model" binding:"required"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	IsDefault   bool    `json:"is_default"`
	IsActive    bool    `json:"is_active"`
}

type UpdateLLMConfigRequest struct {
	Name        string   `json:"name"`
	Provider    string   `json:"provider"`
	BaseURL     string   `json:"base_url"`
	APIKey      string   `json:"api_key"`
	Model       string   `json:"model"`
	MaxTokens   *int     `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	IsDefault   *bool    `json:"is_default"`
	IsActive    *bool    `json:"is_active"`
}

// masked returns the config with its API key hidden for API responses.
func masked(c *models.LLMConfig) *models.LLMConfig {
	c.APIKeyMask = c.MaskAPIKey()
	return c
}

func validateProvider(provider string) error {
	if !supportedProviders[provider] {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	return nil
}

// List returns a filtered, paginated page of LLM configs with masked keys.
func (s *LLMConfigService) List(req *LLMConfigListRequest) (*LLMConfigListResponse, error) {
	page, size := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}

	query := s.db.Model(&models.LLMConfig{})
	if req.Name != "" {
		pattern := "%" + req.Name + "%"
		query = query.Where("name LIKE ? OR model LIKE ?", pattern, pattern)
	}
	if req.Provider != "" {
		query = query.Where("provider = ?", req.Provider)
	}
	if req.IsActive != nil {
		query = query.Where("is_active = ?", *req.IsActive)
	}

	var total int64
	query.Count(&total)

	var configs []models.LLMConfig
	err := query.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	for i := range configs {
		masked(&configs[i])
	}

	return &LLMConfigListResponse{Total: total, Page: page, PageSize: size, Items: configs}, nil
}

func (s *LLMConfigService) GetByID(id uint) (*models.LLMConfig, error) {
	var cfg models.LLMConfig
	if err := s.db.First(&cfg, id).Error; err != nil {
		return nil, err
	}
	return masked(&cfg), nil
}

// GetDefault returns the default active config, falling back to any active
// one when no default is flagged.
func (s *LLMConfigService) GetDefault() (*models.LLMConfig, error) {
	var cfg models.LLMConfig
	err := s.db.Where("is_default = ? AND is_active = ?", true, true).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = s.db.Where("is_active = ?", true).First(&cfg).Error
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetActive returns every active config, default first. Used to build the
// review fallback chain.
func (s *LLMConfigService) GetActive() ([]models.LLMConfig, error) {
	var configs []models.LLMConfig
	err := s.db.Where("is_active = ?", true).
		Order("is_default DESC, created_at DESC").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	for i := range configs {
		masked(&configs[i])
	}
	return configs, nil
}

func (s *LLMConfigService) Create(req *CreateLLMConfigRequest) (*models.LLMConfig, error) {
	if req.Provider == "" {
		req.Provider = "openai"
	}
	if err := validateProvider(req.Provider); err != nil {
		return nil, err
	}

	cfg := models.LLMConfig{
		Name:        req.Name,
		Provider:    req.Provider,
		BaseURL:     req.BaseURL,
		APIKey:      req.APIKey,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		IsDefault:   req.IsDefault,
		IsActive:    req.IsActive,
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if cfg.IsDefault {
			if err := clearOtherDefaults(tx, 0); err != nil {
				return err
			}
		}
		return tx.Create(&cfg).Error
	})
	if err != nil {
		return nil, err
	}
	return masked(&cfg), nil
}

func (s *LLMConfigService) Update(id uint, req *UpdateLLMConfigRequest) (*models.LLMConfig, error) {
	var cfg models.LLMConfig
	if err := s.db.First(&cfg, id).Error; err != nil {
		return nil, err
	}

	if req.Provider != "" {
		if err := validateProvider(req.Provider); err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{}
	for col, val := range map[string]string{
		"name": req.Name, "provider": req.Provider, "base_url": req.BaseURL,
		"api_key": req.APIKey, "model": req.Model,
	} {
		if val != "" {
			updates[col] = val
		}
	}
	if req.MaxTokens != nil {
		updates["max_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		updates["temperature"] = *req.Temperature
	}
	if req.IsDefault != nil {
		updates["is_default"] = *req.IsDefault
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if req.IsDefault != nil && *req.IsDefault {
			if err := clearOtherDefaults(tx, id); err != nil {
				return err
			}
		}
		return tx.Model(&cfg).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	s.db.First(&cfg, id)
	return masked(&cfg), nil
}

func (s *LLMConfigService) Delete(id uint) error {
	result := s.db.Delete(&models.LLMConfig{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("llm config not found")
	}
	return nil
}

// clearOtherDefaults unsets the default flag everywhere except keepID, so
// at most one config is ever the default.
func clearOtherDefaults(tx *gorm.DB, keepID uint) error {
	q := tx.Model(&models.LLMConfig{}).Where("is_default = ?", true)
	if keepID != 0 {
		q = q.Where("id != ?", keepID)
	}
	return q.Update("is_default", false).Error
}
