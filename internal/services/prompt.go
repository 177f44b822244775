package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/patchpilot/patchpilot/internal/models"
	"gorm.io/gorm"
)

// diffsPlaceholder must appear in a prompt template for the batch diff text
// to be substituted in.
const diffsPlaceholder = "{{diffs}}"

var errSystemPrompt = errors.New("system prompt templates cannot be deleted")

type PromptService struct {
	db *gorm.DB
}

func NewPromptService(db *gorm.DB) *PromptService {
	return &PromptService{db: db}
}

type PromptListParams struct {
	Page     int
	PageSize int
	Name     string
	IsSystem *bool
}

type PromptListResult struct {
	Items []models.PromptTemplate `json:"items"`
	Total int64                   `json:"total"`
}

func (s *PromptService) List(params PromptListParams) (*PromptListResult, error) {
	query := s.db.Model(&models.PromptTemplate{})
	if params.Name != "" {
		query = query.Where("name LIKE ?", "%"+params.Name+"%")
	}
	if params.IsSystem != nil {
		query = query.Where("is_system = ?", *params.IsSystem)
	}

	result := &PromptListResult{}
	if err := query.Count(&result.Total).Error; err != nil {
		return nil, err
	}

	err := query.Order("is_system DESC, is_default DESC, id DESC").
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&result.Items).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PromptService) GetByID(id uint) (*models.PromptTemplate, error) {
	var prompt models.PromptTemplate
	if err := s.db.First(&prompt, id).Error; err != nil {
		return nil, err
	}
	return &prompt, nil
}

func (s *PromptService) GetDefault() (*models.PromptTemplate, error) {
	var prompt models.PromptTemplate
	if err := s.db.Where("is_default = ?", true).First(&prompt).Error; err != nil {
		return nil, err
	}
	return &prompt, nil
}

// Create stores a user template. Templates without the diffs placeholder
// are rejected early rather than producing reviews of nothing.
func (s *PromptService) Create(prompt *models.PromptTemplate) error {
	if !strings.Contains(prompt.Content, diffsPlaceholder) {
		return fmt.Errorf("prompt template must contain %s", diffsPlaceholder)
	}
	prompt.IsSystem = false
	return s.db.Create(prompt).Error
}

func (s *PromptService) Update(id uint, updates map[string]interface{}) error {
	if _, err := s.GetByID(id); err != nil {
		return err
	}
	if content, ok := updates["content"].(string); ok {
		if !strings.Contains(content, diffsPlaceholder) {
			return fmt.Errorf("prompt template must contain %s", diffsPlaceholder)
		}
	}
	// The system flag is set at seed time only
	delete(updates, "is_system")
	return s.db.Model(&models.PromptTemplate{}).Where("id = ?", id).Updates(updates).Error
}

func (s *PromptService) Delete(id uint) error {
	prompt, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if prompt.IsSystem {
		return errSystemPrompt
	}
	return s.db.Delete(&models.PromptTemplate{}, id).Error
}

// SetDefault moves the default flag to the given template atomically.
func (s *PromptService) SetDefault(id uint) error {
	if _, err := s.GetByID(id); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PromptTemplate{}).
			Where("is_default = ?", true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.PromptTemplate{}).
			Where("id = ?", id).
			Update("is_default", true).Error
	})
}

// GetAllActive returns every template for selection dropdowns.
func (s *PromptService) GetAllActive() ([]models.PromptTemplate, error) {
	var prompts []models.PromptTemplate
	err := s.db.Order("is_system DESC, is_default DESC, name ASC").Find(&prompts).Error
	return prompts, err
}
