package services

import (
	"errors"
	"strings"

	"github.com/patchpilot/patchpilot/internal/models"
	"gorm.io/gorm"
)

type RepositoryService struct {
	db *gorm.DB
}

func NewRepositoryService(db *gorm.DB) *RepositoryService {
	return &RepositoryService{db: db}
}

type RepositoryListRequest struct {
	Page     int    `form:"page" binding:"min=1"`
	PageSize int    `form:"page_size" binding:"min=1,max=100"`
	Name     string `form:"name"`
	Enabled  *bool  `form:"enabled"`
}

type RepositoryListResponse struct {
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Items    []models.Repository `json:"items"`
}

type CreateRepositoryRequest struct {
	Name             string `json:"name"`
	FullName         string `json:"full_name" binding:"required"` // owner/repo
	URL              string `json:"url"`
	AccessToken      string `json:"access_token"`
	WebhookSecret    string `json:"webhook_secret"`
	BranchFilter     string `json:"branch_filter"`
	CustomPrompt     string `json:"custom_prompt"`
	PromptTemplateID *uint  `json:"prompt_template_id"`
	LLMConfigID      *uint  `json:"llm_config_id"`
	CommentEnabled   *bool  `json:"comment_enabled"`
}

type UpdateRepositoryRequest struct {
	Name             string `json:"name"`
	URL              string `json:"url"`
	AccessToken      string `json:"access_token"`
	WebhookSecret    string `json:"webhook_secret"`
	Enabled          *bool  `json:"enabled"`
	BranchFilter     string `json:"branch_filter"`
	CustomPrompt     string `json:"custom_prompt"`
	PromptTemplateID *uint  `json:"prompt_template_id"`
	LLMConfigID      *uint  `json:"llm_config_id"`
	CommentEnabled   *bool  `json:"comment_enabled"`
}

// List returns paginated repositories
func (s *RepositoryService) List(req *RepositoryListRequest) (*RepositoryListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	var repos []models.Repository
	var total int64

	query := s.db.Model(&models.Repository{})

	if req.Name != "" {
		query = query.Where("name LIKE ? OR full_name LIKE ?", "%"+req.Name+"%", "%"+req.Name+"%")
	}
	if req.Enabled != nil {
		query = query.Where("enabled = ?", *req.Enabled)
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&repos).Error; err != nil {
		return nil, err
	}

	return &RepositoryListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    repos,
	}, nil
}

// GetByID returns a repository by ID
func (s *RepositoryService) GetByID(id uint) (*models.Repository, error) {
	var repo models.Repository
	if err := s.db.First(&repo, id).Error; err != nil {
		return nil, err
	}
	return &repo, nil
}

// GetByFullName finds a repository by its owner/repo name
func (s *RepositoryService) GetByFullName(fullName string) (*models.Repository, error) {
	var repo models.Repository
	if err := s.db.Where("full_name = ?", fullName).First(&repo).Error; err != nil {
		return nil, err
	}
	return &repo, nil
}

// Create creates a new repository
func (s *RepositoryService) Create(req *CreateRepositoryRequest, userID uint) (*models.Repository, error) {
	fullName := strings.TrimSuffix(strings.TrimSpace(req.FullName), ".git")
	if strings.Count(fullName, "/") != 1 {
		return nil, errors.New("full_name must be owner/repo")
	}

	name := req.Name
	if name == "" {
		name = fullName[strings.Index(fullName, "/")+1:]
	}
	url := req.URL
	if url == "" {
		url = "https://github.com/" + fullName
	}

	commentEnabled := true
	if req.CommentEnabled != nil {
		commentEnabled = *req.CommentEnabled
	}

	repo := models.Repository{
		Name:             name,
		FullName:         fullName,
		URL:              strings.TrimSuffix(url, ".git"),
		AccessToken:      req.AccessToken,
		WebhookSecret:    req.WebhookSecret,
		Enabled:          true,
		BranchFilter:     req.BranchFilter,
		CustomPrompt:     req.CustomPrompt,
		PromptTemplateID: req.PromptTemplateID,
		LLMConfigID:      req.LLMConfigID,
		CommentEnabled:   commentEnabled,
		CreatedBy:        userID,
	}

	if err := s.db.Create(&repo).Error; err != nil {
		return nil, err
	}

	return &repo, nil
}

// Update updates a repository
func (s *RepositoryService) Update(id uint, req *UpdateRepositoryRequest) (*models.Repository, error) {
	var repo models.Repository
	if err := s.db.First(&repo, id).Error; err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.URL != "" {
		updates["url"] = strings.TrimSuffix(req.URL, ".git")
	}
	if req.AccessToken != "" {
		updates["access_token"] = req.AccessToken
	}
	if req.WebhookSecret != "" {
		updates["webhook_secret"] = req.WebhookSecret
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}
	if req.BranchFilter != "" {
		updates["branch_filter"] = req.BranchFilter
	}
	if req.CustomPrompt != "" {
		updates["custom_prompt"] = req.CustomPrompt
	}
	if req.PromptTemplateID != nil {
		updates["prompt_template_id"] = req.PromptTemplateID
	}
	if req.LLMConfigID != nil {
		updates["llm_config_id"] = req.LLMConfigID
	}
	if req.CommentEnabled != nil {
		updates["comment_enabled"] = *req.CommentEnabled
	}

	if err := s.db.Model(&repo).Updates(updates).Error; err != nil {
		return nil, err
	}

	return &repo, nil
}

// Delete deletes a repository and its cached reviews
func (s *RepositoryService) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Repository{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errors.New("repository not found")
		}
		// Cache entries are keyed to the repository and useless without it
		return tx.Where("repository_id = ?", id).
			Delete(&models.ReviewCacheEntry{}).Error
	})
}
