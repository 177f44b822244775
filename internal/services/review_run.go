package services

import (
	"github.com/patchpilot/patchpilot/internal/models"
	"gorm.io/gorm"
)

type ReviewRunService struct {
	db *gorm.DB
}

func NewReviewRunService(db *gorm.DB) *ReviewRunService {
	return &ReviewRunService{db: db}
}

// Record inserts a new run or updates an existing one in place. It is the
// gorm-backed RunRecorder used by the orchestrator.
func (s *ReviewRunService) Record(run *models.ReviewRun) error {
	return s.db.Save(run).Error
}

type ReviewRunListRequest struct {
	Page         int    `form:"page" binding:"min=1"`
	PageSize     int    `form:"page_size" binding:"min=1,max=100"`
	RepositoryID uint   `form:"repository_id"`
	PRNumber     int    `form:"pr_number"`
	Status       string `form:"status"`
	Author       string `form:"author"`
	Branch       string `form:"branch"`
}

type ReviewRunListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.ReviewRun `json:"items"`
}

// List returns paginated review runs
func (s *ReviewRunService) List(req *ReviewRunListRequest) (*ReviewRunListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	var runs []models.ReviewRun
	var total int64

	query := s.db.Model(&models.ReviewRun{})

	if req.RepositoryID != 0 {
		query = query.Where("repository_id = ?", req.RepositoryID)
	}
	if req.PRNumber != 0 {
		query = query.Where("pr_number = ?", req.PRNumber)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Author != "" {
		query = query.Where("author LIKE ?", "%"+req.Author+"%")
	}
	if req.Branch != "" {
		query = query.Where("branch = ?", req.Branch)
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Preload("Repository").Offset(offset).Limit(req.PageSize).
		Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, err
	}

	return &ReviewRunListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    runs,
	}, nil
}

// GetByRunID returns a run by its UUID
func (s *ReviewRunService) GetByRunID(runID string) (*models.ReviewRun, error) {
	var run models.ReviewRun
	if err := s.db.Preload("Repository").Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// GetByID returns a run by primary key
func (s *ReviewRunService) GetByID(id uint) (*models.ReviewRun, error) {
	var run models.ReviewRun
	if err := s.db.Preload("Repository").First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}
