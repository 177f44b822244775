package services

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/patchpilot/patchpilot/internal/models"
	"github.com/patchpilot/patchpilot/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewCacheService stores per-file review results keyed by repository,
// path and content hash. The cache is strictly advisory: a failed read is a
// miss, a failed write is logged and swallowed, and callers never see a
// cache error.
type ReviewCacheService struct {
	db *gorm.DB
}

func NewReviewCacheService(db *gorm.DB) *ReviewCacheService {
	return &ReviewCacheService{db: db}
}

// Get looks up a cached review for one file content. The second return value
// reports whether the entry was found; any storage error degrades to a miss.
func (s *ReviewCacheService) Get(repositoryID uint, filePath, contentHash string) ([]LineComment, bool) {
	var entry models.ReviewCacheEntry
	err := s.db.Where("repository_id = ? AND file_path = ? AND content_hash = ?",
		repositoryID, filePath, contentHash).First(&entry).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warnf("[Cache] Read failed for %s@%s, treating as miss: %v", filePath, contentHash[:12], err)
		}
		return nil, false
	}

	var comments []LineComment
	if entry.Comments != "" {
		if err := json.Unmarshal([]byte(entry.Comments), &comments); err != nil {
			logger.Warnf("[Cache] Corrupt entry for %s@%s, treating as miss: %v", filePath, contentHash[:12], err)
			return nil, false
		}
	}
	return comments, true
}

// Put stores the review result for one file content. An empty comment list
// is stored too: a clean file is as cacheable as a flagged one. Errors are
// logged and swallowed.
func (s *ReviewCacheService) Put(repositoryID uint, filePath, contentHash string, comments []LineComment) {
	payload := ""
	if len(comments) > 0 {
		data, err := json.Marshal(comments)
		if err != nil {
			logger.Warnf("[Cache] Marshal failed for %s: %v", filePath, err)
			return
		}
		payload = string(data)
	}

	entry := models.ReviewCacheEntry{
		RepositoryID: repositoryID,
		FilePath:     filePath,
		ContentHash:  contentHash,
		Comments:     payload,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repository_id"}, {Name: "file_path"}, {Name: "content_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"comments"}),
	}).Create(&entry).Error
	if err != nil {
		logger.Warnf("[Cache] Write failed for %s@%s: %v", filePath, contentHash[:12], err)
	}
}

// EvictOlderThan deletes cache entries created before the cutoff. A zero
// repositoryID sweeps all repositories.
func (s *ReviewCacheService) EvictOlderThan(repositoryID uint, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	query := s.db.Where("created_at < ?", cutoff)
	if repositoryID != 0 {
		query = query.Where("repository_id = ?", repositoryID)
	}
	result := query.Delete(&models.ReviewCacheEntry{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// EvictRepository drops every cache entry for one repository.
func (s *ReviewCacheService) EvictRepository(repositoryID uint) (int64, error) {
	result := s.db.Where("repository_id = ?", repositoryID).Delete(&models.ReviewCacheEntry{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountForRepository returns the number of live entries for a repository.
func (s *ReviewCacheService) CountForRepository(repositoryID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.ReviewCacheEntry{}).
		Where("repository_id = ?", repositoryID).Count(&count).Error
	return count, err
}
