package models

import "time"

// ReviewCacheEntry persists the line comments produced for one file fragment,
// keyed by (repository, path, content hash). The triple is unique so repeated
// writes for the same fragment content upsert in place.
type ReviewCacheEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RepositoryID uint      `gorm:"uniqueIndex:idx_cache_key;not null" json:"repository_id"`
	FilePath     string    `gorm:"uniqueIndex:idx_cache_key;size:500;not null" json:"file_path"`
	ContentHash  string    `gorm:"uniqueIndex:idx_cache_key;size:64;not null" json:"content_hash"`
	Comments     string    `gorm:"type:text" json:"comments"` // JSON array of line comments
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ReviewCacheEntry) TableName() string { return "review_cache_entries" }
