package models

import (
	"time"

	"gorm.io/gorm"
)

// Review run statuses
const (
	RunStatusPending   = "pending"
	RunStatusAnalyzing = "analyzing"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusSkipped   = "skipped"
)

// ReviewRun represents one end-to-end review pass for a pull-request event
type ReviewRun struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	RunID          string         `gorm:"uniqueIndex;size:36;not null" json:"run_id"` // UUID
	RepositoryID   uint           `gorm:"index;not null" json:"repository_id"`
	Repository     *Repository    `gorm:"foreignKey:RepositoryID" json:"repository,omitempty"`
	PRNumber       int            `gorm:"index" json:"pr_number"`
	PRURL          string         `gorm:"size:500" json:"pr_url"`
	HeadSHA        string         `gorm:"size:100;index" json:"head_sha"`
	Branch         string         `gorm:"size:200" json:"branch"`
	Author         string         `gorm:"size:200" json:"author"`
	Title          string         `gorm:"type:text" json:"title"`
	FilesTotal     int            `json:"files_total"`
	FilesCached    int            `json:"files_cached"`
	CommentCount   int            `json:"comment_count"`
	CommentsPosted int            `json:"comments_posted"`
	Fallback       bool           `gorm:"default:false" json:"fallback"` // whole-batch free-text review
	AIDurationMs   int64          `json:"ai_duration_ms"`
	PostDurationMs int64          `json:"post_duration_ms"`
	Status         string         `gorm:"size:50;default:pending" json:"status"` // pending, analyzing, completed, failed, skipped
	ErrorMessage   string         `gorm:"type:text" json:"error_message"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ReviewRun) TableName() string { return "review_runs" }
