package models

import (
	"time"

	"gorm.io/gorm"
)

// Repository represents a GitHub repository registered for review
type Repository struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"size:200;not null" json:"name"`
	FullName         string         `gorm:"uniqueIndex;size:300;not null" json:"full_name"` // owner/repo
	URL              string         `gorm:"size:500;not null" json:"url"`
	AccessToken      string         `gorm:"size:500" json:"-"`
	WebhookSecret    string         `gorm:"size:255" json:"-"`
	Enabled          bool           `gorm:"default:true" json:"enabled"`
	BranchFilter     string         `gorm:"size:1000" json:"branch_filter"` // Branches to ignore: main,release/*
	CustomPrompt     string         `gorm:"type:text" json:"custom_prompt"` // Inline prompt override
	PromptTemplateID *uint          `json:"prompt_template_id"`
	LLMConfigID      *uint          `json:"llm_config_id"`
	CommentEnabled   bool           `gorm:"default:true" json:"comment_enabled"`
	CreatedBy        uint           `json:"created_by"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Repository) TableName() string { return "repositories" }
