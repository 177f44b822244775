package models

import (
	"fmt"

	"github.com/patchpilot/patchpilot/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	dialector, err := openDialector(cfg)
	if err != nil {
		return err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return nil
}

func openDialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
}

func AutoMigrate() error {
	return DB.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Repository{},
		&ReviewRun{},
		&ReviewCacheEntry{},
		&LLMConfig{},
		&PromptTemplate{},
		&SystemConfig{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// DefaultReviewPrompt is the built-in prompt seeded on first start. The
// {{diffs}} placeholder is replaced with the batch of pending file fragments.
const DefaultReviewPrompt = `You are a senior software engineer reviewing a pull request.
The input below is a unified diff containing one or more files; each file
begins with its "diff --git" header.

Review the changed lines only. For every issue you find, emit one entry with
the file path exactly as it appears after "b/" in the diff header, the line
number in the new file, and a short actionable comment.

Respond with ONLY a JSON array, no prose before or after:
[{"file": "path/to/file.go", "line": 42, "comment": "..."}]

Return [] if the changes look fine.

Diff:
{{diffs}}`

// SeedDefaultData inserts the built-in prompt template and system settings.
// Existing rows are left alone so operator edits survive restarts.
func SeedDefaultData() error {
	var promptCount int64
	DB.Model(&PromptTemplate{}).Where("is_system = ?", true).Count(&promptCount)
	if promptCount == 0 {
		defaultPrompt := PromptTemplate{
			Name:        "Default Line Review",
			Description: "Default pull-request review prompt producing structured line comments",
			Content:     DefaultReviewPrompt,
			Variables:   `["diffs"]`,
			IsDefault:   true,
			IsSystem:    true,
		}
		if err := DB.Create(&defaultPrompt).Error; err != nil {
			return err
		}
	}

	defaults := []SystemConfig{
		{Key: "cache.retention_days", Value: "30", Type: "int", Group: "cache", Label: "Review Cache Retention Days"},
		{Key: "review.max_comments", Value: "50", Type: "int", Group: "review", Label: "Max Comments Posted per Run"},
	}
	for _, cfg := range defaults {
		err := DB.Where(SystemConfig{Key: cfg.Key}).FirstOrCreate(&cfg).Error
		if err != nil {
			return err
		}
	}
	return nil
}
