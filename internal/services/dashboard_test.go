package services

import (
	"testing"
	"time"

	"github.com/patchpilot/patchpilot/internal/models"
)

func TestDashboardGetStats(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDashboardService(db)

	now := time.Now()
	runs := []models.ReviewRun{
		{RunID: "r1", RepositoryID: 1, Author: "alice", Status: models.RunStatusCompleted,
			FilesTotal: 10, FilesCached: 5, CommentCount: 3, AIDurationMs: 100, CreatedAt: now},
		{RunID: "r2", RepositoryID: 1, Author: "bob", Status: models.RunStatusCompleted,
			FilesTotal: 4, FilesCached: 4, CommentCount: 1, AIDurationMs: 200, CreatedAt: now},
		{RunID: "r3", RepositoryID: 2, Author: "alice", Status: models.RunStatusFailed,
			FilesTotal: 6, FilesCached: 1, AIDurationMs: 300, CreatedAt: now},
	}
	for i := range runs {
		if err := db.Create(&runs[i]).Error; err != nil {
			t.Fatalf("failed to seed run: %v", err)
		}
	}

	resp, err := svc.GetStats(&DashboardStatsRequest{})
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	if resp.Stats.TotalRuns != 3 {
		t.Errorf("TotalRuns = %d, want 3", resp.Stats.TotalRuns)
	}
	if resp.Stats.FailedRuns != 1 {
		t.Errorf("FailedRuns = %d, want 1", resp.Stats.FailedRuns)
	}
	if resp.Stats.ActiveRepositories != 2 {
		t.Errorf("ActiveRepositories = %d, want 2", resp.Stats.ActiveRepositories)
	}
	if resp.Stats.Authors != 2 {
		t.Errorf("Authors = %d, want 2", resp.Stats.Authors)
	}
	if resp.Stats.TotalComments != 4 {
		t.Errorf("TotalComments = %d, want 4", resp.Stats.TotalComments)
	}

	// 10 of 20 reviewed files came from the cache
	if resp.Stats.CacheHitRate != 0.5 {
		t.Errorf("CacheHitRate = %f, want 0.5", resp.Stats.CacheHitRate)
	}

	if resp.Stats.P50AIDurationMs != 200 {
		t.Errorf("P50AIDurationMs = %d, want 200", resp.Stats.P50AIDurationMs)
	}
	if resp.Stats.P95AIDurationMs != 300 {
		t.Errorf("P95AIDurationMs = %d, want 300", resp.Stats.P95AIDurationMs)
	}

	if len(resp.DailyTrend) != 1 {
		t.Fatalf("DailyTrend entries = %d, want 1", len(resp.DailyTrend))
	}
	if resp.DailyTrend[0].RunCount != 3 {
		t.Errorf("trend RunCount = %d, want 3", resp.DailyTrend[0].RunCount)
	}
}

func TestDashboardGetStatsEmpty(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDashboardService(db)

	resp, err := svc.GetStats(&DashboardStatsRequest{})
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	if resp.Stats.TotalRuns != 0 {
		t.Errorf("TotalRuns = %d, want 0", resp.Stats.TotalRuns)
	}
	if resp.Stats.CacheHitRate != 0 {
		t.Errorf("CacheHitRate = %f, want 0", resp.Stats.CacheHitRate)
	}
	if resp.Stats.P50AIDurationMs != 0 || resp.Stats.P95AIDurationMs != 0 {
		t.Error("percentiles should be zero with no runs")
	}
}
