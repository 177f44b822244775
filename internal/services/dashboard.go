package services

import (
	"time"

	"github.com/patchpilot/patchpilot/internal/models"
	"gorm.io/gorm"
)

type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

type DashboardStatsRequest struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

type DashboardStats struct {
	ActiveRepositories int64   `json:"active_repositories"`
	Authors            int64   `json:"authors"`
	TotalRuns          int64   `json:"total_runs"`
	FailedRuns         int64   `json:"failed_runs"`
	TotalComments      int64   `json:"total_comments"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	AvgAIDurationMs    float64 `json:"avg_ai_duration_ms"`
	P50AIDurationMs    int64   `json:"p50_ai_duration_ms"`
	P95AIDurationMs    int64   `json:"p95_ai_duration_ms"`
}

type RepositoryStats struct {
	RepositoryID   uint    `json:"repository_id"`
	RepositoryName string  `json:"repository_name"`
	RunCount       int64   `json:"run_count"`
	CommentCount   int64   `json:"comment_count"`
	FilesTotal     int64   `json:"files_total"`
	FilesCached    int64   `json:"files_cached"`
	CacheEntries   int64   `json:"cache_entries"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
}

type AuthorStats struct {
	Author       string `json:"author"`
	RunCount     int64  `json:"run_count"`
	CommentCount int64  `json:"comment_count"`
}

type DailyTrend struct {
	Day          string `json:"day"`
	RunCount     int64  `json:"run_count"`
	FilesTotal   int64  `json:"files_total"`
	FilesCached  int64  `json:"files_cached"`
	CommentCount int64  `json:"comment_count"`
}

type DashboardResponse struct {
	Stats           DashboardStats    `json:"stats"`
	RepositoryStats []RepositoryStats `json:"repository_stats"`
	AuthorStats     []AuthorStats     `json:"author_stats"`
	DailyTrend      []DailyTrend      `json:"daily_trend"`
}

func (s *DashboardService) GetStats(req *DashboardStatsRequest) (*DashboardResponse, error) {
	var startDate, endDate time.Time
	var err error

	if req.StartDate != "" {
		startDate, err = time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			startDate = time.Now().AddDate(0, 0, -7)
		}
	} else {
		startDate = time.Now().AddDate(0, 0, -7)
	}

	if req.EndDate != "" {
		endDate, err = time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			endDate = time.Now()
		}
		endDate = endDate.Add(24*time.Hour - time.Second)
	} else {
		endDate = time.Now()
	}

	var stats DashboardStats

	s.db.Model(&models.ReviewRun{}).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Distinct("repository_id").
		Count(&stats.ActiveRepositories)

	s.db.Model(&models.ReviewRun{}).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Distinct("author").
		Count(&stats.Authors)

	s.db.Model(&models.ReviewRun{}).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Count(&stats.TotalRuns)

	s.db.Model(&models.ReviewRun{}).
		Where("created_at BETWEEN ? AND ? AND status = ?", startDate, endDate, models.RunStatusFailed).
		Count(&stats.FailedRuns)

	s.db.Model(&models.ReviewRun{}).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Select("COALESCE(SUM(comment_count), 0)").
		Scan(&stats.TotalComments)

	var totals struct {
		FilesTotal  int64
		FilesCached int64
	}
	s.db.Model(&models.ReviewRun{}).
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Select("COALESCE(SUM(files_total), 0) as files_total, COALESCE(SUM(files_cached), 0) as files_cached").
		Scan(&totals)
	if totals.FilesTotal > 0 {
		stats.CacheHitRate = float64(totals.FilesCached) / float64(totals.FilesTotal)
	}

	s.db.Model(&models.ReviewRun{}).
		Where("created_at BETWEEN ? AND ? AND ai_duration_ms > 0", startDate, endDate).
		Select("COALESCE(AVG(ai_duration_ms), 0)").
		Scan(&stats.AvgAIDurationMs)

	stats.P50AIDurationMs, stats.P95AIDurationMs = s.aiDurationPercentiles(startDate, endDate)

	var repoStats []RepositoryStats
	s.db.Model(&models.ReviewRun{}).
		Select("repository_id, COUNT(*) as run_count, COALESCE(SUM(comment_count), 0) as comment_count, COALESCE(SUM(files_total), 0) as files_total, COALESCE(SUM(files_cached), 0) as files_cached").
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("repository_id").
		Order("run_count DESC").
		Limit(10).
		Scan(&repoStats)

	for i := range repoStats {
		var repo models.Repository
		if err := s.db.First(&repo, repoStats[i].RepositoryID).Error; err == nil {
			repoStats[i].RepositoryName = repo.FullName
		}
		if repoStats[i].FilesTotal > 0 {
			repoStats[i].CacheHitRate = float64(repoStats[i].FilesCached) / float64(repoStats[i].FilesTotal)
		}
		s.db.Model(&models.ReviewCacheEntry{}).
			Where("repository_id = ?", repoStats[i].RepositoryID).
			Count(&repoStats[i].CacheEntries)
	}

	var authorStats []AuthorStats
	s.db.Model(&models.ReviewRun{}).
		Select("author, COUNT(*) as run_count, COALESCE(SUM(comment_count), 0) as comment_count").
		Where("created_at BETWEEN ? AND ? AND author != ''", startDate, endDate).
		Group("author").
		Order("run_count DESC").
		Limit(10).
		Scan(&authorStats)

	var trend []DailyTrend
	s.db.Model(&models.ReviewRun{}).
		Select("DATE(created_at) as day, COUNT(*) as run_count, COALESCE(SUM(files_total), 0) as files_total, COALESCE(SUM(files_cached), 0) as files_cached, COALESCE(SUM(comment_count), 0) as comment_count").
		Where("created_at BETWEEN ? AND ?", startDate, endDate).
		Group("DATE(created_at)").
		Order("day ASC").
		Scan(&trend)

	return &DashboardResponse{
		Stats:           stats,
		RepositoryStats: repoStats,
		AuthorStats:     authorStats,
		DailyTrend:      trend,
	}, nil
}

// aiDurationPercentiles computes p50/p95 over completed runs in the window.
// Percentile SQL is not portable across the three supported databases, so
// the durations are sorted in memory.
func (s *DashboardService) aiDurationPercentiles(startDate, endDate time.Time) (p50, p95 int64) {
	var durations []int64
	s.db.Model(&models.ReviewRun{}).
		Where("created_at BETWEEN ? AND ? AND ai_duration_ms > 0", startDate, endDate).
		Order("ai_duration_ms ASC").
		Pluck("ai_duration_ms", &durations)
	if len(durations) == 0 {
		return 0, 0
	}
	p50 = durations[len(durations)/2]
	p95 = durations[(len(durations)*95)/100]
	return p50, p95
}
