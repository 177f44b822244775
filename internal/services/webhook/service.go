package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/patchpilot/patchpilot/internal/config"
	"github.com/patchpilot/patchpilot/internal/models"
	"github.com/patchpilot/patchpilot/internal/services"
	"github.com/patchpilot/patchpilot/pkg/logger"
	"gorm.io/gorm"
)

// Service handles GitHub webhook events and drives review runs
type Service struct {
	db           *gorm.DB
	repoService  *services.RepositoryService
	runService   *services.ReviewRunService
	orchestrator *services.ReviewOrchestrator
	httpClient   *http.Client
}

// NewService creates a new webhook Service instance
func NewService(db *gorm.DB, aiCfg *config.AIConfig) *Service {
	s := &Service{
		db:          db,
		repoService: services.NewRepositoryService(db),
		runService:  services.NewReviewRunService(db),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}

	cache := services.NewReviewCacheService(db)
	reviewer := services.NewAIService(db, aiCfg)
	s.orchestrator = services.NewReviewOrchestrator(s.repoService, s.runService, cache, reviewer, s)
	return s
}

// ProcessReviewTask processes a review task from the queue
func (s *Service) ProcessReviewTask(ctx context.Context, task *services.ReviewTask) error {
	run, err := s.orchestrator.Run(ctx, &services.ReviewRequest{
		RunID:        task.RunID,
		RepositoryID: task.RepositoryID,
		PRNumber:     task.PRNumber,
		PRURL:        task.PRURL,
		HeadSHA:      task.HeadSHA,
		Branch:       task.Branch,
		Author:       task.Author,
		Title:        task.Title,
		Diff:         task.Diff,
	})
	if err != nil {
		return err
	}

	if repo, repoErr := s.repoService.GetByID(task.RepositoryID); repoErr == nil {
		state := "success"
		desc := fmt.Sprintf("Review completed: %d comments", run.CommentCount)
		switch run.Status {
		case models.RunStatusFailed:
			state = "failure"
			desc = "Review failed"
		case models.RunStatusSkipped:
			desc = "Review skipped"
		}
		s.setCommitStatus(repo, task.HeadSHA, state, desc)
	}

	return nil
}

// RetryRun re-enqueues a failed review run under a fresh run ID. The PR diff
// is fetched again so the retry reviews the branch as it stands now.
func (s *Service) RetryRun(id uint) (string, error) {
	run, err := s.runService.GetByID(id)
	if err != nil {
		return "", fmt.Errorf("review run not found: %w", err)
	}
	if run.Status != models.RunStatusFailed {
		return "", fmt.Errorf("run %s is %s, only failed runs can be retried", run.RunID, run.Status)
	}

	repo, err := s.repoService.GetByID(run.RepositoryID)
	if err != nil {
		return "", fmt.Errorf("repository not found: %w", err)
	}

	diff, err := s.getPRDiff(repo, run.PRNumber)
	if err != nil {
		return "", fmt.Errorf("failed to fetch PR diff: %w", err)
	}

	runID := uuid.NewString()
	task := &services.ReviewTask{
		RunID:        runID,
		RepositoryID: repo.ID,
		PRNumber:     run.PRNumber,
		PRURL:        run.PRURL,
		HeadSHA:      run.HeadSHA,
		Branch:       run.Branch,
		Author:       run.Author,
		Title:        run.Title,
		Diff:         diff,
	}
	if err := services.GetTaskQueue().Enqueue(task); err != nil {
		return "", fmt.Errorf("failed to enqueue retry task: %w", err)
	}

	logger.Infof("[Webhook] Retry enqueued: run=%s (was %s), repo=%s, PR #%d",
		runID, run.RunID, repo.FullName, run.PRNumber)
	return runID, nil
}

// GetReviewStatus reports the state of a run by its UUID
func (s *Service) GetReviewStatus(runID string) (*ReviewStatusResponse, error) {
	run, err := s.runService.GetByRunID(runID)
	if err != nil {
		return nil, fmt.Errorf("review run not found: %s", runID)
	}

	resp := &ReviewStatusResponse{
		RunID:          run.RunID,
		Status:         run.Status,
		FilesTotal:     run.FilesTotal,
		FilesCached:    run.FilesCached,
		CommentCount:   run.CommentCount,
		CommentsPosted: run.CommentsPosted,
	}

	switch run.Status {
	case models.RunStatusPending, models.RunStatusAnalyzing:
		resp.Message = "Review in progress"
	case models.RunStatusCompleted:
		resp.Message = "Review completed"
	case models.RunStatusSkipped:
		resp.Message = "Skipped: " + run.ErrorMessage
	case models.RunStatusFailed:
		resp.Message = "Review failed: " + run.ErrorMessage
	}

	return resp, nil
}
