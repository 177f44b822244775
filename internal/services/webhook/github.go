package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/patchpilot/patchpilot/internal/models"
	"github.com/patchpilot/patchpilot/internal/services"
	"github.com/patchpilot/patchpilot/pkg/logger"
)

// HandleGitHubWebhook processes a GitHub webhook event for a registered
// repository. The webhook body has already been signature-verified.
func (s *Service) HandleGitHubWebhook(ctx context.Context, repositoryID uint, eventType string, body []byte) (string, error) {
	repo, err := s.repoService.GetByID(repositoryID)
	if err != nil {
		return "", fmt.Errorf("repository not found: %w", err)
	}

	switch eventType {
	case "ping":
		var event PingEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return "", err
		}
		logger.Infof("[Webhook] Ping from hook %d: %s", event.HookID, event.Zen)
		return "", nil

	case "pull_request":
		var event PullRequestEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return "", err
		}
		if err := event.Validate(); err != nil {
			return "", fmt.Errorf("invalid pull_request event: %w", err)
		}
		return s.processPullRequest(ctx, repo, &event)
	}

	logger.Debug().Str("event", eventType).Msg("Ignoring unhandled webhook event")
	return "", nil
}

func (s *Service) processPullRequest(ctx context.Context, repo *models.Repository, event *PullRequestEvent) (string, error) {
	switch event.Action {
	case "opened", "synchronize", "reopened":
	default:
		logger.Infof("[Webhook] Ignoring pull_request action %q for %s#%d", event.Action, repo.FullName, event.Number)
		return "", nil
	}

	if !repo.Enabled {
		logger.Infof("[Webhook] Repository %s disabled, skipping PR #%d", repo.FullName, event.Number)
		return "", nil
	}

	if isBranchIgnored(event.PullRequest.Head.Ref, repo.BranchFilter) {
		logger.Infof("[Webhook] Branch %s is filtered, skipping PR #%d", event.PullRequest.Head.Ref, event.Number)
		return "", nil
	}

	diff, err := s.getPRDiff(repo, event.Number)
	if err != nil {
		return "", fmt.Errorf("failed to fetch PR diff: %w", err)
	}

	runID := uuid.NewString()
	task := &services.ReviewTask{
		RunID:        runID,
		RepositoryID: repo.ID,
		PRNumber:     event.Number,
		PRURL:        event.PullRequest.HTMLURL,
		HeadSHA:      event.PullRequest.Head.SHA,
		Branch:       event.PullRequest.Head.Ref,
		Author:       event.PullRequest.User.Login,
		Title:        event.PullRequest.Title,
		Diff:         diff,
	}

	if err := services.GetTaskQueue().Enqueue(task); err != nil {
		return "", fmt.Errorf("failed to enqueue review task: %w", err)
	}

	logger.Infof("[Webhook] Review task enqueued: run=%s, repo=%s, PR #%d, head=%s",
		runID, repo.FullName, event.Number, shortSHA(event.PullRequest.Head.SHA))
	return runID, nil
}

func (s *Service) getPRDiff(repo *models.Repository, prNumber int) (string, error) {
	info, err := parseRepoInfo(repo.URL)
	if err != nil {
		return "", err
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", s.apiBase(info), info.owner, info.repo, prNumber)

	req, _ := http.NewRequest("GET", apiURL, nil)
	req.Header.Set("Accept", "application/vnd.github.v3.diff")
	if repo.AccessToken != "" {
		req.Header.Set("Authorization", "token "+repo.AccessToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API returned status %d: %s", resp.StatusCode, string(body))
	}

	logger.Infof("[Webhook] Fetched PR #%d diff: %d bytes", prNumber, len(body))
	return string(body), nil
}

func (s *Service) apiBase(info *repoInfo) string {
	// GitHub Enterprise serves the API under /api/v3
	if info.baseURL != "https://github.com" {
		return info.baseURL + "/api/v3"
	}
	return "https://api.github.com"
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
