package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/patchpilot/patchpilot/internal/models"
	"github.com/patchpilot/patchpilot/internal/services"
	"github.com/patchpilot/patchpilot/pkg/logger"
)

// PublishLineComments posts review comments on specific diff lines of a pull
// request. Comments GitHub rejects (usually because the line is outside the
// diff) are retried as plain issue comments so no finding is silently lost.
// Returns the number of comments actually delivered.
func (s *Service) PublishLineComments(ctx context.Context, repo *models.Repository, prNumber int, headSHA string, comments []services.LineComment) (int, error) {
	info, err := parseRepoInfo(repo.URL)
	if err != nil {
		return 0, err
	}

	posted := 0
	var failed []services.LineComment
	for _, c := range comments {
		if err := s.postReviewComment(ctx, info, repo.AccessToken, prNumber, headSHA, &c); err != nil {
			logger.Warnf("[Commenter] Line comment failed for %s:%d, will post as issue comment: %v", c.File, c.Line, err)
			failed = append(failed, c)
			continue
		}
		posted++
	}

	if len(failed) > 0 {
		body := formatFallbackComments(failed)
		if err := s.postIssueComment(ctx, info, repo.AccessToken, prNumber, body); err != nil {
			return posted, fmt.Errorf("%d comments could not be delivered: %w", len(failed), err)
		}
		posted++
	}

	return posted, nil
}

// PublishSummary posts a single comment on the pull request conversation
func (s *Service) PublishSummary(ctx context.Context, repo *models.Repository, prNumber int, body string) error {
	info, err := parseRepoInfo(repo.URL)
	if err != nil {
		return err
	}
	return s.postIssueComment(ctx, info, repo.AccessToken, prNumber, "## 🤖 AI Code Review\n\n"+body)
}

func (s *Service) postReviewComment(ctx context.Context, info *repoInfo, token string, prNumber int, headSHA string, c *services.LineComment) error {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments", s.apiBase(info), info.owner, info.repo, prNumber)

	payload := map[string]interface{}{
		"body":      c.Comment,
		"commit_id": headSHA,
		"path":      c.File,
		"side":      "RIGHT",
	}
	if c.Line > 0 {
		payload["line"] = c.Line
	} else {
		// Unattributable to a line, anchor on the file instead
		payload["subject_type"] = "file"
	}

	return s.postJSON(ctx, apiURL, token, payload)
}

func (s *Service) postIssueComment(ctx context.Context, info *repoInfo, token string, prNumber int, body string) error {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", s.apiBase(info), info.owner, info.repo, prNumber)
	return s.postJSON(ctx, apiURL, token, map[string]interface{}{"body": body})
}

func (s *Service) setCommitStatus(repo *models.Repository, sha, state, description string) {
	info, err := parseRepoInfo(repo.URL)
	if err != nil {
		return
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s/statuses/%s", s.apiBase(info), info.owner, info.repo, sha)
	payload := map[string]interface{}{
		"state":       state,
		"context":     "patchpilot/ai-review",
		"description": description,
	}
	if err := s.postJSON(context.Background(), apiURL, repo.AccessToken, payload); err != nil {
		logger.Warnf("[Commenter] Failed to set commit status on %s: %v", shortSHA(sha), err)
	}
}

func (s *Service) postJSON(ctx context.Context, apiURL, token string, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func formatFallbackComments(comments []services.LineComment) string {
	var b strings.Builder
	b.WriteString("## 🤖 AI Code Review\n\nThe following findings could not be attached to diff lines:\n\n")
	for _, c := range comments {
		if c.Line > 0 {
			fmt.Fprintf(&b, "- **%s:%d**: %s\n", c.File, c.Line, c.Comment)
		} else {
			fmt.Fprintf(&b, "- **%s**: %s\n", c.File, c.Comment)
		}
	}
	return b.String()
}
