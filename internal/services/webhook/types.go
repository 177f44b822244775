package webhook

import "fmt"

// PullRequestEvent represents a GitHub pull request webhook event
type PullRequestEvent struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
		Body  string `json:"body"`
		State string `json:"state"`
		Head  struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"head"`
		Base struct {
			Ref string `json:"ref"`
		} `json:"base"`
		User struct {
			Login     string `json:"login"`
			AvatarURL string `json:"avatar_url"`
			HTMLURL   string `json:"html_url"`
		} `json:"user"`
		HTMLURL string `json:"html_url"`
	} `json:"pull_request"`
	Repository struct {
		ID       int    `json:"id"`
		Name     string `json:"name"`
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// Validate checks that the event carries everything a review pass needs
func (e *PullRequestEvent) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("missing action")
	}
	if e.Number <= 0 {
		return fmt.Errorf("missing pull request number")
	}
	if e.PullRequest.Head.SHA == "" {
		return fmt.Errorf("missing head SHA")
	}
	if e.Repository.FullName == "" {
		return fmt.Errorf("missing repository full name")
	}
	return nil
}

// PingEvent represents a GitHub ping webhook event
type PingEvent struct {
	Zen    string `json:"zen"`
	HookID int    `json:"hook_id"`
}

// ReviewStatusResponse reports the state of one review run
type ReviewStatusResponse struct {
	RunID          string `json:"run_id"`
	Status         string `json:"status"`
	FilesTotal     int    `json:"files_total"`
	FilesCached    int    `json:"files_cached"`
	CommentCount   int    `json:"comment_count"`
	CommentsPosted int    `json:"comments_posted"`
	Message        string `json:"message,omitempty"`
}
