package webhook

import (
	"encoding/json"
	"testing"
)

const samplePREventJSON = `{
	"action": "opened",
	"number": 42,
	"pull_request": {
		"id": 1001,
		"title": "Add retry handling",
		"body": "Retries transient backend failures.",
		"state": "open",
		"head": {"ref": "feature/retry", "sha": "abc123def456"},
		"base": {"ref": "main"},
		"user": {"login": "octocat", "avatar_url": "", "html_url": ""},
		"html_url": "https://github.com/acme/demo/pull/42"
	},
	"repository": {"id": 7, "name": "demo", "full_name": "acme/demo"}
}`

func TestPullRequestEventUnmarshal(t *testing.T) {
	var event PullRequestEvent
	if err := json.Unmarshal([]byte(samplePREventJSON), &event); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if event.Action != "opened" {
		t.Errorf("Action = %q, want opened", event.Action)
	}
	if event.Number != 42 {
		t.Errorf("Number = %d, want 42", event.Number)
	}
	if event.PullRequest.Head.SHA != "abc123def456" {
		t.Errorf("Head.SHA = %q, want abc123def456", event.PullRequest.Head.SHA)
	}
	if event.PullRequest.Head.Ref != "feature/retry" {
		t.Errorf("Head.Ref = %q, want feature/retry", event.PullRequest.Head.Ref)
	}
	if event.PullRequest.User.Login != "octocat" {
		t.Errorf("User.Login = %q, want octocat", event.PullRequest.User.Login)
	}
	if event.Repository.FullName != "acme/demo" {
		t.Errorf("Repository.FullName = %q, want acme/demo", event.Repository.FullName)
	}
	if err := event.Validate(); err != nil {
		t.Errorf("Validate() on a complete event failed: %v", err)
	}
}

func TestPullRequestEventValidate(t *testing.T) {
	complete := func() PullRequestEvent {
		var e PullRequestEvent
		e.Action = "opened"
		e.Number = 42
		e.PullRequest.Head.SHA = "abc123"
		e.Repository.FullName = "acme/demo"
		return e
	}

	tests := []struct {
		name    string
		mutate  func(*PullRequestEvent)
		wantErr bool
	}{
		{"complete event", func(e *PullRequestEvent) {}, false},
		{"missing action", func(e *PullRequestEvent) { e.Action = "" }, true},
		{"zero number", func(e *PullRequestEvent) { e.Number = 0 }, true},
		{"negative number", func(e *PullRequestEvent) { e.Number = -1 }, true},
		{"missing head SHA", func(e *PullRequestEvent) { e.PullRequest.Head.SHA = "" }, true},
		{"missing repository", func(e *PullRequestEvent) { e.Repository.FullName = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := complete()
			tt.mutate(&event)
			err := event.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
