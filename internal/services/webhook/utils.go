package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/patchpilot/patchpilot/internal/services"
)

type repoInfo struct {
	owner   string
	repo    string
	baseURL string
}

func parseRepoInfo(repoURL string) (*repoInfo, error) {
	urlStr := strings.TrimSuffix(repoURL, ".git")

	protocolIdx := strings.Index(urlStr, "://")
	if protocolIdx == -1 {
		return nil, fmt.Errorf("invalid repository URL (no protocol): %s", repoURL)
	}

	protocol := urlStr[:protocolIdx+3]
	rest := urlStr[protocolIdx+3:]

	slashIdx := strings.Index(rest, "/")
	if slashIdx == -1 {
		return nil, fmt.Errorf("invalid repository URL (no path): %s", repoURL)
	}

	host := rest[:slashIdx]
	path := rest[slashIdx+1:]

	pathParts := strings.Split(path, "/")
	if len(pathParts) < 2 || pathParts[0] == "" || pathParts[1] == "" {
		return nil, fmt.Errorf("invalid repository URL (need owner/repo): %s", repoURL)
	}

	return &repoInfo{
		owner:   pathParts[len(pathParts)-2],
		repo:    pathParts[len(pathParts)-1],
		baseURL: protocol + host,
	}, nil
}

// IsEmptyDiff checks if the diff content has no actual code changes
func IsEmptyDiff(diff string) bool {
	return strings.TrimSpace(diff) == ""
}

func isBranchIgnored(branch string, branchFilter string) bool {
	if branchFilter == "" {
		return false
	}

	for _, pattern := range strings.Split(branchFilter, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if strings.HasSuffix(pattern, "*") {
			prefix := strings.TrimSuffix(pattern, "*")
			if strings.HasPrefix(branch, prefix) {
				return true
			}
		} else if pattern == branch {
			return true
		}
	}
	return false
}

// ParseDiffStats summarizes a unified diff using the same segmentation the
// review pipeline runs on, so webhook logs and run records agree.
func ParseDiffStats(diff string) (additions, deletions, filesChanged int) {
	fragments := services.SplitDiff(diff)
	for _, frag := range fragments {
		additions += frag.Additions
		deletions += frag.Deletions
	}
	return additions, deletions, len(fragments)
}

// VerifyGitHubSignature verifies a GitHub webhook HMAC-SHA256 signature
func VerifyGitHubSignature(secret string, body []byte, signature string) bool {
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedMAC := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.TrimPrefix(signature, "sha256=")), []byte(expectedMAC))
}
