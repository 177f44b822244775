package services

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

// FileFragment is one file's contribution to a pull-request diff: the
// "diff --git" header line plus every hunk line up to the next header.
type FileFragment struct {
	Path      string // new path, a/ b/ prefixes stripped
	OldPath   string
	NewPath   string
	RawText   string
	Additions int
	Deletions int
}

var diffHeaderPattern = regexp.MustCompile(`(?m)^diff --git a/(.+?) b/(.+?)$`)

// SplitDiff splits a unified multi-file diff into ordered per-file fragments.
// When the same path starts more than one block (concatenated or malformed
// diffs), the later block replaces the earlier one at its original position.
func SplitDiff(diff string) []FileFragment {
	indices := diffHeaderPattern.FindAllStringIndex(diff, -1)

	if len(indices) == 0 {
		// No standard diff headers. A blank input yields nothing; anything
		// else is kept as a single unattributed fragment so it still gets
		// reviewed.
		if strings.TrimSpace(diff) == "" {
			return nil
		}
		return []FileFragment{{
			Path:    "unknown",
			RawText: diff,
		}}
	}

	var fragments []FileFragment
	byPath := make(map[string]int)

	for i, idx := range indices {
		start := idx[0]
		end := len(diff)
		if i+1 < len(indices) {
			end = indices[i+1][0]
		}

		block := diff[start:end]
		matches := diffHeaderPattern.FindStringSubmatch(block)

		var oldPath, newPath string
		if len(matches) >= 3 {
			oldPath = matches[1]
			newPath = matches[2]
		}

		path := newPath
		if path == "" {
			path = oldPath
		}

		additions, deletions := countChanges(block)

		frag := FileFragment{
			Path:      path,
			OldPath:   oldPath,
			NewPath:   newPath,
			RawText:   block,
			Additions: additions,
			Deletions: deletions,
		}

		if pos, seen := byPath[path]; seen {
			fragments[pos] = frag
			continue
		}
		byPath[path] = len(fragments)
		fragments = append(fragments, frag)
	}

	return fragments
}

func countChanges(block string) (additions, deletions int) {
	for _, line := range strings.Split(block, "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			additions++
		} else if strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---") {
			deletions++
		}
	}
	return
}

// ReconstructDiff rebuilds a unified diff string from fragments, preserving
// order. For fragments produced by SplitDiff from a well-formed diff the
// result is byte-identical to the input.
func ReconstructDiff(fragments []FileFragment) string {
	var builder strings.Builder
	for _, frag := range fragments {
		builder.WriteString(frag.RawText)
	}
	return builder.String()
}

// Fingerprint returns the SHA-256 hex digest of a fragment's raw text. Any
// byte difference, whitespace included, produces a different digest.
func Fingerprint(fragmentText string) string {
	h := sha256.Sum256([]byte(fragmentText))
	return fmt.Sprintf("%x", h)
}
