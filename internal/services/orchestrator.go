package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patchpilot/patchpilot/internal/models"
	"github.com/patchpilot/patchpilot/pkg/logger"
)

// ReviewCache is the cache surface the orchestrator depends on. Lookups
// never fail, they miss.
type ReviewCache interface {
	Get(repositoryID uint, filePath, contentHash string) ([]LineComment, bool)
	Put(repositoryID uint, filePath, contentHash string, comments []LineComment)
}

// BatchReviewer produces a review for one batch of diff fragments.
type BatchReviewer interface {
	ReviewBatch(ctx context.Context, req *BatchReviewRequest) (*BatchReviewResult, error)
}

// CommentPublisher delivers review output back to the pull request.
type CommentPublisher interface {
	PublishLineComments(ctx context.Context, repo *models.Repository, prNumber int, headSHA string, comments []LineComment) (int, error)
	PublishSummary(ctx context.Context, repo *models.Repository, prNumber int, body string) error
}

// RepositoryLookup resolves the configuration of the repository under review.
type RepositoryLookup interface {
	GetByID(id uint) (*models.Repository, error)
}

// RunRecorder persists per-pass run records. Recording failures never fail
// the pass itself.
type RunRecorder interface {
	Record(run *models.ReviewRun) error
}

// ReviewRequest is one pull-request review pass.
type ReviewRequest struct {
	RunID        string
	RepositoryID uint
	PRNumber     int
	PRURL        string
	HeadSHA      string
	Branch       string
	Author       string
	Title        string
	Diff         string
	CustomPrompt string
}

// pendingFile is a fragment that missed the cache and still needs AI review.
type pendingFile struct {
	fragment FileFragment
	hash     string
}

// ReviewOrchestrator drives one review pass: segment the diff, partition
// fragments by cache state, review the misses in a single batch call, write
// results back to the cache, publish, and record the run.
type ReviewOrchestrator struct {
	repos     RepositoryLookup
	runs      RunRecorder
	cache     ReviewCache
	reviewer  BatchReviewer
	publisher CommentPublisher
}

func NewReviewOrchestrator(repos RepositoryLookup, runs RunRecorder, cache ReviewCache, reviewer BatchReviewer, publisher CommentPublisher) *ReviewOrchestrator {
	return &ReviewOrchestrator{
		repos:     repos,
		runs:      runs,
		cache:     cache,
		reviewer:  reviewer,
		publisher: publisher,
	}
}

// Run executes one review pass and persists its outcome as a ReviewRun row.
// The returned run always reflects what actually happened, including
// failures.
func (o *ReviewOrchestrator) Run(ctx context.Context, req *ReviewRequest) (*models.ReviewRun, error) {
	run := &models.ReviewRun{
		RunID:        req.RunID,
		RepositoryID: req.RepositoryID,
		PRNumber:     req.PRNumber,
		PRURL:        req.PRURL,
		HeadSHA:      req.HeadSHA,
		Branch:       req.Branch,
		Author:       req.Author,
		Title:        req.Title,
		Status:       models.RunStatusAnalyzing,
	}
	o.record(run)

	repo, err := o.repos.GetByID(req.RepositoryID)
	if err != nil {
		return o.fail(run, fmt.Errorf("repository not found: %w", err))
	}
	if !repo.Enabled {
		logger.Infof("[Review %s] Repository %s disabled, skipping", req.RunID, repo.FullName)
		run.Status = models.RunStatusSkipped
		run.ErrorMessage = "repository disabled"
		o.record(run)
		return run, nil
	}

	fragments := SplitDiff(req.Diff)
	run.FilesTotal = len(fragments)
	if len(fragments) == 0 {
		logger.Infof("[Review %s] Empty diff, nothing to review", req.RunID)
		run.Status = models.RunStatusCompleted
		o.record(run)
		return run, nil
	}

	// Partition fragments by cache state. Every fragment lands on exactly
	// one side, so FilesTotal always equals FilesCached plus the pending
	// count.
	cachedComments := make([]LineComment, 0)
	var pending []pendingFile
	for _, frag := range fragments {
		hash := Fingerprint(frag.RawText)
		if comments, ok := o.cache.Get(req.RepositoryID, frag.Path, hash); ok {
			run.FilesCached++
			cachedComments = append(cachedComments, comments...)
			continue
		}
		pending = append(pending, pendingFile{fragment: frag, hash: hash})
	}

	logger.Infof("[Review %s] %d files total, %d cached, %d pending",
		req.RunID, run.FilesTotal, run.FilesCached, len(pending))

	newComments, fallbackText, err := o.reviewPending(ctx, req, run, pending)
	if err != nil {
		return o.fail(run, err)
	}

	allComments := append(cachedComments, newComments...)
	run.CommentCount = len(allComments)
	if fallbackText != "" {
		run.CommentCount++
	}

	o.publish(ctx, req, run, repo, allComments, fallbackText)

	run.Status = models.RunStatusCompleted
	o.record(run)
	logger.Infof("[Review %s] Completed: %d comments (%d posted), cache %d/%d",
		req.RunID, run.CommentCount, run.CommentsPosted, run.FilesCached, run.FilesTotal)
	return run, nil
}

// reviewPending performs the single batch AI call for the cache misses and
// writes every result back to the cache, including empty results for files
// the reviewer had nothing to say about.
func (o *ReviewOrchestrator) reviewPending(ctx context.Context, req *ReviewRequest, run *models.ReviewRun, pending []pendingFile) ([]LineComment, string, error) {
	if len(pending) == 0 {
		logger.Infof("[Review %s] Warm cache, no AI call needed", req.RunID)
		return nil, "", nil
	}

	var batch strings.Builder
	pendingPaths := make(map[string]bool, len(pending))
	for _, p := range pending {
		batch.WriteString(p.fragment.RawText)
		pendingPaths[p.fragment.Path] = true
	}

	start := time.Now()
	result, err := o.reviewer.ReviewBatch(ctx, &BatchReviewRequest{
		RepositoryID: req.RepositoryID,
		Diffs:        batch.String(),
		CustomPrompt: req.CustomPrompt,
	})
	run.AIDurationMs = time.Since(start).Milliseconds()
	if err != nil {
		return nil, "", fmt.Errorf("batch review failed: %w", err)
	}

	if result.Fallback {
		// Free text cannot be attributed to files, so nothing is cached
		// and the next pass pays for these files again.
		run.Fallback = true
		logger.Warnf("[Review %s] Unstructured review response, skipping cache write-back", req.RunID)
		return nil, result.FallbackText, nil
	}

	byFile := make(map[string][]LineComment)
	var merged []LineComment
	for _, c := range result.Comments {
		if !pendingPaths[c.File] {
			// The reviewer attributed a comment to a file outside this
			// batch. Keep it for the reader, never cache it.
			logger.Warnf("[Review %s] Comment for unexpected file %q kept but not cached", req.RunID, c.File)
			merged = append(merged, c)
			continue
		}
		byFile[c.File] = append(byFile[c.File], c)
		merged = append(merged, c)
	}

	for _, p := range pending {
		o.cache.Put(req.RepositoryID, p.fragment.Path, p.hash, byFile[p.fragment.Path])
	}

	return merged, "", nil
}

// publish posts the review to the pull request. Delivery failures are
// recorded but never fail the run: the review itself succeeded.
func (o *ReviewOrchestrator) publish(ctx context.Context, req *ReviewRequest, run *models.ReviewRun, repo *models.Repository, comments []LineComment, fallbackText string) {
	if !repo.CommentEnabled {
		logger.Infof("[Review %s] Comment publishing disabled for %s", req.RunID, repo.FullName)
		return
	}
	if len(comments) == 0 && fallbackText == "" {
		return
	}

	start := time.Now()
	defer func() {
		run.PostDurationMs = time.Since(start).Milliseconds()
	}()

	if len(comments) > 0 {
		posted, err := o.publisher.PublishLineComments(ctx, repo, req.PRNumber, req.HeadSHA, comments)
		run.CommentsPosted += posted
		if err != nil {
			logger.Warnf("[Review %s] Posted %d/%d line comments: %v", req.RunID, posted, len(comments), err)
		}
	}

	if fallbackText != "" {
		if err := o.publisher.PublishSummary(ctx, repo, req.PRNumber, fallbackText); err != nil {
			logger.Warnf("[Review %s] Summary comment failed: %v", req.RunID, err)
		} else {
			run.CommentsPosted++
		}
	}
}

func (o *ReviewOrchestrator) fail(run *models.ReviewRun, err error) (*models.ReviewRun, error) {
	logger.Errorf("[Review %s] Failed: %v", run.RunID, err)
	run.Status = models.RunStatusFailed
	run.ErrorMessage = err.Error()
	o.record(run)
	return run, err
}

// record hands the run to the recorder. A sink that cannot persist must not
// turn a finished review into a failure.
func (o *ReviewOrchestrator) record(run *models.ReviewRun) {
	if err := o.runs.Record(run); err != nil {
		logger.Warnf("[Review %s] Run record not persisted: %v", run.RunID, err)
	}
}
