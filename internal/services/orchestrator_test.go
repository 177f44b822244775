package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/patchpilot/patchpilot/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Repository{},
		&models.ReviewRun{},
		&models.ReviewCacheEntry{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func createTestRepo(t *testing.T, db *gorm.DB, enabled bool) *models.Repository {
	t.Helper()
	repo := &models.Repository{
		Name:           "demo",
		FullName:       "acme/demo",
		URL:            "https://github.com/acme/demo",
		Enabled:        enabled,
		CommentEnabled: true,
	}
	if err := db.Create(repo).Error; err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	return repo
}

// fakeReviewer records batch calls and returns a canned result.
type fakeReviewer struct {
	calls   int
	batches []string
	result  *BatchReviewResult
	err     error
}

func (f *fakeReviewer) ReviewBatch(ctx context.Context, req *BatchReviewRequest) (*BatchReviewResult, error) {
	f.calls++
	f.batches = append(f.batches, req.Diffs)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &BatchReviewResult{}, nil
}

// fakePublisher records published comments.
type fakePublisher struct {
	lineComments []LineComment
	summaries    []string
	lineErr      error
}

func (f *fakePublisher) PublishLineComments(ctx context.Context, repo *models.Repository, prNumber int, headSHA string, comments []LineComment) (int, error) {
	if f.lineErr != nil {
		return 0, f.lineErr
	}
	f.lineComments = append(f.lineComments, comments...)
	return len(comments), nil
}

func (f *fakePublisher) PublishSummary(ctx context.Context, repo *models.Repository, prNumber int, body string) error {
	f.summaries = append(f.summaries, body)
	return nil
}

// fakeRepoLookup serves one repository without a database.
type fakeRepoLookup struct {
	repo *models.Repository
	err  error
}

func (f *fakeRepoLookup) GetByID(id uint) (*models.Repository, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.repo, nil
}

// failingRunRecorder refuses every write.
type failingRunRecorder struct {
	attempts int
}

func (f *failingRunRecorder) Record(run *models.ReviewRun) error {
	f.attempts++
	return errors.New("run store unavailable")
}

func newTestOrchestrator(t *testing.T, db *gorm.DB, reviewer *fakeReviewer, publisher *fakePublisher) *ReviewOrchestrator {
	t.Helper()
	return NewReviewOrchestrator(
		NewRepositoryService(db),
		NewReviewRunService(db),
		NewReviewCacheService(db),
		reviewer,
		publisher,
	)
}

func testRequest(repoID uint, diff string) *ReviewRequest {
	return &ReviewRequest{
		RunID:        "11111111-2222-3333-4444-555555555555",
		RepositoryID: repoID,
		PRNumber:     7,
		HeadSHA:      "abcdef1234567890",
		Branch:       "feature/x",
		Author:       "dev",
		Title:        "Add feature",
		Diff:         diff,
	}
}

func TestOrchestratorColdCache(t *testing.T) {
	db := setupTestDB(t)
	repo := createTestRepo(t, db, true)
	reviewer := &fakeReviewer{result: &BatchReviewResult{Comments: []LineComment{
		{File: "main.go", Line: 3, Comment: "unchecked error"},
	}}}
	publisher := &fakePublisher{}
	o := newTestOrchestrator(t, db, reviewer, publisher)

	run, err := o.Run(context.Background(), testRequest(repo.ID, twoFileDiff))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != models.RunStatusCompleted {
		t.Errorf("Status = %q, want completed", run.Status)
	}
	if run.FilesTotal != 2 || run.FilesCached != 0 {
		t.Errorf("FilesTotal/FilesCached = %d/%d, want 2/0", run.FilesTotal, run.FilesCached)
	}
	if reviewer.calls != 1 {
		t.Errorf("reviewer calls = %d, want exactly 1", reviewer.calls)
	}
	if run.CommentCount != 1 {
		t.Errorf("CommentCount = %d, want 1", run.CommentCount)
	}
	if len(publisher.lineComments) != 1 {
		t.Errorf("published comments = %d, want 1", len(publisher.lineComments))
	}

	// Both files are cached afterwards, including the clean one
	var cacheCount int64
	db.Model(&models.ReviewCacheEntry{}).Count(&cacheCount)
	if cacheCount != 2 {
		t.Errorf("cache entries = %d, want 2", cacheCount)
	}
}

func TestOrchestratorWarmCacheSkipsAI(t *testing.T) {
	db := setupTestDB(t)
	repo := createTestRepo(t, db, true)
	reviewer := &fakeReviewer{result: &BatchReviewResult{Comments: []LineComment{
		{File: "main.go", Line: 3, Comment: "unchecked error"},
	}}}
	o := newTestOrchestrator(t, db, reviewer, &fakePublisher{})

	if _, err := o.Run(context.Background(), testRequest(repo.ID, twoFileDiff)); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	publisher := &fakePublisher{}
	o2 := newTestOrchestrator(t, db, reviewer, publisher)
	run, err := o2.Run(context.Background(), testRequest(repo.ID, twoFileDiff))
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if reviewer.calls != 1 {
		t.Errorf("reviewer calls = %d, want 1 (warm cache rerun must not call the AI)", reviewer.calls)
	}
	if run.FilesTotal != 2 || run.FilesCached != 2 {
		t.Errorf("FilesTotal/FilesCached = %d/%d, want 2/2", run.FilesTotal, run.FilesCached)
	}
	// Same output as the first run, now entirely from cache
	if len(publisher.lineComments) != 1 || publisher.lineComments[0].Comment != "unchecked error" {
		t.Errorf("published comments = %+v, want the cached comment", publisher.lineComments)
	}
}

func TestOrchestratorPartialRecompute(t *testing.T) {
	db := setupTestDB(t)
	repo := createTestRepo(t, db, true)
	reviewer := &fakeReviewer{}
	o := newTestOrchestrator(t, db, reviewer, &fakePublisher{})

	if _, err := o.Run(context.Background(), testRequest(repo.ID, twoFileDiff)); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// Change only main.go; helper.go stays identical
	changed := "diff --git a/main.go b/main.go\n+entirely new content\n" +
		"diff --git a/util/helper.go b/util/helper.go\nindex aaaaaaa..bbbbbbb 100644\n--- a/util/helper.go\n+++ b/util/helper.go\n@@ -10,2 +10,3 @@\n func Helper() {\n+\t// noop\n }\n"

	run, err := o.Run(context.Background(), testRequest(repo.ID, changed))
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if run.FilesTotal != 2 || run.FilesCached != 1 {
		t.Errorf("FilesTotal/FilesCached = %d/%d, want 2/1", run.FilesTotal, run.FilesCached)
	}
	if reviewer.calls != 2 {
		t.Fatalf("reviewer calls = %d, want 2", reviewer.calls)
	}
	// Only the changed file goes to the AI
	lastBatch := reviewer.batches[len(reviewer.batches)-1]
	if !strings.Contains(lastBatch, "main.go") || strings.Contains(lastBatch, "helper.go") {
		t.Errorf("second batch should contain only main.go, got:\n%s", lastBatch)
	}
}

func TestOrchestratorEmptyDiff(t *testing.T) {
	db := setupTestDB(t)
	repo := createTestRepo(t, db, true)
	reviewer := &fakeReviewer{}
	publisher := &fakePublisher{}
	o := newTestOrchestrator(t, db, reviewer, publisher)

	run, err := o.Run(context.Background(), testRequest(repo.ID, ""))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != models.RunStatusCompleted {
		t.Errorf("Status = %q, want completed", run.Status)
	}
	if run.FilesTotal != 0 {
		t.Errorf("FilesTotal = %d, want 0", run.FilesTotal)
	}
	if reviewer.calls != 0 {
		t.Errorf("reviewer calls = %d, want 0", reviewer.calls)
	}
	if len(publisher.lineComments) != 0 || len(publisher.summaries) != 0 {
		t.Error("nothing should be published for an empty diff")
	}
}

func TestOrchestratorDisabledRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := createTestRepo(t, db, false)
	reviewer := &fakeReviewer{}
	o := newTestOrchestrator(t, db, reviewer, &fakePublisher{})

	run, err := o.Run(context.Background(), testRequest(repo.ID, twoFileDiff))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != models.RunStatusSkipped {
		t.Errorf("Status = %q, want skipped", run.Status)
	}
	if reviewer.calls != 0 {
		t.Errorf("reviewer calls = %d, want 0", reviewer.calls)
	}
}

func TestOrchestratorFallbackReview(t *testing.T) {
	db := setupTestDB(t)
	repo := createTestRepo(t, db, true)
	reviewer := &fakeReviewer{result: &BatchReviewResult{
		Fallback:     true,
		FallbackText: "Looks fine overall.",
	}}
	publisher := &fakePublisher{}
	o := newTestOrchestrator(t, db, reviewer, publisher)

	run, err := o.Run(context.Background(), testRequest(repo.ID, twoFileDiff))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !run.Fallback {
		t.Error("run should be flagged as fallback")
	}
	if len(publisher.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(publisher.summaries))
	}

	// Unattributable output must not poison the cache
	var cacheCount int64
	db.Model(&models.ReviewCacheEntry{}).Count(&cacheCount)
	if cacheCount != 0 {
		t.Errorf("cache entries = %d, want 0 after fallback", cacheCount)
	}
}

func TestOrchestratorReviewerFailure(t *testing.T) {
	db := setupTestDB(t)
	repo := createTestRepo(t, db, true)
	reviewer := &fakeReviewer{err: errors.New("backend unavailable")}
	o := newTestOrchestrator(t, db, reviewer, &fakePublisher{})

	run, err := o.Run(context.Background(), testRequest(repo.ID, twoFileDiff))
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if run.Status != models.RunStatusFailed {
		t.Errorf("Status = %q, want failed", run.Status)
	}
	if run.ErrorMessage == "" {
		t.Error("ErrorMessage should be recorded")
	}

	var cacheCount int64
	db.Model(&models.ReviewCacheEntry{}).Count(&cacheCount)
	if cacheCount != 0 {
		t.Errorf("cache entries = %d, want 0 after failure", cacheCount)
	}
}

func TestOrchestratorOrphanedCommentsNotCached(t *testing.T) {
	db := setupTestDB(t)
	repo := createTestRepo(t, db, true)
	reviewer := &fakeReviewer{result: &BatchReviewResult{Comments: []LineComment{
		{File: "main.go", Line: 3, Comment: "real finding"},
		{File: "does_not_exist.go", Line: 1, Comment: "phantom finding"},
	}}}
	publisher := &fakePublisher{}
	o := newTestOrchestrator(t, db, reviewer, publisher)

	run, err := o.Run(context.Background(), testRequest(repo.ID, twoFileDiff))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Both comments reach the reader
	if run.CommentCount != 2 {
		t.Errorf("CommentCount = %d, want 2", run.CommentCount)
	}
	if len(publisher.lineComments) != 2 {
		t.Errorf("published comments = %d, want 2", len(publisher.lineComments))
	}

	// But the phantom file never enters the cache
	var orphaned int64
	db.Model(&models.ReviewCacheEntry{}).
		Where("file_path = ?", "does_not_exist.go").Count(&orphaned)
	if orphaned != 0 {
		t.Error("orphaned comment was cached")
	}
}

func TestOrchestratorPublishFailureDoesNotFailRun(t *testing.T) {
	db := setupTestDB(t)
	repo := createTestRepo(t, db, true)
	reviewer := &fakeReviewer{result: &BatchReviewResult{Comments: []LineComment{
		{File: "main.go", Line: 3, Comment: "finding"},
	}}}
	publisher := &fakePublisher{lineErr: errors.New("github unavailable")}
	o := newTestOrchestrator(t, db, reviewer, publisher)

	run, err := o.Run(context.Background(), testRequest(repo.ID, twoFileDiff))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != models.RunStatusCompleted {
		t.Errorf("Status = %q, want completed despite publish failure", run.Status)
	}
	if run.CommentsPosted != 0 {
		t.Errorf("CommentsPosted = %d, want 0", run.CommentsPosted)
	}
}

func TestOrchestratorRunRecorderFailureDoesNotFailRun(t *testing.T) {
	db := setupTestDB(t)
	lookup := &fakeRepoLookup{repo: &models.Repository{
		FullName:       "acme/demo",
		Enabled:        true,
		CommentEnabled: true,
	}}
	recorder := &failingRunRecorder{}
	reviewer := &fakeReviewer{result: &BatchReviewResult{Comments: []LineComment{
		{File: "main.go", Line: 3, Comment: "finding"},
	}}}
	publisher := &fakePublisher{}
	o := NewReviewOrchestrator(lookup, recorder, NewReviewCacheService(db), reviewer, publisher)

	run, err := o.Run(context.Background(), testRequest(1, twoFileDiff))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Status != models.RunStatusCompleted {
		t.Errorf("Status = %q, want completed despite recorder failure", run.Status)
	}
	if recorder.attempts < 2 {
		t.Errorf("recorder attempts = %d, want at least start and completion", recorder.attempts)
	}
	if reviewer.calls != 1 {
		t.Errorf("reviewer calls = %d, want 1", reviewer.calls)
	}
	if len(publisher.lineComments) != 1 {
		t.Errorf("published comments = %d, want 1", len(publisher.lineComments))
	}
}
