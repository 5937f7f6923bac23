package gitrepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestArticleRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureArticleRepo("art_1", "# First draft\n", "Morgan"); err != nil {
		t.Fatalf("EnsureArticleRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "art_1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}
	// Re-ensuring an existing repo is a no-op.
	if err := svc.EnsureArticleRepo("art_1", "ignored", "Morgan"); err != nil {
		t.Fatalf("repeat EnsureArticleRepo() error = %v", err)
	}

	rev, err := svc.CommitContent("art_1", "# First draft\n\nWith a body.\n", "Morgan", "Expand body")
	if err != nil {
		t.Fatalf("CommitContent() error = %v", err)
	}
	if rev.Hash == "" {
		t.Fatal("expected revision hash")
	}

	history, err := svc.History("art_1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(history))
	}
	if history[0].Message != "Expand body" {
		t.Fatalf("unexpected head revision: %+v", history[0])
	}

	content, err := svc.GetContentByHash("art_1", rev.Hash)
	if err != nil {
		t.Fatalf("GetContentByHash() error = %v", err)
	}
	if !strings.Contains(content, "With a body.") {
		t.Fatalf("unexpected content at revision: %q", content)
	}
}

func TestCommitUnchangedContentKeepsHead(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	const body = "# Same\n"
	if err := svc.EnsureArticleRepo("art_1", body, "Morgan"); err != nil {
		t.Fatalf("EnsureArticleRepo() error = %v", err)
	}

	rev, err := svc.CommitContent("art_1", body, "Morgan", "No change")
	if err != nil {
		t.Fatalf("CommitContent() error = %v", err)
	}
	if rev.Hash == "" {
		t.Fatal("expected head revision for no-op save")
	}

	history, err := svc.History("art_1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("no-op save grew history to %d revisions", len(history))
	}
}

func TestConcurrentCommits(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureArticleRepo("art_1", "start\n", "Morgan"); err != nil {
		t.Fatalf("EnsureArticleRepo() error = %v", err)
	}

	const writers = 10
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			body := fmt.Sprintf("revision %02d\n", idx)
			if _, err := svc.CommitContent("art_1", body, "Morgan", fmt.Sprintf("Save %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("CommitContent() concurrent error = %v", err)
	}

	history, err := svc.History("art_1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers+1 {
		t.Fatalf("expected %d revisions, got %d", writers+1, len(history))
	}
}

func TestHistoryUnknownArticle(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.History("art_beef", 10); err == nil {
		t.Fatal("expected error for article without a repo")
	}
	if svc.HasRepo("art_beef") {
		t.Fatal("HasRepo() reported a repo that does not exist")
	}
}

func TestRejectsMalformedArticleID(t *testing.T) {
	baseDir := t.TempDir()
	svc := New(baseDir)

	// Ids that would resolve outside the base directory must never reach
	// the filesystem.
	for _, id := range []string{"../escape", "..", "art_1/../../escape", "art/1", ""} {
		if err := svc.EnsureArticleRepo(id, "body", "Morgan"); !errors.Is(err, errInvalidArticleID) {
			t.Fatalf("EnsureArticleRepo(%q) error = %v, want invalid id", id, err)
		}
		if _, err := svc.CommitContent(id, "body", "Morgan", "msg"); !errors.Is(err, errInvalidArticleID) {
			t.Fatalf("CommitContent(%q) error = %v, want invalid id", id, err)
		}
		if _, err := svc.History(id, 0); !errors.Is(err, errInvalidArticleID) {
			t.Fatalf("History(%q) error = %v, want invalid id", id, err)
		}
		if _, err := svc.GetContentByHash(id, "deadbeef"); !errors.Is(err, errInvalidArticleID) {
			t.Fatalf("GetContentByHash(%q) error = %v, want invalid id", id, err)
		}
		if svc.HasRepo(id) {
			t.Fatalf("HasRepo(%q) = true", id)
		}
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(baseDir), "escape")); err == nil {
		t.Fatal("a repo was created outside the base directory")
	}
}
