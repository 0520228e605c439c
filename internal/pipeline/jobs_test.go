package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/codebook/internal/classify"
	"github.com/dgallion1/codebook/internal/parser"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestNewJob(t *testing.T) {
	a := NewJob("codebook.html", "zoning", []byte("hello world"))
	b := NewJob("codebook.html", "parking", []byte("hello world"))

	if a.Status != StatusQueued {
		t.Errorf("expected queued, got %q", a.Status)
	}
	if a.DocID != "b94d27b9934d3e08" {
		t.Errorf("expected doc id from content hash, got %q", a.DocID)
	}
	if a.DocID != b.DocID {
		t.Error("same content should map to the same document")
	}
	if a.ID == b.ID || a.ID == "" {
		t.Errorf("expected distinct job ids, got %q and %q", a.ID, b.ID)
	}
	if string(a.Document()) != "hello world" {
		t.Errorf("unexpected document %q", a.Document())
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	for _, status := range []JobStatus{StatusParsing, StatusClassifying, StatusCompleted} {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(status)

		if job.Status != status {
			t.Errorf("expected status %q, got %q", status, job.Status)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", status)
		}
	}
}

func TestJob_Fail(t *testing.T) {
	job := &Job{ID: "test-fail", Status: StatusClassifying, UpdatedAt: time.Now()}
	job.AddError("save toc: disk full")
	job.Fail(errors.New("reasoner: timeout"))

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if len(snap.Errors) != 2 || snap.Errors[1] != "reasoner: timeout" {
		t.Errorf("unexpected errors %v", snap.Errors)
	}
}

func TestJob_CompleteDropsDocument(t *testing.T) {
	job := NewJob("a.html", "zoning", []byte("<div></div>"))
	job.SetStats(parser.Stats{Titles: 1, Sections: 3})
	job.Complete(&ClassifyResult{
		RelevantSections: []classify.RelevantSection{{SectionID: "a"}, {SectionID: "b"}},
	})

	if job.Document() != nil {
		t.Error("expected raw document to be released")
	}
	snap := job.Snapshot()
	if snap.Status != StatusCompleted || snap.Relevant != 2 || snap.Stats.Sections != 3 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if job.Result() == nil {
		t.Error("expected result to be kept")
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", Status: StatusCompleted, UpdatedAt: time.Now()}
	running := &Job{ID: "running", Status: StatusClassifying, UpdatedAt: time.Now()}
	store.Put(expired)
	store.Put(running)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", Status: StatusFailed, UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("running") == nil {
		t.Error("expected unfinished job to survive cleanup")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 jobs left, got %d", store.Len())
	}
}

func TestJobStatusFinished(t *testing.T) {
	for _, s := range []JobStatus{StatusQueued, StatusParsing, StatusClassifying} {
		if s.Finished() {
			t.Errorf("%s should not be finished", s)
		}
	}
	for _, s := range []JobStatus{StatusCompleted, StatusFailed} {
		if !s.Finished() {
			t.Errorf("%s should be finished", s)
		}
	}
}
