package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/codebook/internal/artifact"
	"github.com/dgallion1/codebook/internal/config"
)

func waitFinished(t *testing.T, job *Job) JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap := job.Snapshot(); snap.Status.Finished() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", job.ID)
	return JobSnapshot{}
}

func TestOrchestratorProcessesAndPersists(t *testing.T) {
	store, err := artifact.OpenSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	calls := 0
	o := NewOrchestrator(config.Config{WorkerCount: 1, MaxQueueSize: 4, JobTTL: time.Hour}, cannedPipeline(zoningReply, &calls), store, discard)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("codebook.html", "zoning", []byte(zoningCodebook))
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	snap := waitFinished(t, job)
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", snap.Status, snap.Errors)
	}
	if snap.Relevant != 2 || snap.Stats.Sections != 2 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if o.GetJob(job.ID) != job {
		t.Error("job not registered")
	}

	doc, err := store.LoadTOC(context.Background(), job.DocID)
	if err != nil {
		t.Fatalf("toc not persisted: %v", err)
	}
	if doc.ContentHash != job.ContentHash || len(doc.TableOfContents) != 1 {
		t.Errorf("unexpected stored doc %+v", doc.Meta)
	}
	rel, err := store.LoadRelevance(context.Background(), job.DocID, "zoning")
	if err != nil {
		t.Fatalf("relevance not persisted: %v", err)
	}
	if rel.RelevantSections[0].ConfidenceLevel != 5 {
		t.Errorf("expected sorted sections stored, got %+v", rel.RelevantSections)
	}
}

func TestOrchestratorFailedJob(t *testing.T) {
	calls := 0
	o := NewOrchestrator(config.Config{WorkerCount: 2, MaxQueueSize: 4, JobTTL: time.Hour}, cannedPipeline("nothing useful", &calls), nil, discard)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("codebook.html", "zoning", []byte(zoningCodebook))
	if err := o.Submit(job); err != nil {
		t.Fatal(err)
	}
	snap := waitFinished(t, job)
	if snap.Status != StatusFailed || len(snap.Errors) != 1 {
		t.Errorf("expected failed job with one error, got %+v", snap)
	}
	if job.Result() != nil {
		t.Error("failed job must not carry a result")
	}
}

func TestOrchestratorQueueFullAndStopped(t *testing.T) {
	calls := 0
	// Not started: nothing drains the queue.
	o := NewOrchestrator(config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}, cannedPipeline("[]", &calls), nil, discard)

	if err := o.Submit(NewJob("a.html", "x", []byte("a"))); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	overflow := NewJob("b.html", "x", []byte("b"))
	if err := o.Submit(overflow); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if overflow.Snapshot().Status != StatusFailed {
		t.Error("rejected job should be marked failed")
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected depth 1, got %d", o.QueueDepth())
	}

	o.Stop()
	if err := o.Submit(NewJob("c.html", "x", []byte("c"))); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	o.Stop() // idempotent
}
