package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/codebook/internal/parser"
	"github.com/google/uuid"
)

// JobStatus represents the state of an analysis job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusParsing     JobStatus = "parsing"
	StatusClassifying JobStatus = "classifying"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
)

// Finished reports whether the job has reached a terminal status.
func (s JobStatus) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks one codebook analysis.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status         JobStatus `json:"status"`
	Filename       string    `json:"filename"`
	TargetDataType string    `json:"target_data_type"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	document []byte
	stats    parser.Stats
	result   *ClassifyResult
	errors   []string
}

// NewJob creates a queued job. The document id is derived from the
// content, so resubmitting a codebook overwrites its stored artifacts.
func NewJob(filename, target string, document []byte) *Job {
	now := time.Now()
	hash := ContentHashHex(document)
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Job{
		ID:             id.String(),
		DocID:          hash[:16],
		Status:         StatusQueued,
		Filename:       filename,
		TargetDataType: target,
		ContentHash:    hash,
		CreatedAt:      now,
		UpdatedAt:      now,
		document:       document,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes finished jobs idle for longer than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Finished() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.UpdatedAt = time.Now()
}

// Fail records err and marks the job failed.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err.Error())
	j.Status = StatusFailed
	j.UpdatedAt = time.Now()
}

func (j *Job) SetStats(s parser.Stats) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stats = s
	j.UpdatedAt = time.Now()
}

// Document returns the raw codebook bytes.
func (j *Job) Document() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.document
}

// Complete stores the result, drops the raw document and marks the job
// completed.
func (j *Job) Complete(res *ClassifyResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.document = nil
	j.Status = StatusCompleted
	j.UpdatedAt = time.Now()
}

// Result returns the classification result once the job has completed.
func (j *Job) Result() *ClassifyResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID             string       `json:"job_id"`
	DocID          string       `json:"doc_id"`
	Status         JobStatus    `json:"status"`
	Filename       string       `json:"filename"`
	TargetDataType string       `json:"target_data_type"`
	Stats          parser.Stats `json:"stats"`
	Relevant       int          `json:"relevant_sections"`
	Errors         []string     `json:"errors"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.errors))
	copy(errs, j.errors)
	relevant := 0
	if j.result != nil {
		relevant = len(j.result.RelevantSections)
	}
	return JobSnapshot{
		ID:             j.ID,
		DocID:          j.DocID,
		Status:         j.Status,
		Filename:       j.Filename,
		TargetDataType: j.TargetDataType,
		Stats:          j.stats,
		Relevant:       relevant,
		Errors:         errs,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
