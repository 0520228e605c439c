package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgallion1/codebook/internal/artifact"
)

// Worker processes a single analysis job.
type Worker struct {
	pipeline *Pipeline
	store    artifact.Store
	log      *slog.Logger
}

func NewWorker(p *Pipeline, store artifact.Store, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{pipeline: p, store: store, log: log}
}

// Process carries the job through one Run. Storage failures are recorded
// on the job but do not fail it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID)
	run := w.pipeline.NewRun()

	// Phase 1: Parse
	job.SetStatus(StatusParsing)
	parsed, err := run.Parse(ctx, ParseInput{
		Document: string(job.Document()),
		Filename: job.Filename,
	})
	if err != nil {
		log.Error("parse failed", "stage", StateParsing, "error", err)
		job.Fail(err)
		return
	}
	job.SetStats(parsed.Stats)

	if w.store != nil {
		doc := &artifact.Document{
			Meta: artifact.Meta{
				DocID:       job.DocID,
				Filename:    job.Filename,
				ContentHash: job.ContentHash,
				Stats:       parsed.Stats,
				CreatedAt:   time.Now().UTC(),
			},
			TableOfContents: parsed.TableOfContents,
		}
		if err := w.store.SaveTOC(ctx, doc); err != nil {
			log.Error("toc save failed", "error", err)
			job.AddError("save toc: " + err.Error())
		}
	}

	// Phase 2: Classify
	job.SetStatus(StatusClassifying)
	result, err := run.Classify(ctx, ClassifyInput{TargetDataType: job.TargetDataType})
	if err != nil {
		log.Error("classification failed", "stage", StateClassifying, "error", err)
		job.Fail(err)
		return
	}

	if w.store != nil {
		rel := &artifact.Relevance{
			DocID:            job.DocID,
			TargetDataType:   result.TargetDataType,
			RelevantSections: result.RelevantSections,
			CreatedAt:        time.Now().UTC(),
		}
		if err := w.store.SaveRelevance(ctx, rel); err != nil {
			log.Error("relevance save failed", "error", err)
			job.AddError("save relevance: " + err.Error())
		}
	}

	job.Complete(result)
	log.Info("analysis complete", "relevant", len(result.RelevantSections))
}
