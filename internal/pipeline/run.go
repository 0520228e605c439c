package pipeline

import (
	"context"
	"fmt"
)

// State is a Run's position in the pipeline.
type State string

const (
	StateParsing     State = "parsing"
	StateClassifying State = "classifying"
	StateDone        State = "done"
	StateAborted     State = "aborted"
)

// Run carries one document through parsing and classifying, in that
// order. A fatal error moves it to StateAborted for good. A Run is not
// safe for concurrent use.
type Run struct {
	p      *Pipeline
	state  State
	parsed *ParseResult
	result *ClassifyResult
	err    error
}

func (p *Pipeline) NewRun() *Run {
	return &Run{p: p, state: StateParsing}
}

func (r *Run) State() State { return r.state }

// Err is the error that aborted the run, if any.
func (r *Run) Err() error { return r.err }

func (r *Run) Result() *ClassifyResult { return r.result }

func (r *Run) abort(err error) error {
	r.state = StateAborted
	r.err = err
	return err
}

func (r *Run) Parse(ctx context.Context, in ParseInput) (*ParseResult, error) {
	if r.state != StateParsing {
		return nil, fmt.Errorf("%w: parse called in state %s", ErrRunState, r.state)
	}
	res, err := r.p.ParseStage(ctx, in)
	if err != nil {
		return nil, r.abort(err)
	}
	r.parsed = res
	r.state = StateClassifying
	return res, nil
}

// Classify requires a successful Parse. Called too early it aborts the run.
func (r *Run) Classify(ctx context.Context, in ClassifyInput) (*ClassifyResult, error) {
	switch r.state {
	case StateParsing:
		return nil, r.abort(&MissingPrerequisiteError{Stage: StateClassifying, Missing: "parse result"})
	case StateClassifying:
	default:
		return nil, fmt.Errorf("%w: classify called in state %s", ErrRunState, r.state)
	}
	res, err := r.p.ClassifyStage(ctx, r.parsed, in)
	if err != nil {
		return nil, r.abort(err)
	}
	r.result = res
	r.state = StateDone
	return res, nil
}

// Execute runs both stages.
func (r *Run) Execute(ctx context.Context, parse ParseInput, cls ClassifyInput) (*ClassifyResult, error) {
	if _, err := r.Parse(ctx, parse); err != nil {
		return nil, err
	}
	return r.Classify(ctx, cls)
}
