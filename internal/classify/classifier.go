package classify

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgallion1/codebook/internal/llm"
	"github.com/dgallion1/codebook/internal/toc"
)

var (
	ErrEmptyTarget = errors.New("target data type is empty")
	// ErrReasoner wraps any failure of the reasoner call itself.
	ErrReasoner = errors.New("reasoner call failed")
)

type Options struct {
	// ClampConfidence forces every confidence level into [1,5].
	ClampConfidence bool
	// Timeout bounds the reasoner call. Zero means no extra deadline.
	Timeout time.Duration
}

// Classifier ranks flattened table-of-contents entries by how likely they
// are to hold a target kind of data.
type Classifier struct {
	reasoner llm.Reasoner
	opts     Options
	log      *slog.Logger
}

func New(r llm.Reasoner, opts Options, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{reasoner: r, opts: opts, log: log}
}

// Classify returns the relevant sections, highest confidence first. Ties
// keep the reasoner's order.
func (c *Classifier) Classify(ctx context.Context, entries []toc.FlattenedEntry, target string) ([]RelevantSection, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, ErrEmptyTarget
	}
	if len(entries) == 0 {
		c.log.Info("no sections to classify", "target", target)
		return []RelevantSection{}, nil
	}

	prompt, err := BuildPrompt(entries, target)
	if err != nil {
		return nil, err
	}
	c.log.Info("classifying sections",
		"target", target,
		"entries", len(entries),
		"prompt_tokens_est", EstimateTokens(prompt),
	)

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	reply, err := c.reasoner.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReasoner, err)
	}

	sections, err := ParseReply(reply)
	if err != nil {
		c.log.Warn("unreadable reasoner reply", "error", err)
		return nil, err
	}
	if c.opts.ClampConfidence {
		for i := range sections {
			sections[i].ConfidenceLevel = min(max(sections[i].ConfidenceLevel, 1), 5)
		}
	}
	slices.SortStableFunc(sections, func(a, b RelevantSection) int {
		return cmp.Compare(b.ConfidenceLevel, a.ConfidenceLevel)
	})
	c.log.Info("classification complete", "target", target, "relevant", len(sections))
	return sections, nil
}
