package llm

import (
	"context"
	"log/slog"
	"time"
)

// Metered records the latency of every call made through it.
type Metered struct {
	next  Reasoner
	stats *LLMStats
	model string
	log   *slog.Logger
}

func NewMetered(next Reasoner, stats *LLMStats, model string, log *slog.Logger) *Metered {
	if log == nil {
		log = slog.Default()
	}
	return &Metered{next: next, stats: stats, model: model, log: log}
}

func (m *Metered) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	reply, err := m.next.Generate(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		m.stats.RecordFailure(elapsed.Milliseconds())
		m.log.Warn("llm call failed", "model", m.model, "duration_ms", elapsed.Milliseconds(), "error", err)
		return "", err
	}
	m.stats.Record(elapsed.Milliseconds())
	m.log.Debug("llm call", "model", m.model, "duration_ms", elapsed.Milliseconds(), "reply_chars", len(reply))
	return reply, nil
}

func (m *Metered) Stats() *LLMStats { return m.stats }

func (m *Metered) Model() string { return m.model }
