// Command codebook runs the codebook pipeline stages against local files.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dgallion1/codebook/internal/classify"
	"github.com/dgallion1/codebook/internal/config"
	"github.com/dgallion1/codebook/internal/llm"
	"github.com/dgallion1/codebook/internal/parser"
	"github.com/dgallion1/codebook/internal/pipeline"
	"github.com/dgallion1/codebook/internal/toc"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "codebook",
		Usage: "extract, flatten and classify municipal codebooks",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only log errors"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log debug detail"},
		},
		Commands: []*cli.Command{
			{
				Name:   "toc",
				Usage:  "extract the table of contents from a codebook document",
				Action: TOCAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "codebook .html or .md file", Required: true},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "table_of_contents.json"},
					&cli.StringFlag{Name: "annotated", Usage: "also write the document with region ids applied to this path"},
				},
			},
			{
				Name:   "flatten",
				Usage:  "flatten a table of contents into breadcrumb entries",
				Action: FlattenAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Value: "table_of_contents.json"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "flattened_toc.json"},
					&cli.BoolFlag{Name: "paths-only", Usage: "keep only the breadcrumb path of each entry"},
					&cli.StringFlag{Name: "format", Value: "json", Usage: "json or yaml"},
					&cli.BoolFlag{Name: "print", Usage: "print each path to stdout"},
				},
			},
			{
				Name:   "analyze",
				Usage:  "run the full pipeline and rank sections for a target data type",
				Action: AnalyzeAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "codebook .html or .md file", Required: true},
					&cli.StringFlag{Name: "target", Aliases: []string{"t"}, Usage: "target data type, e.g. \"zoning\"", Required: true},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "relevant_sections.json"},
				},
			},
		},
	}
}

func newLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case c.Bool("quiet"):
		level = slog.LevelError
	case c.Bool("verbose"):
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// TOCAction runs the parsing stage and writes the tree.
func TOCAction(c *cli.Context) error {
	logger := newLogger(c)
	in := c.String("in")
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read codebook: %w", err)
	}

	p := pipeline.New(parser.DefaultMatchers(), nil, logger)
	parsed, err := p.ParseStage(c.Context, pipeline.ParseInput{
		Document: string(data),
		Filename: filepath.Base(in),
	})
	if err != nil {
		return err
	}
	if parsed.Stats.Dropped() > 0 {
		logger.Warn("regions left out of the tree",
			"dropped_chapters", parsed.Stats.DroppedChapters,
			"dropped_sections", parsed.Stats.DroppedSections,
			"orphan_sections", parsed.Stats.OrphanSections,
			"unscoped", parsed.Stats.UnscopedRegions,
		)
	}

	nodes := parsed.TableOfContents
	if nodes == nil {
		nodes = []*toc.Node{}
	}
	if err := writeOutput(c.String("out"), "json", nodes); err != nil {
		return err
	}
	logger.Info("wrote table of contents", "path", c.String("out"), "titles", parsed.Stats.Titles, "sections", parsed.Stats.Sections)

	if path := c.String("annotated"); path != "" {
		tagged := parsed.Regions.Apply()
		html, err := parsed.Document.Html()
		if err != nil {
			return fmt.Errorf("render annotated document: %w", err)
		}
		if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
			return fmt.Errorf("write annotated document: %w", err)
		}
		logger.Info("wrote annotated document", "path", path, "tagged", tagged)
	}
	return nil
}

// FlattenAction reads a tree written by the toc command and writes its
// flattened sections.
func FlattenAction(c *cli.Context) error {
	logger := newLogger(c)
	format := strings.ToLower(c.String("format"))
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unsupported format %q (json or yaml)", format)
	}

	nodes, err := readTree(c.String("in"))
	if err != nil {
		return err
	}
	entries := toc.FlattenAll(nodes)

	var out any = entries
	if c.Bool("paths-only") {
		out = toc.PathsOnly(entries)
	}
	if err := writeOutput(c.String("out"), format, out); err != nil {
		return err
	}
	if c.Bool("print") {
		for _, e := range entries {
			fmt.Println(e.Path)
		}
	}
	logger.Info("wrote flattened entries", "path", c.String("out"), "entries", len(entries))
	return nil
}

// AnalyzeAction runs both stages against the configured reasoning service.
func AnalyzeAction(c *cli.Context) error {
	logger := newLogger(c)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := os.ReadFile(c.String("in"))
	if err != nil {
		return fmt.Errorf("read codebook: %w", err)
	}

	reasoner, err := llm.NewReasoner(llm.Options{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel(),
		APIKey:   cfg.LLMAPIKey(),
		BaseURL:  cfg.LLMBaseURL(),
		System:   classify.AnalystInstructions,
		Timeout:  cfg.LLMTimeout,
	})
	if err != nil {
		return err
	}
	stats := llm.NewLLMStats(0)
	meter := llm.NewMetered(reasoner, stats, cfg.LLMModel(), logger)
	classifier := classify.New(meter, classify.Options{ClampConfidence: cfg.ClampConfidence, Timeout: cfg.LLMTimeout}, logger)
	p := pipeline.New(parser.DefaultMatchers(), classifier, logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := p.NewRun().Execute(ctx, pipeline.ParseInput{
		Document: string(data),
		Filename: filepath.Base(c.String("in")),
	}, pipeline.ClassifyInput{TargetDataType: c.String("target")})
	if err != nil {
		return err
	}

	if err := writeOutput(c.String("out"), "json", res.RelevantSections); err != nil {
		return err
	}
	snap := stats.Snapshot()
	logger.Info("wrote relevant sections",
		"path", c.String("out"),
		"sections", len(res.RelevantSections),
		"llm_duration_ms", snap.MaxMs,
	)
	return nil
}

func readTree(path string) ([]*toc.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table of contents: %w", err)
	}
	var nodes []*toc.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("decode table of contents %s: %w", path, err)
	}
	if err := toc.Validate(nodes); err != nil {
		return nil, fmt.Errorf("table of contents %s: %w", path, err)
	}
	return nodes, nil
}

func writeOutput(path, format string, v any) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "yaml":
		data, err = yaml.Marshal(v)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		err = enc.Encode(v)
		data = buf.Bytes()
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
