package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dgallion1/codebook/internal/classify"
	"github.com/dgallion1/codebook/internal/parser"
	"github.com/dgallion1/codebook/internal/toc"
)

// ErrMissingPrerequisite matches every *MissingPrerequisiteError.
var ErrMissingPrerequisite = errors.New("missing prerequisite")

// ErrRunState is returned when a stage is invoked out of order on a Run
// that has already moved past it.
var ErrRunState = errors.New("invalid run state")

// MissingPrerequisiteError reports a stage invoked without its input.
type MissingPrerequisiteError struct {
	Stage   State
	Missing string
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("%s stage: %s: %s", e.Stage, ErrMissingPrerequisite, e.Missing)
}

func (e *MissingPrerequisiteError) Is(target error) bool { return target == ErrMissingPrerequisite }

// ParseInput triggers the parsing stage.
type ParseInput struct {
	Document string
	// Filename selects the loader by extension. Empty means HTML.
	Filename string
}

// ParseResult is the parsing stage output.
type ParseResult struct {
	TableOfContents  []*toc.Node  `json:"tableOfContents"`
	FullHTMLDocument string       `json:"fullHtmlDocument"`
	Stats            parser.Stats `json:"stats"`

	// Document is the loaded markup. Regions point into it.
	Document *goquery.Document `json:"-"`
	// Regions maps node ids to the document regions they were read from.
	Regions parser.RegionIndex `json:"-"`
}

// ClassifyInput triggers the classifying stage.
type ClassifyInput struct {
	TargetDataType string
}

// ClassifyResult is the final pipeline output.
type ClassifyResult struct {
	RelevantSections []classify.RelevantSection `json:"relevantSections"`
	TableOfContents  []*toc.Node                `json:"tableOfContents"`
	FullHTMLDocument string                     `json:"fullHtmlDocument"`
	TargetDataType   string                     `json:"targetDataType"`
}

// Pipeline holds the stage implementations. It keeps no per-document state
// and is safe for concurrent use.
type Pipeline struct {
	matchers   parser.Matchers
	classifier *classify.Classifier
	log        *slog.Logger
}

// New builds a pipeline. classifier may be nil for parse-only use.
func New(matchers parser.Matchers, classifier *classify.Classifier, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{matchers: matchers, classifier: classifier, log: log}
}

// ParseStage loads the document, builds the tree and enriches it.
func (p *Pipeline) ParseStage(ctx context.Context, in ParseInput) (*ParseResult, error) {
	if strings.TrimSpace(in.Document) == "" {
		return nil, &MissingPrerequisiteError{Stage: StateParsing, Missing: "document"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loader, err := parser.ForFile(in.Filename)
	if err != nil {
		return nil, err
	}
	doc, err := loader.Load(strings.NewReader(in.Document))
	if err != nil {
		return nil, err
	}

	nodes, stats := parser.NewExtractor(p.matchers, p.log).Extract(doc)
	regions := parser.NewEnricher(p.matchers, p.log).Enrich(doc, nodes)
	p.log.Info("parsed codebook",
		"titles", stats.Titles,
		"chapters", stats.Chapters,
		"sections", stats.Sections,
		"dropped", stats.Dropped(),
	)

	return &ParseResult{
		TableOfContents:  nodes,
		FullHTMLDocument: in.Document,
		Stats:            stats,
		Document:         doc,
		Regions:          regions,
	}, nil
}

// ClassifyStage flattens the parsed tree and ranks its sections.
func (p *Pipeline) ClassifyStage(ctx context.Context, prior *ParseResult, in ClassifyInput) (*ClassifyResult, error) {
	if prior == nil {
		return nil, &MissingPrerequisiteError{Stage: StateClassifying, Missing: "parse result"}
	}
	target := strings.TrimSpace(in.TargetDataType)
	if target == "" {
		return nil, &MissingPrerequisiteError{Stage: StateClassifying, Missing: "target data type"}
	}
	if p.classifier == nil {
		return nil, fmt.Errorf("classifying stage: no classifier configured")
	}

	entries := toc.FlattenAll(prior.TableOfContents)
	sections, err := p.classifier.Classify(ctx, entries, target)
	if err != nil {
		return nil, fmt.Errorf("classifying stage: %w", err)
	}
	return &ClassifyResult{
		RelevantSections: sections,
		TableOfContents:  prior.TableOfContents,
		FullHTMLDocument: prior.FullHTMLDocument,
		TargetDataType:   target,
	}, nil
}
