package parser

import (
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/dgallion1/codebook/internal/toc"
)

// Stats counts what the extractor built and what it silently dropped.
type Stats struct {
	Titles            int `json:"titles"`
	Chapters          int `json:"chapters"`
	Sections          int `json:"sections"`
	DroppedChapters   int `json:"droppedChapters"`   // heading did not match
	DroppedSections   int `json:"droppedSections"`   // heading did not match
	OrphanSections    int `json:"orphanSections"`    // no chapter with that number in scope
	UnscopedRegions   int `json:"unscopedRegions"`   // before the first Title
	DuplicateChapters int `json:"duplicateChapters"` // number repeated within a Title; shares chapter-N
}

// Dropped is the total number of regions that did not make it into the tree.
func (s Stats) Dropped() int {
	return s.DroppedChapters + s.DroppedSections + s.OrphanSections + s.UnscopedRegions
}

// Extractor builds the Title → Chapter → Section tree from region markup.
type Extractor struct {
	matchers Matchers
	log      *slog.Logger
}

func NewExtractor(m Matchers, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{matchers: m, log: log}
}

// titleScope is a Title region plus the regions that follow it in document
// order up to the next Title. Nested and flat markup both partition this way.
type titleScope struct {
	title    *goquery.Selection
	chapters []*goquery.Selection
	sections []*goquery.Selection
}

type parsedSection struct {
	header Header
	text   string
}

// Extract returns the Title nodes of doc in document order.
func (e *Extractor) Extract(doc *goquery.Document) ([]*toc.Node, Stats) {
	var stats Stats
	nested := e.matchers.regionSelector()

	var scopes []*titleScope
	doc.Find(nested).Each(func(_ int, region *goquery.Selection) {
		var current *titleScope
		if len(scopes) > 0 {
			current = scopes[len(scopes)-1]
		}
		switch {
		case region.Is(e.matchers.Title.Selector()):
			scopes = append(scopes, &titleScope{title: region})
		case current == nil:
			stats.UnscopedRegions++
		case region.Is(e.matchers.Chapter.Selector()):
			current.chapters = append(current.chapters, region)
		case region.Is(e.matchers.Section.Selector()):
			current.sections = append(current.sections, region)
		}
	})

	nodes := make([]*toc.Node, 0, len(scopes))
	for i, scope := range scopes {
		nodes = append(nodes, e.buildTitle(i, scope, nested, &stats))
	}

	if stats.DuplicateChapters > 0 {
		e.log.Warn("chapter numbers repeated within a title", "duplicate_chapters", stats.DuplicateChapters)
	}
	if stats.Dropped() > 0 {
		e.log.Warn("regions dropped during extraction",
			"dropped_chapters", stats.DroppedChapters,
			"dropped_sections", stats.DroppedSections,
			"orphan_sections", stats.OrphanSections,
			"unscoped", stats.UnscopedRegions,
		)
	}
	return nodes, stats
}

func (e *Extractor) buildTitle(index int, scope *titleScope, nested string, stats *Stats) *toc.Node {
	text := headingText(scope.title, nested)
	h, _ := e.matchers.Title.Match(text)
	title := h.Name
	if title == "" {
		title = fmt.Sprintf("Title %d", index+1)
	}
	titleNode := &toc.Node{
		Title: title,
		Type:  toc.TypeTitle,
		ID:    fmt.Sprintf("title-%d", index),
	}
	stats.Titles++

	// Parse section headings once per scope.
	var sections []parsedSection
	for _, region := range scope.sections {
		text := headingText(region, nested)
		h, ok := e.matchers.Section.Match(text)
		if !ok {
			stats.DroppedSections++
			e.log.Debug("section heading mismatch", "title", title, "text", text)
			continue
		}
		sections = append(sections, parsedSection{header: h, text: text})
	}

	attached := make([]bool, len(sections))
	seen := make(map[string]bool)
	for _, region := range scope.chapters {
		text := headingText(region, nested)
		h, ok := e.matchers.Chapter.Match(text)
		if !ok {
			stats.DroppedChapters++
			e.log.Debug("chapter heading mismatch", "title", title, "text", text)
			continue
		}
		if seen[h.Chapter] {
			stats.DuplicateChapters++
			e.log.Debug("duplicate chapter number", "title", title, "chapter", h.Chapter)
		}
		seen[h.Chapter] = true
		chapter := &toc.Node{
			Title:         text,
			Type:          toc.TypeChapter,
			ID:            "chapter-" + h.Chapter,
			ChapterNumber: h.Chapter,
			ChapterName:   h.Name,
		}
		for i, s := range sections {
			if s.header.Chapter != h.Chapter {
				continue
			}
			section := &toc.Node{
				Title:         s.text,
				Type:          toc.TypeSection,
				ID:            fmt.Sprintf("chapter-%s-section-%s", h.Chapter, s.header.Section),
				ChapterNumber: s.header.Chapter,
				SectionNumber: s.header.Section,
				SectionName:   s.header.Name,
			}
			_ = chapter.AddChild(section)
			attached[i] = true
			stats.Sections++
		}
		_ = titleNode.AddChild(chapter)
		stats.Chapters++
	}

	for i, ok := range attached {
		if !ok {
			stats.OrphanSections++
			e.log.Debug("section has no chapter in scope", "title", title, "text", sections[i].text)
		}
	}
	return titleNode
}
