package parser

import (
	"regexp"
	"strings"

	"github.com/dgallion1/codebook/internal/toc"
)

// RegionClass marks every structural region in the default codebook markup.
const RegionClass = "rbox"

// Header is what a matcher recovers from a region's heading text.
type Header struct {
	Chapter string // Chapter number, or the chapter prefix of a section number
	Section string
	Name    string
}

// HeaderMatcher recognizes one kind of structural region and parses its
// heading. Alternate document formats supply their own matchers.
type HeaderMatcher interface {
	Type() toc.NodeType
	// Selector is a CSS selector matching candidate regions.
	Selector() string
	// Match parses heading text; ok is false for a structural mismatch.
	Match(text string) (h Header, ok bool)
}

// TitleMatcher accepts any heading; Titles carry no number.
type TitleMatcher struct {
	Sel string
}

func (m TitleMatcher) Type() toc.NodeType { return toc.TypeTitle }
func (m TitleMatcher) Selector() string   { return m.Sel }

func (m TitleMatcher) Match(text string) (Header, bool) {
	return Header{Name: text}, true
}

// RegexMatcher parses headings with a pattern using the named groups
// "chapter", "section" and "name". Missing groups are left empty.
type RegexMatcher struct {
	Kind    toc.NodeType
	Sel     string
	Pattern *regexp.Regexp
}

func (m RegexMatcher) Type() toc.NodeType { return m.Kind }
func (m RegexMatcher) Selector() string   { return m.Sel }

func (m RegexMatcher) Match(text string) (Header, bool) {
	sub := m.Pattern.FindStringSubmatch(text)
	if sub == nil {
		return Header{}, false
	}
	group := func(name string) string {
		if i := m.Pattern.SubexpIndex(name); i >= 0 {
			return sub[i]
		}
		return ""
	}
	return Header{
		Chapter: group("chapter"),
		Section: group("section"),
		Name:    strings.TrimSpace(group("name")),
	}, true
}

var (
	chapterPattern = regexp.MustCompile(`(?i)CHAPTER\s+(?P<chapter>\d+):\s*(?P<name>.*)`)
	sectionPattern = regexp.MustCompile(`§\s*(?P<chapter>\d+)\.(?P<section>\d+)\s*(?P<name>.*)`)
)

// Matchers bundles one matcher per structural level.
type Matchers struct {
	Title   HeaderMatcher
	Chapter HeaderMatcher
	Section HeaderMatcher
}

// DefaultMatchers recognizes `div.rbox.Title` / `.Chapter` / `.Section`
// regions with "CHAPTER 3: Name" and "§ 3.1 Name" headings.
func DefaultMatchers() Matchers {
	return Matchers{
		Title: TitleMatcher{Sel: "." + RegionClass + ".Title"},
		Chapter: RegexMatcher{
			Kind:    toc.TypeChapter,
			Sel:     "." + RegionClass + ".Chapter",
			Pattern: chapterPattern,
		},
		Section: RegexMatcher{
			Kind:    toc.TypeSection,
			Sel:     "." + RegionClass + ".Section",
			Pattern: sectionPattern,
		},
	}
}

// For returns the matcher for a node type, or nil.
func (m Matchers) For(t toc.NodeType) HeaderMatcher {
	switch t {
	case toc.TypeTitle:
		return m.Title
	case toc.TypeChapter:
		return m.Chapter
	case toc.TypeSection:
		return m.Section
	}
	return nil
}

// regionSelector matches a region of any structural type.
func (m Matchers) regionSelector() string {
	return m.Title.Selector() + ", " + m.Chapter.Selector() + ", " + m.Section.Selector()
}
