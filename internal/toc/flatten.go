package toc

import (
	"iter"
	"strings"
)

// PathSeparator joins breadcrumb titles.
const PathSeparator = " > "

// FlattenedEntry is a Section with its breadcrumb path, ready for a prompt.
type FlattenedEntry struct {
	ID            string   `json:"id,omitempty" yaml:"id,omitempty"`
	Path          string   `json:"path" yaml:"path"`
	Title         string   `json:"title" yaml:"title"`
	Type          NodeType `json:"type" yaml:"type"`
	Level         int      `json:"level" yaml:"level"`
	ChapterNumber string   `json:"chapterNumber,omitempty" yaml:"chapterNumber,omitempty"`
	SectionNumber string   `json:"sectionNumber,omitempty" yaml:"sectionNumber,omitempty"`
}

// PathEntry is the stripped flattened form that carries only the breadcrumb.
type PathEntry struct {
	Path string `json:"path" yaml:"path"`
}

// Flatten yields every Section in document order. Each iteration walks
// the tree afresh, so the sequence can be ranged over any number of times.
func Flatten(nodes []*Node) iter.Seq[FlattenedEntry] {
	return func(yield func(FlattenedEntry) bool) {
		var walk func(nodes []*Node, path []string) bool
		walk = func(nodes []*Node, path []string) bool {
			for _, n := range nodes {
				current := append(path[:len(path):len(path)], n.Title)
				if n.Type == TypeSection {
					entry := FlattenedEntry{
						ID:            n.ID,
						Path:          strings.Join(current, PathSeparator),
						Title:         n.Title,
						Type:          n.Type,
						Level:         n.Level(),
						ChapterNumber: n.ChapterNumber,
						SectionNumber: n.SectionNumber,
					}
					if !yield(entry) {
						return false
					}
				}
				if !walk(n.Children, current) {
					return false
				}
			}
			return true
		}
		walk(nodes, nil)
	}
}

// FlattenAll collects Flatten into a slice. The result is never nil.
func FlattenAll(nodes []*Node) []FlattenedEntry {
	out := []FlattenedEntry{}
	for e := range Flatten(nodes) {
		out = append(out, e)
	}
	return out
}

// PathsOnly strips entries down to their breadcrumb paths.
func PathsOnly(entries []FlattenedEntry) []PathEntry {
	out := make([]PathEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, PathEntry{Path: e.Path})
	}
	return out
}
