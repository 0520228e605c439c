package toc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NodeType is the structural kind of a codebook region.
type NodeType string

const (
	TypeTitle   NodeType = "Title"
	TypeChapter NodeType = "Chapter"
	TypeSection NodeType = "Section"
)

// Types lists the structural kinds from the top of the tree down.
var Types = []NodeType{TypeTitle, TypeChapter, TypeSection}

// Level returns the depth of the type in the tree, or -1 if unknown.
func (t NodeType) Level() int {
	switch t {
	case TypeTitle:
		return 0
	case TypeChapter:
		return 1
	case TypeSection:
		return 2
	}
	return -1
}

// Valid reports whether t is one of the known structural kinds.
func (t NodeType) Valid() bool {
	return t.Level() >= 0
}

// Node is one structural unit of the table of contents.
type Node struct {
	Title    string
	Type     NodeType
	Children []*Node
	Content  string // Own text, never a descendant's
	ID       string

	ChapterNumber string
	SectionNumber string
	ChapterName   string
	SectionName   string
}

// Level is derived from Type; it is not stored.
func (n *Node) Level() int {
	return n.Type.Level()
}

// AddChild appends c, enforcing Title → Chapter → Section nesting.
func (n *Node) AddChild(c *Node) error {
	if c.Type.Level() != n.Type.Level()+1 || !c.Type.Valid() {
		return fmt.Errorf("%s cannot be a child of %s", c.Type, n.Type)
	}
	n.Children = append(n.Children, c)
	return nil
}

type nodeJSON struct {
	Title         string   `json:"title"`
	Type          NodeType `json:"type"`
	Level         int      `json:"level"`
	Children      []*Node  `json:"children"`
	Content       string   `json:"content,omitempty"`
	ID            string   `json:"id,omitempty"`
	ChapterNumber string   `json:"chapterNumber,omitempty"`
	SectionNumber string   `json:"sectionNumber,omitempty"`
	ChapterName   string   `json:"chapterName,omitempty"`
	SectionName   string   `json:"sectionName,omitempty"`
}

func (n *Node) MarshalJSON() ([]byte, error) {
	children := n.Children
	if children == nil {
		children = []*Node{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(nodeJSON{
		Title:         n.Title,
		Type:          n.Type,
		Level:         n.Level(),
		Children:      children,
		Content:       n.Content,
		ID:            n.ID,
		ChapterNumber: n.ChapterNumber,
		SectionNumber: n.SectionNumber,
		ChapterName:   n.ChapterName,
		SectionName:   n.SectionName,
	})
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON ignores the encoded level; it always follows the type.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Node{
		Title:         raw.Title,
		Type:          raw.Type,
		Children:      raw.Children,
		Content:       raw.Content,
		ID:            raw.ID,
		ChapterNumber: raw.ChapterNumber,
		SectionNumber: raw.SectionNumber,
		ChapterName:   raw.ChapterName,
		SectionName:   raw.SectionName,
	}
	return nil
}

// Validate checks that a decoded tree is rooted at Titles and never skips a level.
func Validate(nodes []*Node) error {
	var walk func(nodes []*Node, want NodeType, path string) error
	walk = func(nodes []*Node, want NodeType, path string) error {
		for i, n := range nodes {
			if n == nil {
				return fmt.Errorf("%s[%d]: nil node", path, i)
			}
			if n.Type != want {
				return fmt.Errorf("%s[%d]: expected %s, got %q", path, i, want, n.Type)
			}
			if len(n.Children) == 0 {
				continue
			}
			if want == TypeSection {
				return fmt.Errorf("%s[%d]: section %q has children", path, i, n.Title)
			}
			next := Types[want.Level()+1]
			if err := walk(n.Children, next, fmt.Sprintf("%s[%d].children", path, i)); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(nodes, TypeTitle, "toc")
}

// Counts totals the nodes of each type in a tree.
type Counts struct {
	Titles   int `json:"titles"`
	Chapters int `json:"chapters"`
	Sections int `json:"sections"`
}

// Count walks the tree and totals nodes by type.
func Count(nodes []*Node) Counts {
	var c Counts
	var walk func([]*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			switch n.Type {
			case TypeTitle:
				c.Titles++
			case TypeChapter:
				c.Chapters++
			case TypeSection:
				c.Sections++
			}
			walk(n.Children)
		}
	}
	walk(nodes)
	return c
}
