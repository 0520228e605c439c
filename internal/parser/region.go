package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "ul": true,
}

// ownText returns a region's text with every nested region removed.
// The region itself is not modified.
func ownText(region *goquery.Selection, nested string) string {
	clone := region.Clone()
	clone.Find(nested).Remove()
	return strings.TrimSpace(clone.Text())
}

// headingText is the first line of a region's leading inline text. When the
// region opens with a block element instead (<h3>, <p>), that block's text
// is the heading. Nested regions never contribute.
func headingText(region *goquery.Selection, nested string) string {
	var b strings.Builder
	region.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		n := c.Get(0)
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type != html.ElementNode:
		case c.Is(nested):
		case n.Data == "br":
			b.WriteString("\n")
		case blockElements[n.Data]:
			if strings.TrimSpace(b.String()) == "" {
				b.WriteString(headingText(c, nested))
			}
			return false
		default:
			b.WriteString(c.Text())
		}
		return true
	})
	for _, line := range strings.Split(b.String(), "\n") {
		if line = collapseSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// collapseSpace trims s and folds every whitespace run into one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
