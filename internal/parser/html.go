package parser

import (
	"io"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HTMLLoader handles HTML codebooks.
type HTMLLoader struct{}

func (l *HTMLLoader) Load(r io.Reader) (*goquery.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, &ParseError{Format: "html", Err: err}
	}
	return goquery.NewDocumentFromNode(root), nil
}
