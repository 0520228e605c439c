package parser

import (
	"bytes"
	"io"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// MarkdownLoader handles Markdown codebooks. Region markup is written as
// raw HTML blocks, so the renderer must pass raw HTML through; the result
// is then sanitized down to markup that can carry regions.
type MarkdownLoader struct{}

var markdownPolicy = sync.OnceValue(func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "id").Globally()
	return p
})

func (l *MarkdownLoader) Load(r io.Reader) (*goquery.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Format: "markdown", Err: err}
	}

	md := goldmark.New(goldmark.WithRendererOptions(gmhtml.WithUnsafe()))
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return nil, &ParseError{Format: "markdown", Err: err}
	}

	return (&HTMLLoader{}).Load(bytes.NewReader(markdownPolicy().SanitizeBytes(buf.Bytes())))
}
