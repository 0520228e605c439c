// Package artifact persists table-of-contents and relevance results per
// codebook document.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dgallion1/codebook/internal/classify"
	"github.com/dgallion1/codebook/internal/parser"
	"github.com/dgallion1/codebook/internal/toc"
)

var (
	ErrNotFound  = errors.New("artifact not found")
	ErrInvalidID = errors.New("invalid document id")
)

const (
	BackendFile      = "file"
	BackendSQLite    = "sqlite"
	BackendPathstore = "pathstore"
)

// Meta describes a stored document.
type Meta struct {
	DocID       string       `json:"docId"`
	Filename    string       `json:"filename,omitempty"`
	ContentHash string       `json:"contentHash,omitempty"`
	Stats       parser.Stats `json:"stats"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Document is a stored table of contents.
type Document struct {
	Meta
	TableOfContents []*toc.Node `json:"tableOfContents"`
}

// Relevance is a stored classification of one document for one target.
type Relevance struct {
	DocID            string                     `json:"docId"`
	TargetDataType   string                     `json:"targetDataType"`
	RelevantSections []classify.RelevantSection `json:"relevantSections"`
	CreatedAt        time.Time                  `json:"createdAt"`
}

// Summary is a List entry.
type Summary struct {
	Meta
	Targets []string `json:"targets"`
}

type Store interface {
	SaveTOC(ctx context.Context, doc *Document) error
	LoadTOC(ctx context.Context, docID string) (*Document, error)
	// SaveRelevance fails with ErrNotFound when the document has no TOC.
	SaveRelevance(ctx context.Context, rel *Relevance) error
	LoadRelevance(ctx context.Context, docID, target string) (*Relevance, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, docID string) error
	Close() error
}

type Options struct {
	Backend         string
	Dir             string
	SQLitePath      string
	PathstoreURL    string
	PathstoreAPIKey string
}

// Open returns the store selected by opts.Backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendFile, "":
		return NewFileStore(opts.Dir)
	case BackendSQLite:
		return OpenSQLite(opts.SQLitePath)
	case BackendPathstore:
		if opts.PathstoreURL == "" {
			return nil, fmt.Errorf("pathstore backend selected but PATHSTORE_URL not set")
		}
		return NewPathstoreStore(opts.PathstoreURL, opts.PathstoreAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown artifact backend: %s", opts.Backend)
	}
}

var docIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func checkID(docID string) error {
	if !docIDRe.MatchString(docID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, docID)
	}
	return nil
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// Slugify converts a string to a URL/path-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = strings.TrimRight(s[:50], "-")
	}
	return s
}

// targetKey is the storage key of a relevance result.
func targetKey(target string) string {
	if s := Slugify(target); s != "" {
		return s
	}
	return "_"
}
