package parser

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dgallion1/codebook/internal/toc"
	"github.com/google/uuid"
)

// Region is the source region a tree node was matched to.
type Region struct {
	NodeID    string
	Type      toc.NodeType
	AnchorID  string // id attribute the region already carried, if any
	Selection *goquery.Selection
}

// DOMID is the identifier the region is addressable by.
func (r *Region) DOMID() string {
	if r.AnchorID != "" {
		return r.AnchorID
	}
	return r.NodeID
}

// RegionIndex maps node ids to their matched regions.
type RegionIndex map[string]*Region

// Apply tags every matched region lacking an id with its node id. This
// mutates the document the regions belong to.
func (idx RegionIndex) Apply() int {
	tagged := 0
	for id, r := range idx {
		if r.AnchorID != "" {
			continue
		}
		r.Selection.SetAttr("id", id)
		tagged++
	}
	return tagged
}

// Enricher attaches each node's own text and records where it came from.
type Enricher struct {
	matchers Matchers
	log      *slog.Logger
	newID    func() string
}

func NewEnricher(m Matchers, log *slog.Logger) *Enricher {
	if log == nil {
		log = slog.Default()
	}
	return &Enricher{matchers: m, log: log, newID: fallbackID}
}

// fallbackID mirrors the short random ids assigned to unnamed regions.
func fallbackID() string {
	return "toc-entry-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
}

// Enrich fills Content (and a fallback ID where missing) on every node,
// pre-order. The document is only read.
func (e *Enricher) Enrich(doc *goquery.Document, nodes []*toc.Node) RegionIndex {
	idx := make(RegionIndex)
	nested := e.matchers.regionSelector()
	candidates := make(map[toc.NodeType]*goquery.Selection)

	var process func(n *toc.Node)
	process = func(n *toc.Node) {
		m := e.matchers.For(n.Type)
		if m != nil {
			sel, ok := candidates[n.Type]
			if !ok {
				sel = doc.Find(m.Selector())
				candidates[n.Type] = sel
			}
			if region := firstContaining(sel, n.Title); region != nil {
				n.Content = ownText(region, nested)
				if n.ID == "" {
					n.ID = e.newID()
				}
				anchor, _ := region.Attr("id")
				idx[n.ID] = &Region{
					NodeID:    n.ID,
					Type:      n.Type,
					AnchorID:  anchor,
					Selection: region,
				}
			} else {
				e.log.Debug("no region matched node", "type", n.Type, "title", n.Title)
			}
		}
		for _, c := range n.Children {
			process(c)
		}
	}
	for _, n := range nodes {
		process(n)
	}
	return idx
}

// firstContaining returns the first region whose text contains title,
// comparing with whitespace collapsed.
func firstContaining(sel *goquery.Selection, title string) *goquery.Selection {
	want := collapseSpace(title)
	var found *goquery.Selection
	sel.EachWithBreak(func(_ int, region *goquery.Selection) bool {
		if strings.Contains(collapseSpace(region.Text()), want) {
			found = region
			return false
		}
		return true
	})
	return found
}
