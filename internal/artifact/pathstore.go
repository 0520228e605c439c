package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/dgallion1/codebook/internal/pathstore"
	"github.com/dgallion1/codebook/internal/toc"
)

const pathstoreRoot = "codebooks"

// PathstoreStore keeps artifacts in a remote pathstore under
// codebooks/<docID>/{meta,toc,flattened,relevance/<target>}.
type PathstoreStore struct {
	ps *pathstore.Client
}

func NewPathstoreStore(baseURL, apiKey string) *PathstoreStore {
	return &PathstoreStore{ps: pathstore.NewClient(baseURL, apiKey)}
}

func docKey(docID string, parts ...string) string {
	return path.Join(append([]string{pathstoreRoot, docID}, parts...)...)
}

func (s *PathstoreStore) put(ctx context.Context, key, docID string, v any) error {
	return s.ps.PutNode(ctx, key, pathstore.NodeRequest{
		Value:  v,
		Source: "codebook:" + docID,
	})
}

func (s *PathstoreStore) get(ctx context.Context, key string, v any) error {
	node, err := s.ps.GetNode(ctx, key)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err := json.Unmarshal(node.Value, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *PathstoreStore) SaveTOC(ctx context.Context, doc *Document) error {
	if err := checkID(doc.DocID); err != nil {
		return err
	}
	nodes := doc.TableOfContents
	if nodes == nil {
		nodes = []*toc.Node{}
	}
	if err := s.put(ctx, docKey(doc.DocID, "toc"), doc.DocID, nodes); err != nil {
		return err
	}
	if err := s.put(ctx, docKey(doc.DocID, "flattened"), doc.DocID, toc.FlattenAll(nodes)); err != nil {
		return err
	}
	// meta goes last: its presence marks a complete document.
	return s.put(ctx, docKey(doc.DocID, "meta"), doc.DocID, doc.Meta)
}

func (s *PathstoreStore) LoadTOC(ctx context.Context, docID string) (*Document, error) {
	if err := checkID(docID); err != nil {
		return nil, err
	}
	var doc Document
	if err := s.get(ctx, docKey(docID, "meta"), &doc.Meta); err != nil {
		return nil, err
	}
	if err := s.get(ctx, docKey(docID, "toc"), &doc.TableOfContents); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *PathstoreStore) SaveRelevance(ctx context.Context, rel *Relevance) error {
	if err := checkID(rel.DocID); err != nil {
		return err
	}
	node, err := s.ps.GetNode(ctx, docKey(rel.DocID, "meta"))
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, rel.DocID)
	}
	return s.put(ctx, docKey(rel.DocID, "relevance", targetKey(rel.TargetDataType)), rel.DocID, rel)
}

func (s *PathstoreStore) LoadRelevance(ctx context.Context, docID, target string) (*Relevance, error) {
	if err := checkID(docID); err != nil {
		return nil, err
	}
	var rel Relevance
	if err := s.get(ctx, docKey(docID, "relevance", targetKey(target)), &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (s *PathstoreStore) List(ctx context.Context) ([]Summary, error) {
	nodes, err := s.ps.ListChildren(ctx, pathstoreRoot, 0)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Summary)
	targets := make(map[string][]string)
	for _, n := range nodes {
		parts := strings.Split(strings.TrimPrefix(n.Path(), pathstoreRoot+"/"), "/")
		switch {
		case len(parts) == 2 && parts[1] == "meta":
			var sum Summary
			if err := json.Unmarshal(n.Value, &sum.Meta); err != nil {
				continue
			}
			byID[parts[0]] = &sum
		case len(parts) == 3 && parts[1] == "relevance":
			var rel Relevance
			if err := json.Unmarshal(n.Value, &rel); err == nil {
				targets[parts[0]] = append(targets[parts[0]], rel.TargetDataType)
			}
		}
	}
	out := make([]Summary, 0, len(byID))
	for id, sum := range byID {
		sum.Targets = targets[id]
		if sum.Targets == nil {
			sum.Targets = []string{}
		}
		slices.Sort(sum.Targets)
		out = append(out, *sum)
	}
	sortSummaries(out)
	return out, nil
}

func (s *PathstoreStore) Delete(ctx context.Context, docID string) error {
	if err := checkID(docID); err != nil {
		return err
	}
	node, err := s.ps.GetNode(ctx, docKey(docID, "meta"))
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	return s.ps.DeleteNode(ctx, docKey(docID), true)
}

func (s *PathstoreStore) Close() error {
	s.ps.Close()
	return nil
}
