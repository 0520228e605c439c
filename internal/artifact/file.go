package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dgallion1/codebook/internal/toc"
)

const (
	tocFile       = "table_of_contents.json"
	flattenedFile = "flattened_toc.json"
	metaFile      = "meta.json"
	relevanceDir  = "relevance"
)

// FileStore keeps one directory per document:
//
//	<root>/<docID>/meta.json
//	<root>/<docID>/table_of_contents.json
//	<root>/<docID>/flattened_toc.json
//	<root>/<docID>/relevance/<target>.json
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact dir is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) docDir(docID string) string { return filepath.Join(s.root, docID) }

func (s *FileStore) SaveTOC(_ context.Context, doc *Document) error {
	if err := checkID(doc.DocID); err != nil {
		return err
	}
	dir := s.docDir(doc.DocID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create doc dir: %w", err)
	}
	nodes := doc.TableOfContents
	if nodes == nil {
		nodes = []*toc.Node{}
	}
	if err := writeJSON(filepath.Join(dir, tocFile), nodes); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, flattenedFile), toc.FlattenAll(nodes)); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, metaFile), doc.Meta)
}

func (s *FileStore) LoadTOC(_ context.Context, docID string) (*Document, error) {
	if err := checkID(docID); err != nil {
		return nil, err
	}
	dir := s.docDir(docID)
	var doc Document
	if err := readJSON(filepath.Join(dir, metaFile), &doc.Meta); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, tocFile), &doc.TableOfContents); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *FileStore) SaveRelevance(_ context.Context, rel *Relevance) error {
	if err := checkID(rel.DocID); err != nil {
		return err
	}
	dir := s.docDir(rel.DocID)
	if _, err := os.Stat(filepath.Join(dir, metaFile)); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, rel.DocID)
	}
	rdir := filepath.Join(dir, relevanceDir)
	if err := os.MkdirAll(rdir, 0o755); err != nil {
		return fmt.Errorf("create relevance dir: %w", err)
	}
	return writeJSON(filepath.Join(rdir, targetKey(rel.TargetDataType)+".json"), rel)
}

func (s *FileStore) LoadRelevance(_ context.Context, docID, target string) (*Relevance, error) {
	if err := checkID(docID); err != nil {
		return nil, err
	}
	var rel Relevance
	if err := readJSON(filepath.Join(s.docDir(docID), relevanceDir, targetKey(target)+".json"), &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (s *FileStore) List(_ context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read artifact dir: %w", err)
	}
	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var sum Summary
		if err := readJSON(filepath.Join(s.root, e.Name(), metaFile), &sum.Meta); err != nil {
			continue
		}
		sum.Targets = []string{}
		rels, _ := os.ReadDir(filepath.Join(s.root, e.Name(), relevanceDir))
		for _, r := range rels {
			var rel Relevance
			if strings.HasSuffix(r.Name(), ".json") &&
				readJSON(filepath.Join(s.root, e.Name(), relevanceDir, r.Name()), &rel) == nil {
				sum.Targets = append(sum.Targets, rel.TargetDataType)
			}
		}
		slices.Sort(sum.Targets)
		out = append(out, sum)
	}
	sortSummaries(out)
	return out, nil
}

func (s *FileStore) Delete(_ context.Context, docID string) error {
	if err := checkID(docID); err != nil {
		return err
	}
	dir := s.docDir(docID)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	return os.RemoveAll(dir)
}

func (s *FileStore) Close() error { return nil }

// writeJSON writes v to path through a temp file so readers never see a
// partial document.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data := buf.Bytes()
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// sortSummaries orders newest first, then by id.
func sortSummaries(s []Summary) {
	slices.SortFunc(s, func(a, b Summary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.DocID, b.DocID)
	})
}
