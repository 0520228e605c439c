package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgallion1/codebook/internal/artifact"
	"github.com/dgallion1/codebook/internal/parser"
	"github.com/dgallion1/codebook/internal/pipeline"
	"github.com/dgallion1/codebook/internal/toc"
	"gopkg.in/yaml.v3"
)

type tocResponse struct {
	TableOfContents []*toc.Node  `json:"tableOfContents"`
	Stats           parser.Stats `json:"stats"`
	DocID           string       `json:"docId,omitempty"`
	AnnotatedHTML   string       `json:"annotatedHtml,omitempty"`
	TaggedRegions   int          `json:"taggedRegions,omitempty"`
}

// handleTOC runs the parsing stage. ?annotate=true returns the document
// with every matched region addressable by its node id; ?save=true stores
// the tree under the content-derived document id.
func (s *Server) handleTOC(w http.ResponseWriter, r *http.Request) {
	defer cleanupForm(r)
	filename, data, ok := s.readDocument(w, r)
	if !ok {
		return
	}

	parsed, err := s.orchestrator.Pipeline().ParseStage(r.Context(), pipeline.ParseInput{
		Document: string(data),
		Filename: filename,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := tocResponse{TableOfContents: parsed.TableOfContents, Stats: parsed.Stats}
	if resp.TableOfContents == nil {
		resp.TableOfContents = []*toc.Node{}
	}

	if queryBool(r, "annotate") {
		resp.TaggedRegions = parsed.Regions.Apply()
		html, err := parsed.Document.Html()
		if err != nil {
			s.fail(w, r, fmt.Errorf("render annotated document: %w", err))
			return
		}
		resp.AnnotatedHTML = html
	}

	if queryBool(r, "save") {
		store := s.orchestrator.Store()
		if store == nil {
			jsonError(w, "artifact storage is not configured", http.StatusServiceUnavailable)
			return
		}
		hash := pipeline.ContentHashHex(data)
		doc := &artifact.Document{
			Meta: artifact.Meta{
				DocID:       hash[:16],
				Filename:    filename,
				ContentHash: hash,
				Stats:       parsed.Stats,
				CreatedAt:   time.Now().UTC(),
			},
			TableOfContents: resp.TableOfContents,
		}
		if err := store.SaveTOC(r.Context(), doc); err != nil {
			s.fail(w, r, err)
			return
		}
		resp.DocID = doc.DocID
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeTree accepts either a bare array of Title nodes or an object
// carrying one under "tableOfContents".
func decodeTree(body []byte) ([]*toc.Node, error) {
	body = bytes.TrimSpace(body)
	var nodes []*toc.Node
	if len(body) > 0 && body[0] == '{' {
		var wrapped struct {
			TableOfContents []*toc.Node `json:"tableOfContents"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		nodes = wrapped.TableOfContents
	} else if err := json.Unmarshal(body, &nodes); err != nil {
		return nil, err
	}
	if err := toc.Validate(nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// handleFlatten flattens a posted tree. ?paths_only=true strips entries to
// their breadcrumbs and ?format=yaml switches the encoding.
func (s *Server) handleFlatten(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	nodes, err := decodeTree(body)
	if err != nil {
		jsonError(w, "invalid table of contents: "+err.Error(), http.StatusBadRequest)
		return
	}

	var out any = toc.FlattenAll(nodes)
	if queryBool(r, "paths_only") {
		out = toc.PathsOnly(out.([]toc.FlattenedEntry))
	}

	if r.URL.Query().Get("format") == "yaml" {
		b, err := yaml.Marshal(out)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(b)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type classifyRequest struct {
	TableOfContents  []*toc.Node `json:"tableOfContents"`
	FullHTMLDocument string      `json:"fullHtmlDocument"`
	TargetDataType   string      `json:"targetDataType"`
}

// handleClassify runs the classifying stage on a tree produced earlier.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errorStatus(err) == http.StatusRequestEntityTooLarge {
			s.fail(w, r, err)
			return
		}
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var prior *pipeline.ParseResult
	if req.TableOfContents != nil {
		if err := toc.Validate(req.TableOfContents); err != nil {
			jsonError(w, "invalid table of contents: "+err.Error(), http.StatusBadRequest)
			return
		}
		prior = &pipeline.ParseResult{
			TableOfContents:  req.TableOfContents,
			FullHTMLDocument: req.FullHTMLDocument,
		}
	}

	res, err := s.orchestrator.Pipeline().ClassifyStage(r.Context(), prior, pipeline.ClassifyInput{
		TargetDataType: req.TargetDataType,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
