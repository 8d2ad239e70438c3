package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/taleforge/taleforge/internal/domain"
)

// Params configures a search.
type Params struct {
	Query  string
	Limit  int
	Offset int
	// Highlight asks for a title fragment with the matched terms marked.
	Highlight bool
}

// Result is one page of hits, best match first.
type Result struct {
	Total uint64
	Hits  []Hit
}

// Hit is a matching story.
type Hit struct {
	ID        domain.ID
	Score     float64
	Highlight string
}

// Search runs a relevance-ranked query. An empty query matches every story,
// newest first.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = domain.DefaultPageSize
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params.Query), params.Limit, params.Offset, false)
	if strings.TrimSpace(params.Query) == "" {
		req.SortBy([]string{"-created_at", "_id"})
	} else {
		req.SortBy([]string{"-_score", "-created_at", "_id"})
	}
	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("title")
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		hit := Hit{ID: domain.ID(h.ID), Score: h.Score}
		if fragments := h.Fragments["title"]; len(fragments) > 0 {
			hit.Highlight = fragments[0]
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// buildQuery matches titles hardest, then author names and tags, then the
// description and story text. Fuzzy and prefix clauses on the title tolerate
// typos and partial words.
func buildQuery(text string) query.Query {
	text = strings.TrimSpace(text)
	if text == "" {
		return bleve.NewMatchAllQuery()
	}
	lower := strings.ToLower(text)

	title := bleve.NewMatchQuery(text)
	title.SetField("title")
	title.SetBoost(3.0)

	author := bleve.NewMatchQuery(text)
	author.SetField("author")
	author.SetBoost(2.0)

	username := bleve.NewTermQuery(lower)
	username.SetField("username")
	username.SetBoost(2.0)

	tag := bleve.NewTermQuery(domain.FoldTag(text))
	tag.SetField("tags")
	tag.SetBoost(2.0)

	description := bleve.NewMatchQuery(text)
	description.SetField("description")
	description.SetBoost(1.5)

	content := bleve.NewMatchQuery(text)
	content.SetField("content")

	fuzzy := bleve.NewFuzzyQuery(lower)
	fuzzy.SetFuzziness(1)
	fuzzy.SetField("title")
	fuzzy.SetBoost(0.8)

	queries := []query.Query{title, author, username, tag, description, content, fuzzy}

	if len(lower) >= 2 {
		prefix := bleve.NewPrefixQuery(lower)
		prefix.SetField("title")
		prefix.SetBoost(0.5)
		queries = append(queries, prefix)
	}

	return bleve.NewDisjunctionQuery(queries...)
}
