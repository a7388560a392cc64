package videoindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Sort orders for Search.
const (
	SortRelevance = "relevance"
	SortScore     = "score"
	SortRecent    = "recent"
)

// Params configures a search. UserID is required.
type Params struct {
	UserID     string `json:"-"`
	Query      string `json:"q"`
	CategoryID string `json:"category_id,omitempty"`
	Topic      string `json:"topic,omitempty"`
	MinScore   int    `json:"min_score,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
	SortBy     string `json:"sort_by,omitempty"`
	Highlight  bool   `json:"highlight,omitempty"`
}

// Result is one page of hits.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is a single matching analysis.
type Hit struct {
	VideoID        string            `json:"video_id"`
	CategoryID     string            `json:"category_id"`
	Title          string            `json:"title"`
	ChannelTitle   string            `json:"channel_title,omitempty"`
	Summary        string            `json:"summary,omitempty"`
	Topics         []string          `json:"topics,omitempty"`
	RelevanceScore int               `json:"relevance_score"`
	Score          float64           `json:"score"`
	Highlights     map[string]string `json:"highlights,omitempty"`
}

const defaultLimit = 20

// Search runs p against the index.
func (x *Index) Search(ctx context.Context, p Params) (*Result, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("search: user id is required")
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQuery(p), p.Limit, p.Offset, false)
	switch p.SortBy {
	case SortScore:
		req.SortBy([]string{"-" + fieldScore, "-_score"})
	case SortRecent:
		req.SortBy([]string{"-" + fieldAnalyzedAt})
	}
	if p.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField(fieldTitle)
		req.Highlight.AddField(fieldSummary)
	}
	req.Fields = []string{fieldVideoID, fieldCategoryID, fieldTitle, fieldChannel, fieldSummary, fieldTopics, fieldScore}

	res, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  p.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{Score: h.Score}
		hit.VideoID, _ = h.Fields[fieldVideoID].(string)
		hit.CategoryID, _ = h.Fields[fieldCategoryID].(string)
		hit.Title, _ = h.Fields[fieldTitle].(string)
		hit.ChannelTitle, _ = h.Fields[fieldChannel].(string)
		hit.Summary, _ = h.Fields[fieldSummary].(string)
		if s, ok := h.Fields[fieldScore].(float64); ok {
			hit.RelevanceScore = int(s)
		}
		hit.Topics = stringsField(h.Fields[fieldTopics])

		if len(h.Fragments) > 0 {
			hit.Highlights = make(map[string]string, len(h.Fragments))
			for field, frags := range h.Fragments {
				if len(frags) > 0 {
					hit.Highlights[field] = frags[0]
				}
			}
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

func buildQuery(p Params) query.Query {
	queries := []query.Query{term(fieldUserID, p.UserID)}

	if q := strings.TrimSpace(p.Query); q != "" {
		title := bleve.NewMatchQuery(q)
		title.SetField(fieldTitle)
		title.SetBoost(3.0)

		summary := bleve.NewMatchQuery(q)
		summary.SetField(fieldSummary)
		summary.SetBoost(1.5)

		reasoning := bleve.NewMatchQuery(q)
		reasoning.SetField(fieldReasoning)

		channel := bleve.NewMatchQuery(q)
		channel.SetField(fieldChannel)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField(fieldTitle)
		fuzzy.SetBoost(0.8)

		queries = append(queries, bleve.NewDisjunctionQuery(title, summary, reasoning, channel, fuzzy))
	}

	if p.CategoryID != "" {
		queries = append(queries, term(fieldCategoryID, p.CategoryID))
	}
	if p.Topic != "" {
		queries = append(queries, term(fieldTopics, p.Topic))
	}
	if p.MinScore > 0 {
		lo := float64(p.MinScore)
		hi := float64(100)
		inclusive := true
		r := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		r.SetField(fieldScore)
		queries = append(queries, r)
	}

	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// stringsField normalizes a stored multi-value field, which Bleve returns as
// a string for one value and []interface{} for several.
func stringsField(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
