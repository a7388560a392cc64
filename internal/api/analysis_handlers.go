package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/videoindex"
)

func (s *Server) registerAnalysisRoutes() {
	security := []map[string][]string{{"bearer": {}}}

	huma.Register(s.api, huma.Operation{
		OperationID: "putAnalysis",
		Method:      http.MethodPut,
		Path:        "/api/v1/analyses",
		Summary:     "Store analysis",
		Description: "Caches an externally computed video analysis for one of the caller's categories",
		Tags:        []string{"Analyses"},
		Security:    security,
	}, s.handlePutAnalysis)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchAnalyses",
		Method:      http.MethodGet,
		Path:        "/api/v1/analyses/search",
		Summary:     "Search analyses",
		Description: "Full-text search over the caller's cached analyses",
		Tags:        []string{"Analyses"},
		Security:    security,
	}, s.handleSearchAnalyses)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAnalysis",
		Method:      http.MethodGet,
		Path:        "/api/v1/analyses/{categoryId}/{videoId}",
		Summary:     "Get analysis",
		Tags:        []string{"Analyses"},
		Security:    security,
	}, s.handleGetAnalysis)
}

// AnalysisRequest is the request body for storing an analysis.
type AnalysisRequest struct {
	VideoID        string   `json:"video_id" doc:"Provider video ID"`
	CategoryID     string   `json:"category_id" doc:"Category the video was judged against"`
	VideoTitle     string   `json:"video_title,omitempty" doc:"Video title"`
	ChannelTitle   string   `json:"channel_title,omitempty" doc:"Channel title"`
	RelevanceScore int      `json:"relevance_score" minimum:"0" maximum:"100" doc:"0-100 fit score"`
	Summary        string   `json:"summary,omitempty" doc:"Short summary"`
	Topics         []string `json:"topics,omitempty" doc:"Detected topics"`
	Reasoning      string   `json:"reasoning,omitempty" doc:"Why the score was given"`
	Model          string   `json:"model,omitempty" doc:"Model that produced the analysis"`
}

// AnalysisInput wraps the analysis request for Huma.
type AnalysisInput struct {
	Body AnalysisRequest
}

// AnalysisOutput wraps an analysis for Huma.
type AnalysisOutput struct {
	Body *domain.Analysis
}

// GetAnalysisInput selects a cached analysis.
type GetAnalysisInput struct {
	CategoryID string `path:"categoryId" doc:"Category ID"`
	VideoID    string `path:"videoId" doc:"Video ID"`
}

// SearchAnalysesInput holds the analysis search parameters.
type SearchAnalysesInput struct {
	Q          string `query:"q" doc:"Full-text query; empty matches everything"`
	CategoryID string `query:"category_id" doc:"Restrict to one category"`
	Topic      string `query:"topic" doc:"Restrict to a topic"`
	MinScore   int    `query:"min_score" minimum:"0" maximum:"100" doc:"Minimum relevance score"`
	Limit      int    `query:"limit" minimum:"0" maximum:"100" default:"20" doc:"Page size"`
	Offset     int    `query:"offset" minimum:"0" doc:"Page offset"`
	SortBy     string `query:"sort_by" enum:"relevance,score,recent" default:"relevance" doc:"Sort order"`
	Highlight  bool   `query:"highlight" doc:"Return highlighted fragments"`
}

// SearchAnalysesOutput wraps the search result for Huma.
type SearchAnalysesOutput struct {
	Body *videoindex.Result
}

func (s *Server) handlePutAnalysis(ctx context.Context, input *AnalysisInput) (*AnalysisOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	b := input.Body
	a, err := s.services.Analysis.Put(ctx, userID, &domain.Analysis{
		VideoID:        b.VideoID,
		CategoryID:     b.CategoryID,
		VideoTitle:     b.VideoTitle,
		ChannelTitle:   b.ChannelTitle,
		RelevanceScore: b.RelevanceScore,
		Summary:        b.Summary,
		Topics:         b.Topics,
		Reasoning:      b.Reasoning,
		Model:          b.Model,
	})
	if err != nil {
		return nil, err
	}
	return &AnalysisOutput{Body: a}, nil
}

func (s *Server) handleGetAnalysis(ctx context.Context, input *GetAnalysisInput) (*AnalysisOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.services.Analysis.Get(ctx, userID, input.CategoryID, input.VideoID)
	if err != nil {
		return nil, err
	}
	return &AnalysisOutput{Body: a}, nil
}

func (s *Server) handleSearchAnalyses(ctx context.Context, input *SearchAnalysesInput) (*SearchAnalysesOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.services.Analysis.Search(ctx, userID, videoindex.Params{
		Query:      input.Q,
		CategoryID: input.CategoryID,
		Topic:      input.Topic,
		MinScore:   input.MinScore,
		Limit:      input.Limit,
		Offset:     input.Offset,
		SortBy:     input.SortBy,
		Highlight:  input.Highlight,
	})
	if err != nil {
		return nil, err
	}
	return &SearchAnalysesOutput{Body: res}, nil
}
