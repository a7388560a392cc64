package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	security := []map[string][]string{{"bearer": {}}}

	huma.Register(s.api, huma.Operation{
		OperationID: "getSearchState",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Get search state",
		Tags:        []string{"Search"},
		Security:    security,
	}, s.handleGetSearchState)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchVideos",
		Method:      http.MethodPost,
		Path:        "/api/v1/search",
		Summary:     "Search videos",
		Description: "Runs a search immediately, biased by the selected category's keywords",
		Tags:        []string{"Search"},
		Security:    security,
	}, s.handleSearchVideos)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearSearch",
		Method:      http.MethodDelete,
		Path:        "/api/v1/search",
		Summary:     "Clear results",
		Tags:        []string{"Search"},
		Security:    security,
	}, s.handleClearSearch)

	huma.Register(s.api, huma.Operation{
		OperationID:   "setSearchQuery",
		Method:        http.MethodPut,
		Path:          "/api/v1/search/query",
		Summary:       "Set query",
		Description:   "Records the in-progress query; the search runs once it has been stable for the query debounce window",
		Tags:          []string{"Search"},
		Security:      security,
		DefaultStatus: http.StatusAccepted,
	}, s.handleSetQuery)

	huma.Register(s.api, huma.Operation{
		OperationID:   "selectCategory",
		Method:        http.MethodPut,
		Path:          "/api/v1/search/category",
		Summary:       "Select category",
		Description:   "Changes the selected category; a stored search is re-run after the category debounce window",
		Tags:          []string{"Search"},
		Security:      security,
		DefaultStatus: http.StatusAccepted,
	}, s.handleSelectCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "nextPage",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/next",
		Summary:     "Load next page",
		Tags:        []string{"Search"},
		Security:    security,
	}, s.handleNextPage)

	huma.Register(s.api, huma.Operation{
		OperationID: "prevPage",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/prev",
		Summary:     "Load previous page",
		Tags:        []string{"Search"},
		Security:    security,
	}, s.handlePrevPage)

	huma.Register(s.api, huma.Operation{
		OperationID: "refetchSearch",
		Method:      http.MethodPost,
		Path:        "/api/v1/search/refetch",
		Summary:     "Refetch current search",
		Description: "Re-runs the stored search from the first page against the current selection",
		Tags:        []string{"Search"},
		Security:    security,
	}, s.handleRefetch)
}

// SearchStateOutput wraps the controller state for Huma.
type SearchStateOutput struct {
	Body search.State
}

// SearchRequest is the request body for an immediate search.
type SearchRequest struct {
	Query   string                `json:"query" doc:"User query; blank clears the results"`
	Options *domain.SearchOptions `json:"options,omitempty" doc:"Per-call overrides of the search defaults"`
}

// SearchInput wraps the search request for Huma.
type SearchInput struct {
	Body SearchRequest
}

// SetQueryInput wraps the debounced query for Huma.
type SetQueryInput struct {
	Body struct {
		Query string `json:"query" doc:"In-progress query"`
	}
}

// SelectCategoryInput wraps the selection for Huma.
type SelectCategoryInput struct {
	Body struct {
		CategoryID string `json:"category_id,omitempty" doc:"Category to select; empty clears the selection"`
	}
}

// SelectionResponse acknowledges a debounced input.
type SelectionResponse struct {
	Query      string `json:"query" doc:"Current query input"`
	CategoryID string `json:"category_id,omitempty" doc:"Current selection"`
}

// SelectionOutput wraps the acknowledgement for Huma.
type SelectionOutput struct {
	Body SelectionResponse
}

func (s *Server) handleGetSearchState(ctx context.Context, _ *struct{}) (*SearchStateOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	return &SearchStateOutput{Body: sess.Search.State()}, nil
}

func (s *Server) handleSearchVideos(ctx context.Context, input *SearchInput) (*SearchStateOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	if input.Body.Options != nil {
		if err := s.validator.Validate(input.Body.Options); err != nil {
			return nil, err
		}
	}
	return &SearchStateOutput{Body: sess.SearchVideos(ctx, input.Body.Query, input.Body.Options)}, nil
}

func (s *Server) handleClearSearch(ctx context.Context, _ *struct{}) (*SearchStateOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	sess.Search.ClearResults()
	return &SearchStateOutput{Body: sess.Search.State()}, nil
}

func (s *Server) handleSetQuery(ctx context.Context, input *SetQueryInput) (*SelectionOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	sess.SetQuery(input.Body.Query)
	return &SelectionOutput{Body: selection(sess.Query(), sess.Categories.SelectedCategory())}, nil
}

func (s *Server) handleSelectCategory(ctx context.Context, input *SelectCategoryInput) (*SelectionOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.SelectCategory(input.Body.CategoryID); err != nil {
		return nil, err
	}
	return &SelectionOutput{Body: selection(sess.Query(), sess.Categories.SelectedCategory())}, nil
}

func (s *Server) handleNextPage(ctx context.Context, _ *struct{}) (*SearchStateOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	return &SearchStateOutput{Body: sess.Search.LoadNextPage(ctx)}, nil
}

func (s *Server) handlePrevPage(ctx context.Context, _ *struct{}) (*SearchStateOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	return &SearchStateOutput{Body: sess.Search.LoadPrevPage(ctx)}, nil
}

func (s *Server) handleRefetch(ctx context.Context, _ *struct{}) (*SearchStateOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	return &SearchStateOutput{Body: sess.Search.RefetchCurrentSearch(ctx)}, nil
}

func selection(q string, selected *domain.Category) SelectionResponse {
	out := SelectionResponse{Query: q}
	if selected != nil {
		out.CategoryID = selected.ID
	}
	return out
}
