package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/curatorapp/curator-server/internal/catalog"
	"github.com/curatorapp/curator-server/internal/domain"
	"github.com/curatorapp/curator-server/internal/query"
)

func (s *Server) registerCategoryRoutes() {
	security := []map[string][]string{{"bearer": {}}}

	huma.Register(s.api, huma.Operation{
		OperationID: "listCategories",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories",
		Summary:     "List categories",
		Description: "Returns the session's category cache with the current selection",
		Tags:        []string{"Categories"},
		Security:    security,
	}, s.handleListCategories)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createCategory",
		Method:        http.MethodPost,
		Path:          "/api/v1/categories",
		Summary:       "Create category",
		Tags:          []string{"Categories"},
		Security:      security,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "syncCategories",
		Method:      http.MethodPost,
		Path:        "/api/v1/categories/sync",
		Summary:     "Force sync",
		Description: "Refetches the category list from the store, replacing the cache",
		Tags:        []string{"Categories"},
		Security:    security,
	}, s.handleSyncCategories)

	huma.Register(s.api, huma.Operation{
		OperationID: "lookupCategories",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories/lookup",
		Summary:     "Find categories by name",
		Description: "Fuzzy, case-insensitive name lookup, best match first",
		Tags:        []string{"Categories"},
		Security:    security,
	}, s.handleLookupCategories)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCategory",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories/{id}",
		Summary:     "Get category",
		Tags:        []string{"Categories"},
		Security:    security,
	}, s.handleGetCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCategory",
		Method:      http.MethodPatch,
		Path:        "/api/v1/categories/{id}",
		Summary:     "Update category",
		Description: "Applies the supplied fields; omitted fields are unchanged",
		Tags:        []string{"Categories"},
		Security:    security,
	}, s.handleUpdateCategory)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteCategory",
		Method:        http.MethodDelete,
		Path:          "/api/v1/categories/{id}",
		Summary:       "Delete category",
		Tags:          []string{"Categories"},
		Security:      security,
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteCategory)

	huma.Register(s.api, huma.Operation{
		OperationID: "previewCategoryQuery",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories/{id}/query",
		Summary:     "Preview enhanced query",
		Description: "Shows how a query would be enhanced with the category's name and keywords",
		Tags:        []string{"Categories"},
		Security:    security,
	}, s.handlePreviewQuery)
}

// CategoryListOutput wraps the category snapshot for Huma.
type CategoryListOutput struct {
	Body catalog.Snapshot
}

// CategoryOutput wraps a single category for Huma.
type CategoryOutput struct {
	Body *domain.Category
}

// CreateCategoryRequest is the request body for creating a category.
type CreateCategoryRequest struct {
	Name        string   `json:"name" doc:"Unique name, at most 100 characters"`
	Description string   `json:"description,omitempty" doc:"Free-form description"`
	Keywords    []string `json:"keywords,omitempty" doc:"Ordered search keywords; the first entries get priority"`
	Tags        []string `json:"tags,omitempty" doc:"Labels"`
	IsActive    *bool    `json:"is_active,omitempty" doc:"Defaults to true"`
}

// CreateCategoryInput wraps the create request for Huma.
type CreateCategoryInput struct {
	Body CreateCategoryRequest
}

// UpdateCategoryRequest is the request body for a partial update.
type UpdateCategoryRequest struct {
	Name        *string   `json:"name,omitempty" doc:"New name"`
	Description *string   `json:"description,omitempty" doc:"New description"`
	Keywords    *[]string `json:"keywords,omitempty" doc:"Replacement keyword list"`
	Tags        *[]string `json:"tags,omitempty" doc:"Replacement tag list"`
	IsActive    *bool     `json:"is_active,omitempty" doc:"Active flag"`
	VideoCount  *int      `json:"video_count,omitempty" doc:"Cached video count"`
}

// UpdateCategoryInput wraps the update request for Huma.
type UpdateCategoryInput struct {
	ID   string `path:"id" doc:"Category ID"`
	Body UpdateCategoryRequest
}

// CategoryIDInput selects a category by path.
type CategoryIDInput struct {
	ID string `path:"id" doc:"Category ID"`
}

// LookupCategoriesInput holds the lookup query.
type LookupCategoriesInput struct {
	Name  string `query:"name" minLength:"1" doc:"Name fragment to match"`
	Limit int    `query:"limit" minimum:"0" maximum:"100" default:"10" doc:"Maximum matches; 0 for all"`
}

// CategoryMatchesOutput wraps lookup results for Huma.
type CategoryMatchesOutput struct {
	Body struct {
		Categories []*domain.Category `json:"categories" doc:"Matches, best first"`
	}
}

// PreviewQueryInput holds the category and the raw query.
type PreviewQueryInput struct {
	ID string `path:"id" doc:"Category ID"`
	Q  string `query:"q" doc:"User query"`
}

// PreviewQueryOutput wraps the enhancement for Huma.
type PreviewQueryOutput struct {
	Body query.Enhancement
}

func (s *Server) handleListCategories(ctx context.Context, _ *struct{}) (*CategoryListOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	return &CategoryListOutput{Body: sess.Categories.Snapshot()}, nil
}

func (s *Server) handleCreateCategory(ctx context.Context, input *CreateCategoryInput) (*CategoryOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	c, err := sess.Categories.Add(ctx, catalog.CategoryInput{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		Keywords:    input.Body.Keywords,
		Tags:        input.Body.Tags,
		IsActive:    input.Body.IsActive,
	})
	if err != nil {
		return nil, err
	}
	return &CategoryOutput{Body: c}, nil
}

func (s *Server) handleSyncCategories(ctx context.Context, _ *struct{}) (*CategoryListOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Syncer.ForceSync(ctx); err != nil {
		return nil, err
	}
	return &CategoryListOutput{Body: sess.Categories.Snapshot()}, nil
}

func (s *Server) handleLookupCategories(ctx context.Context, input *LookupCategoriesInput) (*CategoryMatchesOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	out := &CategoryMatchesOutput{}
	out.Body.Categories = sess.Categories.Find(input.Name, input.Limit)
	return out, nil
}

func (s *Server) handleGetCategory(ctx context.Context, input *CategoryIDInput) (*CategoryOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	c, err := sess.Categories.Get(input.ID)
	if err != nil {
		return nil, err
	}
	return &CategoryOutput{Body: c}, nil
}

func (s *Server) handleUpdateCategory(ctx context.Context, input *UpdateCategoryInput) (*CategoryOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	b := input.Body
	c, err := sess.Categories.Update(ctx, input.ID, catalog.CategoryPatch{
		Name:        b.Name,
		Description: b.Description,
		Keywords:    b.Keywords,
		Tags:        b.Tags,
		IsActive:    b.IsActive,
		VideoCount:  b.VideoCount,
	})
	if err != nil {
		return nil, err
	}
	return &CategoryOutput{Body: c}, nil
}

func (s *Server) handleDeleteCategory(ctx context.Context, input *CategoryIDInput) (*struct{}, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Categories.Delete(ctx, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handlePreviewQuery(ctx context.Context, input *PreviewQueryInput) (*PreviewQueryOutput, error) {
	sess, err := s.userSession(ctx)
	if err != nil {
		return nil, err
	}
	c, err := sess.Categories.Get(input.ID)
	if err != nil {
		return nil, err
	}
	return &PreviewQueryOutput{Body: query.Enhance(c, input.Q)}, nil
}
