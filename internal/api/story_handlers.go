package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/taleforge/taleforge/internal/api/dto"
	"github.com/taleforge/taleforge/internal/domain"
	"github.com/taleforge/taleforge/internal/service"
)

func (s *Server) registerStoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listStories",
		Method:      http.MethodGet,
		Path:        "/stories",
		Summary:     "List stories",
		Description: "Returns one page of published stories, filtered by tag and sorted by creation time, views or likes",
		Tags:        []string{"Stories"},
	}, s.handleListStories)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyStories",
		Method:      http.MethodGet,
		Path:        "/stories/me",
		Summary:     "List my stories",
		Description: "Returns every story of the current user, drafts included, newest first",
		Tags:        []string{"Stories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMyStories)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchStories",
		Method:      http.MethodGet,
		Path:        "/stories/search",
		Summary:     "Search stories",
		Description: "Full-text search over published stories, best match first",
		Tags:        []string{"Stories"},
	}, s.handleSearchStories)

	huma.Register(s.api, huma.Operation{
		OperationID: "topRatedStories",
		Method:      http.MethodGet,
		Path:        "/stories/top-rated",
		Summary:     "Top rated stories",
		Description: "Returns the highest rated published stories",
		Tags:        []string{"Stories"},
	}, s.handleTopRated)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAuthorStories",
		Method:      http.MethodGet,
		Path:        "/stories/author/{authorId}",
		Summary:     "List an author's stories",
		Description: "Returns the published stories of one author, newest first",
		Tags:        []string{"Stories"},
	}, s.handleAuthorStories)

	huma.Register(s.api, huma.Operation{
		OperationID: "getStory",
		Method:      http.MethodGet,
		Path:        "/stories/{id}",
		Summary:     "Get story",
		Description: "Returns a published story, or a draft to its author",
		Tags:        []string{"Stories"},
	}, s.handleGetStory)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createStory",
		Method:        http.MethodPost,
		Path:          "/stories",
		Summary:       "Create story",
		Description:   "Creates an unpublished story owned by the current user",
		Tags:          []string{"Stories"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateStory)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateStory",
		Method:      http.MethodPut,
		Path:        "/stories/{id}",
		Summary:     "Update story",
		Description: "Replaces the title, description, content and tags of a story the user owns",
		Tags:        []string{"Stories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateStory)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteStory",
		Method:        http.MethodDelete,
		Path:          "/stories/{id}",
		Summary:       "Delete story",
		Description:   "Deletes a story the user owns with its comments and likes",
		Tags:          []string{"Stories"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteStory)

	huma.Register(s.api, huma.Operation{
		OperationID: "recordStoryView",
		Method:      http.MethodPost,
		Path:        "/stories/{id}/view",
		Summary:     "Record view",
		Description: "Counts one view and returns the new total",
		Tags:        []string{"Stories"},
	}, s.handleRecordView)

	huma.Register(s.api, huma.Operation{
		OperationID: "rateStory",
		Method:      http.MethodPost,
		Path:        "/stories/{id}/rate",
		Summary:     "Rate story",
		Description: "Records the current user's rating (0-5) and returns the new mean. Rating again replaces the earlier value.",
		Tags:        []string{"Stories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRateStory)

	huma.Register(s.api, huma.Operation{
		OperationID: "publishStory",
		Method:      http.MethodPost,
		Path:        "/stories/{id}/publish",
		Summary:     "Publish story",
		Description: "Makes a story the user owns publicly visible",
		Tags:        []string{"Stories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handlePublish)

	huma.Register(s.api, huma.Operation{
		OperationID: "unpublishStory",
		Method:      http.MethodPost,
		Path:        "/stories/{id}/unpublish",
		Summary:     "Unpublish story",
		Description: "Hides a story the user owns from public listings",
		Tags:        []string{"Stories"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUnpublish)
}

// === DTOs ===

// ListStoriesInput contains the listing query parameters.
type ListStoriesInput struct {
	Page      int    `query:"page" minimum:"0" doc:"Zero-based page number"`
	Size      int    `query:"size" doc:"Page size (1-100, default 9)"`
	SortBy    string `query:"sortBy" doc:"createdAt, views, likes or rating"`
	Direction string `query:"direction" doc:"asc or desc"`
	Tag       string `query:"tag" doc:"Only stories carrying this tag"`
	Search    string `query:"search" doc:"Case-insensitive text match on title, description, tags and author"`
}

// Query converts the parameters to a listing query.
func (in *ListStoriesInput) Query() domain.ListingQuery {
	return domain.ListingQuery{
		Page:      in.Page,
		PageSize:  in.Size,
		SortKey:   domain.SortKey(in.SortBy),
		Direction: domain.Direction(in.Direction),
		Tag:       in.Tag,
		Search:    in.Search,
	}
}

// SearchStoriesInput contains the search query parameters.
type SearchStoriesInput struct {
	Q    string `query:"q" maxLength:"200" doc:"Search text"`
	Page int    `query:"page" minimum:"0" doc:"Zero-based page number"`
	Size int    `query:"size" doc:"Page size (1-100, default 9)"`
}

// TopRatedInput limits the top-rated list.
type TopRatedInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"100" doc:"Number of stories (default 10)"`
}

// AuthorStoriesInput identifies an author by path.
type AuthorStoriesInput struct {
	AuthorID string `path:"authorId" doc:"Author user ID"`
}

// RateStoryInput wraps a rating request for huma.
type RateStoryInput struct {
	ID   string `path:"id" doc:"Story ID"`
	Body dto.RateRequest
}

// RatingOutput wraps a story rating for huma.
type RatingOutput struct {
	Body dto.Rating
}

// StoryPageOutput wraps a page of stories for huma.
type StoryPageOutput struct {
	Body dto.Page[dto.Story]
}

// StoryListOutput wraps a list of stories for huma.
type StoryListOutput struct {
	Body []dto.Story
}

// StoryIDInput identifies a story by path.
type StoryIDInput struct {
	ID string `path:"id" doc:"Story ID"`
}

// StoryInput wraps a story create request for huma.
type StoryInput struct {
	Body dto.StoryRequest
}

// UpdateStoryInput wraps a story update request for huma.
type UpdateStoryInput struct {
	ID   string `path:"id" doc:"Story ID"`
	Body dto.StoryRequest
}

// StoryOutput wraps a story for huma.
type StoryOutput struct {
	Body dto.Story
}

// ViewsOutput wraps a view counter for huma.
type ViewsOutput struct {
	Body dto.Views
}

// === Handlers ===

func (s *Server) handleListStories(ctx context.Context, input *ListStoriesInput) (*StoryPageOutput, error) {
	page, err := s.services.Story.List(ctx, input.Query())
	if err != nil {
		return nil, err
	}
	return &StoryPageOutput{Body: dto.PageOf(page, dto.StoryOf)}, nil
}

func (s *Server) handleSearchStories(ctx context.Context, input *SearchStoriesInput) (*StoryPageOutput, error) {
	page, err := s.services.Story.Search(ctx, service.SearchQuery{Text: input.Q, Page: input.Page, PageSize: input.Size})
	if err != nil {
		return nil, err
	}
	return &StoryPageOutput{Body: dto.PageOf(page, dto.StoryOf)}, nil
}

func (s *Server) handleListMyStories(ctx context.Context, _ *struct{}) (*StoryListOutput, error) {
	stories, err := s.services.Story.Mine(ctx, viewerFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &StoryListOutput{Body: dto.StoriesOf(stories)}, nil
}

func (s *Server) handleTopRated(ctx context.Context, input *TopRatedInput) (*StoryListOutput, error) {
	stories, err := s.services.Story.TopRated(ctx, input.Limit)
	if err != nil {
		return nil, err
	}
	return &StoryListOutput{Body: dto.StoriesOf(stories)}, nil
}

func (s *Server) handleAuthorStories(ctx context.Context, input *AuthorStoriesInput) (*StoryListOutput, error) {
	stories, err := s.services.Story.ByAuthor(ctx, domain.ID(input.AuthorID))
	if err != nil {
		return nil, err
	}
	return &StoryListOutput{Body: dto.StoriesOf(stories)}, nil
}

func (s *Server) handleRateStory(ctx context.Context, input *RateStoryInput) (*RatingOutput, error) {
	sum, err := s.services.Story.Rate(ctx, viewerFrom(ctx), domain.ID(input.ID), input.Body.Rating)
	if err != nil {
		return nil, err
	}
	return &RatingOutput{Body: dto.Rating{Rating: sum.Rating, Ratings: sum.Ratings}}, nil
}

func (s *Server) handleGetStory(ctx context.Context, input *StoryIDInput) (*StoryOutput, error) {
	story, err := s.services.Story.Get(ctx, viewerFrom(ctx), domain.ID(input.ID))
	if err != nil {
		return nil, err
	}
	return &StoryOutput{Body: dto.StoryOf(story)}, nil
}

func (s *Server) handleCreateStory(ctx context.Context, input *StoryInput) (*StoryOutput, error) {
	story, err := s.services.Story.Create(ctx, viewerFrom(ctx), input.Body.Draft())
	if err != nil {
		return nil, err
	}
	return &StoryOutput{Body: dto.StoryOf(story)}, nil
}

func (s *Server) handleUpdateStory(ctx context.Context, input *UpdateStoryInput) (*StoryOutput, error) {
	story, err := s.services.Story.Update(ctx, viewerFrom(ctx), domain.ID(input.ID), input.Body.Draft())
	if err != nil {
		return nil, err
	}
	return &StoryOutput{Body: dto.StoryOf(story)}, nil
}

func (s *Server) handleDeleteStory(ctx context.Context, input *StoryIDInput) (*struct{}, error) {
	if err := s.services.Story.Delete(ctx, viewerFrom(ctx), domain.ID(input.ID)); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleRecordView(ctx context.Context, input *StoryIDInput) (*ViewsOutput, error) {
	views, err := s.services.Story.RecordView(ctx, viewerFrom(ctx), domain.ID(input.ID))
	if err != nil {
		return nil, err
	}
	return &ViewsOutput{Body: dto.Views{Views: views}}, nil
}

func (s *Server) handlePublish(ctx context.Context, input *StoryIDInput) (*StoryOutput, error) {
	return s.setPublished(ctx, input.ID, true)
}

func (s *Server) handleUnpublish(ctx context.Context, input *StoryIDInput) (*StoryOutput, error) {
	return s.setPublished(ctx, input.ID, false)
}

func (s *Server) setPublished(ctx context.Context, id string, published bool) (*StoryOutput, error) {
	story, err := s.services.Story.SetPublished(ctx, viewerFrom(ctx), domain.ID(id), published)
	if err != nil {
		return nil, err
	}
	return &StoryOutput{Body: dto.StoryOf(story)}, nil
}
