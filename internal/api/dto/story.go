package dto

import (
	"time"

	"github.com/taleforge/taleforge/internal/domain"
)

// Story is a story as returned by the API.
type Story struct {
	ID          string    `json:"id" doc:"Story ID"`
	Title       string    `json:"title" doc:"Title"`
	Description string    `json:"description" doc:"Short description"`
	Content     string    `json:"content" doc:"Story text"`
	Author      User      `json:"author" doc:"Author"`
	Tags        []string  `json:"tags" doc:"Normalized tags"`
	Published   bool      `json:"published" doc:"Whether the story is publicly listed"`
	Views       int64     `json:"views" doc:"Total views"`
	Likes       int64     `json:"likes" doc:"Total likes"`
	Rating      float64   `json:"rating" doc:"Mean reader rating (0-5), 0 when unrated"`
	Ratings     int64     `json:"ratings" doc:"Number of readers who rated the story"`
	CreatedAt   time.Time `json:"createdAt" doc:"Creation time"`
	UpdatedAt   time.Time `json:"updatedAt" doc:"Last edit time"`
}

// StoryOf converts a domain story. Author emails are never exposed here.
func StoryOf(s domain.Story) Story {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	return Story{
		ID:          s.ID.String(),
		Title:       s.Title,
		Description: s.Description,
		Content:     s.Content,
		Author:      UserOf(s.Author.Public()),
		Tags:        tags,
		Published:   s.Published,
		Views:       s.Views,
		Likes:       s.Likes,
		Rating:      s.Rating,
		Ratings:     s.Ratings,
		CreatedAt:   s.CreatedAt.Time,
		UpdatedAt:   s.UpdatedAt.Time,
	}
}

// StoriesOf converts a slice of domain stories.
func StoriesOf(stories []domain.Story) []Story {
	out := make([]Story, len(stories))
	for i, s := range stories {
		out[i] = StoryOf(s)
	}
	return out
}

// RateRequest is the body of a story rating request.
type RateRequest struct {
	Rating float64 `json:"rating" doc:"Rating from 0 to 5"`
}

// Rating is a story's rating after a reader rated it.
type Rating struct {
	Rating  float64 `json:"rating" doc:"Mean reader rating"`
	Ratings int64   `json:"ratings" doc:"Number of ratings"`
}

// StoryRequest is the body of story create and update requests.
type StoryRequest struct {
	Title       string   `json:"title" validate:"notblank,min=3,max=100" doc:"Title (3-100 chars)"`
	Description string   `json:"description" validate:"notblank,min=10,max=1000" doc:"Description (10-1000 chars)"`
	Content     string   `json:"content" validate:"notblank,min=50,max=10000" doc:"Story text (50-10000 chars)"`
	Tags        []string `json:"tags,omitempty" validate:"max=20" doc:"Up to 20 tags"`
}

// Draft converts the request to a domain draft.
func (r StoryRequest) Draft() domain.StoryDraft {
	return domain.StoryDraft{
		Title:       r.Title,
		Description: r.Description,
		Content:     r.Content,
		Tags:        r.Tags,
	}
}
