package domain

import "strings"

// SortKey names a sortable story field.
type SortKey string

// Sort keys accepted by listings.
const (
	SortCreatedAt SortKey = "createdAt"
	SortViews     SortKey = "views"
	SortLikes     SortKey = "likes"
	SortRating    SortKey = "rating"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Listing defaults.
const (
	DefaultPageSize = 9
	MaxPageSize     = 100
)

// ListingQuery selects one page of a story listing. It is a pure input value.
type ListingQuery struct {
	Page      int       `json:"page" validate:"gte=0"`
	PageSize  int       `json:"size" validate:"gte=1,lte=100"`
	SortKey   SortKey   `json:"sortBy" validate:"oneof=createdAt views likes rating"`
	Direction Direction `json:"direction" validate:"oneof=asc desc"`
	Tag       string    `json:"tag,omitempty" validate:"max=50"`
	Search    string    `json:"search,omitempty" validate:"max=200"`
}

// DefaultQuery returns the first page of newest stories.
func DefaultQuery() ListingQuery {
	return ListingQuery{
		Page:      0,
		PageSize:  DefaultPageSize,
		SortKey:   SortCreatedAt,
		Direction: Desc,
	}
}

// WithDefaults fills unset fields. Page is left alone since zero is a valid page.
func (q ListingQuery) WithDefaults() ListingQuery {
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	if q.SortKey == "" {
		q.SortKey = SortCreatedAt
	}
	if q.Direction == "" {
		q.Direction = Desc
	}
	q.SortKey = SortKey(strings.TrimSpace(string(q.SortKey)))
	q.Direction = Direction(strings.ToLower(strings.TrimSpace(string(q.Direction))))
	q.Tag = strings.TrimSpace(q.Tag)
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Rating bounds, inclusive. Any value in range is accepted.
const (
	MinRating = 0.0
	MaxRating = 5.0
)

// RatingSummary is a story's rating after a reader rated it.
type RatingSummary struct {
	Rating  float64 `json:"rating"`
	Ratings int64   `json:"ratings"`
}

// TopRatedLimit is the default size of the top-rated list.
const TopRatedLimit = 10

// TagFrequency counts how many stories in a listing carry a tag.
type TagFrequency struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
