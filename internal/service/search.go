package service

import (
	"context"
	"errors"
	"strings"

	"github.com/taleforge/taleforge/internal/domain"
	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/listing"
	"github.com/taleforge/taleforge/internal/search"
	"github.com/taleforge/taleforge/internal/store"
)

// SearchQuery is one page of a full-text story search.
type SearchQuery struct {
	Text     string `json:"q" validate:"notblank,max=200"`
	Page     int    `json:"page" validate:"gte=0"`
	PageSize int    `json:"size" validate:"gte=1,lte=100"`
}

// Search returns published stories matching q.Text, best match first. Without an
// index it falls back to the listing filter, newest first.
func (s *StoryService) Search(ctx context.Context, q SearchQuery) (domain.Page[domain.Story], error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.PageSize == 0 {
		q.PageSize = domain.DefaultPageSize
	}
	if err := s.validator.Validate(q); err != nil {
		return domain.Page[domain.Story]{}, err
	}

	if s.index == nil {
		return s.List(ctx, domain.ListingQuery{Page: q.Page, PageSize: q.PageSize, Search: q.Text})
	}

	res, err := s.index.Search(ctx, search.Params{
		Query:  q.Text,
		Limit:  q.PageSize,
		Offset: q.Page * q.PageSize,
	})
	if err != nil {
		return domain.Page[domain.Story]{}, domainerrors.Internal("search failed").WithCause(err)
	}

	records := make([]store.Story, 0, len(res.Hits))
	for _, hit := range res.Hits {
		rec, err := s.store.Story(ctx, hit.ID)
		switch {
		case errors.Is(err, store.ErrStoryNotFound):
			s.logger.Warn("search hit for missing story", "story_id", hit.ID)
			continue
		case err != nil:
			return domain.Page[domain.Story]{}, mapStoreError(err, "load search hit")
		}
		if !rec.Published {
			continue
		}
		records = append(records, rec)
	}

	stories, err := s.join(ctx, records)
	if err != nil {
		return domain.Page[domain.Story]{}, err
	}

	total := int(res.Total)
	return domain.Page[domain.Story]{
		Content:       stories,
		TotalPages:    listing.TotalPages(total, q.PageSize),
		TotalElements: total,
		Size:          q.PageSize,
		Number:        q.Page,
	}, nil
}

// Reindex rebuilds the search index from every published story.
func (s *StoryService) Reindex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	records, err := s.store.Stories(ctx)
	if err != nil {
		return mapStoreError(err, "list stories")
	}
	stories, err := s.join(ctx, records)
	if err != nil {
		return err
	}

	docs := make([]*search.Document, 0, len(stories))
	for i := range stories {
		if stories[i].Published {
			docs = append(docs, search.StoryDocument(&stories[i]))
		}
	}
	return s.index.Replace(docs)
}

// reindex keeps the index in step with one story: published stories are indexed,
// drafts removed. Index failures are logged; the store stays authoritative.
func (s *StoryService) reindex(story *domain.Story) {
	if s.index == nil {
		return
	}
	var err error
	if story.Published {
		err = s.index.Put(search.StoryDocument(story))
	} else {
		err = s.index.Remove(story.ID.String())
	}
	if err != nil {
		s.logger.Warn("failed to update search index", "story_id", story.ID, "error", err)
	}
}

func (s *StoryService) unindex(id domain.ID) {
	if s.index == nil {
		return
	}
	if err := s.index.Remove(id.String()); err != nil {
		s.logger.Warn("failed to remove story from search index", "story_id", id, "error", err)
	}
}
