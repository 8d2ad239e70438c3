// Package search provides full-text search over published stories using Bleve.
// Titles, descriptions, story text, author names and tags are indexed; results are
// ranked by relevance with fuzzy and prefix matching on titles.
package search

import (
	"github.com/taleforge/taleforge/internal/domain"
)

// Document is the indexed form of a story.
//
// The author's display name is denormalized into the document so a single query
// covers "stories by Ann" as well as "stories about lanterns".
type Document struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Content     string   `json:"content,omitempty"`
	Author      string   `json:"author,omitempty"`
	Username    string   `json:"username,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	CreatedAt   int64    `json:"created_at"` // Unix millis
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"created_at": d.CreatedAt,
	}

	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Content != "" {
		m["content"] = d.Content
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.Username != "" {
		m["username"] = d.Username
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}

	return m
}

// StoryDocument converts a story to its search document.
func StoryDocument(s *domain.Story) *Document {
	return &Document{
		ID:          s.ID.String(),
		Title:       s.Title,
		Description: s.Description,
		Content:     s.Content,
		Author:      s.Author.Name(),
		Username:    s.Author.Username,
		Tags:        foldTags(s.Tags),
		CreatedAt:   s.CreatedAt.UnixMilli(),
	}
}

func foldTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if f := domain.FoldTag(t); f != "" {
			out = append(out, f)
		}
	}
	return out
}
