package domain

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Story is an authored piece of fiction with its publication state and counters.
// Likes and views are never negative. Whether the viewer has liked the story is
// relationship state and lives outside this type.
type Story struct {
	ID          ID          `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Content     string      `json:"content"`
	Author      UserSummary `json:"author"`
	Tags        []string    `json:"tags"`
	Published   bool        `json:"published"`
	Views       int64       `json:"views"`
	Likes       int64       `json:"likes"`
	// Rating is the mean reader rating, 0 until someone rates the story.
	Rating  float64 `json:"rating"`
	Ratings int64   `json:"ratings"`
	Timestamps
}

// IsAuthor reports whether userID wrote the story.
func (s *Story) IsAuthor(userID ID) bool {
	return !userID.IsZero() && s.Author.ID == userID
}

// VisibleTo reports whether viewerID may read the story: published stories are
// public, drafts only to their author.
func (s *Story) VisibleTo(viewerID ID) bool {
	return s.Published || s.IsAuthor(viewerID)
}

// HasTag reports whether the story carries tag, ignoring case.
func (s *Story) HasTag(tag string) bool {
	want := FoldTag(tag)
	return slices.ContainsFunc(s.Tags, func(t string) bool { return FoldTag(t) == want })
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (s Story) Clone() Story {
	s.Tags = slices.Clone(s.Tags)
	s.Author.Roles = slices.Clone(s.Author.Roles)
	return s
}

// StoryDraft is the editable part of a story, sent on create and update.
type StoryDraft struct {
	Title       string   `json:"title" validate:"notblank,min=3,max=100"`
	Description string   `json:"description" validate:"notblank,min=10,max=1000"`
	Content     string   `json:"content" validate:"notblank,min=50,max=10000"`
	Tags        []string `json:"tags" validate:"max=20,dive,notblank,max=50"`
}

// DraftOf returns the editable fields of s.
func DraftOf(s Story) StoryDraft {
	return StoryDraft{
		Title:       s.Title,
		Description: s.Description,
		Content:     s.Content,
		Tags:        slices.Clone(s.Tags),
	}
}

// Normalized trims text fields and normalizes tags: trimmed, lower-cased, NFC,
// duplicates dropped, first occurrence order kept.
func (d StoryDraft) Normalized() StoryDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Content = strings.TrimSpace(d.Content)
	d.Tags = NormalizeTags(d.Tags)
	return d
}

// NormalizeTags applies tag normalization to a list and removes duplicates and empties.
func NormalizeTags(tags []string) []string {
	// Casers are stateful; one per call.
	lower := cases.Lower(language.Und)
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		n := lower.String(norm.NFC.String(strings.TrimSpace(t)))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// FoldTag returns the caseless form used to compare tags.
func FoldTag(tag string) string {
	return Fold(strings.TrimSpace(tag))
}

// Fold returns the caseless, NFC-normalized form of s for case-insensitive matching.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
