// Package listing turns a story collection and a ListingQuery into one page of
// results plus a popular-tags facet.
//
// Apply is pure and is shared by the client pipeline (over a bulk fetch) and the
// reference server (over its store). Public listings never contain drafts.
package listing

import (
	"cmp"
	"slices"
	"strings"

	"github.com/taleforge/taleforge/internal/domain"
)

// DefaultTopTags is the size of the popular-tags facet.
const DefaultTopTags = 6

// Options adjusts Apply.
type Options struct {
	// IncludeUnpublished keeps drafts. Only the owner's own listing sets it.
	IncludeUnpublished bool
	// TopTags is the facet size; zero means DefaultTopTags.
	TopTags int
}

// Result is one page and the tag facet of the filtered set. The facet counts
// published stories only, so drafts never leak their tags.
type Result struct {
	Page        domain.Page[domain.Story] `json:"page"`
	PopularTags []domain.TagFrequency     `json:"popularTags"`
}

// Apply filters, sorts and paginates stories. Every story matching the filter
// appears exactly once across all pages.
func Apply(stories []domain.Story, q domain.ListingQuery, opts Options) Result {
	q = q.WithDefaults()

	filtered := Filter(stories, q, opts.IncludeUnpublished)
	Sort(filtered, q.SortKey, q.Direction)

	top := opts.TopTags
	if top <= 0 {
		top = DefaultTopTags
	}
	published := filtered
	if opts.IncludeUnpublished {
		published = Filter(filtered, domain.ListingQuery{}, false)
	}
	return Result{
		Page:        Paginate(filtered, q.Page, q.PageSize),
		PopularTags: PopularTags(published, top),
	}
}

// Filter returns the stories visible in the listing that match the query's tag and
// search text. The input is not modified.
func Filter(stories []domain.Story, q domain.ListingQuery, includeUnpublished bool) []domain.Story {
	tag := strings.TrimSpace(q.Tag)
	search := domain.Fold(strings.TrimSpace(q.Search))

	out := make([]domain.Story, 0, len(stories))
	for _, s := range stories {
		if !s.Published && !includeUnpublished {
			continue
		}
		if tag != "" && !s.HasTag(tag) {
			continue
		}
		if search != "" && !matches(s, search) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// matches reports whether folded appears in the title, description, any tag or
// the author's display name.
func matches(s domain.Story, folded string) bool {
	fields := make([]string, 0, 3+len(s.Tags))
	fields = append(fields, s.Title, s.Description, s.Author.Name())
	fields = append(fields, s.Tags...)
	for _, f := range fields {
		if strings.Contains(domain.Fold(f), folded) {
			return true
		}
	}
	return false
}

// Sort orders stories in place by key and direction. Ties are broken by id
// ascending whatever the direction, so the order is total.
func Sort(stories []domain.Story, key domain.SortKey, dir domain.Direction) {
	slices.SortStableFunc(stories, func(a, b domain.Story) int {
		var c int
		switch key {
		case domain.SortViews:
			c = cmp.Compare(a.Views, b.Views)
		case domain.SortLikes:
			c = cmp.Compare(a.Likes, b.Likes)
		case domain.SortRating:
			c = cmp.Compare(a.Rating, b.Rating)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt.Time)
		}
		if dir == domain.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
}

// TotalPages returns how many pages of size hold total items.
func TotalPages(total, size int) int {
	if size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Paginate cuts one zero-indexed page out of stories. A page past the end is
// empty, not an error.
func Paginate(stories []domain.Story, page, size int) domain.Page[domain.Story] {
	if size <= 0 {
		size = domain.DefaultPageSize
	}
	total := len(stories)
	p := domain.Page[domain.Story]{
		Content:       []domain.Story{},
		TotalPages:    TotalPages(total, size),
		TotalElements: total,
		Size:          size,
		Number:        page,
	}
	if page < 0 {
		return p
	}
	start := page * size
	if start >= total {
		return p
	}
	end := min(start+size, total)
	p.Content = slices.Clone(stories[start:end])
	return p
}

// PopularTags counts tag occurrences across stories and returns the n most
// frequent, ties in first-seen order. Tags are compared case-insensitively and
// reported in their first-seen spelling.
func PopularTags(stories []domain.Story, n int) []domain.TagFrequency {
	type entry struct {
		freq  domain.TagFrequency
		order int
	}
	byKey := make(map[string]*entry)
	var order []*entry

	for _, s := range stories {
		seenInStory := make(map[string]bool, len(s.Tags))
		for _, t := range s.Tags {
			key := domain.FoldTag(t)
			if key == "" || seenInStory[key] {
				continue
			}
			seenInStory[key] = true
			e, ok := byKey[key]
			if !ok {
				e = &entry{freq: domain.TagFrequency{Tag: strings.TrimSpace(t)}, order: len(order)}
				byKey[key] = e
				order = append(order, e)
			}
			e.freq.Count++
		}
	}

	slices.SortStableFunc(order, func(a, b *entry) int {
		if c := cmp.Compare(b.freq.Count, a.freq.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})

	if n > 0 && len(order) > n {
		order = order[:n]
	}
	out := make([]domain.TagFrequency, len(order))
	for i, e := range order {
		out[i] = e.freq
	}
	return out
}
