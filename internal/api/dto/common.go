// Package dto provides request and response types for the TaleForge API.
// huma reads them to build the OpenAPI document and to check request shapes;
// field-level rules are enforced by the services.
package dto

import "github.com/taleforge/taleforge/internal/domain"

// Page is one page of a listing.
type Page[T any] struct {
	Content       []T `json:"content" doc:"Items on this page"`
	TotalPages    int `json:"totalPages" doc:"Number of pages"`
	TotalElements int `json:"totalElements" doc:"Number of items across all pages"`
	Size          int `json:"size" doc:"Page size"`
	Number        int `json:"number" doc:"Zero-based page number"`
}

// PageOf converts a domain page.
func PageOf[S, T any](p domain.Page[S], conv func(S) T) Page[T] {
	out := Page[T]{
		Content:       make([]T, len(p.Content)),
		TotalPages:    p.TotalPages,
		TotalElements: p.TotalElements,
		Size:          p.Size,
		Number:        p.Number,
	}
	for i, v := range p.Content {
		out.Content[i] = conv(v)
	}
	return out
}

// Views carries a story's view counter.
type Views struct {
	Views int64 `json:"views" doc:"Total views"`
}

// Likes carries a like counter.
type Likes struct {
	Likes int64 `json:"likes" doc:"Total likes"`
}
