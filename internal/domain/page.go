package domain

// Page is one page of a listing in the API envelope shape.
type Page[T any] struct {
	Content       []T `json:"content"`
	TotalPages    int `json:"totalPages"`
	TotalElements int `json:"totalElements"`
	Size          int `json:"size"`
	Number        int `json:"number"`
}

// ViewCount is the response of a view increment.
type ViewCount struct {
	Views int64 `json:"views"`
}

// LikeCount is the response of like and unlike.
type LikeCount struct {
	Likes int64 `json:"likes"`
}

// Clamp returns n, or zero when n is negative.
func Clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
