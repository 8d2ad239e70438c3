package store

import "errors"

// Sentinel errors. Services translate them into API errors.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrStoryNotFound   = errors.New("story not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrClosed          = errors.New("store closed")

	errNoRating = errors.New("no rating")
)
