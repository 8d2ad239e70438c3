package domain

// Comment is a reader's remark on a story. Liked is relative to the viewer the
// server answered for.
type Comment struct {
	ID      ID          `json:"id"`
	StoryID ID          `json:"storyId"`
	Content string      `json:"content"`
	Author  UserSummary `json:"author"`
	Likes   int64       `json:"likes"`
	Liked   bool        `json:"liked"`
	Edited  bool        `json:"edited"`
	Timestamps
}

// IsAuthor reports whether userID wrote the comment.
func (c *Comment) IsAuthor(userID ID) bool {
	return !userID.IsZero() && c.Author.ID == userID
}

// CommentDraft is the body of comment create and update requests.
type CommentDraft struct {
	Content string `json:"content" validate:"notblank,max=1000"`
}
