package store

import "github.com/taleforge/taleforge/internal/domain"

// Key layout:
//
//	user:<id>                              user record
//	idx:user:email:<email>                 -> user id
//	idx:user:username:<username>           -> user id (lower-cased)
//	story:<id>                             story record
//	idx:story:author:<author>:<story>      author's stories
//	comment:<id>                           comment record
//	idx:comment:story:<story>:<comment>    comments of a story
//	like:story:<story>:<user>              story like edge
//	like:comment:<comment>:<user>          comment like edge
//	seq:<name>                             id sequences
//
// Indexes live under their own root so a scan of "story:" never meets them.

func key(parts ...string) []byte {
	n := len(parts)
	for _, p := range parts {
		n += len(p)
	}
	buf := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, p...)
	}
	return buf
}

// prefix is key with a trailing separator, so "1:" never matches "10:".
func prefix(parts ...string) []byte {
	return append(key(parts...), ':')
}

func userKey(id domain.ID) []byte         { return key("user", id.String()) }
func emailIndexKey(email string) []byte   { return key("idx", "user", "email", email) }
func usernameIndexKey(name string) []byte { return key("idx", "user", "username", name) }

func storyKey(id domain.ID) []byte { return key("story", id.String()) }
func authorIndexKey(author, story domain.ID) []byte {
	return key("idx", "story", "author", author.String(), story.String())
}

func commentKey(id domain.ID) []byte { return key("comment", id.String()) }
func storyCommentKey(story, comment domain.ID) []byte {
	return key("idx", "comment", "story", story.String(), comment.String())
}

func storyLikeKey(story, user domain.ID) []byte {
	return key("like", "story", story.String(), user.String())
}
func commentLikeKey(comment, user domain.ID) []byte {
	return key("like", "comment", comment.String(), user.String())
}

func storyRatingKey(story, user domain.ID) []byte {
	return key("rating", "story", story.String(), user.String())
}

func sequenceKey(name string) []byte { return key("seq", name) }
