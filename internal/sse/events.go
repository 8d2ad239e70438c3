// Package sse streams live engagement on published stories to connected readers
// as Server-Sent Events: new likes and views, publication changes and comment
// activity.
package sse

import (
	"time"

	"github.com/taleforge/taleforge/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventStoryPublished is sent when a story becomes visible to readers.
	EventStoryPublished EventType = "story.published"
	// EventStoryUnpublished is sent when a story returns to draft.
	EventStoryUnpublished EventType = "story.unpublished"
	// EventStoryUpdated is sent when a published story's text changes.
	EventStoryUpdated EventType = "story.updated"
	// EventStoryDeleted is sent when a published story is deleted.
	EventStoryDeleted EventType = "story.deleted"
	// EventStoryViewed carries a story's new view count.
	EventStoryViewed EventType = "story.viewed"
	// EventStoryLiked carries a story's new like count, after a like or an unlike.
	EventStoryLiked EventType = "story.liked"
	// EventStoryRated carries a story's new mean rating.
	EventStoryRated EventType = "story.rated"

	EventCommentCreated EventType = "comment.created"
	EventCommentUpdated EventType = "comment.updated"
	EventCommentDeleted EventType = "comment.deleted"
	EventCommentLiked   EventType = "comment.liked"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// StoryID scopes the event; clients watching one story receive only its
	// events. Empty means every client receives it.
	StoryID domain.ID `json:"storyId,omitempty"`
}

// StoryEventData is the payload for publication and edit events.
type StoryEventData struct {
	ID     domain.ID `json:"id"`
	Title  string    `json:"title"`
	Author string    `json:"author"`
}

// CounterEventData is the payload for view and like events.
type CounterEventData struct {
	ID    domain.ID `json:"id"`
	Count int64     `json:"count"`
}

// RatingEventData is the payload for rating events.
type RatingEventData struct {
	ID      domain.ID `json:"id"`
	Rating  float64   `json:"rating"`
	Ratings int64     `json:"ratings"`
}

// CommentEventData is the payload for comment events. Content is empty for
// deletions and like changes.
type CommentEventData struct {
	ID      domain.ID `json:"id"`
	StoryID domain.ID `json:"storyId"`
	Author  string    `json:"author,omitempty"`
	Content string    `json:"content,omitempty"`
	Likes   int64     `json:"likes"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"serverTime"`
}

func newEvent(t EventType, storyID domain.ID, data any) Event {
	return Event{Type: t, StoryID: storyID, Data: data, Timestamp: time.Now()}
}

// NewStoryEvent creates a publication or edit event for story.
func NewStoryEvent(t EventType, story *domain.Story) Event {
	return newEvent(t, story.ID, StoryEventData{
		ID:     story.ID,
		Title:  story.Title,
		Author: story.Author.Username,
	})
}

// NewStoryDeletedEvent creates a story deletion event.
func NewStoryDeletedEvent(id domain.ID) Event {
	return newEvent(EventStoryDeleted, id, StoryEventData{ID: id})
}

// NewCounterEvent creates a view or like count event.
func NewCounterEvent(t EventType, storyID domain.ID, count int64) Event {
	return newEvent(t, storyID, CounterEventData{ID: storyID, Count: count})
}

// NewRatingEvent creates a rating event.
func NewRatingEvent(storyID domain.ID, sum domain.RatingSummary) Event {
	return newEvent(EventStoryRated, storyID, RatingEventData{ID: storyID, Rating: sum.Rating, Ratings: sum.Ratings})
}

// NewCommentEvent creates a comment event.
func NewCommentEvent(t EventType, c *domain.Comment) Event {
	data := CommentEventData{ID: c.ID, StoryID: c.StoryID, Likes: c.Likes}
	if t != EventCommentDeleted {
		data.Author = c.Author.Username
	}
	if t == EventCommentCreated || t == EventCommentUpdated {
		data.Content = c.Content
	}
	return newEvent(t, c.StoryID, data)
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{Type: EventHeartbeat, Data: HeartbeatEventData{ServerTime: now}, Timestamp: now}
}
