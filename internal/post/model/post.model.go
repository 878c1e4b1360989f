package model

import "time"

// Post is the authoritative document record. The store owns it; every other
// component works on value copies.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted,omitempty"`
}

// MutationEvent is emitted by the store for every committed mutation and is
// also the wire shape of live-update frames. Consumers deduplicate by
// comparing Version against the last version they applied.
type MutationEvent struct {
	DocID     string    `json:"doc_id"`
	Version   int64     `json:"version"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted"`
}

// EventFrom builds the mutation event for a just-committed post state.
func EventFrom(p Post) MutationEvent {
	return MutationEvent{
		DocID:     p.ID,
		Version:   p.Version,
		Title:     p.Title,
		Content:   p.Content,
		UpdatedAt: p.UpdatedAt,
		Deleted:   p.Deleted,
	}
}

type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdatePostRequest carries an optimistic version check. Nil Title/Content
// mean "keep the stored value".
type UpdatePostRequest struct {
	ExpectedVersion int64   `json:"expected_version"`
	Title           *string `json:"title"`
	Content         *string `json:"content"`
}

// PostPage is one page of a cursor-driven listing. NextCursor is empty on
// the final page. MatchedCount is the total number of live posts matching
// the filter in the generation that served the page.
type PostPage struct {
	Items        []Post `json:"items"`
	NextCursor   string `json:"next_cursor,omitempty"`
	MatchedCount int    `json:"matched_count"`
}
