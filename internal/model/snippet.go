package model

import "time"

// Snippet is a piece of shared code owned by one user.
type Snippet struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	UserName    string     `json:"userName"` // denormalized owner display name
	Title       string     `json:"title"`
	Language    string     `json:"language"`
	Code        string     `json:"code"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Difficulty  Difficulty `json:"difficulty"`
	Complexity  float64    `json:"complexity"`
	Version     string     `json:"version"`
	Downloads   int        `json:"downloads"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// SnippetVersion records the code of one published revision of a snippet.
type SnippetVersion struct {
	ID        string    `json:"id"`
	SnippetID string    `json:"snippetId"`
	Version   string    `json:"version"`
	Code      string    `json:"code"`
	Changelog string    `json:"changelog"`
	CreatedAt time.Time `json:"createdAt"`
}

// SnippetComment is a flat comment on a snippet. Content is HTML produced by
// the client editor. Rating is optional; when set it is 1-5.
type SnippetComment struct {
	ID        string    `json:"id"`
	SnippetID string    `json:"snippetId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	Rating    *int      `json:"rating,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SnippetMark is a (user, snippet) pair: a star or a favorite.
type SnippetMark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	SnippetID string    `json:"snippetId"`
	CreatedAt time.Time `json:"createdAt"`
}
