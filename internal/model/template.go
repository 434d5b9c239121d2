package model

import "time"

// Difficulty grades templates (and optionally snippets).
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "BEGINNER"
	DifficultyIntermediate Difficulty = "INTERMEDIATE"
	DifficultyAdvanced     Difficulty = "ADVANCED"
	DifficultyExpert       Difficulty = "EXPERT"
)

// Valid reports whether d is one of the four known grades.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert:
		return true
	}
	return false
}

// Template is a marketplace code template.
//
// Price is a legacy field kept only until ccadmin -strip-prices has run on
// every deployment. AverageRating is nil until the first rating arrives.
type Template struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	UserName      string     `json:"userName"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Code          string     `json:"code"`
	Language      string     `json:"language"`
	Framework     string     `json:"framework"`
	PreviewImage  string     `json:"previewImage"`
	Downloads     int        `json:"downloads"`
	Difficulty    Difficulty `json:"difficulty"`
	Complexity    float64    `json:"complexity"`
	Tags          []string   `json:"tags"`
	Version       string     `json:"version"`
	IsPro         bool       `json:"isPro"`
	Price         *float64   `json:"price,omitempty"`
	AverageRating *float64   `json:"averageRating,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// TemplateRating is one user's 1-5 rating of a template. There is at most
// one per (UserID, TemplateID).
type TemplateRating struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"templateId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	Rating     int       `json:"rating"`
	Review     *string   `json:"review,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TemplateComment is a comment on a template. ParentID, when set, points at
// another comment of the same template; the pointer is not kept in sync with
// deletes, so a reply may reference a parent that no longer exists.
type TemplateComment struct {
	ID         string            `json:"id"`
	TemplateID string            `json:"templateId"`
	UserID     string            `json:"userId"`
	UserName   string            `json:"userName"`
	Content    string            `json:"content"`
	ParentID   *string           `json:"parentId,omitempty"`
	IsEdited   bool              `json:"isEdited"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Replies    []TemplateComment `json:"replies,omitempty"` // top-level listings only
}

// TemplateFavorite is a (user, template) pair.
type TemplateFavorite struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	TemplateID string    `json:"templateId"`
	CreatedAt  time.Time `json:"createdAt"`
}
