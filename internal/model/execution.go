package model

import "time"

// CodeExecution is one entry of a user's run history.
type CodeExecution struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Language  string    `json:"language"`
	Code      string    `json:"code"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserStats summarises a user's execution history for the profile page.
type UserStats struct {
	TotalExecutions     int            `json:"totalExecutions"`
	LanguagesCount      int            `json:"languagesCount"`
	Languages           []string       `json:"languages"`
	Last24Hours         int            `json:"last24Hours"`
	FavoriteLanguage    string         `json:"favoriteLanguage"`
	LanguageStats       map[string]int `json:"languageStats"`
	MostStarredLanguage string         `json:"mostStarredLanguage"`
}
