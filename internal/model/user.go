// Package model defines the entities stored by CodeCraft.
package model

import "time"

// User is a registered account.
//
// Accounts are created on first GitHub sign-in. ID is our own xid; GitHubID is
// the provider's stable numeric id and is unique. Name is the display name that
// gets copied onto snippets, comments and ratings when they are written.
type User struct {
	ID         string     `json:"id"`
	GitHubID   int64      `json:"githubId"`
	Login      string     `json:"login"`
	Name       string     `json:"name"`
	Email      string     `json:"email,omitempty"` // empty on public profiles
	AvatarURL  string     `json:"avatarUrl"`
	IsPro      bool       `json:"isPro"`
	ProSince   *time.Time `json:"proSince,omitempty"`
	CustomerID string     `json:"customerId,omitempty"` // billing provider customer reference
	OrderID    string     `json:"orderId,omitempty"`    // billing provider order reference
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// DisplayName falls back to the login when the provider gave no name.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Login
}
