// Package model defines the data structures used throughout the application.
package model

import "time"

// Default profile images, served from the static directory.
const (
	DefaultImageURL       = "/static/images/default-pic.png"
	DefaultHeaderImageURL = "/static/images/warbler-hero.png"
)

// User is a registered account.
//
// Password holds the bcrypt hash, never the plaintext. The `json:"-"` tag
// keeps it out of every JSON response, so handlers can encode a *User
// directly.
type User struct {
	ID             string    `json:"id"             db:"id"`
	Email          string    `json:"email"          db:"email"`
	Username       string    `json:"username"       db:"username"`
	Password       string    `json:"-"              db:"password"`
	ImageURL       string    `json:"imageUrl"       db:"image_url"`
	HeaderImageURL string    `json:"headerImageUrl" db:"header_image_url"`
	Bio            string    `json:"bio"            db:"bio"`
	Location       string    `json:"location"       db:"location"`
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt"      db:"updated_at"`
}

// Profile is a user plus the sizes of the relations hanging off it.
// It backs the profile page and GET /api/users/{id}.
type Profile struct {
	User
	MessageCount   int `json:"messageCount"`
	FollowerCount  int `json:"followerCount"`
	FollowingCount int `json:"followingCount"`
	LikeCount      int `json:"likeCount"`
}
