package model

import "time"

// Message is a short post owned by its author. Text never changes after
// creation.
//
// Username and ImageURL are not columns on messages; the repository fills
// them from a join with users so listings can show the author without a
// second lookup.
type Message struct {
	ID        string    `json:"id"        db:"id"`
	Text      string    `json:"text"      db:"text"`
	UserID    string    `json:"userId"    db:"user_id"`
	Username  string    `json:"username"`
	ImageURL  string    `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
