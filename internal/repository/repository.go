// Package repository declares the storage interfaces the service layer
// depends on. The sqlstore package implements them over database/sql.
//
// Edges (follows, likes) are explicit add/remove operations rather than
// collections hanging off a User: a service never mutates a slice and hopes
// it gets persisted.
package repository

import (
	"context"

	"github.com/sakif/warbler/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	SearchUsers(ctx context.Context, query string, opts ListOptions) ([]model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id string) error
}

type FollowRepository interface {
	// AddFollow inserts the edge follower -> followed. Inserting an edge that
	// already exists is not an error.
	AddFollow(ctx context.Context, followerID, followedID string) error
	// RemoveFollow deletes the edge. Deleting an absent edge is not an error.
	RemoveFollow(ctx context.Context, followerID, followedID string) error
	HasFollow(ctx context.Context, followerID, followedID string) (bool, error)
	// ListFollowers returns the users following userID.
	ListFollowers(ctx context.Context, userID string) ([]model.User, error)
	// ListFollowing returns the users userID follows.
	ListFollowing(ctx context.Context, userID string) ([]model.User, error)
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	GetMessageByID(ctx context.Context, id string) (*model.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	ListMessagesByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Message, error)
	// ListTimeline returns messages written by userID or anyone userID
	// follows, newest first.
	ListTimeline(ctx context.Context, userID string, opts ListOptions) ([]model.Message, error)
}

type LikeRepository interface {
	AddLike(ctx context.Context, userID, messageID string) error
	RemoveLike(ctx context.Context, userID, messageID string) error
	HasLike(ctx context.Context, userID, messageID string) (bool, error)
	ListLikedMessages(ctx context.Context, userID string) ([]model.Message, error)
}

// Counter reports relation sizes for profile pages.
type Counter interface {
	CountProfile(ctx context.Context, userID string) (model.Profile, error)
}

// Repos is everything a single transaction can touch.
type Repos interface {
	UserRepository
	FollowRepository
	MessageRepository
	LikeRepository
	Counter
}

// Store is the entry point services hold on to.
//
// WithTx runs fn inside one transaction: it commits when fn returns nil and
// rolls back when fn returns an error or panics. The Repos passed to fn is
// bound to that transaction and must not escape it.
type Store interface {
	Repos
	WithTx(ctx context.Context, fn func(tx Repos) error) error
}
