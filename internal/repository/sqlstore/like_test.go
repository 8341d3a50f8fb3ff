package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/model"
)

func TestAddLike_OtherUsersMessage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userone := createTestUser(t, db, "userone")
	usertwo := createTestUser(t, db, "usertwo")
	msg := createTestMessage(t, db, usertwo, "Hello")

	if err := db.AddLike(ctx, userone.ID, msg.ID); err != nil {
		t.Fatalf("AddLike() error = %v", err)
	}

	liked, err := db.ListLikedMessages(ctx, userone.ID)
	if err != nil {
		t.Fatalf("ListLikedMessages() error = %v", err)
	}
	if len(liked) != 1 {
		t.Fatalf("liked = %d, want 1", len(liked))
	}
	if liked[0].Text != "Hello" {
		t.Errorf("liked[0].Text = %q, want %q", liked[0].Text, "Hello")
	}
	if liked[0].Username != "usertwo" {
		t.Errorf("liked[0].Username = %q, want the author %q", liked[0].Username, "usertwo")
	}
}

func TestAddLike_OwnMessage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "narcissus")
	msg := createTestMessage(t, db, u, "me")

	if err := db.AddLike(ctx, u.ID, msg.ID); err != nil {
		t.Fatalf("AddLike() on own message error = %v", err)
	}
	ok, err := db.HasLike(ctx, u.ID, msg.ID)
	if err != nil || !ok {
		t.Errorf("HasLike() = %v, %v; want true, nil", ok, err)
	}
}

func TestAddLike_IdempotentAndRemove(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "u")
	author := createTestUser(t, db, "author")
	msg := createTestMessage(t, db, author, "x")

	mustExec(t, db.AddLike(ctx, u.ID, msg.ID))
	mustExec(t, db.AddLike(ctx, u.ID, msg.ID))

	p, err := db.CountProfile(ctx, u.ID)
	if err != nil {
		t.Fatalf("CountProfile() error = %v", err)
	}
	if p.LikeCount != 1 {
		t.Errorf("LikeCount = %d, want 1", p.LikeCount)
	}

	mustExec(t, db.RemoveLike(ctx, u.ID, msg.ID))
	mustExec(t, db.RemoveLike(ctx, u.ID, msg.ID))

	if ok, _ := db.HasLike(ctx, u.ID, msg.ID); ok {
		t.Error("HasLike() = true after RemoveLike")
	}
}

func TestAddLike_UnknownMessage(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "u")

	err := db.AddLike(context.Background(), u.ID, "ghost")
	if !errors.Is(err, apperror.ErrIntegrity) {
		t.Errorf("AddLike() error = %v, want ErrIntegrity", err)
	}
}

func TestListLikedMessages_Empty(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "u")

	liked, err := db.ListLikedMessages(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("ListLikedMessages() error = %v", err)
	}
	if len(liked) != 0 {
		t.Errorf("liked = %v, want none", liked)
	}
}

func usernames(users []model.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.Username
	}
	return out
}
