package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
)

const (
	// MaxMessageLength is counted in characters, not bytes.
	MaxMessageLength = 140

	// DefaultListLimit applies when a caller passes limit <= 0.
	DefaultListLimit = 100
)

// MessageService posts, deletes and likes messages, and builds feeds.
type MessageService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewMessageService(store repository.Store, logger *slog.Logger) *MessageService {
	return &MessageService{store: store, logger: logger}
}

// Post stores a new message by authorID. Text is trimmed and must then be
// 1 to 140 characters.
func (s *MessageService) Post(ctx context.Context, authorID, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "message text is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, apperror.ValidationFailed("text",
			fmt.Sprintf("message must be %d characters or less", MaxMessageLength))
	}

	var posted *model.Message
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		msg := &model.Message{Text: text, UserID: authorID}
		if err := tx.CreateMessage(ctx, msg); err != nil {
			return err
		}
		// reload for the author's username
		m, err := tx.GetMessageByID(ctx, msg.ID)
		if err != nil {
			return err
		}
		posted = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("posting message: %w", err)
	}

	s.logger.Info("message posted",
		slog.String("id", posted.ID),
		slog.String("userID", authorID),
	)
	return posted, nil
}

func (s *MessageService) Get(ctx context.Context, id string) (*model.Message, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "message ID is required")
	}
	return s.store.GetMessageByID(ctx, id)
}

// Delete removes message id. Only its author may delete it.
func (s *MessageService) Delete(ctx context.Context, callerID, id string) error {
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		msg, err := tx.GetMessageByID(ctx, id)
		if err != nil {
			return err
		}
		if msg.UserID != callerID {
			return apperror.Forbidden("only the author can delete this message")
		}
		return tx.DeleteMessage(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("deleting message %s: %w", id, err)
	}

	s.logger.Info("message deleted", slog.String("id", id), slog.String("userID", callerID))
	return nil
}

// Like records that userID likes messageID. Liking twice is a no-op, and
// liking your own message is allowed.
func (s *MessageService) Like(ctx context.Context, userID, messageID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		if _, err := tx.GetMessageByID(ctx, messageID); err != nil {
			return err
		}
		return tx.AddLike(ctx, userID, messageID)
	})
	if err != nil {
		return fmt.Errorf("liking message %s: %w", messageID, err)
	}
	return nil
}

// Unlike removes the like if there is one.
func (s *MessageService) Unlike(ctx context.Context, userID, messageID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		return tx.RemoveLike(ctx, userID, messageID)
	})
	if err != nil {
		return fmt.Errorf("unliking message %s: %w", messageID, err)
	}
	return nil
}

// ToggleLike flips the like and reports whether the message is liked
// afterwards.
func (s *MessageService) ToggleLike(ctx context.Context, userID, messageID string) (bool, error) {
	var liked bool
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		if _, err := tx.GetMessageByID(ctx, messageID); err != nil {
			return err
		}
		has, err := tx.HasLike(ctx, userID, messageID)
		if err != nil {
			return err
		}
		if has {
			return tx.RemoveLike(ctx, userID, messageID)
		}
		liked = true
		return tx.AddLike(ctx, userID, messageID)
	})
	if err != nil {
		return false, fmt.Errorf("toggling like on %s: %w", messageID, err)
	}
	return liked, nil
}

func (s *MessageService) IsLiked(ctx context.Context, userID, messageID string) (bool, error) {
	return s.store.HasLike(ctx, userID, messageID)
}

// MessagesOf lists userID's messages newest first.
func (s *MessageService) MessagesOf(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	return s.store.ListMessagesByUser(ctx, userID, repository.ListOptions{Limit: listLimit(limit)})
}

// LikedBy lists every message userID likes, whoever wrote it.
func (s *MessageService) LikedBy(ctx context.Context, userID string) ([]model.Message, error) {
	return s.store.ListLikedMessages(ctx, userID)
}

// LikedSet is LikedBy as a set of message ids, for marking liked messages
// in a feed.
func (s *MessageService) LikedSet(ctx context.Context, userID string) (map[string]bool, error) {
	liked, err := s.store.ListLikedMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(liked))
	for _, m := range liked {
		set[m.ID] = true
	}
	return set, nil
}

// Timeline is the home feed: userID's messages and those of everyone userID
// follows, newest first.
func (s *MessageService) Timeline(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	return s.store.ListTimeline(ctx, userID, repository.ListOptions{Limit: listLimit(limit)})
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
