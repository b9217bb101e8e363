package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mentorhub/chat_backend/models"
	"github.com/mentorhub/chat_backend/permissions"
	"gorm.io/gorm"
)

// PermissionChecker is the slice of the permission gate the store needs for
// its defensive write-time check.
type PermissionChecker interface {
	CanExchange(a, b string) (bool, error)
}

// Store is the durable record of messages, independent of live connectivity.
type Store struct {
	db    *gorm.DB
	perms PermissionChecker
}

func New(db *gorm.DB, perms PermissionChecker) *Store {
	return &Store{db: db, perms: perms}
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ConversationKey  string         `json:"conversation_key"`
	OtherParticipant string         `json:"other_participant"`
	LastMessage      models.Message `json:"last_message"`
	UnreadCount      int64          `json:"unread_count"`
}

// Append validates and persists a message, assigning its id and server
// timestamp. The permission check here is a defensive double-check: the
// router has already validated the pair under the gate's pair lock.
func (s *Store) Append(sender, receiver, content, messageType string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrValidationFailed)
	}
	if messageType == "" {
		messageType = models.MessageTypeText
	}
	if !models.ValidMessageType(messageType) {
		return nil, fmt.Errorf("%w: unknown message type %q", ErrValidationFailed, messageType)
	}

	if s.perms != nil {
		ok, err := s.perms.CanExchange(sender, receiver)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, permissions.ErrPermissionDenied
		}
	}

	key := models.DeriveConversationKey(sender, receiver)

	// Timestamps must be non-decreasing within a conversation even if the
	// wall clock steps backwards. Appends for one conversation are already
	// serialized by the gate's pair lock.
	now := time.Now()
	var last models.Message
	err := s.db.Where("conversation_key = ?", key.String()).
		Order("created_at DESC, id DESC").
		First(&last).Error
	if err == nil && now.Before(last.CreatedAt) {
		now = last.CreatedAt
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	message := models.Message{
		ConversationKey: key.String(),
		Sender:          sender,
		Receiver:        receiver,
		Content:         content,
		Type:            messageType,
		CreatedAt:       now,
	}
	if err := s.db.Create(&message).Error; err != nil {
		return nil, err
	}

	return &message, nil
}

// History returns messages of a conversation in non-decreasing (created_at,
// id) order. afterID anchors pagination: only messages strictly after that
// message are returned. limit <= 0 means no limit.
func (s *Store) History(key models.ConversationKey, limit int, afterID uint) ([]models.Message, error) {
	query := s.db.Where("conversation_key = ?", key.String())

	if afterID > 0 {
		var anchor models.Message
		if err := s.db.First(&anchor, afterID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return []models.Message{}, nil
			}
			return nil, err
		}
		query = query.Where("created_at > ? OR (created_at = ? AND id > ?)",
			anchor.CreatedAt, anchor.CreatedAt, anchor.ID)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []models.Message
	err := query.Order("created_at ASC, id ASC").Find(&messages).Error
	return messages, err
}

// MarkRead flips every unread message in the conversation addressed to the
// reader to read, in one statement, and reports how many were flipped. A
// message appended after the statement ran stays unread.
func (s *Store) MarkRead(key models.ConversationKey, reader string) (int64, error) {
	result := s.db.Model(&models.Message{}).
		Where("conversation_key = ? AND receiver = ? AND read = ?", key.String(), reader, false).
		Update("read", true)
	return result.RowsAffected, result.Error
}

// ConversationsFor returns one summary per counterpart the identity has ever
// exchanged messages with, sorted by last message time descending. Unread
// counts cover only messages addressed to the identity. Both queries group
// per conversation so the cost scales with conversations, not messages.
func (s *Store) ConversationsFor(identity string) ([]ConversationSummary, error) {
	// Timestamps are clamped non-decreasing per conversation, so the max id
	// within a conversation is also its latest message by (created_at, id).
	var lasts []models.Message
	err := s.db.
		Where("id IN (?)", s.db.Model(&models.Message{}).
			Select("MAX(id)").
			Where("sender = ? OR receiver = ?", identity, identity).
			Group("conversation_key")).
		Find(&lasts).Error
	if err != nil {
		return nil, err
	}

	var counts []struct {
		ConversationKey string
		Unread          int64
	}
	err = s.db.Model(&models.Message{}).
		Select("conversation_key, COUNT(*) AS unread").
		Where("receiver = ? AND read = ?", identity, false).
		Group("conversation_key").
		Find(&counts).Error
	if err != nil {
		return nil, err
	}
	unreadByKey := make(map[string]int64, len(counts))
	for _, row := range counts {
		unreadByKey[row.ConversationKey] = row.Unread
	}

	summaries := make([]ConversationSummary, 0, len(lasts))
	for _, last := range lasts {
		other := last.Sender
		if other == identity {
			other = last.Receiver
		}
		summaries = append(summaries, ConversationSummary{
			ConversationKey:  last.ConversationKey,
			OtherParticipant: other,
			LastMessage:      last,
			UnreadCount:      unreadByKey[last.ConversationKey],
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i].LastMessage, summaries[j].LastMessage
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	return summaries, nil
}

// UnreadFor returns every unread message addressed to the identity across all
// conversations, oldest first. Used to rebuild notification state after a
// reconnect.
func (s *Store) UnreadFor(identity string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.Where("receiver = ? AND read = ?", identity, false).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// PartnersOf returns the distinct counterparts the identity has exchanged
// messages with. The router uses it to scope presence broadcasts.
func (s *Store) PartnersOf(identity string) ([]string, error) {
	var rows []struct {
		Sender   string
		Receiver string
	}
	err := s.db.Model(&models.Message{}).
		Select("DISTINCT sender, receiver").
		Where("sender = ? OR receiver = ?", identity, identity).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	partners := make([]string, 0, len(rows))
	for _, row := range rows {
		other := row.Sender
		if other == identity {
			other = row.Receiver
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		partners = append(partners, other)
	}
	sort.Strings(partners)

	return partners, nil
}
