package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"medlink-server/internal/access"
	"medlink-server/internal/apperr"
	"medlink-server/internal/models"
)

// MessageInput is the content of a new chat message.
type MessageInput struct {
	Type        models.MessageType
	Text        string
	FileName    string
	ContentType string
	Data        []byte
}

// Service persists threads and messages and publishes changes to the hub.
type Service struct {
	db  *gorm.DB
	hub *Hub
	now func() time.Time
}

// NewService creates a chat service. hub may be nil when nothing listens.
func NewService(db *gorm.DB, hub *Hub) *Service {
	return &Service{db: db, hub: hub, now: time.Now}
}

// CreateThread opens a thread between the actor and the given users.
func (s *Service) CreateThread(ctx context.Context, actor models.Actor, participantIDs []string) (*models.ChatThread, error) {
	ids := uniqueIDs(append([]string{actor.ID}, participantIDs...))
	if len(ids) < 2 {
		return nil, apperr.Validation("participants_required", "a thread needs at least one other participant")
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	if len(users) != len(ids) {
		return nil, apperr.NotFound("participant_not_found", "one or more participants do not exist")
	}

	thread := &models.ChatThread{Participants: users}
	if err := s.db.WithContext(ctx).Omit("Participants.*").Create(thread).Error; err != nil {
		return nil, fmt.Errorf("create chat thread: %w", err)
	}
	return thread, nil
}

// ListThreads returns the threads the actor takes part in, most recent first.
func (s *Service) ListThreads(ctx context.Context, actor models.Actor) ([]models.ChatThread, error) {
	var threads []models.ChatThread
	err := s.db.WithContext(ctx).
		Preload("Participants").
		Joins("JOIN chat_thread_participants ctp ON ctp.chat_thread_id = chat_threads.id").
		Where("ctp.user_id = ?", actor.ID).
		Order("chat_threads.updated_at desc").
		Find(&threads).Error
	if err != nil {
		return nil, fmt.Errorf("list chat threads: %w", err)
	}
	return threads, nil
}

// GetThread returns a thread the actor takes part in.
func (s *Service) GetThread(ctx context.Context, actor models.Actor, threadID string) (*models.ChatThread, error) {
	var thread models.ChatThread
	err := s.db.WithContext(ctx).Preload("Participants").Where("id = ?", threadID).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("thread_not_found", fmt.Sprintf("chat thread %s not found", threadID))
		}
		return nil, fmt.Errorf("load chat thread %s: %w", threadID, err)
	}
	if !access.IsParticipant(actor, &thread) {
		return nil, apperr.Authorization("not_thread_participant", "you are not a participant of this thread")
	}
	return &thread, nil
}

// ListMessages returns a thread's messages, oldest first.
func (s *Service) ListMessages(ctx context.Context, actor models.Actor, threadID string) ([]models.ChatMessage, error) {
	if _, err := s.GetThread(ctx, actor, threadID); err != nil {
		return nil, err
	}

	var messages []models.ChatMessage
	err := s.db.WithContext(ctx).Where("thread_id = ?", threadID).Order("created_at asc").Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return messages, nil
}

// PostMessage stores a message and pushes it to the thread's room.
func (s *Service) PostMessage(ctx context.Context, actor models.Actor, threadID string, in MessageInput) (*models.ChatMessage, error) {
	if in.Type == "" {
		in.Type = models.MessageText
	}
	if !in.Type.Valid() {
		return nil, apperr.Validation("invalid_message_type", fmt.Sprintf("unknown message type %q", in.Type))
	}
	if in.Type == models.MessageText && strings.TrimSpace(in.Text) == "" {
		return nil, apperr.Validation("text_required", "text messages cannot be empty")
	}
	if in.Type != models.MessageText && len(in.Data) == 0 {
		return nil, apperr.Validation("file_required", "image and file messages need an attachment")
	}

	if _, err := s.GetThread(ctx, actor, threadID); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ThreadID:    threadID,
		SenderID:    actor.ID,
		Type:        in.Type,
		Text:        in.Text,
		FileName:    in.FileName,
		ContentType: in.ContentType,
		FileData:    in.Data,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sender").Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatThread{}).Where("id = ?", threadID).Update("updated_at", s.now().UTC()).Error
	})
	if err != nil {
		return nil, fmt.Errorf("store chat message: %w", err)
	}

	s.publish(threadID, Event{Action: ActionReceive, MessageID: msg.ID, UserID: actor.ID, Message: msg})
	return msg, nil
}

// MarkRead flags a message as read by a participant other than its sender.
func (s *Service) MarkRead(ctx context.Context, actor models.Actor, messageID string) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	if err := s.db.WithContext(ctx).Where("id = ?", messageID).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("message_not_found", fmt.Sprintf("chat message %s not found", messageID))
		}
		return nil, fmt.Errorf("load chat message %s: %w", messageID, err)
	}
	if _, err := s.GetThread(ctx, actor, msg.ThreadID); err != nil {
		return nil, err
	}
	if msg.SenderID == actor.ID {
		return nil, apperr.Validation("own_message", "you cannot mark your own message as read")
	}
	if msg.IsRead {
		return &msg, nil
	}

	readAt := s.now().UTC()
	err := s.db.WithContext(ctx).Model(&models.ChatMessage{}).Where("id = ?", msg.ID).
		Updates(map[string]interface{}{"is_read": true, "read_at": readAt}).Error
	if err != nil {
		return nil, fmt.Errorf("mark chat message %s read: %w", msg.ID, err)
	}
	msg.IsRead = true
	msg.ReadAt = &readAt

	s.publish(msg.ThreadID, Event{Action: ActionMarkRead, MessageID: msg.ID, UserID: actor.ID})
	return &msg, nil
}

// GetMessage returns a message from a thread the actor takes part in.
func (s *Service) GetMessage(ctx context.Context, actor models.Actor, messageID string) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	if err := s.db.WithContext(ctx).Where("id = ?", messageID).First(&msg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("message_not_found", fmt.Sprintf("chat message %s not found", messageID))
		}
		return nil, fmt.Errorf("load chat message %s: %w", messageID, err)
	}
	if _, err := s.GetThread(ctx, actor, msg.ThreadID); err != nil {
		return nil, err
	}
	return &msg, nil
}

// HandleInbound executes a WebSocket frame on behalf of the client's user.
// Failures are reported back to that client only.
func (s *Service) HandleInbound(ctx context.Context, actor models.Actor) func(*Client, InboundMessage) {
	return func(client *Client, in InboundMessage) {
		var err error
		switch in.Action {
		case ActionSend:
			_, err = s.PostMessage(ctx, actor, client.Room, MessageInput{Type: models.MessageText, Text: in.Text})
		case ActionMarkRead:
			_, err = s.MarkRead(ctx, actor, in.MessageID)
		default:
			err = apperr.Validation("unknown_action", fmt.Sprintf("unknown action %q", in.Action))
		}
		if err != nil {
			msg := "internal error"
			if appErr, ok := apperr.As(err); ok {
				msg = appErr.Message
			}
			client.Reply(Event{Action: ActionError, Error: msg})
		}
	}
}

func (s *Service) publish(threadID string, event Event) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(threadID, event)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
