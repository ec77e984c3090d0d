package models

import (
	"time"
)

// MessageType is the payload kind of a chat message
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile:
		return true
	}
	return false
}

// ChatThread is a conversation between two or more users
type ChatThread struct {
	BaseModel
	Participants []User `gorm:"many2many:chat_thread_participants" json:"participants,omitempty"`
}

// ParticipantIDs implements Participated.
func (t *ChatThread) ParticipantIDs() []string {
	ids := make([]string, 0, len(t.Participants))
	for _, p := range t.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

// ChatMessage is a single message posted in a thread
type ChatMessage struct {
	BaseModel
	ThreadID    string      `gorm:"size:36;not null;index" json:"thread_id"`
	SenderID    string      `gorm:"size:36;not null;index" json:"sender_id"`
	Type        MessageType `gorm:"size:10;not null" json:"type"`
	Text        string      `gorm:"type:text" json:"text,omitempty"`
	FileName    string      `gorm:"size:255" json:"file_name,omitempty"`
	ContentType string      `gorm:"size:100" json:"content_type,omitempty"`
	FileData    []byte      `json:"-"`
	IsRead      bool        `gorm:"not null" json:"is_read"`
	ReadAt      *time.Time  `json:"read_at,omitempty"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
