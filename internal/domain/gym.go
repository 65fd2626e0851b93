package domain

import (
	"fmt"
	"time"
)

// Gym is the tenant record: branding plus the capacity used for occupancy.
type Gym struct {
	ID             TenantKey
	Name           string
	Logo           string
	PrimaryColor   string
	SecondaryColor string
	Capacity       int
	EntryQR        string
	ExitQR         string
	Subdomain      string
}

// TrainingProgram is a dated workout plan published to a gym.
type TrainingProgram struct {
	ID          string
	TenantKey   TenantKey
	Title       string
	Description string
	Date        time.Time
	Exercises   string
	PDFURL      *string
	ImageURL    *string
	CreatedAt   time.Time
}

// MessageType classifies chat messages.
type MessageType string

const (
	MessageText      MessageType = "text"
	MessageImage     MessageType = "image"
	MessageSystem    MessageType = "system"
	MessageBroadcast MessageType = "broadcast"
)

// ParseMessageType maps a wire value to a MessageType, defaulting to text.
func ParseMessageType(value string) (MessageType, error) {
	if value == "" {
		return MessageText, nil
	}
	switch t := MessageType(value); t {
	case MessageText, MessageImage, MessageSystem, MessageBroadcast:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown message type %q", ErrValidation, value)
}

// Privileged reports whether only admins may post this type.
func (t MessageType) Privileged() bool {
	return t == MessageSystem || t == MessageBroadcast
}

// ChatMessage is a message in the gym-wide group chat.
type ChatMessage struct {
	ID         string
	TenantKey  TenantKey
	SenderID   string
	SenderName string
	Message    string
	Type       MessageType
	SentAt     time.Time
}

// Supplement is a catalogue item sold at the gym.
type Supplement struct {
	ID          string
	TenantKey   TenantKey
	Name        string
	Description string
	Price       int
	ImageURL    *string
}

// Cursor models the pagination token for ascending timelines.
type Cursor struct {
	At time.Time
	ID string
}
