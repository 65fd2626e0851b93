package api

import (
	"time"

	"example.com/gymassistant/internal/domain"
)

// IdentityView exposes an identity to its owner and to admins.
type IdentityView struct {
	ID            string                `json:"id"`
	PhoneNumber   string                `json:"phone_number"`
	Name          string                `json:"name"`
	Role          domain.Role           `json:"role"`
	Status        domain.ApprovalStatus `json:"status"`
	TrainingGroup *domain.TrainingGroup `json:"training_group"`
	CreatedAt     time.Time             `json:"created_at"`
}

// TokenResponse is returned by a successful verification.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        IdentityView `json:"user"`
}

// VerificationResponse acknowledges a code request. Code is only set in demo mode.
type VerificationResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// EntryView exposes an entry ledger record.
type EntryView struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	EntryTime time.Time  `json:"entry_time"`
	ExitTime  *time.Time `json:"exit_time"`
	Duration  *int       `json:"duration"`
}

// ListEntriesResponse packages ledger listings.
type ListEntriesResponse struct {
	Items []EntryView `json:"items"`
}

// OccupancyView is the body of GET /api/occupancy.
type OccupancyView struct {
	Current    int                    `json:"current"`
	Capacity   int                    `json:"capacity"`
	Percentage float64                `json:"percentage"`
	Status     domain.OccupancyStatus `json:"status"`
}

// GymView exposes tenant branding.
type GymView struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Logo           string `json:"logo"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
	Capacity       int    `json:"capacity"`
	EntryQR        string `json:"entry_qr"`
	ExitQR         string `json:"exit_qr"`
	Subdomain      string `json:"subdomain"`
}

// ProgramView exposes a training program.
type ProgramView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Exercises   string    `json:"exercises"`
	PDFURL      *string   `json:"pdf_url"`
	ImageURL    *string   `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// MessageView exposes a chat message.
type MessageView struct {
	ID         string             `json:"id"`
	SenderID   string             `json:"sender_id"`
	SenderName string             `json:"sender_name"`
	Message    string             `json:"message"`
	Type       domain.MessageType `json:"type"`
	Timestamp  time.Time          `json:"timestamp"`
}

// ListMessagesResponse packages a chat page.
type ListMessagesResponse struct {
	Items      []MessageView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// SupplementView exposes a catalogue item.
type SupplementView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       int     `json:"price"`
	ImageURL    *string `json:"image_url"`
}

func toIdentityView(identity domain.Identity) IdentityView {
	return IdentityView{
		ID:            identity.ID,
		PhoneNumber:   identity.PhoneNumber,
		Name:          identity.Name,
		Role:          identity.Role,
		Status:        identity.Status,
		TrainingGroup: identity.TrainingGroup,
		CreatedAt:     identity.CreatedAt,
	}
}

func toEntryView(entry domain.EntryRecord) EntryView {
	return EntryView{
		ID:        entry.ID,
		UserID:    entry.IdentityID,
		EntryTime: entry.EntryTime,
		ExitTime:  entry.ExitTime,
		Duration:  entry.DurationMin,
	}
}

func toOccupancyView(o domain.Occupancy) OccupancyView {
	return OccupancyView{
		Current:    o.Current,
		Capacity:   o.Capacity,
		Percentage: o.Percentage,
		Status:     o.Status,
	}
}

func toGymView(g domain.Gym) GymView {
	return GymView{
		ID:             string(g.ID),
		Name:           g.Name,
		Logo:           g.Logo,
		PrimaryColor:   g.PrimaryColor,
		SecondaryColor: g.SecondaryColor,
		Capacity:       g.Capacity,
		EntryQR:        g.EntryQR,
		ExitQR:         g.ExitQR,
		Subdomain:      g.Subdomain,
	}
}

func toProgramView(p domain.TrainingProgram) ProgramView {
	return ProgramView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Date:        p.Date,
		Exercises:   p.Exercises,
		PDFURL:      p.PDFURL,
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
	}
}

func toMessageView(m domain.ChatMessage) MessageView {
	return MessageView{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Message:    m.Message,
		Type:       m.Type,
		Timestamp:  m.SentAt,
	}
}

func toSupplementView(s domain.Supplement) SupplementView {
	return SupplementView{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Price:       s.Price,
		ImageURL:    s.ImageURL,
	}
}
