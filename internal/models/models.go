package models

import "time"

// User represents an anonymous user in the system
type User struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// PartnershipStatus is the lifecycle status of a partnership
type PartnershipStatus string

const (
	StatusPending  PartnershipStatus = "pending"
	StatusAccepted PartnershipStatus = "accepted"
)

// Partnership represents the pairing between a requester (user A) and a recipient (user B)
type Partnership struct {
	ID               string            `json:"id"`
	UserAID          string            `json:"user_a"`
	UserBID          string            `json:"user_b"`
	Status           PartnershipStatus `json:"status"`
	RelationshipDate *Date             `json:"relationship_date"`
	CurrentStreak    int               `json:"current_streak"`
	LastStreakDate   *Date             `json:"last_streak_date"`
	CreatedAt        time.Time         `json:"created_at"`
}

// HasMember reports whether userID is one of the two users of the partnership
func (p *Partnership) HasMember(userID string) bool {
	return p.UserAID == userID || p.UserBID == userID
}

// PartnerOf returns the other member of the partnership, or "" if userID is not a member
func (p *Partnership) PartnerOf(userID string) string {
	switch userID {
	case p.UserAID:
		return p.UserBID
	case p.UserBID:
		return p.UserAID
	}
	return ""
}

// IsAccepted reports whether the partnership has been accepted
func (p *Partnership) IsAccepted() bool {
	return p.Status == StatusAccepted
}

// PairingState is the pairing situation of a single user
type PairingState string

const (
	StateUnpaired        PairingState = "unpaired"
	StateRequestSent     PairingState = "request_sent"
	StateRequestReceived PairingState = "request_received"
	StatePaired          PairingState = "paired"
)

// Pairing describes a user's pairing state together with the partnership backing it
type Pairing struct {
	State       PairingState `json:"state"`
	Partnership *Partnership `json:"partnership,omitempty"`
	PartnerID   string       `json:"partner_id,omitempty"`
}

// Message represents a sealed note from sender to receiver
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender"`
	ReceiverID string    `json:"receiver"`
	Content    string    `json:"content"`
	UnlockDate Date      `json:"unlock_date"`
	Opened     bool      `json:"opened"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageState is the unlock state of a message as seen on a given day
type MessageState string

const (
	MessageLocked     MessageState = "locked"
	MessageUnlockable MessageState = "unlockable"
	MessageOpened     MessageState = "opened"
)

// StateOn returns the state of the message on the given day
func (m *Message) StateOn(today Date) MessageState {
	switch {
	case m.Opened:
		return MessageOpened
	case m.UnlockDate.After(today):
		return MessageLocked
	default:
		return MessageUnlockable
	}
}

// Direction tells whether a message was sent or received by the viewer
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// MessageView is a message as presented to one of its two participants
type MessageView struct {
	ID         string       `json:"id"`
	SenderID   string       `json:"sender"`
	ReceiverID string       `json:"receiver"`
	Content    string       `json:"content,omitempty"`
	UnlockDate Date         `json:"unlock_date"`
	Opened     bool         `json:"opened"`
	State      MessageState `json:"state"`
	Direction  Direction    `json:"direction"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ViewFor projects the message for viewerID. The receiver does not get the
// content while the message is locked; the sender always does.
func (m *Message) ViewFor(viewerID string, today Date) MessageView {
	v := MessageView{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		UnlockDate: m.UnlockDate,
		Opened:     m.Opened,
		State:      m.StateOn(today),
		Direction:  DirectionReceived,
		CreatedAt:  m.CreatedAt,
	}
	if viewerID == m.SenderID {
		v.Direction = DirectionSent
		return v
	}
	if v.State == MessageLocked {
		v.Content = ""
	}
	return v
}

// RelationshipStats summarizes a partnership
type RelationshipStats struct {
	TotalMessages    int   `json:"total_messages"`
	CurrentStreak    int   `json:"current_streak"`
	RelationshipDate *Date `json:"relationship_date"`
}
