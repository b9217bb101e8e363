package models

import (
	"time"
)

const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestDeclined = "declined"
)

type ChatRequest struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	PairKey     string     `gorm:"size:512;not null;index" json:"-"`
	Sender      string     `gorm:"size:255;not null;index" json:"sender"`
	Receiver    string     `gorm:"size:255;not null;index" json:"receiver"`
	Message     string     `gorm:"type:text" json:"message,omitempty"`
	Status      string     `gorm:"size:20;default:'pending'" json:"status"` // pending, approved, declined
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// Active reports whether the request still counts against the
// one-active-request-per-pair rule. Declined requests are inert: they never
// block a fresh request.
func (r *ChatRequest) Active() bool {
	return r.Status == RequestPending || r.Status == RequestApproved
}
