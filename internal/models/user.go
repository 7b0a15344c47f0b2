package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
)

type User struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Avatar     string     `json:"avatar,omitempty"`
	Role       Role       `json:"role"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Vendor is the business profile owned by a user with RoleVendor.
type Vendor struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	BusinessName string    `json:"business_name"`
	Logo         string    `json:"logo,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ParticipantView is what other users see for a chat participant.
type ParticipantView struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar,omitempty"`
	IsVendor bool      `json:"is_vendor"`
}

// ProjectParticipant resolves the displayed identity of a participant. A user who owns a
// vendor profile is shown under the business name and logo; everyone else under their own.
func ProjectParticipant(user *User, vendor *Vendor) ParticipantView {
	view := ParticipantView{ID: user.ID, Name: user.Name, Avatar: user.Avatar}
	if vendor == nil || vendor.OwnerID != user.ID {
		return view
	}
	view.IsVendor = true
	if vendor.BusinessName != "" {
		view.Name = vendor.BusinessName
	}
	if vendor.Logo != "" {
		view.Avatar = vendor.Logo
	}
	return view
}
