/**
 * @description
 * Savings circle database models.
 * Maps to the 'groups' and 'participants' tables.
 *
 * @notes
 * - A Group exclusively owns its Participants (ON DELETE CASCADE).
 * - Participants reference members by wallet address, not by user id.
 * - Addresses are stored lower-cased; see NormalizeAddress.
 */

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group is one savings circle, backed by a deployed contract at GroupAddress
type Group struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Description  string    `gorm:"not null;default:''" json:"description"`
	CreatorID    uuid.UUID `gorm:"type:uuid;not null;index" json:"creatorId"`
	GroupAddress string    `gorm:"not null;index" json:"groupAddress"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// Relations
	Creator      *User         `gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE" json:"-"`
	Participants []Participant `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"participants,omitempty"`
}

func (Group) TableName() string {
	return "groups"
}

func (g *Group) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return
}

// Participant is one wallet address's membership in a Group.
// AcceptedAt/PaidAt are set and cleared together with Accepted/Paid.
type Participant struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_participants_group_user" json:"groupId"`
	UserAddress string     `gorm:"not null;uniqueIndex:idx_participants_group_user" json:"userAddress"`
	Accepted    bool       `gorm:"not null;default:false" json:"accepted"`
	Paid        bool       `gorm:"not null;default:false" json:"paid"`
	Contributed bool       `gorm:"not null;default:false" json:"contributed"`
	AcceptedAt  *time.Time `json:"acceptedAt"`
	PaidAt      *time.Time `json:"paidAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Participant) TableName() string {
	return "participants"
}

func (p *Participant) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}

// SetAccepted flips Accepted and keeps AcceptedAt in lockstep
func (p *Participant) SetAccepted(accepted bool, now time.Time) {
	p.Accepted = accepted
	if accepted {
		p.AcceptedAt = &now
	} else {
		p.AcceptedAt = nil
	}
}

// SetPaid flips Paid and keeps PaidAt in lockstep
func (p *Participant) SetPaid(paid bool, now time.Time) {
	p.Paid = paid
	if paid {
		p.PaidAt = &now
	} else {
		p.PaidAt = nil
	}
}

// NormalizeAddress is the single canonical form for wallet and contract addresses
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
