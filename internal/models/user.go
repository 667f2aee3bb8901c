/**
 * @description
 * User and auth-framework database models.
 * Maps to the 'user', 'session', 'account', 'verification' and 'farcaster' tables.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an identity in the system. Users are banned, never deleted.
type User struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string     `gorm:"not null" json:"name"`
	Email         string     `gorm:"uniqueIndex;not null" json:"email"`
	EmailVerified bool       `gorm:"not null;default:false" json:"emailVerified"`
	Image         *string    `json:"image"`
	Fid           *int64     `gorm:"uniqueIndex" json:"fid"` // Farcaster ID, nil until linked
	Role          Role       `gorm:"size:16;not null;default:'user'" json:"role"`
	Banned        bool       `gorm:"not null;default:false" json:"banned"`
	BanReason     *string    `json:"banReason,omitempty"`
	BanExpires    *time.Time `json:"banExpires,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName overrides the table name used by User to `user`
func (User) TableName() string {
	return "user"
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

// IsBanned reports whether the ban is in force at t
func (u *User) IsBanned(t time.Time) bool {
	if !u.Banned {
		return false
	}
	return u.BanExpires == nil || t.Before(*u.BanExpires)
}

// Session is a server-side login session looked up by its opaque token
type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Session) TableName() string {
	return "session"
}

func (s *Session) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}

// Account links a user to an auth provider account
type Account struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID  string    `gorm:"not null" json:"accountId"`
	ProviderID string    `gorm:"not null" json:"providerId"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Account) TableName() string {
	return "account"
}

func (a *Account) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

// Verification stores short-lived verification values (nonces, codes)
type Verification struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Identifier string    `gorm:"not null;index" json:"identifier"`
	Value      string    `gorm:"not null" json:"value"`
	ExpiresAt  time.Time `gorm:"not null" json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Verification) TableName() string {
	return "verification"
}

func (v *Verification) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return
}

// FarcasterAccount holds the Farcaster identity linked to a user
type FarcasterAccount struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	Fid         int64     `gorm:"uniqueIndex;not null" json:"fid"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	PfpURL      string    `json:"pfpUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (FarcasterAccount) TableName() string {
	return "farcaster"
}

func (f *FarcasterAccount) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return
}
