package models

import (
	"time"

	"github.com/google/uuid"
)

// GroupInvite is a single-use join link. The row is deleted when it is redeemed.
type GroupInvite struct {
	BaseModel
	Token       string    `json:"token" gorm:"type:varchar(64);uniqueIndex;not null"`
	GroupID     uuid.UUID `json:"groupID" gorm:"type:uuid;not null;index"`
	CreatedByID uuid.UUID `json:"createdByID" gorm:"type:uuid;not null"`
	ExpiresAt   time.Time `json:"expiresAt" gorm:"not null"`
}

func (i *GroupInvite) Expired(now time.Time) bool {
	return i.ExpiresAt.Before(now)
}
