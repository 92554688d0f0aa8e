package models

import (
	"fmt"

	"github.com/google/uuid"
)

// GroupRole is the role a user holds inside one group.
type GroupRole string

const (
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

func ParseGroupRole(value string) (GroupRole, error) {
	switch GroupRole(value) {
	case GroupRoleAdmin, GroupRoleMember:
		return GroupRole(value), nil
	default:
		return "", fmt.Errorf("invalid group role %q", value)
	}
}

// CanManageMembers covers inviting, role changes, removals and group deletion.
func (r GroupRole) CanManageMembers() bool {
	switch r {
	case GroupRoleAdmin:
		return true
	case GroupRoleMember:
		return false
	default:
		return false
	}
}

// CanManageExpense reports whether the role may edit or delete an expense
// paid by someone else.
func (r GroupRole) CanManageExpense() bool {
	switch r {
	case GroupRoleAdmin:
		return true
	case GroupRoleMember:
		return false
	default:
		return false
	}
}

type Membership struct {
	BaseModel
	UserID  uuid.UUID `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_group"`
	GroupID uuid.UUID `json:"groupID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_group"`
	Role    GroupRole `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	User    *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (Membership) TableName() string {
	return "memberships"
}
