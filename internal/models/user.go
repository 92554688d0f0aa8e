package models

// UserRole is the system-wide role of an account.
type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleMember UserRole = "member"
)

// IsSystemAdmin reports whether the role grants access to user administration.
func (r UserRole) IsSystemAdmin() bool {
	switch r {
	case UserRoleAdmin:
		return true
	case UserRoleMember:
		return false
	default:
		return false
	}
}

type User struct {
	BaseModel
	Name         string       `json:"name" gorm:"type:varchar(100);not null"`
	Email        string       `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string       `json:"-" gorm:"type:text;not null"`
	Role         UserRole     `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	Memberships  []Membership `json:"-" gorm:"foreignKey:UserID"`
}
