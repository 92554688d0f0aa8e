package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ansyar-project/split-the-bill/internal/events"
	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RegisterInput struct {
	Name     string `json:"name" validate:"min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileInput changes only the fields that are set.
type UpdateProfileInput struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=100"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
}

var userMessages = fieldMessages{
	"Name":         "Name is required",
	"Name.max":     "Name is too long",
	"Email":        "Invalid email",
	"Password":     "Password must be at least 6 characters",
	"Password.max": msgPasswordTooLong,
}

const msgPasswordTooLong = "Password must be at most 72 characters"

// checkPasswordBytes catches multi-byte passwords that pass the character
// limit but exceed what bcrypt accepts.
func checkPasswordBytes(password string) error {
	if len(password) > utils.MaxPasswordBytes {
		return validationError(msgPasswordTooLong)
	}
	return nil
}

var loginMessages = fieldMessages{
	"Email":    "Email is required",
	"Password": "Password is required",
}

// Session is the result of a successful login.
type Session struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

type UserService struct {
	DB    *gorm.DB
	Auth  *Authorizer
	Audit *AuditService
}

func NewUserService(db *gorm.DB, auth *Authorizer, audit *AuditService) *UserService {
	return &UserService{DB: db, Auth: auth, Audit: audit}
}

// Register creates a member account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in, userMessages); err != nil {
		return nil, err
	}
	if err := checkPasswordBytes(in.Password); err != nil {
		return nil, err
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, internal("Failed to register", err)
	}
	if count > 0 {
		return nil, conflict("Email already registered")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, internal("Failed to register", err)
	}

	user := models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.UserRoleMember,
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		logger.Error("user_register_failed", err, map[string]interface{}{"email": in.Email})
		return nil, internal("Failed to register", err)
	}

	s.Audit.Record(ctx, AuditEntry{
		UserID:       ref(user.ID),
		Action:       events.UserRegistered,
		ResourceType: "user",
		ResourceID:   ref(user.ID),
	})
	return &user, nil
}

// Authenticate checks credentials and issues a session token.
func (s *UserService) Authenticate(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in, loginMessages); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", in.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &Error{Kind: KindUnauthorized, Message: "Invalid email or password"}
		}
		return nil, internal("Failed to log in", err)
	}
	if !utils.CheckPassword(in.Password, user.PasswordHash) {
		return nil, &Error{Kind: KindUnauthorized, Message: "Invalid email or password"}
	}

	token, expiresAt, err := utils.GenerateToken(&user)
	if err != nil {
		return nil, internal("Failed to log in", err)
	}
	return &Session{User: &user, Token: token, ExpiresAt: expiresAt}, nil
}

// UpdateProfile changes the actor's name and/or password.
func (s *UserService) UpdateProfile(ctx context.Context, actor *models.User, in UpdateProfileInput) (*models.User, error) {
	if actor == nil {
		return nil, unauthorized()
	}

	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
	}
	if err := validateInput(in, userMessages); err != nil {
		return nil, err
	}
	if in.Password != nil {
		if err := checkPasswordBytes(*in.Password); err != nil {
			return nil, err
		}
	}

	updates := map[string]interface{}{}
	if in.Name != nil && *in.Name != "" {
		updates["name"] = *in.Name
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, internal("Failed to update profile", err)
		}
		updates["password_hash"] = hash
	}

	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", actor.ID).Updates(updates).Error; err != nil {
			return nil, internal("Failed to update profile", err)
		}
		_, passwordChanged := updates["password_hash"]
		s.Audit.Record(ctx, AuditEntry{
			UserID:       actorRef(actor),
			Action:       events.UserUpdated,
			ResourceType: "user",
			ResourceID:   actorRef(actor),
			Details:      map[string]interface{}{"password_changed": passwordChanged},
		})
	}

	return s.find(ctx, actor.ID)
}

// List returns all accounts. System admins only.
func (s *UserService) List(ctx context.Context, actor *models.User, search string, page utils.PaginationParams) ([]models.User, int64, error) {
	if err := s.Auth.RequireSystemAdmin(actor); err != nil {
		return nil, 0, err
	}

	query := s.DB.WithContext(ctx).Model(&models.User{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, internal("Failed to load users", err)
	}

	var users []models.User
	if err := query.Order("created_at ASC").Scopes(page.Scope).Find(&users).Error; err != nil {
		return nil, 0, internal("Failed to load users", err)
	}
	return users, total, nil
}

func (s *UserService) Promote(ctx context.Context, actor *models.User, userID uuid.UUID) (*models.User, error) {
	return s.setRole(ctx, actor, userID, models.UserRoleAdmin)
}

// Demote refuses to remove the last system admin.
func (s *UserService) Demote(ctx context.Context, actor *models.User, userID uuid.UUID) (*models.User, error) {
	return s.setRole(ctx, actor, userID, models.UserRoleMember)
}

func (s *UserService) setRole(ctx context.Context, actor *models.User, userID uuid.UUID, role models.UserRole) (*models.User, error) {
	if err := s.Auth.RequireSystemAdmin(actor); err != nil {
		return nil, err
	}

	var user models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("User not found")
			}
			return err
		}
		if user.Role == role {
			return nil
		}
		if user.Role.IsSystemAdmin() && !role.IsSystemAdmin() {
			var admins int64
			if err := tx.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&admins).Error; err != nil {
				return err
			}
			if admins <= 1 {
				return conflict("At least one system admin is required")
			}
		}
		user.Role = role
		return tx.Model(&user).Update("role", role).Error
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		return nil, internal("Failed to change user role", err)
	}

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		Action:       events.UserRoleChanged,
		ResourceType: "user",
		ResourceID:   ref(user.ID),
		Details:      map[string]interface{}{"role": string(role)},
	})
	return &user, nil
}

// Delete removes an account and its memberships. Accounts with expense
// history, the actor's own account and sole group admins are kept.
func (s *UserService) Delete(ctx context.Context, actor *models.User, userID uuid.UUID) error {
	if err := s.Auth.RequireSystemAdmin(actor); err != nil {
		return err
	}
	if actor.ID == userID {
		return conflict("You cannot delete your own account")
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("User not found")
			}
			return err
		}

		var history int64
		if err := tx.Model(&models.Expense{}).Where("paid_by_id = ?", userID).Count(&history).Error; err != nil {
			return err
		}
		if history == 0 {
			if err := tx.Model(&models.ExpenseSplit{}).Where("user_id = ?", userID).Count(&history).Error; err != nil {
				return err
			}
		}
		if history > 0 {
			return conflict("User has expense history and cannot be deleted")
		}

		var adminOf []models.Membership
		if err := tx.Where("user_id = ? AND role = ?", userID, models.GroupRoleAdmin).Find(&adminOf).Error; err != nil {
			return err
		}
		for _, m := range adminOf {
			admins, err := countAdmins(ctx, tx, m.GroupID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return conflict("User is the last admin of a group")
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return svcErr
		}
		return internal("Failed to delete user", err)
	}

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		Action:       events.UserDeleted,
		ResourceType: "user",
		ResourceID:   ref(userID),
	})
	return nil
}

// Find loads a user by id. The auth middleware uses it for every request.
func (s *UserService) Find(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.find(ctx, userID)
}

// FindByEmail loads a user by (case-insensitive) email.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("User not found")
		}
		return nil, internal("Failed to load user", err)
	}
	return &user, nil
}

func (s *UserService) find(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("User not found")
		}
		return nil, internal("Failed to load user", err)
	}
	return &user, nil
}
