package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ansyar-project/split-the-bill/internal/events"
	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const msgLastAdmin = "Group must keep at least one admin"

type InviteByEmailInput struct {
	Email string `json:"email" validate:"required,email"`
}

type ChangeRoleInput struct {
	Role string `json:"role" validate:"required"`
}

var inviteByEmailMessages = fieldMessages{
	"Email": "Invalid email",
}

// MemberView is a member of a group as shown to other members.
type MemberView struct {
	ID       uuid.UUID        `json:"id"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Role     models.GroupRole `json:"role"`
	JoinedAt time.Time        `json:"joinedAt"`
}

func memberView(m models.Membership) MemberView {
	view := MemberView{ID: m.UserID, Role: m.Role, JoinedAt: m.CreatedAt}
	if m.User != nil {
		view.Name = m.User.Name
		view.Email = m.User.Email
	}
	return view
}

type MembershipService struct {
	DB    *gorm.DB
	Auth  *Authorizer
	Audit *AuditService
}

func NewMembershipService(db *gorm.DB, auth *Authorizer, audit *AuditService) *MembershipService {
	return &MembershipService{DB: db, Auth: auth, Audit: audit}
}

// InviteByEmail adds an existing user to the group as a plain member.
func (s *MembershipService) InviteByEmail(ctx context.Context, actor *models.User, groupID uuid.UUID, in InviteByEmailInput) (*MemberView, error) {
	if actor == nil {
		return nil, unauthorized()
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in, inviteByEmailMessages); err != nil {
		return nil, err
	}

	if _, err := s.Auth.RequireAdmin(ctx, actor, groupID); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", in.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("User not found")
		}
		return nil, internal("Failed to load user", err)
	}

	existing, err := findMembership(ctx, s.DB, user.ID, groupID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflict("User already in the group")
	}

	membership := models.Membership{UserID: user.ID, GroupID: groupID, Role: models.GroupRoleMember}
	if err := s.DB.WithContext(ctx).Create(&membership).Error; err != nil {
		logger.ErrorWithUser(actor.ID.String(), "member_add_failed", err, map[string]interface{}{
			"group_id":       groupID.String(),
			"target_user_id": user.ID.String(),
		})
		return nil, internal("Failed to add member", err)
	}
	membership.User = &user

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		GroupID:      ref(groupID),
		Action:       events.MemberJoined,
		ResourceType: "membership",
		ResourceID:   ref(membership.ID),
		Details: map[string]interface{}{
			"target_user_id": user.ID.String(),
			"via":            "email",
		},
	})

	view := memberView(membership)
	return &view, nil
}

// ListMembers returns the members of a group in join order. An unknown group
// yields an empty list; an existing one requires membership.
func (s *MembershipService) ListMembers(ctx context.Context, actor *models.User, groupID uuid.UUID) ([]MemberView, error) {
	if actor == nil {
		return nil, unauthorized()
	}

	exists, err := s.Auth.groupExists(ctx, s.DB, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []MemberView{}, nil
	}
	if _, err := s.Auth.RequireMember(ctx, actor, groupID); err != nil {
		return nil, err
	}

	memberships, err := loadMemberships(ctx, s.DB, groupID)
	if err != nil {
		return nil, err
	}

	views := make([]MemberView, 0, len(memberships))
	for _, m := range memberships {
		views = append(views, memberView(m))
	}
	return views, nil
}

// ChangeRole sets the group role of userID. The last admin cannot be demoted.
func (s *MembershipService) ChangeRole(ctx context.Context, actor *models.User, groupID, userID uuid.UUID, in ChangeRoleInput) (*MemberView, error) {
	if actor == nil {
		return nil, unauthorized()
	}
	if err := validateInput(in, fieldMessages{"Role": "Invalid role"}); err != nil {
		return nil, err
	}
	newRole, err := models.ParseGroupRole(strings.TrimSpace(in.Role))
	if err != nil {
		return nil, validationError("Invalid role")
	}

	if _, err := s.Auth.RequireAdmin(ctx, actor, groupID); err != nil {
		return nil, err
	}

	var target models.Membership
	var previous models.GroupRole
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("User").Where("user_id = ? AND group_id = ?", userID, groupID).First(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("Member not found")
			}
			return err
		}
		previous = target.Role
		if previous == newRole {
			return nil
		}

		if previous.CanManageMembers() && !newRole.CanManageMembers() {
			admins, err := countAdmins(ctx, tx, groupID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return conflict(msgLastAdmin)
			}
		}

		target.Role = newRole
		return tx.Model(&target).Update("role", newRole).Error
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		return nil, internal("Failed to change role", err)
	}

	if previous != newRole {
		s.Audit.Record(ctx, AuditEntry{
			UserID:       actorRef(actor),
			GroupID:      ref(groupID),
			Action:       events.MemberRoleChanged,
			ResourceType: "membership",
			ResourceID:   ref(target.ID),
			Details: map[string]interface{}{
				"target_user_id": userID.String(),
				"from":           string(previous),
				"to":             string(newRole),
			},
		})
	}

	view := memberView(target)
	return &view, nil
}

// RemoveMember deletes the membership of userID. Splits the user took part in
// stay in the ledger.
func (s *MembershipService) RemoveMember(ctx context.Context, actor *models.User, groupID, userID uuid.UUID) error {
	if _, err := s.Auth.RequireAdmin(ctx, actor, groupID); err != nil {
		return err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := findMembership(ctx, tx, userID, groupID)
		if err != nil {
			return err
		}
		if target == nil {
			return notFound("Member not found")
		}

		if target.Role.CanManageMembers() {
			admins, err := countAdmins(ctx, tx, groupID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return conflict(msgLastAdmin)
			}
		}

		return tx.Delete(target).Error
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return svcErr
		}
		return internal("Failed to remove member", err)
	}

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		GroupID:      ref(groupID),
		Action:       events.MemberRemoved,
		ResourceType: "membership",
		Details:      map[string]interface{}{"target_user_id": userID.String()},
	})
	return nil
}

func loadMemberships(ctx context.Context, db *gorm.DB, groupID uuid.UUID) ([]models.Membership, error) {
	var memberships []models.Membership
	err := db.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, internal("Failed to load members", err)
	}
	return memberships, nil
}
