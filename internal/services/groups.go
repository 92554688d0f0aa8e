package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ansyar-project/split-the-bill/internal/events"
	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateGroupInput struct {
	Name        string  `json:"name" validate:"min=2,max=150"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

var createGroupMessages = fieldMessages{
	"Name.min":        "Group name is required",
	"Name.max":        "Group name is too long",
	"Description.max": "Description is too long",
}

// GroupSummary is a group as listed for one of its members.
type GroupSummary struct {
	models.Group
	Role        models.GroupRole `json:"role"`
	MemberCount int64            `json:"memberCount"`
}

type GroupService struct {
	DB    *gorm.DB
	Auth  *Authorizer
	Audit *AuditService
}

func NewGroupService(db *gorm.DB, auth *Authorizer, audit *AuditService) *GroupService {
	return &GroupService{DB: db, Auth: auth, Audit: audit}
}

// Create stores the group and makes actor its first admin in one transaction.
func (s *GroupService) Create(ctx context.Context, actor *models.User, in CreateGroupInput) (*models.Group, error) {
	if actor == nil {
		return nil, unauthorized()
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Description != nil {
		trimmed := strings.TrimSpace(*in.Description)
		in.Description = &trimmed
		if trimmed == "" {
			in.Description = nil
		}
	}
	if err := validateInput(in, createGroupMessages); err != nil {
		return nil, err
	}

	group := models.Group{
		Name:        in.Name,
		Description: in.Description,
		CreatedByID: actor.ID,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		return tx.Create(&models.Membership{
			UserID:  actor.ID,
			GroupID: group.ID,
			Role:    models.GroupRoleAdmin,
		}).Error
	})
	if err != nil {
		logger.ErrorWithUser(actor.ID.String(), "group_create_failed", err, map[string]interface{}{
			"group_name": in.Name,
		})
		return nil, internal("Failed to create group", err)
	}

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		GroupID:      ref(group.ID),
		Action:       events.GroupCreated,
		ResourceType: "group",
		ResourceID:   ref(group.ID),
		Details:      map[string]interface{}{"group_name": group.Name},
	})

	return &group, nil
}

// ListForUser returns the groups actor belongs to, newest first.
func (s *GroupService) ListForUser(ctx context.Context, actor *models.User) ([]GroupSummary, error) {
	if actor == nil {
		return nil, unauthorized()
	}

	var memberships []models.Membership
	if err := s.DB.WithContext(ctx).Where("user_id = ?", actor.ID).Find(&memberships).Error; err != nil {
		return nil, internal("Failed to load groups", err)
	}
	if len(memberships) == 0 {
		return []GroupSummary{}, nil
	}

	roles := make(map[uuid.UUID]models.GroupRole, len(memberships))
	groupIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		roles[m.GroupID] = m.Role
		groupIDs = append(groupIDs, m.GroupID)
	}

	var groups []models.Group
	if err := s.DB.WithContext(ctx).Where("id IN ?", groupIDs).Order("created_at DESC").Find(&groups).Error; err != nil {
		return nil, internal("Failed to load groups", err)
	}

	var counts []struct {
		GroupID uuid.UUID
		Total   int64
	}
	if err := s.DB.WithContext(ctx).Model(&models.Membership{}).
		Select("group_id, COUNT(*) AS total").
		Where("group_id IN ?", groupIDs).
		Group("group_id").
		Scan(&counts).Error; err != nil {
		return nil, internal("Failed to load groups", err)
	}
	memberCounts := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		memberCounts[c.GroupID] = c.Total
	}

	summaries := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		summaries = append(summaries, GroupSummary{
			Group:       g,
			Role:        roles[g.ID],
			MemberCount: memberCounts[g.ID],
		})
	}
	return summaries, nil
}

// Get returns the group with its memberships. Members only.
func (s *GroupService) Get(ctx context.Context, actor *models.User, groupID uuid.UUID) (*models.Group, error) {
	if _, err := s.Auth.RequireMember(ctx, actor, groupID); err != nil {
		return nil, err
	}

	var group models.Group
	err := s.DB.WithContext(ctx).
		Preload("Memberships", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Memberships.User").
		First(&group, "id = ?", groupID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Group not found")
		}
		return nil, internal("Failed to load group", err)
	}
	return &group, nil
}

// Delete removes the group and everything that belongs to it in one
// transaction. Group admins only.
func (s *GroupService) Delete(ctx context.Context, actor *models.User, groupID uuid.UUID) error {
	if _, err := s.Auth.requireAdmin(ctx, actor, groupID, "You don't have permission to delete this group"); err != nil {
		return err
	}

	var group models.Group
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
			return err
		}

		expenseIDs := tx.Model(&models.Expense{}).Select("id").Where("group_id = ?", groupID)
		if err := tx.Where("expense_id IN (?)", expenseIDs).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.Expense{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupInvite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("Group not found")
		}
		logger.ErrorWithUser(actor.ID.String(), "group_delete_failed", err, map[string]interface{}{
			"group_id": groupID.String(),
		})
		return internal("Failed to delete group", err)
	}

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		GroupID:      ref(groupID),
		Action:       events.GroupDeleted,
		ResourceType: "group",
		ResourceID:   ref(groupID),
		Details:      map[string]interface{}{"group_name": group.Name},
	})
	return nil
}
