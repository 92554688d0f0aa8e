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

const (
	DefaultInviteTTL = 7 * 24 * time.Hour

	msgInvalidInvite = "Invalid or expired invite"
)

type InviteService struct {
	DB    *gorm.DB
	Auth  *Authorizer
	Audit *AuditService
	TTL   time.Duration
	Now   func() time.Time
}

func NewInviteService(db *gorm.DB, auth *Authorizer, audit *AuditService, ttl time.Duration) *InviteService {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	return &InviteService{DB: db, Auth: auth, Audit: audit, TTL: ttl, Now: time.Now}
}

// CreateInvite issues a single-use join token for the group. Group admins only.
func (s *InviteService) CreateInvite(ctx context.Context, actor *models.User, groupID uuid.UUID) (*models.GroupInvite, error) {
	if _, err := s.Auth.RequireAdmin(ctx, actor, groupID); err != nil {
		return nil, err
	}

	invite := models.GroupInvite{
		Token:       uuid.NewString(),
		GroupID:     groupID,
		CreatedByID: actor.ID,
		ExpiresAt:   s.Now().Add(s.TTL).UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(&invite).Error; err != nil {
		logger.ErrorWithUser(actor.ID.String(), "invite_create_failed", err, map[string]interface{}{
			"group_id": groupID.String(),
		})
		return nil, internal("Failed to create invite", err)
	}

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		GroupID:      ref(groupID),
		Action:       events.InviteCreated,
		ResourceType: "invite",
		ResourceID:   ref(invite.ID),
		Details:      map[string]interface{}{"expires_at": invite.ExpiresAt},
	})
	return &invite, nil
}

// ListActive returns the unexpired invites of a group. Group admins only.
func (s *InviteService) ListActive(ctx context.Context, actor *models.User, groupID uuid.UUID) ([]models.GroupInvite, error) {
	if _, err := s.Auth.RequireAdmin(ctx, actor, groupID); err != nil {
		return nil, err
	}

	var invites []models.GroupInvite
	err := s.DB.WithContext(ctx).
		Where("group_id = ? AND expires_at > ?", groupID, s.Now().UTC()).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		return nil, internal("Failed to load invites", err)
	}
	return invites, nil
}

// Revoke deletes an invite before it is used. Group admins only.
func (s *InviteService) Revoke(ctx context.Context, actor *models.User, groupID, inviteID uuid.UUID) error {
	if _, err := s.Auth.RequireAdmin(ctx, actor, groupID); err != nil {
		return err
	}

	result := s.DB.WithContext(ctx).Where("id = ? AND group_id = ?", inviteID, groupID).Delete(&models.GroupInvite{})
	if result.Error != nil {
		return internal("Failed to revoke invite", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound("Invite not found")
	}

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		GroupID:      ref(groupID),
		Action:       events.InviteRevoked,
		ResourceType: "invite",
		ResourceID:   ref(inviteID),
	})
	return nil
}

// JoinWithToken redeems an invite. The membership is created and the token
// deleted in the same transaction, so a token admits exactly one user.
func (s *InviteService) JoinWithToken(ctx context.Context, actor *models.User, token string) (*models.Membership, error) {
	if actor == nil {
		return nil, unauthorized()
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, validationError("Invite token is required")
	}

	var membership models.Membership
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invite models.GroupInvite
		if err := tx.Where("token = ?", token).First(&invite).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return conflict(msgInvalidInvite)
			}
			return err
		}
		if invite.Expired(s.Now()) {
			return conflict(msgInvalidInvite)
		}

		existing, err := findMembership(ctx, tx, actor.ID, invite.GroupID)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflict("You are already in this group.")
		}

		membership = models.Membership{UserID: actor.ID, GroupID: invite.GroupID, Role: models.GroupRoleMember}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", invite.ID).Delete(&models.GroupInvite{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			// Redeemed concurrently by someone else.
			return conflict(msgInvalidInvite)
		}
		return nil
	})
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return nil, svcErr
		}
		logger.ErrorWithUser(actor.ID.String(), "invite_join_failed", err, nil)
		return nil, internal("Failed to join group", err)
	}

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		GroupID:      ref(membership.GroupID),
		Action:       events.MemberJoined,
		ResourceType: "membership",
		ResourceID:   ref(membership.ID),
		Details:      map[string]interface{}{"target_user_id": actor.ID.String(), "via": "link"},
	})
	return &membership, nil
}

// PurgeExpired deletes invites whose expiry has passed and returns how many.
func (s *InviteService) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.DB.WithContext(ctx).Where("expires_at <= ?", s.Now().UTC()).Delete(&models.GroupInvite{})
	if result.Error != nil {
		return 0, internal("Failed to purge invites", result.Error)
	}
	if result.RowsAffected > 0 {
		logger.Info("expired_invites_purged", map[string]interface{}{"count": result.RowsAffected})
	}
	return result.RowsAffected, nil
}
