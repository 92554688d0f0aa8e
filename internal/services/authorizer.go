package services

import (
	"context"
	"errors"

	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Authorizer answers "may this user act on this group" for every operation
// that reads or mutates group data.
type Authorizer struct {
	DB *gorm.DB
}

func NewAuthorizer(db *gorm.DB) *Authorizer {
	return &Authorizer{DB: db}
}

var systemActor = &models.User{Name: "system", Role: models.UserRoleAdmin}

// SystemActor stands in for an operator acting outside HTTP, such as the CLI.
// It is a system admin and is treated as an admin of every group.
func SystemActor() *models.User {
	return systemActor
}

// RequireMember returns the actor's membership in groupID. Unknown groups are
// NotFound and non-members get "Not allowed".
func (a *Authorizer) RequireMember(ctx context.Context, actor *models.User, groupID uuid.UUID) (*models.Membership, error) {
	if actor == nil {
		return nil, unauthorized()
	}

	exists, err := a.groupExists(ctx, a.DB, groupID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFound("Group not found")
	}
	if actor == systemActor {
		return &models.Membership{UserID: actor.ID, GroupID: groupID, Role: models.GroupRoleAdmin}, nil
	}

	membership, err := findMembership(ctx, a.DB, actor.ID, groupID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, forbidden(msgNotAllowed)
	}
	return membership, nil
}

// RequireAdmin is RequireMember plus the member-management permission.
func (a *Authorizer) RequireAdmin(ctx context.Context, actor *models.User, groupID uuid.UUID) (*models.Membership, error) {
	return a.requireAdmin(ctx, actor, groupID, msgNotAllowed)
}

func (a *Authorizer) requireAdmin(ctx context.Context, actor *models.User, groupID uuid.UUID, denied string) (*models.Membership, error) {
	membership, err := a.RequireMember(ctx, actor, groupID)
	if err != nil {
		var svcErr *Error
		if errors.As(err, &svcErr) && svcErr.Kind == KindForbidden {
			return nil, forbidden(denied)
		}
		return nil, err
	}
	if !membership.Role.CanManageMembers() {
		return nil, forbidden(denied)
	}
	return membership, nil
}

// RequireSystemAdmin guards user administration.
func (a *Authorizer) RequireSystemAdmin(actor *models.User) error {
	if actor == nil {
		return unauthorized()
	}
	if !actor.Role.IsSystemAdmin() {
		return forbidden(msgNotAllowed)
	}
	return nil
}

func (a *Authorizer) groupExists(ctx context.Context, db *gorm.DB, groupID uuid.UUID) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
		return false, internal("Failed to load group", err)
	}
	return count > 0, nil
}

// findMembership returns nil without error when the user is not a member.
func findMembership(ctx context.Context, db *gorm.DB, userID, groupID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := db.WithContext(ctx).Where("user_id = ? AND group_id = ?", userID, groupID).First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, internal("Failed to load membership", err)
	}
	return &membership, nil
}

// countAdmins counts the admins of a group. Inside a transaction on a database
// with row locks the admin rows stay locked until commit, so two admins
// demoting or removing each other cannot both see a second admin.
func countAdmins(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (int64, error) {
	var ids []uuid.UUID
	if err := adminRows(tx.WithContext(ctx), groupID, supportsRowLocks(tx)).Pluck("id", &ids).Error; err != nil {
		return 0, internal("Failed to count group admins", err)
	}
	return int64(len(ids)), nil
}

func adminRows(db *gorm.DB, groupID uuid.UUID, lock bool) *gorm.DB {
	query := db.Model(&models.Membership{}).Where("group_id = ? AND role = ?", groupID, models.GroupRoleAdmin)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}

// supportsRowLocks is false for SQLite, which has no SELECT ... FOR UPDATE and
// serializes writers on the database file instead.
func supportsRowLocks(db *gorm.DB) bool {
	return db.Dialector.Name() != "sqlite"
}
