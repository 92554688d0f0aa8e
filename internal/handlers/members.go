package handlers

import (
	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type MembersHandler struct {
	Members *services.MembershipService
}

func NewMembersHandler(members *services.MembershipService) *MembersHandler {
	return &MembersHandler{Members: members}
}

func (h *MembersHandler) List(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	members, err := h.Members.ListMembers(c.UserContext(), currentUser, groupID)
	if err != nil {
		return serviceError(c, "member_list_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, members)
}

// Add invites an existing account by email.
func (h *MembersHandler) Add(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	var req services.InviteByEmailInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	member, err := h.Members.InviteByEmail(c.UserContext(), currentUser, groupID, req)
	if err != nil {
		return serviceError(c, "member_add_failed", err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_member_added", map[string]interface{}{
		"group_id":       groupID.String(),
		"target_user_id": member.ID.String(),
	})
	return utils.Success(c, fiber.StatusCreated, member)
}

func (h *MembersHandler) UpdateRole(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}
	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	var req services.ChangeRoleInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	member, err := h.Members.ChangeRole(c.UserContext(), currentUser, groupID, userID, req)
	if err != nil {
		return serviceError(c, "member_role_update_failed", err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_member_role_updated", map[string]interface{}{
		"group_id":       groupID.String(),
		"target_user_id": userID.String(),
		"role":           string(member.Role),
	})
	return utils.Success(c, fiber.StatusOK, member)
}

func (h *MembersHandler) Remove(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}
	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	if err := h.Members.RemoveMember(c.UserContext(), currentUser, groupID, userID); err != nil {
		return serviceError(c, "member_remove_failed", err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_member_removed", map[string]interface{}{
		"group_id":       groupID.String(),
		"target_user_id": userID.String(),
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"removed": true})
}
