package handlers

import (
	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type InvitesHandler struct {
	Invites *services.InviteService
}

func NewInvitesHandler(invites *services.InviteService) *InvitesHandler {
	return &InvitesHandler{Invites: invites}
}

func (h *InvitesHandler) Create(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	invite, err := h.Invites.CreateInvite(c.UserContext(), currentUser, groupID)
	if err != nil {
		return serviceError(c, "invite_create_failed", err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "invite_created", map[string]interface{}{
		"group_id":   groupID.String(),
		"invite_id":  invite.ID.String(),
		"expires_at": invite.ExpiresAt,
	})
	return utils.Success(c, fiber.StatusCreated, invite)
}

func (h *InvitesHandler) List(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	invites, err := h.Invites.ListActive(c.UserContext(), currentUser, groupID)
	if err != nil {
		return serviceError(c, "invite_list_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, invites)
}

func (h *InvitesHandler) Revoke(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}
	inviteID, err := parseUUID(c.Params("inviteId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid invite ID")
	}

	if err := h.Invites.Revoke(c.UserContext(), currentUser, groupID, inviteID); err != nil {
		return serviceError(c, "invite_revoke_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"revoked": true})
}

func (h *InvitesHandler) Join(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	membership, err := h.Invites.JoinWithToken(c.UserContext(), currentUser, c.Params("token"))
	if err != nil {
		return serviceError(c, "invite_join_failed", err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "invite_redeemed", map[string]interface{}{
		"group_id": membership.GroupID.String(),
	})
	return utils.Success(c, fiber.StatusOK, membership)
}
