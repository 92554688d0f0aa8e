package handlers

import (
	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type GroupsHandler struct {
	Groups *services.GroupService
}

func NewGroupsHandler(groups *services.GroupService) *GroupsHandler {
	return &GroupsHandler{Groups: groups}
}

func (h *GroupsHandler) Create(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	var req services.CreateGroupInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	group, err := h.Groups.Create(c.UserContext(), currentUser, req)
	if err != nil {
		return serviceError(c, "group_create_failed", err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_created", map[string]interface{}{
		"group_id":   group.ID.String(),
		"group_name": group.Name,
	})
	return utils.Success(c, fiber.StatusCreated, group)
}

func (h *GroupsHandler) List(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groups, err := h.Groups.ListForUser(c.UserContext(), currentUser)
	if err != nil {
		return serviceError(c, "group_list_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, groups)
}

func (h *GroupsHandler) Get(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	group, err := h.Groups.Get(c.UserContext(), currentUser, groupID)
	if err != nil {
		return serviceError(c, "group_get_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, group)
}

func (h *GroupsHandler) Delete(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	if err := h.Groups.Delete(c.UserContext(), currentUser, groupID); err != nil {
		return serviceError(c, "group_delete_failed", err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_deleted", map[string]interface{}{
		"group_id": groupID.String(),
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
