package handlers

import (
	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// UsersHandler serves system administration of accounts.
type UsersHandler struct {
	Users *services.UserService
}

func NewUsersHandler(users *services.UserService) *UsersHandler {
	return &UsersHandler{Users: users}
}

func (h *UsersHandler) List(c *fiber.Ctx) error {
	actor, err := requireUser(c)
	if actor == nil {
		return err
	}

	page := utils.ParsePagination(c)
	users, total, err := h.Users.List(c.UserContext(), actor, c.Query("search"), page)
	if err != nil {
		return serviceError(c, "users_list_failed", err)
	}
	return utils.Paginated(c, users, page, total)
}

func (h *UsersHandler) Promote(c *fiber.Ctx) error {
	return h.changeRole(c, true)
}

func (h *UsersHandler) Demote(c *fiber.Ctx) error {
	return h.changeRole(c, false)
}

func (h *UsersHandler) changeRole(c *fiber.Ctx, promote bool) error {
	actor, err := requireUser(c)
	if actor == nil {
		return err
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	change := h.Users.Demote
	if promote {
		change = h.Users.Promote
	}
	user, err := change(c.UserContext(), actor, userID)
	if err != nil {
		return serviceError(c, "user_role_change_failed", err)
	}

	logger.InfoWithUser(actor.ID.String(), "user_role_changed", map[string]interface{}{
		"target_user_id": user.ID.String(),
		"role":           string(user.Role),
	})
	return utils.Success(c, fiber.StatusOK, user)
}

func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	actor, err := requireUser(c)
	if actor == nil {
		return err
	}

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid user ID")
	}

	if err := h.Users.Delete(c.UserContext(), actor, userID); err != nil {
		return serviceError(c, "user_delete_failed", err)
	}

	logger.InfoWithUser(actor.ID.String(), "user_deleted", map[string]interface{}{
		"target_user_id": userID.String(),
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
