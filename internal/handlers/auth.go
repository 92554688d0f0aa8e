package handlers

import (
	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Users *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{Users: users}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := h.Users.Register(c.UserContext(), req)
	if err != nil {
		return serviceError(c, "user_register_failed", err)
	}

	logger.InfoWithUser(user.ID.String(), "user_registered", map[string]interface{}{
		"email": user.Email,
		"ip":    c.IP(),
	})
	return utils.Success(c, fiber.StatusCreated, user)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req services.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	session, err := h.Users.Authenticate(c.UserContext(), req)
	if err != nil {
		if services.KindOf(err) == services.KindUnauthorized {
			logger.Warn("login_failed", map[string]interface{}{
				"email": req.Email,
				"ip":    c.IP(),
			})
		}
		return serviceError(c, "login_failed", err)
	}

	logger.InfoWithUser(session.User.ID.String(), "login_success", map[string]interface{}{
		"ip": c.IP(),
	})
	return utils.Success(c, fiber.StatusOK, session)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := requireUser(c)
	if user == nil {
		return err
	}
	return utils.Success(c, fiber.StatusOK, user)
}

func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	user, err := requireUser(c)
	if user == nil {
		return err
	}

	var req services.UpdateProfileInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	updated, err := h.Users.UpdateProfile(c.UserContext(), user, req)
	if err != nil {
		return serviceError(c, "profile_update_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, updated)
}
