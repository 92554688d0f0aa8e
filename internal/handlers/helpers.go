package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ansyar-project/split-the-bill/internal/middleware"
	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// requireUser returns the authenticated user or writes a 401.
func requireUser(c *fiber.Ctx) (*models.User, error) {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return nil, utils.Error(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	return user, nil
}

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindUnauthorized:
		return fiber.StatusUnauthorized
	case services.KindForbidden:
		return fiber.StatusForbidden
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// serviceError writes err as an error envelope. Internal causes are logged and
// never shown to the client.
func serviceError(c *fiber.Ctx, action string, err error) error {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		svcErr = &services.Error{Kind: services.KindInternal, Message: "Internal server error", Err: err}
	}

	status := statusFor(svcErr.Kind)
	if status == fiber.StatusInternalServerError {
		details := map[string]interface{}{
			"path":       c.Path(),
			"request_id": c.Locals("requestID"),
		}
		if userID := logger.GetUserIDFromContext(c); userID != nil {
			logger.ErrorWithUser(*userID, action, svcErr.Err, details)
		} else {
			logger.Error(action, svcErr.Err, details)
		}
	}
	return utils.ErrorWithCode(c, status, svcErr.Kind.String(), svcErr.Message)
}

// parsePeriod reads month and year query parameters. Both must be present or
// both absent; ok is false when they are absent.
func parsePeriod(c *fiber.Ctx) (month, year int, ok bool, msg string) {
	rawMonth := strings.TrimSpace(c.Query("month"))
	rawYear := strings.TrimSpace(c.Query("year"))
	if rawMonth == "" && rawYear == "" {
		return 0, 0, false, ""
	}
	if rawMonth == "" || rawYear == "" {
		return 0, 0, false, "Month and year must be provided together"
	}

	month, err := strconv.Atoi(rawMonth)
	if err != nil {
		return 0, 0, false, "Month must be between 1 and 12"
	}
	year, err = strconv.Atoi(rawYear)
	if err != nil {
		return 0, 0, false, "Year must be 1970 or later"
	}
	return month, year, true, ""
}

func currentPeriod() (int, int) {
	now := time.Now().UTC()
	return int(now.Month()), now.Year()
}
