package utils

import "github.com/gofiber/fiber/v2"

// Codes sent in the "code" field of a failed response. They match the service
// error kinds so clients can branch on them instead of on messages.
const (
	CodeValidation   = "validation"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeInternal     = "internal"
)

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// Error writes a failure envelope with the code implied by status.
func Error(c *fiber.Ctx, status int, message string) error {
	return ErrorWithCode(c, status, CodeForStatus(status), message)
}

func ErrorWithCode(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

func CodeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
		return CodeValidation
	case fiber.StatusUnauthorized:
		return CodeUnauthorized
	case fiber.StatusForbidden:
		return CodeForbidden
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusConflict:
		return CodeConflict
	default:
		return CodeInternal
	}
}

// Paginated writes one page of a listing (group activity, user admin) along
// with its position in the full result.
func Paginated(c *fiber.Ctx, items interface{}, page PaginationParams, total int64) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    items,
		"pagination": fiber.Map{
			"page":       page.Page,
			"limit":      page.Limit,
			"total":      total,
			"totalPages": page.TotalPages(total),
		},
	})
}
