package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// NewPagination clamps page to >= 1 and limit to 1..100, falling back to the
// default page size for a non-positive limit.
func NewPagination(page, limit int) PaginationParams {
	if page < 1 {
		page = 1
	}
	switch {
	case limit < 1:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	return PaginationParams{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// ParsePagination reads the page and limit query parameters. Unparseable
// values fall back to the defaults.
func ParsePagination(c *fiber.Ctx) PaginationParams {
	return NewPagination(queryInt(c, "page", 1), queryInt(c, "limit", defaultPageSize))
}

func (p PaginationParams) TotalPages(total int64) int {
	if p.Limit < 1 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

// Scope applies the page to a gorm query.
func (p PaginationParams) Scope(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset).Limit(p.Limit)
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
