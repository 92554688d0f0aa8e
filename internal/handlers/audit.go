package handlers

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// ActivityHandler serves a group's audit trail.
type ActivityHandler struct {
	Audit *services.AuditService
}

func NewActivityHandler(audit *services.AuditService) *ActivityHandler {
	return &ActivityHandler{Audit: audit}
}

// List returns the audit trail of a group, newest first.
func (h *ActivityHandler) List(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	page := utils.ParsePagination(c)
	rows, total, err := h.Audit.GroupActivity(c.UserContext(), currentUser, groupID, page)
	if err != nil {
		return serviceError(c, "group_activity_failed", err)
	}
	return utils.Paginated(c, rows, page, total)
}

// Export downloads the audit trail of a group as CSV (default) or JSON.
func (h *ActivityHandler) Export(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	format := strings.ToLower(strings.TrimSpace(c.Query("format", "csv")))
	if format != "csv" && format != "json" {
		return utils.Error(c, fiber.StatusBadRequest, "Format must be csv or json")
	}

	rows, err := h.Audit.ExportGroupActivity(c.UserContext(), currentUser, groupID)
	if err != nil {
		return serviceError(c, "group_activity_export_failed", err)
	}

	if format == "json" {
		c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "group-activity.json"))
		return utils.Success(c, fiber.StatusOK, rows)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "group-activity.csv"))

	writer := csv.NewWriter(c.Response().BodyWriter())
	_ = writer.Write([]string{"Timestamp", "Action", "Actor ID", "Resource Type", "Resource ID", "IP Address", "Details"})

	for _, row := range rows {
		actorID := ""
		if row.UserID != nil {
			actorID = row.UserID.String()
		}
		resourceID := ""
		if row.ResourceID != nil {
			resourceID = row.ResourceID.String()
		}

		_ = writer.Write([]string{
			row.CreatedAt.UTC().Format(time.RFC3339),
			row.Action,
			actorID,
			row.ResourceType,
			resourceID,
			row.IPAddress,
			formatDetails(row.Details),
		})
	}

	writer.Flush()
	return writer.Error()
}

// formatDetails renders details as sorted key=value pairs.
func formatDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, "; ")
}
