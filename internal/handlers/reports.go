package handlers

import (
	"fmt"

	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const (
	archiveKeyHeader = "X-Report-Archive-Key"
	archiveURLHeader = "X-Report-Archive-URL"
)

type ReportsHandler struct {
	Reports *services.ReportService
}

func NewReportsHandler(reports *services.ReportService) *ReportsHandler {
	return &ReportsHandler{Reports: reports}
}

// Monthly returns balances for ?month=&year=, defaulting to the current UTC
// month when both are omitted.
func (h *ReportsHandler) Monthly(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	month, year, ok, msg := parsePeriod(c)
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}
	if !ok {
		month, year = currentPeriod()
	}

	monthly, err := h.Reports.Monthly(c.UserContext(), currentUser, groupID, month, year)
	if err != nil {
		return serviceError(c, "report_monthly_failed", err)
	}
	if monthly == nil {
		return utils.Error(c, fiber.StatusNotFound, "Group not found")
	}
	return utils.Success(c, fiber.StatusOK, monthly)
}

// PDF streams the rendered report. Without month and year it covers all time.
func (h *ReportsHandler) PDF(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	month, year, ok, msg := parsePeriod(c)
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}
	var monthPtr, yearPtr *int
	filename := "expense-report.pdf"
	if ok {
		monthPtr, yearPtr = &month, &year
		filename = fmt.Sprintf("expense-report-%04d-%02d.pdf", year, month)
	}

	pdf, err := h.Reports.PDF(c.UserContext(), currentUser, groupID, monthPtr, yearPtr)
	if err != nil {
		return serviceError(c, "report_pdf_failed", err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "report_pdf_generated", map[string]interface{}{
		"group_id":    groupID.String(),
		"bytes":       len(pdf.Data),
		"archive_key": pdf.ArchiveKey,
	})

	if pdf.ArchiveKey != "" {
		c.Set(archiveKeyHeader, pdf.ArchiveKey)
	}
	if pdf.ArchiveURL != "" {
		c.Set(archiveURLHeader, pdf.ArchiveURL)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Status(fiber.StatusOK).Send(pdf.Data)
}
