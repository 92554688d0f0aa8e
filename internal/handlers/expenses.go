package handlers

import (
	"github.com/ansyar-project/split-the-bill/internal/services"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/ansyar-project/split-the-bill/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type ExpensesHandler struct {
	Expenses *services.ExpenseService
}

func NewExpensesHandler(expenses *services.ExpenseService) *ExpensesHandler {
	return &ExpensesHandler{Expenses: expenses}
}

func (h *ExpensesHandler) List(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	expenses, err := h.Expenses.List(c.UserContext(), currentUser, groupID)
	if err != nil {
		return serviceError(c, "expense_list_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, expenses)
}

func (h *ExpensesHandler) Create(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid group ID")
	}

	var req services.CreateExpenseInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	expense, err := h.Expenses.Create(c.UserContext(), currentUser, groupID, req)
	if err != nil {
		return serviceError(c, "expense_create_failed", err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "expense_created", map[string]interface{}{
		"group_id":   groupID.String(),
		"expense_id": expense.ID.String(),
		"amount":     expense.Amount.String(),
	})
	return utils.Success(c, fiber.StatusCreated, expense)
}

func (h *ExpensesHandler) Get(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	expenseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid expense ID")
	}

	expense, err := h.Expenses.Get(c.UserContext(), currentUser, expenseID)
	if err != nil {
		return serviceError(c, "expense_get_failed", err)
	}
	return utils.Success(c, fiber.StatusOK, expense)
}

func (h *ExpensesHandler) Update(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	expenseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid expense ID")
	}

	var req services.EditExpenseInput
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	expense, err := h.Expenses.Edit(c.UserContext(), currentUser, expenseID, req)
	if err != nil {
		return serviceError(c, "expense_update_failed", err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "expense_updated", map[string]interface{}{
		"expense_id": expense.ID.String(),
		"amount":     expense.Amount.String(),
	})
	return utils.Success(c, fiber.StatusOK, expense)
}

func (h *ExpensesHandler) Delete(c *fiber.Ctx) error {
	currentUser, err := requireUser(c)
	if currentUser == nil {
		return err
	}

	expenseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid expense ID")
	}

	if err := h.Expenses.Delete(c.UserContext(), currentUser, expenseID); err != nil {
		return serviceError(c, "expense_delete_failed", err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "expense_deleted", map[string]interface{}{
		"expense_id": expenseID.String(),
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": true})
}
