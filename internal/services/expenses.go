package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ansyar-project/split-the-bill/internal/events"
	"github.com/ansyar-project/split-the-bill/internal/ledger"
	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SplitInput struct {
	UserID string          `json:"userId" validate:"required,uuid"`
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
}

type CreateExpenseInput struct {
	Title  string          `json:"title" validate:"required,max=255"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Splits []SplitInput    `json:"splits" validate:"required,min=1,dive"`
}

// EditExpenseInput replaces title and amount. Date and Splits are optional;
// nil Splits keeps the current ones.
type EditExpenseInput struct {
	Title  string          `json:"title" validate:"required,max=255"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Date   *string         `json:"date"`
	Splits []SplitInput    `json:"splits" validate:"omitempty,min=1,dive"`
}

var expenseMessages = fieldMessages{
	"Title.required":         "Title is required",
	"Title.max":              "Title is too long",
	"Amount":                 "Amount must be positive",
	"Splits":                 "At least one split is required",
	"Splits.UserID.required": "User ID is required",
	"Splits.UserID.uuid":     "Invalid user ID",
	"Splits.Amount":          "Amount must be non-negative",
}

const (
	msgSplitsMismatch  = "Split amounts must add up to the expense amount"
	msgSplitNotMember  = "Split user is not a member of this group"
	msgDuplicateSplit  = "Each user can appear only once in the splits"
	msgExpenseNotFound = "Expense not found"
)

type ExpenseService struct {
	DB    *gorm.DB
	Auth  *Authorizer
	Audit *AuditService
}

func NewExpenseService(db *gorm.DB, auth *Authorizer, audit *AuditService) *ExpenseService {
	return &ExpenseService{DB: db, Auth: auth, Audit: audit}
}

// Create records an expense paid by actor. Members only.
func (s *ExpenseService) Create(ctx context.Context, actor *models.User, groupID uuid.UUID, in CreateExpenseInput) (*models.Expense, error) {
	if actor == nil {
		return nil, unauthorized()
	}

	in.Title = strings.TrimSpace(in.Title)
	if err := validateInput(in, expenseMessages); err != nil {
		return nil, err
	}

	if _, err := s.Auth.RequireMember(ctx, actor, groupID); err != nil {
		return nil, err
	}

	splits, err := s.checkSplits(ctx, groupID, in.Amount, in.Splits)
	if err != nil {
		return nil, err
	}

	expense := models.Expense{
		Title:    in.Title,
		Amount:   in.Amount,
		GroupID:  groupID,
		PaidByID: actor.ID,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Splits", "PaidBy").Create(&expense).Error; err != nil {
			return err
		}
		for i := range splits {
			splits[i].ExpenseID = expense.ID
		}
		return tx.Create(&splits).Error
	})
	if err != nil {
		logger.ErrorWithUser(actor.ID.String(), "expense_create_failed", err, map[string]interface{}{
			"group_id": groupID.String(),
		})
		return nil, internal("Failed to create expense", err)
	}
	expense.Splits = splits

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		GroupID:      ref(groupID),
		Action:       events.ExpenseCreated,
		ResourceType: "expense",
		ResourceID:   ref(expense.ID),
		Details: map[string]interface{}{
			"title":  expense.Title,
			"amount": expense.Amount.String(),
			"splits": len(splits),
		},
	})

	return &expense, nil
}

// Get returns one expense with payer and splits. Members of its group only.
func (s *ExpenseService) Get(ctx context.Context, actor *models.User, expenseID uuid.UUID) (*models.Expense, error) {
	if actor == nil {
		return nil, unauthorized()
	}

	expense, err := s.load(ctx, s.DB, expenseID, true)
	if err != nil {
		return nil, err
	}
	if _, err := s.Auth.RequireMember(ctx, actor, expense.GroupID); err != nil {
		return nil, err
	}
	return expense, nil
}

// List returns the group's expenses in chronological order. Members only.
func (s *ExpenseService) List(ctx context.Context, actor *models.User, groupID uuid.UUID) ([]models.Expense, error) {
	if _, err := s.Auth.RequireMember(ctx, actor, groupID); err != nil {
		return nil, err
	}
	return loadExpenses(ctx, s.DB, groupID, nil, nil)
}

// Edit updates an expense. Only its payer or a group admin may edit, and a
// new split list replaces the old one atomically.
func (s *ExpenseService) Edit(ctx context.Context, actor *models.User, expenseID uuid.UUID, in EditExpenseInput) (*models.Expense, error) {
	if actor == nil {
		return nil, unauthorized()
	}

	in.Title = strings.TrimSpace(in.Title)
	if err := validateInput(in, expenseMessages); err != nil {
		return nil, err
	}

	var date *time.Time
	if in.Date != nil && strings.TrimSpace(*in.Date) != "" {
		parsed, err := parseExpenseDate(*in.Date)
		if err != nil {
			return nil, validationError("Invalid date")
		}
		date = &parsed
	}

	expense, err := s.authorizeChange(ctx, actor, expenseID)
	if err != nil {
		return nil, err
	}

	var newSplits []models.ExpenseSplit
	if in.Splits != nil {
		newSplits, err = s.checkSplits(ctx, expense.GroupID, in.Amount, in.Splits)
		if err != nil {
			return nil, err
		}
	} else if !sharesCover(in.Amount, expense.Splits) {
		return nil, validationError(msgSplitsMismatch)
	}

	updates := map[string]interface{}{
		"title":  in.Title,
		"amount": in.Amount,
	}
	if date != nil {
		updates["created_at"] = *date
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Expense{}).Where("id = ?", expense.ID).Updates(updates).Error; err != nil {
			return err
		}
		if newSplits == nil {
			return nil
		}
		if err := tx.Where("expense_id = ?", expense.ID).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return err
		}
		for i := range newSplits {
			newSplits[i].ExpenseID = expense.ID
		}
		return tx.Create(&newSplits).Error
	})
	if err != nil {
		logger.ErrorWithUser(actor.ID.String(), "expense_update_failed", err, map[string]interface{}{
			"expense_id": expense.ID.String(),
		})
		return nil, internal("Failed to update expense", err)
	}

	updated, err := s.load(ctx, s.DB, expense.ID, true)
	if err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		GroupID:      ref(updated.GroupID),
		Action:       events.ExpenseUpdated,
		ResourceType: "expense",
		ResourceID:   ref(updated.ID),
		Details: map[string]interface{}{
			"title":           updated.Title,
			"amount":          updated.Amount.String(),
			"splits_replaced": newSplits != nil,
		},
	})
	return updated, nil
}

// Delete removes an expense and its splits. Payer or group admin only.
func (s *ExpenseService) Delete(ctx context.Context, actor *models.User, expenseID uuid.UUID) error {
	if actor == nil {
		return unauthorized()
	}

	expense, err := s.authorizeChange(ctx, actor, expenseID)
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_id = ?", expense.ID).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", expense.ID).Delete(&models.Expense{}).Error
	})
	if err != nil {
		logger.ErrorWithUser(actor.ID.String(), "expense_delete_failed", err, map[string]interface{}{
			"expense_id": expense.ID.String(),
		})
		return internal("Failed to delete expense", err)
	}

	s.Audit.Record(ctx, AuditEntry{
		UserID:       actorRef(actor),
		GroupID:      ref(expense.GroupID),
		Action:       events.ExpenseDeleted,
		ResourceType: "expense",
		ResourceID:   ref(expense.ID),
		Details:      map[string]interface{}{"title": expense.Title, "amount": expense.Amount.String()},
	})
	return nil
}

func (s *ExpenseService) authorizeChange(ctx context.Context, actor *models.User, expenseID uuid.UUID) (*models.Expense, error) {
	expense, err := s.load(ctx, s.DB, expenseID, false)
	if err != nil {
		return nil, err
	}

	membership, err := s.Auth.RequireMember(ctx, actor, expense.GroupID)
	if err != nil {
		return nil, err
	}
	if expense.PaidByID != actor.ID && !membership.Role.CanManageExpense() {
		return nil, forbidden(msgNotAllowed)
	}
	return expense, nil
}

func (s *ExpenseService) load(ctx context.Context, db *gorm.DB, expenseID uuid.UUID, withUsers bool) (*models.Expense, error) {
	query := db.WithContext(ctx).Preload("Splits")
	if withUsers {
		query = db.WithContext(ctx).Preload("PaidBy").Preload("Splits.User")
	}

	var expense models.Expense
	if err := query.First(&expense, "id = ?", expenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(msgExpenseNotFound)
		}
		return nil, internal("Failed to load expense", err)
	}
	return &expense, nil
}

// checkSplits converts validated split input into rows. Every split user must
// be a current member, appear once, and the shares must sum to amount.
func (s *ExpenseService) checkSplits(ctx context.Context, groupID uuid.UUID, amount decimal.Decimal, in []SplitInput) ([]models.ExpenseSplit, error) {
	splits := make([]models.ExpenseSplit, 0, len(in))
	seen := make(map[uuid.UUID]struct{}, len(in))
	for _, split := range in {
		userID, err := uuid.Parse(split.UserID)
		if err != nil {
			return nil, validationError("Invalid user ID")
		}
		if _, dup := seen[userID]; dup {
			return nil, validationError(msgDuplicateSplit)
		}
		seen[userID] = struct{}{}
		splits = append(splits, models.ExpenseSplit{UserID: userID, ShareAmount: split.Amount})
	}

	if !sharesCover(amount, splits) {
		return nil, validationError(msgSplitsMismatch)
	}

	userIDs := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		userIDs = append(userIDs, id)
	}
	var members int64
	err := s.DB.WithContext(ctx).Model(&models.Membership{}).
		Where("group_id = ? AND user_id IN ?", groupID, userIDs).
		Count(&members).Error
	if err != nil {
		return nil, internal("Failed to check split members", err)
	}
	if members != int64(len(userIDs)) {
		return nil, validationError(msgSplitNotMember)
	}

	return splits, nil
}

// sharesCover reports whether splits add up to amount exactly.
func sharesCover(amount decimal.Decimal, splits []models.ExpenseSplit) bool {
	return ledgerEntry(models.Expense{Amount: amount, Splits: splits}).Balanced()
}

func parseExpenseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// loadExpenses returns the group's expenses with payer and split users,
// optionally restricted to [from, to). Order is chronological.
func loadExpenses(ctx context.Context, db *gorm.DB, groupID uuid.UUID, from, to *time.Time) ([]models.Expense, error) {
	query := db.WithContext(ctx).
		Preload("PaidBy").
		Preload("Splits.User").
		Where("group_id = ?", groupID)
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at < ?", *to)
	}

	var expenses []models.Expense
	if err := query.Order("created_at ASC").Order("id ASC").Find(&expenses).Error; err != nil {
		return nil, internal("Failed to load expenses", err)
	}
	return expenses, nil
}

// toLedger converts stored expenses into ledger entries.
func toLedger(expenses []models.Expense) []ledger.Entry {
	entries := make([]ledger.Entry, 0, len(expenses))
	for _, e := range expenses {
		entries = append(entries, ledgerEntry(e))
	}
	return entries
}

func ledgerEntry(e models.Expense) ledger.Entry {
	entry := ledger.Entry{
		ID:        e.ID,
		PaidByID:  e.PaidByID,
		Amount:    e.Amount,
		CreatedAt: e.CreatedAt,
		Splits:    make([]ledger.Split, 0, len(e.Splits)),
	}
	for _, split := range e.Splits {
		entry.Splits = append(entry.Splits, ledger.Split{UserID: split.UserID, Share: split.ShareAmount})
	}
	return entry
}
