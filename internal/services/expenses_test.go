package services

import (
	"context"
	"testing"
	"time"

	"github.com/ansyar-project/split-the-bill/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestCreateExpenseValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice", models.UserRoleMember)
	bob := env.createUser(t, "bob", models.UserRoleMember)
	outsider := env.createUser(t, "outsider", models.UserRoleMember)
	group := env.createGroup(t, alice, "Trip")
	env.addMember(t, alice, group.ID, bob)

	tests := []struct {
		name    string
		input   CreateExpenseInput
		kind    ErrorKind
		message string
	}{
		{
			name:    "missing title",
			input:   CreateExpenseInput{Title: "  ", Amount: dec("10"), Splits: []SplitInput{splitOf(alice, "10")}},
			kind:    KindValidation,
			message: "Title is required",
		},
		{
			name:    "zero amount",
			input:   CreateExpenseInput{Title: "Coffee", Amount: dec("0"), Splits: []SplitInput{splitOf(alice, "0")}},
			kind:    KindValidation,
			message: "Amount must be positive",
		},
		{
			name:    "no splits",
			input:   CreateExpenseInput{Title: "Coffee", Amount: dec("10"), Splits: []SplitInput{}},
			kind:    KindValidation,
			message: "At least one split is required",
		},
		{
			name:    "split without user",
			input:   CreateExpenseInput{Title: "Coffee", Amount: dec("10"), Splits: []SplitInput{{Amount: dec("10")}}},
			kind:    KindValidation,
			message: "User ID is required",
		},
		{
			name:    "negative share",
			input:   CreateExpenseInput{Title: "Coffee", Amount: dec("10"), Splits: []SplitInput{splitOf(alice, "15"), splitOf(bob, "-5")}},
			kind:    KindValidation,
			message: "Amount must be non-negative",
		},
		{
			name:    "shares do not add up",
			input:   CreateExpenseInput{Title: "Coffee", Amount: dec("10"), Splits: []SplitInput{splitOf(alice, "4"), splitOf(bob, "4")}},
			kind:    KindValidation,
			message: "Split amounts must add up to the expense amount",
		},
		{
			name:    "duplicate split user",
			input:   CreateExpenseInput{Title: "Coffee", Amount: dec("10"), Splits: []SplitInput{splitOf(alice, "5"), splitOf(alice, "5")}},
			kind:    KindValidation,
			message: "Each user can appear only once in the splits",
		},
		{
			name:    "split user outside the group",
			input:   CreateExpenseInput{Title: "Coffee", Amount: dec("10"), Splits: []SplitInput{splitOf(alice, "5"), splitOf(outsider, "5")}},
			kind:    KindValidation,
			message: "Split user is not a member of this group",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.expenses.Create(ctx, alice, group.ID, tt.input)
			assertServiceError(t, err, tt.kind, tt.message)
		})
	}

	t.Run("non-member cannot create", func(t *testing.T) {
		_, err := env.expenses.Create(ctx, outsider, group.ID, CreateExpenseInput{
			Title: "Coffee", Amount: dec("10"), Splits: []SplitInput{splitOf(outsider, "10")},
		})
		assertServiceError(t, err, KindForbidden, "Not allowed")
	})

	if n := countRows(t, env.db, &models.Expense{}, "group_id = ?", group.ID); n != 0 {
		t.Fatalf("expected no expenses stored, found %d", n)
	}
}

func TestCreateAndListExpenses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice", models.UserRoleMember)
	bob := env.createUser(t, "bob", models.UserRoleMember)
	group := env.createGroup(t, alice, "Trip")
	env.addMember(t, alice, group.ID, bob)

	lunch, err := env.expenses.Create(ctx, alice, group.ID, CreateExpenseInput{
		Title: " Lunch ", Amount: dec("100"), Splits: []SplitInput{splitOf(alice, "50"), splitOf(bob, "50")},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if lunch.Title != "Lunch" || lunch.PaidByID != alice.ID || len(lunch.Splits) != 2 {
		t.Fatalf("unexpected expense %+v", lunch)
	}

	if _, err := env.expenses.Create(ctx, bob, group.ID, CreateExpenseInput{
		Title: "Taxi", Amount: dec("33.33"), Splits: []SplitInput{splitOf(alice, "11.11"), splitOf(bob, "22.22")},
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	list, err := env.expenses.List(ctx, bob, group.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != lunch.ID {
		t.Fatalf("expected chronological list starting with lunch, got %d items", len(list))
	}
	if list[1].PaidBy == nil || list[1].PaidBy.ID != bob.ID {
		t.Fatalf("expected payer preloaded, got %+v", list[1].PaidBy)
	}
	if !list[1].Amount.Equal(dec("33.33")) {
		t.Fatalf("expected exact amount 33.33, got %s", list[1].Amount)
	}

	got, err := env.expenses.Get(ctx, bob, lunch.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.Splits) != 2 || got.Splits[0].User == nil {
		t.Fatalf("expected splits with users, got %+v", got.Splits)
	}

	_, err = env.expenses.Get(ctx, bob, uuid.New())
	assertServiceError(t, err, KindNotFound, "Expense not found")
}

func TestEditExpense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice", models.UserRoleMember)
	bob := env.createUser(t, "bob", models.UserRoleMember)
	carol := env.createUser(t, "carol", models.UserRoleMember)
	group := env.createGroup(t, alice, "Trip")
	env.addMember(t, alice, group.ID, bob)
	env.addMember(t, alice, group.ID, carol)

	expense, err := env.expenses.Create(ctx, bob, group.ID, CreateExpenseInput{
		Title: "Groceries", Amount: dec("60"), Splits: []SplitInput{splitOf(bob, "30"), splitOf(carol, "30")},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	t.Run("other plain member may not edit", func(t *testing.T) {
		_, err := env.expenses.Edit(ctx, carol, expense.ID, EditExpenseInput{Title: "Hacked", Amount: dec("60")})
		assertServiceError(t, err, KindForbidden, "Not allowed")
	})

	t.Run("payer replaces splits and date", func(t *testing.T) {
		date := "2024-02-14"
		updated, err := env.expenses.Edit(ctx, bob, expense.ID, EditExpenseInput{
			Title:  "Groceries and wine",
			Amount: dec("90"),
			Date:   &date,
			Splits: []SplitInput{splitOf(alice, "30"), splitOf(bob, "30"), splitOf(carol, "30")},
		})
		if err != nil {
			t.Fatalf("edit failed: %v", err)
		}
		if updated.Title != "Groceries and wine" || !updated.Amount.Equal(dec("90")) {
			t.Fatalf("unexpected update %+v", updated)
		}
		if len(updated.Splits) != 3 {
			t.Fatalf("expected 3 splits, got %d", len(updated.Splits))
		}
		want := time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)
		if !updated.CreatedAt.UTC().Equal(want) {
			t.Fatalf("expected date %v, got %v", want, updated.CreatedAt)
		}
		if n := countRows(t, env.db, &models.ExpenseSplit{}, "expense_id = ?", expense.ID); n != 3 {
			t.Fatalf("expected old splits replaced, found %d rows", n)
		}
	})

	t.Run("group admin may edit keeping splits", func(t *testing.T) {
		updated, err := env.expenses.Edit(ctx, alice, expense.ID, EditExpenseInput{Title: "Weekly shop", Amount: dec("90")})
		if err != nil {
			t.Fatalf("edit failed: %v", err)
		}
		if updated.Title != "Weekly shop" || len(updated.Splits) != 3 {
			t.Fatalf("unexpected update %+v", updated)
		}
	})

	t.Run("amount change without splits must still balance", func(t *testing.T) {
		_, err := env.expenses.Edit(ctx, bob, expense.ID, EditExpenseInput{Title: "Weekly shop", Amount: dec("100")})
		assertServiceError(t, err, KindValidation, "Split amounts must add up to the expense amount")
	})

	t.Run("invalid date", func(t *testing.T) {
		date := "14/02/2024"
		_, err := env.expenses.Edit(ctx, bob, expense.ID, EditExpenseInput{Title: "Weekly shop", Amount: dec("90"), Date: &date})
		assertServiceError(t, err, KindValidation, "Invalid date")
	})

	t.Run("failed split replacement leaves old splits", func(t *testing.T) {
		outsider := env.createUser(t, "outsider", models.UserRoleMember)
		_, err := env.expenses.Edit(ctx, bob, expense.ID, EditExpenseInput{
			Title: "Weekly shop", Amount: dec("90"), Splits: []SplitInput{splitOf(outsider, "90")},
		})
		assertServiceError(t, err, KindValidation, "Split user is not a member of this group")
		if n := countRows(t, env.db, &models.ExpenseSplit{}, "expense_id = ?", expense.ID); n != 3 {
			t.Fatalf("expected splits untouched, found %d rows", n)
		}
	})
}

func TestDeleteExpense(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice", models.UserRoleMember)
	bob := env.createUser(t, "bob", models.UserRoleMember)
	group := env.createGroup(t, alice, "Trip")
	env.addMember(t, alice, group.ID, bob)

	expense, err := env.expenses.Create(ctx, alice, group.ID, CreateExpenseInput{
		Title: "Tickets", Amount: dec("40"), Splits: []SplitInput{splitOf(alice, "20"), splitOf(bob, "20")},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err = env.expenses.Delete(ctx, bob, expense.ID)
	assertServiceError(t, err, KindForbidden, "Not allowed")

	if err := env.expenses.Delete(ctx, alice, expense.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if n := countRows(t, env.db, &models.ExpenseSplit{}, "expense_id = ?", expense.ID); n != 0 {
		t.Fatalf("expected splits removed, found %d", n)
	}

	err = env.expenses.Delete(ctx, alice, expense.ID)
	assertServiceError(t, err, KindNotFound, "Expense not found")
}

func TestBalancesSumToZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := []*models.User{
		env.createUser(t, "alice", models.UserRoleMember),
		env.createUser(t, "bob", models.UserRoleMember),
		env.createUser(t, "carol", models.UserRoleMember),
	}
	group := env.createGroup(t, users[0], "Flat")
	env.addMember(t, users[0], group.ID, users[1])
	env.addMember(t, users[0], group.ID, users[2])

	amounts := []string{"12.50", "99.99", "7", "250.01", "0.03"}
	for i, amount := range amounts {
		total := dec(amount)
		third := total.Div(decimal.NewFromInt(3)).Truncate(2)
		rest := total.Sub(third.Mul(decimal.NewFromInt(2)))
		payer := users[i%len(users)]
		_, err := env.expenses.Create(ctx, payer, group.ID, CreateExpenseInput{
			Title:  "Item",
			Amount: total,
			Splits: []SplitInput{
				{UserID: users[0].ID.String(), Amount: third},
				{UserID: users[1].ID.String(), Amount: third},
				{UserID: users[2].ID.String(), Amount: rest},
			},
		})
		if err != nil {
			t.Fatalf("create %s failed: %v", amount, err)
		}

		month, year := currentPeriod()
		monthly, err := env.reports.Monthly(ctx, payer, group.ID, month, year)
		if err != nil {
			t.Fatalf("report failed: %v", err)
		}
		if !monthly.Total.IsZero() {
			t.Fatalf("after %d expenses balances sum to %s", i+1, monthly.Total)
		}
	}
}
