package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Expense struct {
	BaseModel
	Title    string          `json:"title" gorm:"type:varchar(255);not null"`
	Amount   decimal.Decimal `json:"amount" gorm:"type:numeric;not null"`
	GroupID  uuid.UUID       `json:"groupID" gorm:"type:uuid;not null;index"`
	PaidByID uuid.UUID       `json:"paidByID" gorm:"type:uuid;not null;index"`
	PaidBy   *User           `json:"paidBy,omitempty" gorm:"foreignKey:PaidByID"`
	Splits   []ExpenseSplit  `json:"splits,omitempty" gorm:"foreignKey:ExpenseID"`
}

// ExpenseSplit is one member's owed share of an expense. Shares are expected to
// add up to the expense amount; the service layer checks it on write.
type ExpenseSplit struct {
	BaseModel
	ExpenseID   uuid.UUID       `json:"expenseID" gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID       `json:"userID" gorm:"type:uuid;not null;index"`
	ShareAmount decimal.Decimal `json:"shareAmount" gorm:"type:numeric;not null"`
	User        *User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
