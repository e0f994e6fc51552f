// Package core holds the transaction model, its validation rules and the
// window aggregations that turn transactions into chart data.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// MaxDescriptionLength bounds free-text descriptions.
const MaxDescriptionLength = 500

type (
	// TransactionType tags a transaction as income or expense. The tag, not the
	// sign of the amount, decides which side a transaction counts on.
	TransactionType string

	// Transaction is a single income or expense record.
	Transaction struct {
		ID          int64           `json:"id"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Date        time.Time       `json:"date"`
		Category    string          `json:"category"`
		Type        TransactionType `json:"type"`
	}
)

var (
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDate          = errors.New("date cannot be zero")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
)

func init() {
	// Clients chart amounts directly, so they are emitted as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseTransactionType accepts the type names case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "incomes":
		return Income, nil
	case "expense", "expenses":
		return Expense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

func (t TransactionType) String() string {
	return string(t)
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

// UnmarshalJSON accepts "income"/"expense" in any case, and the integer
// encoding used by older clients (0 = income, 1 = expense). Anything else is
// ErrInvalidType.
func (t *TransactionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseTransactionType(s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}

	switch raw := strings.TrimSpace(string(data)); raw {
	case "0":
		*t = Income
	case "1":
		*t = Expense
	default:
		return fmt.Errorf("%w: %s", ErrInvalidType, raw)
	}
	return nil
}

// Validate checks the fields a caller controls. The id is store-assigned and
// not checked here.
func (tx Transaction) Validate() error {
	if !tx.Type.IsValid() {
		return ErrInvalidType
	}
	if tx.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if tx.Date.IsZero() {
		return ErrEmptyDate
	}
	if len(tx.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// Overwrite copies every caller-controlled field from src, keeping the id.
func (tx *Transaction) Overwrite(src Transaction) {
	tx.Description = src.Description
	tx.Amount = src.Amount
	tx.Date = src.Date
	tx.Category = src.Category
	tx.Type = src.Type
}

// IsIncome reports whether the transaction counts as income.
func (tx Transaction) IsIncome() bool {
	return tx.Type == Income
}

// IsExpense reports whether the transaction counts as expense.
func (tx Transaction) IsExpense() bool {
	return tx.Type == Expense
}
