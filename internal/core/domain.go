package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Spending CategoryType = "spending"
	Income   CategoryType = "income"
)

const (
	MaxNameLength    = 100
	MaxTagNameLength = 50
	MaxCommentLength = 500
)

type (
	CategoryType string

	BalanceAccount struct {
		ID              uuid.UUID       `json:"id"`
		Name            string          `json:"name"`
		Currency        string          `json:"currency"`
		StartingBalance decimal.Decimal `json:"starting_balance"`
		Balance         decimal.Decimal `json:"balance"`
		Icon            string          `json:"icon"`
		Color           string          `json:"color"`
		CreatedAt       time.Time       `json:"created_at"`
	}

	Category struct {
		ID    uuid.UUID    `json:"id"`
		Type  CategoryType `json:"type"`
		Name  string       `json:"name"`
		Icon  string       `json:"icon"`
		Color string       `json:"color"`
		Order int          `json:"order"`
	}

	Tag struct {
		ID    uuid.UUID `json:"id"`
		Name  string    `json:"name"`
		Color string    `json:"color"`
	}

	Transaction struct {
		ID         uuid.UUID       `json:"id"`
		Type       CategoryType    `json:"type"`
		Comment    string          `json:"comment"`
		Value      decimal.Decimal `json:"value"`
		Date       time.Time       `json:"date"`
		AccountID  uuid.UUID       `json:"account_id"`
		CategoryID uuid.UUID       `json:"category_id"`
		TagIDs     []uuid.UUID     `json:"tag_ids"`
		CreatedAt  time.Time       `json:"created_at"`
	}

	Transfer struct {
		ID            uuid.UUID       `json:"id"`
		FromAccountID uuid.UUID       `json:"from_account_id"`
		ToAccountID   uuid.UUID       `json:"to_account_id"`
		Value         decimal.Decimal `json:"value"`
		Rate          decimal.Decimal `json:"rate"`
		Comment       string          `json:"comment"`
		Date          time.Time       `json:"date"`
		CreatedAt     time.Time       `json:"created_at"`
	}

	// Budget is a spending ceiling over a recurring period. A nil CategoryID
	// or AccountID means the budget is not scoped to one.
	Budget struct {
		ID         uuid.UUID       `json:"id"`
		Name       string          `json:"name"`
		Limit      decimal.Decimal `json:"limit"`
		Period     Period          `json:"period"`
		CategoryID *uuid.UUID      `json:"category_id,omitempty"`
		AccountID  *uuid.UUID      `json:"account_id,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
	}
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyName       = errors.New("empty name")
	ErrNameTooLong     = errors.New("name too long")
	ErrCommentTooLong  = errors.New("comment too long (max 500 characters)")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrInvalidColor    = errors.New("invalid color")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidPeriod   = errors.New("invalid budget period")
	ErrInvalidDate     = errors.New("invalid date")
	ErrMissingAccount  = errors.New("balance account is required")
	ErrMissingCategory = errors.New("category is required")
	ErrTypeMismatch    = errors.New("transaction type does not match category type")
	ErrSameAccount     = errors.New("transfer accounts must differ")
	ErrRateRequired    = errors.New("exchange rate required for cross-currency transfer")
	ErrInvalidRate     = errors.New("invalid exchange rate")
	ErrHasDependents   = errors.New("entity has dependents")
	ErrInvalidPolicy   = errors.New("invalid deletion policy")
	ErrDuplicateTag    = errors.New("tag name already exists")
	ErrStoreNotEmpty   = errors.New("store is not empty")

	// ErrInvalidInput marks malformed parameters outside the entity fields.
	ErrInvalidInput = errors.New("invalid input")
)

var (
	currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)
	colorRe    = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// NewID returns a fresh random identifier.
func NewID() uuid.UUID {
	return uuid.New()
}

func (t CategoryType) Valid() bool {
	return t == Spending || t == Income
}

func ParseCategoryType(s string) (CategoryType, error) {
	t := CategoryType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

func ValidateCurrency(code string) error {
	if !currencyRe.MatchString(code) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return nil
}

func ValidateColor(color string) error {
	if !colorRe.MatchString(color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	return nil
}

func validateName(name string, max int) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > max {
		return fmt.Errorf("%w (max %d characters)", ErrNameTooLong, max)
	}
	return nil
}

func validateComment(comment string) error {
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

func (a BalanceAccount) Validate() error {
	if err := validateName(a.Name, MaxNameLength); err != nil {
		return err
	}
	if err := ValidateCurrency(a.Currency); err != nil {
		return err
	}
	if !a.StartingBalance.Equal(RoundMoney(a.StartingBalance)) {
		return fmt.Errorf("%w: starting balance has more than 2 decimals", ErrInvalidAmount)
	}
	return ValidateColor(a.Color)
}

func (c Category) Validate() error {
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	if err := validateName(c.Name, MaxNameLength); err != nil {
		return err
	}
	if c.Order < 0 {
		return fmt.Errorf("%w: display order must not be negative", ErrInvalidInput)
	}
	return ValidateColor(c.Color)
}

func (t Tag) Validate() error {
	if err := validateName(t.Name, MaxTagNameLength); err != nil {
		return err
	}
	return ValidateColor(t.Color)
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Value.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.AccountID == uuid.Nil {
		return ErrMissingAccount
	}
	if t.CategoryID == uuid.Nil {
		return ErrMissingCategory
	}
	return validateComment(t.Comment)
}

// SignedValue is the effect of the transaction on its account balance.
func (t Transaction) SignedValue() decimal.Decimal {
	if t.Type == Spending {
		return t.Value.Neg()
	}
	return t.Value
}

// HasTag reports whether the transaction carries the given tag.
func (t Transaction) HasTag(id uuid.UUID) bool {
	for _, tid := range t.TagIDs {
		if tid == id {
			return true
		}
	}
	return false
}

func (t Transfer) Validate() error {
	if t.FromAccountID == uuid.Nil || t.ToAccountID == uuid.Nil {
		return ErrMissingAccount
	}
	if t.FromAccountID == t.ToAccountID {
		return ErrSameAccount
	}
	if !t.Value.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Rate.IsPositive() {
		return ErrInvalidRate
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return validateComment(t.Comment)
}

// Credited is the amount that lands on the destination account.
func (t Transfer) Credited() decimal.Decimal {
	return RoundMoney(t.Value.Mul(t.Rate))
}

func (b Budget) Validate() error {
	if err := validateName(b.Name, MaxNameLength); err != nil {
		return err
	}
	if !b.Limit.IsPositive() {
		return ErrInvalidAmount
	}
	if !b.Period.Valid() {
		return ErrInvalidPeriod
	}
	return nil
}

// Matches reports whether a transaction falls within the budget's scope,
// ignoring the period.
func (b Budget) Matches(t Transaction) bool {
	if t.Type != Spending {
		return false
	}
	if b.CategoryID != nil && *b.CategoryID != t.CategoryID {
		return false
	}
	if b.AccountID != nil && *b.AccountID != t.AccountID {
		return false
	}
	return true
}
