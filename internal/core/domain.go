package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateLayout is the canonical wire format of a Date.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID        string          `json:"id" yaml:"id"`
		Label     string          `json:"label" yaml:"label"`
		Amount    Money           `json:"amount" yaml:"amount"`
		Category  string          `json:"category" yaml:"category"`
		Date      Date            `json:"date" yaml:"date"`
		Type      TransactionType `json:"type" yaml:"type"`
		CreatedAt time.Time       `json:"createdAt" yaml:"createdAt"`
		UpdatedAt time.Time       `json:"updatedAt" yaml:"updatedAt"`
	}

	// TransactionInput carries user supplied values before an ID is assigned.
	TransactionInput struct {
		Label    string
		Amount   Money
		Category string
		Date     Date
		Type     TransactionType
	}

	// TransactionPatch holds the fields to merge into an existing transaction.
	// Nil fields are left unchanged.
	TransactionPatch struct {
		Label    *string
		Amount   *Money
		Category *string
		Date     *Date
		Type     *TransactionType
	}
)

// User facing validation errors, checked in this order.
var (
	ErrLabelRequired     = errors.New("Le libellé est obligatoire")
	ErrAmountNotPositive = errors.New("Le montant doit être positif")
	ErrCategoryRequired  = errors.New("Veuillez sélectionner une catégorie")
	ErrDateRequired      = errors.New("La date est obligatoire")
	ErrInvalidType       = errors.New("Le type de transaction est invalide")
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

// Label returns the French display name used in exports.
func (t TransactionType) Label() string {
	if t == Income {
		return "Revenu"
	}
	return "Dépense"
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrAmountNotPositive
	}
	return nil
}

func (in TransactionInput) Validate() error {
	if strings.TrimSpace(in.Label) == "" {
		return ErrLabelRequired
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(in.Category) == "" {
		return ErrCategoryRequired
	}
	if in.Date.IsZero() {
		return ErrDateRequired
	}
	if !in.Type.IsValid() {
		return ErrInvalidType
	}
	return nil
}

// Input returns the editable fields of t.
func (t Transaction) Input() TransactionInput {
	return TransactionInput{
		Label:    t.Label,
		Amount:   t.Amount,
		Category: t.Category,
		Date:     t.Date,
		Type:     t.Type,
	}
}

func (t Transaction) Validate() error {
	return t.Input().Validate()
}

func (t Transaction) IsIncome() bool  { return t.Type == Income }
func (t Transaction) IsExpense() bool { return t.Type == Expense }

// Apply merges the non-nil fields of p into t.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Label != nil {
		t.Label = SanitizeLabel(*p.Label)
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	return t
}

// SanitizeLabel trims s and removes angle brackets.
func SanitizeLabel(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer("<", "", ">", "").Replace(s)
}
