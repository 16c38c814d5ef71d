package core

import "time"

// SortField names the column search results are ordered by.
type SortField string

const (
	SortByDate     SortField = "date"
	SortByAmount   SortField = "amount"
	SortByLabel    SortField = "label"
	SortByCategory SortField = "category"
	SortByType     SortField = "type"
)

type (
	// DateRange bounds are inclusive YYYY-MM-DD strings; empty means open.
	DateRange struct {
		Start string `json:"start" yaml:"start"`
		End   string `json:"end" yaml:"end"`
	}

	// AmountRange bounds are euro values; nil means open.
	AmountRange struct {
		Min *float64 `json:"min" yaml:"min"`
		Max *float64 `json:"max" yaml:"max"`
	}

	SearchFilters struct {
		Search      string            `json:"search" yaml:"search"`
		Categories  []string          `json:"categories" yaml:"categories"`
		Types       []TransactionType `json:"types" yaml:"types"`
		DateRange   DateRange         `json:"dateRange" yaml:"dateRange"`
		AmountRange AmountRange       `json:"amountRange" yaml:"amountRange"`
		SortBy      SortField         `json:"sortBy" yaml:"sortBy"`
		SortOrder   string            `json:"sortOrder" yaml:"sortOrder"`
	}

	SavedFilter struct {
		Name      string        `json:"name"`
		Filters   SearchFilters `json:"filters"`
		CreatedAt time.Time     `json:"createdAt"`
	}

	// CategoryLearning counts how often a category was confirmed.
	CategoryLearning struct {
		Count    int       `json:"count"`
		LastUsed time.Time `json:"lastUsed"`
	}

	// Correction records a user overriding a suggestion.
	Correction struct {
		Label     string    `json:"label"`
		Suggested string    `json:"suggested"`
		Chosen    string    `json:"chosen"`
		At        time.Time `json:"at"`
	}

	// LearningData is the persisted state of the categoriser.
	LearningData struct {
		LabelToCategory map[string]string           `json:"labelToCategory"`
		UserCorrections map[string]Correction       `json:"userCorrections"`
		CategoryStats   map[string]CategoryLearning `json:"categoryStats"`
	}

	// Snapshot is the full export of user data.
	Snapshot struct {
		Transactions  []Transaction `json:"transactions" yaml:"transactions"`
		FixedExpenses FixedExpenses `json:"fixedExpenses" yaml:"fixedExpenses"`
		Theme         string        `json:"theme" yaml:"theme"`
		ExportDate    time.Time     `json:"exportDate" yaml:"exportDate"`
	}
)

// DefaultTheme is applied when none is stored.
const DefaultTheme = "light"

// DefaultFilters returns the empty filter set sorted by date descending.
func DefaultFilters() SearchFilters {
	return SearchFilters{SortBy: SortByDate, SortOrder: "desc"}
}

// NewLearningData returns empty, non-nil maps.
func NewLearningData() LearningData {
	return LearningData{
		LabelToCategory: map[string]string{},
		UserCorrections: map[string]Correction{},
		CategoryStats:   map[string]CategoryLearning{},
	}
}
