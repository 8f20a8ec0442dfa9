package storage

import (
	"gorm.io/gorm"
)

// Expense is one ledger row in the local database.
type Expense struct {
	gorm.Model
	Date        string // canonical DD/MM/YYYY
	Category    string
	Amount      float64
	Description string
	Timestamp   string // canonical DD/MM/YYYY HH:MM:SS
}

// Budget is a monthly spending cap for one category.
type Budget struct {
	gorm.Model
	// Category is stored lower-cased; budget lookups are case-insensitive.
	Category string `gorm:"uniqueIndex"`
	Amount   float64
}
