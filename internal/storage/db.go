// Package storage keeps expenses and budgets in a local SQLite database. The
// expense table doubles as a ledger backend for runs without Google Sheets
// credentials.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/NgigiN/spendbot/internal/clock"
	"github.com/NgigiN/spendbot/internal/ledger"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&Expense{}, &Budget{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Database{db: db}, nil
}

// Append implements ledger.Store.
func (d *Database) Append(ctx context.Context, rec ledger.Record) error {
	row := Expense{
		Date:        rec.Date,
		Category:    rec.Category,
		Amount:      rec.Amount,
		Description: rec.Description,
		Timestamp:   rec.Timestamp,
	}
	if err := d.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save expense: %w", err)
	}
	return nil
}

// ListSince implements ledger.Store, returning rows whose instant falls
// within the trailing number of days, oldest first.
func (d *Database) ListSince(ctx context.Context, days int) ([]ledger.Row, error) {
	var expenses []Expense
	if err := d.db.WithContext(ctx).Order("id asc").Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	cutoff := clock.Now().AddDate(0, 0, -days)
	var rows []ledger.Row
	for _, e := range expenses {
		rec := ledger.Record{
			Date:        e.Date,
			Category:    e.Category,
			Amount:      e.Amount,
			Description: e.Description,
			Timestamp:   e.Timestamp,
		}
		if rec.Time().Before(cutoff) {
			continue
		}
		rows = append(rows, ledger.Row{Record: rec, Ref: ledger.Ref(e.ID)})
	}
	return rows, nil
}

// UpdateAt implements ledger.Store.
func (d *Database) UpdateAt(ctx context.Context, ref ledger.Ref, rec ledger.Record) error {
	updates := map[string]any{
		"date":        rec.Date,
		"category":    rec.Category,
		"amount":      rec.Amount,
		"description": rec.Description,
		"timestamp":   rec.Timestamp,
	}
	result := d.db.WithContext(ctx).Model(&Expense{}).Where("id = ?", uint(ref)).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update expense: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrRowVanished
	}
	return nil
}

// DeleteAt implements ledger.Store.
func (d *Database) DeleteAt(ctx context.Context, ref ledger.Ref) error {
	result := d.db.WithContext(ctx).Delete(&Expense{}, uint(ref))
	if result.Error != nil {
		return fmt.Errorf("failed to delete expense: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrRowVanished
	}
	return nil
}

// SetBudget creates or replaces the monthly budget for a category.
func (d *Database) SetBudget(ctx context.Context, category string, amount float64) error {
	key := strings.ToLower(strings.TrimSpace(category))
	var budget Budget
	err := d.db.WithContext(ctx).Where("category = ?", key).First(&budget).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		budget = Budget{Category: key, Amount: amount}
		if err := d.db.WithContext(ctx).Create(&budget).Error; err != nil {
			return fmt.Errorf("failed to save budget: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to look up budget: %w", err)
	default:
		budget.Amount = amount
		if err := d.db.WithContext(ctx).Save(&budget).Error; err != nil {
			return fmt.Errorf("failed to save budget: %w", err)
		}
		return nil
	}
}

// Budgets returns all configured budgets keyed by lower-cased category.
func (d *Database) Budgets(ctx context.Context) (map[string]float64, error) {
	var budgets []Budget
	if err := d.db.WithContext(ctx).Find(&budgets).Error; err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	out := make(map[string]float64, len(budgets))
	for _, b := range budgets {
		out[b.Category] = b.Amount
	}
	return out, nil
}
