package bot

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/NgigiN/spendbot/internal/clock"
	"github.com/NgigiN/spendbot/internal/expense"
	"github.com/NgigiN/spendbot/internal/ledger"
	"github.com/NgigiN/spendbot/internal/session"
)

// startDelete looks up the target of a `delete <category> <amount> [date]`
// command and opens the matching confirmation or selection step.
func (o *Orchestrator) startDelete(ctx context.Context, gw Gateway, userID, args string) {
	category, amount, date, ok := expense.ParseQuery(args, o.now())
	if !ok {
		o.reply(gw, "Usage: delete <category> <amount> [date]")
		return
	}

	matches, err := o.findMatches(ctx, category, amount, date)
	if err != nil {
		o.failLedger(gw, userID, "delete lookup", err)
		return
	}

	switch len(matches) {
	case 0:
		o.reply(gw, notFoundMessage(category, amount))
	case 1:
		o.sessions.Set(userID, &session.Pending{Kind: session.DeleteConfirm, Target: matches[0]})
		o.reply(gw, fmt.Sprintf("Delete %s? (yes/no)", describeRecord(matches[0].Record)))
	default:
		o.sessions.Set(userID, &session.Pending{Kind: session.DeleteSelect, Candidates: matches})
		o.reply(gw, listCandidates("delete", matches))
	}
}

// startEdit mirrors startDelete; a single match goes straight to field
// selection.
func (o *Orchestrator) startEdit(ctx context.Context, gw Gateway, userID, args string) {
	category, amount, date, ok := expense.ParseQuery(args, o.now())
	if !ok {
		o.reply(gw, "Usage: edit <category> <amount> [date]")
		return
	}

	matches, err := o.findMatches(ctx, category, amount, date)
	if err != nil {
		o.failLedger(gw, userID, "edit lookup", err)
		return
	}

	switch len(matches) {
	case 0:
		o.reply(gw, notFoundMessage(category, amount))
	case 1:
		o.sessions.Set(userID, &session.Pending{Kind: session.EditFieldSelect, Target: matches[0]})
		o.reply(gw, "Which field do you want to change? (category, amount, date, description)")
	default:
		o.sessions.Set(userID, &session.Pending{Kind: session.EditSelect, Candidates: matches})
		o.reply(gw, listCandidates("edit", matches))
	}
}

// findMatches scans the trailing window for rows matching the query:
// category equal ignoring case, amount within matchAmountTolerance, and the
// exact date string when one was given.
func (o *Orchestrator) findMatches(ctx context.Context, category string, amount float64, date string) ([]ledger.Row, error) {
	rows, err := o.store.ListSince(ctx, lookupWindowDays)
	if err != nil {
		return nil, err
	}

	var matches []ledger.Row
	for _, row := range rows {
		if !strings.EqualFold(row.Category, category) {
			continue
		}
		if math.Abs(row.Amount-amount) > matchAmountTolerance {
			continue
		}
		if date != "" && row.Date != date {
			continue
		}
		matches = append(matches, row)
	}
	return matches, nil
}

func notFoundMessage(category string, amount float64) string {
	return fmt.Sprintf("No expense matching %s $%s found in the last %d days.",
		category, expense.FormatAmount(amount), lookupWindowDays)
}

func listCandidates(verb string, matches []ledger.Row) string {
	var b strings.Builder
	b.WriteString("I found more than one match:\n")
	for i, row := range matches {
		fmt.Fprintf(&b, "%d. %s\n", i+1, describeRecord(row.Record))
	}
	fmt.Fprintf(&b, "Reply with the number of the one to %s.", verb)
	return b.String()
}

// handleSummary answers `summary [category]` over the trailing window.
func (o *Orchestrator) handleSummary(ctx context.Context, gw Gateway, category string) {
	rows, err := o.store.ListSince(ctx, lookupWindowDays)
	if err != nil {
		o.logger.Error("summary lookup failed", "error", err)
		o.reply(gw, msgLedgerTrouble)
		return
	}

	if category != "" {
		o.replyCategorySummary(gw, rows, category)
		return
	}

	if len(rows) == 0 {
		o.reply(gw, "No expenses recorded in the last 30 days.")
		return
	}
	o.reply(gw, totalsMessage(rows))
}

func (o *Orchestrator) replyCategorySummary(gw Gateway, rows []ledger.Row, category string) {
	var matched []ledger.Row
	var total float64
	for _, row := range rows {
		if strings.EqualFold(row.Category, category) {
			matched = append(matched, row)
			total += row.Amount
		}
	}
	if len(matched) == 0 {
		o.reply(gw, fmt.Sprintf("No expenses found for %s in the last 30 days.", category))
		return
	}

	// Show the most recent entries, newest last.
	const limit = 10
	start := 0
	if len(matched) > limit {
		start = len(matched) - limit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** over the last 30 days:\n", category)
	for _, row := range matched[start:] {
		fmt.Fprintf(&b, "- $%s on %s", expense.FormatAmount(row.Amount), row.Date)
		if row.Description != "" && row.Description != row.Category {
			fmt.Fprintf(&b, " (%s)", row.Description)
		}
		b.WriteString("\n")
	}
	if start > 0 {
		fmt.Fprintf(&b, "... and %d older entries\n", start)
	}
	fmt.Fprintf(&b, "Total: $%s (%d entries)", expense.FormatAmount(total), len(matched))
	o.reply(gw, b.String())
}

func totalsMessage(rows []ledger.Row) string {
	totals := make(map[string]float64)
	for _, row := range rows {
		totals[row.Category] += row.Amount
	}

	categories := make([]string, 0, len(totals))
	for category := range totals {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("Spending over the last 30 days:\n")
	var grand float64
	for _, category := range categories {
		fmt.Fprintf(&b, "**%s**: $%s\n", category, expense.FormatAmount(totals[category]))
		grand += totals[category]
	}
	fmt.Fprintf(&b, "**Total**: $%s", expense.FormatAmount(grand))
	return b.String()
}

// handleReport sends the 30-day totals plus an optional AI narrative. A
// failed narrative degrades to totals only.
func (o *Orchestrator) handleReport(ctx context.Context, gw Gateway) {
	rows, err := o.store.ListSince(ctx, lookupWindowDays)
	if err != nil {
		o.logger.Error("report lookup failed", "error", err)
		o.reply(gw, msgLedgerTrouble)
		return
	}
	if len(rows) == 0 {
		o.reply(gw, "No expenses recorded in the last 30 days.")
		return
	}

	message := totalsMessage(rows)

	narrative, err := o.insight.Narrative(ctx, message)
	if err != nil {
		o.logger.Warn("narrative generation failed", "error", err)
		narrative = ""
	}
	if narrative != "" {
		message += "\n\n" + narrative
	}
	o.reply(gw, message)
}

// handleBudget answers `budget` (status) and `budget <category> <amount>`
// (set). Budget categories match case-insensitively.
func (o *Orchestrator) handleBudget(ctx context.Context, gw Gateway, args string) {
	if o.budgets == nil {
		o.reply(gw, "Budgets aren't set up.")
		return
	}

	if args == "" {
		o.replyBudgetStatus(ctx, gw)
		return
	}

	category, amount, date, ok := expense.ParseQuery(args, o.now())
	if !ok || date != "" {
		o.reply(gw, "Usage: budget <category> <amount>")
		return
	}
	if err := o.budgets.SetBudget(ctx, category, amount); err != nil {
		o.logger.Error("saving budget failed", "error", err)
		o.reply(gw, "Sorry, I couldn't save that budget. Please try again.")
		return
	}
	o.reply(gw, fmt.Sprintf("Monthly budget for %s set to $%s.", category, expense.FormatAmount(amount)))
}

func (o *Orchestrator) replyBudgetStatus(ctx context.Context, gw Gateway) {
	budgets, err := o.budgets.Budgets(ctx)
	if err != nil {
		o.logger.Error("listing budgets failed", "error", err)
		o.reply(gw, "Sorry, I couldn't read the budgets. Please try again.")
		return
	}
	if len(budgets) == 0 {
		o.reply(gw, "No budgets set. Use `budget <category> <amount>` to add one.")
		return
	}

	rows, err := o.store.ListSince(ctx, lookupWindowDays+1)
	if err != nil {
		o.logger.Error("budget lookup failed", "error", err)
		o.reply(gw, msgLedgerTrouble)
		return
	}

	now := o.now()
	spent := make(map[string]float64)
	for _, row := range rows {
		day, err := clock.ParseDate(row.Date)
		if err != nil || day.Year() != now.Year() || day.Month() != now.Month() {
			continue
		}
		spent[strings.ToLower(row.Category)] += row.Amount
	}

	categories := make([]string, 0, len(budgets))
	for category := range budgets {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var b strings.Builder
	fmt.Fprintf(&b, "Budgets for %s:\n", now.Format("January 2006"))
	for _, category := range categories {
		used := spent[category]
		limit := budgets[category]
		line := fmt.Sprintf("**%s**: $%s of $%s", category, expense.FormatAmount(used), expense.FormatAmount(limit))
		if used > limit {
			line += " (over budget)"
		}
		b.WriteString(line + "\n")
	}
	o.reply(gw, strings.TrimRight(b.String(), "\n"))
}
