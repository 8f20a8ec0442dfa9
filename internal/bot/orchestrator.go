// Package bot contains the conversation orchestrator and its Discord
// frontend.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/NgigiN/spendbot/internal/clock"
	"github.com/NgigiN/spendbot/internal/expense"
	"github.com/NgigiN/spendbot/internal/insight"
	"github.com/NgigiN/spendbot/internal/ledger"
	"github.com/NgigiN/spendbot/internal/session"
)

const (
	// lookupWindowDays bounds edit/delete lookups and duplicate checks.
	lookupWindowDays = 30
	// duplicateWindow is how close in time two records must be to count as
	// probable duplicates.
	duplicateWindow = 48 * time.Hour
	// duplicateAmountTolerance is the amount difference under which two
	// records look like duplicates.
	duplicateAmountTolerance = 1.0
	// matchAmountTolerance absorbs display rounding in edit/delete lookups.
	matchAmountTolerance = 0.01
	// confirmTimeout bounds the duplicate-confirmation wait.
	confirmTimeout = 30 * time.Second
)

const (
	msgNotUnderstood = "Sorry, I couldn't understand that. Send `<category> <amount> [date]`, e.g. `Groceries 25.50`."
	msgLedgerTrouble = "Sorry, something went wrong talking to the ledger. Please try again."
	msgYesNo         = "Please answer yes or no."
	msgFieldNames    = "Please pick one of: category, amount, date, description."
)

// BudgetStore persists monthly per-category budgets.
type BudgetStore interface {
	SetBudget(ctx context.Context, category string, amount float64) error
	Budgets(ctx context.Context) (map[string]float64, error)
}

// Orchestrator drives the per-user conversation state machine over the
// ledger, the insight service and the session store.
type Orchestrator struct {
	store    ledger.Store
	insight  insight.Service
	budgets  BudgetStore
	sessions *session.Store
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrchestrator(store ledger.Store, ai insight.Service, budgets BudgetStore, sessions *session.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		insight:  ai,
		budgets:  budgets,
		sessions: sessions,
		logger:   logger.With("component", "orchestrator"),
		now:      clock.Now,
	}
}

// HandleMessage processes one inbound message. A pending multi-step
// operation takes priority; otherwise the message is a command or bare
// expense text.
func (o *Orchestrator) HandleMessage(ctx context.Context, gw Gateway, userID, content string) {
	text := expense.Clean(content)
	if text == "" {
		return
	}

	if p := o.sessions.Get(userID); p != nil {
		o.resumePending(ctx, gw, userID, p, text)
		return
	}

	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "delete "):
		o.startDelete(ctx, gw, userID, text[len("delete "):])
	case strings.HasPrefix(lower, "edit "):
		o.startEdit(ctx, gw, userID, text[len("edit "):])
	case lower == "summary" || strings.HasPrefix(lower, "summary "):
		o.handleSummary(ctx, gw, strings.TrimSpace(text[len("summary"):]))
	case lower == "report":
		o.handleReport(ctx, gw)
	case lower == "budget" || strings.HasPrefix(lower, "budget "):
		o.handleBudget(ctx, gw, strings.TrimSpace(text[len("budget"):]))
	case lower == "help":
		o.reply(gw, helpText)
	default:
		o.handleNewExpense(ctx, gw, userID, text)
	}
}

const helpText = "Send an expense like `Groceries 25.50` or `Rent $800 03/05/2025`.\n" +
	"Commands: `edit <category> <amount> [date]`, `delete <category> <amount> [date]`, " +
	"`summary [category]`, `report`, `budget [<category> <amount>]`."

// handleNewExpense parses bare expense text, runs the duplicate check and
// persists the record.
func (o *Orchestrator) handleNewExpense(ctx context.Context, gw Gateway, userID, text string) {
	e := expense.Parse(text, o.now())
	if e == nil {
		o.reply(gw, msgNotUnderstood)
		return
	}

	rec := ledger.Record{
		Date:        e.Date,
		Category:    e.Category,
		Amount:      e.Amount,
		Description: e.Description,
	}

	rows, err := o.store.ListSince(ctx, lookupWindowDays)
	if err != nil {
		o.failLedger(gw, userID, "duplicate check", err)
		return
	}

	if dup, found := o.findDuplicate(rows, rec); found {
		o.confirmDuplicate(ctx, gw, userID, e, rec, dup)
		return
	}

	o.persist(ctx, gw, userID, e, rec)
}

// findDuplicate returns the first recent row that looks like the same
// expense: equal category (case-sensitive, matching the stored value),
// amounts within duplicateAmountTolerance and instants within
// duplicateWindow.
func (o *Orchestrator) findDuplicate(rows []ledger.Row, rec ledger.Record) (ledger.Row, bool) {
	now := o.now()
	for _, row := range rows {
		if row.Category != rec.Category {
			continue
		}
		if math.Abs(row.Amount-rec.Amount) >= duplicateAmountTolerance {
			continue
		}
		age := now.Sub(row.Time())
		if age < 0 {
			age = -age
		}
		if age >= duplicateWindow {
			continue
		}
		return row, true
	}
	return ledger.Row{}, false
}

// confirmDuplicate suspends for one yes/no reply, bounded by confirmTimeout.
// Timeout and "no" both cancel the persist; nothing is written until the
// user says yes.
func (o *Orchestrator) confirmDuplicate(ctx context.Context, gw Gateway, userID string, e *expense.Expense, rec ledger.Record, dup ledger.Row) {
	o.sessions.Set(userID, &session.Pending{Kind: session.DuplicateConfirm, Record: rec})
	o.reply(gw, fmt.Sprintf("This looks like a duplicate of %s from the last two days. Save it anyway? (yes/no)", describeRecord(dup.Record)))

	answer, err := gw.AwaitReply(ctx, isYesNo, confirmTimeout)
	o.sessions.Clear(userID)
	if err != nil {
		o.logger.Info("duplicate confirmation lapsed", "user", userID, "reason", err)
		o.reply(gw, "No answer, so I didn't save it.")
		return
	}

	if strings.EqualFold(strings.TrimSpace(answer), "yes") {
		o.persist(ctx, gw, userID, e, rec)
		return
	}
	o.reply(gw, "Okay, not saved.")
}

// persist runs optional categorization, stamps the record and appends it.
func (o *Orchestrator) persist(ctx context.Context, gw Gateway, userID string, e *expense.Expense, rec ledger.Record) {
	if e.NeedsCategorizationHelp {
		category, err := o.insight.Categorize(ctx, rec.Description)
		if err != nil {
			o.logger.Warn("categorization failed, using fallback", "error", err)
			category = insight.FallbackCategory
		}
		rec.Category = category
	}

	rec.Timestamp = clock.Timestamp(o.now())
	if err := o.store.Append(ctx, rec); err != nil {
		o.failLedger(gw, userID, "append", err)
		return
	}

	o.reply(gw, fmt.Sprintf("Tracked %s.", describeRecord(rec)))
}

// resumePending dispatches a reply against the user's in-flight operation.
func (o *Orchestrator) resumePending(ctx context.Context, gw Gateway, userID string, p *session.Pending, text string) {
	switch p.Kind {
	case session.DuplicateConfirm:
		// The yes/no answer is intercepted by the bounded wait; anything
		// reaching here didn't match the filter.
		o.reply(gw, msgYesNo)

	case session.DeleteSelect:
		target, ok := pickCandidate(p.Candidates, text)
		if !ok {
			o.reply(gw, fmt.Sprintf("Please reply with a number between 1 and %d.", len(p.Candidates)))
			return
		}
		o.sessions.Set(userID, &session.Pending{Kind: session.DeleteConfirm, Target: target})
		o.reply(gw, fmt.Sprintf("Delete %s? (yes/no)", describeRecord(target.Record)))

	case session.DeleteConfirm:
		switch strings.ToLower(text) {
		case "yes":
			if err := o.store.DeleteAt(ctx, p.Target.Ref); err != nil {
				o.failLedger(gw, userID, "delete", err)
				return
			}
			o.sessions.Clear(userID)
			o.reply(gw, fmt.Sprintf("Deleted %s.", describeRecord(p.Target.Record)))
		case "no":
			o.sessions.Clear(userID)
			o.reply(gw, "Okay, nothing deleted.")
		default:
			o.reply(gw, msgYesNo)
		}

	case session.EditSelect:
		target, ok := pickCandidate(p.Candidates, text)
		if !ok {
			o.reply(gw, fmt.Sprintf("Please reply with a number between 1 and %d.", len(p.Candidates)))
			return
		}
		o.sessions.Set(userID, &session.Pending{Kind: session.EditFieldSelect, Target: target})
		o.reply(gw, "Which field do you want to change? (category, amount, date, description)")

	case session.EditFieldSelect:
		field := strings.ToLower(text)
		switch field {
		case "category", "amount", "date", "description":
			o.sessions.Set(userID, &session.Pending{Kind: session.EditValueCapture, Target: p.Target, Field: field})
			o.reply(gw, fmt.Sprintf("What should the new %s be?", field))
		default:
			o.reply(gw, msgFieldNames)
		}

	case session.EditValueCapture:
		rec := p.Target.Record
		switch p.Field {
		case "amount":
			amount, err := expense.ParseAmount(text)
			if err != nil {
				o.reply(gw, "That doesn't look like an amount. Try something like 30 or $29.99.")
				return
			}
			rec.Amount = amount
		case "category":
			rec.Category = text
		case "date":
			rec.Date = text
		case "description":
			rec.Description = text
		}
		if err := o.store.UpdateAt(ctx, p.Target.Ref, rec); err != nil {
			o.failLedger(gw, userID, "update", err)
			return
		}
		o.sessions.Clear(userID)
		o.reply(gw, fmt.Sprintf("Updated. Now %s.", describeRecord(rec)))
	}
}

// pickCandidate validates a 1-based index reply against the candidate list.
func pickCandidate(candidates []ledger.Row, text string) (ledger.Row, bool) {
	idx, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || idx < 1 || idx > len(candidates) {
		return ledger.Row{}, false
	}
	return candidates[idx-1], true
}

func isYesNo(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "no":
		return true
	}
	return false
}

func describeRecord(rec ledger.Record) string {
	return fmt.Sprintf("%s $%s on %s", rec.Category, expense.FormatAmount(rec.Amount), rec.Date)
}

// failLedger reports a ledger failure to the user and clears any pending
// state: with the stored state unknown, resuming mid-operation is unsafe.
func (o *Orchestrator) failLedger(gw Gateway, userID, op string, err error) {
	o.logger.Error("ledger call failed", "op", op, "user", userID, "error", err)
	o.sessions.Clear(userID)
	o.reply(gw, msgLedgerTrouble)
}

func (o *Orchestrator) reply(gw Gateway, text string) {
	if err := gw.Reply(text); err != nil {
		o.logger.Error("failed to send reply", "error", err)
	}
}
