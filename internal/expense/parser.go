// Package expense turns free-text chat messages into structured expense
// entries.
package expense

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/NgigiN/spendbot/internal/clock"
)

// DefaultCategory is the sentinel used when no category could be read from
// the message.
const DefaultCategory = "Uncategorized"

// Expense is the structured result of parsing one line of text.
type Expense struct {
	Category string
	Amount   float64
	// Date is the canonical DD/MM/YYYY string, always populated.
	Date        string
	Description string
	// NeedsCategorizationHelp is set when the message carried an amount but
	// no category token, so a categorizer can fill one in later.
	NeedsCategorizationHelp bool
}

var (
	mentionRe = regexp.MustCompile(`<@[!&]?\d+>`)

	// category = leading letters/spaces, amount = optional $ with up to two
	// decimals, date = optional D/M/Y, D-M-Y or Y-M-D token.
	fullRe = regexp.MustCompile(`^([A-Za-z][A-Za-z ]*?)\s+\$?(\d+(?:\.\d{1,2})?)(?:\s+(\d{1,4}[/-]\d{1,2}[/-]\d{1,4}))?$`)
	bareRe = regexp.MustCompile(`^\$?(\d+(?:\.\d{1,2})?)(?:\s+(\d{1,4}[/-]\d{1,2}[/-]\d{1,4}))?$`)

	// Dates are day-first. A four digit leading field flips to year-first.
	dmyRe = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)
	ymdRe = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
)

// Clean strips chat mention tokens and surrounding whitespace.
func Clean(text string) string {
	text = mentionRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// Parse reads one line of text into an Expense. It returns nil when the text
// matches neither grammar; it never returns a partial result.
//
// The category grammar is deliberately permissive: "Birthday gift for mom
// 45.00" parses with the whole leading phrase as the category. Callers should
// not assume category correctness without review.
func Parse(text string, now time.Time) *Expense {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}

	if m := fullRe.FindStringSubmatch(cleaned); m != nil {
		amount, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return nil
		}
		date, ok := resolveDate(m[3], now)
		if !ok {
			return nil
		}
		category := strings.TrimSpace(m[1])
		return &Expense{
			Category:    category,
			Amount:      amount,
			Date:        date,
			Description: category,
		}
	}

	if m := bareRe.FindStringSubmatch(cleaned); m != nil {
		amount, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil
		}
		date, ok := resolveDate(m[2], now)
		if !ok {
			return nil
		}
		// No category token: keep the whole line as description so a
		// categorizer has the full context.
		return &Expense{
			Category:                DefaultCategory,
			Amount:                  amount,
			Date:                    date,
			Description:             cleaned,
			NeedsCategorizationHelp: true,
		}
	}

	return nil
}

// resolveDate renders a matched date token to canonical form, or the current
// date when the token is empty. Tokens matching neither accepted shape fail
// the parse.
func resolveDate(token string, now time.Time) (string, bool) {
	if token == "" {
		return clock.FormatDate(now), true
	}
	if m := dmyRe.FindStringSubmatch(token); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return clock.RenderDate(day, month, year), true
	}
	if m := ymdRe.FindStringSubmatch(token); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return clock.RenderDate(day, month, year), true
	}
	return "", false
}

// ParseQuery reads the "<category> <amount> [date]" argument form used by the
// edit and delete commands. The returned date is empty when none was given.
func ParseQuery(args string, now time.Time) (category string, amount float64, date string, ok bool) {
	m := fullRe.FindStringSubmatch(strings.TrimSpace(args))
	if m == nil {
		return "", 0, "", false
	}
	amount, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return "", 0, "", false
	}
	if m[3] != "" {
		date, ok = resolveDate(m[3], now)
		if !ok {
			return "", 0, "", false
		}
	}
	return strings.TrimSpace(m[1]), amount, date, true
}

// ParseAmount reads a bare amount reply, tolerating currency punctuation.
func ParseAmount(text string) (float64, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", text, err)
	}
	if amount < 0 {
		return 0, fmt.Errorf("invalid amount %q: negative", text)
	}
	return amount, nil
}

// FormatAmount renders an amount the way replies and the ledger display it.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
