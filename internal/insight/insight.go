// Package insight provides optional AI enrichment: expense categorization
// and short narrative summaries.
package insight

import (
	"context"
	"log/slog"
)

// FallbackCategory is used whenever a category cannot be obtained.
const FallbackCategory = "Other"

// Service enriches expenses with AI-derived text. Implementations must be
// safe to call unconditionally; when the service is unavailable the no-op
// implementation stands in and call sites never branch on availability.
type Service interface {
	// Categorize picks a category label for an expense description.
	Categorize(ctx context.Context, description string) (string, error)
	// Narrative writes a short free-text insight over a spending summary.
	Narrative(ctx context.Context, summary string) (string, error)
}

// Config holds configuration for the insight service.
type Config struct {
	APIKey string
	Model  string
}

// New returns a real client when an API key is configured and a no-op
// service otherwise.
func New(cfg Config, logger *slog.Logger) Service {
	if cfg.APIKey == "" {
		logger.Info("insight service disabled, using defaults")
		return noopService{}
	}
	return newOpenAIService(cfg, logger.With("component", "insight"))
}

// noopService degrades gracefully: default category, no narrative.
type noopService struct{}

func (noopService) Categorize(_ context.Context, _ string) (string, error) {
	return FallbackCategory, nil
}

func (noopService) Narrative(_ context.Context, _ string) (string, error) {
	return "", nil
}
