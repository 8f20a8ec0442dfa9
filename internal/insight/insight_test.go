package insight

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutKeyIsNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(Config{}, logger)

	category, err := svc.Categorize(context.Background(), "coffee with friends")
	require.NoError(t, err)
	assert.Equal(t, FallbackCategory, category)

	narrative, err := svc.Narrative(context.Background(), "totals")
	require.NoError(t, err)
	assert.Empty(t, narrative)
}

func TestNewWithKeyIsRealClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(Config{APIKey: "test-key"}, logger)

	_, ok := svc.(*openAIService)
	assert.True(t, ok)
}
