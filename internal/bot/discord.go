package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/NgigiN/spendbot/internal/config"
	"github.com/NgigiN/spendbot/internal/expense"
)

// Bot connects the orchestrator to Discord. Each inbound message runs on its
// own discordgo handler goroutine, so one user's bounded wait never blocks
// another user's messages.
type Bot struct {
	session   *discordgo.Session
	orch      *Orchestrator
	logger    *slog.Logger
	channelID string
	startTime time.Time

	mu      sync.Mutex
	waiters map[string]*waiter
}

// waiter captures one outstanding AwaitReply: the next message from the user
// that passes filter is delivered on ch instead of the normal handler path.
type waiter struct {
	filter func(string) bool
	ch     chan string
}

func NewBot(cfg *config.Config, orch *Orchestrator, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	bot := &Bot{
		session:   session,
		orch:      orch,
		logger:    logger.With("component", "discord"),
		channelID: cfg.DiscordChannelID,
		startTime: time.Now(),
		waiters:   make(map[string]*waiter),
	}

	session.AddHandler(bot.handleMessage)
	session.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	return bot, nil
}

func (b *Bot) Start() error {
	// Start health check server
	go b.startHealthServer()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	b.logger.Info("connected to Discord", "channel", b.channelID)
	return nil
}

func (b *Bot) Stop() {
	if err := b.session.Close(); err != nil {
		b.logger.Error("closing Discord session", "error", err)
	}
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return // bot's messages
	}
	if m.ChannelID != b.channelID {
		return // specific to the channel
	}

	userID := m.Author.ID
	cleaned := expense.Clean(m.Content)

	// An outstanding bounded wait for this user gets first refusal.
	if b.deliverToWaiter(userID, cleaned) {
		return
	}

	gw := &discordGateway{bot: b, session: s, channelID: m.ChannelID, userID: userID}
	b.orch.HandleMessage(context.Background(), gw, userID, m.Content)
}

// deliverToWaiter hands the message to the user's waiter when one exists and
// its filter accepts the text.
func (b *Bot) deliverToWaiter(userID, text string) bool {
	b.mu.Lock()
	w, ok := b.waiters[userID]
	if !ok || !w.filter(text) {
		b.mu.Unlock()
		return false
	}
	delete(b.waiters, userID)
	b.mu.Unlock()

	w.ch <- text
	return true
}

func (b *Bot) addWaiter(userID string, filter func(string) bool, ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waiters[userID] = &waiter{filter: filter, ch: ch}
}

func (b *Bot) removeWaiter(userID string, ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.waiters[userID]; ok && w.ch == ch {
		delete(b.waiters, userID)
	}
}

// discordGateway binds a Gateway to one message's channel and author.
type discordGateway struct {
	bot       *Bot
	session   *discordgo.Session
	channelID string
	userID    string
}

func (g *discordGateway) Reply(text string) error {
	_, err := g.session.ChannelMessageSend(g.channelID, text)
	return err
}

// AwaitReply races the user's next matching message against the timeout. The
// timer is always stopped before returning.
func (g *discordGateway) AwaitReply(ctx context.Context, filter func(string) bool, timeout time.Duration) (string, error) {
	ch := make(chan string, 1)
	g.bot.addWaiter(g.userID, filter, ch)
	defer g.bot.removeWaiter(g.userID, ch)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case text := <-ch:
		return text, nil
	case <-timer.C:
		return "", ErrAwaitTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *Bot) startHealthServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		uptime := time.Since(b.startTime)
		status := "healthy"

		connected := b.session != nil && b.session.State != nil
		w.Header().Set("Content-Type", "application/json")
		if !connected {
			status = "unhealthy"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		body := fmt.Sprintf(`{"status":%q,"uptime":%q,"discord_connected":%t,"timestamp":%q}`,
			status, uptime.String(), connected, time.Now().Format(time.RFC3339))
		if _, err := w.Write([]byte(body)); err != nil {
			b.logger.Error("writing health response", "error", err)
		}
	})

	if err := http.ListenAndServe(":8080", mux); err != nil {
		b.logger.Error("health server stopped", "error", err)
	}
}
