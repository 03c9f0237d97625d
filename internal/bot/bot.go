// Package bot is the Telegram presenter: one review session per chat, driven
// by a review controller, with edits and deletes applied optimistically.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/scry/internal/database"
	"github.com/example/scry/internal/feed"
	"github.com/example/scry/internal/logger"
	"github.com/example/scry/internal/notify"
	"github.com/example/scry/internal/optimistic"
	"github.com/example/scry/internal/review"
	"github.com/example/scry/internal/spaced_repetition"
	"github.com/example/scry/pkg/models"
)

const module = "Bot"

// Engine is the review backend
type Engine interface {
	RecordAnswer(ctx context.Context, req spaced_repetition.AnswerRequest) (*spaced_repetition.AnswerOutcome, error)
	CountMastered(ctx context.Context, userID int64) (int, error)
}

// QuestionReader lists the authoritative question bank
type QuestionReader interface {
	ListByUser(ctx context.Context, userID int64) ([]models.Question, error)
	ListTopics(ctx context.Context, userID int64) ([]database.TopicCount, error)
}

type StatsReader interface {
	GetSummary(ctx context.Context, userID int64, now time.Time) (database.Summary, error)
}

// SourceFactory builds the feed a user's session is driven by
type SourceFactory func(userID int64) feed.Source

// sender is the part of tgbotapi.BotAPI the bot uses
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Deps struct {
	Engine    Engine
	Questions QuestionReader
	Stats     StatsReader
	Store     *optimistic.Store[models.Question, models.QuestionPatch]
	Notices   *notify.Bus
	Sources   SourceFactory
	Review    review.Config
	Log       logger.ILogger
}

// Bot represents the Telegram bot application
type Bot struct {
	token string
	deps  Deps
	log   logger.ILogger
	now   func() time.Time

	api      sender
	botAPI   *tgbotapi.BotAPI
	mu       sync.Mutex
	sessions map[int64]*reviewSession
	wg       sync.WaitGroup
}

// New creates a new bot instance
func New(token string, deps Deps) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	return newBot(token, nil, deps), nil
}

func newBot(token string, api sender, deps Deps) *Bot {
	return &Bot{
		token:    token,
		deps:     deps,
		log:      deps.Log,
		now:      time.Now,
		api:      api,
		sessions: make(map[int64]*reviewSession),
	}
}

// Start connects to Telegram and handles updates until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	botAPI, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("unable to create bot: %w", err)
	}
	b.botAPI = botAPI
	b.api = botAPI
	b.log.Info(module, "Authorized", map[string]interface{}{"account": botAPI.Self.UserName})

	if b.deps.Notices != nil {
		notices, err := b.deps.Notices.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe to notices: %w", err)
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.forwardNotices(notices)
		}()
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := botAPI.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.Stop()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.Stop()
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// Stop closes every session and stops polling Telegram
func (b *Bot) Stop() {
	if b.botAPI != nil {
		b.botAPI.StopReceivingUpdates()
	}

	b.mu.Lock()
	sessions := b.sessions
	b.sessions = make(map[int64]*reviewSession)
	b.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
	b.log.Info(module, "Bot stopped", map[string]interface{}{"sessions": len(sessions)})
}

// Wait blocks until in-flight update handlers return
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) forwardNotices(notices <-chan notify.Notice) {
	for n := range notices {
		// private chats share the user's id
		text := "ℹ️ " + n.Message
		if n.Level == notify.LevelError {
			text = "❌ " + n.Message
		}
		b.send(tgbotapi.NewMessage(n.UserID, text))
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.Message != nil && update.Message.IsCommand():
		err = b.HandleCommand(ctx, update.Message)
	case update.Message != nil:
		err = b.handleText(ctx, update.Message)
	case update.CallbackQuery != nil:
		err = b.HandleCallback(ctx, update.CallbackQuery)
	}
	if err != nil {
		b.log.Error(module, "Update handling failed", map[string]interface{}{
			"update_id": update.UpdateID,
			"error":     err,
		})
	}
}

func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := b.api.Send(c)
	if err != nil {
		b.log.Warn(module, "Failed to send message", map[string]interface{}{"error": err.Error()})
	}
	return msg, err
}

func (b *Bot) sendText(chatID int64, text string) error {
	_, err := b.send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) session(chatID int64) *reviewSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[chatID]
}
