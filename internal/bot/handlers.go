package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/scry/internal/auth"
	"github.com/example/scry/internal/review"
	"github.com/example/scry/pkg/models"
)

const helpText = "📖 How it works\n\n" +
	"/review - start reviewing due questions\n" +
	"/stop - stop the current review\n" +
	"/retry - retry after a loading error\n" +
	"/list - show your questions\n" +
	"/edit <id> prompt=... answer=... options=a|b|c - change a question\n" +
	"/delete <id> - delete a question\n" +
	"/stats - your progress\n" +
	"/help - this message"

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message == nil || message.From == nil || message.Chat == nil {
		return fmt.Errorf("invalid message: required fields are missing")
	}

	var err error
	switch message.Command() {
	case "start":
		err = b.handleStart(ctx, message)
	case "help":
		err = b.sendText(message.Chat.ID, helpText)
	case "review":
		_, err = b.startSession(ctx, message.Chat.ID, message.From.ID)
	case "stop":
		err = b.handleStop(message.Chat.ID)
	case "retry":
		err = b.handleRetry(ctx, message.Chat.ID, message.From.ID)
	case "list":
		err = b.handleList(ctx, message)
	case "edit":
		err = b.handleEdit(ctx, message)
	case "delete":
		err = b.handleDelete(ctx, message)
	case "stats":
		err = b.handleStats(ctx, message)
	default:
		err = b.sendText(message.Chat.ID, "Unknown command. Use /help to see what I can do.")
	}
	return err
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	text := "👋 Welcome! I'll quiz you on your questions using spaced repetition.\n\n" + helpText
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "▶️ Start review", CallbackData: callbackReview}}})
	_, err := b.send(msg)
	return err
}

func (b *Bot) handleStop(chatID int64) error {
	if !b.endSession(chatID) {
		return b.sendText(chatID, "No review in progress.")
	}
	return b.sendText(chatID, "⏹ Review stopped. Use /review to continue later.")
}

func (b *Bot) handleRetry(ctx context.Context, chatID, userID int64) error {
	s := b.session(chatID)
	if s == nil {
		_, err := b.startSession(ctx, chatID, userID)
		return err
	}
	if s.ctrl.State().Phase == review.PhaseEmpty {
		// nothing to retry; start over so a fresh fetch happens
		b.endSession(chatID)
		_, err := b.startSession(ctx, chatID, userID)
		return err
	}
	s.redraw()
	s.ctrl.Retry()
	return nil
}

// handleText treats free text as the answer to an open question
func (b *Bot) handleText(ctx context.Context, message *tgbotapi.Message) error {
	if message.Chat == nil {
		return nil
	}
	s := b.session(message.Chat.ID)
	if s == nil {
		return b.sendText(message.Chat.ID, "Use /review to start a review.")
	}

	state := s.ctrl.State()
	c, ok := s.shown(state)
	if !ok || len(c.Question.Options) > 0 {
		return b.sendText(message.Chat.ID, "Please pick one of the options above.")
	}

	toast, err := s.answer(ctx, state.Lock.ID, strings.TrimSpace(message.Text))
	if toast != "" {
		return b.sendText(message.Chat.ID, toast)
	}
	return err
}

// HandleCallback handles inline keyboard taps
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback == nil || callback.Message == nil || callback.Message.Chat == nil || callback.From == nil {
		return fmt.Errorf("invalid callback data: required fields are missing")
	}
	chatID := callback.Message.Chat.ID
	userID := callback.From.ID

	var (
		toast string
		err   error
	)
	switch callback.Data {
	case callbackReview:
		_, err = b.startSession(ctx, chatID, userID)
	case callbackRetry:
		err = b.handleRetry(ctx, chatID, userID)
	case callbackStop:
		err = b.handleStop(chatID)
	default:
		lockID, option, ok := decodeAnswerData(callback.Data)
		if !ok {
			toast = "Unknown action"
			break
		}
		toast, err = b.handleAnswerTap(ctx, chatID, lockID, option)
	}

	// Always answer the callback query to remove the loading state
	if _, rerr := b.api.Request(tgbotapi.NewCallback(callback.ID, toast)); rerr != nil {
		b.log.Warn(module, "Failed to answer callback", map[string]interface{}{"error": rerr.Error()})
	}
	return err
}

func (b *Bot) handleAnswerTap(ctx context.Context, chatID int64, lockID string, option int) (string, error) {
	s := b.session(chatID)
	if s == nil {
		return "This review has ended.", nil
	}
	c, ok := s.shown(s.ctrl.State())
	if !ok {
		// answer reports why: already answered or deleted
		return s.answer(ctx, lockID, "")
	}
	options := c.Question.Options
	if option >= len(options) {
		return alreadyAnswered, nil
	}
	return s.answer(ctx, lockID, options[option])
}

// handleList shows the question bank with pending local changes applied
func (b *Bot) handleList(ctx context.Context, message *tgbotapi.Message) error {
	questions, err := b.deps.Questions.ListByUser(ctx, message.From.ID)
	if err != nil {
		b.sendText(message.Chat.ID, "❌ Could not load your questions. Please try again later.")
		return err
	}
	visible := b.deps.Store.WithoutDeleted(b.deps.Store.OverlayEdits(questions))
	return b.sendText(message.Chat.ID, renderQuestionList(visible))
}

func (b *Bot) handleEdit(ctx context.Context, message *tgbotapi.Message) error {
	id, patch, err := parseEditArgs(message.CommandArguments())
	if err != nil {
		return b.sendText(message.Chat.ID, "⚠️ "+err.Error())
	}

	q, ok := b.findQuestion(ctx, message.From.ID, id)
	if !ok {
		return b.sendText(message.Chat.ID, fmt.Sprintf("⚠️ Question #%d not found.", id))
	}

	// the overlay is recorded before the remote call returns; failures
	// come back through the notice bus
	b.runMutation(func() {
		res := b.deps.Store.ApplyEdit(auth.WithUser(ctx, message.From.ID), id, patch)
		if !res.OK {
			b.log.Warn(module, "Edit failed", map[string]interface{}{"id": id, "category": string(res.Category)})
		}
		// the question under review is drawn with the settled overlay, or
		// without it after a rollback
		if s := b.session(message.Chat.ID); s != nil {
			s.poke()
		}
	})

	updated := patch.ApplyTo(q)
	return b.sendText(message.Chat.ID, fmt.Sprintf("✏️ Updated #%d: %s", id, updated.Prompt))
}

func (b *Bot) handleDelete(ctx context.Context, message *tgbotapi.Message) error {
	id, err := parseQuestionID(message.CommandArguments())
	if err != nil {
		return b.sendText(message.Chat.ID, "⚠️ Usage: /delete <id>")
	}
	if _, ok := b.findQuestion(ctx, message.From.ID, id); !ok {
		return b.sendText(message.Chat.ID, fmt.Sprintf("⚠️ Question #%d not found.", id))
	}

	b.runMutation(func() {
		res := b.deps.Store.ApplyDelete(auth.WithUser(ctx, message.From.ID), id)
		if !res.OK {
			b.log.Warn(module, "Delete failed", map[string]interface{}{"id": id, "category": string(res.Category)})
		}
	})
	if s := b.session(message.Chat.ID); s != nil {
		s.skip(id)
	}
	return b.sendText(message.Chat.ID, fmt.Sprintf("🗑 Deleted #%d.", id))
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) error {
	summary, err := b.deps.Stats.GetSummary(ctx, message.From.ID, b.now())
	if err != nil {
		b.sendText(message.Chat.ID, "❌ Could not load statistics. Please try again later.")
		return err
	}
	topics, err := b.deps.Questions.ListTopics(ctx, message.From.ID)
	if err != nil {
		return err
	}
	mastered, err := b.deps.Engine.CountMastered(ctx, message.From.ID)
	if err != nil {
		return err
	}
	return b.sendText(message.Chat.ID, renderStats(summary, mastered, topics))
}

// findQuestion looks the question up in what the user currently sees
func (b *Bot) findQuestion(ctx context.Context, userID, id int64) (models.Question, bool) {
	questions, err := b.deps.Questions.ListByUser(ctx, userID)
	if err != nil {
		b.log.Warn(module, "Failed to list questions", map[string]interface{}{"error": err.Error()})
		return models.Question{}, false
	}
	for _, q := range b.deps.Store.WithoutDeleted(b.deps.Store.OverlayEdits(questions)) {
		if q.ID == id {
			return q, true
		}
	}
	return models.Question{}, false
}

func (b *Bot) runMutation(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}
