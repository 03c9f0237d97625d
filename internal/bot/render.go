package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/scry/internal/database"
	"github.com/example/scry/internal/review"
	"github.com/example/scry/internal/spaced_repetition"
	"github.com/example/scry/pkg/models"
)

const (
	callbackAnswerPrefix = "ans:"
	callbackRetry        = "retry"
	callbackStop         = "stop"
	callbackReview       = "review"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// encodeAnswerData binds an option to the lock it was shown under, so taps
// on a stale keyboard can be told apart. Telegram allows 64 bytes.
func encodeAnswerData(lockID string, option int) string {
	return callbackAnswerPrefix + lockID + ":" + strconv.Itoa(option)
}

func decodeAnswerData(data string) (lockID string, option int, ok bool) {
	rest, found := strings.CutPrefix(data, callbackAnswerPrefix)
	if !found {
		return "", 0, false
	}
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 {
		return "", 0, false
	}
	option, err := strconv.Atoi(rest[i+1:])
	if err != nil || option < 0 {
		return "", 0, false
	}
	return rest[:i], option, true
}

// view is what a state renders to. An empty text means nothing to send.
type view struct {
	text     string
	keyboard *tgbotapi.InlineKeyboardMarkup
	// dedup identifies the view; the same dedup is never sent twice in a row
	dedup string
}

func renderState(s review.State) view {
	switch s.Phase {
	case review.PhaseLoading:
		return view{text: "⏳ Loading your next question...", dedup: "loading"}

	case review.PhaseEmpty:
		kb := createKeyboard([][]MenuButton{{{Text: "🔄 Check again", CallbackData: callbackRetry}}})
		return view{text: "🎉 Nothing is due right now. Come back later!", keyboard: &kb, dedup: "empty"}

	case review.PhaseError:
		kb := createKeyboard([][]MenuButton{{
			{Text: "🔄 Retry", CallbackData: callbackRetry},
			{Text: "⏹ Stop", CallbackData: callbackStop},
		}})
		return view{text: "⚠️ " + s.ErrorMessage, keyboard: &kb, dedup: "error"}

	case review.PhaseReviewing:
		// the answered question stays on screen until the next one arrives
		if s.IsTransitioning || s.Lock == nil || s.Candidate == nil {
			return view{}
		}
		text, kb := renderQuestion(s.Candidate, s.Lock.ID)
		// an edited question under the same lock is shown again
		dedup := "lock:" + s.Lock.ID + "\n" + text + "\n" + strings.Join(s.Candidate.Question.Options, "|")
		return view{text: text, keyboard: kb, dedup: dedup}
	}
	return view{}
}

func renderQuestion(c *models.ReviewCandidate, lockID string) (string, *tgbotapi.InlineKeyboardMarkup) {
	q := c.Question
	var sb strings.Builder
	if q.Topic != "" {
		sb.WriteString("📚 " + q.Topic + "\n\n")
	}
	sb.WriteString("❓ " + q.Prompt)

	if n := len(c.Interactions); n > 0 {
		last := c.Interactions[0]
		mark := "❌"
		if last.IsCorrect {
			mark = "✅"
		}
		sb.WriteString(fmt.Sprintf("\n\n%s Last attempt: %s (%d total)", mark, last.Answer, n))
	}

	if len(q.Options) == 0 {
		sb.WriteString("\n\n✍️ Type your answer.")
		kb := createKeyboard([][]MenuButton{{{Text: "⏹ Stop", CallbackData: callbackStop}}})
		return sb.String(), &kb
	}

	var rows [][]MenuButton
	for i, opt := range q.Options {
		rows = append(rows, []MenuButton{{Text: opt, CallbackData: encodeAnswerData(lockID, i)}})
	}
	rows = append(rows, []MenuButton{{Text: "⏹ Stop", CallbackData: callbackStop}})
	kb := createKeyboard(rows)
	return sb.String(), &kb
}

func renderOutcome(q models.Question, answer string, correct bool, out *spaced_repetition.AnswerOutcome) string {
	var sb strings.Builder
	if correct {
		sb.WriteString("✅ Correct!")
	} else {
		sb.WriteString(fmt.Sprintf("❌ Not quite. You answered %q, the answer is %q.", answer, q.CorrectAnswer))
	}
	if q.Explanation != "" {
		sb.WriteString("\n💡 " + q.Explanation)
	}
	if out != nil {
		switch {
		case out.ScheduledDays > 0:
			sb.WriteString(fmt.Sprintf("\n📅 Next review in %d day(s).", out.ScheduledDays))
		default:
			sb.WriteString("\n🔁 You'll see this one again shortly.")
		}
	}
	return sb.String()
}

func renderQuestionList(questions []models.Question) string {
	if len(questions) == 0 {
		return "You have no questions yet. Import some with the import command."
	}
	var sb strings.Builder
	sb.WriteString("📋 Your questions:\n")
	for _, q := range questions {
		topic := q.Topic
		if topic == "" {
			topic = "General"
		}
		sb.WriteString(fmt.Sprintf("\n#%d [%s] %s", q.ID, topic, q.Prompt))
	}
	return sb.String()
}

func renderStats(s database.Summary, mastered int, topics []database.TopicCount) string {
	var sb strings.Builder
	sb.WriteString("📊 Your statistics\n\n")
	sb.WriteString(fmt.Sprintf("Questions: %d\n", s.Questions))
	sb.WriteString(fmt.Sprintf("Reviewed at least once: %d\n", s.Reviewed))
	sb.WriteString(fmt.Sprintf("Due now: %d\n", s.DueNow))
	sb.WriteString(fmt.Sprintf("Mastered: %d\n", mastered))
	sb.WriteString(fmt.Sprintf("Attempts: %d (%.0f%% correct)", s.Attempts, s.Accuracy()))
	if len(topics) > 0 {
		sb.WriteString("\n\nBy topic:")
		for _, t := range topics {
			sb.WriteString(fmt.Sprintf("\n• %s: %d", t.Topic, t.Count))
		}
	}
	return sb.String()
}

// parseEditArgs reads "<id> field=value [field=value...]". Values run until
// the next field; options are separated by "|".
func parseEditArgs(args string) (int64, models.QuestionPatch, error) {
	var patch models.QuestionPatch
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return 0, patch, fmt.Errorf("usage: /edit <id> prompt=... answer=... explanation=... topic=... options=a|b|c")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(fields[0], "#"), 10, 64)
	if err != nil {
		return 0, patch, fmt.Errorf("invalid question id %q", fields[0])
	}

	values := map[string]*[]string{}
	var current *[]string
	for _, f := range fields[1:] {
		if name, value, ok := strings.Cut(f, "="); ok && isEditField(name) {
			parts := []string{value}
			values[strings.ToLower(name)] = &parts
			current = &parts
			continue
		}
		if current == nil {
			return 0, patch, fmt.Errorf("expected field=value, got %q", f)
		}
		*current = append(*current, f)
	}

	for name, parts := range values {
		value := strings.TrimSpace(strings.Join(*parts, " "))
		switch name {
		case "prompt":
			patch.Prompt = &value
		case "answer":
			patch.CorrectAnswer = &value
		case "explanation":
			patch.Explanation = &value
		case "topic":
			patch.Topic = &value
		case "options":
			var opts []string
			for _, o := range strings.Split(value, "|") {
				if o = strings.TrimSpace(o); o != "" {
					opts = append(opts, o)
				}
			}
			patch.Options = opts
		}
	}
	if patch.IsEmpty() {
		return 0, patch, fmt.Errorf("nothing to change")
	}
	return id, patch, nil
}

func isEditField(name string) bool {
	switch strings.ToLower(name) {
	case "prompt", "answer", "explanation", "topic", "options":
		return true
	}
	return false
}

func parseQuestionID(args string) (int64, error) {
	s := strings.TrimPrefix(strings.TrimSpace(args), "#")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid question id %q", args)
	}
	return id, nil
}

func elapsedMs(since time.Time, now time.Time) int64 {
	if since.IsZero() {
		return 0
	}
	return now.Sub(since).Milliseconds()
}
