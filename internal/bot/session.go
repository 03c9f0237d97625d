package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/example/scry/internal/review"
	"github.com/example/scry/internal/spaced_repetition"
	"github.com/example/scry/pkg/models"
)

const (
	alreadyAnswered = "This question was already answered."
	questionGone    = "This question was deleted."
)

// reviewSession is one chat's review. State changes arrive from the
// controller and are rendered on the session's own goroutine.
type reviewSession struct {
	bot    *Bot
	chatID int64
	userID int64
	id     string
	ctrl   *review.Controller
	cancel context.CancelFunc

	wake     chan struct{}
	done     chan struct{}
	loopDone chan struct{}
	once     sync.Once

	mu       sync.Mutex
	lastView string
	shownAt  time.Time
	answered string
}

// startSession returns the chat's running session or starts a new one
func (b *Bot) startSession(ctx context.Context, chatID, userID int64) (*reviewSession, error) {
	b.mu.Lock()
	if s, ok := b.sessions[chatID]; ok {
		b.mu.Unlock()
		s.redraw()
		return s, nil
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := &reviewSession{
		bot:      b,
		chatID:   chatID,
		userID:   userID,
		id:       uuid.NewString(),
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	s.ctrl = review.NewController(b.deps.Review, b.deps.Sources(userID), b.log)
	s.ctrl.OnChange(func(review.State) { s.poke() })
	b.sessions[chatID] = s
	b.mu.Unlock()

	go s.loop()
	s.poke()

	if err := s.ctrl.Start(sessCtx); err != nil {
		b.endSession(chatID)
		return nil, err
	}

	b.log.Info(module, "Review session started", map[string]interface{}{
		"chat_id":    chatID,
		"user_id":    userID,
		"session_id": s.id,
	})
	return s, nil
}

// endSession stops the chat's session, if any
func (b *Bot) endSession(chatID int64) bool {
	b.mu.Lock()
	s, ok := b.sessions[chatID]
	delete(b.sessions, chatID)
	b.mu.Unlock()
	if ok {
		s.close()
	}
	return ok
}

// poke must not block: it runs under the controller lock
func (s *reviewSession) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *reviewSession) redraw() {
	s.mu.Lock()
	s.lastView = ""
	s.mu.Unlock()
	s.poke()
}

func (s *reviewSession) loop() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			s.render(s.ctrl.State())
		}
	}
}

// shown returns the reviewed candidate with pending local edits applied.
// ok is false when nothing is under review or the question is being deleted.
func (s *reviewSession) shown(state review.State) (*models.ReviewCandidate, bool) {
	if state.Phase != review.PhaseReviewing || state.IsTransitioning || state.Lock == nil || state.Candidate == nil {
		return nil, false
	}
	store := s.bot.deps.Store
	q := state.Candidate.Question
	if store.IsPendingDelete(q.ID) {
		return nil, false
	}
	c := *state.Candidate
	c.Question = store.OverlayEdits([]models.Question{q})[0]
	return &c, true
}

// skip moves past the question under review when it has been deleted
func (s *reviewSession) skip(questionID int64) bool {
	state := s.ctrl.State()
	if state.Phase != review.PhaseReviewing || state.IsTransitioning || state.Candidate == nil ||
		state.Candidate.Question.ID != questionID {
		return false
	}
	s.bot.log.Info(module, "Skipping deleted question", map[string]interface{}{
		"chat_id":     s.chatID,
		"question_id": questionID,
	})
	return s.ctrl.CompleteReview()
}

func (s *reviewSession) render(state review.State) {
	if state.Phase == review.PhaseReviewing && !state.IsTransitioning && state.Candidate != nil {
		c, ok := s.shown(state)
		if !ok {
			s.skip(state.Candidate.Question.ID)
			return
		}
		state.Candidate = c
	}
	v := renderState(state)
	if v.text == "" {
		return
	}

	s.mu.Lock()
	if v.dedup == s.lastView {
		s.mu.Unlock()
		return
	}
	s.lastView = v.dedup
	if state.Phase == review.PhaseReviewing {
		s.shownAt = s.bot.now()
	}
	s.mu.Unlock()

	msg := tgbotapi.NewMessage(s.chatID, v.text)
	if v.keyboard != nil {
		msg.ReplyMarkup = *v.keyboard
	}
	s.bot.send(msg)
}

// answer records an answer for the question shown under lockID. The returned
// toast is shown when the tap no longer applies.
func (s *reviewSession) answer(ctx context.Context, lockID, answer string) (string, error) {
	state := s.ctrl.State()
	if state.Phase != review.PhaseReviewing || state.Lock == nil || state.Candidate == nil ||
		state.IsTransitioning || state.Lock.ID != lockID {
		return alreadyAnswered, nil
	}
	c, ok := s.shown(state)
	if !ok {
		s.skip(state.Candidate.Question.ID)
		return questionGone, nil
	}

	s.mu.Lock()
	if s.answered == lockID {
		s.mu.Unlock()
		return alreadyAnswered, nil
	}
	s.answered = lockID
	shownAt := s.shownAt
	s.mu.Unlock()

	q := c.Question
	correct := q.IsCorrect(answer)
	out, err := s.bot.deps.Engine.RecordAnswer(ctx, spaced_repetition.AnswerRequest{
		QuestionID:  q.ID,
		UserID:      s.userID,
		Answer:      answer,
		IsCorrect:   correct,
		TimeSpentMs: elapsedMs(shownAt, s.bot.now()),
		SessionID:   s.id,
	})
	if errors.Is(err, models.ErrAlreadyDeleted) || errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrNotAuthorized) {
		// the question went away under the review; move on
		s.skip(q.ID)
		return questionGone, nil
	}
	if err != nil {
		s.mu.Lock()
		s.answered = ""
		s.mu.Unlock()
		s.bot.sendText(s.chatID, "❌ Could not save your answer. Please try again.")
		return "", err
	}

	s.bot.sendText(s.chatID, renderOutcome(q, answer, correct, out))
	s.ctrl.CompleteReview()
	return "", nil
}

func (s *reviewSession) close() {
	s.once.Do(func() {
		s.ctrl.Close()
		s.cancel()
		close(s.done)
		<-s.loopDone
	})
}
