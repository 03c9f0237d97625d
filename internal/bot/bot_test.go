package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/scry/internal/database"
	"github.com/example/scry/internal/feed"
	"github.com/example/scry/internal/logger"
	"github.com/example/scry/internal/optimistic"
	"github.com/example/scry/internal/review"
	"github.com/example/scry/internal/spaced_repetition"
	"github.com/example/scry/pkg/models"
)

type fakeAPI struct {
	mu        sync.Mutex
	sent      []string
	callbacks []string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m.Text)
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.callbacks = append(f.callbacks, cb.Text)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) contains(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sent {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func (f *fakeAPI) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) lastCallback() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.callbacks) == 0 {
		return ""
	}
	return f.callbacks[len(f.callbacks)-1]
}

type manualSource struct {
	mu sync.Mutex
	fn func(feed.Snapshot)
}

func (m *manualSource) Subscribe(ctx context.Context, fn func(feed.Snapshot)) (func(), error) {
	m.mu.Lock()
	m.fn = fn
	m.mu.Unlock()
	fn(feed.Pending())
	return func() {
		m.mu.Lock()
		m.fn = nil
		m.mu.Unlock()
	}, nil
}

func (m *manualSource) emit(s feed.Snapshot) {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

type fakeEngine struct {
	mu   sync.Mutex
	reqs []spaced_repetition.AnswerRequest
	err  error
}

func (f *fakeEngine) RecordAnswer(ctx context.Context, req spaced_repetition.AnswerRequest) (*spaced_repetition.AnswerOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.reqs = append(f.reqs, req)
	return &spaced_repetition.AnswerOutcome{ScheduledDays: 1}, nil
}

func (f *fakeEngine) CountMastered(ctx context.Context, userID int64) (int, error) {
	return 2, nil
}

func (f *fakeEngine) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeEngine) requests() []spaced_repetition.AnswerRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]spaced_repetition.AnswerRequest(nil), f.reqs...)
}

type fakeQuestions struct {
	questions []models.Question
}

func (f *fakeQuestions) ListByUser(ctx context.Context, userID int64) ([]models.Question, error) {
	return append([]models.Question(nil), f.questions...), nil
}

func (f *fakeQuestions) ListTopics(ctx context.Context, userID int64) ([]database.TopicCount, error) {
	return []database.TopicCount{{Topic: "Geo", Count: len(f.questions)}}, nil
}

func (f *fakeQuestions) GetSummary(ctx context.Context, userID int64, now time.Time) (database.Summary, error) {
	return database.Summary{Questions: len(f.questions), Attempts: 4, Correct: 3}, nil
}

type fakeRemote struct {
	err error
}

func (f *fakeRemote) Update(ctx context.Context, userID, id int64, patch models.QuestionPatch) (bool, error) {
	return f.err == nil, f.err
}

func (f *fakeRemote) SoftDelete(ctx context.Context, userID, id int64) (bool, error) {
	return f.err == nil, f.err
}

type harness struct {
	bot     *Bot
	api     *fakeAPI
	source  *manualSource
	engine  *fakeEngine
	remote  *fakeRemote
	updated *fakeQuestions
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		api:    &fakeAPI{},
		source: &manualSource{},
		engine: &fakeEngine{},
		remote: &fakeRemote{},
		updated: &fakeQuestions{questions: []models.Question{
			{ID: 1, UserID: 10, Topic: "Geo", Prompt: "Capital of France?", Options: []string{"Paris", "Lyon"}, CorrectAnswer: "Paris"},
		}},
	}
	store := optimistic.New[models.Question, models.QuestionPatch](
		optimistic.Config{SettleDelay: time.Minute, PendingTTL: time.Minute},
		h.remote,
		func(q models.Question, p models.QuestionPatch) models.Question { return p.ApplyTo(q) },
		nil, logger.NewNop(),
	)
	h.bot = newBot("token", h.api, Deps{
		Engine:    h.engine,
		Questions: h.updated,
		Stats:     h.updated,
		Store:     store,
		Sources:   func(int64) feed.Source { return h.source },
		Review:    review.Config{LoadingTimeout: time.Minute},
		Log:       logger.NewNop(),
	})
	t.Cleanup(h.bot.Stop)
	return h
}

func command(chatID int64, text string) *tgbotapi.Message {
	n := strings.IndexByte(text, ' ')
	if n < 0 {
		n = len(text)
	}
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}},
	}
}

func tap(chatID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}
}

func candidateFor(q models.Question) *models.ReviewCandidate {
	return &models.ReviewCandidate{Key: q.Key(), Question: q}
}

func TestBot_ReviewFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.bot.HandleCommand(ctx, command(10, "/review")))
	s := h.bot.session(10)
	require.NotNil(t, s)
	require.Eventually(t, func() bool { return h.api.contains("Loading") }, time.Second, 5*time.Millisecond)

	q1 := h.updated.questions[0]
	h.source.emit(feed.Ready(candidateFor(q1)))
	require.Eventually(t, func() bool { return h.api.contains("Capital of France?") }, time.Second, 5*time.Millisecond)

	lockID := s.ctrl.State().Lock.ID
	require.NoError(t, h.bot.HandleCallback(ctx, tap(10, encodeAnswerData(lockID, 0))))

	reqs := h.engine.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, q1.ID, reqs[0].QuestionID)
	assert.True(t, reqs[0].IsCorrect)
	assert.Equal(t, s.id, reqs[0].SessionID)
	assert.True(t, h.api.contains("Correct"))
	assert.True(t, s.ctrl.State().IsTransitioning)

	// second tap on the same keyboard
	require.NoError(t, h.bot.HandleCallback(ctx, tap(10, encodeAnswerData(lockID, 1))))
	assert.Len(t, h.engine.requests(), 1)
	assert.Equal(t, alreadyAnswered, h.api.lastCallback())

	q2 := models.Question{ID: 2, UserID: 10, Prompt: "Capital of Spain?", Options: []string{"Madrid"}, CorrectAnswer: "Madrid"}
	h.source.emit(feed.Ready(candidateFor(q2)))
	require.Eventually(t, func() bool { return h.api.contains("Capital of Spain?") }, time.Second, 5*time.Millisecond)
	assert.NotEqual(t, lockID, s.ctrl.State().Lock.ID)

	require.NoError(t, h.bot.HandleCommand(ctx, command(10, "/stop")))
	assert.Nil(t, h.bot.session(10))
}

func TestBot_FailedAnswerCanBeRetried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.engine.err = errors.New("database is locked")

	_, err := h.bot.startSession(ctx, 10, 10)
	require.NoError(t, err)
	h.source.emit(feed.Ready(candidateFor(h.updated.questions[0])))
	s := h.bot.session(10)
	lockID := s.ctrl.State().Lock.ID

	assert.Error(t, h.bot.HandleCallback(ctx, tap(10, encodeAnswerData(lockID, 0))))
	assert.False(t, s.ctrl.State().IsTransitioning)

	h.engine.setErr(nil)
	require.NoError(t, h.bot.HandleCallback(ctx, tap(10, encodeAnswerData(lockID, 0))))
	assert.Len(t, h.engine.requests(), 1)
}

func TestBot_EditIsVisibleImmediately(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.bot.HandleCommand(ctx, command(10, "/edit 1 prompt=Capital city of France?")))
	assert.Contains(t, h.api.last(), "Capital city of France?")
	h.bot.Wait()

	require.NoError(t, h.bot.HandleCommand(ctx, command(10, "/list")))
	assert.Contains(t, h.api.last(), "Capital city of France?")
}

func TestBot_FailedDeleteRestoresQuestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.remote.err = models.ErrNotAuthorized

	require.NoError(t, h.bot.HandleCommand(ctx, command(10, "/delete 1")))
	h.bot.Wait()

	require.NoError(t, h.bot.HandleCommand(ctx, command(10, "/list")))
	assert.Contains(t, h.api.last(), "Capital of France?")
}

func TestBot_DeleteHidesQuestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.bot.HandleCommand(ctx, command(10, "/delete 1")))
	h.bot.Wait()

	require.NoError(t, h.bot.HandleCommand(ctx, command(10, "/list")))
	assert.Contains(t, h.api.last(), "no questions yet")

	require.NoError(t, h.bot.HandleCommand(ctx, command(10, "/delete 1")))
	assert.Contains(t, h.api.last(), "not found")
}

func TestBot_Stats(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.bot.HandleCommand(context.Background(), command(10, "/stats")))
	assert.Contains(t, h.api.last(), "75% correct")
	assert.Contains(t, h.api.last(), "Mastered: 2")
	assert.Contains(t, h.api.last(), "Geo: 1")
}

func (h *harness) reviewFirst(t *testing.T) *reviewSession {
	t.Helper()
	_, err := h.bot.startSession(context.Background(), 10, 10)
	require.NoError(t, err)
	h.source.emit(feed.Ready(candidateFor(h.updated.questions[0])))
	require.Eventually(t, func() bool { return h.api.contains("Capital of France?") }, time.Second, 5*time.Millisecond)
	return h.bot.session(10)
}

func spain() models.Question {
	return models.Question{ID: 2, UserID: 10, Prompt: "Capital of Spain?", Options: []string{"Madrid"}, CorrectAnswer: "Madrid"}
}

func TestBot_DeletingShownQuestionMovesOn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.reviewFirst(t)
	lockID := s.ctrl.State().Lock.ID

	require.NoError(t, h.bot.HandleCommand(ctx, command(10, "/delete 1")))
	h.bot.Wait()
	assert.True(t, s.ctrl.State().IsTransitioning)
	assert.False(t, s.ctrl.IsLocked())

	// a tap on the deleted question's keyboard records nothing
	require.NoError(t, h.bot.HandleCallback(ctx, tap(10, encodeAnswerData(lockID, 0))))
	assert.Empty(t, h.engine.requests())

	h.source.emit(feed.Ready(candidateFor(spain())))
	require.Eventually(t, func() bool { return h.api.contains("Capital of Spain?") }, time.Second, 5*time.Millisecond)
	assert.False(t, s.ctrl.State().IsTransitioning)
}

func TestBot_PendingDeleteOfRedeliveredQuestionIsSkipped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.reviewFirst(t)

	require.NoError(t, h.bot.HandleCommand(ctx, command(10, "/delete 1")))
	h.bot.Wait()
	require.True(t, h.bot.deps.Store.IsPendingDelete(1))

	// the feed has not caught up with the delete yet
	h.source.emit(feed.Ready(candidateFor(h.updated.questions[0])))
	require.Eventually(t, func() bool {
		st := s.ctrl.State()
		return st.IsTransitioning && st.Lock == nil
	}, time.Second, 5*time.Millisecond)

	h.source.emit(feed.Ready(candidateFor(spain())))
	require.Eventually(t, func() bool { return h.api.contains("Capital of Spain?") }, time.Second, 5*time.Millisecond)
}

func TestBot_EditOfShownQuestionIsGradedAndRedrawn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.reviewFirst(t)
	lockID := s.ctrl.State().Lock.ID

	require.NoError(t, h.bot.HandleCommand(ctx, command(10, "/edit 1 prompt=Largest city of France? answer=Lyon")))
	h.bot.Wait()
	require.Eventually(t, func() bool { return h.api.contains("❓ Largest city of France?") }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.bot.HandleCallback(ctx, tap(10, encodeAnswerData(lockID, 1))))
	reqs := h.engine.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Lyon", reqs[0].Answer)
	assert.True(t, reqs[0].IsCorrect)
}

func TestBot_QuestionDeletedElsewhereReleasesLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.reviewFirst(t)
	lockID := s.ctrl.State().Lock.ID
	h.engine.setErr(models.ErrAlreadyDeleted)

	require.NoError(t, h.bot.HandleCallback(ctx, tap(10, encodeAnswerData(lockID, 0))))
	assert.Equal(t, questionGone, h.api.lastCallback())
	assert.True(t, s.ctrl.State().IsTransitioning)
	assert.False(t, s.ctrl.IsLocked())

	h.engine.setErr(nil)
	h.source.emit(feed.Ready(candidateFor(spain())))
	require.Eventually(t, func() bool { return h.api.contains("Capital of Spain?") }, time.Second, 5*time.Millisecond)
}
