package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/scry/pkg/models"
)

func cand(concept string) *models.ReviewCandidate {
	return &models.ReviewCandidate{
		Key: models.CandidateKey{ConceptID: concept, PhrasingID: "p1"},
		Question: models.Question{
			ID:        1,
			ConceptID: concept,
			Prompt:    "What is " + concept + "?",
		},
	}
}

func reviewing(c *models.ReviewCandidate, lockID string) State {
	return Reduce(InitialState(), CandidateReceived(c, lockID, time.Unix(0, 0)))
}

func TestReduce_CandidateReceived(t *testing.T) {
	c1 := cand("c1")
	s := reviewing(c1, "lock-1")

	assert.Equal(t, PhaseReviewing, s.Phase)
	assert.Same(t, c1, s.Candidate)
	if assert.NotNil(t, s.Lock) {
		assert.Equal(t, "lock-1", s.Lock.ID)
		assert.Equal(t, c1.Key, s.Lock.Key)
	}
	assert.False(t, s.IsTransitioning)
	assert.Empty(t, s.ErrorMessage)
}

func TestReduce_CandidateReceivedWhileLockedIsNoop(t *testing.T) {
	s := reviewing(cand("c1"), "lock-1")
	next := Reduce(s, CandidateReceived(cand("c2"), "lock-2", time.Now()))

	assert.True(t, s.Equal(next))
	assert.Equal(t, "c1", next.Candidate.Key.ConceptID)
}

func TestReduce_CandidateReceivedRequiresLockID(t *testing.T) {
	s := Reduce(InitialState(), CandidateReceived(cand("c1"), "", time.Now()))
	assert.Equal(t, PhaseLoading, s.Phase)

	s = Reduce(InitialState(), CandidateReceived(nil, "lock-1", time.Now()))
	assert.Equal(t, PhaseLoading, s.Phase)
}

func TestReduce_ReviewCompleteKeepsCandidate(t *testing.T) {
	c1 := cand("c1")
	s := Reduce(reviewing(c1, "lock-1"), ReviewComplete())

	assert.Equal(t, PhaseReviewing, s.Phase)
	assert.Same(t, c1, s.Candidate)
	assert.Nil(t, s.Lock)
	assert.True(t, s.IsTransitioning)
}

func TestReduce_ReviewCompleteOutsideReviewIsNoop(t *testing.T) {
	for _, s := range []State{InitialState(), {Phase: PhaseEmpty}, {Phase: PhaseError, ErrorMessage: TimeoutMessage}} {
		assert.True(t, s.Equal(Reduce(s, ReviewComplete())), s.Phase)
	}

	transitioning := Reduce(reviewing(cand("c1"), "lock-1"), ReviewComplete())
	assert.True(t, transitioning.Equal(Reduce(transitioning, ReviewComplete())))
}

func TestReduce_ReReviewAfterComplete(t *testing.T) {
	c1 := cand("c1")
	s := Reduce(reviewing(c1, "lock-1"), ReviewComplete())
	s = Reduce(s, CandidateReceived(c1, "lock-2", time.Now()))

	assert.Equal(t, PhaseReviewing, s.Phase)
	assert.False(t, s.IsTransitioning)
	assert.Equal(t, "lock-2", s.Lock.ID)
}

func TestReduce_LoadEmptyClearsEverything(t *testing.T) {
	states := []State{
		InitialState(),
		reviewing(cand("c1"), "lock-1"),
		Reduce(reviewing(cand("c1"), "lock-1"), ReviewComplete()),
		{Phase: PhaseError, ErrorMessage: TimeoutMessage, Candidate: cand("c1")},
	}
	for _, s := range states {
		next := Reduce(s, LoadEmpty())
		assert.Equal(t, PhaseEmpty, next.Phase)
		assert.Nil(t, next.Candidate)
		assert.Nil(t, next.Lock)
		assert.Empty(t, next.ErrorMessage)
		assert.False(t, next.IsTransitioning)
	}
}

func TestReduce_LoadTimeout(t *testing.T) {
	s := Reduce(InitialState(), LoadTimeout())
	assert.Equal(t, PhaseError, s.Phase)
	assert.Equal(t, TimeoutMessage, s.ErrorMessage)

	c1 := cand("c1")
	s = Reduce(Reduce(reviewing(c1, "lock-1"), ReviewComplete()), LoadTimeout())
	assert.Equal(t, PhaseError, s.Phase)
	assert.Same(t, c1, s.Candidate)
	assert.False(t, s.IsTransitioning)
	assert.NotEmpty(t, s.ErrorMessage)
}

func TestReduce_LoadTimeoutIgnoredWhenSettled(t *testing.T) {
	settled := []State{reviewing(cand("c1"), "lock-1"), {Phase: PhaseEmpty}}
	for _, s := range settled {
		assert.True(t, s.Equal(Reduce(s, LoadTimeout())), s.Phase)
	}
}

func TestReduce_LoadStartClearsTransitioning(t *testing.T) {
	s := Reduce(reviewing(cand("c1"), "lock-1"), ReviewComplete())
	s = Reduce(s, LoadStart())

	assert.Equal(t, PhaseLoading, s.Phase)
	assert.False(t, s.IsTransitioning)
}

func TestReduce_IgnoreIsNoop(t *testing.T) {
	s := reviewing(cand("c1"), "lock-1")
	next := Reduce(s, Ignore("unchanged payload"))

	assert.True(t, s.Equal(next))
	assert.Same(t, s.Candidate, next.Candidate)
	assert.Same(t, s.Lock, next.Lock)
}

func TestState_Equal(t *testing.T) {
	a := reviewing(cand("c1"), "lock-1")
	b := reviewing(cand("c1"), "lock-1")
	assert.True(t, a.Equal(b))

	c := reviewing(cand("c1"), "lock-2")
	assert.False(t, a.Equal(c))

	d := reviewing(cand("c2"), "lock-1")
	assert.False(t, a.Equal(d))
}
