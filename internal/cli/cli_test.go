package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/scry/internal/config"
	"github.com/example/scry/internal/feed"
	"github.com/example/scry/internal/logger"
	"github.com/example/scry/internal/scheduler"
	"github.com/example/scry/pkg/models"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "import", "relay"}, names)
}

func TestImportCommand_RequiresUser(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"import", "-v", "questions.xlsx"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user")
}

func TestImportCommand_RequiresFile(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"import", "--user", "1"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestSourceFactory_Poll(t *testing.T) {
	sched := scheduler.New(logger.NewNop())
	sources, closeFn, err := sourceFactory(config.FeedConfig{Transport: "poll", PollInterval: time.Second}, nil, sched, logger.NewNop())
	require.NoError(t, err)
	defer closeFn()

	_, ok := sources(1).(*feed.Poller)
	assert.True(t, ok)
}

func TestSourceFactory_Unknown(t *testing.T) {
	_, _, err := sourceFactory(config.FeedConfig{Transport: "carrier-pigeon"}, nil, nil, logger.NewNop())
	assert.Error(t, err)
}

type fakeUsers struct {
	ids []int64
	err error
}

func (f *fakeUsers) ListUserIDs(ctx context.Context) ([]int64, error) {
	return f.ids, f.err
}

type nopBroker struct {
	mu        sync.Mutex
	refreshes int
}

func (b *nopBroker) Publish(userID int64, s feed.Snapshot) error { return nil }

func (b *nopBroker) OnRefresh(userID int64, fn func()) (func(), error) {
	b.mu.Lock()
	b.refreshes++
	b.mu.Unlock()
	return func() {}, nil
}

func TestWatchAll(t *testing.T) {
	log := logger.NewNop()
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	broker := &nopBroker{}
	relay := feed.NewRelay(broker, broker, sched, time.Hour, func(userID int64) feed.FetchFunc {
		return func(ctx context.Context) (*models.ReviewCandidate, error) { return nil, nil }
	}, log)
	defer relay.Close()

	users := &fakeUsers{ids: []int64{1, 2}}
	watchAll(context.Background(), relay, users, log)
	assert.Equal(t, 2, relay.Watching())

	// a rescan only adds new users
	users.ids = []int64{1, 2, 3}
	watchAll(context.Background(), relay, users, log)
	assert.Equal(t, 3, relay.Watching())
	assert.Equal(t, 3, broker.refreshes)

	users.err = errors.New("db down")
	watchAll(context.Background(), relay, users, log)
	assert.Equal(t, 3, relay.Watching())
}
