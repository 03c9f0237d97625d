package cli

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/example/scry/internal/bot"
	"github.com/example/scry/internal/config"
	"github.com/example/scry/internal/database"
	"github.com/example/scry/internal/feed"
	"github.com/example/scry/internal/logger"
	"github.com/example/scry/internal/notify"
	"github.com/example/scry/internal/optimistic"
	"github.com/example/scry/internal/review"
	"github.com/example/scry/internal/scheduler"
	"github.com/example/scry/internal/spaced_repetition"
	"github.com/example/scry/pkg/models"
)

const module = "CLI"

// NewServeCommand creates the command that runs the Telegram bot.
func NewServeCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := setup(root)
			defer log.Sync()
			return runServe(cmd.Context(), cfg, log)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, log logger.ILogger) error {
	if err := requireToken(cfg); err != nil {
		return err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	questions := database.NewQuestionRepository(db)
	engine := spaced_repetition.NewEngine(
		questions,
		database.NewProgressRepository(db),
		database.NewInteractionRepository(db),
		spaced_repetition.NewSM2(cfg.Review.RequeueDelay),
		log,
	)

	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	sources, closeSources, err := sourceFactory(cfg.Feed, engine, sched, log)
	if err != nil {
		return err
	}
	defer closeSources()

	notices := notify.NewBus(log)
	defer notices.Close()

	store := optimistic.New[models.Question, models.QuestionPatch](
		optimistic.Config{SettleDelay: cfg.Review.SettleDelay, PendingTTL: cfg.Review.PendingTTL},
		questions,
		func(q models.Question, p models.QuestionPatch) models.Question { return p.ApplyTo(q) },
		notices,
		log,
	)

	b, err := bot.New(cfg.Telegram.Token, bot.Deps{
		Engine:    engine,
		Questions: questions,
		Stats:     database.NewStatisticsRepository(db),
		Store:     store,
		Notices:   notices,
		Sources:   sources,
		Review:    review.Config{LoadingTimeout: cfg.Review.LoadingTimeout},
		Log:       log,
	})
	if err != nil {
		return err
	}

	log.Info(module, "Bot starting", map[string]interface{}{
		"db":        cfg.Database.Type,
		"transport": cfg.Feed.Transport,
	})
	err = b.Start(ctx)
	b.Wait()
	log.Info(module, "Bot stopped successfully", nil)
	return err
}

// sourceFactory picks how review sessions receive their next question: by
// polling the engine in-process, or from snapshots a relay publishes on NATS.
func sourceFactory(cfg config.FeedConfig, engine *spaced_repetition.Engine, sched *scheduler.Scheduler, log logger.ILogger) (bot.SourceFactory, func(), error) {
	switch cfg.Transport {
	case "", "poll":
		return func(userID int64) feed.Source {
			return feed.NewPoller(fmt.Sprintf("user:%d", userID), nextDue(engine, userID), cfg.PollInterval, sched, log)
		}, func() {}, nil

	case "nats":
		nc, err := feed.ConnectNATS(cfg.NatsURL, log)
		if err != nil {
			return nil, nil, err
		}
		return func(userID int64) feed.Source {
			return feed.NewNATSSource(nc, userID, log)
		}, func() { drain(nc, log) }, nil
	}
	return nil, nil, fmt.Errorf("unknown feed transport %q", cfg.Transport)
}

func nextDue(engine *spaced_repetition.Engine, userID int64) feed.FetchFunc {
	return func(ctx context.Context) (*models.ReviewCandidate, error) {
		return engine.GetNextDue(ctx, userID)
	}
}

func drain(nc *nats.Conn, log logger.ILogger) {
	if err := nc.Drain(); err != nil {
		log.Warn(module, "NATS drain failed", map[string]interface{}{"error": err.Error()})
	}
}
