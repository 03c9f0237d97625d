package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/scry/internal/database"
	"github.com/example/scry/internal/feed"
	"github.com/example/scry/internal/logger"
	"github.com/example/scry/internal/scheduler"
	"github.com/example/scry/internal/spaced_repetition"
)

// NewRelayCommand creates the command that publishes every user's feed on NATS.
func NewRelayCommand(root *RootOptions) *cobra.Command {
	var rescan time.Duration

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Poll due questions and publish them on NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := setup(root)
			defer log.Sync()

			db, err := database.Connect(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer database.Close()

			nc, err := feed.ConnectNATS(cfg.Feed.NatsURL, log)
			if err != nil {
				return err
			}
			defer drain(nc, log)

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

			pub := feed.NewNATSPublisher(nc)
			relay := feed.NewRelay(pub, pub, sched, cfg.Feed.PollInterval, func(userID int64) feed.FetchFunc {
				return nextDue(engine, userID)
			}, log)
			defer relay.Close()

			ctx := cmd.Context()
			// users appear as they import questions
			stop, err := sched.Every(rescan, "relay:rescan", func() {
				watchAll(ctx, relay, questions, log)
			})
			if err != nil {
				return err
			}
			defer stop()

			log.Info(module, "Relay started", map[string]interface{}{"nats": cfg.Feed.NatsURL})
			<-ctx.Done()
			log.Info(module, "Relay stopped", map[string]interface{}{"users": relay.Watching()})
			return nil
		},
	}

	cmd.Flags().DurationVar(&rescan, "rescan", time.Minute, "how often to look for new users")
	return cmd
}

type userLister interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

func watchAll(ctx context.Context, relay *feed.Relay, users userLister, log logger.ILogger) {
	ids, err := users.ListUserIDs(ctx)
	if err != nil {
		log.Error(module, "Failed to list users", map[string]interface{}{"error": err})
		return
	}
	for _, id := range ids {
		if err := relay.Watch(ctx, id); err != nil {
			log.Warn(module, "Failed to watch user", map[string]interface{}{"user_id": id, "error": err.Error()})
		}
	}
}
