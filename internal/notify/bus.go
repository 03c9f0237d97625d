// Package notify carries user-facing notices (toasts) from background work to
// whichever presenter is showing that user.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/example/scry/internal/logger"
)

const (
	module = "Notify"
	topic  = "scry.notices"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is one message meant for a user.
type Notice struct {
	UserID   int64  `json:"user_id"`
	Level    Level  `json:"level"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

// Bus is an in-process pub/sub for notices.
type Bus struct {
	pubSub *gochannel.GoChannel
	log    logger.ILogger
}

func NewBus(log logger.ILogger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NopLogger{},
	)
	return &Bus{pubSub: pubSub, log: log}
}

// Notify publishes n. Notices without subscribers are dropped.
func (b *Bus) Notify(ctx context.Context, n Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := b.pubSub.Publish(topic, msg); err != nil {
		b.log.Error(module, "Failed to publish notice", map[string]interface{}{
			"error":   err,
			"user_id": n.UserID,
		})
		return err
	}
	return nil
}

// Subscribe streams notices until ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Notice, error) {
	messages, err := b.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Notice, 16)
	go func() {
		defer close(out)
		for msg := range messages {
			var n Notice
			if err := json.Unmarshal(msg.Payload, &n); err != nil {
				b.log.Warn(module, "Dropping malformed notice", map[string]interface{}{
					"error": err.Error(),
					"uuid":  msg.UUID,
				})
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
