package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/scry/internal/logger"
	"github.com/nats-io/nats.go"
)

const natsModule = "NATSFeed"

// ConnectNATS dials url and keeps reconnecting in the background.
func ConnectNATS(url string, log logger.ILogger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("scry"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(natsModule, "Disconnected", map[string]interface{}{"error": err.Error()})
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info(natsModule, "Reconnected", map[string]interface{}{"url": nc.ConnectedUrl()})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// Subject returns the subject snapshots for a user are published on.
func Subject(userID int64) string {
	return fmt.Sprintf("scry.next.%d", userID)
}

// RefreshSubject is where a consumer asks the relay for an out of band fetch.
func RefreshSubject(userID int64) string {
	return fmt.Sprintf("scry.refresh.%d", userID)
}

// EncodeSnapshot renders a snapshot in the wire format used on NATS.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses the wire format. Unknown statuses are rejected.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	switch s.Status {
	case StatusPending, StatusEmpty:
		s.Candidate = nil
	case StatusReady:
		if s.Candidate == nil {
			return Snapshot{}, fmt.Errorf("ready snapshot without candidate")
		}
	default:
		return Snapshot{}, fmt.Errorf("unknown snapshot status %q", s.Status)
	}
	return s, nil
}

// NATSSource receives snapshots pushed by a relay instead of polling.
type NATSSource struct {
	nc      *nats.Conn
	subject string
	refresh string
	log     logger.ILogger
}

func NewNATSSource(nc *nats.Conn, userID int64, log logger.ILogger) *NATSSource {
	return &NATSSource{nc: nc, subject: Subject(userID), refresh: RefreshSubject(userID), log: log}
}

// Refresh asks the relay to fetch right away.
func (s *NATSSource) Refresh() {
	if err := s.nc.Publish(s.refresh, nil); err != nil {
		s.log.Warn(natsModule, "Refresh request failed", map[string]interface{}{"subject": s.refresh, "error": err.Error()})
	}
}

func (s *NATSSource) Subscribe(ctx context.Context, fn func(Snapshot)) (func(), error) {
	fn(Pending())

	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		snap, err := DecodeSnapshot(msg.Data)
		if err != nil {
			s.log.Warn(natsModule, "Dropping malformed snapshot", map[string]interface{}{
				"subject": msg.Subject,
				"error":   err.Error(),
			})
			return
		}
		fn(snap)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			s.log.Warn(natsModule, "Unsubscribe failed", map[string]interface{}{"subject": s.subject, "error": err.Error()})
		}
	}, nil
}

// NATSPublisher pushes snapshots for the relay.
type NATSPublisher struct {
	nc *nats.Conn
}

func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

func (p *NATSPublisher) Publish(userID int64, s Snapshot) error {
	data, err := EncodeSnapshot(s)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(Subject(userID), data); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// OnRefresh calls fn whenever a consumer of userID's feed asks for a refresh.
func (p *NATSPublisher) OnRefresh(userID int64, fn func()) (func(), error) {
	sub, err := p.nc.Subscribe(RefreshSubject(userID), func(*nats.Msg) { fn() })
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to refresh requests: %w", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}
