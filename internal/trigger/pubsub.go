package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Receiver delivers Pub/Sub messages. *pubsub.Subscriber satisfies it.
type Receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// PubSubConfig holds configuration for a PubSub trigger.
type PubSubConfig struct {
	Target   Target
	Receiver Receiver

	// MaxAge drops commands published longer ago (default DefaultMaxAge).
	MaxAge time.Duration

	Now    func() time.Time
	Logger zerolog.Logger
}

// PubSub applies remote commands from a subscription.
type PubSub struct {
	target   Target
	receiver Receiver
	maxAge   time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	closer   func() error
}

// NewPubSub creates a PubSub trigger over an existing receiver.
func NewPubSub(cfg PubSubConfig) *PubSub {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &PubSub{
		target:   cfg.Target,
		receiver: cfg.Receiver,
		maxAge:   maxAge,
		now:      now,
		logger:   cfg.Logger.With().Str("component", "pubsub_trigger").Logger(),
		closer:   func() error { return nil },
	}
}

// DialPubSub connects to Google Cloud Pub/Sub and subscribes to
// subscription in project.
func DialPubSub(ctx context.Context, project, subscription string, cfg PubSubConfig) (*PubSub, error) {
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(subscription)
	// Commands are tiny and each one supersedes the last.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = time.Minute

	cfg.Receiver = subscriber
	p := NewPubSub(cfg)
	p.closer = client.Close
	p.logger = p.logger.With().Str("subscription", subscription).Logger()
	return p, nil
}

// Run receives until ctx is done.
func (p *PubSub) Run(ctx context.Context) error {
	p.logger.Info().Msg("starting pubsub trigger")

	err := p.receiver.Receive(ctx, p.handleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receiving commands: %w", err)
	}
	return nil
}

// Close releases the Pub/Sub client, if any.
func (p *PubSub) Close() error {
	return p.closer()
}

// handleMessage acks every message: refreshes never fail synchronously and
// a malformed command will not improve on redelivery.
func (p *PubSub) handleMessage(_ context.Context, msg *pubsub.Message) {
	defer msg.Ack()

	logger := p.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	if !msg.PublishTime.IsZero() && p.now().Sub(msg.PublishTime) > p.maxAge {
		logger.Warn().Dur("max_age", p.maxAge).Msg("dropping stale command")
		return
	}

	cmd, err := ParseCommand(msg.Data)
	if err != nil {
		logger.Warn().Err(err).Msg("rejecting command")
		return
	}

	started := Apply(p.target, cmd)
	logger.Info().
		Str("action", cmd.Action).
		Bool("refresh_started", started).
		Msg("command applied")
}
