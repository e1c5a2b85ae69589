package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// bridgeTopic is the pub/sub channel every galynx instance publishes to and
// subscribes from.
const bridgeTopic = "galynx:ws:events"

const (
	publishRetryBackoff  = 400 * time.Millisecond
	subscribeReconnectDelay = time.Second
)

// Bridge re-publishes local bus events to every other instance over Redis
// pub/sub, and re-injects events published by other instances into the
// local bus. Each process gets a random instance tag so its own events,
// echoed back by Redis, are recognized and dropped rather than
// double-delivered.
type Bridge struct {
	rdb        *redis.Client
	bus        *Bus
	instanceID string
	outbox     *outbox
	log        zerolog.Logger
}

// NewBridge constructs a Bridge. Call Run in its own goroutine once; Run
// blocks until ctx is cancelled.
func NewBridge(rdb *redis.Client, bus *Bus, logger zerolog.Logger) *Bridge {
	return &Bridge{
		rdb:        rdb,
		bus:        bus,
		instanceID: uuid.NewString(),
		outbox:     newOutbox(),
		log:        logger.With().Str("component", "realtime.bridge").Logger(),
	}
}

// Enqueue schedules env for cross-instance publication. It returns
// immediately; the publisher worker retries until it succeeds.
func (br *Bridge) Enqueue(env Envelope) {
	br.outbox.push(env)
}

// Run starts the publisher and subscriber workers and blocks until ctx is
// cancelled.
func (br *Bridge) Run(ctx context.Context) {
	// Closing the outbox unblocks a publisher waiting in pop once ctx ends.
	go func() {
		<-ctx.Done()
		br.outbox.close()
	}()

	done := make(chan struct{})
	go func() {
		br.runPublisher(ctx)
		close(done)
	}()
	br.runSubscriber(ctx)
	<-done
}

// runPublisher drains the outbox and publishes each event to Redis, retrying
// with a fixed backoff on failure rather than dropping it.
func (br *Bridge) runPublisher(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			br.outbox.close()
			return
		}

		env, ok := br.outbox.pop()
		if !ok {
			return
		}

		msg := bridgeMessage{SourceInstanceID: br.instanceID, Event: env}
		payload, err := json.Marshal(msg)
		if err != nil {
			br.log.Warn().Err(err).Msg("failed to marshal bridge message, dropping")
			continue
		}

		for {
			if err := br.rdb.Publish(ctx, bridgeTopic, payload).Err(); err != nil {
				br.log.Warn().Err(err).Msg("bridge publish failed, retrying")
				select {
				case <-ctx.Done():
					return
				case <-time.After(publishRetryBackoff):
					continue
				}
			}
			break
		}
	}
}

// runSubscriber subscribes to the bridge topic and re-injects every event
// that did not originate on this instance into the local bus. It reconnects
// with a fixed delay on any subscription error and never returns on its own.
func (br *Bridge) runSubscriber(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		br.subscribeOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(subscribeReconnectDelay):
		}
	}
}

func (br *Bridge) subscribeOnce(ctx context.Context) {
	sub := br.rdb.Subscribe(ctx, bridgeTopic)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			br.handleMessage(msg.Payload)
		}
	}
}

func (br *Bridge) handleMessage(payload string) {
	var msg bridgeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		br.log.Warn().Err(err).Msg("invalid bridge message, dropping")
		return
	}
	if msg.SourceInstanceID == br.instanceID {
		return
	}
	if msg.Event.WorkspaceID == nil {
		return
	}
	br.bus.Publish(*msg.Event.WorkspaceID, msg.Event)
}
