package realtime

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/storage"
)

// Hub ties the local broadcast bus to the optional cross-instance bridge.
// Emit always delivers locally first; cross-instance publication is queued
// and retried in the background so local subscribers never wait on Redis.
type Hub struct {
	bus    *Bus
	bridge *Bridge
	log    zerolog.Logger
}

// NewHub constructs a Hub. bridge may be nil for single-instance deployments
// with no pub/sub configured.
func NewHub(bus *Bus, bridge *Bridge, logger zerolog.Logger) *Hub {
	return &Hub{
		bus:    bus,
		bridge: bridge,
		log:    logger.With().Str("component", "realtime.hub").Logger(),
	}
}

// Subscribe attaches a new subscriber to workspaceID's broadcast channel.
func (h *Hub) Subscribe(workspaceID uuid.UUID) *Subscription {
	return h.bus.Subscribe(workspaceID)
}

// Emit stamps env with workspaceID and the current server time, publishes it
// on the local bus, and, when a bridge is configured, enqueues it for
// cross-instance publication.
func (h *Hub) Emit(workspaceID uuid.UUID, env Envelope) {
	if env.WorkspaceID == nil {
		env.WorkspaceID = &workspaceID
	}
	if env.ServerTS == 0 {
		env.ServerTS = storage.NowMillis()
	}

	h.bus.Publish(workspaceID, env)
	if h.bridge != nil {
		h.bridge.Enqueue(env)
	}
}

// NewEvent builds a broadcast envelope for a workspace event.
func NewEvent(eventType EventType, workspaceID uuid.UUID, channelID *uuid.UUID, correlationID *string, payload any) Envelope {
	return Envelope{
		EventType:     eventType,
		WorkspaceID:   &workspaceID,
		ChannelID:     channelID,
		CorrelationID: correlationID,
		ServerTS:      storage.NowMillis(),
		Payload:       payload,
	}
}
