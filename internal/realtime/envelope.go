// Package realtime implements the per-workspace event fan-out hub: a local
// broadcast bus, an optional cross-instance pub/sub bridge over Redis, and
// the WebSocket session loop that bridges a connection to the bus and
// dispatches inbound commands to the domain services.
package realtime

import "github.com/google/uuid"

// EventType names a broadcast or control event carried by the hub.
type EventType string

const (
	EventWelcome         EventType = "WELCOME"
	EventAck             EventType = "ACK"
	EventError           EventType = "ERROR"
	EventChannelCreated  EventType = "CHANNEL_CREATED"
	EventChannelDeleted  EventType = "CHANNEL_DELETED"
	EventMessageCreated  EventType = "MESSAGE_CREATED"
	EventMessageUpdated  EventType = "MESSAGE_UPDATED"
	EventMessageDeleted  EventType = "MESSAGE_DELETED"
	EventReactionUpdated EventType = "REACTION_UPDATED"
	EventThreadUpdated   EventType = "THREAD_UPDATED"
)

// Envelope is the shape of every event moving through the bus, the
// cross-instance bridge, and the wire to connected clients.
type Envelope struct {
	EventType     EventType   `json:"event_type"`
	WorkspaceID   *uuid.UUID  `json:"workspace_id,omitempty"`
	ChannelID     *uuid.UUID  `json:"channel_id,omitempty"`
	CorrelationID *string     `json:"correlation_id,omitempty"`
	ServerTS      int64       `json:"server_ts"`
	Payload       interface{} `json:"payload"`
}

// bridgeMessage is the wire format published to and consumed from the
// cross-instance pub/sub topic.
type bridgeMessage struct {
	SourceInstanceID string   `json:"source_instance_id"`
	Event            Envelope `json:"event"`
}
