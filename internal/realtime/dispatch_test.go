package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/auditsvc"
	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/channelsvc"
	"github.com/galynx/galynx/internal/reactionsvc"
	"github.com/galynx/galynx/internal/storage"
)

type dispatchFixture struct {
	store      *storage.Memory
	channels   *channelsvc.Service
	dispatcher *Dispatcher
	hub        *Hub
	actx       auth.Context
	channelID  uuid.UUID
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()

	store := storage.NewMemory()
	channels := channelsvc.NewService(store)
	reactions := reactionsvc.NewService(store, channels)
	audit := auditsvc.NewService(store)
	hub := NewHub(NewBus(zerolog.Nop()), nil, zerolog.Nop())

	wsID := uuid.New()
	userID := uuid.New()
	actx := auth.Context{UserID: userID, WorkspaceID: wsID, Role: storage.RoleOwner}

	ch, err := channels.CreateChannel(context.Background(), wsID, userID, "general", false)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}

	return &dispatchFixture{
		store:      store,
		channels:   channels,
		dispatcher: NewDispatcher(store, channels, reactions, audit, hub, zerolog.Nop()),
		hub:        hub,
		actx:       actx,
		channelID:  ch.ID,
	}
}

func mustFrame(t *testing.T, command string, clientMsgID string, payload any) CommandFrame {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	frame := CommandFrame{Command: command, Payload: raw}
	if clientMsgID != "" {
		frame.ClientMsgID = &clientMsgID
	}
	return frame
}

func resultMap(t *testing.T, result any) map[string]any {
	t.Helper()
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("result type = %T, want map", result)
	}
	return m
}

func TestDispatchSendMessageCreatesAndBroadcasts(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)

	sub := f.hub.Subscribe(f.actx.WorkspaceID)
	defer sub.Unsubscribe()

	frame := mustFrame(t, CmdSendMessage, "c1", map[string]string{
		"channel_id": f.channelID.String(),
		"body_md":    "hi",
	})
	result, err := f.dispatcher.Dispatch(context.Background(), f.actx, frame)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	m := resultMap(t, result)
	if m["message_id"] == "" {
		t.Fatal("ack carries no message_id")
	}
	if m["deduped"] != nil {
		t.Fatal("first send must not be deduped")
	}

	select {
	case env := <-sub.C:
		if env.EventType != EventMessageCreated {
			t.Fatalf("broadcast event_type = %q, want %q", env.EventType, EventMessageCreated)
		}
		if env.CorrelationID == nil || *env.CorrelationID != "c1" {
			t.Fatalf("correlation_id = %v, want c1", env.CorrelationID)
		}
	case <-time.After(time.Second):
		t.Fatal("no MESSAGE_CREATED broadcast")
	}
}

func TestDispatchSendMessageDedupReturnsOriginal(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)
	ctx := context.Background()

	frame := mustFrame(t, CmdSendMessage, "c1", map[string]string{
		"channel_id": f.channelID.String(),
		"body_md":    "hi",
	})

	first, err := f.dispatcher.Dispatch(ctx, f.actx, frame)
	if err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}
	second, err := f.dispatcher.Dispatch(ctx, f.actx, frame)
	if err != nil {
		t.Fatalf("second Dispatch() error = %v", err)
	}

	firstID := resultMap(t, first)["message_id"]
	secondM := resultMap(t, second)
	if secondM["message_id"] != firstID {
		t.Fatalf("replayed message_id = %v, want %v", secondM["message_id"], firstID)
	}
	if secondM["deduped"] != true {
		t.Fatal("replay must report deduped=true")
	}

	page, err := f.channels.ListMessages(ctx, f.actx.WorkspaceID, f.actx.UserID, f.actx.Role, f.channelID, nil, "", 10)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("message count = %d, want 1 (replay must not persist a duplicate)", len(page.Items))
	}
}

func TestDispatchDistinctClientMsgIDsCreateDistinctMessages(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)
	ctx := context.Background()

	for _, id := range []string{"c1", "c2"} {
		frame := mustFrame(t, CmdSendMessage, id, map[string]string{
			"channel_id": f.channelID.String(),
			"body_md":    "hi " + id,
		})
		if _, err := f.dispatcher.Dispatch(ctx, f.actx, frame); err != nil {
			t.Fatalf("Dispatch(%s) error = %v", id, err)
		}
	}

	page, err := f.channels.ListMessages(ctx, f.actx.WorkspaceID, f.actx.UserID, f.actx.Role, f.channelID, nil, "", 10)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("message count = %d, want 2", len(page.Items))
	}
}

func TestDispatchRejectsOversizedClientMsgID(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)

	frame := mustFrame(t, CmdSendMessage, strings.Repeat("x", maxClientMsgIDLen+1), map[string]string{
		"channel_id": f.channelID.String(),
		"body_md":    "hi",
	})
	_, err := f.dispatcher.Dispatch(context.Background(), f.actx, frame)
	cmdErr := TranslateError(err)
	if cmdErr.Status != 400 {
		t.Fatalf("status = %d, want 400", cmdErr.Status)
	}
}

func TestDispatchRejectsUnknownCommand(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)

	frame := mustFrame(t, "SELF_DESTRUCT", "", map[string]string{})
	_, err := f.dispatcher.Dispatch(context.Background(), f.actx, frame)
	cmdErr := TranslateError(err)
	if cmdErr.Status != 400 {
		t.Fatalf("status = %d, want 400", cmdErr.Status)
	}
}

func TestDispatchEditMessageDedupSkipsSecondApply(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)
	ctx := context.Background()

	msg, err := f.channels.PostMessage(ctx, f.actx.WorkspaceID, f.actx.UserID, f.actx.Role, f.channelID, "original", nil)
	if err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}

	frame := mustFrame(t, CmdEditMessage, "e1", map[string]string{
		"message_id": msg.ID.String(),
		"body_md":    "edited",
	})
	if _, err := f.dispatcher.Dispatch(ctx, f.actx, frame); err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}

	second, err := f.dispatcher.Dispatch(ctx, f.actx, frame)
	if err != nil {
		t.Fatalf("second Dispatch() error = %v", err)
	}
	if resultMap(t, second)["deduped"] != true {
		t.Fatal("replayed edit must report deduped=true")
	}
}

func TestDispatchFetchMorePaginates(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.channels.PostMessage(ctx, f.actx.WorkspaceID, f.actx.UserID, f.actx.Role, f.channelID, fmt.Sprintf("m%d", i), nil); err != nil {
			t.Fatalf("PostMessage() error = %v", err)
		}
	}

	frame := mustFrame(t, CmdFetchMore, "", map[string]any{
		"channel_id": f.channelID.String(),
		"limit":      2,
	})
	result, err := f.dispatcher.Dispatch(ctx, f.actx, frame)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	page, ok := result.(PageModel)
	if !ok {
		t.Fatalf("result type = %T, want PageModel", result)
	}
	if len(page.Items) != 2 {
		t.Fatalf("page length = %d, want 2", len(page.Items))
	}
	if page.NextCursor == nil {
		t.Fatal("next_cursor = nil, want non-nil with one message remaining")
	}
}

func TestDispatchReactionRoundTrip(t *testing.T) {
	t.Parallel()
	f := newDispatchFixture(t)
	ctx := context.Background()

	msg, err := f.channels.PostMessage(ctx, f.actx.WorkspaceID, f.actx.UserID, f.actx.Role, f.channelID, "hello", nil)
	if err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}

	sub := f.hub.Subscribe(f.actx.WorkspaceID)
	defer sub.Unsubscribe()

	nextReaction := func() ReactionModel {
		t.Helper()
		select {
		case env := <-sub.C:
			if env.EventType != EventReactionUpdated {
				t.Fatalf("event_type = %q, want %q", env.EventType, EventReactionUpdated)
			}
			agg, ok := env.Payload.(ReactionModel)
			if !ok {
				t.Fatalf("payload type = %T, want ReactionModel", env.Payload)
			}
			return agg
		case <-time.After(time.Second):
			t.Fatal("no REACTION_UPDATED broadcast")
			return ReactionModel{}
		}
	}

	add := mustFrame(t, CmdAddReaction, "", map[string]string{"message_id": msg.ID.String(), "emoji": "🔥"})
	result, err := f.dispatcher.Dispatch(ctx, f.actx, add)
	if err != nil {
		t.Fatalf("Dispatch(add) error = %v", err)
	}
	if resultMap(t, result)["ok"] != true {
		t.Fatalf("add ack = %v, want ok", result)
	}
	if agg := nextReaction(); agg.Count != 1 || agg.Op != "added" {
		t.Fatalf("reaction after add = %+v, want count 1, op added", agg)
	}

	remove := mustFrame(t, CmdRemoveReaction, "", map[string]string{"message_id": msg.ID.String(), "emoji": "🔥"})
	result, err = f.dispatcher.Dispatch(ctx, f.actx, remove)
	if err != nil {
		t.Fatalf("Dispatch(remove) error = %v", err)
	}
	if resultMap(t, result)["ok"] != true {
		t.Fatalf("remove ack = %v, want ok", result)
	}
	if agg := nextReaction(); agg.Count != 0 || agg.Op != "removed" {
		t.Fatalf("reaction after remove = %+v, want count 0, op removed", agg)
	}
}
