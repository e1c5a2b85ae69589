package reactionsvc

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/galynx/galynx/internal/channelsvc"
	"github.com/galynx/galynx/internal/storage"
)

func newFixture(t *testing.T) (*Service, *channelsvc.Service, uuid.UUID, uuid.UUID, storage.Message) {
	t.Helper()
	store := storage.NewMemory()
	chSvc := channelsvc.NewService(store)
	wsID := uuid.New()
	owner := uuid.New()

	ch, err := chSvc.CreateChannel(context.Background(), wsID, owner, "general", false)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	msg, err := chSvc.PostMessage(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, "hi", nil)
	if err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}

	return NewService(store, chSvc), chSvc, wsID, owner, msg
}

func TestAddReactionIsIdempotent(t *testing.T) {
	t.Parallel()
	svc, _, wsID, owner, msg := newFixture(t)

	agg1, err := svc.Add(context.Background(), wsID, owner, storage.RoleOwner, msg.ID, "👍")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if agg1.Count != 1 {
		t.Fatalf("Count = %d, want 1", agg1.Count)
	}

	agg2, err := svc.Add(context.Background(), wsID, owner, storage.RoleOwner, msg.ID, "👍")
	if err != nil {
		t.Fatalf("Add() second call error = %v", err)
	}
	if agg2.Count != 1 {
		t.Errorf("Count after duplicate add = %d, want 1", agg2.Count)
	}
}

func TestRemoveNonexistentReactionDoesNotError(t *testing.T) {
	t.Parallel()
	svc, _, wsID, owner, msg := newFixture(t)

	agg, err := svc.Remove(context.Background(), wsID, owner, storage.RoleOwner, msg.ID, "👍")
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if agg.Count != 0 {
		t.Errorf("Count = %d, want 0", agg.Count)
	}
	if agg.Op != OpRemoved {
		t.Errorf("Op = %q, want %q", agg.Op, OpRemoved)
	}
}

func TestEmojiNormalizationTrimsAndValidates(t *testing.T) {
	t.Parallel()
	svc, _, wsID, owner, msg := newFixture(t)

	agg, err := svc.Add(context.Background(), wsID, owner, storage.RoleOwner, msg.ID, "  👍  ")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if agg.Emoji != "👍" {
		t.Errorf("Emoji = %q, want trimmed %q", agg.Emoji, "👍")
	}

	if _, err := svc.Add(context.Background(), wsID, owner, storage.RoleOwner, msg.ID, "   "); !errors.Is(err, ErrInvalidEmoji) {
		t.Fatalf("Add(empty) error = %v, want ErrInvalidEmoji", err)
	}

	tooLong := make([]byte, 33)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	if _, err := svc.Add(context.Background(), wsID, owner, storage.RoleOwner, msg.ID, string(tooLong)); !errors.Is(err, ErrInvalidEmoji) {
		t.Fatalf("Add(too long) error = %v, want ErrInvalidEmoji", err)
	}
}

func TestAddReactionRejectsDeletedMessage(t *testing.T) {
	t.Parallel()
	svc, chSvc, wsID, owner, msg := newFixture(t)

	if err := chSvc.DeleteMessage(context.Background(), wsID, owner, storage.RoleOwner, msg.ID); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}
	if _, err := svc.Add(context.Background(), wsID, owner, storage.RoleOwner, msg.ID, "👍"); !errors.Is(err, channelsvc.ErrNotFound) {
		t.Fatalf("Add(deleted message) error = %v, want channelsvc.ErrNotFound", err)
	}
}

func TestMultipleUsersAggregateCountAndIDs(t *testing.T) {
	t.Parallel()
	svc, _, wsID, owner, msg := newFixture(t)

	other := uuid.New()
	if _, err := svc.Add(context.Background(), wsID, owner, storage.RoleOwner, msg.ID, "👍"); err != nil {
		t.Fatalf("Add(owner) error = %v", err)
	}
	agg, err := svc.Add(context.Background(), wsID, other, storage.RoleMember, msg.ID, "👍")
	if err != nil {
		t.Fatalf("Add(other) error = %v", err)
	}
	if agg.Count != 2 {
		t.Errorf("Count = %d, want 2", agg.Count)
	}
	if len(agg.UserIDs) != 2 {
		t.Errorf("UserIDs = %v, want 2 entries", agg.UserIDs)
	}
}
