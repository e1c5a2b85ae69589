package auditsvc

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/galynx/galynx/internal/storage"
)

func TestListRequiresOwnerOrAdmin(t *testing.T) {
	t.Parallel()
	svc := NewService(storage.NewMemory())
	wsID := uuid.New()
	if _, err := svc.List(context.Background(), wsID, storage.RoleMember, "", 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("List(member) error = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.List(context.Background(), wsID, storage.RoleAdmin, "", 10); err != nil {
		t.Fatalf("List(admin) error = %v", err)
	}
}

func TestWriteThenListPagination(t *testing.T) {
	t.Parallel()
	svc := NewService(storage.NewMemory())
	wsID := uuid.New()
	actor := uuid.New()

	for i := 0; i < 3; i++ {
		if err := svc.Write(context.Background(), wsID, &actor, "channel.create", "channel", nil, map[string]string{"n": "x"}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	page1, err := svc.List(context.Background(), wsID, storage.RoleOwner, "", 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page1.Items) != 2 || page1.NextCursor == nil {
		t.Fatalf("page1 = %d items, nextCursor=%v, want 2 items and non-nil cursor", len(page1.Items), page1.NextCursor)
	}

	page2, err := svc.List(context.Background(), wsID, storage.RoleOwner, *page1.NextCursor, 2)
	if err != nil {
		t.Fatalf("List(page2) error = %v", err)
	}
	if len(page2.Items) != 1 || page2.NextCursor != nil {
		t.Fatalf("page2 = %d items, nextCursor=%v, want 1 item and nil cursor", len(page2.Items), page2.NextCursor)
	}
}
