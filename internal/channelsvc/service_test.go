package channelsvc

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/galynx/galynx/internal/storage"
)

func newFixture(t *testing.T) (*Service, uuid.UUID, uuid.UUID) {
	t.Helper()
	store := storage.NewMemory()
	svc := NewService(store)
	workspaceID := uuid.New()
	ownerID := uuid.New()
	return svc, workspaceID, ownerID
}

func TestCreateChannelTrimsAndLowercases(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	ch, err := svc.CreateChannel(context.Background(), wsID, owner, "  General  ", false)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	if ch.Name != "general" {
		t.Errorf("Name = %q, want %q", ch.Name, "general")
	}
}

func TestCreateChannelRejectsEmptyName(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	if _, err := svc.CreateChannel(context.Background(), wsID, owner, "   ", false); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("CreateChannel() error = %v, want ErrInvalidName", err)
	}
}

func TestCreateChannelRejectsCaseInsensitiveDuplicate(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	if _, err := svc.CreateChannel(context.Background(), wsID, owner, "general", false); err != nil {
		t.Fatalf("first CreateChannel() error = %v", err)
	}
	if _, err := svc.CreateChannel(context.Background(), wsID, owner, "GENERAL", false); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("CreateChannel() error = %v, want ErrNameTaken", err)
	}
}

func TestPrivateChannelAddsCreatorAsMember(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	ch, err := svc.CreateChannel(context.Background(), wsID, owner, "ops", true)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	other := uuid.New()
	if _, err := svc.GetChannel(context.Background(), wsID, other, storage.RoleMember, ch.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("GetChannel(non-member) error = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.GetChannel(context.Background(), wsID, owner, storage.RoleMember, ch.ID); err != nil {
		t.Fatalf("GetChannel(creator) error = %v", err)
	}
}

func TestGetChannelCrossWorkspaceIsNotFound(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	ch, err := svc.CreateChannel(context.Background(), wsID, owner, "general", false)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	otherWS := uuid.New()
	if _, err := svc.GetChannel(context.Background(), otherWS, owner, storage.RoleMember, ch.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetChannel(other workspace) error = %v, want ErrNotFound", err)
	}
}

func TestPrivateChannelOwnerAdminBypassMembership(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	ch, err := svc.CreateChannel(context.Background(), wsID, owner, "ops", true)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	admin := uuid.New()
	if _, err := svc.GetChannel(context.Background(), wsID, admin, storage.RoleAdmin, ch.ID); err != nil {
		t.Fatalf("GetChannel(admin) error = %v", err)
	}
}

func TestPostMessageRejectsEmptyBody(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	ch, err := svc.CreateChannel(context.Background(), wsID, owner, "general", false)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	if _, err := svc.PostMessage(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, "   ", nil); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("PostMessage() error = %v, want ErrEmptyBody", err)
	}
}

func TestEditMessageRequiresSender(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	ch, err := svc.CreateChannel(context.Background(), wsID, owner, "general", false)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	msg, err := svc.PostMessage(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, "hi", nil)
	if err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}
	other := uuid.New()
	if _, err := svc.EditMessage(context.Background(), wsID, other, storage.RoleMember, msg.ID, "hacked"); !errors.Is(err, ErrNotSender) {
		t.Fatalf("EditMessage(non-sender) error = %v, want ErrNotSender", err)
	}
	edited, err := svc.EditMessage(context.Background(), wsID, owner, storage.RoleOwner, msg.ID, "hi edited")
	if err != nil {
		t.Fatalf("EditMessage(sender) error = %v", err)
	}
	if edited.EditedAt == nil {
		t.Error("EditedAt not set after edit")
	}
}

func TestDeleteMessageSenderOrAdmin(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	ch, err := svc.CreateChannel(context.Background(), wsID, owner, "general", false)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	member := uuid.New()
	msg, err := svc.PostMessage(context.Background(), wsID, member, storage.RoleMember, ch.ID, "hi", nil)
	if err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}
	otherMember := uuid.New()
	if err := svc.DeleteMessage(context.Background(), wsID, otherMember, storage.RoleMember, msg.ID); !errors.Is(err, ErrNotSender) {
		t.Fatalf("DeleteMessage(other member) error = %v, want ErrNotSender", err)
	}
	if err := svc.DeleteMessage(context.Background(), wsID, owner, storage.RoleOwner, msg.ID); err != nil {
		t.Fatalf("DeleteMessage(owner) error = %v", err)
	}
	if _, err := svc.GetMessage(context.Background(), wsID, owner, storage.RoleOwner, msg.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMessage(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestListMessagesPagination(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	ch, err := svc.CreateChannel(context.Background(), wsID, owner, "general", false)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.PostMessage(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, "m", nil); err != nil {
			t.Fatalf("PostMessage() error = %v", err)
		}
	}

	page1, err := svc.ListMessages(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, nil, "", 2)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(page1.Items) != 2 || page1.NextCursor == nil {
		t.Fatalf("page1 = %d items, nextCursor=%v, want 2 items and non-nil cursor", len(page1.Items), page1.NextCursor)
	}

	page2, err := svc.ListMessages(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, nil, *page1.NextCursor, 2)
	if err != nil {
		t.Fatalf("ListMessages(page2) error = %v", err)
	}
	if len(page2.Items) != 1 || page2.NextCursor != nil {
		t.Fatalf("page2 = %d items, nextCursor=%v, want 1 item and nil cursor", len(page2.Items), page2.NextCursor)
	}
}

func TestThreadFlatOnlyRejectsReplyOfReply(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	ch, err := svc.CreateChannel(context.Background(), wsID, owner, "general", false)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	root, err := svc.PostMessage(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, "root", nil)
	if err != nil {
		t.Fatalf("PostMessage(root) error = %v", err)
	}
	reply, err := svc.PostMessage(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, "r1", &root.ID)
	if err != nil {
		t.Fatalf("PostMessage(reply) error = %v", err)
	}
	if _, err := svc.PostMessage(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, "r2", &reply.ID); !errors.Is(err, ErrReplyOfReply) {
		t.Fatalf("PostMessage(reply-of-reply) error = %v, want ErrReplyOfReply", err)
	}
}

func TestThreadSummaryParticipantsAndCounts(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	ch, err := svc.CreateChannel(context.Background(), wsID, owner, "general", false)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	root, err := svc.PostMessage(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, "root", nil)
	if err != nil {
		t.Fatalf("PostMessage(root) error = %v", err)
	}
	replier := uuid.New()
	if _, err := svc.PostMessage(context.Background(), wsID, replier, storage.RoleMember, ch.ID, "r1", &root.ID); err != nil {
		t.Fatalf("PostMessage(reply) error = %v", err)
	}

	summary, err := svc.ThreadSummary(context.Background(), wsID, owner, storage.RoleOwner, root.ID)
	if err != nil {
		t.Fatalf("ThreadSummary() error = %v", err)
	}
	if summary.ReplyCount != 1 {
		t.Errorf("ReplyCount = %d, want 1", summary.ReplyCount)
	}
	if len(summary.Participants) != 2 || summary.Participants[0] != owner || summary.Participants[1] != replier {
		t.Errorf("Participants = %v, want [owner, replier]", summary.Participants)
	}
	if summary.LastReplyAt == nil {
		t.Error("LastReplyAt not set")
	}
}

func TestChannelDeletionCascade(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	ch, err := svc.CreateChannel(context.Background(), wsID, owner, "general", false)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	if _, err := svc.PostMessage(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, "hi", nil); err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}
	if err := svc.DeleteChannel(context.Background(), wsID, owner, storage.RoleOwner, ch.ID); err != nil {
		t.Fatalf("DeleteChannel() error = %v", err)
	}
	if _, err := svc.GetChannel(context.Background(), wsID, owner, storage.RoleOwner, ch.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetChannel(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestListChannelsSortedAndUnfiltered(t *testing.T) {
	t.Parallel()
	svc, wsID, owner := newFixture(t)
	if _, err := svc.CreateChannel(context.Background(), wsID, owner, "general", false); err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	if _, err := svc.CreateChannel(context.Background(), wsID, owner, "ops", true); err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}

	channels, err := svc.ListChannels(context.Background(), wsID)
	if err != nil {
		t.Fatalf("ListChannels() error = %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("channel count = %d, want 2 (private channels stay listed)", len(channels))
	}
	if channels[0].CreatedAt > channels[1].CreatedAt {
		t.Error("channels not sorted oldest first")
	}
}

func TestAddChannelMemberRequiresWorkspaceMembership(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	svc := NewService(store)
	wsID := uuid.New()
	owner := uuid.New()

	ch, err := svc.CreateChannel(context.Background(), wsID, owner, "ops", true)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}

	outsider := uuid.New()
	if err := svc.AddChannelMember(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, outsider); !errors.Is(err, ErrNotInWorkspace) {
		t.Fatalf("AddChannelMember(outsider) error = %v, want ErrNotInWorkspace", err)
	}

	if err := store.PutMembership(context.Background(), storage.Membership{WorkspaceID: wsID, UserID: outsider, Role: storage.RoleMember}); err != nil {
		t.Fatalf("PutMembership() error = %v", err)
	}
	if err := svc.AddChannelMember(context.Background(), wsID, owner, storage.RoleOwner, ch.ID, outsider); err != nil {
		t.Fatalf("AddChannelMember(member) error = %v", err)
	}
}
