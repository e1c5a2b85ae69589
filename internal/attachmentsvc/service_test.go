package attachmentsvc

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"bytes"

	"github.com/google/uuid"

	"github.com/galynx/galynx/internal/channelsvc"
	"github.com/galynx/galynx/internal/presign"
	"github.com/galynx/galynx/internal/storage"
)

func newFixture(t *testing.T) (*Service, uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()
	store := storage.NewMemory()
	chSvc := channelsvc.NewService(store)
	wsID := uuid.New()
	owner := uuid.New()

	ch, err := chSvc.CreateChannel(context.Background(), wsID, owner, "general", false)
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}

	svc := NewService(store, chSvc, presign.NewLocal("https://files.example.test"))
	return svc, wsID, owner, ch.ID
}

func TestPresignRejectsEmptyFilename(t *testing.T) {
	t.Parallel()
	svc, wsID, owner, chID := newFixture(t)
	if _, err := svc.Presign(context.Background(), wsID, owner, storage.RoleOwner, chID, "  ", "image/png", 10); !errors.Is(err, ErrInvalidFilename) {
		t.Fatalf("Presign() error = %v, want ErrInvalidFilename", err)
	}
}

func TestPresignRejectsOversizedUpload(t *testing.T) {
	t.Parallel()
	svc, wsID, owner, chID := newFixture(t)
	if _, err := svc.Presign(context.Background(), wsID, owner, storage.RoleOwner, chID, "a.png", "image/png", maxSizeBytes+1); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("Presign() error = %v, want ErrInvalidSize", err)
	}
}

func TestCommitCannotBeCalledTwice(t *testing.T) {
	t.Parallel()
	svc, wsID, owner, chID := newFixture(t)

	res, err := svc.Presign(context.Background(), wsID, owner, storage.RoleOwner, chID, "a.png", "image/png", 10)
	if err != nil {
		t.Fatalf("Presign() error = %v", err)
	}

	if _, err := svc.Commit(context.Background(), wsID, owner, res.UploadID, nil, nil); err != nil {
		t.Fatalf("Commit() first call error = %v", err)
	}
	if _, err := svc.Commit(context.Background(), wsID, owner, res.UploadID, nil, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Commit() second call error = %v, want ErrNotFound", err)
	}
}

func TestCommitRejectsWrongUploader(t *testing.T) {
	t.Parallel()
	svc, wsID, owner, chID := newFixture(t)
	res, err := svc.Presign(context.Background(), wsID, owner, storage.RoleOwner, chID, "a.png", "image/png", 10)
	if err != nil {
		t.Fatalf("Presign() error = %v", err)
	}
	other := uuid.New()
	if _, err := svc.Commit(context.Background(), wsID, other, res.UploadID, nil, nil); !errors.Is(err, ErrWrongUploader) {
		t.Fatalf("Commit() error = %v, want ErrWrongUploader", err)
	}
}

func TestCommitProbesImageDimensions(t *testing.T) {
	t.Parallel()
	svc, wsID, owner, chID := newFixture(t)
	res, err := svc.Presign(context.Background(), wsID, owner, storage.RoleOwner, chID, "a.png", "image/png", 100)
	if err != nil {
		t.Fatalf("Presign() error = %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}

	att, err := svc.Commit(context.Background(), wsID, owner, res.UploadID, nil, buf.Bytes())
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if att.Width == nil || *att.Width != 4 || att.Height == nil || *att.Height != 3 {
		t.Errorf("Width/Height = %v/%v, want 4/3", att.Width, att.Height)
	}
}

func TestDownloadIsWorkspaceIsolated(t *testing.T) {
	t.Parallel()
	svc, wsID, owner, chID := newFixture(t)
	res, err := svc.Presign(context.Background(), wsID, owner, storage.RoleOwner, chID, "a.png", "image/png", 10)
	if err != nil {
		t.Fatalf("Presign() error = %v", err)
	}
	att, err := svc.Commit(context.Background(), wsID, owner, res.UploadID, nil, nil)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if _, err := svc.Download(context.Background(), wsID, att.ID); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	otherWS := uuid.New()
	if _, err := svc.Download(context.Background(), otherWS, att.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Download(other workspace) error = %v, want ErrNotFound", err)
	}
}
