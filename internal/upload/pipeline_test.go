package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/vibevideos/client/internal/api"
	"github.com/vibevideos/client/internal/events"
	"github.com/vibevideos/client/internal/models"
	"github.com/vibevideos/client/internal/session"
)

type fakeUploader struct {
	err      error
	started  chan struct{}
	release  chan struct{}
	received []string
}

func (f *fakeUploader) Upload(ctx context.Context, _ models.Session, filename, contentType string, file io.Reader) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.received = append(f.received, filename)
	return f.err
}

type fakeSessions struct {
	ok bool
}

func (f *fakeSessions) Current() (models.Session, bool) {
	return models.Session{Token: "T"}, f.ok
}

func tempVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("fake video bytes"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestSubmitUploadsAndSignalsRefresh(t *testing.T) {
	bus := events.NewBus()
	uploaded := make(chan struct{}, 1)
	if err := bus.Subscribe(events.TopicVideoUploaded, func() {
		uploaded <- struct{}{}
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	uploader := &fakeUploader{}
	pipe := NewPipeline(uploader, &fakeSessions{ok: true}, bus, nil)

	if err := pipe.Select(tempVideo(t)); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := pipe.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(uploader.received) != 1 || uploader.received[0] != "clip.mp4" {
		t.Fatalf("unexpected uploads %v", uploader.received)
	}
	select {
	case <-uploaded:
	default:
		t.Fatal("expected upload-completed signal on the bus")
	}
	if pipe.Selected() != "" {
		t.Fatal("selection must be cleared after a settled upload")
	}
	if pipe.State() != StateIdle {
		t.Fatalf("expected idle state got %s", pipe.State())
	}
}

func TestSubmitWhilePendingIsRejected(t *testing.T) {
	uploader := &fakeUploader{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	pipe := NewPipeline(uploader, &fakeSessions{ok: true}, nil, nil)
	if err := pipe.Select(tempVideo(t)); err != nil {
		t.Fatalf("select: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- pipe.Submit(context.Background())
	}()
	<-uploader.started

	if pipe.State() != StateInFlight {
		t.Fatalf("expected in-flight state got %s", pipe.State())
	}
	if err := pipe.Submit(context.Background()); !errors.Is(err, ErrUploadInFlight) {
		t.Fatalf("expected ErrUploadInFlight got %v", err)
	}
	if err := pipe.Select(tempVideo(t)); !errors.Is(err, ErrUploadInFlight) {
		t.Fatalf("select while pending must be rejected, got %v", err)
	}

	close(uploader.release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
}

func TestFailureClearsSelection(t *testing.T) {
	uploader := &fakeUploader{err: api.ErrPayload}
	pipe := NewPipeline(uploader, &fakeSessions{ok: true}, nil, nil)
	if err := pipe.Select(tempVideo(t)); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := pipe.Submit(context.Background()); !errors.Is(err, api.ErrPayload) {
		t.Fatalf("expected ErrPayload got %v", err)
	}
	if pipe.Selected() != "" {
		t.Fatal("failed upload must clear the selection")
	}
	if err := pipe.Submit(context.Background()); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("retry without reselect must fail, got %v", err)
	}
}

func TestUnauthorizedPublishesSessionExpired(t *testing.T) {
	bus := events.NewBus()
	expired := make(chan struct{}, 1)
	if err := bus.Subscribe(events.TopicSessionExpired, func() {
		expired <- struct{}{}
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	uploader := &fakeUploader{err: api.ErrUnauthorized}
	pipe := NewPipeline(uploader, &fakeSessions{ok: true}, bus, nil)
	if err := pipe.Select(tempVideo(t)); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := pipe.Submit(context.Background()); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized got %v", err)
	}
	select {
	case <-expired:
	default:
		t.Fatal("expected session-expired signal on the bus")
	}
}

func TestSubmitWithoutSession(t *testing.T) {
	pipe := NewPipeline(&fakeUploader{}, &fakeSessions{}, nil, nil)
	if err := pipe.Select(tempVideo(t)); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := pipe.Submit(context.Background()); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession got %v", err)
	}
}

func TestSelectValidatesPath(t *testing.T) {
	pipe := NewPipeline(&fakeUploader{}, &fakeSessions{ok: true}, nil, nil)
	if err := pipe.Select(filepath.Join(t.TempDir(), "absent.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if err := pipe.Select(t.TempDir()); err == nil {
		t.Fatal("expected error for directory")
	}
}
