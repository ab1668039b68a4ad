package library

import (
	"context"
	"errors"
	"testing"

	"github.com/vibevideos/client/internal/api"
	"github.com/vibevideos/client/internal/events"
	"github.com/vibevideos/client/internal/models"
	"github.com/vibevideos/client/internal/session"
)

type fakeLister struct {
	fn func() ([]models.VideoRecord, error)
}

func (f *fakeLister) List(ctx context.Context, _ models.Session) ([]models.VideoRecord, error) {
	return f.fn()
}

type fakeSessions struct {
	session models.Session
	ok      bool
}

func (f *fakeSessions) Current() (models.Session, bool) {
	return f.session, f.ok
}

func activeSessions() *fakeSessions {
	return &fakeSessions{session: models.Session{Token: "T", UserID: "u-1"}, ok: true}
}

func TestRefreshPopulated(t *testing.T) {
	lister := &fakeLister{fn: func() ([]models.VideoRecord, error) {
		return []models.VideoRecord{{ID: "v1"}, {ID: "v2"}}, nil
	}}
	sync := NewSyncClient(lister, activeSessions(), nil, nil)

	if err := sync.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	snap := sync.Snapshot()
	if snap.Phase != PhasePopulated {
		t.Fatalf("expected populated got %s", snap.Phase)
	}
	if len(snap.Videos) != 2 || snap.Videos[0].ID != "v1" {
		t.Fatalf("unexpected videos %+v", snap.Videos)
	}
}

func TestRefreshZeroRecordsIsEmpty(t *testing.T) {
	lister := &fakeLister{fn: func() ([]models.VideoRecord, error) {
		return []models.VideoRecord{}, nil
	}}
	sync := NewSyncClient(lister, activeSessions(), nil, nil)

	if err := sync.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	snap := sync.Snapshot()
	if snap.Phase != PhaseEmpty {
		t.Fatalf("zero records must be Empty, got %s", snap.Phase)
	}
	if snap.Videos != nil {
		t.Fatalf("empty snapshot must not carry a video slice: %+v", snap.Videos)
	}
}

func TestRefreshErrorSurfacesMessage(t *testing.T) {
	lister := &fakeLister{fn: func() ([]models.VideoRecord, error) {
		return nil, api.ErrNetwork
	}}
	sync := NewSyncClient(lister, activeSessions(), nil, nil)

	if err := sync.Refresh(context.Background()); !errors.Is(err, api.ErrNetwork) {
		t.Fatalf("expected ErrNetwork got %v", err)
	}
	snap := sync.Snapshot()
	if snap.Phase != PhaseError || snap.Message == "" {
		t.Fatalf("expected error snapshot with message, got %+v", snap)
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	sync := NewSyncClient(&fakeLister{}, &fakeSessions{}, nil, nil)
	if err := sync.Refresh(context.Background()); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession got %v", err)
	}
	if sync.Snapshot().Phase != PhaseError {
		t.Fatalf("expected error phase got %s", sync.Snapshot().Phase)
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

	lister := &fakeLister{fn: func() ([]models.VideoRecord, error) {
		return nil, api.ErrUnauthorized
	}}
	sync := NewSyncClient(lister, activeSessions(), bus, nil)

	if err := sync.Refresh(context.Background()); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized got %v", err)
	}
	select {
	case <-expired:
	default:
		t.Fatal("expected session-expired signal on the bus")
	}
}

func TestSupersededRefreshIsDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	calls := 0

	lister := &fakeLister{}
	lister.fn = func() ([]models.VideoRecord, error) {
		calls++
		if calls == 1 {
			close(firstStarted)
			<-releaseFirst
			return []models.VideoRecord{{ID: "stale"}}, nil
		}
		return []models.VideoRecord{{ID: "fresh"}}, nil
	}
	sync := NewSyncClient(lister, activeSessions(), nil, nil)

	done := make(chan error, 1)
	go func() {
		done <- sync.Refresh(context.Background())
	}()
	<-firstStarted

	if err := sync.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	close(releaseFirst)
	if err := <-done; err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	snap := sync.Snapshot()
	if snap.Phase != PhasePopulated || len(snap.Videos) != 1 || snap.Videos[0].ID != "fresh" {
		t.Fatalf("late result of superseded refresh must be discarded, got %+v", snap)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	lister := &fakeLister{fn: func() ([]models.VideoRecord, error) {
		return []models.VideoRecord{{ID: "v1", DisplayName: "a"}}, nil
	}}
	sync := NewSyncClient(lister, activeSessions(), nil, nil)
	if err := sync.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	snap := sync.Snapshot()
	snap.Videos[0].DisplayName = "mutated"
	if sync.Snapshot().Videos[0].DisplayName != "a" {
		t.Fatal("snapshot must not alias internal state")
	}
}
