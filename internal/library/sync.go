package library

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vibevideos/client/internal/api"
	"github.com/vibevideos/client/internal/events"
	"github.com/vibevideos/client/internal/models"
	"github.com/vibevideos/client/internal/session"
)

// Phase is the observable state of the library view.
type Phase string

const (
	// PhaseLoading means a refresh is underway.
	PhaseLoading Phase = "loading"
	// PhaseError means the last refresh failed; the message says why.
	PhaseError Phase = "error"
	// PhaseEmpty means the account has no videos.
	PhaseEmpty Phase = "empty"
	// PhasePopulated means Videos holds the library in server order.
	PhasePopulated Phase = "populated"
)

// Snapshot is an immutable view of the sync state at one point in time.
type Snapshot struct {
	Phase   Phase
	Message string
	Videos  []models.VideoRecord
}

// Lister is the slice of the service client the sync needs.
type Lister interface {
	List(ctx context.Context, session models.Session) ([]models.VideoRecord, error)
}

// SessionSource provides read-only access to the current session.
type SessionSource interface {
	Current() (models.Session, bool)
}

// SyncClient fetches the video catalog on demand. Overlapping refreshes are
// resolved last-result-wins: each refresh bumps a generation counter and a
// settled fetch whose generation is stale is discarded.
type SyncClient struct {
	lister   Lister
	sessions SessionSource
	bus      *events.Bus
	logger   *slog.Logger

	mu         sync.Mutex
	generation uint64
	snap       Snapshot
}

// NewSyncClient constructs a SyncClient. The initial phase is Loading, the
// state the view presents until the first refresh settles.
func NewSyncClient(lister Lister, sessions SessionSource, bus *events.Bus, logger *slog.Logger) *SyncClient {
	if lister == nil || sessions == nil {
		panic("library: lister and session source must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncClient{
		lister:   lister,
		sessions: sessions,
		bus:      bus,
		logger:   logger,
		snap:     Snapshot{Phase: PhaseLoading},
	}
}

// Snapshot returns a copy of the current view state.
func (c *SyncClient) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.snap
	snap.Videos = append([]models.VideoRecord(nil), c.snap.Videos...)
	return snap
}

// Refresh fetches the catalog and settles the snapshot to Error, Empty, or
// Populated. A refresh started after this one supersedes it.
func (c *SyncClient) Refresh(ctx context.Context) error {
	current, ok := c.sessions.Current()
	if !ok {
		c.settle(0, Snapshot{Phase: PhaseError, Message: session.ErrNoSession.Error()})
		return session.ErrNoSession
	}

	c.mu.Lock()
	c.generation++
	generation := c.generation
	c.snap = Snapshot{Phase: PhaseLoading}
	c.mu.Unlock()

	videos, err := c.lister.List(ctx, current)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) && c.bus != nil {
			c.logger.Warn("session rejected during refresh")
			c.bus.Publish(events.TopicSessionExpired)
		}
		c.settle(generation, Snapshot{Phase: PhaseError, Message: err.Error()})
		return err
	}

	if len(videos) == 0 {
		c.settle(generation, Snapshot{Phase: PhaseEmpty})
		return nil
	}
	c.settle(generation, Snapshot{Phase: PhasePopulated, Videos: videos})
	return nil
}

// settle installs the snapshot unless a newer refresh has started since.
// Generation zero settles unconditionally (pre-session failures).
func (c *SyncClient) settle(generation uint64, snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != 0 && generation != c.generation {
		c.logger.Debug("discarding superseded refresh result", "generation", generation)
		return
	}
	c.snap = snap
}
