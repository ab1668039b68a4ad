package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/vibevideos/client/internal/api"
	"github.com/vibevideos/client/internal/events"
	"github.com/vibevideos/client/internal/models"
	"github.com/vibevideos/client/internal/session"
)

// State gates the pipeline. An explicit field rather than a bool so the
// one-upload-at-a-time invariant is inspectable in tests.
type State string

const (
	// StateIdle means the pipeline will accept a submission.
	StateIdle State = "idle"
	// StateInFlight means an upload is pending and the triggering control
	// is disabled.
	StateInFlight State = "in-flight"
)

var (
	// ErrUploadInFlight indicates a submission arrived while one was
	// pending. Pending uploads are never queued, only rejected.
	ErrUploadInFlight = errors.New("an upload is already in flight")
	// ErrNoSelection indicates Submit was called with no file selected.
	ErrNoSelection = errors.New("no file selected")
)

// Uploader is the slice of the service client the pipeline needs.
type Uploader interface {
	Upload(ctx context.Context, session models.Session, filename, contentType string, file io.Reader) error
}

// SessionSource provides read-only access to the current session.
type SessionSource interface {
	Current() (models.Session, bool)
}

// Pipeline submits one selected video file at a time. Whatever the outcome,
// the selection is cleared when the upload settles, so each selection is
// attempted at most once.
type Pipeline struct {
	uploader Uploader
	sessions SessionSource
	bus      *events.Bus
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	selected string
}

// NewPipeline constructs an idle Pipeline.
func NewPipeline(uploader Uploader, sessions SessionSource, bus *events.Bus, logger *slog.Logger) *Pipeline {
	if uploader == nil || sessions == nil {
		panic("upload: uploader and session source must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		uploader: uploader,
		sessions: sessions,
		bus:      bus,
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the gating state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Selected returns the pending file selection, empty when none.
func (p *Pipeline) Selected() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// Select records the file to upload next. It fails while an upload is
// pending, mirroring the disabled file picker.
func (p *Pipeline) Select(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("select file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("select file: %s is a directory", path)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateInFlight {
		return ErrUploadInFlight
	}
	p.selected = path
	return nil
}

// Submit uploads the current selection under the active session. On success
// it signals the library to refresh; on any settle the selection is cleared.
func (p *Pipeline) Submit(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateInFlight {
		p.mu.Unlock()
		return ErrUploadInFlight
	}
	if p.selected == "" {
		p.mu.Unlock()
		return ErrNoSelection
	}
	path := p.selected
	p.state = StateInFlight
	p.mu.Unlock()

	err := p.send(ctx, path)

	p.mu.Lock()
	p.state = StateIdle
	p.selected = ""
	p.mu.Unlock()

	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) && p.bus != nil {
			p.logger.Warn("session rejected during upload")
			p.bus.Publish(events.TopicSessionExpired)
		}
		return err
	}

	p.logger.Info("upload complete", "file", filepath.Base(path))
	if p.bus != nil {
		p.bus.Publish(events.TopicVideoUploaded)
	}
	return nil
}

func (p *Pipeline) send(ctx context.Context, path string) error {
	current, ok := p.sessions.Current()
	if !ok {
		return session.ErrNoSession
	}

	contentType := detectContentType(path)
	if !strings.HasPrefix(contentType, "video/") {
		p.logger.Warn("selected file does not look like a video", "file", filepath.Base(path), "content_type", contentType)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open selected file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return p.uploader.Upload(ctx, current, filepath.Base(path), contentType, file)
}

func detectContentType(path string) string {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mime.String()
}
