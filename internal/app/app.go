package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vibevideos/client/internal/authflow"
	"github.com/vibevideos/client/internal/config"
	"github.com/vibevideos/client/internal/httpserver"
	"github.com/vibevideos/client/internal/identity"
	"github.com/vibevideos/client/internal/library"
	"github.com/vibevideos/client/internal/models"
	"github.com/vibevideos/client/internal/player"
	"github.com/vibevideos/client/internal/stub"
)

const usage = `expected command: signup, verify, login, logout, list, upload, watch, or stub`

// Run bootstraps the vibevideos client application.
func Run(ctx context.Context, args []string) error {
	// Local overrides; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if len(args) == 0 {
		return errors.New(usage)
	}

	if args[0] == "stub" {
		return runStub(ctx, cfg, logger)
	}

	deps, err := buildDependencies(cfg, logger)
	if err != nil {
		return err
	}

	switch args[0] {
	case "signup":
		return runSignup(ctx, deps, args[1:])
	case "verify":
		return runVerify(ctx, deps, args[1:])
	case "login":
		return runLogin(ctx, deps, args[1:])
	case "logout":
		return deps.sessions.Clear()
	case "list":
		return runList(ctx, deps)
	case "upload":
		return runUpload(ctx, deps, args[1:])
	case "watch":
		return runWatch(ctx, deps, args[1:])
	default:
		return fmt.Errorf("unknown command %q: %s", args[0], usage)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

type credentialArgs struct {
	email    string
	phone    string
	password string
	code     string
}

func parseCredentials(name string, args []string, wantCode bool) (credentialArgs, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var parsed credentialArgs
	fs.StringVar(&parsed.email, "email", "", "email handle")
	fs.StringVar(&parsed.phone, "phone", "", "phone handle (used when no email is given)")
	if wantCode {
		fs.StringVar(&parsed.code, "code", "", "one-time verification code")
	} else {
		fs.StringVar(&parsed.password, "password", "", "account password")
	}
	if err := fs.Parse(args); err != nil {
		return credentialArgs{}, err
	}
	return parsed, nil
}

func runSignup(ctx context.Context, deps *dependencies, args []string) error {
	parsed, err := parseCredentials("signup", args, false)
	if err != nil {
		return err
	}
	contact, err := identity.Resolve(parsed.email, parsed.phone)
	if err != nil {
		return err
	}

	if err := deps.flow.Signup(ctx, contact, parsed.password); err != nil {
		return err
	}
	fmt.Println(deps.flow.Message())
	return nil
}

func runVerify(ctx context.Context, deps *dependencies, args []string) error {
	parsed, err := parseCredentials("verify", args, true)
	if err != nil {
		return err
	}
	contact, err := identity.Resolve(parsed.email, parsed.phone)
	if err != nil {
		return err
	}

	deps.flow.SwitchTo(authflow.StateVerify)
	if err := deps.flow.Verify(ctx, contact, parsed.code); err != nil {
		return err
	}
	fmt.Println(deps.flow.Message())
	return nil
}

func runLogin(ctx context.Context, deps *dependencies, args []string) error {
	parsed, err := parseCredentials("login", args, false)
	if err != nil {
		return err
	}
	contact, err := identity.Resolve(parsed.email, parsed.phone)
	if err != nil {
		return err
	}

	deps.flow.SwitchTo(authflow.StateLogin)
	if err := deps.flow.Login(ctx, contact, parsed.password); err != nil {
		return err
	}

	session, _ := deps.sessions.Current()
	fmt.Printf("logged in as %s\n", session.UserID)
	return nil
}

func runList(ctx context.Context, deps *dependencies) error {
	if err := deps.library.Refresh(ctx); err != nil {
		renderLibrary(deps.library.Snapshot())
		return err
	}
	renderLibrary(deps.library.Snapshot())
	return nil
}

func runUpload(ctx context.Context, deps *dependencies, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: upload <file>")
	}
	if err := deps.uploads.Select(args[0]); err != nil {
		return err
	}
	if err := deps.uploads.Submit(ctx); err != nil {
		return err
	}

	// The upload signal already refreshed the library.
	fmt.Println("uploaded", args[0])
	renderLibrary(deps.library.Snapshot())
	return nil
}

// runWatch binds a playback controller to the chosen video and walks it
// through a short headless transport session.
func runWatch(ctx context.Context, deps *dependencies, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: watch <video-id>")
	}
	videoID := args[0]

	if err := deps.library.Refresh(ctx); err != nil {
		return err
	}
	record, err := findVideo(deps.library.Snapshot(), videoID)
	if err != nil {
		return err
	}

	engine := player.NewSimEngine(deps.client.StreamURL(record.ID))
	defer engine.Close()

	ctrl := player.NewController(engine)
	defer ctrl.Close()

	fmt.Printf("watching %s (%s)\n", record.DisplayName, engine.Source())

	if err := ctrl.TogglePlay(); err != nil {
		return err
	}
	fmt.Printf("playing=%v rate=%gx\n", ctrl.State().IsPlaying, ctrl.State().Rate)

	ctrl.ToggleMenu()
	if err := ctrl.SetRate(1.5); err != nil {
		return err
	}
	fmt.Printf("playing=%v rate=%gx\n", ctrl.State().IsPlaying, ctrl.State().Rate)

	engine.FinishMedia()
	fmt.Printf("playing=%v (media finished)\n", ctrl.State().IsPlaying)
	return nil
}

func findVideo(snap library.Snapshot, videoID string) (models.VideoRecord, error) {
	for _, record := range snap.Videos {
		if record.ID == videoID {
			return record, nil
		}
	}
	return models.VideoRecord{}, fmt.Errorf("video %q is not in the library", videoID)
}

func renderLibrary(snap library.Snapshot) {
	switch snap.Phase {
	case library.PhaseLoading:
		fmt.Println("loading videos…")
	case library.PhaseError:
		fmt.Println("error:", snap.Message)
	case library.PhaseEmpty:
		fmt.Println("no videos yet, upload your first one")
	case library.PhasePopulated:
		for _, v := range snap.Videos {
			fmt.Printf("%s  %s  (%s)\n", v.ID, v.DisplayName, v.MediaType)
		}
	}
}

func runStub(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	server := stub.New(stub.Config{
		Secret: cfg.StubSecret,
		Logger: logger,
	})

	srv := httpserver.New(cfg.StubPort, server.Handler())
	logger.Info("starting stub server", "port", cfg.StubPort)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down stub server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
