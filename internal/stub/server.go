// Package stub is an in-memory reference implementation of the video
// library service contract: signup, verify, login, upload, list, and
// stream. It exists so the client is usable and testable end to end with
// no external infrastructure.
package stub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/vibevideos/client/internal/identity"
	"github.com/vibevideos/client/internal/logging"
)

// Config controls Server construction.
type Config struct {
	// Secret signs session tokens. Required.
	Secret string
	// TokenTTL bounds issued session tokens. Defaults to 24h.
	TokenTTL time.Duration
	// OTPTTL bounds one-time codes. Defaults to 10m.
	OTPTTL time.Duration
	// MaxUploadBytes caps a single upload. Defaults to 100 MiB.
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server implements the service contract over an in-memory store.
type Server struct {
	store    *Store
	secret   string
	tokenTTL time.Duration
	maxBytes int64
	logger   *slog.Logger
	handler  http.Handler
}

// New constructs a Server and its router.
func New(cfg Config) *Server {
	if cfg.Secret == "" {
		panic("stub: token secret must not be empty")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		store:    NewStore(cfg.OTPTTL),
		secret:   cfg.Secret,
		tokenTTL: cfg.TokenTTL,
		maxBytes: cfg.MaxUploadBytes,
		logger:   cfg.Logger,
	}

	limiter := newCallerLimiter(30, time.Minute, 10)

	r := chi.NewRouter()
	r.Use(requestLogger(cfg.Logger))
	r.Use(cors.AllowAll().Handler)

	r.Group(func(r chi.Router) {
		r.Use(limiter.middleware)
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/verify", s.handleVerify)
		r.Post("/auth/login", s.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/videos/upload", s.handleUpload)
		r.Get("/videos/list", s.handleList)
		r.Get("/videos/stream/{videoID}", s.handleStream)
	})

	s.handler = r
	return s
}

// Handler returns the HTTP surface of the stub.
func (s *Server) Handler() http.Handler {
	return s.handler
}

type credentialRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, contact, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}
	if len(req.Password) < 8 {
		writeDetail(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	otp, err := s.store.Register(contact.String(), req.Password)
	if errors.Is(err, ErrAccountExists) {
		writeDetail(ctx, w, http.StatusConflict, "account already exists")
		return
	}
	if err != nil {
		logging.FromContext(ctx).Error("signup failed", "error", err)
		writeDetail(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}

	// The demo has no SMS or email channel, so the code rides the response.
	writeJSON(ctx, w, http.StatusOK, map[string]string{"otp": otp})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, contact, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}
	if req.Code == "" {
		writeDetail(ctx, w, http.StatusBadRequest, "verification code is required")
		return
	}

	switch err := s.store.Verify(contact.String(), req.Code); {
	case errors.Is(err, ErrCodeExpired):
		writeDetail(ctx, w, http.StatusGone, "verification code expired")
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrWrongCode):
		writeDetail(ctx, w, http.StatusBadRequest, "invalid code")
	case err != nil:
		logging.FromContext(ctx).Error("verify failed", "error", err)
		writeDetail(ctx, w, http.StatusInternalServerError, "verification failed")
	default:
		writeJSON(ctx, w, http.StatusOK, map[string]string{})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, contact, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	account, err := s.store.Authenticate(contact.String(), req.Password)
	switch {
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrWrongPassword):
		writeDetail(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	case errors.Is(err, ErrNotVerified):
		writeDetail(ctx, w, http.StatusForbidden, "account not verified")
		return
	case err != nil:
		logging.FromContext(ctx).Error("login failed", "error", err)
		writeDetail(ctx, w, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := issueToken(s.secret, account.ID, s.tokenTTL, s.store.NowFunc())
	if err != nil {
		logging.FromContext(ctx).Error("token issue failed", "error", err)
		writeDetail(ctx, w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]string{
		"token":   token,
		"user_id": account.ID,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		writeDetail(ctx, w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(ctx, w, http.StatusBadRequest, "a file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	contentType := r.FormValue("content_type")
	if contentType == "" {
		contentType = header.Header.Get("Content-Type")
	}
	if !strings.HasPrefix(contentType, "video/") {
		writeDetail(ctx, w, http.StatusUnsupportedMediaType, "only video uploads are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(ctx, w, http.StatusBadRequest, "failed to read file")
		return
	}

	videoID := s.store.AddVideo(userID, header.Filename, contentType, data)
	logging.FromContext(ctx).Info("video stored", "video_id", videoID, "bytes", len(data))
	writeJSON(ctx, w, http.StatusOK, map[string]string{})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)

	type item struct {
		ID           string `json:"id"`
		OriginalName string `json:"original_name"`
		ContentType  string `json:"content_type"`
	}

	videos := s.store.ListVideos(userID)
	items := make([]item, 0, len(videos))
	for _, v := range videos {
		items = append(items, item{ID: v.ID, OriginalName: v.OriginalName, ContentType: v.ContentType})
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{"videos": items})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)

	video, err := s.store.GetVideo(userID, chi.URLParam(r, "videoID"))
	if err != nil {
		writeDetail(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	w.Header().Set("Content-Type", video.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(video.Data)
}

// authenticate resolves the bearer token (or token query parameter, for
// media elements that cannot set headers) into a user id on the context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeDetail(r.Context(), w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := validateToken(s.secret, token)
		if err != nil {
			writeDetail(r.Context(), w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialRequest, identity.Contact, bool) {
	ctx := r.Context()

	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(ctx, w, http.StatusBadRequest, "invalid request body")
		return credentialRequest{}, identity.Contact{}, false
	}

	contact, err := identity.Resolve(req.Email, req.Phone)
	if err != nil {
		writeDetail(ctx, w, http.StatusBadRequest, err.Error())
		return credentialRequest{}, identity.Contact{}, false
	}
	return req, contact, true
}

type ctxKey string

const userIDKey ctxKey = "userID"

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("failed to encode response", "error", err)
	}
}

func writeDetail(ctx context.Context, w http.ResponseWriter, status int, detail string) {
	writeJSON(ctx, w, status, map[string]string{"detail": detail})
}
