package stub

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrAccountExists indicates the contact handle is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound indicates no account matches the contact handle.
	ErrAccountNotFound = errors.New("account not found")
	// ErrWrongCode indicates the one-time code does not match.
	ErrWrongCode = errors.New("invalid code")
	// ErrCodeExpired indicates the one-time code passed its TTL.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrNotVerified indicates login before contact verification.
	ErrNotVerified = errors.New("account not verified")
	// ErrWrongPassword indicates the secret does not match.
	ErrWrongPassword = errors.New("invalid credentials")
	// ErrVideoNotFound indicates the requested video does not exist for
	// the user.
	ErrVideoNotFound = errors.New("video not found")
)

// Account is one registered identity.
type Account struct {
	ID           string
	Handle       string
	PasswordHash []byte
	Verified     bool
	OTP          string
	OTPExpiresAt time.Time
}

// Video is one stored upload, bytes included.
type Video struct {
	ID           string
	OwnerID      string
	OriginalName string
	ContentType  string
	Data         []byte
}

// Store keeps accounts and videos in memory. The stub is deliberately
// infrastructure-free; everything is lost on restart.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*Account
	videos   []Video

	otpTTL time.Duration
	// NowFunc is the time source, overridable in tests.
	NowFunc func() time.Time
}

// NewStore constructs an empty Store issuing codes valid for otpTTL.
func NewStore(otpTTL time.Duration) *Store {
	if otpTTL <= 0 {
		otpTTL = 10 * time.Minute
	}
	return &Store{
		accounts: make(map[string]*Account),
		otpTTL:   otpTTL,
		NowFunc:  time.Now,
	}
}

// Register creates an unverified account and returns its one-time code.
func (s *Store) Register(handle, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	otp, err := generateOTP()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[handle]; exists {
		return "", ErrAccountExists
	}
	s.accounts[handle] = &Account{
		ID:           uuid.NewString(),
		Handle:       handle,
		PasswordHash: hash,
		OTP:          otp,
		OTPExpiresAt: s.NowFunc().Add(s.otpTTL),
	}
	return otp, nil
}

// Verify marks the account verified when the code matches and is current.
func (s *Store) Verify(handle, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[handle]
	if !ok {
		return ErrAccountNotFound
	}
	if account.OTP == "" || account.OTP != code {
		return ErrWrongCode
	}
	if s.NowFunc().After(account.OTPExpiresAt) {
		return ErrCodeExpired
	}
	account.Verified = true
	account.OTP = ""
	return nil
}

// Authenticate checks the secret for a verified account and returns it.
func (s *Store) Authenticate(handle, password string) (Account, error) {
	s.mu.Lock()
	account, ok := s.accounts[handle]
	if !ok {
		s.mu.Unlock()
		return Account{}, ErrAccountNotFound
	}
	copied := *account
	s.mu.Unlock()

	if err := bcrypt.CompareHashAndPassword(copied.PasswordHash, []byte(password)); err != nil {
		return Account{}, ErrWrongPassword
	}
	if !copied.Verified {
		return Account{}, ErrNotVerified
	}
	return copied, nil
}

// AddVideo stores an upload and returns its id. Insertion order is the
// order List reports.
func (s *Store) AddVideo(ownerID, originalName, contentType string, data []byte) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.videos = append(s.videos, Video{
		ID:           id,
		OwnerID:      ownerID,
		OriginalName: originalName,
		ContentType:  contentType,
		Data:         data,
	})
	s.mu.Unlock()
	return id
}

// ListVideos returns the owner's videos in insertion order, without bytes.
func (s *Store) ListVideos(ownerID string) []Video {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Video
	for _, v := range s.videos {
		if v.OwnerID != ownerID {
			continue
		}
		v.Data = nil
		out = append(out, v)
	}
	return out
}

// GetVideo returns the owner's video including bytes.
func (s *Store) GetVideo(ownerID, videoID string) (Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.videos {
		if v.ID == videoID && v.OwnerID == ownerID {
			return v, nil
		}
	}
	return Video{}, ErrVideoNotFound
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
