package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dogtranslator/internal/domain/kv"
	apperrors "dogtranslator/internal/platform/errors"
	"dogtranslator/internal/platform/logging"
)

// StorageKey is the KV key holding the persisted settings document.
const StorageKey = "settings"

const dayLayout = "2006-01-02"

var (
	// ErrDailyLimit is returned once a free user used all scans of the day.
	ErrDailyLimit = errors.New("daily free scan limit reached")
	// ErrInvalidToken is returned when an ID token cannot be decoded.
	ErrInvalidToken = errors.New("invalid identity token")
)

// Identity is the signed-in user. The ID token is decoded but not verified;
// the backend verifies it on every request.
type Identity struct {
	IDToken   string    `json:"id_token"`
	Subject   string    `json:"subject"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the token expiry is known and in the past.
func (i *Identity) Expired(now time.Time) bool {
	return i != nil && !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// Snapshot is the persisted form of the state.
type Snapshot struct {
	Identity     *Identity `json:"identity,omitempty"`
	Premium      bool      `json:"isPremium"`
	AutoSpeak    bool      `json:"autoSpeak"`
	ScansToday   int       `json:"dailyScanCount"`
	LastScanDate string    `json:"lastScanDate,omitempty"`
}

type idTokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Options configures a State.
type Options struct {
	DailyLimit int
	Logger     *logging.Logger
}

// State holds the session, premium flag, auto-speak flag and daily scan
// counter. Every change is written through to the KV store.
type State struct {
	store  kv.Store
	limit  int
	logger *logging.Logger
	now    func() time.Time

	mu   sync.RWMutex
	data Snapshot
}

// Load reads the persisted state, starting empty when none exists.
func Load(ctx context.Context, store kv.Store, opts Options) (*State, error) {
	if store == nil {
		return nil, errors.New("session state requires a store")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	s := &State{
		store:  store,
		limit:  opts.DailyLimit,
		logger: opts.Logger,
		now:    time.Now,
	}

	raw, err := store.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, apperrors.Wrap(apperrors.KindStorage, "session.load", "failed to read settings", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		// unreadable settings are reset rather than blocking the app
		s.logger.WarnTag("Session", "discarding unreadable settings: %v", err)
		s.data = Snapshot{}
	}
	return s, nil
}

// Login decodes idToken and stores it as the current session.
func (s *State) Login(ctx context.Context, idToken string) (*Identity, error) {
	ident, err := DecodeIDToken(idToken)
	if err != nil {
		return nil, err
	}
	if ident.Expired(s.now()) {
		s.logger.WarnTag("Session", "identity token already expired", map[string]any{
			"subject":    ident.Subject,
			"expires_at": ident.ExpiresAt,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.data
	next.Identity = ident
	if err := s.persist(ctx, next); err != nil {
		return nil, err
	}
	s.logger.InfoTag("Session", "signed in", map[string]any{"subject": ident.Subject, "email": ident.Email})
	copied := *ident
	return &copied, nil
}

// Logout forgets the current session. Other settings are kept.
func (s *State) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Identity == nil {
		return nil
	}
	next := s.data
	next.Identity = nil
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.logger.InfoTag("Session", "signed out")
	return nil
}

// Identity returns a copy of the current session, or nil.
func (s *State) Identity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.Identity == nil {
		return nil
	}
	copied := *s.data.Identity
	return &copied
}

// Token returns the bearer token of the current session, or "" when nobody
// is signed in. Expired tokens are still returned so the backend can
// answer with 401.
func (s *State) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.Identity == nil {
		return "", nil
	}
	if s.data.Identity.Expired(s.now()) {
		s.logger.DebugTag("Session", "using expired identity token")
	}
	return s.data.Identity.IDToken, nil
}

func (s *State) Premium() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Premium
}

func (s *State) SetPremium(ctx context.Context, premium bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.data
	next.Premium = premium
	return s.persist(ctx, next)
}

func (s *State) AutoSpeak() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.AutoSpeak
}

func (s *State) SetAutoSpeak(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.data
	next.AutoSpeak = enabled
	return s.persist(ctx, next)
}

// ScansToday returns the number of scans recorded today.
func (s *State) ScansToday() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scansOn(s.today())
}

// RemainingScans returns the free scans left today, or -1 when unlimited.
func (s *State) RemainingScans() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.Premium || s.limit <= 0 {
		return -1
	}
	return max(s.limit-s.scansOn(s.today()), 0)
}

// CheckDailyLimit returns ErrDailyLimit when a free user has no scans left.
func (s *State) CheckDailyLimit() error {
	if s.RemainingScans() == 0 {
		return ErrDailyLimit
	}
	return nil
}

// RecordScan counts one scan for today, resetting the counter on a new day.
func (s *State) RecordScan(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := s.today()
	next := s.data
	next.ScansToday = s.scansOn(today) + 1
	next.LastScanDate = today
	if err := s.persist(ctx, next); err != nil {
		return 0, err
	}
	return next.ScansToday, nil
}

// Snapshot returns a copy of the whole state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.data
	out.ScansToday = s.scansOn(s.today())
	if out.Identity != nil {
		ident := *out.Identity
		out.Identity = &ident
	}
	return out
}

func (s *State) today() string {
	return s.now().Format(dayLayout)
}

// scansOn must be called with mu held.
func (s *State) scansOn(day string) int {
	if s.data.LastScanDate != day {
		return 0
	}
	return s.data.ScansToday
}

// persist must be called with mu held for writing.
func (s *State) persist(ctx context.Context, next Snapshot) error {
	raw, err := json.Marshal(next)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "session.persist", "failed to encode settings", err)
	}
	if err := s.store.Set(ctx, StorageKey, raw); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "session.persist", "failed to save settings", err)
	}
	s.data = next
	return nil
}

// DecodeIDToken extracts subject, email and expiry from a JWT without
// checking its signature.
func DecodeIDToken(raw string) (*Identity, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &idTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	ident := &Identity{
		IDToken: raw,
		Subject: claims.Subject,
		Email:   claims.Email,
	}
	if claims.ExpiresAt != nil {
		ident.ExpiresAt = claims.ExpiresAt.Time
	}
	return ident, nil
}
