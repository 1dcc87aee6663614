package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authkit/internal"
	"github.com/MrEthical07/authkit/reason"
	"github.com/MrEthical07/authkit/store"
)

const (
	tokenKeyPrefix = "rt:"
	userKeyPrefix  = "rtu:"

	// Records outlive their expiry briefly so late presenters get Expired
	// instead of Invalid.
	expiredRetention = time.Minute
)

// AccessIssuer mints short-lived access tokens. *token.Service satisfies it.
type AccessIssuer interface {
	Create(payload map[string]any, expiresIn time.Duration) (string, error)
}

// Config tunes token lifetimes and refresh-token entropy.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	TokenBytes int
	Clock      func() time.Time
}

// Pair is an issued access/refresh token pair.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type record struct {
	UserID    string `json:"uid"`
	CreatedAt int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Store issues, rotates and revokes refresh tokens.
type Store struct {
	issuer AccessIssuer
	kv     store.Store
	config Config
	now    func() time.Time
}

// NewStore wires an access-token issuer to a key-value backend.
func NewStore(issuer AccessIssuer, kv store.Store, cfg Config) (*Store, error) {
	if issuer == nil {
		return nil, errors.New("refresh: access issuer required")
	}
	if kv == nil {
		return nil, errors.New("refresh: store required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh: RefreshTTL must be >= AccessTTL")
	}
	if cfg.TokenBytes == 0 {
		cfg.TokenBytes = 48
	}
	if cfg.TokenBytes < 32 {
		return nil, errors.New("refresh: TokenBytes must be >= 32")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Store{issuer: issuer, kv: kv, config: cfg, now: cfg.Clock}, nil
}

// Generate issues a new pair for userID.
func (s *Store) Generate(ctx context.Context, userID string) (Pair, error) {
	if userID == "" {
		return Pair{}, errors.New("refresh: user id required")
	}

	now := s.now()
	access, err := s.issuer.Create(map[string]any{"sub": userID, "typ": "access"}, s.config.AccessTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := internal.RandomToken(s.config.TokenBytes)
	if err != nil {
		return Pair{}, err
	}

	rec := record{UserID: userID, CreatedAt: now.Unix(), ExpiresAt: now.Add(s.config.RefreshTTL).Unix()}
	data, err := json.Marshal(rec)
	if err != nil {
		return Pair{}, err
	}

	hash := internal.HashToken(refreshToken)
	ttl := s.config.RefreshTTL + expiredRetention
	if err := s.kv.Set(ctx, tokenKeyPrefix+hash, data, ttl); err != nil {
		return Pair{}, err
	}
	if err := s.kv.AddMember(ctx, userKeyPrefix+userID, hash, ttl); err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(s.config.AccessTTL),
		RefreshExpiresAt: time.Unix(rec.ExpiresAt, 0),
	}, nil
}

// Refresh consumes refreshToken and issues a new pair for the same user. Unknown
// or already-used tokens fail with reason.Invalid, stale ones with reason.Expired.
func (s *Store) Refresh(ctx context.Context, refreshToken string) (Pair, error) {
	if refreshToken == "" {
		return Pair{}, reason.Invalid
	}
	hash := internal.HashToken(refreshToken)

	data, err := s.kv.Take(ctx, tokenKeyPrefix+hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Pair{}, reason.Invalid
		}
		return Pair{}, err
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec.UserID == "" {
		return Pair{}, fmt.Errorf("%w: corrupt record", reason.Invalid)
	}
	if err := s.kv.RemoveMember(ctx, userKeyPrefix+rec.UserID, hash); err != nil {
		return Pair{}, err
	}

	if s.now().Unix() >= rec.ExpiresAt {
		return Pair{}, reason.Expired
	}

	return s.Generate(ctx, rec.UserID)
}

// Revoke deletes one refresh token. Unknown tokens are ignored.
func (s *Store) Revoke(ctx context.Context, refreshToken string) error {
	hash := internal.HashToken(refreshToken)
	data, err := s.kv.Take(ctx, tokenKeyPrefix+hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	var rec record
	if json.Unmarshal(data, &rec) == nil && rec.UserID != "" {
		return s.kv.RemoveMember(ctx, userKeyPrefix+rec.UserID, hash)
	}
	return nil
}

// RevokeAll deletes every refresh token owned by userID.
func (s *Store) RevokeAll(ctx context.Context, userID string) error {
	hashes, err := s.kv.Members(ctx, userKeyPrefix+userID)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, tokenKeyPrefix+h)
	}
	keys = append(keys, userKeyPrefix+userID)
	return s.kv.Delete(ctx, keys...)
}

// Active returns the number of live refresh tokens indexed for userID.
func (s *Store) Active(ctx context.Context, userID string) (int, error) {
	hashes, err := s.kv.Members(ctx, userKeyPrefix+userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, h := range hashes {
		if _, err := s.kv.Get(ctx, tokenKeyPrefix+h); err == nil {
			n++
		} else if !errors.Is(err, store.ErrNotFound) {
			return 0, err
		}
	}
	return n, nil
}
