package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authkit/internal"
	"github.com/MrEthical07/authkit/reason"
)

// Algorithm is a pinned HMAC signing algorithm tag.
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"
)

// MinSecretBytes is the shortest accepted signing secret.
const MinSecretBytes = 32

const jtiBytes = 16

var (
	// ErrWeakSecret is returned by New when the secret is missing or short.
	ErrWeakSecret = fmt.Errorf("signing secret must be at least %d bytes", MinSecretBytes)
	// ErrUnsupportedAlgorithm is returned by New for non-HMAC algorithm tags.
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

// Config configures a Service.
type Config struct {
	Secret     []byte
	Algorithm  Algorithm
	DefaultTTL time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration
	Clock      func() time.Time
}

// Service creates and verifies tokens. It is immutable after New and safe for
// concurrent use.
type Service struct {
	config Config
	method jwt.SigningMethod
	parser *jwt.Parser
	now    func() time.Time
}

// New validates cfg and returns a Service. A missing or short secret is a fatal
// configuration error.
func New(cfg Config) (*Service, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, ErrWeakSecret
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = HS256
	}
	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 15 * time.Minute
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	cfg.Secret = append([]byte(nil), cfg.Secret...)

	s := &Service{config: cfg, method: method, now: cfg.Clock}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{string(cfg.Algorithm)}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	s.parser = jwt.NewParser(options...)

	return s, nil
}

func signingMethod(alg Algorithm) (jwt.SigningMethod, error) {
	switch alg {
	case HS256:
		return jwt.SigningMethodHS256, nil
	case HS384:
		return jwt.SigningMethodHS384, nil
	case HS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// Algorithm returns the pinned algorithm.
func (s *Service) Algorithm() Algorithm {
	return s.config.Algorithm
}

// DefaultTTL returns the fallback lifetime used by CreateWithExpiry.
func (s *Service) DefaultTTL() time.Duration {
	return s.config.DefaultTTL
}

// Create signs payload with iat, exp and a fresh jti added. Those three keys are
// always overwritten; iss and aud are filled from config when the payload lacks
// them. A zero or negative expiresIn yields a token that is already expired.
func (s *Service) Create(payload map[string]any, expiresIn time.Duration) (string, error) {
	jti, err := internal.RandomToken(jtiBytes)
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := make(jwt.MapClaims, len(payload)+5)
	for k, v := range payload {
		claims[k] = v
	}
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(expiresIn).Unix()
	claims["jti"] = jti
	if _, ok := claims["iss"]; !ok && s.config.Issuer != "" {
		claims["iss"] = s.config.Issuer
	}
	if _, ok := claims["aud"]; !ok && s.config.Audience != "" {
		claims["aud"] = s.config.Audience
	}

	return jwt.NewWithClaims(s.method, claims).SignedString(s.config.Secret)
}

// CreateWithExpiry is Create with a compact lifetime such as "15m" or "7d".
// Unparseable lifetimes fall back to the configured default.
func (s *Service) CreateWithExpiry(payload map[string]any, expiresIn string) (string, error) {
	return s.Create(payload, ParseExpiry(expiresIn, s.config.DefaultTTL))
}

// Verify checks tokenStr and returns its claims. Failures wrap a reason.Reason.
func (s *Service) Verify(tokenStr string) (Claims, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", reason.Malformed, len(parts))
	}

	alg, err := headerAlgorithm(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reason.Malformed, err)
	}
	if alg != string(s.config.Algorithm) {
		return nil, fmt.Errorf("%w: got %q, want %q", reason.AlgorithmMismatch, alg, s.config.Algorithm)
	}

	claims := jwt.MapClaims{}
	_, err = s.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return s.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", classify(err), err)
	}

	return Claims(claims), nil
}

func headerAlgorithm(segment string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return "", fmt.Errorf("decode header: %w", err)
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return "", fmt.Errorf("parse header: %w", err)
	}
	return header.Alg, nil
}

// classify maps golang-jwt errors onto reasons. Signature failures take priority
// over claim failures because the parser verifies the signature first.
func classify(err error) reason.Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return reason.Malformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return reason.SignatureMismatch
	case errors.Is(err, jwt.ErrTokenExpired):
		return reason.Expired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return reason.NotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return reason.InvalidClaims
	default:
		return reason.Malformed
	}
}
