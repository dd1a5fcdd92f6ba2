package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/store"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// Admin credential headers.
const (
	HeaderAdminUsername = "X-ADMIN-AUTH-USERNAME"
	HeaderAdminPassword = "X-ADMIN-AUTH-PASSWORD"
)

// Authentication failures. Payload errors map to 400, credential errors
// to 401.
var (
	ErrMissingAuth        = errors.New("missing authorization header")
	ErrInvalidAuthPayload = errors.New("invalid authentication payload")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// maxTokenCacheTTL caps how long a verified token is trusted without
// checking it again.
const maxTokenCacheTTL = 5 * time.Minute

type AuthConfig struct {
	AdminUsernameHash string
	AdminPasswordHash string
	// JWTSecret enables local HS256 verification. When empty, tokens are
	// checked with the identity provider.
	JWTSecret string
}

// Authenticator checks bearer tokens for users and header credentials for
// administrators.
type Authenticator struct {
	cfg        AuthConfig
	identities store.IdentityProvider
	tokens     cache.Cache[string]
	now        func() time.Time
}

func NewAuthenticator(cfg AuthConfig, identities store.IdentityProvider, tokens cache.Cache[string]) *Authenticator {
	if tokens == nil {
		tokens = cache.NewLRUCache[string](1024, maxTokenCacheTTL)
	}
	return &Authenticator{cfg: cfg, identities: identities, tokens: tokens, now: time.Now}
}

// supabaseClaims are the claims of a GoTrue access token.
type supabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.StandardClaims
}

// Bearer returns the user id the request's bearer token belongs to.
func (a *Authenticator) Bearer(ctx context.Context, r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingAuth
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || strings.TrimSpace(token) == "" {
		return "", ErrInvalidAuthPayload
	}
	token = strings.TrimSpace(token)

	key := tokenKey(token)
	if id, ok := a.tokens.Get(key); ok {
		return id, nil
	}

	if a.cfg.JWTSecret != "" {
		return a.verifyLocal(key, token)
	}
	return a.verifyRemote(ctx, key, token)
}

func (a *Authenticator) verifyLocal(key, token string) (string, error) {
	claims := &supabaseClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidCredentials
	}

	ttl := maxTokenCacheTTL
	if claims.ExpiresAt > 0 {
		if left := time.Unix(claims.ExpiresAt, 0).Sub(a.now()); left < ttl {
			ttl = left
		}
	}
	if ttl > 0 {
		a.tokens.SetWithTTL(key, claims.Subject, ttl)
	}
	return claims.Subject, nil
}

func (a *Authenticator) verifyRemote(ctx context.Context, key, token string) (string, error) {
	if a.identities == nil {
		return "", ErrInvalidCredentials
	}
	ident, err := a.identities.UserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrInvalidToken) || errors.Is(err, store.ErrIdentityNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("verify token: %w", err)
	}
	a.tokens.Set(key, ident.ID)
	return ident.ID, nil
}

// Admin checks the administrator header pair against the configured
// bcrypt hashes.
func (a *Authenticator) Admin(r *http.Request) error {
	username := r.Header.Get(HeaderAdminUsername)
	password := r.Header.Get(HeaderAdminPassword)
	if username == "" || password == "" {
		return ErrInvalidAuthPayload
	}
	if a.cfg.AdminUsernameHash == "" || a.cfg.AdminPasswordHash == "" {
		return ErrInvalidCredentials
	}
	userErr := bcrypt.CompareHashAndPassword([]byte(a.cfg.AdminUsernameHash), []byte(username))
	passErr := bcrypt.CompareHashAndPassword([]byte(a.cfg.AdminPasswordHash), []byte(password))
	if userErr != nil || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// tokenKey keeps raw tokens out of the cache.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
