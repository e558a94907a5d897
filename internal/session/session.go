// Package session resolves bearer tokens into rbac principals stored in Redis.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

// ErrNoSession is returned when a token is unknown or expired.
var ErrNoSession = errors.New("session: not found")

const defaultPrefix = "session:"

// Store keeps principals keyed by a digest of their access token. Raw tokens are
// never written to Redis.
type Store struct {
	client     redis.UniversalClient
	prefix     string
	cookieName string
	ttl        time.Duration
}

// Options configures a Store.
type Options struct {
	Prefix     string
	CookieName string
	TTL        time.Duration
}

// NewStore constructs a Store.
func NewStore(client redis.UniversalClient, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.CookieName == "" {
		opts.CookieName = "access_token"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Store{client: client, prefix: opts.Prefix, cookieName: opts.CookieName, ttl: opts.TTL}
}

// Issue stores p under a fresh random token and returns the token.
func (s *Store) Issue(ctx context.Context, p rbac.Principal) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	if err := s.Put(ctx, token, p); err != nil {
		return "", err
	}
	return token, nil
}

// Put stores p under token, replacing any previous principal.
func (s *Store) Put(ctx context.Context, token string, p rbac.Principal) error {
	if token == "" {
		return errors.New("session: empty token")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(token), data, s.ttl).Err()
}

// Lookup returns the principal for token.
func (s *Store) Lookup(ctx context.Context, token string) (rbac.Principal, error) {
	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rbac.Principal{}, ErrNoSession
	}
	if err != nil {
		return rbac.Principal{}, fmt.Errorf("session: lookup: %w", err)
	}
	var p rbac.Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return rbac.Principal{}, fmt.Errorf("session: decode: %w", err)
	}
	if p.UserID == "" {
		return rbac.Principal{}, ErrNoSession
	}
	return p, nil
}

// Revoke deletes the session for token.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Token extracts the access token from the Authorization header or the session cookie.
func (s *Store) Token(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
	}
	if c, err := r.Cookie(s.cookieName); err == nil {
		return c.Value
	}
	return ""
}

func (s *Store) key(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return s.prefix + hex.EncodeToString(sum[:])
}
